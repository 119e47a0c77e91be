package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/authz"
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/models"
	"github.com/stanstork/invitation-api/internal/repository"
)

const defaultListLimit = 200

type InviteHandler struct {
	service     *invites.Service
	invitations repository.InvitationRepository
	users       repository.UserRepository
	logger      zerolog.Logger
}

func NewInviteHandler(service *invites.Service, invitations repository.InvitationRepository, users repository.UserRepository, logger zerolog.Logger) *InviteHandler {
	return &InviteHandler{
		service:     service,
		invitations: invitations,
		users:       users,
		logger:      logger,
	}
}

type createInviteRequest struct {
	Email string `json:"email"`
}

// CreateInvite issues an invitation funded by the authenticated caller's
// quota.
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "principal required", http.StatusUnauthorized)
		return
	}

	var payload createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	sender, err := h.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "sender not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load sender", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	if outstanding, err := h.service.Valid(r.Context(), email, now); err != nil {
		respondDomainError(w, err)
		return
	} else if outstanding != nil {
		respondDomainError(w, invites.ErrAlreadyInvited)
		return
	}

	invitation, err := h.service.Issue(r.Context(), sender, email, now)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, invitation)
}

// PreviewInvite reports whether the key can still be redeemed; used by the
// registration page before showing the form.
func (h *InviteHandler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	invitation, err := h.invitations.GetByKey(key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondDomainError(w, invites.ErrNotFound)
			return
		}
		http.Error(w, "failed to load invitation", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	if invitation.IsAccepted() {
		respondDomainError(w, invites.ErrAlreadyAccepted)
		return
	}
	if invitation.IsExpired(now) {
		respondDomainError(w, invites.ErrExpired)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Email     string    `json:"email"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		Email:     invitation.Email,
		ExpiresAt: invitation.ExpiresAt,
	})
}

type acceptInviteRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AcceptInvite redeems the key and creates the active account it gates.
func (h *InviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	var payload acceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Password) == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}

	invitation, err := h.service.Accept(r.Context(), key, time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	user, err := h.users.CreateUser(username, invitation.Email, payload.Password)
	if err != nil {
		// The acceptance is already committed; surface the conflict so the
		// caller can retry registration through support.
		if errors.Is(err, repository.ErrDuplicate) {
			http.Error(w, "username or email already taken", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Str("invitation_id", invitation.ID).Msg("failed to create account for accepted invitation")
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, struct {
		User       models.User       `json:"user"`
		Invitation models.Invitation `json:"invitation"`
	}{
		User:       user,
		Invitation: invitation,
	})
}

// ListInvitations is the admin list view.
func (h *InviteHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitations.List(defaultListLimit)
	if err != nil {
		http.Error(w, "failed to list invitations", http.StatusInternalServerError)
		return
	}
	if invitations == nil {
		invitations = []models.Invitation{}
	}
	respondJSON(w, http.StatusOK, invitations)
}

// PurgeExpired removes expired unaccepted invitations. Storage reclamation,
// not a correctness requirement.
func (h *InviteHandler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	purged, err := h.service.PurgeExpired(r.Context(), time.Now().UTC())
	if err != nil {
		http.Error(w, "failed to purge invitations", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
