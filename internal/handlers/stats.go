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
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/models"
	"github.com/stanstork/invitation-api/internal/repository"
)

type StatsHandler struct {
	service *invites.Service
	users   repository.UserRepository
	logger  zerolog.Logger
}

func NewStatsHandler(service *invites.Service, users repository.UserRepository, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

type statsResponse struct {
	models.InvitationStats
	Performance float64 `json:"performance"`
}

// GetStats returns the user's ledger row plus the derived acceptance rate.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(user.ID)
	if err != nil {
		http.Error(w, "failed to load invitation stats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, statsResponse{
		InvitationStats: stats,
		Performance:     stats.Performance(),
	})
}

type grantQuotaRequest struct {
	Count int `json:"count"`
}

// GrantQuota administratively raises a user's available invitations.
func (h *StatsHandler) GrantQuota(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	var payload grantQuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	stats, err := h.service.AddAvailable(r.Context(), user, payload.Count, time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, statsResponse{
		InvitationStats: stats,
		Performance:     stats.Performance(),
	})
}

func (h *StatsHandler) resolveUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	username := strings.TrimSpace(mux.Vars(r)["username"])
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return models.User{}, false
	}

	user, err := h.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusNotFound)
			return models.User{}, false
		}
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return models.User{}, false
	}
	return user, true
}
