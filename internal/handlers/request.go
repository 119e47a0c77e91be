package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/models"
	"github.com/stanstork/invitation-api/internal/repository"
)

type RequestHandler struct {
	service  *invites.Service
	requests repository.RequestRepository
	logger   zerolog.Logger
}

func NewRequestHandler(service *invites.Service, requests repository.RequestRepository, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		service:  service,
		requests: requests,
		logger:   logger,
	}
}

type submitRequestPayload struct {
	Email string `json:"email"`
}

// SubmitRequest enqueues an email on the invitation-request queue. Public:
// this is how people without an invitation ask for one.
func (h *RequestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var payload submitRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	request, err := h.service.SubmitRequest(r.Context(), email, time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, request)
}

// ListRequests is the admin list view of the pending queue, FIFO order.
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.List()
	if err != nil {
		http.Error(w, "failed to list invitation requests", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []models.InvitationRequest{}
	}
	respondJSON(w, http.StatusOK, requests)
}
