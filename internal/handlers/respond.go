package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/stanstork/invitation-api/internal/invites"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondDomainError maps the invitation error taxonomy to HTTP statuses so
// each failure renders a precise message. Unrecognized errors are internal.
func respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, invites.ErrQuotaExhausted),
		errors.Is(err, invites.ErrAlreadyAccepted),
		errors.Is(err, invites.ErrAlreadyRequested),
		errors.Is(err, invites.ErrAlreadyInvited),
		errors.Is(err, invites.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, invites.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, invites.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, invites.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, invites.ErrUnknownSender):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
