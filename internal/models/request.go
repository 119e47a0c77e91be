package models

import "time"

// InvitationRequest records an email address that asked to be invited but
// has no invitation yet. Requests form a FIFO queue by RequestedAt and are
// deleted once a batch run converts them into real invitations.
type InvitationRequest struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}
