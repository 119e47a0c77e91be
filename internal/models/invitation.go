package models

import "time"

// Invitation is a single-use, time-bounded credential that permits one
// registration. The key is immutable once created; accepted_at is terminal.
type Invitation struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	SenderID   string     `json:"sender_id"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// IsExpired determines whether the invitation has expired.
func (i Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsAccepted indicates whether the invitation has already been redeemed.
func (i Invitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

// IsValid reports whether the invitation can still be redeemed: unaccepted
// and unexpired. Expiry is a query-time classification, not a stored state.
func (i Invitation) IsValid(now time.Time) bool {
	return !i.IsAccepted() && !i.IsExpired(now)
}
