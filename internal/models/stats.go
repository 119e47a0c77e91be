package models

// InvitationStats is the per-user quota ledger row. Available is the number
// of invitations the user may still issue; sent and accepted are monotonic
// counters over the user's whole history.
type InvitationStats struct {
	UserID    string `json:"user_id"`
	Available int    `json:"available"`
	Sent      int    `json:"sent"`
	Accepted  int    `json:"accepted"`
}

// Performance is the user's acceptance rate: accepted/sent, or 0 when the
// user has never sent an invitation.
func (s InvitationStats) Performance() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Sent)
}
