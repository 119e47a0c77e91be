package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the invitation service. Delivery is fire-and-forget;
// no core logic depends on subscribers seeing them.
const (
	TypeInvitationIssued   = "invitation.issued"
	TypeInvitationSent     = "invitation.sent"
	TypeInvitationAccepted = "invitation.accepted"
	TypeQuotaGranted       = "quota.granted"
)

type Event struct {
	Type         string    `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	InvitationID string    `json:"invitation_id,omitempty"`
	Count        int       `json:"count,omitempty"`
}

// Publisher delivers events to whatever external subscribers are configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info().
		Str("type", event.Type).
		Str("user_id", event.UserID).
		Str("email", event.Email).
		Str("invitation_id", event.InvitationID).
		Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
