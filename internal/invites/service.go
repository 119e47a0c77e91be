package invites

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/events"
	"github.com/stanstork/invitation-api/internal/keygen"
	"github.com/stanstork/invitation-api/internal/models"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/repository"
)

// maxKeyAttempts bounds the collision-retry loop in Issue. With 256-bit keys
// a single retry is already astronomically unlikely.
const maxKeyAttempts = 5

// Service owns the invitation lifecycle: issuance against the quota ledger,
// validity queries, the accept transition, and request-queue submission.
type Service struct {
	invitations  repository.InvitationRepository
	stats        repository.StatsRepository
	requests     repository.RequestRepository
	users        repository.UserRepository
	keys         keygen.Generator
	mailer       notification.Mailer
	events       events.Publisher
	ttl          time.Duration
	initialQuota int
	logger       zerolog.Logger
}

func NewService(
	invitations repository.InvitationRepository,
	stats repository.StatsRepository,
	requests repository.RequestRepository,
	users repository.UserRepository,
	keys keygen.Generator,
	mailer notification.Mailer,
	publisher events.Publisher,
	ttl time.Duration,
	initialQuota int,
	logger zerolog.Logger,
) *Service {
	return &Service{
		invitations:  invitations,
		stats:        stats,
		requests:     requests,
		users:        users,
		keys:         keys,
		mailer:       mailer,
		events:       publisher,
		ttl:          ttl,
		initialQuota: initialQuota,
		logger:       logger.With().Str("component", "invites").Logger(),
	}
}

// Issue creates an invitation from sender to email, spending one unit of the
// sender's quota. The quota stays spent even if the notification email fails:
// delivery is best-effort and callers may compensate by re-issuing.
func (s *Service) Issue(ctx context.Context, sender models.User, email string, now time.Time) (models.Invitation, error) {
	return s.issue(ctx, sender, email, now, notification.Templates{})
}

func (s *Service) issue(ctx context.Context, sender models.User, email string, now time.Time, tpls notification.Templates) (models.Invitation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Invitation{}, errors.Wrap(ErrInvalidArgument, "email is required")
	}

	if _, err := s.stats.GetOrCreate(sender.ID, s.initialQuota); err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to load invitation stats")
	}

	ok, err := s.stats.TryConsume(sender.ID, 1)
	if err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to consume invitation quota")
	}
	if !ok {
		return models.Invitation{}, ErrQuotaExhausted
	}

	invitation, err := s.createWithFreshKey(sender, email, now)
	if err != nil {
		return models.Invitation{}, err
	}

	s.emit(ctx, events.Event{
		Type:         events.TypeInvitationIssued,
		OccurredAt:   now,
		UserID:       sender.ID,
		Email:        invitation.Email,
		InvitationID: invitation.ID,
	})

	s.notify(ctx, invitation, sender, tpls)
	return invitation, nil
}

func (s *Service) createWithFreshKey(sender models.User, email string, now time.Time) (models.Invitation, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := s.keys.Generate()
		if err != nil {
			return models.Invitation{}, errors.Wrap(err, "failed to generate invitation key")
		}

		invitation, err := s.invitations.Create(models.Invitation{
			Key:       key,
			SenderID:  sender.ID,
			Email:     email,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if stderrors.Is(err, repository.ErrDuplicate) {
			s.logger.Warn().Str("sender_id", sender.ID).Msg("invitation key collision, regenerating")
			continue
		}
		if err != nil {
			return models.Invitation{}, errors.Wrap(err, "failed to persist invitation")
		}
		return invitation, nil
	}
	return models.Invitation{}, errors.Errorf("failed to generate a unique invitation key after %d attempts", maxKeyAttempts)
}

// Valid returns the outstanding valid invitation for the email, or nil.
func (s *Service) Valid(_ context.Context, email string, now time.Time) (*models.Invitation, error) {
	invitation, err := s.invitations.FindValidByEmail(email, now)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query valid invitation")
	}
	return &invitation, nil
}

// Accept redeems the invitation identified by key. The Pending -> Accepted
// transition is a conditional update, so a concurrent double accept loses
// cleanly and is reported as ErrAlreadyAccepted.
func (s *Service) Accept(ctx context.Context, key string, now time.Time) (models.Invitation, error) {
	existing, err := s.invitations.GetByKey(key)
	if stderrors.Is(err, sql.ErrNoRows) {
		return models.Invitation{}, ErrNotFound
	}
	if err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to load invitation")
	}
	if existing.IsAccepted() {
		return models.Invitation{}, ErrAlreadyAccepted
	}
	if existing.IsExpired(now) {
		return models.Invitation{}, ErrExpired
	}

	invitation, err := s.invitations.MarkAccepted(key, now)
	if stderrors.Is(err, sql.ErrNoRows) {
		// Lost a race: another accept landed between the read and the
		// conditional update. The invitation was pending a moment ago,
		// so expiry cannot be the cause.
		return models.Invitation{}, ErrAlreadyAccepted
	}
	if err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to accept invitation")
	}

	if _, err := s.stats.GetOrCreate(invitation.SenderID, s.initialQuota); err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to load sender stats")
	}
	if err := s.stats.RecordAccepted(invitation.SenderID); err != nil {
		return models.Invitation{}, errors.Wrap(err, "failed to record acceptance")
	}

	s.emit(ctx, events.Event{
		Type:         events.TypeInvitationAccepted,
		OccurredAt:   now,
		UserID:       invitation.SenderID,
		Email:        invitation.Email,
		InvitationID: invitation.ID,
	})
	return invitation, nil
}

// SubmitRequest enqueues an email on the invitation-request queue, rejecting
// emails that already have an account, a valid invitation, or a pending
// request.
func (s *Service) SubmitRequest(ctx context.Context, email string, now time.Time) (models.InvitationRequest, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.InvitationRequest{}, errors.Wrap(ErrInvalidArgument, "email is required")
	}

	registered, err := s.users.ExistsByEmail(email)
	if err != nil {
		return models.InvitationRequest{}, errors.Wrap(err, "failed to check for existing account")
	}
	if registered {
		return models.InvitationRequest{}, ErrAlreadyRegistered
	}

	outstanding, err := s.Valid(ctx, email, now)
	if err != nil {
		return models.InvitationRequest{}, err
	}
	if outstanding != nil {
		return models.InvitationRequest{}, ErrAlreadyInvited
	}

	request, err := s.requests.Create(email, now)
	if stderrors.Is(err, repository.ErrDuplicate) {
		return models.InvitationRequest{}, ErrAlreadyRequested
	}
	if err != nil {
		return models.InvitationRequest{}, errors.Wrap(err, "failed to enqueue invitation request")
	}
	return request, nil
}

// AddAvailable administratively grants count units of quota to the user.
func (s *Service) AddAvailable(ctx context.Context, user models.User, count int, now time.Time) (models.InvitationStats, error) {
	if count < 0 {
		return models.InvitationStats{}, errors.Wrap(ErrInvalidArgument, "count must not be negative")
	}
	if _, err := s.stats.GetOrCreate(user.ID, s.initialQuota); err != nil {
		return models.InvitationStats{}, errors.Wrap(err, "failed to load invitation stats")
	}
	stats, err := s.stats.AddAvailable(user.ID, count)
	if err != nil {
		return models.InvitationStats{}, errors.Wrap(err, "failed to raise available invitations")
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeQuotaGranted,
		OccurredAt: now,
		UserID:     user.ID,
		Count:      count,
	})
	return stats, nil
}

// Stats returns the user's ledger row, creating it with the initial quota on
// first reference.
func (s *Service) Stats(userID string) (models.InvitationStats, error) {
	return s.stats.GetOrCreate(userID, s.initialQuota)
}

// PurgeExpired removes expired unaccepted invitations. Maintenance only.
func (s *Service) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	return s.invitations.PurgeExpired(now)
}

// notify delivers the invitation email and fires the sent event. Failures
// are logged, never propagated: the issuance is already committed.
func (s *Service) notify(ctx context.Context, invitation models.Invitation, sender models.User, tpls notification.Templates) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendInvitation(invitation, sender, tpls); err != nil {
		s.logger.Warn().
			Err(err).
			Str("invitation_id", invitation.ID).
			Str("email", invitation.Email).
			Msg("failed to send invitation email")
		return
	}
	s.emit(ctx, events.Event{
		Type:         events.TypeInvitationSent,
		OccurredAt:   invitation.CreatedAt,
		UserID:       sender.ID,
		Email:        invitation.Email,
		InvitationID: invitation.ID,
	})
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event")
	}
}
