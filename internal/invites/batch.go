package invites

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/repository"
)

// BatchIssuer converts the oldest pending invitation requests into real
// invitations sent from a designated user. Batch sending is an
// operator-initiated backlog drain, not organic peer invitation, so before
// issuing it raises the sender's available quota by exactly the batch size.
// That top-up is deliberate and keeps the administrative path auditable
// separately from normal issuance.
type BatchIssuer struct {
	service  *Service
	requests repository.RequestRepository
	users    repository.UserRepository
	logger   zerolog.Logger
}

func NewBatchIssuer(service *Service, requests repository.RequestRepository, users repository.UserRepository, logger zerolog.Logger) *BatchIssuer {
	return &BatchIssuer{
		service:  service,
		requests: requests,
		users:    users,
		logger:   logger.With().Str("component", "batch-issuer").Logger(),
	}
}

// SkippedRequest records a request the batch could not fulfill.
type SkippedRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type BatchResult struct {
	Attempted    int              `json:"attempted"`
	Issued       int              `json:"issued"`
	Skipped      int              `json:"skipped"`
	SkippedItems []SkippedRequest `json:"skipped_items,omitempty"`
	DryRun       bool             `json:"dry_run"`
	Recipients   []string         `json:"recipients,omitempty"`
}

// Run drains up to count requests, oldest first. It fails fast, with no
// partial effects, only when the sender is unknown or count is not positive;
// a failure on an individual request is recorded as a skip and never aborts
// the rest of the batch. With dryRun set, nothing is funded, issued, or
// removed; the result just lists who would be invited.
func (b *BatchIssuer) Run(ctx context.Context, fromUsername string, count int, dryRun bool, now time.Time, tpls notification.Templates) (BatchResult, error) {
	if count <= 0 {
		return BatchResult{}, errors.Wrap(ErrInvalidArgument, "count must be positive")
	}

	sender, err := b.users.GetByUsername(fromUsername)
	if stderrors.Is(err, sql.ErrNoRows) {
		return BatchResult{}, errors.Wrapf(ErrUnknownSender, "user %q does not exist", fromUsername)
	}
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "failed to resolve batch sender")
	}

	requests, err := b.requests.Oldest(count)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "failed to fetch pending requests")
	}

	result := BatchResult{Attempted: len(requests), DryRun: dryRun}
	actual := len(requests)

	if dryRun {
		for _, request := range requests {
			result.Recipients = append(result.Recipients, request.Email)
		}
		return result, nil
	}

	// Pre-fund the batch: raise the sender's available invitations by the
	// number of requests actually being processed, so the per-user quota
	// limit cannot make the drain fail partway, whatever the prior balance.
	if _, err := b.service.AddAvailable(ctx, sender, actual, now); err != nil {
		return BatchResult{}, err
	}
	b.logger.Info().
		Str("sender", sender.Username).
		Int("count", actual).
		Msg("raised sender's available invitations for batch")

	for _, request := range requests {
		// A registration or a fresh invitation may have landed for this
		// email since the request was queued; skip it rather than issue a
		// duplicate.
		if skip, reason := b.alreadyCovered(ctx, request.Email, now); skip {
			result.Skipped++
			result.SkippedItems = append(result.SkippedItems, SkippedRequest{Email: request.Email, Reason: reason})
			if err := b.requests.Delete(request.ID); err != nil {
				b.logger.Warn().Err(err).Str("email", request.Email).Msg("failed to remove stale request")
			}
			continue
		}

		invitation, err := b.service.issue(ctx, sender, request.Email, now, tpls)
		if err != nil {
			result.Skipped++
			result.SkippedItems = append(result.SkippedItems, SkippedRequest{
				Email:  request.Email,
				Reason: err.Error(),
			})
			b.logger.Warn().
				Err(err).
				Str("email", request.Email).
				Msg("skipping invitation request")
			continue
		}

		if err := b.requests.Delete(request.ID); err != nil {
			// The invitation exists; a leftover request row is harmless
			// and will be skipped as already-invited on the next run.
			b.logger.Warn().
				Err(err).
				Str("email", request.Email).
				Msg("failed to remove fulfilled request")
		}

		result.Issued++
		b.logger.Info().
			Str("email", request.Email).
			Str("invitation_id", invitation.ID).
			Msg("invitation issued from request")
	}

	return result, nil
}

// alreadyCovered reports whether the email no longer needs an invitation,
// and why. Lookup errors are treated as not covered: the issue path will
// surface them properly.
func (b *BatchIssuer) alreadyCovered(ctx context.Context, email string, now time.Time) (bool, string) {
	registered, err := b.service.users.ExistsByEmail(email)
	if err == nil && registered {
		return true, ErrAlreadyRegistered.Error()
	}
	outstanding, err := b.service.Valid(ctx, email, now)
	if err == nil && outstanding != nil {
		return true, ErrAlreadyInvited.Error()
	}
	return false, ""
}
