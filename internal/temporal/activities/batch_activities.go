package activities

import (
	"context"
	"time"

	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/temporal"
)

// Activities holds the dependencies the batch workflow activities run with.
type Activities struct {
	Issuer    *invites.BatchIssuer
	Templates notification.Templates
}

// RunBatchIssueActivity drains pending invitation requests through the
// batch issuer. The issuer isolates per-request failures itself, so the
// activity only fails on configuration errors (unknown sender, bad count).
func (a *Activities) RunBatchIssueActivity(ctx context.Context, params temporal.BatchParams) (invites.BatchResult, error) {
	return a.Issuer.Run(ctx, params.FromUsername, params.Count, params.DryRun, time.Now().UTC(), a.Templates)
}
