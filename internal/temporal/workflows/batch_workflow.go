package workflows

import (
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/temporal"
	"github.com/stanstork/invitation-api/internal/temporal/activities"
	"go.temporal.io/sdk/workflow"
)

// BatchIssueWorkflow converts queued invitation requests into invitations.
// It runs both as the cron-scheduled backlog drain and as a one-off
// operator-triggered batch.
func BatchIssueWorkflow(ctx workflow.Context, params temporal.BatchParams) (invites.BatchResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch issuance workflow", "FromUsername", params.FromUsername, "Count", params.Count, "DryRun", params.DryRun)

	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities

	var result invites.BatchResult
	if err := workflow.ExecuteActivity(ctx, a.RunBatchIssueActivity, params).Get(ctx, &result); err != nil {
		logger.Error("Batch issuance failed.", "error", err)
		return invites.BatchResult{}, err
	}

	logger.Info("Batch issuance workflow completed.",
		"Attempted", result.Attempted, "Issued", result.Issued, "Skipped", result.Skipped)
	return result, nil
}
