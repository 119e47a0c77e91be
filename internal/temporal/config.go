package temporal

import "time"

// TaskQueueName is the name of the Temporal task queue used for invitation batch workflows.
const TaskQueueName = "INVITATION_BATCH"

// BatchWorkflowIDPrefix is the prefix used for one-off batch issuance workflow IDs.
const BatchWorkflowIDPrefix = "invitation-batch-"

// CronWorkflowID identifies the recurring backlog-drain workflow.
const CronWorkflowID = "invitation-batch-cron"

// DefaultActivityTimeout is the default timeout duration for batch activities.
const DefaultActivityTimeout = 5 * time.Minute

// BatchParams defines the input for batch issuance workflows.
type BatchParams struct {
	FromUsername string
	Count        int
	DryRun       bool
}
