package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/temporal"
	"github.com/stanstork/invitation-api/internal/temporal/workflows"
	tc "go.temporal.io/sdk/client"
)

type BatchHandler struct {
	temporalClient tc.Client
	logger         zerolog.Logger
}

func NewBatchHandler(temporalClient tc.Client, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		temporalClient: temporalClient,
		logger:         logger,
	}
}

type triggerBatchRequest struct {
	FromUsername string `json:"from_username"`
	Count        int    `json:"count"`
	DryRun       bool   `json:"dry_run"`
}

// TriggerBatch starts a one-off batch issuance workflow and returns its
// workflow ID; the drain itself runs on the worker.
func (h *BatchHandler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	if h.temporalClient == nil {
		http.Error(w, "batch workflows are not enabled", http.StatusServiceUnavailable)
		return
	}

	var payload triggerBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Count <= 0 {
		http.Error(w, "count must be positive", http.StatusBadRequest)
		return
	}
	if payload.FromUsername == "" {
		http.Error(w, "from_username is required", http.StatusBadRequest)
		return
	}

	options := tc.StartWorkflowOptions{
		ID:        temporal.BatchWorkflowIDPrefix + uuid.NewString(),
		TaskQueue: temporal.TaskQueueName,
	}
	run, err := h.temporalClient.ExecuteWorkflow(r.Context(), options, workflows.BatchIssueWorkflow, temporal.BatchParams{
		FromUsername: payload.FromUsername,
		Count:        payload.Count,
		DryRun:       payload.DryRun,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start batch issuance workflow")
		http.Error(w, "failed to start batch workflow", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}
