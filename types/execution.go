package types

import "time"

// ExecutionStatus tracks a policy run through its lifecycle.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionPartial ExecutionStatus = "partial"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ActionResult records the outcome of a single action within a run.
type ActionResult struct {
	ActionType string         `json:"action_type"`
	Success    bool           `json:"success"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// PolicyExecution is the audit record of one policy run. Created in the
// running state, finalized once, immutable afterward.
type PolicyExecution struct {
	ID           string          `json:"id"`
	PolicyID     string          `json:"policy_id"`
	TenantID     string          `json:"tenant_id"`
	TriggerTopic Topic           `json:"trigger_topic"`
	TriggerData  map[string]any  `json:"trigger_data,omitempty"`
	Status       ExecutionStatus `json:"status"`

	Actions          []ActionResult `json:"actions"`
	ActionsExecuted  int            `json:"actions_executed"`
	ActionsSucceeded int            `json:"actions_succeeded"`
	ActionsFailed    int            `json:"actions_failed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Finalize folds the accumulated action results into counters and a terminal
// status: success when nothing failed, failed when nothing succeeded and at
// least one action ran, partial otherwise.
func (e *PolicyExecution) Finalize(now time.Time) {
	e.ActionsExecuted = len(e.Actions)
	e.ActionsSucceeded = 0
	e.ActionsFailed = 0
	for _, r := range e.Actions {
		if r.Success {
			e.ActionsSucceeded++
		} else {
			e.ActionsFailed++
		}
	}

	switch {
	case e.ActionsFailed == 0:
		e.Status = ExecutionSuccess
	case e.ActionsSucceeded == 0 && e.ActionsExecuted > 0:
		e.Status = ExecutionFailed
	default:
		e.Status = ExecutionPartial
	}
	e.FinishedAt = now
}
