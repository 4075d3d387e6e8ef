// Package engine is the policy automation core: it listens on every event
// topic, matches enabled policies against incoming events, gates them through
// cooldown and daily-cap checks, and runs their action chains.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlabs/ward/actions"
	"github.com/wardlabs/ward/audit"
	"github.com/wardlabs/ward/bus"
	"github.com/wardlabs/ward/conditions"
	"github.com/wardlabs/ward/storage"
	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// Reasons a matched policy is skipped without executing.
const (
	SkipDisabled = "disabled"
	SkipCooldown = "cooldown"
	SkipDailyCap = "daily_cap"
)

// Engine evaluates and executes policies in response to events.
type Engine struct {
	store     *storage.Store
	bus       *bus.Bus
	registry  *actions.Registry
	evaluator *conditions.Evaluator
	auditLog  *audit.Log
	logger    *telemetry.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates an engine. The audit log may be nil, in which case no trail is
// written.
func New(store *storage.Store, eventBus *bus.Bus, registry *actions.Registry, auditLog *audit.Log) *Engine {
	return &Engine{
		store:     store,
		bus:       eventBus,
		registry:  registry,
		evaluator: conditions.NewEvaluator(),
		auditLog:  auditLog,
		logger:    telemetry.NewLogger("policy-engine"),
		tracer:    otel.Tracer("policy-engine"),
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Start subscribes the engine to every known topic. Call once at startup,
// before connectors begin publishing.
func (e *Engine) Start() {
	for _, topic := range types.Topics() {
		e.bus.Subscribe(topic, "policy-engine", e.HandleEvent)
	}
	e.logger.Info().Int("topics", len(types.Topics())).Msg("policy engine subscribed")
}

// HandleEvent matches an event against the tenant's enabled policies and
// executes the ones whose conditions hold. One policy's failure never blocks
// evaluation of the rest.
func (e *Engine) HandleEvent(ctx context.Context, evt types.Event) error {
	ctx, span := e.tracer.Start(ctx, "engine.handle_event",
		trace.WithAttributes(
			attribute.String("event.topic", string(evt.Topic)),
			attribute.String("tenant.id", evt.TenantID)))
	defer span.End()

	if evt.TenantID == "" {
		e.logger.LogEventDropped(ctx, string(evt.Topic), "missing tenant ID")
		return nil
	}

	policies, err := e.store.ListEnabledPoliciesByTrigger(evt.TenantID, evt.Topic)
	if err != nil {
		e.logger.LogStorageError(ctx, "list_policies_by_trigger", err)
		return fmt.Errorf("list policies for %s: %w", evt.Topic, err)
	}

	for i := range policies {
		policy := &policies[i]

		ok, reason, err := e.CanExecute(policy, e.now())
		if err != nil {
			e.logger.LogStorageError(ctx, "can_execute", err)
			continue
		}
		if !ok {
			e.recordSkip(ctx, policy, evt, reason)
			continue
		}

		if !e.evaluator.Evaluate(ctx, policy.Conditions, evt.Payload) {
			continue
		}

		if _, err := e.ExecutePolicy(ctx, policy, evt); err != nil {
			e.logger.WithContext(ctx).Error().
				Err(err).
				Str("policy_id", policy.ID).
				Str("policy_name", policy.Name).
				Msg("policy execution failed")
		}
	}

	return nil
}

// CanExecute reports whether a policy may run now, and if not, why. The
// cooldown compares against the last execution; the daily cap counts
// executions since local midnight.
func (e *Engine) CanExecute(policy *types.Policy, now time.Time) (bool, string, error) {
	if !policy.Enabled {
		return false, SkipDisabled, nil
	}

	if policy.CooldownMinutes > 0 && !policy.LastExecutedAt.IsZero() {
		if now.Before(policy.LastExecutedAt.Add(policy.Cooldown())) {
			return false, SkipCooldown, nil
		}
	}

	if policy.MaxExecutionsPerDay > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		count, err := e.store.CountExecutionsSince(policy.ID, dayStart)
		if err != nil {
			return false, "", fmt.Errorf("count executions: %w", err)
		}
		if count >= policy.MaxExecutionsPerDay {
			return false, SkipDailyCap, nil
		}
	}

	return true, "", nil
}

// ExecutePolicy runs the policy's action chain sequentially against the
// triggering event. An action with no registered handler, or whose handler
// errors, is recorded as failed and the chain continues. The finalized
// execution record and the policy's bookkeeping are persisted atomically.
func (e *Engine) ExecutePolicy(ctx context.Context, policy *types.Policy, evt types.Event) (*types.PolicyExecution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.execute_policy",
		trace.WithAttributes(
			attribute.String("policy.id", policy.ID),
			attribute.String("policy.name", policy.Name),
			attribute.Int("actions.count", len(policy.Actions))))
	defer span.End()

	start := e.now()
	exec := &types.PolicyExecution{
		ID:           uuid.NewString(),
		PolicyID:     policy.ID,
		TenantID:     policy.TenantID,
		TriggerTopic: evt.Topic,
		TriggerData:  evt.Payload,
		Status:       types.ExecutionRunning,
		StartedAt:    start,
	}

	if err := e.store.CreateExecution(exec); err != nil {
		return nil, fmt.Errorf("create execution record: %w", err)
	}

	actx := actions.Context{
		Event:      evt,
		PolicyID:   policy.ID,
		PolicyName: policy.Name,
		TenantID:   policy.TenantID,
	}

	for _, action := range policy.Actions {
		exec.Actions = append(exec.Actions, e.runAction(ctx, action, actx))
	}

	exec.Finalize(e.now())

	if err := e.store.RecordExecutionResult(exec); err != nil {
		return nil, fmt.Errorf("record execution result: %w", err)
	}

	e.logger.LogPolicyExecution(ctx, policy.ID, string(exec.Status), exec.ActionsExecuted, exec.ActionsFailed)
	telemetry.RecordPolicyExecutedEvent(span, policy.ID, policy.Name,
		string(evt.Topic), string(exec.Status), exec.ActionsExecuted, exec.ActionsFailed)
	if telemetry.PoliciesExecuted != nil {
		telemetry.PoliciesExecuted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(exec.Status)),
			attribute.String("topic", string(evt.Topic))))
	}
	if telemetry.ExecutionDuration != nil {
		telemetry.ExecutionDuration.Record(ctx, exec.FinishedAt.Sub(start).Seconds(),
			metric.WithAttributes(attribute.String("status", string(exec.Status))))
	}

	if e.auditLog != nil {
		if err := e.auditLog.Append(audit.EntryPolicyExecuted, policy.TenantID, policy.ID, exec); err != nil {
			e.logger.WithContext(ctx).Error().Err(err).Msg("audit append failed")
		}
	}

	return exec, nil
}

// runAction executes one action, converting missing handlers and handler
// errors into failed results.
func (e *Engine) runAction(ctx context.Context, action types.PolicyAction, actx actions.Context) types.ActionResult {
	handler, ok := e.registry.Get(action.Type)
	if !ok {
		e.logger.WithContext(ctx).Warn().
			Str("action_type", action.Type).
			Str("policy_id", actx.PolicyID).
			Msg("no handler registered for action type")
		return types.ActionResult{
			ActionType: action.Type,
			Success:    false,
			Error:      fmt.Sprintf("No handler found for action type: %s", action.Type),
		}
	}

	result, err := handler.Execute(ctx, action.Config, actx)
	if err != nil {
		return types.ActionResult{
			ActionType: action.Type,
			Success:    false,
			Error:      err.Error(),
		}
	}

	return types.ActionResult{
		ActionType: action.Type,
		Success:    result.Success,
		Result:     result.Data,
		Error:      result.Error,
	}
}

// recordSkip logs and audits a gated-out policy.
func (e *Engine) recordSkip(ctx context.Context, policy *types.Policy, evt types.Event, reason string) {
	e.logger.WithContext(ctx).Debug().
		Str("policy_id", policy.ID).
		Str("policy_name", policy.Name).
		Str("reason", reason).
		Str("topic", string(evt.Topic)).
		Msg("policy skipped")

	if e.auditLog != nil {
		data := map[string]any{"reason": reason, "topic": string(evt.Topic)}
		if err := e.auditLog.Append(audit.EntryPolicySkipped, policy.TenantID, policy.ID, data); err != nil {
			e.logger.WithContext(ctx).Error().Err(err).Msg("audit append failed")
		}
	}
}

// SweepExecutions removes execution records older than the retention window.
func (e *Engine) SweepExecutions(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := e.now().Add(-retention)
	deleted, err := e.store.SweepExecutionsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep executions: %w", err)
	}
	if deleted > 0 {
		e.logger.WithContext(ctx).Info().
			Int("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("execution records swept")
	}
	return deleted, nil
}
