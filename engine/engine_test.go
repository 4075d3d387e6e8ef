package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardlabs/ward/actions"
	"github.com/wardlabs/ward/audit"
	"github.com/wardlabs/ward/bus"
	"github.com/wardlabs/ward/connectors"
	"github.com/wardlabs/ward/storage"
	"github.com/wardlabs/ward/types"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Store, *time.Time) {
	t.Helper()

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := actions.NewRegistry()
	actions.RegisterBuiltins(registry, store, connectors.NewLoggingRevoker())

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(store, bus.New(), registry, nil).WithClock(func() time.Time { return clock })
	return e, store, &clock
}

func testPolicy(tenantID string) *types.Policy {
	return &types.Policy{
		ID:          "pol-1",
		TenantID:    tenantID,
		Name:        "alert on risky apps",
		TriggerType: types.TopicAppDiscovered,
		Enabled:     true,
		Actions: []types.PolicyAction{
			{Type: actions.TypeNotify, Config: map[string]any{"channel": "#alerts"}},
		},
	}
}

func testEvent(tenantID string, payload map[string]any) types.Event {
	if payload == nil {
		payload = map[string]any{"appName": "Acme Docs"}
	}
	return types.Event{
		Topic:      types.TopicAppDiscovered,
		TenantID:   tenantID,
		Payload:    payload,
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleEvent_ExecutesMatchingPolicy(t *testing.T) {
	e, store, _ := newTestEngine(t)
	require.NoError(t, store.SavePolicy(testPolicy("t1")))

	require.NoError(t, e.HandleEvent(context.Background(), testEvent("t1", nil)))

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, types.ExecutionSuccess, execs[0].Status)
	assert.Equal(t, 1, execs[0].ActionsExecuted)
	assert.Equal(t, 1, execs[0].ActionsSucceeded)

	policy, err := store.GetPolicy("t1", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), policy.Stats.Succeeded)
	assert.False(t, policy.LastExecutedAt.IsZero())
}

func TestHandleEvent_ConditionsFilter(t *testing.T) {
	e, store, _ := newTestEngine(t)

	policy := testPolicy("t1")
	policy.Conditions = map[string]any{"riskScore": map[string]any{"$gte": 70}}
	require.NoError(t, store.SavePolicy(policy))

	require.NoError(t, e.HandleEvent(context.Background(), testEvent("t1", map[string]any{"riskScore": 50})))

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, execs)

	require.NoError(t, e.HandleEvent(context.Background(), testEvent("t1", map[string]any{"riskScore": 70})))

	execs, err = store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}

func TestHandleEvent_GateRunsBeforeConditions(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	auditDir := t.TempDir()
	auditLog, err := audit.Open(auditDir)
	require.NoError(t, err)
	defer auditLog.Close()

	registry := actions.NewRegistry()
	actions.RegisterBuiltins(registry, store, connectors.NewLoggingRevoker())

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(store, bus.New(), registry, auditLog).WithClock(func() time.Time { return clock })

	policy := testPolicy("t1")
	policy.CooldownMinutes = 60
	policy.LastExecutedAt = clock.Add(-time.Minute)
	policy.Conditions = map[string]any{"riskScore": map[string]any{"$gte": 90}}
	require.NoError(t, store.SavePolicy(policy))

	// The cooldown gate fires before condition evaluation, so the skip is
	// recorded even though the condition would not have matched.
	require.NoError(t, e.HandleEvent(context.Background(), testEvent("t1", map[string]any{"riskScore": 10})))

	skips := 0
	require.NoError(t, audit.Replay(auditDir, time.Time{}, func(entry *audit.Entry) error {
		if entry.Type == audit.EntryPolicySkipped && entry.RefID == "pol-1" {
			skips++
		}
		return nil
	}))
	assert.Equal(t, 1, skips)

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestHandleEvent_MissingTenantDropped(t *testing.T) {
	e, store, _ := newTestEngine(t)
	require.NoError(t, store.SavePolicy(testPolicy("t1")))

	evt := testEvent("", nil)
	require.NoError(t, e.HandleEvent(context.Background(), evt))

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestHandleEvent_TenantScoping(t *testing.T) {
	e, store, _ := newTestEngine(t)
	require.NoError(t, store.SavePolicy(testPolicy("t1")))

	require.NoError(t, e.HandleEvent(context.Background(), testEvent("t2", nil)))

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestCanExecute_CooldownBoundary(t *testing.T) {
	e, _, clock := newTestEngine(t)

	policy := testPolicy("t1")
	policy.CooldownMinutes = 10
	policy.LastExecutedAt = *clock

	// Inside the window
	ok, reason, err := e.CanExecute(policy, clock.Add(9*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, SkipCooldown, reason)

	// Exactly at the boundary the cooldown has elapsed
	ok, _, err = e.CanExecute(policy, clock.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanExecute_NeverExecuted(t *testing.T) {
	e, _, clock := newTestEngine(t)

	policy := testPolicy("t1")
	policy.CooldownMinutes = 60

	ok, _, err := e.CanExecute(policy, *clock)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanExecute_Disabled(t *testing.T) {
	e, _, clock := newTestEngine(t)

	policy := testPolicy("t1")
	policy.Enabled = false

	ok, reason, err := e.CanExecute(policy, *clock)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, SkipDisabled, reason)
}

func TestHandleEvent_DailyCap(t *testing.T) {
	e, store, _ := newTestEngine(t)

	policy := testPolicy("t1")
	policy.MaxExecutionsPerDay = 2
	require.NoError(t, store.SavePolicy(policy))

	for i := 0; i < 3; i++ {
		// Reload so the engine sees the updated LastExecutedAt
		current, err := store.GetPolicy("t1", "pol-1")
		require.NoError(t, err)
		ok, reason, err := e.CanExecute(current, e.now())
		require.NoError(t, err)
		if i < 2 {
			require.True(t, ok, "run %d should be allowed", i)
			_, err = e.ExecutePolicy(context.Background(), current, testEvent("t1", nil))
			require.NoError(t, err)
		} else {
			assert.False(t, ok)
			assert.Equal(t, SkipDailyCap, reason)
		}
	}

	execs, err := store.ListExecutions("pol-1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, execs, 2)
}

func TestExecutePolicy_MissingHandlerContinuesChain(t *testing.T) {
	e, store, _ := newTestEngine(t)

	policy := testPolicy("t1")
	policy.Actions = []types.PolicyAction{
		{Type: "ghost"},
		{Type: actions.TypeNotify},
	}
	require.NoError(t, store.SavePolicy(policy))

	exec, err := e.ExecutePolicy(context.Background(), policy, testEvent("t1", nil))
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionPartial, exec.Status)
	assert.Equal(t, 2, exec.ActionsExecuted)
	assert.Equal(t, 1, exec.ActionsSucceeded)
	assert.Equal(t, 1, exec.ActionsFailed)
	require.Len(t, exec.Actions, 2)
	assert.Equal(t, "No handler found for action type: ghost", exec.Actions[0].Error)
	assert.True(t, exec.Actions[1].Success)
}

func TestExecutePolicy_AllActionsFail(t *testing.T) {
	e, store, _ := newTestEngine(t)

	policy := testPolicy("t1")
	policy.Actions = []types.PolicyAction{
		// revoke with no IDs anywhere fails
		{Type: actions.TypeRevoke},
	}
	require.NoError(t, store.SavePolicy(policy))

	evt := testEvent("t1", map[string]any{"appName": "Acme Docs"})
	exec, err := e.ExecutePolicy(context.Background(), policy, evt)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionFailed, exec.Status)
	assert.Equal(t, exec.ActionsExecuted, exec.ActionsSucceeded+exec.ActionsFailed)

	policyAfter, err := store.GetPolicy("t1", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), policyAfter.Stats.Failed)
}

func TestExecutePolicy_NoActions(t *testing.T) {
	e, store, _ := newTestEngine(t)

	policy := testPolicy("t1")
	policy.Actions = nil
	require.NoError(t, store.SavePolicy(policy))

	exec, err := e.ExecutePolicy(context.Background(), policy, testEvent("t1", nil))
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, exec.Status)
	assert.Equal(t, 0, exec.ActionsExecuted)
}

func TestStart_SubscribesAllTopics(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	eventBus := bus.New()
	e := New(store, eventBus, actions.NewRegistry(), nil)
	e.Start()

	for _, topic := range types.Topics() {
		assert.Equal(t, 1, eventBus.SubscriberCount(topic), "topic %s", topic)
	}
}
