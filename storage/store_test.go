package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardlabs/ward/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testPolicy(id, tenantID string) *types.Policy {
	return &types.Policy{
		ID:          id,
		TenantID:    tenantID,
		Name:        "policy " + id,
		TriggerType: types.TopicAppDiscovered,
		Enabled:     true,
		Actions:     []types.PolicyAction{{Type: "notify"}},
		CreatedAt:   time.Now(),
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	store := newTestStore(t)

	policy := testPolicy("pol-1", "t1")
	require.NoError(t, store.SavePolicy(policy))

	got, err := store.GetPolicy("t1", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, policy.Name, got.Name)
	assert.Equal(t, policy.TriggerType, got.TriggerType)

	_, err = store.GetPolicy("t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEnabledPoliciesByTrigger(t *testing.T) {
	store := newTestStore(t)

	enabled := testPolicy("pol-1", "t1")
	disabled := testPolicy("pol-2", "t1")
	disabled.Enabled = false
	otherTopic := testPolicy("pol-3", "t1")
	otherTopic.TriggerType = types.TopicLicenseUnused
	otherTenant := testPolicy("pol-4", "t2")

	for _, p := range []*types.Policy{enabled, disabled, otherTopic, otherTenant} {
		require.NoError(t, store.SavePolicy(p))
	}

	matches, err := store.ListEnabledPoliciesByTrigger("t1", types.TopicAppDiscovered)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "pol-1", matches[0].ID)
}

func TestRecordExecutionResult_AtomicPolicyUpdate(t *testing.T) {
	store := newTestStore(t)

	policy := testPolicy("pol-1", "t1")
	require.NoError(t, store.SavePolicy(policy))

	started := time.Now()
	exec := &types.PolicyExecution{
		ID:        "exec-1",
		PolicyID:  "pol-1",
		TenantID:  "t1",
		Status:    types.ExecutionRunning,
		StartedAt: started,
	}
	require.NoError(t, store.CreateExecution(exec))

	exec.Actions = []types.ActionResult{{ActionType: "notify", Success: true}}
	exec.Finalize(started.Add(time.Second))
	require.NoError(t, store.RecordExecutionResult(exec))

	got, err := store.GetExecution("pol-1", "exec-1")
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionSuccess, got.Status)

	updated, err := store.GetPolicy("t1", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Stats.Succeeded)
	assert.WithinDuration(t, exec.FinishedAt, updated.LastExecutedAt, time.Millisecond)
}

func TestCountExecutionsSince(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-48 * time.Hour, -2 * time.Hour, -time.Minute} {
		exec := &types.PolicyExecution{
			ID:        "exec-" + string(rune('a'+i)),
			PolicyID:  "pol-1",
			TenantID:  "t1",
			StartedAt: base.Add(offset),
		}
		require.NoError(t, store.CreateExecution(exec))
	}

	dayStart := base.Truncate(24 * time.Hour)
	count, err := store.CountExecutionsSince("pol-1", dayStart)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only executions from today should count")
}

func TestSweepExecutionsBefore(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	old := &types.PolicyExecution{ID: "old", PolicyID: "pol-1", StartedAt: now.Add(-90 * 24 * time.Hour)}
	recent := &types.PolicyExecution{ID: "recent", PolicyID: "pol-1", StartedAt: now}
	require.NoError(t, store.CreateExecution(old))
	require.NoError(t, store.CreateExecution(recent))

	deleted, err := store.SweepExecutionsBefore(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Idempotent: second sweep removes nothing
	deleted, err = store.SweepExecutionsBefore(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = store.GetExecution("pol-1", "recent")
	assert.NoError(t, err)
}

func TestAppIndexLookup(t *testing.T) {
	store := newTestStore(t)

	app := &types.SaaSApp{
		ID:             "app-1",
		TenantID:       "t1",
		Name:           "Acme Docs",
		ApprovalStatus: types.ApprovalApproved,
	}
	require.NoError(t, store.SaveApp(app))

	found, err := store.FindAppByNormalizedName("t1", "acmedocs")
	require.NoError(t, err)
	assert.Equal(t, "app-1", found.ID)

	// Tenant isolation
	_, err = store.FindAppByNormalizedName("t2", "acmedocs")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.FindAppByNormalizedName("t1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppIndexRebuildOnOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveApp(&types.SaaSApp{
		ID: "app-1", TenantID: "t1", Name: "Figma", ApprovalStatus: types.ApprovalPending,
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindAppByNormalizedName("t1", "figma")
	require.NoError(t, err)
	assert.Equal(t, "app-1", found.ID)
}

func TestCampaignItemsAndDecisions(t *testing.T) {
	store := newTestStore(t)

	campaign := &types.AccessReviewCampaign{
		ID:       "camp-1",
		TenantID: "t1",
		Name:     "Q1 review",
		Scope:    types.CampaignScope{Type: types.ScopeAll},
		Status:   types.CampaignDraft,
	}
	require.NoError(t, store.SaveCampaign(campaign))

	items := []types.AccessReviewItem{
		{ID: "item-1", CampaignID: "camp-1", TenantID: "t1", Decision: types.DecisionPending},
		{ID: "item-2", CampaignID: "camp-1", TenantID: "t1", Decision: types.DecisionPending},
	}
	require.NoError(t, store.SaveItems(items))

	listed, err := store.ListItemsByCampaign("camp-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	// Decision submission path: item + recomputed totals in one transaction
	items[0].Decision = types.DecisionApproved
	campaign.Totals = types.CampaignTotals{Total: 2, Reviewed: 1, Approved: 1}
	require.NoError(t, store.SaveItemWithTotals(&items[0], campaign))

	decision := &types.ReviewDecision{
		ID:         "dec-1",
		CampaignID: "camp-1",
		ItemID:     "item-1",
		TenantID:   "t1",
		Decision:   types.DecisionApproved,
		ReviewerID: "mgr-1",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.SaveDecision(decision))

	trail, err := store.ListDecisionsByCampaign("camp-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, types.DecisionApproved, trail[0].Decision)

	got, err := store.GetCampaign("t1", "camp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Totals.Approved)
}

func TestListCampaignsByStatus(t *testing.T) {
	store := newTestStore(t)

	for _, c := range []*types.AccessReviewCampaign{
		{ID: "c1", TenantID: "t1", Scope: types.CampaignScope{Type: types.ScopeAll}, Status: types.CampaignActive},
		{ID: "c2", TenantID: "t1", Scope: types.CampaignScope{Type: types.ScopeAll}, Status: types.CampaignCompleted},
	} {
		require.NoError(t, store.SaveCampaign(c))
	}

	active, err := store.ListCampaignsByStatus("t1", types.CampaignActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "c1", active[0].ID)
}
