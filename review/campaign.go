// Package review implements access-review campaigns: periodic recertification
// of who can use which application, with reviewer decisions driving automated
// revocation.
package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlabs/ward/audit"
	"github.com/wardlabs/ward/bus"
	"github.com/wardlabs/ward/connectors"
	"github.com/wardlabs/ward/storage"
	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// AutoApproveReviewer marks decisions made by the timeout sweep rather than a
// human.
const AutoApproveReviewer = "system:auto-approve"

// UnassignedReviewer marks items whose grant has no manager to route to.
const UnassignedReviewer = "unassigned"

// Item risk-factor contributions.
const (
	appRiskCriticalPoints  = 30
	appRiskHighPoints      = 20
	appRiskMediumPoints    = 10
	privilegedAccessPoints = 25
	staleOver180Points     = 30
	staleOver90Points      = 20
	staleOver30Points      = 10
	noJustificationPoints  = 10
)

// Manager owns campaign lifecycle, decision submission and remediation.
type Manager struct {
	store    *storage.Store
	bus      *bus.Bus
	revoker  connectors.Revoker
	auditLog *audit.Log
	logger   *telemetry.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewManager creates a review manager. The audit log may be nil.
func NewManager(store *storage.Store, eventBus *bus.Bus, revoker connectors.Revoker, auditLog *audit.Log) *Manager {
	return &Manager{
		store:    store,
		bus:      eventBus,
		revoker:  revoker,
		auditLog: auditLog,
		logger:   telemetry.NewLogger("access-review"),
		tracer:   otel.Tracer("access-review"),
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateCampaign creates a campaign in the draft state. Items are generated
// separately, which moves it to active.
func (m *Manager) CreateCampaign(ctx context.Context, tenantID, name string, scope types.CampaignScope, dueAt time.Time, autoApproveOnTimeout bool) (*types.AccessReviewCampaign, error) {
	if name == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}

	now := m.now()
	campaign := &types.AccessReviewCampaign{
		ID:                   uuid.NewString(),
		TenantID:             tenantID,
		Name:                 name,
		Scope:                scope,
		Status:               types.CampaignDraft,
		StartsAt:             now,
		DueAt:                dueAt,
		AutoApproveOnTimeout: autoApproveOnTimeout,
		CreatedAt:            now,
	}

	if err := m.store.SaveCampaign(campaign); err != nil {
		return nil, fmt.Errorf("save campaign: %w", err)
	}

	m.logger.WithContext(ctx).Info().
		Str("campaign_id", campaign.ID).
		Str("tenant_id", tenantID).
		Str("scope", string(scope.Type)).
		Msg("campaign created")

	return campaign, nil
}

// GenerateReviewItems snapshots the in-scope access grants into review items
// and activates the campaign. Items route to the grant's manager when one is
// known.
func (m *Manager) GenerateReviewItems(ctx context.Context, tenantID, campaignID string, grants []types.UserAccessGrant) ([]types.AccessReviewItem, error) {
	ctx, span := m.tracer.Start(ctx, "review.generate_items",
		trace.WithAttributes(
			attribute.String("campaign.id", campaignID),
			attribute.Int("grants.count", len(grants))))
	defer span.End()

	campaign, err := m.store.GetCampaign(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Status != types.CampaignDraft {
		return nil, fmt.Errorf("campaign %s is %s, items can only be generated from draft", campaignID, campaign.Status)
	}

	now := m.now()
	var items []types.AccessReviewItem
	for _, grant := range grants {
		if !inScope(campaign.Scope, grant) {
			continue
		}

		level, factors := assessGrant(grant, now)

		reviewer := grant.ManagerID
		if reviewer == "" {
			reviewer = UnassignedReviewer
		}

		item := types.AccessReviewItem{
			ID:               uuid.NewString(),
			CampaignID:       campaign.ID,
			TenantID:         tenantID,
			UserID:           grant.UserID,
			UserName:         grant.UserName,
			Department:       grant.Department,
			AppID:            grant.AppID,
			AppName:          grant.AppName,
			AccessType:       grant.AccessType,
			GrantedAt:        grant.GrantedAt,
			LastUsedAt:       grant.LastUsedAt,
			DaysSinceLastUse: daysSince(grant.LastUsedAt, grant.GrantedAt, now),
			Justification:    grant.Justification,
			RiskLevel:        level,
			RiskFactors:      factors,
			ReviewerID:       reviewer,
			Decision:         types.DecisionPending,
			ExecutionStatus:  types.RemediationPending,
		}
		items = append(items, item)
	}

	if err := m.store.SaveItems(items); err != nil {
		return nil, fmt.Errorf("save review items: %w", err)
	}

	campaign.Status = types.CampaignActive
	campaign.Totals = types.CampaignTotals{Total: len(items)}
	if err := m.store.SaveCampaign(campaign); err != nil {
		return nil, fmt.Errorf("activate campaign: %w", err)
	}

	m.logger.WithContext(ctx).Info().
		Str("campaign_id", campaign.ID).
		Int("items", len(items)).
		Int("grants_out_of_scope", len(grants)-len(items)).
		Msg("review items generated")

	return items, nil
}

// inScope applies the campaign's scope filter to one grant.
func inScope(scope types.CampaignScope, grant types.UserAccessGrant) bool {
	switch scope.Type {
	case types.ScopeDepartments:
		return containsString(scope.Departments, grant.Department)
	case types.ScopeApps:
		return containsString(scope.AppIDs, grant.AppID)
	case types.ScopeUsers:
		return containsString(scope.UserIDs, grant.UserID)
	default:
		return true
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// daysSince measures staleness: time since the grant was last used, falling
// back to its grant date when it has never been used.
func daysSince(lastUsed, granted, now time.Time) int {
	ref := lastUsed
	if ref.IsZero() {
		ref = granted
	}
	if ref.IsZero() || ref.After(now) {
		return 0
	}
	return int(now.Sub(ref).Hours() / 24)
}

// assessGrant scores one access grant into a risk level with its contributing
// factors. Points are additive; level thresholds are 60/40/20.
func assessGrant(grant types.UserAccessGrant, now time.Time) (types.RiskLevel, []string) {
	var points int
	var factors []string

	switch {
	case grant.AppRiskScore >= 75:
		points += appRiskCriticalPoints
		factors = append(factors, fmt.Sprintf("Critical-risk application (score %d)", grant.AppRiskScore))
	case grant.AppRiskScore >= 50:
		points += appRiskHighPoints
		factors = append(factors, fmt.Sprintf("High-risk application (score %d)", grant.AppRiskScore))
	case grant.AppRiskScore >= 25:
		points += appRiskMediumPoints
		factors = append(factors, fmt.Sprintf("Medium-risk application (score %d)", grant.AppRiskScore))
	}

	if grant.AccessType == "admin" || grant.AccessType == "owner" {
		points += privilegedAccessPoints
		factors = append(factors, fmt.Sprintf("Privileged access (%s)", grant.AccessType))
	}

	days := daysSince(grant.LastUsedAt, grant.GrantedAt, now)
	switch {
	case days > 180:
		points += staleOver180Points
		factors = append(factors, fmt.Sprintf("Not used in %d days", days))
	case days > 90:
		points += staleOver90Points
		factors = append(factors, fmt.Sprintf("Not used in %d days", days))
	case days > 30:
		points += staleOver30Points
		factors = append(factors, fmt.Sprintf("Not used in %d days", days))
	}

	if grant.Justification == "" {
		points += noJustificationPoints
		factors = append(factors, "No access justification on record")
	}

	switch {
	case points >= 60:
		return types.RiskCritical, factors
	case points >= 40:
		return types.RiskHigh, factors
	case points >= 20:
		return types.RiskMedium, factors
	default:
		return types.RiskLow, factors
	}
}

// SweepOverdueCampaigns finds active campaigns past their due date and, where
// the campaign opted in, auto-approves the still-pending items and completes
// it. Idempotent: completed campaigns are never revisited.
func (m *Manager) SweepOverdueCampaigns(ctx context.Context, tenantID string) (int, error) {
	ctx, span := m.tracer.Start(ctx, "review.sweep_overdue",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	active, err := m.store.ListCampaignsByStatus(tenantID, types.CampaignActive)
	if err != nil {
		return 0, fmt.Errorf("list active campaigns: %w", err)
	}

	now := m.now()
	closed := 0
	for i := range active {
		campaign := &active[i]
		if campaign.DueAt.IsZero() || now.Before(campaign.DueAt) {
			continue
		}
		if !campaign.AutoApproveOnTimeout {
			m.logger.WithContext(ctx).Warn().
				Str("campaign_id", campaign.ID).
				Time("due_at", campaign.DueAt).
				Msg("campaign overdue, waiting on reviewers")
			continue
		}

		if err := m.autoApprovePending(ctx, campaign); err != nil {
			m.logger.WithContext(ctx).Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Msg("auto-approve sweep failed")
			continue
		}
		if _, err := m.CompleteCampaign(ctx, tenantID, campaign.ID); err != nil {
			m.logger.WithContext(ctx).Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Msg("campaign completion failed")
			continue
		}
		closed++
	}

	return closed, nil
}

// autoApprovePending approves every undecided item on behalf of the system.
func (m *Manager) autoApprovePending(ctx context.Context, campaign *types.AccessReviewCampaign) error {
	items, err := m.store.ListItemsByCampaign(campaign.ID)
	if err != nil {
		return err
	}

	for i := range items {
		if items[i].Decision != types.DecisionPending {
			continue
		}
		if _, err := m.SubmitDecision(ctx, campaign.TenantID, campaign.ID, items[i].ID,
			types.DecisionApproved, AutoApproveReviewer, "auto-approved at campaign deadline"); err != nil {
			return err
		}
	}
	return nil
}

// uniqueReviewers collects the distinct reviewer IDs in a decision trail.
func uniqueReviewers(decisions []types.ReviewDecision) []string {
	seen := make(map[string]struct{})
	for _, d := range decisions {
		seen[d.ReviewerID] = struct{}{}
	}
	reviewers := make([]string, 0, len(seen))
	for r := range seen {
		reviewers = append(reviewers, r)
	}
	sort.Strings(reviewers)
	return reviewers
}
