package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlabs/ward/audit"
	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// SubmitDecision records a reviewer's verdict on one item. A revoked item is
// remediated immediately: its execution status always lands on completed or
// failed before this returns. The item and the campaign's recomputed totals
// are persisted atomically.
func (m *Manager) SubmitDecision(ctx context.Context, tenantID, campaignID, itemID string, decision types.Decision, reviewerID, comment string) (*types.AccessReviewItem, error) {
	ctx, span := m.tracer.Start(ctx, "review.submit_decision",
		trace.WithAttributes(
			attribute.String("campaign.id", campaignID),
			attribute.String("item.id", itemID),
			attribute.String("decision", string(decision))))
	defer span.End()

	switch decision {
	case types.DecisionApproved, types.DecisionRevoked, types.DecisionDeferred:
	default:
		return nil, fmt.Errorf("decision %q is not valid", decision)
	}
	if reviewerID == "" {
		return nil, fmt.Errorf("reviewer ID cannot be empty")
	}

	campaign, err := m.store.GetCampaign(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Status != types.CampaignActive {
		return nil, fmt.Errorf("campaign %s is %s, decisions require an active campaign", campaignID, campaign.Status)
	}

	item, err := m.store.GetItem(campaignID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get review item %s: %w", itemID, err)
	}

	now := m.now()
	item.Decision = decision
	item.DecidedBy = reviewerID
	item.DecidedAt = now

	record := &types.ReviewDecision{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		ItemID:     itemID,
		TenantID:   tenantID,
		Decision:   decision,
		ReviewerID: reviewerID,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := m.store.SaveDecision(record); err != nil {
		return nil, fmt.Errorf("save decision record: %w", err)
	}

	if decision == types.DecisionRevoked {
		m.executeRevocation(ctx, span, item)
	}

	if err := m.recomputeTotals(campaign, item); err != nil {
		return nil, err
	}

	if telemetry.ReviewDecisions != nil {
		telemetry.ReviewDecisions.Add(ctx, 1,
			metric.WithAttributes(attribute.String("decision", string(decision))))
	}

	if m.auditLog != nil {
		if err := m.auditLog.Append(audit.EntryReviewDecision, tenantID, itemID, record); err != nil {
			m.logger.WithContext(ctx).Error().Err(err).Msg("audit append failed")
		}
	}

	m.logger.WithContext(ctx).Info().
		Str("campaign_id", campaignID).
		Str("item_id", itemID).
		Str("decision", string(decision)).
		Str("reviewer_id", reviewerID).
		Msg("review decision recorded")

	return item, nil
}

// executeRevocation runs the revocation side effect. The item never stays
// pending: the outcome is completed or failed, with the failure captured on
// the item for retry tooling.
func (m *Manager) executeRevocation(ctx context.Context, span trace.Span, item *types.AccessReviewItem) {
	if err := m.revoker.RevokeUserAppAccess(ctx, item.UserID, item.AppID, item.TenantID); err != nil {
		item.ExecutionStatus = types.RemediationFailed
		item.ExecutionError = err.Error()

		telemetry.RecordRevocationEvent(span, item.TenantID, item.UserID, item.AppID, "failed", err.Error())
		if telemetry.RevocationFailures != nil {
			telemetry.RevocationFailures.Add(ctx, 1)
		}
		if m.auditLog != nil {
			data := map[string]any{"user_id": item.UserID, "app_id": item.AppID}
			if auditErr := m.auditLog.AppendError(audit.EntryRevocation, item.TenantID, item.ID, data, err); auditErr != nil {
				m.logger.WithContext(ctx).Error().Err(auditErr).Msg("audit append failed")
			}
		}

		m.logger.WithContext(ctx).Error().
			Err(err).
			Str("user_id", item.UserID).
			Str("app_id", item.AppID).
			Msg("revocation failed")
		return
	}

	item.ExecutionStatus = types.RemediationCompleted
	item.ExecutionError = ""

	telemetry.RecordRevocationEvent(span, item.TenantID, item.UserID, item.AppID, "completed", "")
	if m.auditLog != nil {
		data := map[string]any{"user_id": item.UserID, "app_id": item.AppID}
		if err := m.auditLog.Append(audit.EntryRevocation, item.TenantID, item.ID, data); err != nil {
			m.logger.WithContext(ctx).Error().Err(err).Msg("audit append failed")
		}
	}
}

// recomputeTotals rebuilds the campaign counters from the items and persists
// both the decided item and the campaign in one transaction.
func (m *Manager) recomputeTotals(campaign *types.AccessReviewCampaign, decided *types.AccessReviewItem) error {
	items, err := m.store.ListItemsByCampaign(campaign.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	totals := types.CampaignTotals{Total: len(items)}
	for i := range items {
		item := &items[i]
		if item.ID == decided.ID {
			item = decided
		}
		switch item.Decision {
		case types.DecisionApproved:
			totals.Approved++
		case types.DecisionRevoked:
			totals.Revoked++
		case types.DecisionDeferred:
			totals.Deferred++
		}
	}
	totals.Reviewed = totals.Approved + totals.Revoked + totals.Deferred
	campaign.Totals = totals

	if err := m.store.SaveItemWithTotals(decided, campaign); err != nil {
		return fmt.Errorf("save item with totals: %w", err)
	}
	return nil
}

// BulkItemError reports one failed item in a bulk submission.
type BulkItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// BulkResult summarizes a bulk decision submission.
type BulkResult struct {
	Submitted int             `json:"submitted"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Errors    []BulkItemError `json:"errors,omitempty"`
}

// SubmitBulkDecision applies one decision to many items. Items fail
// independently: a bad item ID or a failed write never aborts the rest.
func (m *Manager) SubmitBulkDecision(ctx context.Context, tenantID, campaignID string, itemIDs []string, decision types.Decision, reviewerID, comment string) (*BulkResult, error) {
	ctx, span := m.tracer.Start(ctx, "review.submit_bulk_decision",
		trace.WithAttributes(
			attribute.String("campaign.id", campaignID),
			attribute.Int("items.count", len(itemIDs))))
	defer span.End()

	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("bulk decision requires at least one item")
	}

	result := &BulkResult{Submitted: len(itemIDs)}
	for _, itemID := range itemIDs {
		if _, err := m.SubmitDecision(ctx, tenantID, campaignID, itemID, decision, reviewerID, comment); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{ItemID: itemID, Error: err.Error()})
			continue
		}
		result.Succeeded++
	}

	m.logger.WithContext(ctx).Info().
		Str("campaign_id", campaignID).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("bulk decision processed")

	return result, nil
}

// ComplianceReport is the artifact produced when a campaign completes.
type ComplianceReport struct {
	CampaignID   string               `json:"campaign_id"`
	TenantID     string               `json:"tenant_id"`
	CampaignName string               `json:"campaign_name"`
	GeneratedAt  string               `json:"generated_at"`
	Totals       types.CampaignTotals `json:"totals"`

	PendingItems int `json:"pending_items"`

	RevocationsCompleted int     `json:"revocations_completed"`
	RevocationsFailed    int     `json:"revocations_failed"`
	RevocationSuccess    float64 `json:"revocation_success_rate"`

	Reviewers     []string               `json:"reviewers"`
	DecisionTrail []types.ReviewDecision `json:"decision_trail"`
}

// CompleteCampaign closes an active campaign, produces its compliance report
// and announces the completion on the bus.
func (m *Manager) CompleteCampaign(ctx context.Context, tenantID, campaignID string) (*ComplianceReport, error) {
	ctx, span := m.tracer.Start(ctx, "review.complete_campaign",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	campaign, err := m.store.GetCampaign(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if campaign.Status != types.CampaignActive {
		return nil, fmt.Errorf("campaign %s is %s, only active campaigns complete", campaignID, campaign.Status)
	}

	items, err := m.store.ListItemsByCampaign(campaignID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	decisions, err := m.store.ListDecisionsByCampaign(campaignID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	now := m.now()
	report := &ComplianceReport{
		CampaignID:    campaign.ID,
		TenantID:      tenantID,
		CampaignName:  campaign.Name,
		GeneratedAt:   now.UTC().Format(time.RFC3339),
		Totals:        campaign.Totals,
		Reviewers:     uniqueReviewers(decisions),
		DecisionTrail: decisions,
	}

	for _, item := range items {
		if item.Decision == types.DecisionPending {
			report.PendingItems++
		}
		if item.Decision == types.DecisionRevoked {
			switch item.ExecutionStatus {
			case types.RemediationCompleted:
				report.RevocationsCompleted++
			case types.RemediationFailed:
				report.RevocationsFailed++
			}
		}
	}
	if total := report.RevocationsCompleted + report.RevocationsFailed; total > 0 {
		report.RevocationSuccess = float64(report.RevocationsCompleted) / float64(total)
	}

	campaign.Status = types.CampaignCompleted
	campaign.CompletedAt = now
	if err := m.store.SaveCampaign(campaign); err != nil {
		return nil, fmt.Errorf("complete campaign: %w", err)
	}

	m.bus.Publish(ctx, types.Event{
		Topic:    types.TopicAccessReviewCompleted,
		TenantID: tenantID,
		Payload: map[string]any{
			"tenantId":          tenantID,
			"campaignId":        campaign.ID,
			"campaignName":      campaign.Name,
			"totalItems":        campaign.Totals.Total,
			"reviewed":          campaign.Totals.Reviewed,
			"approved":          campaign.Totals.Approved,
			"revoked":           campaign.Totals.Revoked,
			"deferred":          campaign.Totals.Deferred,
			"revocationsFailed": report.RevocationsFailed,
		},
		OccurredAt: now,
	})

	if m.auditLog != nil {
		if err := m.auditLog.Append(audit.EntryCampaignCompleted, tenantID, campaign.ID, report); err != nil {
			m.logger.WithContext(ctx).Error().Err(err).Msg("audit append failed")
		}
	}

	m.logger.WithContext(ctx).Info().
		Str("campaign_id", campaign.ID).
		Int("reviewed", campaign.Totals.Reviewed).
		Int("revoked", campaign.Totals.Revoked).
		Msg("campaign completed")

	return report, nil
}
