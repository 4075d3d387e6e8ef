// Package detector implements Shadow-IT detection: newly discovered
// applications are matched against the tenant catalog, classified, scored,
// persisted, and announced on the event bus.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlabs/ward/bus"
	"github.com/wardlabs/ward/risk"
	"github.com/wardlabs/ward/storage"
	"github.com/wardlabs/ward/telemetry"
	"github.com/wardlabs/ward/types"
)

// Recommended actions for a classified discovery.
const (
	ActionApprove     = "approve"
	ActionReview      = "review"
	ActionInvestigate = "investigate"
	ActionDeny        = "deny"
)

// Risky discoveries publish oauth.risky_permission above this score.
const riskyPermissionThreshold = 50

// Denied catalog entries boost the discovery's risk.
const deniedAppRiskBoost = 30

// Substring matching only applies to names at least this long, guarding
// against false positives on short names.
const minSubstringMatchLen = 4

// Detector runs the discovery → match → classify → persist → emit pipeline.
type Detector struct {
	store    *storage.Store
	bus      *bus.Bus
	analyzer risk.PermissionAnalyzer
	logger   *telemetry.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a detector.
func New(store *storage.Store, eventBus *bus.Bus, analyzer risk.PermissionAnalyzer) *Detector {
	return &Detector{
		store:    store,
		bus:      eventBus,
		analyzer: analyzer,
		logger:   telemetry.NewLogger("shadowit-detector"),
		tracer:   otel.Tracer("shadowit-detector"),
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// ProcessResult tallies one batch.
type ProcessResult struct {
	Processed        int      `json:"processed"`
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	ShadowITDetected int      `json:"shadow_it_detected"`
	Failed           int      `json:"failed"`
	Errors           []string `json:"errors,omitempty"`
}

// classification is the disposition of one discovered app.
type classification struct {
	isNewDiscovery    bool
	isUnapproved      bool
	recommendedAction string
	riskScore         int
	riskFactors       []string
	matched           *types.SaaSApp
	matchTier         string
}

// ProcessApps runs the pipeline over a connector sync batch. One app's
// failure is logged and counted but never aborts the batch.
func (d *Detector) ProcessApps(ctx context.Context, tenantID string, apps []types.DiscoveredApp) (*ProcessResult, error) {
	ctx, span := d.tracer.Start(ctx, "detector.process_apps",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("batch.size", len(apps))))
	defer span.End()

	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID cannot be empty")
	}

	d.logger.LogBatchOperation(ctx, "process_apps", len(apps))

	result := &ProcessResult{}
	for _, app := range apps {
		outcome, err := d.processApp(ctx, tenantID, app)
		result.Processed++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", app.Name, err))
			d.logger.WithContext(ctx).Error().
				Err(err).
				Str("app_name", app.Name).
				Str("tenant_id", tenantID).
				Msg("failed to process discovered app")
			continue
		}

		if outcome.isNewDiscovery {
			result.Created++
		} else {
			result.Updated++
		}
		if outcome.isUnapproved {
			result.ShadowITDetected++
		}
	}

	if telemetry.AppsDiscovered != nil {
		telemetry.AppsDiscovered.Add(ctx, int64(result.Processed),
			metric.WithAttributes(attribute.String("tenant", tenantID)))
	}

	d.logger.WithContext(ctx).Info().
		Str("tenant_id", tenantID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("shadow_it", result.ShadowITDetected).
		Int("failed", result.Failed).
		Msg("discovery batch processed")

	return result, nil
}

// processApp runs match → classify → persist → emit for one app.
func (d *Detector) processApp(ctx context.Context, tenantID string, app types.DiscoveredApp) (*classification, error) {
	ctx, span := d.tracer.Start(ctx, "detector.process_app",
		trace.WithAttributes(attribute.String("app.name", app.Name)))
	defer span.End()

	if app.Name == "" {
		return nil, fmt.Errorf("discovered app has no name")
	}

	score := risk.ScoreApp(app, d.analyzer)

	matched, tier, err := d.matchCatalog(tenantID, app)
	if err != nil {
		return nil, fmt.Errorf("catalog match: %w", err)
	}

	outcome := classify(matched, tier, score)

	if err := d.persist(tenantID, app, outcome); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	d.emit(ctx, tenantID, app, outcome)

	if outcome.isUnapproved {
		telemetry.RecordShadowITDetectedEvent(span, tenantID, app.Name,
			outcome.riskScore, string(types.RiskLevelForScore(outcome.riskScore)),
			outcome.recommendedAction, outcome.isNewDiscovery)
	}

	return outcome, nil
}

// matchCatalog finds an existing catalog entry using three tiers in order:
// exact normalized name, normalized vendor, then substring containment with
// a minimum-length guard. First match wins.
func (d *Detector) matchCatalog(tenantID string, app types.DiscoveredApp) (*types.SaaSApp, string, error) {
	normName := types.NormalizeName(app.Name)

	// Tier 1: exact normalized name
	if existing, err := d.store.FindAppByNormalizedName(tenantID, normName); err == nil {
		return existing, "exact", nil
	} else if err != storage.ErrNotFound {
		return nil, "", err
	}

	catalog, err := d.store.ListApps(tenantID)
	if err != nil {
		return nil, "", err
	}

	// Tier 2: normalized vendor
	if normVendor := types.NormalizeName(app.Vendor); normVendor != "" {
		for i := range catalog {
			if types.NormalizeName(catalog[i].Vendor) == normVendor {
				return &catalog[i], "vendor", nil
			}
		}
	}

	// Tier 3: substring containment, both names must clear the length guard
	if len(normName) >= minSubstringMatchLen {
		for i := range catalog {
			candidate := types.NormalizeName(catalog[i].Name)
			if len(candidate) < minSubstringMatchLen {
				continue
			}
			if strings.Contains(normName, candidate) || strings.Contains(candidate, normName) {
				return &catalog[i], "substring", nil
			}
		}
	}

	return nil, "", nil
}

// classify derives the approval disposition from the match outcome.
func classify(matched *types.SaaSApp, tier string, score risk.Score) *classification {
	outcome := &classification{
		riskScore:   score.Score,
		riskFactors: score.Factors,
		matched:     matched,
		matchTier:   tier,
	}

	if matched == nil {
		outcome.isNewDiscovery = true
		outcome.isUnapproved = true
		switch {
		case score.Score >= 75:
			outcome.recommendedAction = ActionInvestigate
		case score.Score >= 50:
			outcome.recommendedAction = ActionReview
		default:
			outcome.recommendedAction = ActionApprove
		}
		return outcome
	}

	switch matched.ApprovalStatus {
	case types.ApprovalDenied:
		outcome.isUnapproved = true
		outcome.recommendedAction = ActionDeny
		outcome.riskScore += deniedAppRiskBoost
		if outcome.riskScore > risk.MaxScore {
			outcome.riskScore = risk.MaxScore
		}
		outcome.riskFactors = append(outcome.riskFactors, "Previously denied by administrator")
	case types.ApprovalPending:
		outcome.isUnapproved = true
		outcome.recommendedAction = ActionReview
	default: // approved
		outcome.recommendedAction = ActionApprove
	}
	return outcome
}

// persist refreshes the matched catalog row or inserts a new one. Brand-new
// discoveries always land as pending, never auto-approved.
func (d *Detector) persist(tenantID string, app types.DiscoveredApp, outcome *classification) error {
	now := d.now()

	if outcome.matched != nil {
		entry := outcome.matched
		entry.RiskScore = outcome.riskScore
		entry.RiskFactors = outcome.riskFactors
		entry.LastSeenAt = now
		if len(app.Scopes) > 0 {
			entry.Scopes = app.Scopes
		}
		if entry.ExternalID == "" {
			entry.ExternalID = app.ExternalID
			entry.Source = app.Source
		}
		outcome.matched = entry
		return d.store.SaveApp(entry)
	}

	entry := &types.SaaSApp{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		Name:            app.Name,
		Vendor:          app.Vendor,
		Website:         app.Website,
		LogoURL:         app.LogoURL,
		Scopes:          app.Scopes,
		ApprovalStatus:  types.ApprovalPending,
		RiskScore:       outcome.riskScore,
		RiskFactors:     outcome.riskFactors,
		DiscoveryMethod: app.Source,
		ExternalID:      app.ExternalID,
		Source:          app.Source,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	outcome.matched = entry
	return d.store.SaveApp(entry)
}

// emit publishes the discovery events for unapproved classifications.
func (d *Detector) emit(ctx context.Context, tenantID string, app types.DiscoveredApp, outcome *classification) {
	if !outcome.isUnapproved {
		return
	}

	payload := map[string]any{
		"tenantId":          tenantID,
		"appId":             outcome.matched.ID,
		"appName":           app.Name,
		"vendor":            app.Vendor,
		"riskScore":         outcome.riskScore,
		"riskLevel":         string(types.RiskLevelForScore(outcome.riskScore)),
		"riskFactors":       outcome.riskFactors,
		"recommendedAction": outcome.recommendedAction,
		"isNewDiscovery":    outcome.isNewDiscovery,
		"scopeCount":        len(app.Scopes),
		"source":            app.Source,
	}

	d.bus.Publish(ctx, types.Event{
		Topic:      types.TopicAppDiscovered,
		TenantID:   tenantID,
		Payload:    payload,
		OccurredAt: d.now(),
	})

	if len(app.Scopes) >= 1 && outcome.riskScore >= riskyPermissionThreshold {
		d.bus.Publish(ctx, types.Event{
			Topic:    types.TopicOAuthRiskyPermission,
			TenantID: tenantID,
			Payload: map[string]any{
				"tenantId":  tenantID,
				"appId":     outcome.matched.ID,
				"appName":   app.Name,
				"riskScore": outcome.riskScore,
				"scopes":    app.Scopes,
			},
			OccurredAt: d.now(),
		})
	}
}

// CatalogSize reports how many catalog entries a tenant has.
func (d *Detector) CatalogSize(tenantID string) (int, error) {
	return d.store.CountApps(tenantID)
}
