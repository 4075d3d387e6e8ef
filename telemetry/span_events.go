package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordShadowITDetectedEvent emits a structured span event for an
// unapproved application discovery.
func RecordShadowITDetectedEvent(
	span trace.Span,
	tenantID string,
	appName string,
	riskScore int,
	riskLevel string,
	recommendedAction string,
	isNew bool,
) {
	if span == nil {
		return
	}

	span.AddEvent("governance.shadowit.detected", trace.WithAttributes(
		attribute.String("event.type", "governance.shadowit.detected"),
		attribute.String("tenant.id", tenantID),
		attribute.String("app.name", appName),
		attribute.Int("risk.score", riskScore),
		attribute.String("risk.level", riskLevel),
		attribute.String("recommended.action", recommendedAction),
		attribute.Bool("is_new_discovery", isNew),
	))
}

// RecordPolicyExecutedEvent emits a structured span event for a finished
// policy run.
func RecordPolicyExecutedEvent(
	span trace.Span,
	policyID string,
	policyName string,
	triggerTopic string,
	status string,
	actionsExecuted int,
	actionsFailed int,
) {
	if span == nil {
		return
	}

	span.AddEvent("governance.policy.executed", trace.WithAttributes(
		attribute.String("event.type", "governance.policy.executed"),
		attribute.String("policy.id", policyID),
		attribute.String("policy.name", policyName),
		attribute.String("trigger.topic", triggerTopic),
		attribute.String("status", status),
		attribute.Int("actions.executed", actionsExecuted),
		attribute.Int("actions.failed", actionsFailed),
	))
}

// RecordRevocationEvent emits a structured span event for a revocation
// side effect, successful or not.
func RecordRevocationEvent(
	span trace.Span,
	tenantID string,
	userID string,
	appID string,
	status string,
	errorMsg string,
) {
	if span == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("event.type", "governance.access.revoked"),
		attribute.String("tenant.id", tenantID),
		attribute.String("user.id", userID),
		attribute.String("app.id", appID),
		attribute.String("status", status),
	}

	if errorMsg != "" {
		attrs = append(attrs, attribute.String("error", errorMsg))
	}

	span.AddEvent("governance.access.revoked", trace.WithAttributes(attrs...))
}
