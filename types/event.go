package types

import (
	"fmt"
	"time"
)

// Topic identifies a domain event stream. The set is closed: subscribers
// and policies reference these exact strings.
type Topic string

const (
	TopicAppDiscovered         Topic = "app.discovered"
	TopicOAuthRiskyPermission  Topic = "oauth.risky_permission"
	TopicLicenseUnused         Topic = "license.unused"
	TopicUserOffboarded        Topic = "user.offboarded"
	TopicContractRenewal       Topic = "contract.renewal_approaching"
	TopicBudgetExceeded        Topic = "budget.exceeded"
	TopicAnomalyDetected       Topic = "anomaly.detected"
	TopicAccessReviewCompleted Topic = "access_review.completed"
)

// Topics returns every known topic, in a stable order.
func Topics() []Topic {
	return []Topic{
		TopicAppDiscovered,
		TopicOAuthRiskyPermission,
		TopicLicenseUnused,
		TopicUserOffboarded,
		TopicContractRenewal,
		TopicBudgetExceeded,
		TopicAnomalyDetected,
		TopicAccessReviewCompleted,
	}
}

// KnownTopic reports whether t is part of the closed topic set.
func KnownTopic(t Topic) bool {
	for _, known := range Topics() {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a single domain event published on the bus. Payload shape varies
// per topic but always carries the tenant.
type Event struct {
	Topic      Topic          `json:"topic"`
	TenantID   string         `json:"tenant_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Validate ensures the event is routable.
func (e *Event) Validate() error {
	if e.Topic == "" {
		return fmt.Errorf("event topic cannot be empty")
	}
	if e.TenantID == "" {
		return fmt.Errorf("event tenant ID cannot be empty")
	}
	return nil
}

// PayloadString returns a string payload field, or "" if absent.
func (e *Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}
