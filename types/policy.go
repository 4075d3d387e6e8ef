package types

import (
	"fmt"
	"time"
)

// PolicyAction is one step in a policy's remediation chain.
type PolicyAction struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// PolicyStats accumulates execution outcomes per policy.
type PolicyStats struct {
	Succeeded int64 `json:"succeeded"`
	Partial   int64 `json:"partial"`
	Failed    int64 `json:"failed"`
}

// Total returns the number of recorded executions.
func (s PolicyStats) Total() int64 {
	return s.Succeeded + s.Partial + s.Failed
}

// Policy is a tenant-scoped declarative automation rule. The engine reads it,
// and mutates only LastExecutedAt and Stats after a run.
type Policy struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	TriggerType Topic  `json:"trigger_type"`
	Enabled     bool   `json:"enabled"`

	// Conditions maps payload field names to predicates; empty means the
	// policy matches every event on its trigger topic.
	Conditions map[string]any `json:"conditions,omitempty"`

	Actions []PolicyAction `json:"actions"`

	CooldownMinutes     int `json:"cooldown_minutes"`
	MaxExecutionsPerDay int `json:"max_executions_per_day"`

	LastExecutedAt time.Time   `json:"last_executed_at,omitempty"`
	Stats          PolicyStats `json:"stats"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate ensures the policy has required fields.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy ID cannot be empty")
	}
	if p.TenantID == "" {
		return fmt.Errorf("policy tenant ID cannot be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if !KnownTopic(p.TriggerType) {
		return fmt.Errorf("policy trigger type %q is not a known topic", p.TriggerType)
	}
	for i, action := range p.Actions {
		if action.Type == "" {
			return fmt.Errorf("policy action %d has no type", i)
		}
	}
	return nil
}

// Cooldown returns the cooldown window as a duration.
func (p *Policy) Cooldown() time.Duration {
	return time.Duration(p.CooldownMinutes) * time.Minute
}
