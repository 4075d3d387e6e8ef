package types

import (
	"testing"
	"time"
)

func TestFinalize_AllSucceeded(t *testing.T) {
	exec := PolicyExecution{
		Status: ExecutionRunning,
		Actions: []ActionResult{
			{ActionType: "notify", Success: true},
			{ActionType: "escalate", Success: true},
		},
	}

	exec.Finalize(time.Now())

	if exec.Status != ExecutionSuccess {
		t.Errorf("Expected status success, got %s", exec.Status)
	}
	if exec.ActionsExecuted != 2 || exec.ActionsSucceeded != 2 || exec.ActionsFailed != 0 {
		t.Errorf("Unexpected counters: %d/%d/%d", exec.ActionsExecuted, exec.ActionsSucceeded, exec.ActionsFailed)
	}
}

func TestFinalize_PartialFailure(t *testing.T) {
	exec := PolicyExecution{
		Actions: []ActionResult{
			{ActionType: "notify", Success: true},
			{ActionType: "revoke", Success: false, Error: "api timeout"},
		},
	}

	exec.Finalize(time.Now())

	if exec.Status != ExecutionPartial {
		t.Errorf("Expected status partial, got %s", exec.Status)
	}
	if exec.ActionsExecuted != exec.ActionsSucceeded+exec.ActionsFailed {
		t.Errorf("Counter invariant violated: %d != %d + %d",
			exec.ActionsExecuted, exec.ActionsSucceeded, exec.ActionsFailed)
	}
}

func TestFinalize_AllFailed(t *testing.T) {
	exec := PolicyExecution{
		Actions: []ActionResult{
			{ActionType: "revoke", Success: false, Error: "no handler found"},
		},
	}

	exec.Finalize(time.Now())

	if exec.Status != ExecutionFailed {
		t.Errorf("Expected status failed, got %s", exec.Status)
	}
}

func TestFinalize_NoActions(t *testing.T) {
	exec := PolicyExecution{}
	exec.Finalize(time.Now())

	// Zero actions means nothing failed
	if exec.Status != ExecutionSuccess {
		t.Errorf("Expected status success for empty action list, got %s", exec.Status)
	}
}

func TestRiskLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLow},
		{24, RiskLow},
		{25, RiskMedium},
		{49, RiskMedium},
		{50, RiskHigh},
		{74, RiskHigh},
		{75, RiskCritical},
		{100, RiskCritical},
	}

	for _, tt := range tests {
		if got := RiskLevelForScore(tt.score); got != tt.want {
			t.Errorf("RiskLevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Docs", "acmedocs"},
		{"acme-docs", "acmedocs"},
		{"SLACK!", "slack"},
		{"Figma 2.0", "figma20"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEventValidate(t *testing.T) {
	evt := Event{Topic: TopicAppDiscovered, TenantID: "t1"}
	if err := evt.Validate(); err != nil {
		t.Errorf("Expected valid event, got %v", err)
	}

	missing := Event{Topic: TopicAppDiscovered}
	if err := missing.Validate(); err == nil {
		t.Error("Expected error for missing tenant ID")
	}
}

func TestPolicyValidate(t *testing.T) {
	p := Policy{
		ID:          "pol-1",
		TenantID:    "t1",
		Name:        "high risk apps",
		TriggerType: TopicAppDiscovered,
		Actions:     []PolicyAction{{Type: "notify"}},
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid policy, got %v", err)
	}

	p.TriggerType = "app.unknown"
	if err := p.Validate(); err == nil {
		t.Error("Expected error for unknown trigger topic")
	}
}
