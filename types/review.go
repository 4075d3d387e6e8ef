package types

import (
	"fmt"
	"time"
)

// CampaignStatus is the access-review campaign lifecycle state.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
)

// ScopeType selects which access grants a campaign reviews.
type ScopeType string

const (
	ScopeAll         ScopeType = "all"
	ScopeDepartments ScopeType = "departments"
	ScopeApps        ScopeType = "apps"
	ScopeUsers       ScopeType = "users"
)

// CampaignScope narrows the user-access snapshot a campaign covers.
type CampaignScope struct {
	Type        ScopeType `json:"type"`
	Departments []string  `json:"departments,omitempty"`
	AppIDs      []string  `json:"app_ids,omitempty"`
	UserIDs     []string  `json:"user_ids,omitempty"`
}

// CampaignTotals are aggregate item counters, recomputed on every decision.
type CampaignTotals struct {
	Total    int `json:"total"`
	Reviewed int `json:"reviewed"`
	Approved int `json:"approved"`
	Revoked  int `json:"revoked"`
	Deferred int `json:"deferred"`
}

// AccessReviewCampaign is one review cycle over a scope of access grants.
type AccessReviewCampaign struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenant_id"`
	Name     string         `json:"name"`
	Scope    CampaignScope  `json:"scope"`
	Status   CampaignStatus `json:"status"`

	StartsAt time.Time `json:"starts_at"`
	DueAt    time.Time `json:"due_at"`

	AutoApproveOnTimeout bool           `json:"auto_approve_on_timeout"`
	Totals               CampaignTotals `json:"totals"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Validate ensures the campaign is well-formed.
func (c *AccessReviewCampaign) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("campaign ID cannot be empty")
	}
	if c.TenantID == "" {
		return fmt.Errorf("campaign tenant ID cannot be empty")
	}
	switch c.Scope.Type {
	case ScopeAll, ScopeDepartments, ScopeApps, ScopeUsers:
	default:
		return fmt.Errorf("campaign scope type %q is not valid", c.Scope.Type)
	}
	return nil
}

// Decision is a reviewer's verdict on one access grant.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRevoked  Decision = "revoked"
	DecisionDeferred Decision = "deferred"
)

// ExecutionState tracks the revocation side effect of a revoked item.
type ExecutionState string

const (
	RemediationPending   ExecutionState = "pending"
	RemediationCompleted ExecutionState = "completed"
	RemediationFailed    ExecutionState = "failed"
)

// UserAccessGrant is the normalized (user, app) access snapshot connectors
// return; campaign items denormalize from it.
type UserAccessGrant struct {
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	UserEmail     string    `json:"user_email,omitempty"`
	Department    string    `json:"department,omitempty"`
	ManagerID     string    `json:"manager_id,omitempty"`
	AppID         string    `json:"app_id"`
	AppName       string    `json:"app_name"`
	AppRiskScore  int       `json:"app_risk_score"`
	AccessType    string    `json:"access_type"` // member, admin, owner
	GrantedAt     time.Time `json:"granted_at"`
	LastUsedAt    time.Time `json:"last_used_at,omitempty"`
	Justification string    `json:"justification,omitempty"`
}

// AccessReviewItem is one reviewable (user, app) pair inside a campaign.
type AccessReviewItem struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	TenantID   string `json:"tenant_id"`

	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Department string `json:"department,omitempty"`
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AccessType string `json:"access_type"`

	GrantedAt        time.Time `json:"granted_at"`
	LastUsedAt       time.Time `json:"last_used_at,omitempty"`
	DaysSinceLastUse int       `json:"days_since_last_use"`
	Justification    string    `json:"justification,omitempty"`

	RiskLevel   RiskLevel `json:"risk_level"`
	RiskFactors []string  `json:"risk_factors,omitempty"`

	ReviewerID string `json:"reviewer_id,omitempty"`

	Decision  Decision  `json:"decision"`
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at,omitempty"`

	ExecutionStatus ExecutionState `json:"execution_status"`
	ExecutionError  string         `json:"execution_error,omitempty"`
}

// ReviewDecision is the immutable audit record written alongside every
// decision submission.
type ReviewDecision struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	ItemID     string    `json:"item_id"`
	TenantID   string    `json:"tenant_id"`
	Decision   Decision  `json:"decision"`
	ReviewerID string    `json:"reviewer_id"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
