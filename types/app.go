package types

import "time"

// ApprovalStatus is the catalog disposition of a SaaS application.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
)

// RiskLevel buckets a 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore maps a score to its bucket.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// DiscoveredApp is the normalized shape every identity-provider connector
// returns for an application it saw.
type DiscoveredApp struct {
	ExternalID string   `json:"external_id"`
	Source     string   `json:"source"` // connector name, e.g. "azuread", "okta"
	Name       string   `json:"name"`
	Vendor     string   `json:"vendor,omitempty"`
	Website    string   `json:"website,omitempty"`
	LogoURL    string   `json:"logo_url,omitempty"`
	Scopes     []string `json:"scopes,omitempty"`
}

// SaaSApp is a tenant catalog entry. Risk score and factors are recomputed on
// every sync; approval status only changes through an administrator.
type SaaSApp struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor,omitempty"`
	Website  string `json:"website,omitempty"`
	LogoURL  string `json:"logo_url,omitempty"`

	Scopes          []string       `json:"scopes,omitempty"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RiskScore       int            `json:"risk_score"`
	RiskFactors     []string       `json:"risk_factors,omitempty"`
	DiscoveryMethod string         `json:"discovery_method,omitempty"`

	ExternalID string `json:"external_id,omitempty"`
	Source     string `json:"source,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// OAuthToken is the normalized shape for a granted OAuth token.
type OAuthToken struct {
	ExternalID string    `json:"external_id"`
	UserID     string    `json:"user_id"`
	AppName    string    `json:"app_name"`
	Scopes     []string  `json:"scopes,omitempty"`
	GrantedAt  time.Time `json:"granted_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}
