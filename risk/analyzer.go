package risk

import (
	"fmt"
	"strings"
)

// scopeRule is one entry in the permission-risk lookup table.
type scopeRule struct {
	fragment string
	risk     int
	reason   string
}

// TableAnalyzer is the default PermissionAnalyzer: a static lookup table
// keyed on scope substrings, covering the common Google Workspace / Microsoft
// Graph / Okta permission families.
type TableAnalyzer struct {
	rules []scopeRule
}

// NewTableAnalyzer builds the default lookup table.
func NewTableAnalyzer() *TableAnalyzer {
	return &TableAnalyzer{
		rules: []scopeRule{
			{"mail.send", 20, "Can send mail on the user's behalf"},
			{"mail.read", 15, "Can read the user's mailbox"},
			{"gmail", 15, "Full mailbox access"},
			{"drive", 15, "Can access files in cloud storage"},
			{"files.readwrite.all", 20, "Can modify all organization files"},
			{"directory.readwrite", 25, "Can modify the user directory"},
			{"directory.read", 10, "Can read the user directory"},
			{"user.readwrite.all", 20, "Can modify all user profiles"},
			{"calendar", 5, "Can access calendars"},
			{"contacts", 10, "Can access contacts"},
			{"admin", 25, "Requests administrative privileges"},
			{"offline_access", 10, "Keeps access without an active session"},
		},
	}
}

// AssessPermissions sums the table risk of every matching scope. Each risky
// scope contributes one human-readable reason.
func (a *TableAnalyzer) AssessPermissions(scopes []string) PermissionAssessment {
	var assessment PermissionAssessment

	for _, scope := range scopes {
		lower := strings.ToLower(scope)
		for _, rule := range a.rules {
			if strings.Contains(lower, rule.fragment) {
				assessment.RiskScore += rule.risk
				assessment.Reasons = append(assessment.Reasons,
					fmt.Sprintf("%s (%s)", rule.reason, scope))
				break
			}
		}
	}

	return assessment
}
