// Package risk scores discovered applications. Scoring is a pure function of
// the app's metadata plus a permission-risk lookup, so it is fully
// deterministic and unit-testable.
package risk

import (
	"fmt"

	"github.com/wardlabs/ward/types"
)

// MaxScore caps every computed risk score.
const MaxScore = 100

// Flat contributions, each optional and additive.
const (
	unknownVendorRisk        = 10
	noWebsiteRisk            = 5
	excessivePermissionsRisk = 10
	excessivePermissionCount = 10
)

// PermissionAssessment is what the permission-risk analyzer returns for a set
// of OAuth scopes.
type PermissionAssessment struct {
	RiskScore int
	Reasons   []string
}

// PermissionAnalyzer maps OAuth permission scopes to risk. External
// collaborator: the default is a lookup table, a deployment may swap in a
// service-backed one.
type PermissionAnalyzer interface {
	AssessPermissions(scopes []string) PermissionAssessment
}

// Score is the result of scoring one application.
type Score struct {
	Score   int
	Factors []string
}

// ScoreApp computes a 0-100 risk score for a discovered application with the
// contributing factors in order. No I/O, no randomness.
func ScoreApp(app types.DiscoveredApp, analyzer PermissionAnalyzer) Score {
	var score int
	var factors []string

	if analyzer != nil && len(app.Scopes) > 0 {
		assessment := analyzer.AssessPermissions(app.Scopes)
		score += assessment.RiskScore
		factors = append(factors, assessment.Reasons...)
	}

	if app.Vendor == "" {
		score += unknownVendorRisk
		factors = append(factors, "Unknown vendor")
	}

	if app.Website == "" {
		score += noWebsiteRisk
		factors = append(factors, "No website URL available")
	}

	if len(app.Scopes) > excessivePermissionCount {
		score += excessivePermissionsRisk
		factors = append(factors, fmt.Sprintf("Excessive permissions (%d scopes)", len(app.Scopes)))
	}

	if score > MaxScore {
		score = MaxScore
	}

	return Score{Score: score, Factors: factors}
}
