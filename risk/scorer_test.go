package risk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardlabs/ward/types"
)

// stubAnalyzer returns a fixed assessment regardless of input.
type stubAnalyzer struct {
	assessment PermissionAssessment
}

func (s stubAnalyzer) AssessPermissions(scopes []string) PermissionAssessment {
	return s.assessment
}

func TestScoreApp_FlatFactors(t *testing.T) {
	// 12 scopes, no vendor, no website: 10 + 5 + 10 flat contributions
	scopes := make([]string, 12)
	for i := range scopes {
		scopes[i] = fmt.Sprintf("scope.%d", i)
	}

	app := types.DiscoveredApp{Name: "Acme Docs", Scopes: scopes}
	result := ScoreApp(app, stubAnalyzer{})

	assert.Equal(t, 25, result.Score)
	assert.Contains(t, result.Factors, "Unknown vendor")
	assert.Contains(t, result.Factors, "No website URL available")
	assert.Contains(t, result.Factors, "Excessive permissions (12 scopes)")
}

func TestScoreApp_CapAt100(t *testing.T) {
	app := types.DiscoveredApp{
		Name:   "Everything App",
		Scopes: []string{"a", "b"},
	}
	result := ScoreApp(app, stubAnalyzer{assessment: PermissionAssessment{
		RiskScore: 500,
		Reasons:   []string{"everything is risky"},
	}})

	assert.Equal(t, MaxScore, result.Score)
}

func TestScoreApp_CleanApp(t *testing.T) {
	app := types.DiscoveredApp{
		Name:    "Known Tool",
		Vendor:  "Known Vendor Inc",
		Website: "https://known.example.com",
	}
	result := ScoreApp(app, NewTableAnalyzer())

	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Factors)
}

func TestScoreApp_NilAnalyzer(t *testing.T) {
	app := types.DiscoveredApp{Name: "No Analyzer", Scopes: []string{"mail.read"}}
	result := ScoreApp(app, nil)

	// Only flat factors apply without an analyzer
	assert.Equal(t, unknownVendorRisk+noWebsiteRisk, result.Score)
}

func TestScoreApp_Deterministic(t *testing.T) {
	app := types.DiscoveredApp{
		Name:   "Mail Thing",
		Scopes: []string{"https://mail.google.com/mail.read", "drive.readonly"},
	}
	analyzer := NewTableAnalyzer()

	first := ScoreApp(app, analyzer)
	second := ScoreApp(app, analyzer)

	assert.Equal(t, first, second)
}

func TestTableAnalyzer_RiskyScopes(t *testing.T) {
	analyzer := NewTableAnalyzer()

	assessment := analyzer.AssessPermissions([]string{
		"Mail.Send",
		"Directory.ReadWrite.All",
		"harmless.scope",
	})

	assert.Equal(t, 45, assessment.RiskScore)
	assert.Len(t, assessment.Reasons, 2)
}

func TestTableAnalyzer_Empty(t *testing.T) {
	analyzer := NewTableAnalyzer()
	assessment := analyzer.AssessPermissions(nil)

	assert.Zero(t, assessment.RiskScore)
	assert.Empty(t, assessment.Reasons)
}
