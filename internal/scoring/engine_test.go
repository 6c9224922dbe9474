package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func TestPerfectScore(t *testing.T) {
	engine := NewEngine(nil)
	breakdown := engine.Score(nil, models.ScanMetadata{
		SSLCertificate: &models.SSLCertificate{Subject: "example.com"},
	})

	// No findings, all bonuses: 100 weighted + capped bonus, clamped.
	require.Equal(t, 100, breakdown.OverallScore)
	assert.Equal(t, "LOW", breakdown.RiskLevel)
	assert.Equal(t, "A+", breakdown.Grade)
	assert.Len(t, breakdown.Bonuses, 5)
}

func TestDeterministicAcrossOrderings(t *testing.T) {
	findings := []models.Finding{
		{Category: "ssl", Severity: models.SeverityCritical, Title: "expired cert"},
		{Category: "cookie", Severity: models.SeverityHigh, Title: "session cookie without HttpOnly"},
		{Category: "security", Severity: models.SeverityMedium, Title: "missing CSP"},
		{Category: "client", Severity: models.SeverityCritical, Title: "exposed key"},
		{Category: "library", Severity: models.SeverityMedium, Title: "old jquery"},
		{Category: "dns", Severity: models.SeverityHigh, Title: "no SPF"},
		{Category: "ai", Severity: models.SeverityHigh, Title: "direct provider call"},
	}
	engine := NewEngine(nil)
	meta := models.ScanMetadata{SSLCertificate: &models.SSLCertificate{}}

	reference := engine.Score(findings, meta)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Finding, len(findings))
		copy(shuffled, findings)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := engine.Score(shuffled, meta)
		require.Equal(t, reference.OverallScore, got.OverallScore)
		require.Equal(t, reference.Penalties, got.Penalties)
		require.Equal(t, reference.Categories, got.Categories)
	}
}

func TestDiminishingReturns(t *testing.T) {
	engine := NewEngine(nil)
	meta := models.ScanMetadata{}

	one := engine.Score([]models.Finding{
		{Category: "ssl", Severity: models.SeverityHigh, Title: "a"},
	}, meta)
	two := engine.Score([]models.Finding{
		{Category: "ssl", Severity: models.SeverityHigh, Title: "a"},
		{Category: "ssl", Severity: models.SeverityHigh, Title: "b"},
	}, meta)

	infra1 := one.Category(models.CategoryCriticalInfrastructure)
	infra2 := two.Category(models.CategoryCriticalInfrastructure)
	require.NotNil(t, infra1)
	require.NotNil(t, infra2)

	// First high costs 20, the second only 10 more.
	assert.InDelta(t, 80.0, infra1.Score, 0.001)
	assert.InDelta(t, 70.0, infra2.Score, 0.001)
}

func TestSeverityCaps(t *testing.T) {
	engine := NewEngine(nil)
	var findings []models.Finding
	for i := 0; i < 30; i++ {
		findings = append(findings, models.Finding{
			Category: "ssl",
			Severity: models.SeverityLow,
			Title:    string(rune('a' + i)),
		})
	}
	breakdown := engine.Score(findings, models.ScanMetadata{})
	infra := breakdown.Category(models.CategoryCriticalInfrastructure)
	require.NotNil(t, infra)
	// Low findings cap at 15 points regardless of count.
	assert.InDelta(t, 85.0, infra.Score, 0.001)
}

func TestAICategoryNotApplicableWithoutAI(t *testing.T) {
	engine := NewEngine(nil)
	breakdown := engine.Score([]models.Finding{
		{Category: "ssl", Severity: models.SeverityLow, Title: "x"},
	}, models.ScanMetadata{})

	ai := breakdown.Category(models.CategoryAISecurity)
	require.NotNil(t, ai)
	assert.False(t, ai.Applicable)
	assert.Zero(t, ai.Weight)
	assert.Zero(t, ai.WeightedImpact)

	// Remaining weights renormalize to sum 1.
	var total float64
	for _, cat := range breakdown.Categories {
		total += cat.Weight
	}
	assert.InDelta(t, 1.0, total, 0.0001)

	// critical_infrastructure held .30 of .90 applicable weight.
	infra := breakdown.Category(models.CategoryCriticalInfrastructure)
	assert.InDelta(t, 0.30/0.90, infra.Weight, 0.0001)
}

func TestAIFindingActivatesCategory(t *testing.T) {
	engine := NewEngine(nil)
	breakdown := engine.Score([]models.Finding{
		{Category: "owasp-llm-01", Severity: models.SeverityHigh, Title: "prompt injection"},
	}, models.ScanMetadata{})

	ai := breakdown.Category(models.CategoryAISecurity)
	require.NotNil(t, ai)
	assert.True(t, ai.Applicable)
	assert.InDelta(t, 80.0, ai.Score, 0.001)
}

func TestUnknownCategoryMapsToDataProtection(t *testing.T) {
	assert.Equal(t, models.CategoryDataProtection, MapCategory("something-new"))
	assert.Equal(t, models.CategoryAISecurity, MapCategory("owasp-llm-06"))
	assert.Equal(t, models.CategoryCriticalInfrastructure, MapCategory("waf"))
	assert.Equal(t, models.CategoryAuthentication, MapCategory("rate-limit"))
	assert.Equal(t, models.CategoryCodeQuality, MapCategory("graphql"))
}

func TestBonusesWithheld(t *testing.T) {
	engine := NewEngine(nil)
	findings := []models.Finding{
		{Category: "client", Severity: models.SeverityCritical, Title: "OpenAI key in page"},
		{Category: "cookie", Severity: models.SeverityHigh, Title: "session cookie readable"},
		{Category: "dns", Severity: models.SeverityHigh, Title: "no SPF record"},
		{Category: "security", Severity: models.SeverityMedium, Title: "Missing Content-Security-Policy header"},
	}
	breakdown := engine.Score(findings, models.ScanMetadata{})

	// No HTTPS cert, CSP finding present, high cookie finding, critical
	// client finding, high dns finding: nothing qualifies.
	assert.Empty(t, breakdown.Bonuses)
}

func TestRiskLadder(t *testing.T) {
	assert.Equal(t, "LOW", riskLevel(80))
	assert.Equal(t, "MEDIUM", riskLevel(79.9))
	assert.Equal(t, "MEDIUM", riskLevel(60))
	assert.Equal(t, "HIGH", riskLevel(59.9))
	assert.Equal(t, "HIGH", riskLevel(40))
	assert.Equal(t, "CRITICAL", riskLevel(39.9))
	assert.Equal(t, "CRITICAL", riskLevel(0))
}

func TestGradeLadder(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 97: "A+", 96.9: "A", 93: "A", 90: "A-",
		87: "B+", 83: "B", 80: "B-", 77: "C+", 73: "C", 70: "C-",
		67: "D+", 63: "D", 60: "D-", 59.9: "F", 0: "F",
	}
	for score, want := range cases {
		assert.Equal(t, want, grade(score), "score %v", score)
	}
}

func TestSummaryCountsBySeverity(t *testing.T) {
	engine := NewEngine(nil)
	breakdown := engine.Score([]models.Finding{
		{Category: "ssl", Severity: models.SeverityCritical, Title: "a"},
		{Category: "ssl", Severity: models.SeverityHigh, Title: "b"},
		{Category: "cookie", Severity: models.SeverityHigh, Title: "c"},
		{Category: "security", Severity: models.SeverityLow, Title: "d"},
	}, models.ScanMetadata{})

	assert.Equal(t, 4, breakdown.Summary.TotalFindings)
	assert.Equal(t, 1, breakdown.Summary.CriticalFindings)
	assert.Equal(t, 2, breakdown.Summary.HighFindings)
	assert.Equal(t, 0, breakdown.Summary.MediumFindings)
	assert.Equal(t, 1, breakdown.Summary.LowFindings)
}
