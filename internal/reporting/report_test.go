package reporting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func TestBuildCarriesCrawlAndScore(t *testing.T) {
	g := NewGenerator("1.2.3", nil)
	crawl := &models.CrawlResult{
		FinalURL:    "https://example.com/",
		Title:       "Example",
		StatusCode:  200,
		FetchMethod: models.FetchMethodBrowser,
		LoadTimeMs:  820,
		SSLCertificate: &models.SSLCertificate{
			Subject:    "example.com",
			Issuer:     "R11",
			ValidTo:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			SelfSigned: false,
			Source:     "browser",
		},
	}
	findings := []models.Finding{
		{Category: "security", Severity: models.SeverityMedium, Title: "Missing Content-Security-Policy header", Description: "d"},
	}
	score := &models.ScoreBreakdown{OverallScore: 85, RiskLevel: "LOW", Grade: "B"}

	report := g.Build("scan-1", "https://example.com", "example.com", crawl, findings, score)

	assert.Equal(t, "scan-1", report.Metadata.ScanID)
	assert.Equal(t, "1.2.3", report.Metadata.ToolVersion)
	assert.Equal(t, "https://example.com/", report.Crawl.FinalURL)
	assert.Equal(t, models.FetchMethodBrowser, report.Crawl.FetchMethod)
	require.NotNil(t, report.Crawl.Certificate)
	assert.Equal(t, "browser", report.Crawl.Certificate.Source)
	assert.Same(t, score, report.Score)
	assert.Len(t, report.Findings, 1)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestBuildWithoutCertificateOrFindings(t *testing.T) {
	g := NewGenerator("dev", nil)
	report := g.Build("scan-1", "http://example.com", "example.com",
		&models.CrawlResult{FinalURL: "http://example.com/"}, nil, &models.ScoreBreakdown{})

	assert.Nil(t, report.Crawl.Certificate)
	assert.NotNil(t, report.Findings, "findings must encode as [] not null")
	assert.Empty(t, report.Findings)
}

func TestEncodeRoundTrip(t *testing.T) {
	g := NewGenerator("dev", nil)
	report := g.Build("scan-1", "https://example.com", "example.com",
		&models.CrawlResult{FinalURL: "https://example.com/"},
		nil, &models.ScoreBreakdown{OverallScore: 100, RiskLevel: "LOW", Grade: "A+"})

	encoded, err := g.Encode(report)
	require.NoError(t, err)

	var decoded ScanReport
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, "scan-1", decoded.Metadata.ScanID)
	assert.Equal(t, 100, decoded.Score.OverallScore)
	assert.NotNil(t, decoded.Findings)
}
