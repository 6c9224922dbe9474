package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func headerResult(headers map[string]string) *models.CrawlResult {
	return &models.CrawlResult{
		FinalURL:        "https://example.com/",
		StatusCode:      200,
		Success:         true,
		ResponseHeaders: headers,
	}
}

func titles(findings []models.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Title)
	}
	return out
}

func TestHeaderDetectorAllMissing(t *testing.T) {
	d := NewHeaderDetector(nil)
	findings := d.Detect(context.Background(), headerResult(map[string]string{
		"content-type": "text/html",
	}))

	got := titles(findings)
	assert.Contains(t, got, "Missing Content-Security-Policy header")
	assert.Contains(t, got, "Missing Strict-Transport-Security header")
	assert.Contains(t, got, "Missing X-Frame-Options header")
	assert.Contains(t, got, "Missing X-Content-Type-Options header")
	assert.Contains(t, got, "Missing Referrer-Policy header")
	assert.Len(t, findings, 5)
}

func TestHeaderDetectorLookupIsCaseInsensitive(t *testing.T) {
	d := NewHeaderDetector(nil)
	findings := d.Detect(context.Background(), headerResult(map[string]string{
		"content-security-policy":   "default-src 'self'",
		"strict-transport-security": "max-age=31536000",
		"x-frame-options":           "DENY",
		"x-content-type-options":    "nosniff",
		"referrer-policy":           "strict-origin-when-cross-origin",
	}))
	assert.Empty(t, findings)
}

func TestHeaderDetectorWeakCSP(t *testing.T) {
	d := NewHeaderDetector(nil)
	findings := d.Detect(context.Background(), headerResult(map[string]string{
		"Content-Security-Policy": "default-src 'self'; script-src 'self' 'unsafe-inline'",
	}))

	assert.Contains(t, titles(findings), "Weak Content-Security-Policy directives")
	// A weak CSP is still a present CSP.
	assert.NotContains(t, titles(findings), "Missing Content-Security-Policy header")
}

func TestHeaderDetectorVersionDisclosure(t *testing.T) {
	d := NewHeaderDetector(nil)

	findings := d.Detect(context.Background(), headerResult(map[string]string{
		"Server":       "nginx/1.18.0",
		"X-Powered-By": "PHP/8.1.2",
	}))
	got := titles(findings)
	assert.Contains(t, got, "Server header discloses software version")
	assert.Contains(t, got, "X-Powered-By header discloses technology stack")

	// A bare product name without a version is fine.
	findings = d.Detect(context.Background(), headerResult(map[string]string{"Server": "nginx"}))
	assert.NotContains(t, titles(findings), "Server header discloses software version")
}

func TestHeaderDetectorCORSWildcardWithCredentials(t *testing.T) {
	d := NewHeaderDetector(nil)
	findings := d.Detect(context.Background(), headerResult(map[string]string{
		"Access-Control-Allow-Origin":      "*",
		"Access-Control-Allow-Credentials": "true",
	}))

	var cors *models.Finding
	for i := range findings {
		if findings[i].Category == "cors" {
			cors = &findings[i]
		}
	}
	require.NotNil(t, cors)
	assert.Equal(t, models.SeverityHigh, cors.Severity)
}

func TestHeaderDetectorNoHeadersMeansNoFindings(t *testing.T) {
	d := NewHeaderDetector(nil)
	assert.Nil(t, d.Detect(context.Background(), &models.CrawlResult{FinalURL: "https://example.com/"}))
}
