package detectors

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// SecretDetector scans client-delivered content (the document, inline
// scripts and captured response bodies) for credentials that should
// never reach a browser.
type SecretDetector struct {
	logger *logrus.Logger
}

func NewSecretDetector(logger *logrus.Logger) *SecretDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &SecretDetector{logger: logger}
}

func (d *SecretDetector) Name() string { return "secrets" }

type secretPattern struct {
	name     string
	severity models.Severity
	re       *regexp.Regexp
}

// Patterns match published key formats. The generic bearer pattern is
// scored lower because it catches short-lived tokens too.
var secretPatterns = []secretPattern{
	{"Anthropic API key", models.SeverityCritical, regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]{20,}`)},
	{"OpenAI API key", models.SeverityCritical, regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9]{20,}`)},
	{"AWS access key ID", models.SeverityCritical, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"Google API key", models.SeverityCritical, regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`)},
	{"Stripe live secret key", models.SeverityCritical, regexp.MustCompile(`\bsk_live_[0-9a-zA-Z]{24,}\b`)},
	{"GitHub personal access token", models.SeverityCritical, regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`)},
	{"Slack token", models.SeverityHigh, regexp.MustCompile(`\bxox[bpoas]-[0-9A-Za-z\-]{10,}\b`)},
	{"Bearer token in page content", models.SeverityMedium, regexp.MustCompile(`[Bb]earer\s+[A-Za-z0-9\-._~+/]{30,}=*`)},
}

func (d *SecretDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	sources := []struct {
		label   string
		content string
	}{
		{"page HTML", result.HTML},
	}
	for _, resp := range result.NetworkResponses {
		if resp.Body != "" {
			sources = append(sources, struct {
				label   string
				content string
			}{fmt.Sprintf("response body from %s", resp.URL), resp.Body})
		}
	}

	var findings []models.Finding
	seen := make(map[string]bool)
	for _, src := range sources {
		if src.content == "" {
			continue
		}
		for _, pat := range secretPatterns {
			match := pat.re.FindString(src.content)
			if match == "" {
				continue
			}
			key := pat.name + "|" + redact(match)
			if seen[key] {
				continue
			}
			seen[key] = true
			findings = append(findings, models.Finding{
				Category:       "client",
				Severity:       pat.severity,
				Title:          fmt.Sprintf("%s exposed in client-side content", pat.name),
				Description:    "A credential is visible to anyone who loads the page; it must be considered compromised.",
				Evidence:       fmt.Sprintf("%s in %s", redact(match), src.label),
				Recommendation: "Revoke the credential immediately and move the call that uses it server-side.",
			})
		}
	}

	if result.JSSignals != nil && result.JSSignals.HasOpenAIKey {
		findings = append(findings, models.Finding{
			Category:       "client",
			Severity:       models.SeverityCritical,
			Title:          "OpenAI API key exposed in JavaScript configuration",
			Description:    "A global AI configuration object carries an API key readable by any script on the page.",
			Evidence:       "window AI config object contains an sk- prefixed key",
			Recommendation: "Proxy AI requests through a backend; never ship provider keys to the browser.",
		})
	}

	return findings
}

// redact keeps enough of a match to identify it without republishing
// the secret in reports.
func redact(secret string) string {
	if len(secret) <= 12 {
		return secret[:4] + "..."
	}
	return secret[:8] + "..." + secret[len(secret)-4:]
}
