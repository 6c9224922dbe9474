package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// HeaderDetector checks the response headers of the main document for
// missing or weak security headers and leaky server banners.
type HeaderDetector struct {
	logger *logrus.Logger
}

func NewHeaderDetector(logger *logrus.Logger) *HeaderDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &HeaderDetector{logger: logger}
}

func (d *HeaderDetector) Name() string { return "headers" }

type headerRule struct {
	header         string
	severity       models.Severity
	title          string
	description    string
	recommendation string
}

var headerRules = []headerRule{
	{
		header:         "Content-Security-Policy",
		severity:       models.SeverityMedium,
		title:          "Missing Content-Security-Policy header",
		description:    "Without a CSP the browser will execute any injected script, making XSS far easier to exploit.",
		recommendation: "Define a Content-Security-Policy that restricts script sources to trusted origins.",
	},
	{
		header:         "Strict-Transport-Security",
		severity:       models.SeverityMedium,
		title:          "Missing Strict-Transport-Security header",
		description:    "Browsers may still attempt plain-HTTP connections, exposing users to downgrade attacks.",
		recommendation: "Send Strict-Transport-Security with a max-age of at least one year.",
	},
	{
		header:         "X-Frame-Options",
		severity:       models.SeverityLow,
		title:          "Missing X-Frame-Options header",
		description:    "The page can be framed by other origins, enabling clickjacking.",
		recommendation: "Send X-Frame-Options: DENY or use the frame-ancestors CSP directive.",
	},
	{
		header:         "X-Content-Type-Options",
		severity:       models.SeverityLow,
		title:          "Missing X-Content-Type-Options header",
		description:    "Browsers may MIME-sniff responses into executable types.",
		recommendation: "Send X-Content-Type-Options: nosniff.",
	},
	{
		header:         "Referrer-Policy",
		severity:       models.SeverityLow,
		title:          "Missing Referrer-Policy header",
		description:    "Full URLs including query strings may leak to third parties via the Referer header.",
		recommendation: "Send Referrer-Policy: strict-origin-when-cross-origin or stricter.",
	},
}

func (d *HeaderDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	if result.ResponseHeaders == nil {
		return nil
	}

	var findings []models.Finding
	for _, rule := range headerRules {
		if result.Header(rule.header) != "" {
			continue
		}
		findings = append(findings, models.Finding{
			Category:       "security",
			Severity:       rule.severity,
			Title:          rule.title,
			Description:    rule.description,
			Evidence:       fmt.Sprintf("%s header absent on %s", rule.header, result.FinalURL),
			Recommendation: rule.recommendation,
		})
	}

	if csp := result.Header("Content-Security-Policy"); csp != "" {
		lower := strings.ToLower(csp)
		if strings.Contains(lower, "unsafe-inline") || strings.Contains(lower, "unsafe-eval") {
			findings = append(findings, models.Finding{
				Category:       "security",
				Severity:       models.SeverityLow,
				Title:          "Weak Content-Security-Policy directives",
				Description:    "The CSP allows unsafe-inline or unsafe-eval, which largely defeats its XSS protection.",
				Evidence:       truncate(csp, 200),
				Recommendation: "Remove unsafe-inline and unsafe-eval; use nonces or hashes for inline scripts.",
			})
		}
	}

	if server := result.Header("Server"); server != "" && strings.ContainsAny(server, "0123456789") {
		findings = append(findings, models.Finding{
			Category:       "reconnaissance",
			Severity:       models.SeverityLow,
			Title:          "Server header discloses software version",
			Description:    "Version details let attackers match the server against known CVEs.",
			Evidence:       fmt.Sprintf("Server: %s", server),
			Recommendation: "Strip or genericize the Server header at the edge.",
		})
	}
	if powered := result.Header("X-Powered-By"); powered != "" {
		findings = append(findings, models.Finding{
			Category:       "reconnaissance",
			Severity:       models.SeverityLow,
			Title:          "X-Powered-By header discloses technology stack",
			Description:    "Framework fingerprints narrow down the attack surface for known exploits.",
			Evidence:       fmt.Sprintf("X-Powered-By: %s", powered),
			Recommendation: "Remove the X-Powered-By header.",
		})
	}

	if strings.EqualFold(result.Header("Access-Control-Allow-Origin"), "*") &&
		strings.EqualFold(result.Header("Access-Control-Allow-Credentials"), "true") {
		findings = append(findings, models.Finding{
			Category:       "cors",
			Severity:       models.SeverityHigh,
			Title:          "CORS allows credentialed requests from any origin",
			Description:    "Wildcard origin combined with credentials lets any site read authenticated responses.",
			Evidence:       "Access-Control-Allow-Origin: * with Access-Control-Allow-Credentials: true",
			Recommendation: "Echo only an allowlist of trusted origins when credentials are allowed.",
		})
	}

	return findings
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
