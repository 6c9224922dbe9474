package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// CookieDetector flags cookies set without the standard protection
// flags. Session-looking cookies are penalized harder than the rest.
type CookieDetector struct {
	logger *logrus.Logger
}

func NewCookieDetector(logger *logrus.Logger) *CookieDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &CookieDetector{logger: logger}
}

func (d *CookieDetector) Name() string { return "cookies" }

var sessionCookieHints = []string{"session", "sess", "token", "auth", "jwt", "sid", "login"}

func looksLikeSessionCookie(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range sessionCookieHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func (d *CookieDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	var findings []models.Finding
	httpsSite := strings.HasPrefix(result.FinalURL, "https://")

	for _, c := range result.Cookies {
		sessionLike := looksLikeSessionCookie(c.Name)

		if !c.HTTPOnly {
			sev := models.SeverityLow
			if sessionLike {
				sev = models.SeverityHigh
			}
			findings = append(findings, models.Finding{
				Category:       "cookie",
				Severity:       sev,
				Title:          fmt.Sprintf("Cookie %q set without HttpOnly", c.Name),
				Description:    "Scripts on the page can read this cookie, so any XSS becomes session theft.",
				Evidence:       fmt.Sprintf("cookie %s on %s", c.Name, c.Domain),
				Recommendation: "Set the HttpOnly flag on cookies the client-side code does not need.",
			})
		}
		if httpsSite && !c.Secure {
			sev := models.SeverityLow
			if sessionLike {
				sev = models.SeverityHigh
			}
			findings = append(findings, models.Finding{
				Category:       "cookie",
				Severity:       sev,
				Title:          fmt.Sprintf("Cookie %q set without Secure", c.Name),
				Description:    "The cookie will also be sent over plain HTTP, where it can be intercepted.",
				Evidence:       fmt.Sprintf("cookie %s on %s", c.Name, c.Domain),
				Recommendation: "Set the Secure flag so the cookie is only sent over TLS.",
			})
		}
		if c.SameSite == "" || strings.EqualFold(c.SameSite, "None") {
			sev := models.SeverityLow
			if sessionLike && strings.EqualFold(c.SameSite, "None") {
				sev = models.SeverityMedium
			}
			findings = append(findings, models.Finding{
				Category:       "cookie",
				Severity:       sev,
				Title:          fmt.Sprintf("Cookie %q lacks SameSite protection", c.Name),
				Description:    "Without a SameSite restriction the cookie rides along on cross-site requests, enabling CSRF.",
				Evidence:       fmt.Sprintf("cookie %s SameSite=%q", c.Name, c.SameSite),
				Recommendation: "Set SameSite=Lax (or Strict for session cookies).",
			})
		}
	}
	return findings
}
