package detectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// CertificateDetector evaluates the observed TLS certificate and flags
// plain-HTTP sites.
type CertificateDetector struct {
	now    func() time.Time
	logger *logrus.Logger
}

func NewCertificateDetector(logger *logrus.Logger) *CertificateDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &CertificateDetector{now: time.Now, logger: logger}
}

func (d *CertificateDetector) Name() string { return "tlscert" }

const certExpiryWarning = 30 * 24 * time.Hour

func (d *CertificateDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	if strings.HasPrefix(result.FinalURL, "http://") {
		return []models.Finding{{
			Category:       "ssl",
			Severity:       models.SeverityCritical,
			Title:          "Site served over plain HTTP",
			Description:    "All traffic including credentials and cookies crosses the network unencrypted.",
			Evidence:       result.FinalURL,
			Recommendation: "Serve the site over HTTPS and redirect HTTP to it.",
		}}
	}

	cert := result.SSLCertificate
	if cert == nil {
		return nil
	}

	var findings []models.Finding
	now := d.now()

	if cert.Expired(now) {
		findings = append(findings, models.Finding{
			Category:       "ssl",
			Severity:       models.SeverityCritical,
			Title:          "TLS certificate expired or not yet valid",
			Description:    "Browsers will show interstitial warnings and clients may refuse to connect.",
			Evidence:       fmt.Sprintf("valid %s to %s", cert.ValidFrom.Format(time.RFC3339), cert.ValidTo.Format(time.RFC3339)),
			Recommendation: "Renew the certificate and automate rotation.",
		})
	} else if remaining := cert.ValidTo.Sub(now); remaining < certExpiryWarning {
		findings = append(findings, models.Finding{
			Category:       "ssl",
			Severity:       models.SeverityMedium,
			Title:          "TLS certificate expires soon",
			Description:    "The certificate is inside its final 30 days of validity.",
			Evidence:       fmt.Sprintf("expires %s (%d days left)", cert.ValidTo.Format(time.RFC3339), int(remaining.Hours()/24)),
			Recommendation: "Renew before expiry; prefer automated issuance.",
		})
	}

	if cert.SelfSigned {
		findings = append(findings, models.Finding{
			Category:       "ssl",
			Severity:       models.SeverityHigh,
			Title:          "Self-signed TLS certificate",
			Description:    "Clients cannot verify the server identity; connections are trivially interceptable.",
			Evidence:       fmt.Sprintf("subject and issuer both %q", cert.Subject),
			Recommendation: "Obtain a certificate from a publicly trusted CA.",
		})
	}

	if algo := strings.ToLower(cert.SignatureAlgo); strings.Contains(algo, "sha1") || strings.Contains(algo, "md5") {
		findings = append(findings, models.Finding{
			Category:       "ssl",
			Severity:       models.SeverityHigh,
			Title:          "TLS certificate uses a weak signature algorithm",
			Description:    "SHA-1 and MD5 signatures are collision-prone and rejected by modern clients.",
			Evidence:       cert.SignatureAlgo,
			Recommendation: "Reissue the certificate with SHA-256 or better.",
		})
	}

	return findings
}
