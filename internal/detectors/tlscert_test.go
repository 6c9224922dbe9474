package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

var certNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedCertDetector() *CertificateDetector {
	d := NewCertificateDetector(nil)
	d.now = func() time.Time { return certNow }
	return d
}

func healthyCert() *models.SSLCertificate {
	return &models.SSLCertificate{
		Subject:       "example.com",
		Issuer:        "R11",
		ValidFrom:     certNow.Add(-30 * 24 * time.Hour),
		ValidTo:       certNow.Add(60 * 24 * time.Hour),
		SignatureAlgo: "SHA256-RSA",
		Source:        "socket",
	}
}

func TestCertificateDetectorPlainHTTP(t *testing.T) {
	d := fixedCertDetector()
	findings := d.Detect(context.Background(), &models.CrawlResult{FinalURL: "http://example.com/"})

	require.Len(t, findings, 1)
	assert.Equal(t, "ssl", findings[0].Category)
	assert.Equal(t, models.SeverityCritical, findings[0].Severity)
	assert.Equal(t, "Site served over plain HTTP", findings[0].Title)
}

func TestCertificateDetectorHealthy(t *testing.T) {
	d := fixedCertDetector()
	findings := d.Detect(context.Background(), &models.CrawlResult{
		FinalURL:       "https://example.com/",
		SSLCertificate: healthyCert(),
	})
	assert.Empty(t, findings)
}

func TestCertificateDetectorExpired(t *testing.T) {
	d := fixedCertDetector()
	cert := healthyCert()
	cert.ValidTo = certNow.Add(-24 * time.Hour)

	findings := d.Detect(context.Background(), &models.CrawlResult{
		FinalURL:       "https://example.com/",
		SSLCertificate: cert,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityCritical, findings[0].Severity)
	assert.Equal(t, "TLS certificate expired or not yet valid", findings[0].Title)
}

func TestCertificateDetectorExpiringSoon(t *testing.T) {
	d := fixedCertDetector()
	cert := healthyCert()
	cert.ValidTo = certNow.Add(10 * 24 * time.Hour)

	findings := d.Detect(context.Background(), &models.CrawlResult{
		FinalURL:       "https://example.com/",
		SSLCertificate: cert,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityMedium, findings[0].Severity)
	assert.Contains(t, findings[0].Evidence, "10 days left")
}

func TestCertificateDetectorSelfSigned(t *testing.T) {
	d := fixedCertDetector()
	cert := healthyCert()
	cert.SelfSigned = true

	findings := d.Detect(context.Background(), &models.CrawlResult{
		FinalURL:       "https://example.com/",
		SSLCertificate: cert,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "Self-signed TLS certificate", findings[0].Title)
}

func TestCertificateDetectorWeakSignature(t *testing.T) {
	d := fixedCertDetector()
	cert := healthyCert()
	cert.SignatureAlgo = "SHA1-RSA"

	findings := d.Detect(context.Background(), &models.CrawlResult{
		FinalURL:       "https://example.com/",
		SSLCertificate: cert,
	})
	require.Len(t, findings, 1)
	assert.Equal(t, "TLS certificate uses a weak signature algorithm", findings[0].Title)
}

func TestCertificateDetectorNoCertificateNoFindings(t *testing.T) {
	d := fixedCertDetector()
	assert.Nil(t, d.Detect(context.Background(), &models.CrawlResult{FinalURL: "https://example.com/"}))
}
