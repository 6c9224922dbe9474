package detectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// DNSDetector checks the target's zone for anti-spoofing records: SPF,
// DMARC and DNSSEC signing. Lookup failures produce no findings; a
// broken resolver is not the target's problem.
type DNSDetector struct {
	resolver *DNSResolver
	logger   *logrus.Logger
}

func NewDNSDetector(resolver *DNSResolver, logger *logrus.Logger) *DNSDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &DNSDetector{resolver: resolver, logger: logger}
}

func (d *DNSDetector) Name() string { return "dns" }

func (d *DNSDetector) Detect(ctx context.Context, result *models.CrawlResult) []models.Finding {
	if d.resolver == nil {
		return nil
	}
	parsed, err := url.Parse(result.FinalURL)
	if err != nil || parsed.Hostname() == "" {
		return nil
	}
	domain := registrableDomain(parsed.Hostname())

	var findings []models.Finding

	spf, spfErr := d.lookupSPF(ctx, domain)
	if spfErr == nil && spf == "" {
		findings = append(findings, models.Finding{
			Category:       "dns",
			Severity:       models.SeverityHigh,
			Title:          "No SPF record published",
			Description:    "Without SPF any server can send mail claiming to be this domain.",
			Evidence:       fmt.Sprintf("no v=spf1 TXT record at %s", domain),
			Recommendation: "Publish an SPF record listing authorized senders, ending in -all.",
		})
	}

	dmarc, dmarcErr := d.lookupDMARC(ctx, domain)
	switch {
	case dmarcErr == nil && dmarc == "":
		findings = append(findings, models.Finding{
			Category:       "dns",
			Severity:       models.SeverityHigh,
			Title:          "No DMARC record published",
			Description:    "Receivers have no policy for mail that fails SPF/DKIM, so spoofed mail is delivered.",
			Evidence:       fmt.Sprintf("no TXT record at _dmarc.%s", domain),
			Recommendation: "Publish a DMARC record; start with p=quarantine and move to p=reject.",
		})
	case dmarcErr == nil && strings.Contains(dmarc, "p=none"):
		findings = append(findings, models.Finding{
			Category:       "dns",
			Severity:       models.SeverityMedium,
			Title:          "DMARC policy set to none",
			Description:    "A p=none policy only monitors; spoofed mail is still delivered.",
			Evidence:       truncate(dmarc, 120),
			Recommendation: "Tighten the DMARC policy to quarantine or reject once reporting looks clean.",
		})
	}

	signed, dsErr := d.resolver.HasDNSKEY(ctx, domain)
	if dsErr == nil && !signed {
		findings = append(findings, models.Finding{
			Category:       "dns",
			Severity:       models.SeverityLow,
			Title:          "Zone is not DNSSEC signed",
			Description:    "Resolvers cannot verify answers for this zone, leaving room for cache poisoning.",
			Evidence:       fmt.Sprintf("no DNSKEY records at %s", domain),
			Recommendation: "Enable DNSSEC signing at the DNS provider and publish DS records.",
		})
	}

	return findings
}

func (d *DNSDetector) lookupSPF(ctx context.Context, domain string) (string, error) {
	records, err := d.resolver.TXT(ctx, domain)
	if err != nil {
		d.logger.WithError(err).WithField("domain", domain).Debug("SPF lookup failed")
		return "", err
	}
	for _, txt := range records {
		if strings.HasPrefix(strings.ToLower(txt), "v=spf1") {
			return txt, nil
		}
	}
	return "", nil
}

func (d *DNSDetector) lookupDMARC(ctx context.Context, domain string) (string, error) {
	records, err := d.resolver.TXT(ctx, "_dmarc."+domain)
	if err != nil {
		// NXDOMAIN on _dmarc means no record, not a lookup failure.
		if strings.Contains(err.Error(), "NXDOMAIN") {
			return "", nil
		}
		d.logger.WithError(err).WithField("domain", domain).Debug("DMARC lookup failed")
		return "", err
	}
	for _, txt := range records {
		if strings.HasPrefix(strings.ToLower(txt), "v=dmarc1") {
			return txt, nil
		}
	}
	return "", nil
}

// registrableDomain trims obvious host prefixes. A full public-suffix
// walk is overkill for mail-policy lookups on scan targets.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	if strings.HasPrefix(host, "www.") {
		return strings.TrimPrefix(host, "www.")
	}
	return host
}
