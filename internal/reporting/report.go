package reporting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// ScanReport is the persisted report payload for one completed scan:
// the score breakdown, the findings behind it and the crawl metadata
// needed to reproduce the verdict. Rendering is a consumer concern.
type ScanReport struct {
	Metadata    ReportMetadata         `json:"metadata"`
	Crawl       CrawlSummary           `json:"crawl"`
	Score       *models.ScoreBreakdown `json:"score"`
	Findings    []models.Finding       `json:"findings"`
	GeneratedAt time.Time              `json:"generated_at"`
}

type ReportMetadata struct {
	ScanID      string `json:"scan_id"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	ToolVersion string `json:"tool_version"`
}

type CrawlSummary struct {
	FinalURL    string              `json:"final_url"`
	Title       string              `json:"title,omitempty"`
	StatusCode  int                 `json:"status_code"`
	FetchMethod models.FetchMethod  `json:"fetch_method"`
	LoadTimeMs  int64               `json:"load_time_ms"`
	Certificate *CertificateSummary `json:"certificate,omitempty"`
}

type CertificateSummary struct {
	Subject    string    `json:"subject"`
	Issuer     string    `json:"issuer"`
	ValidTo    time.Time `json:"valid_to"`
	SelfSigned bool      `json:"self_signed"`
	Source     string    `json:"source"`
}

// Generator assembles scan reports.
type Generator struct {
	toolVersion string
	logger      *logrus.Logger
}

func NewGenerator(toolVersion string, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{toolVersion: toolVersion, logger: logger}
}

// Build assembles the report for one scan.
func (g *Generator) Build(scanID, requestedURL, domain string, crawl *models.CrawlResult, findings []models.Finding, score *models.ScoreBreakdown) *ScanReport {
	report := &ScanReport{
		Metadata: ReportMetadata{
			ScanID:      scanID,
			URL:         requestedURL,
			Domain:      domain,
			ToolVersion: g.toolVersion,
		},
		Crawl: CrawlSummary{
			FinalURL:    crawl.FinalURL,
			Title:       crawl.Title,
			StatusCode:  crawl.StatusCode,
			FetchMethod: crawl.FetchMethod,
			LoadTimeMs:  crawl.LoadTimeMs,
		},
		Score:       score,
		Findings:    findings,
		GeneratedAt: time.Now().UTC(),
	}
	if findings == nil {
		report.Findings = []models.Finding{}
	}
	if cert := crawl.SSLCertificate; cert != nil {
		report.Crawl.Certificate = &CertificateSummary{
			Subject:    cert.Subject,
			Issuer:     cert.Issuer,
			ValidTo:    cert.ValidTo,
			SelfSigned: cert.SelfSigned,
			Source:     cert.Source,
		}
	}
	return report
}

// Encode serializes a report for storage.
func (g *Generator) Encode(report *ScanReport) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(data), nil
}
