package detectors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// Detector inspects one crawl result and emits findings. Detectors must
// tolerate absent optional fields: a lightweight crawl has no network
// traffic or JS signals, and a failed certificate fetch leaves
// SSLCertificate nil.
type Detector interface {
	Name() string
	Detect(ctx context.Context, result *models.CrawlResult) []models.Finding
}

// Registry runs a fixed set of detectors over a crawl result. Detectors
// run concurrently; the combined finding list is sorted afterwards so
// output never depends on completion order.
type Registry struct {
	detectors []Detector
	logger    *logrus.Logger
}

func NewRegistry(logger *logrus.Logger, detectors ...Detector) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{detectors: detectors, logger: logger}
}

// DefaultRegistry wires the full detector set.
func DefaultRegistry(resolver *DNSResolver, logger *logrus.Logger) *Registry {
	return NewRegistry(logger,
		NewHeaderDetector(logger),
		NewCookieDetector(logger),
		NewCertificateDetector(logger),
		NewSecretDetector(logger),
		NewAIDetector(logger),
		NewLibraryDetector(logger),
		NewDNSDetector(resolver, logger),
	)
}

// Run executes every detector and returns the merged findings plus the
// metadata the scoring engine needs.
func (r *Registry) Run(ctx context.Context, result *models.CrawlResult) ([]models.Finding, models.ScanMetadata) {
	var mu sync.Mutex
	var all []models.Finding

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range r.detectors {
		d := d
		g.Go(func() error {
			findings := d.Detect(gctx, result)
			kept := findings[:0]
			for i := range findings {
				if err := findings[i].Validate(); err != nil {
					r.logger.WithError(err).WithField("detector", d.Name()).Warn("dropping invalid finding")
					continue
				}
				kept = append(kept, findings[i])
			}
			mu.Lock()
			all = append(all, kept...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // detectors report via findings, never via errors

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Category != all[j].Category {
			return all[i].Category < all[j].Category
		}
		if all[i].Severity != all[j].Severity {
			return all[i].Severity.Rank() < all[j].Severity.Rank()
		}
		return all[i].Title < all[j].Title
	})

	meta := models.ScanMetadata{
		SSLCertificate: result.SSLCertificate,
		FetchMethod:    result.FetchMethod,
		FinalURL:       result.FinalURL,
	}
	for _, f := range all {
		if f.Category == "ai" || strings.HasPrefix(f.Category, "owasp-llm") {
			meta.HasAI = true
			break
		}
	}
	if result.JSSignals != nil && (result.JSSignals.HasLangChain || result.JSSignals.HasOpenAI || result.JSSignals.HasVercelAI) {
		meta.HasAI = true
	}
	return all, meta
}
