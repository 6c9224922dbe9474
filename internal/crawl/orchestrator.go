package crawl

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
	"github.com/bl4ck0w1/sitelynx/pkg/utils"
)

// browserTier is the heavyweight fetch path. Satisfied by BrowserCrawler.
type browserTier interface {
	Crawl(ctx context.Context, rawURL string) *models.CrawlResult
	Close() error
}

// Orchestrator decides which fetch path a crawl takes: the lightweight
// TLS-fingerprinted client first, the full browser whenever the cheap
// path fails or serves a placeholder.
type Orchestrator struct {
	fetchClient *FetchClient
	browser     browserTier
	certFetcher *CertificateFetcher
	limiter     *rate.Limiter
	metrics     *utils.MetricsCollector
	logger      *logrus.Logger

	mu    sync.Mutex
	stats orchestratorStats
}

type orchestratorStats struct {
	total            int64
	lightweightOK    int64
	browserFallbacks int64
	browserOK        int64
	failures         int64
}

func NewOrchestrator(cfg models.CrawlConfig, metrics *utils.MetricsCollector, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	certFetcher := NewCertificateFetcher(cfg.CertTimeout, logger)
	o := &Orchestrator{
		fetchClient: NewFetchClient(cfg.TLSFingerprint, cfg.LightweightTimeout, cfg.MaxRedirects, cfg.UserAgent, logger),
		browser:     NewBrowserCrawler(cfg, certFetcher, logger),
		certFetcher: certFetcher,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		metrics:     metrics,
		logger:      logger,
	}
	if metrics != nil {
		metrics.RegisterCounter("crawls_total", "Total crawl attempts", "method", "outcome")
		metrics.RegisterHistogram("crawl_duration_seconds", "Crawl wall time by fetch method", nil, "method")
	}
	return o
}

// Crawl runs the two-tier fetch. The returned result always carries a
// fetch method and timing; Success=false results still hold whatever
// partial data was captured.
func (o *Orchestrator) Crawl(ctx context.Context, rawURL string) *models.CrawlResult {
	start := time.Now()
	o.bump(func(s *orchestratorStats) { s.total++ })

	if err := o.limiter.Wait(ctx); err != nil {
		return o.finish(&models.CrawlResult{
			RequestedURL: rawURL,
			FinalURL:     rawURL,
			FetchMethod:  models.FetchMethodLightweight,
			Error:        err.Error(),
			Timestamp:    start,
		}, start)
	}

	if o.fetchClient.Available() {
		lw := o.fetchClient.Fetch(ctx, rawURL)
		if lw.Success && !lw.NeedsBrowser {
			o.bump(func(s *orchestratorStats) { s.lightweightOK++ })
			return o.finish(o.fromLightweight(ctx, lw), start)
		}
		o.bump(func(s *orchestratorStats) { s.browserFallbacks++ })
		o.logger.WithFields(logrus.Fields{
			"url":    rawURL,
			"reason": fallbackReason(lw),
		}).Info("escalating to browser crawl")
	} else {
		o.logger.WithField("url", rawURL).Debug("lightweight path unavailable, using browser directly")
	}

	result := o.browser.Crawl(ctx, rawURL)
	if result.Success {
		o.bump(func(s *orchestratorStats) { s.browserOK++ })
	}
	return o.finish(result, start)
}

// fromLightweight lifts a lightweight fetch into the unified result,
// completing it with a parsed title, script list and the socket
// certificate the cheap path cannot observe in-band.
func (o *Orchestrator) fromLightweight(ctx context.Context, lw *LightweightResult) *models.CrawlResult {
	result := &models.CrawlResult{
		RequestedURL:    lw.RequestedURL,
		FinalURL:        lw.FinalURL,
		StatusCode:      lw.StatusCode,
		Success:         true,
		HTML:            lw.HTML,
		Cookies:         lw.Cookies,
		ResponseHeaders: lw.Headers,
		LoadTimeMs:      lw.ElapsedMs,
		Timing:          models.TimingBreakdown{"fetch_ms": lw.ElapsedMs},
		FetchMethod:     models.FetchMethodLightweight,
		Timestamp:       time.Now(),
	}
	result.Title, result.Scripts = ExtractPage(lw.HTML)

	if parsed, err := url.Parse(lw.FinalURL); err == nil && parsed.Scheme == "https" {
		certStart := time.Now()
		cert, cerr := o.certFetcher.Fetch(ctx, parsed.Hostname(), parsed.Port())
		result.Timing["cert_ms"] = time.Since(certStart).Milliseconds()
		if cerr != nil {
			o.logger.WithError(cerr).WithField("host", parsed.Hostname()).Debug("certificate fetch failed")
		} else {
			result.SSLCertificate = cert
		}
	}
	return result
}

func (o *Orchestrator) finish(result *models.CrawlResult, start time.Time) *models.CrawlResult {
	if result.LoadTimeMs == 0 {
		result.LoadTimeMs = time.Since(start).Milliseconds()
	}
	if !result.Success {
		o.bump(func(s *orchestratorStats) { s.failures++ })
	}
	if o.metrics != nil {
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		o.metrics.IncCounter("crawls_total", string(result.FetchMethod), outcome)
		o.metrics.ObserveHistogram("crawl_duration_seconds", time.Since(start).Seconds(), string(result.FetchMethod))
	}
	return result
}

func (o *Orchestrator) bump(fn func(*orchestratorStats)) {
	o.mu.Lock()
	fn(&o.stats)
	o.mu.Unlock()
}

func fallbackReason(lw *LightweightResult) string {
	if lw.DetectionReason != "" {
		return lw.DetectionReason
	}
	if lw.Error != "" {
		return lw.Error
	}
	return "lightweight fetch incomplete"
}

func (o *Orchestrator) Close() error {
	return o.browser.Close()
}

func (o *Orchestrator) GetStats() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]interface{}{
		"total_crawls":      o.stats.total,
		"lightweight_ok":    o.stats.lightweightOK,
		"browser_fallbacks": o.stats.browserFallbacks,
		"browser_ok":        o.stats.browserOK,
		"failures":          o.stats.failures,
	}
}
