package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

const maxCapturedBody = 10 * 1024 // per-response capture ceiling

// BrowserCrawler runs full-browser crawls. Every crawl gets a fresh
// browser, context and page so state from one target cannot leak into
// the next; only the Playwright driver process itself is shared.
type BrowserCrawler struct {
	timeout        time.Duration
	networkIdle    time.Duration
	userAgent      string
	blockResources []string
	waitUntil      *playwright.WaitUntilState
	headless       bool
	certFetcher    *CertificateFetcher
	logger         *logrus.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

func NewBrowserCrawler(cfg models.CrawlConfig, certFetcher *CertificateFetcher, logger *logrus.Logger) *BrowserCrawler {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	networkIdle := cfg.NetworkIdleTimeout
	if networkIdle <= 0 {
		networkIdle = 10 * time.Second
	}
	blockResources := cfg.BlockResources
	if len(blockResources) == 0 {
		blockResources = []string{"image", "media", "font"}
	}
	return &BrowserCrawler{
		timeout:        timeout,
		networkIdle:    networkIdle,
		userAgent:      cfg.UserAgent,
		blockResources: blockResources,
		waitUntil:      waitUntilState(cfg.WaitUntil),
		headless:       cfg.Headless,
		certFetcher:    certFetcher,
		logger:         logger,
	}
}

// waitUntilState maps the configured navigation wait condition onto
// Playwright's states. Unknown values get the conservative default.
func waitUntilState(name string) *playwright.WaitUntilState {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "load":
		return playwright.WaitUntilStateLoad
	case "networkidle":
		return playwright.WaitUntilStateNetworkidle
	case "commit":
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func (b *BrowserCrawler) driver() (*playwright.Playwright, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw != nil {
		return b.pw, nil
	}
	if err := playwright.Install(); err != nil {
		b.logger.WithError(err).Warn("Playwright browser install failed (continuing if already installed)")
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright: %w", err)
	}
	b.pw = pw
	return pw, nil
}

func (b *BrowserCrawler) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			return err
		}
		b.pw = nil
	}
	return nil
}

// Crawl loads the target in a real browser and captures everything the
// scoring pipeline consumes. It never returns an error for target-side
// failures: the result carries Success=false plus whatever was captured
// before the failure.
func (b *BrowserCrawler) Crawl(ctx context.Context, rawURL string) *models.CrawlResult {
	start := time.Now()
	result := &models.CrawlResult{
		RequestedURL: rawURL,
		FinalURL:     rawURL,
		FetchMethod:  models.FetchMethodBrowser,
		Timestamp:    start,
		Timing:       models.TimingBreakdown{},
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		result.Error = fmt.Sprintf("invalid URL scheme for browser crawl: %q", rawURL)
		return result
	}

	pw, err := b.driver()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.headless),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-first-run",
			"--window-size=1920,1080",
		},
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to launch browser: %v", err)
		return result
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			b.logger.WithError(cerr).Warn("browser close failed")
		}
	}()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(b.userAgent),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to create browser context: %v", err)
		return result
	}
	defer func() { _ = bctx.Close() }()
	bctx.SetDefaultTimeout(float64(b.timeout.Milliseconds()))
	bctx.SetDefaultNavigationTimeout(float64(b.timeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		result.Error = fmt.Sprintf("failed to create page: %v", err)
		return result
	}
	defer func() { _ = page.Close() }()

	// Listeners and routing must be in place before navigation starts,
	// otherwise early requests slip past uncaptured.
	var netMu sync.Mutex
	page.OnRequest(func(req playwright.Request) {
		netMu.Lock()
		defer netMu.Unlock()
		result.NetworkRequests = append(result.NetworkRequests, models.NetworkRequest{
			URL:          req.URL(),
			Method:       req.Method(),
			ResourceType: req.ResourceType(),
			Timestamp:    time.Now(),
		})
	})
	page.OnResponse(func(resp playwright.Response) {
		entry := models.NetworkResponse{
			URL:        resp.URL(),
			StatusCode: resp.Status(),
			Headers:    resp.Headers(),
			Timestamp:  time.Now(),
		}
		if capturableBody(entry.Headers["content-type"]) {
			if body, berr := resp.Body(); berr == nil {
				if len(body) > maxCapturedBody {
					body = body[:maxCapturedBody]
				}
				entry.Body = string(body)
			}
		}
		netMu.Lock()
		result.NetworkResponses = append(result.NetworkResponses, entry)
		netMu.Unlock()
	})

	if err := page.Route("**/*", func(route playwright.Route) {
		for _, rt := range b.blockResources {
			if route.Request().ResourceType() == rt {
				_ = route.Abort()
				return
			}
		}
		_ = route.Continue()
	}); err != nil {
		b.logger.WithError(err).Warn("route interception setup failed")
	}

	navStart := time.Now()
	navResp, err := page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: b.waitUntil,
		Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
	})
	result.Timing["navigation_ms"] = time.Since(navStart).Milliseconds()
	if err != nil {
		result.Error = fmt.Sprintf("navigation failed: %v", err)
		b.capturePage(page, bctx, result)
		result.LoadTimeMs = time.Since(start).Milliseconds()
		return result
	}

	// Best effort: heavy pages never go fully idle and that is fine.
	idleStart := time.Now()
	if werr := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(b.networkIdle.Milliseconds())),
	}); werr != nil {
		b.logger.WithField("url", rawURL).Debug("network idle wait timed out, continuing with captured state")
	}
	result.Timing["network_idle_ms"] = time.Since(idleStart).Milliseconds()

	result.Success = true
	if navResp != nil {
		result.StatusCode = navResp.Status()
		result.ResponseHeaders = lowercaseHeaders(navResp.Headers())
		b.captureCertificate(ctx, navResp, parsed, result)
	}
	b.capturePage(page, bctx, result)
	result.JSSignals = b.evaluateSignals(page)
	result.LoadTimeMs = time.Since(start).Milliseconds()
	return result
}

func (b *BrowserCrawler) capturePage(page playwright.Page, bctx playwright.BrowserContext, result *models.CrawlResult) {
	if html, err := page.Content(); err == nil {
		result.HTML = html
	}
	if title, err := page.Title(); err == nil {
		result.Title = title
	}
	result.FinalURL = page.URL()
	_, result.Scripts = ExtractPage(result.HTML)

	if cookies, err := bctx.Cookies(); err == nil {
		for _, c := range cookies {
			cookie := models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				HTTPOnly: c.HttpOnly,
				Secure:   c.Secure,
			}
			if c.SameSite != nil {
				cookie.SameSite = string(*c.SameSite)
			}
			result.Cookies = append(result.Cookies, cookie)
		}
	}
}

// captureCertificate prefers what the browser negotiated; the socket
// fallback only runs when Playwright exposes no security details.
func (b *BrowserCrawler) captureCertificate(ctx context.Context, navResp playwright.Response, parsed *url.URL, result *models.CrawlResult) {
	if parsed.Scheme != "https" {
		return
	}
	if details, err := navResp.SecurityDetails(); err == nil && details != nil {
		cert := &models.SSLCertificate{Source: "browser"}
		if details.SubjectName != nil {
			cert.Subject = *details.SubjectName
		}
		if details.Issuer != nil {
			cert.Issuer = *details.Issuer
		}
		if details.ValidFrom != nil {
			cert.ValidFrom = time.Unix(int64(*details.ValidFrom), 0).UTC()
		}
		if details.ValidTo != nil {
			cert.ValidTo = time.Unix(int64(*details.ValidTo), 0).UTC()
		}
		if cert.Subject != "" && cert.Issuer != "" && cert.Subject == cert.Issuer {
			cert.SelfSigned = true
		}
		result.SSLCertificate = cert
		return
	}
	if b.certFetcher == nil {
		return
	}
	cert, err := b.certFetcher.Fetch(ctx, parsed.Hostname(), parsed.Port())
	if err != nil {
		b.logger.WithError(err).WithField("host", parsed.Hostname()).Debug("socket certificate fallback failed")
		return
	}
	result.SSLCertificate = cert
}

const signalsScript = `() => {
	const out = {
		has_langchain: false, has_openai: false, has_vercel_ai: false,
		jquery_version: "", react_version: "", vue_version: "", angular_version: "",
		has_ai_config: false, has_openai_key: false,
	};
	try {
		out.has_langchain = !!(window.langchain || window.LangChain);
		out.has_openai = !!(window.openai || window.OpenAI);
		out.has_vercel_ai = !!(window.ai && window.ai.generateText);
		if (window.jQuery && window.jQuery.fn) out.jquery_version = String(window.jQuery.fn.jquery || "");
		if (window.React && window.React.version) out.react_version = String(window.React.version);
		if (window.Vue && window.Vue.version) out.vue_version = String(window.Vue.version);
		const ngEl = document.querySelector("[ng-version]");
		if (ngEl) out.angular_version = ngEl.getAttribute("ng-version") || "";
		const cfg = window.__AI_CONFIG__ || window.AI_CONFIG || window.openaiConfig;
		if (cfg) {
			out.has_ai_config = true;
			const text = JSON.stringify(cfg);
			if (/sk-[A-Za-z0-9]{20,}/.test(text)) out.has_openai_key = true;
		}
	} catch (e) {}
	return out;
}`

// evaluateSignals probes the page's JS globals. Evaluation failures
// produce zero values; a page that blocks introspection still scores.
func (b *BrowserCrawler) evaluateSignals(page playwright.Page) *models.JSSignals {
	signals := &models.JSSignals{}
	raw, err := page.Evaluate(signalsScript)
	if err != nil {
		b.logger.WithError(err).Debug("JS signal evaluation failed")
		return signals
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return signals
	}
	if err := json.Unmarshal(encoded, signals); err != nil {
		b.logger.WithError(err).Debug("JS signal decode failed")
	}
	return signals
}

func capturableBody(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.HasPrefix(ct, "text/")
}

func lowercaseHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}
