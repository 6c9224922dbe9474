package crawl

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

const maxLightweightBody = 2 << 20 // 2MB is plenty for a landing page

// LightweightResult is the raw outcome of a TLS-fingerprinted fetch,
// before the orchestrator normalizes it into a CrawlResult.
type LightweightResult struct {
	RequestedURL    string
	FinalURL        string
	StatusCode      int
	Success         bool
	HTML            string
	Headers         map[string]string
	Cookies         []models.Cookie
	NeedsBrowser    bool
	DetectionReason string
	ElapsedMs       int64
	Error           string
}

// FetchClient performs a single HTTP(S) request with a spoofed browser
// TLS fingerprint and no JavaScript execution.
type FetchClient struct {
	helloID      utls.ClientHelloID
	timeout      time.Duration
	maxRedirects int
	userAgent    string
	logger       *logrus.Logger

	probeOnce sync.Once
	available bool
}

var fingerprintNames = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
	"edge":    utls.HelloEdge_Auto,
	"golang":  utls.HelloGolang,
}

func NewFetchClient(fingerprint string, timeout time.Duration, maxRedirects int, userAgent string, logger *logrus.Logger) *FetchClient {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	helloID, ok := fingerprintNames[strings.ToLower(fingerprint)]
	if !ok {
		helloID = utls.ClientHelloID{}
	}
	return &FetchClient{
		helloID:      helloID,
		timeout:      timeout,
		maxRedirects: maxRedirects,
		userAgent:    userAgent,
		logger:       logger,
	}
}

// Available reports whether the spoofed-fingerprint path can be used.
// The probe runs once per process and the answer is cached, including a
// negative one.
func (c *FetchClient) Available() bool {
	c.probeOnce.Do(func() {
		if c.helloID.Client == "" {
			c.logger.Warn("unknown TLS fingerprint, lightweight fetch disabled")
			return
		}
		if _, err := utls.UTLSIdToSpec(c.helloID); err != nil {
			c.logger.WithError(err).Warn("TLS fingerprint spec unavailable, lightweight fetch disabled")
			return
		}
		c.available = true
	})
	return c.available
}

// Fetch performs one GET with the spoofed fingerprint. It never returns
// an error for target-side failures; those are reported in the result
// with NeedsBrowser set when a browser retry might help.
func (c *FetchClient) Fetch(ctx context.Context, rawURL string) *LightweightResult {
	start := time.Now()
	res := &LightweightResult{RequestedURL: rawURL, FinalURL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := &http.Client{
		Transport: &fingerprintTransport{helloID: c.helloID, timeout: c.timeout},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", c.maxRedirects)
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		res.Error = err.Error()
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}
	c.applyBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		// Every transport failure escalates; the browser stack resolves,
		// dials and negotiates TLS differently and may still get through.
		res.Error = err.Error()
		res.NeedsBrowser = true
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLightweightBody))
	if err != nil {
		res.Error = fmt.Sprintf("read body: %v", err)
		res.NeedsBrowser = true
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}

	res.Success = true
	res.StatusCode = resp.StatusCode
	res.HTML = string(body)
	res.FinalURL = resp.Request.URL.String()
	res.Headers = flattenHeaders(resp.Header)
	res.Cookies = parseSetCookies(resp)
	res.NeedsBrowser, res.DetectionReason = classifyHTML(res.HTML)
	res.ElapsedMs = time.Since(start).Milliseconds()
	return res
}

func (c *FetchClient) applyBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// fingerprintTransport dials TLS with a utls ClientHello and speaks
// whichever protocol the server negotiated. Connections are not pooled;
// a scan fetches one document.
type fingerprintTransport struct {
	helloID utls.ClientHelloID
	timeout time.Duration
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "http" {
		plain := &http.Transport{
			DialContext:       (&net.Dialer{Timeout: t.timeout}).DialContext,
			DisableKeepAlives: true,
		}
		return plain.RoundTrip(req)
	}

	host := req.URL.Hostname()
	port := req.URL.Port()
	if port == "" {
		port = "443"
	}

	dialer := &net.Dialer{Timeout: t.timeout}
	rawConn, err := dialer.DialContext(req.Context(), "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}

	// Certificate problems are findings, not fetch failures; the peer
	// certificate is inspected separately over a direct socket.
	cfg := &utls.Config{ServerName: host, InsecureSkipVerify: true}
	uconn := utls.UClient(rawConn, cfg, t.helloID)
	if err := uconn.HandshakeContext(req.Context()); err != nil {
		_ = rawConn.Close()
		return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
	}

	if uconn.ConnectionState().NegotiatedProtocol == "h2" {
		t2 := &http2.Transport{}
		cc, err := t2.NewClientConn(uconn)
		if err != nil {
			_ = uconn.Close()
			return nil, fmt.Errorf("h2 client conn: %w", err)
		}
		return cc.RoundTrip(req)
	}

	t1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return uconn, nil
		},
		DisableKeepAlives: true,
	}
	return t1.RoundTrip(req)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func parseSetCookies(resp *http.Response) []models.Cookie {
	raw := resp.Cookies()
	if len(raw) == 0 {
		return nil
	}
	domain := resp.Request.URL.Hostname()
	cookies := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		d := c.Domain
		if d == "" {
			d = domain
		}
		p := c.Path
		if p == "" {
			p = "/"
		}
		cookie := models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   d,
			Path:     p,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
			SameSite: sameSiteString(c.SameSite),
		}
		if !c.Expires.IsZero() {
			cookie.Expires = float64(c.Expires.Unix())
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}

func sameSiteString(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

var cloudflareIndicators = []string{
	"just a moment...",
	"checking your browser",
	"cf-browser-verification",
	"cloudflare-static/rocket-loader",
	"_cf_chl_opt",
	"challenge-platform",
	"attention required! | cloudflare",
}

var jsRequiredIndicators = []string{
	"please enable javascript",
	"javascript is required",
	"this site requires javascript",
	"you need to enable javascript",
	"<noscript>",
	"browser does not support javascript",
}

// classifyHTML inspects a fetched document for signals that the
// lightweight path retrieved a placeholder instead of the real page.
func classifyHTML(html string) (bool, string) {
	lower := strings.ToLower(html)

	for _, indicator := range cloudflareIndicators {
		if strings.Contains(lower, indicator) {
			return true, fmt.Sprintf("bot challenge detected: %s", indicator)
		}
	}
	for _, indicator := range jsRequiredIndicators {
		if strings.Contains(lower, indicator) {
			return true, fmt.Sprintf("javascript required: %s", indicator)
		}
	}

	clean := strings.TrimSpace(html)
	if len(clean) < 500 {
		return true, fmt.Sprintf("minimal HTML (%d chars), likely SPA shell", len(clean))
	}
	compact := strings.ReplaceAll(strings.ReplaceAll(clean, " ", ""), "\n", "")
	if strings.Contains(compact, "<body></body>") {
		return true, "empty body tag, likely SPA shell"
	}
	if strings.Contains(clean, `<div id="root"></div>`) || strings.Contains(clean, `<div id="app"></div>`) {
		if strings.Count(clean, "<div") < 5 {
			return true, "SPA root div with minimal content"
		}
	}
	return false, ""
}
