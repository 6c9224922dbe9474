package crawl

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTMLBotChallenge(t *testing.T) {
	page := strings.Repeat("x", 600) + "<title>Just a moment...</title>"
	needs, reason := classifyHTML(page)
	assert.True(t, needs)
	assert.Contains(t, reason, "bot challenge")
}

func TestClassifyHTMLJavaScriptRequired(t *testing.T) {
	page := strings.Repeat("x", 600) + "<body>Please enable JavaScript to continue</body>"
	needs, reason := classifyHTML(page)
	assert.True(t, needs)
	assert.Contains(t, reason, "javascript required")
}

func TestClassifyHTMLMinimalDocument(t *testing.T) {
	needs, reason := classifyHTML("<html><body>hi</body></html>")
	assert.True(t, needs)
	assert.Contains(t, reason, "minimal HTML")
}

func TestClassifyHTMLEmptyBody(t *testing.T) {
	page := "<html><head>" + strings.Repeat("<meta x>", 80) + "</head><body>  \n </body></html>"
	needs, reason := classifyHTML(page)
	assert.True(t, needs)
	assert.Contains(t, reason, "empty body")
}

func TestClassifyHTMLSpaRootShell(t *testing.T) {
	page := "<html><head>" + strings.Repeat("<meta charset=utf-8>", 30) +
		`</head><body><div id="root"></div><script src="/bundle.js"></script></body></html>`
	needs, reason := classifyHTML(page)
	assert.True(t, needs)
	assert.Contains(t, reason, "SPA root div")
}

func TestClassifyHTMLFullPage(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><head><title>Store</title></head><body>")
	for i := 0; i < 30; i++ {
		b.WriteString("<div class=\"product\"><p>A real paragraph of product copy.</p></div>")
	}
	b.WriteString("</body></html>")

	needs, reason := classifyHTML(b.String())
	assert.False(t, needs)
	assert.Empty(t, reason)
}

func TestSameSiteString(t *testing.T) {
	assert.Equal(t, "Strict", sameSiteString(http.SameSiteStrictMode))
	assert.Equal(t, "Lax", sameSiteString(http.SameSiteLaxMode))
	assert.Equal(t, "None", sameSiteString(http.SameSiteNoneMode))
	assert.Equal(t, "", sameSiteString(http.SameSiteDefaultMode))
}

func TestFlattenHeadersKeepsFirstValue(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Set("Content-Type", "text/html")

	flat := flattenHeaders(h)
	assert.Equal(t, "a=1", flat["Set-Cookie"])
	assert.Equal(t, "text/html", flat["Content-Type"])
}

func TestParseSetCookies(t *testing.T) {
	reqURL, err := url.Parse("https://shop.example.com/login")
	require.NoError(t, err)

	resp := &http.Response{
		Header:  http.Header{},
		Request: &http.Request{URL: reqURL},
	}
	resp.Header.Add("Set-Cookie", "sid=abc123; Path=/account; HttpOnly; Secure; SameSite=Lax; Expires=Wed, 01 Jan 2031 00:00:00 GMT")
	resp.Header.Add("Set-Cookie", "theme=dark")

	cookies := parseSetCookies(resp)
	require.Len(t, cookies, 2)

	sid := cookies[0]
	assert.Equal(t, "sid", sid.Name)
	assert.Equal(t, "abc123", sid.Value)
	assert.Equal(t, "/account", sid.Path)
	assert.True(t, sid.HTTPOnly)
	assert.True(t, sid.Secure)
	assert.Equal(t, "Lax", sid.SameSite)
	assert.Greater(t, sid.Expires, float64(0))

	theme := cookies[1]
	assert.Equal(t, "shop.example.com", theme.Domain, "host fills missing cookie domain")
	assert.Equal(t, "/", theme.Path)
	assert.Zero(t, theme.Expires, "session cookie has no expiry")
}

func TestFetchPlainHTTP(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><head><title>plain</title></head><body>")
	for i := 0; i < 30; i++ {
		page.WriteString("<div><p>Enough content to not look like a shell.</p></div>")
	}
	page.WriteString("</body></html>")

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "x", HttpOnly: true})
		w.Header().Set("X-Frame-Options", "DENY")
		_, _ = w.Write([]byte(page.String()))
	}))
	defer srv.Close()

	client := NewFetchClient("chrome", 5*time.Second, 5, "TestAgent/1.0", nil)
	res := client.Fetch(t.Context(), srv.URL)

	require.Empty(t, res.Error)
	assert.True(t, res.Success)
	assert.False(t, res.NeedsBrowser)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "TestAgent/1.0", gotUA)
	assert.Equal(t, "DENY", res.Headers["X-Frame-Options"])
	require.Len(t, res.Cookies, 1)
	assert.True(t, res.Cookies[0].HTTPOnly)
	assert.GreaterOrEqual(t, res.ElapsedMs, int64(0))
}

func TestFetchFollowsRedirects(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < 40; i++ {
		page.WriteString("<div><p>Landing page content after redirect.</p></div>")
	}
	page.WriteString("</body></html>")

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page.String()))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewFetchClient("chrome", 5*time.Second, 5, "TestAgent/1.0", nil)
	res := client.Fetch(t.Context(), srv.URL)

	require.Empty(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, srv.URL+"/final", res.FinalURL)
	assert.Equal(t, srv.URL, res.RequestedURL)
}

func TestFetchRedirectLoopStops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewFetchClient("chrome", 5*time.Second, 3, "TestAgent/1.0", nil)
	res := client.Fetch(t.Context(), srv.URL)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "redirects")
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := NewFetchClient("chrome", 2*time.Second, 3, "TestAgent/1.0", nil)
	res := client.Fetch(t.Context(), addr)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.True(t, res.NeedsBrowser, "every transport failure escalates to the browser")
}

func TestAvailableUnknownFingerprint(t *testing.T) {
	client := NewFetchClient("netscape", time.Second, 3, "TestAgent/1.0", nil)
	assert.False(t, client.Available())
	// Cached negative answer.
	assert.False(t, client.Available())
}

func TestAvailableChrome(t *testing.T) {
	client := NewFetchClient("chrome", time.Second, 3, "TestAgent/1.0", nil)
	assert.True(t, client.Available())
}
