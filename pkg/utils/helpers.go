package utils

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/net/idna"
)

func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Retry runs fn up to attempts times with exponential backoff between
// failures, honoring ctx cancellation.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("after %d attempts, last error: %w", attempts, err)
}

// NormalizeURL parses raw, defaults the scheme to https when absent, and
// punycode-normalizes the hostname. Only http and https are accepted.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("url has no host: %s", raw)
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", fmt.Errorf("invalid hostname %q: %w", host, err)
	}
	if port := u.Port(); port != "" {
		u.Host = ascii + ":" + port
	} else {
		u.Host = ascii
	}
	return u.String(), nil
}

// HashContent returns a stable xxh3 fingerprint of page content, used to
// recognize unchanged targets across scans.
func HashContent(content string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(content))
}

func TruncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
