package models

import (
	"strings"
	"time"
)

type FetchMethod string

const (
	FetchMethodLightweight FetchMethod = "lightweight"
	FetchMethodBrowser     FetchMethod = "browser"
)

// NetworkRequest is one outgoing request observed during a browser crawl.
type NetworkRequest struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NetworkResponse is one incoming response observed during a browser crawl.
// Body is captured only for small JSON/text payloads.
type NetworkResponse struct {
	URL          string            `json:"url"`
	StatusCode   int               `json:"status_code"`
	Headers      map[string]string `json:"headers,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	Body         string            `json:"body,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// SSLCertificate summarizes the peer certificate observed for the target.
type SSLCertificate struct {
	Subject       string    `json:"subject"`
	Issuer        string    `json:"issuer"`
	SerialNumber  string    `json:"serial_number"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	DNSNames      []string  `json:"dns_names,omitempty"`
	SignatureAlgo string    `json:"signature_algo,omitempty"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	SelfSigned    bool      `json:"self_signed"`
	Source        string    `json:"source"` // "browser" or "socket"
}

// Expired reports whether the certificate is outside its validity window.
func (c *SSLCertificate) Expired(now time.Time) bool {
	return now.After(c.ValidTo) || now.Before(c.ValidFrom)
}

// JSSignals are client-exposed globals extracted by in-page evaluation.
// All fields are zero-valued when evaluation fails.
type JSSignals struct {
	HasLangChain   bool   `json:"has_langchain"`
	HasOpenAI      bool   `json:"has_openai"`
	HasVercelAI    bool   `json:"has_vercel_ai"`
	JQueryVersion  string `json:"jquery_version,omitempty"`
	ReactVersion   string `json:"react_version,omitempty"`
	VueVersion     string `json:"vue_version,omitempty"`
	AngularVersion string `json:"angular_version,omitempty"`
	HasAIConfig    bool   `json:"has_ai_config"`
	HasOpenAIKey   bool   `json:"has_openai_key"`
}

// TimingBreakdown records per-phase durations of a crawl in milliseconds.
type TimingBreakdown map[string]int64

// CrawlResult is the unified output of both fetch paths. It is immutable
// once produced and handed to detectors read-only.
type CrawlResult struct {
	RequestedURL     string            `json:"requested_url"`
	FinalURL         string            `json:"final_url"`
	StatusCode       int               `json:"status_code"`
	Success          bool              `json:"success"`
	HTML             string            `json:"html,omitempty"`
	Title            string            `json:"title,omitempty"`
	Cookies          []Cookie          `json:"cookies"`
	ResponseHeaders  map[string]string `json:"response_headers,omitempty"`
	Scripts          []string          `json:"scripts,omitempty"`
	NetworkRequests  []NetworkRequest  `json:"network_requests,omitempty"`
	NetworkResponses []NetworkResponse `json:"network_responses,omitempty"`
	SSLCertificate   *SSLCertificate   `json:"ssl_certificate,omitempty"`
	JSSignals        *JSSignals        `json:"js_signals,omitempty"`
	LoadTimeMs       int64             `json:"load_time_ms"`
	Timing           TimingBreakdown   `json:"timing_breakdown,omitempty"`
	FetchMethod      FetchMethod       `json:"fetch_method"`
	Error            string            `json:"error,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Header does a case-insensitive lookup in the response headers.
func (r *CrawlResult) Header(name string) string {
	if r.ResponseHeaders == nil {
		return ""
	}
	if v, ok := r.ResponseHeaders[name]; ok {
		return v
	}
	for k, v := range r.ResponseHeaders {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
