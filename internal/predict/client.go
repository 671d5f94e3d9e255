// Package predict is the HTTP client for the upstream URL analysis
// service. It submits URLs for scoring and returns the raw analysis
// payload; all interpretation of the payload happens in the report
// package.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kianh03/fraudlens/internal/report"
)

// ErrUnavailable is returned when the analysis service cannot be
// reached or reports itself unhealthy.
var ErrUnavailable = errors.New("analysis service unavailable")

// UpstreamError is a structured error response from the analysis
// service ({"status":"error","message":...}).
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("analysis service error %d: %s", e.StatusCode, e.Message)
}

// Client talks to one analysis service instance.
type Client struct {
	base       string
	httpClient *http.Client
	cache      *resultCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout overrides the default 30 s request timeout. Analysis of
// a slow-responding site can legitimately take tens of seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithCacheTTL enables in-memory caching of analysis results keyed by
// normalized URL. A repeated scan inside the TTL skips the upstream
// round trip.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cache = newResultCache(ttl)
		return nil
	}
}

// New creates a Client for the analysis service at base, e.g.
// "http://localhost:5000".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("analysis service base URL is required")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NormalizeURL prepends http:// to scheme-less input so the analysis
// service always receives an absolute URL. Whitespace is trimmed.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return s
}

// Analyze submits rawURL for scoring and returns the analysis payload.
// The returned result is normalized (no nil collections).
func (c *Client) Analyze(ctx context.Context, rawURL string) (*report.AnalysisResult, error) {
	target := NormalizeURL(rawURL)
	if target == "" {
		return nil, errors.New("url is required")
	}

	if c.cache != nil {
		if r, ok := c.cache.get(target); ok {
			return r.Clone(), nil
		}
	}

	payload, _ := json.Marshal(map[string]string{"url": target})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, upstreamError(resp.StatusCode, body)
	}

	// A 200 can still carry an application-level error envelope.
	var envelope struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status == "error" {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	var result report.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if result.URL == "" {
		result.URL = target
	}
	report.Normalize(&result)

	if c.cache != nil {
		c.cache.set(target, result.Clone())
	}
	return &result, nil
}

// Health probes GET /health. A non-200 response or transport failure
// yields ErrUnavailable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<12))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func upstreamError(status int, body []byte) error {
	var envelope struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			msg = envelope.Message
		} else if envelope.Error != "" {
			msg = envelope.Error
		}
	}
	return &UpstreamError{StatusCode: status, Message: msg}
}

// --- in-memory result cache keyed by normalized URL ---

type cacheEntry struct {
	result    *report.AnalysisResult
	expiresAt time.Time
}

type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (rc *resultCache) get(key string) (*report.AnalysisResult, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	e, ok := rc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.result, true
}

func (rc *resultCache) set(key string, result *report.AnalysisResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = &cacheEntry{result: result, expiresAt: time.Now().Add(rc.ttl)}
}
