// Package client provides the FraudLens Go SDK for scanning URLs and
// working with scan history through the portal API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when the requested resource does not exist or
// belongs to another account.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the request lacks a valid session token.
var ErrUnauthorized = errors.New("unauthorized")

// ScanResult is the response of a scan call.
type ScanResult struct {
	ScanID    string          `json:"scan_id,omitempty"`
	RiskLevel string          `json:"risk_level"`
	Report    json.RawMessage `json:"report"`
}

// ScanRecord is one entry from the caller's scan history.
type ScanRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	RiskScore float64   `json:"risk_score"`
	RiskLevel string    `json:"risk_level"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the caller's scanning activity.
type Stats struct {
	TotalScans      int       `json:"total_scans"`
	ThreatsDetected int       `json:"threats_detected"`
	SafeURLs        int       `json:"safe_urls"`
	AvgRiskScore    float64   `json:"avg_risk_score"`
	HighRiskScans   int       `json:"high_risk_scans"`
	MediumRiskScans int       `json:"medium_risk_scans"`
	LowRiskScans    int       `json:"low_risk_scans"`
	LastScanDate    time.Time `json:"last_scan_date"`
}

// Dashboard is the combined response of the dashboard endpoint.
type Dashboard struct {
	Stats            Stats          `json:"stats"`
	RiskDistribution map[string]int `json:"risk_distribution"`
	RecentScans      []ScanRecord   `json:"recent_scans"`
}

// User is the account record returned by auth calls.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
	AlertEmails   bool   `json:"alert_emails"`
}

// Client is the FraudLens SDK entry point.
type Client struct {
	portalBase string
	httpClient *http.Client

	// session token — guarded by mu
	mu    sync.Mutex
	token string
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

// WithToken attaches a pre-obtained session token to every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout overrides the default 10 second request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a new FraudLens SDK Client connected to portalBase.
//
//	c, err := client.New("https://portal.fraudlens.example.com",
//	    client.WithToken(token),
//	)
func New(portalBase string, opts ...Option) (*Client, error) {
	c := &Client{
		portalBase: portalBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(portalBase string, opts ...Option) *Client {
	c, err := New(portalBase, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Token returns the current session token, or "" when not logged in.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login authenticates with email and password and stores the session
// token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := c.post(ctx, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		User  *User  `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp.User, nil
}

// Signup creates an account and stores the returned session token.
func (c *Client) Signup(ctx context.Context, email, password, displayName string) (*User, error) {
	body, err := c.post(ctx, "/api/v1/auth/signup", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		User  *User  `json:"user"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp.User, nil
}

// Scan analyzes a URL and returns the rendered risk report. Works without
// a session; with one, the scan is also recorded to history.
func (c *Client) Scan(ctx context.Context, rawURL string) (*ScanResult, error) {
	body, err := c.post(ctx, "/api/v1/scan", map[string]string{"url": rawURL})
	if err != nil {
		return nil, err
	}

	var result ScanResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	return &result, nil
}

// History returns the caller's most recent scans, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]ScanRecord, error) {
	path := "/api/v1/scans"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Scans []ScanRecord `json:"scans"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return resp.Scans, nil
}

// GetScan fetches one scan, including its stored report.
func (c *Client) GetScan(ctx context.Context, id string) (*ScanRecord, json.RawMessage, error) {
	body, err := c.get(ctx, "/api/v1/scans/"+url.PathEscape(id))
	if err != nil {
		return nil, nil, err
	}

	var rec struct {
		ScanRecord
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode scan: %w", err)
	}
	return &rec.ScanRecord, rec.Result, nil
}

// DeleteScan removes a scan from the caller's history.
func (c *Client) DeleteScan(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/scans/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// Dashboard returns scan statistics, the risk distribution, and recent
// activity in one call.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	body, err := c.get(ctx, "/api/v1/dashboard")
	if err != nil {
		return nil, err
	}

	var d Dashboard
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode dashboard response: %w", err)
	}
	return &d, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	body, err := c.get(ctx, "/api/v1/users/me")
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// ─── HTTP plumbing ───────────────────────────────────────────────────────────

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.portalBase+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes an HTTP request, attaching the session token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, apiErrorMessage(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, apiErrorMessage(body))
	}
	return body, nil
}

func apiErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
