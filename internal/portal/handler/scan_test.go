package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/auth"
	"github.com/kianh03/fraudlens/internal/portal/handler"
	"github.com/kianh03/fraudlens/internal/predict"
	"github.com/kianh03/fraudlens/internal/report"
	"github.com/kianh03/fraudlens/internal/scans"
)

// ── Stub ScanService ──────────────────────────────────────────────────────

type stubScanSvc struct {
	scanErr    error
	lastUserID uuid.UUID

	history []scans.Scan
	stats   *scans.Stats
}

func (s *stubScanSvc) Scan(_ context.Context, userID uuid.UUID, rawURL string) (*report.Report, *scans.Scan, error) {
	if s.scanErr != nil {
		return nil, nil, s.scanErr
	}
	s.lastUserID = userID

	scan := &scans.Scan{
		UserID:    userID,
		URL:       rawURL,
		RiskScore: 72.5,
		RiskLevel: scans.RiskLevelHigh,
		CreatedAt: time.Now().UTC(),
	}
	if userID != uuid.Nil {
		scan.ID = uuid.New()
	}
	return &report.Report{URL: rawURL, AggregateScore: 72.5}, scan, nil
}

func (s *stubScanSvc) Get(_ context.Context, userID, scanID uuid.UUID) (*scans.Scan, error) {
	for i := range s.history {
		if s.history[i].ID == scanID && s.history[i].UserID == userID {
			return &s.history[i], nil
		}
	}
	return nil, scans.ErrNotFound
}

func (s *stubScanSvc) History(_ context.Context, userID uuid.UUID, limit int) ([]scans.Scan, error) {
	if limit > len(s.history) {
		limit = len(s.history)
	}
	return s.history[:limit], nil
}

func (s *stubScanSvc) Stats(_ context.Context, _ uuid.UUID) (*scans.Stats, error) {
	if s.stats != nil {
		return s.stats, nil
	}
	return &scans.Stats{}, nil
}

func (s *stubScanSvc) Delete(_ context.Context, userID, scanID uuid.UUID) error {
	for _, sc := range s.history {
		if sc.ID == scanID && sc.UserID == userID {
			return nil
		}
	}
	return scans.ErrNotFound
}

// ── Test setup ────────────────────────────────────────────────────────────

func setupScanRouter(t *testing.T, svc *stubScanSvc) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := testTokenIssuer(t)
	h := handler.NewScanHandler(svc, tokens, zap.NewNop())

	r := gin.New()
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r, tokens
}

func bearerFor(t *testing.T, tokens *auth.TokenIssuer, userID uuid.UUID) string {
	t.Helper()
	tok, err := tokens.Issue(userID.String(), "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

// ── Tests ─────────────────────────────────────────────────────────────────

func TestScan_200_anonymous(t *testing.T) {
	svc := &stubScanSvc{}
	router, _ := setupScanRouter(t, svc)

	body := `{"url":"http://example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastUserID != uuid.Nil {
		t.Errorf("anonymous scan passed user ID %s", svc.lastUserID)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["report"] == nil {
		t.Error("expected report in response")
	}
	if resp["risk_level"] != scans.RiskLevelHigh {
		t.Errorf("risk_level = %v, want %q", resp["risk_level"], scans.RiskLevelHigh)
	}
	if _, ok := resp["scan_id"]; ok {
		t.Error("anonymous scan should not return a scan_id")
	}
}

func TestScan_200_authenticatedReturnsScanID(t *testing.T) {
	svc := &stubScanSvc{}
	router, tokens := setupScanRouter(t, svc)
	userID := uuid.New()

	body := `{"url":"http://example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, tokens, userID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastUserID != userID {
		t.Errorf("scan user ID = %s, want %s", svc.lastUserID, userID)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["scan_id"] == nil {
		t.Error("authenticated scan should return a scan_id")
	}
}

func TestScan_400_missingURL(t *testing.T) {
	router, _ := setupScanRouter(t, &stubScanSvc{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScan_502_upstreamError(t *testing.T) {
	svc := &stubScanSvc{scanErr: &predict.UpstreamError{StatusCode: 500, Message: "model not loaded"}}
	router, _ := setupScanRouter(t, svc)

	body := `{"url":"http://example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "model not loaded") {
		t.Errorf("expected upstream message in body, got %s", w.Body.String())
	}
}

func TestScan_503_analysisServiceDown(t *testing.T) {
	svc := &stubScanSvc{scanErr: predict.ErrUnavailable}
	router, _ := setupScanRouter(t, svc)

	body := `{"url":"http://example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHistory_401_withoutSession(t *testing.T) {
	router, _ := setupScanRouter(t, &stubScanSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestHistory_200(t *testing.T) {
	userID := uuid.New()
	svc := &stubScanSvc{history: []scans.Scan{
		{ID: uuid.New(), UserID: userID, URL: "http://a.example.com", RiskLevel: scans.RiskLevelLow},
		{ID: uuid.New(), UserID: userID, URL: "http://b.example.com", RiskLevel: scans.RiskLevelHigh},
	}}
	router, tokens := setupScanRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, userID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int          `json:"count"`
		Scans []scans.Scan `json:"scans"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Scans) != 2 {
		t.Errorf("count = %d with %d scans, want 2", resp.Count, len(resp.Scans))
	}
}

func TestGetScan_404_foreignScan(t *testing.T) {
	owner := uuid.New()
	scanID := uuid.New()
	svc := &stubScanSvc{history: []scans.Scan{
		{ID: scanID, UserID: owner, URL: "http://a.example.com"},
	}}
	router, tokens := setupScanRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/"+scanID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.New()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetScan_400_invalidID(t *testing.T) {
	router, tokens := setupScanRouter(t, &stubScanSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans/not-a-uuid", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, uuid.New()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDeleteScan_200(t *testing.T) {
	userID := uuid.New()
	scanID := uuid.New()
	svc := &stubScanSvc{history: []scans.Scan{
		{ID: scanID, UserID: userID, URL: "http://a.example.com"},
	}}
	router, tokens := setupScanRouter(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/scans/"+scanID.String(), nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, userID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDashboard_200(t *testing.T) {
	userID := uuid.New()
	stats := &scans.Stats{}
	stats.Apply(80, scans.RiskLevelHigh, time.Now().UTC())
	stats.Apply(10, scans.RiskLevelLow, time.Now().UTC())

	svc := &stubScanSvc{
		stats: stats,
		history: []scans.Scan{
			{ID: uuid.New(), UserID: userID, URL: "http://a.example.com", RiskLevel: scans.RiskLevelHigh},
		},
	}
	router, tokens := setupScanRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, userID))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["stats"] == nil || resp["risk_distribution"] == nil || resp["recent_scans"] == nil {
		t.Errorf("dashboard missing sections: %v", resp)
	}
}
