// Package handler contains the Gin HTTP handlers for the FraudLens
// portal API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/auth"
	"github.com/kianh03/fraudlens/internal/predict"
	"github.com/kianh03/fraudlens/internal/report"
	"github.com/kianh03/fraudlens/internal/scans"
)

// scanSvc is the subset of scans.ScanService used by ScanHandler.
type scanSvc interface {
	Scan(ctx context.Context, userID uuid.UUID, rawURL string) (*report.Report, *scans.Scan, error)
	Get(ctx context.Context, userID, scanID uuid.UUID) (*scans.Scan, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]scans.Scan, error)
	Stats(ctx context.Context, userID uuid.UUID) (*scans.Stats, error)
	Delete(ctx context.Context, userID, scanID uuid.UUID) error
}

// ScanHandler handles URL scanning and scan history routes.
type ScanHandler struct {
	scans  scanSvc
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scanService scanSvc, tokens *auth.TokenIssuer, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{scans: scanService, tokens: tokens, logger: logger}
}

// Register mounts scan routes on the provided router group. Scanning
// itself works anonymously; history and stats require a session.
func (h *ScanHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/scan", auth.OptionalSession(h.tokens), h.Scan)

	authed := rg.Group("", auth.RequireSession(h.tokens))
	{
		authed.GET("/scans", h.History)
		authed.GET("/scans/:id", h.GetScan)
		authed.DELETE("/scans/:id", h.DeleteScan)
		authed.GET("/dashboard", h.Dashboard)
	}
}

type scanRequest struct {
	URL string `json:"url" binding:"required"`
}

// Scan handles POST /scan — analyzes a URL and returns the rendered
// report. Signed-in callers also get the scan recorded to history.
func (h *ScanHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	userID := uuid.Nil
	if claims := auth.SessionFromCtx(c); claims != nil {
		if uid, err := uuid.Parse(claims.UserID); err == nil {
			userID = uid
		}
	}

	rep, scan, err := h.scans.Scan(c.Request.Context(), userID, req.URL)
	if err != nil {
		var ue *predict.UpstreamError
		switch {
		case errors.As(err, &ue):
			c.JSON(http.StatusBadGateway, gin.H{"error": ue.Message})
		case errors.Is(err, predict.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		default:
			h.logger.Error("scan url", zap.String("url", req.URL), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		}
		RecordScanResult("error")
		return
	}
	RecordScanResult(scan.RiskLevel)

	resp := gin.H{"report": rep, "risk_level": scan.RiskLevel}
	if scan.ID != uuid.Nil {
		resp["scan_id"] = scan.ID
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /scans — the caller's recent scans, newest first.
func (h *ScanHandler) History(c *gin.Context) {
	uid, ok := h.sessionUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.scans.History(c.Request.Context(), uid, limit)
	if err != nil {
		h.logger.Error("list scan history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scans"})
		return
	}
	if list == nil {
		list = []scans.Scan{}
	}
	c.JSON(http.StatusOK, gin.H{"scans": list, "count": len(list)})
}

// GetScan handles GET /scans/:id — one scan with its stored report.
func (h *ScanHandler) GetScan(c *gin.Context) {
	uid, ok := h.sessionUserID(c)
	if !ok {
		return
	}
	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan ID"})
		return
	}

	scan, err := h.scans.Get(c.Request.Context(), uid, scanID)
	if err != nil {
		if errors.Is(err, scans.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		h.logger.Error("get scan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get scan"})
		return
	}
	c.JSON(http.StatusOK, scan)
}

// DeleteScan handles DELETE /scans/:id.
func (h *ScanHandler) DeleteScan(c *gin.Context) {
	uid, ok := h.sessionUserID(c)
	if !ok {
		return
	}
	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan ID"})
		return
	}

	if err := h.scans.Delete(c.Request.Context(), uid, scanID); err != nil {
		if errors.Is(err, scans.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
			return
		}
		h.logger.Error("delete scan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete scan"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scan deleted"})
}

// Dashboard handles GET /dashboard — statistics, risk distribution, and
// recent activity in one response.
func (h *ScanHandler) Dashboard(c *gin.Context) {
	uid, ok := h.sessionUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	stats, err := h.scans.Stats(ctx, uid)
	if err != nil {
		h.logger.Error("get scan stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}

	recent, err := h.scans.History(ctx, uid, 10)
	if err != nil {
		h.logger.Error("list recent scans", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}
	if recent == nil {
		recent = []scans.Scan{}
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":             stats,
		"risk_distribution": stats.Distribution(),
		"recent_scans":      recent,
	})
}

// sessionUserID extracts the authenticated user's UUID, writing the
// error response itself when the session is missing or malformed.
func (h *ScanHandler) sessionUserID(c *gin.Context) (uuid.UUID, bool) {
	claims := auth.SessionFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID in token"})
		return uuid.Nil, false
	}
	return uid, true
}
