package alerts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/auth"
)

// Handler handles HTTP requests for alert webhook subscriptions.
type Handler struct {
	svc    *AlertService
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

func NewHandler(svc *AlertService, tokens *auth.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Register registers the alert routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	wh := rg.Group("/alerts/webhooks")
	wh.Use(auth.RequireSession(h.tokens))
	{
		wh.POST("", h.CreateSubscription)
		wh.GET("", h.ListSubscriptions)
		wh.DELETE("/:id", h.DeleteSubscription)
		wh.GET("/:id/deliveries", h.ListDeliveries)
	}
}

// CreateSubscription handles POST /alerts/webhooks.
func (h *Handler) CreateSubscription(c *gin.Context) {
	userID, ok := h.sessionUserID(c)
	if !ok {
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, secret, err := h.svc.CreateSubscription(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.Error("create alert subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	// The secret is returned once so the caller can store it.
	c.JSON(http.StatusCreated, gin.H{
		"subscription": sub,
		"secret":       secret,
		"note":         "Store the secret securely. It will not be shown again.",
	})
}

// ListSubscriptions handles GET /alerts/webhooks.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	userID, ok := h.sessionUserID(c)
	if !ok {
		return
	}

	subs, err := h.svc.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list alert subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []*Subscription{}
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// DeleteSubscription handles DELETE /alerts/webhooks/:id.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	userID, ok := h.sessionUserID(c)
	if !ok {
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	if err := h.svc.DeleteSubscription(c.Request.Context(), subID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logger.Error("delete alert subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListDeliveries handles GET /alerts/webhooks/:id/deliveries.
func (h *Handler) ListDeliveries(c *gin.Context) {
	userID, ok := h.sessionUserID(c)
	if !ok {
		return
	}

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	deliveries, err := h.svc.ListDeliveries(c.Request.Context(), subID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		h.logger.Error("list alert deliveries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
		return
	}
	if deliveries == nil {
		deliveries = []*Delivery{}
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries, "count": len(deliveries)})
}

func (h *Handler) sessionUserID(c *gin.Context) (uuid.UUID, bool) {
	claims := auth.SessionFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}
