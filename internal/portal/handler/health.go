package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kianh03/fraudlens/internal/health"
)

// HealthHandler serves the /healthz endpoint from the dependency checker.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Healthz handles GET /healthz. Unhealthy dependencies turn the overall
// status into a 503 so load balancers stop routing to this instance.
func (h *HealthHandler) Healthz(c *gin.Context) {
	overall, deps := h.checker.Snapshot()

	code := http.StatusOK
	if overall == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
