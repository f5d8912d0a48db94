package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	readiness func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. readiness should verify critical
// dependencies (the database pool) and return an error when the service must
// not receive traffic.
func NewHealthHandler(readiness func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{readiness: readiness}
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.readiness(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "not ready", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
