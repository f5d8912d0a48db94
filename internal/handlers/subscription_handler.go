package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/middleware"
	"github.com/talendro/talendro-api/internal/services"
)

// SubscriptionHandler handles self-service Pro plan management. The target
// subscription always comes from the session cookie, never from the body.
type SubscriptionHandler struct {
	service services.SubscriptionServiceInterface
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(service services.SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// Cancel handles POST /api/v1/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Not signed in", err)
		return
	}

	status, err := h.service.Cancel(c.Request.Context(), session.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Reactivate handles POST /api/v1/subscription/reactivate
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Not signed in", err)
		return
	}

	status, err := h.service.Reactivate(c.Request.Context(), session.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
