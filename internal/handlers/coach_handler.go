package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// CoachHandler proxies text coaching turns to the AI provider
type CoachHandler struct {
	service services.CoachServiceInterface
}

// NewCoachHandler creates a new coach handler
func NewCoachHandler(service services.CoachServiceInterface) *CoachHandler {
	return &CoachHandler{service: service}
}

// Turn handles POST /api/v1/coach/turn
func (h *CoachHandler) Turn(c *gin.Context) {
	var req models.CoachTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.Turn(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
