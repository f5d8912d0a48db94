package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// ResultsHandler handles session completion and report retrieval
type ResultsHandler struct {
	service services.ResultsServiceInterface
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(service services.ResultsServiceInterface) *ResultsHandler {
	return &ResultsHandler{service: service}
}

// Complete handles POST /api/v1/session/:id/complete
func (h *ResultsHandler) Complete(c *gin.Context) {
	sessionID := c.Param("id")

	var req models.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	report, err := h.service.Complete(c.Request.Context(), sessionID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetReport handles GET /api/v1/session/:id/report
func (h *ResultsHandler) GetReport(c *gin.Context) {
	sessionID := c.Param("id")

	report, err := h.service.GetReport(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
