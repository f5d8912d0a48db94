package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// ErrorLogHandler is the centralized frontend error-reporting endpoint
type ErrorLogHandler struct {
	service services.ErrorLogServiceInterface
}

// NewErrorLogHandler creates a new error-log handler
func NewErrorLogHandler(service services.ErrorLogServiceInterface) *ErrorLogHandler {
	return &ErrorLogHandler{service: service}
}

// Report handles POST /api/v1/errors/report
func (h *ErrorLogHandler) Report(c *gin.Context) {
	var req models.ReportErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	id, err := h.service.Report(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Resolution drafting and escalation continue in the background; the
	// caller only needs the record id.
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}
