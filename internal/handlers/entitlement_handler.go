package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// EntitlementHandler handles Pro usage-limit checks
type EntitlementHandler struct {
	service services.EntitlementServiceInterface
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(service services.EntitlementServiceInterface) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

// Check handles POST /api/v1/entitlement/check. It never consumes quota.
func (h *EntitlementHandler) Check(c *gin.Context) {
	var req models.EntitlementCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.Check(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Consume handles POST /api/v1/entitlement/consume
func (h *EntitlementHandler) Consume(c *gin.Context) {
	var req models.EntitlementCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.Consume(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
