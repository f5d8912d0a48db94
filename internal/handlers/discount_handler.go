package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// DiscountHandler handles discount code validation requests
type DiscountHandler struct {
	service services.DiscountServiceInterface
}

// NewDiscountHandler creates a new discount handler
func NewDiscountHandler(service services.DiscountServiceInterface) *DiscountHandler {
	return &DiscountHandler{service: service}
}

// Validate handles POST /api/v1/discount/validate
func (h *DiscountHandler) Validate(c *gin.Context) {
	var req models.ValidateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	// Validation rejections travel in the response body, not as HTTP errors,
	// so the checkout form can read the code without a second round trip.
	resp, err := h.service.Validate(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
