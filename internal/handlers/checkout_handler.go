package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// CheckoutHandler handles hosted checkout creation
type CheckoutHandler struct {
	service services.CheckoutServiceInterface
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(service services.CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// Create handles POST /api/v1/checkout
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
