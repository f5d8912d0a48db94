package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// PaymentHandler handles payment verification
type PaymentHandler struct {
	service services.PaymentServiceInterface
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service services.PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Verify handles POST /api/v1/payment/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	if req.CheckoutSessionID == "" && req.Email == "" {
		respondError(c, http.StatusBadRequest, "checkoutSessionId or email is required", nil)
		return
	}

	// Verification failures are reported in the body with Verified=false and
	// an error code; HTTP errors are reserved for request and server faults.
	resp, err := h.service.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
