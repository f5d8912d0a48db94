package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

// Stripe signs payloads over the exact bytes sent, so the body must be read
// raw before any JSON binding touches it.
const maxWebhookBodyBytes = 1 << 16

// WebhookHandler receives Stripe webhook events
type WebhookHandler struct {
	service services.WebhookServiceInterface
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service services.WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleStripe handles POST /api/v1/webhook/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		respondError(c, http.StatusBadRequest, "Missing Stripe-Signature header", nil)
		return
	}

	if err := h.service.HandleEvent(c.Request.Context(), payload, signature); err != nil {
		// Signature and payload faults must not be retried by Stripe;
		// anything else gets a 5xx so delivery is reattempted.
		if errors.Is(err, apperrors.ErrInvalidInput) {
			respondError(c, http.StatusBadRequest, "Invalid webhook payload", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "Webhook processing failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
