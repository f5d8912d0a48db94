package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// AdminHandler handles the authenticated admin management surface
type AdminHandler struct {
	service services.AdminServiceInterface
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service services.AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListDiscounts handles GET /api/v1/admin/discount
func (h *AdminHandler) ListDiscounts(c *gin.Context) {
	codes, err := h.service.ListDiscountCodes(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if codes == nil {
		codes = []*models.DiscountCode{}
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

// CreateDiscount handles POST /api/v1/admin/discount
func (h *AdminHandler) CreateDiscount(c *gin.Context) {
	var req models.CreateDiscountCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	code, err := h.service.CreateDiscountCode(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, code)
}

type setDiscountActiveRequest struct {
	Active bool `json:"active"`
}

// SetDiscountActive handles POST /api/v1/admin/discount/:id/active
func (h *AdminHandler) SetDiscountActive(c *gin.Context) {
	var req setDiscountActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	if err := h.service.SetDiscountCodeActive(c.Request.Context(), c.Param("id"), req.Active); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": req.Active})
}

// ListErrors handles GET /api/v1/admin/errors
func (h *AdminHandler) ListErrors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.ListErrorLogs(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if entries == nil {
		entries = []*models.ErrorLog{}
	}
	c.JSON(http.StatusOK, gin.H{"errors": entries})
}
