package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
)

// SessionHandler handles interview session lifecycle requests
type SessionHandler struct {
	service services.SessionServiceInterface
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service services.SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// Start handles POST /api/v1/session/start
func (h *SessionHandler) Start(c *gin.Context) {
	var req models.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.Start(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// A paused-session conflict is a valid outcome the frontend must resolve,
	// not an error.
	c.JSON(http.StatusOK, resp)
}

// SaveDocuments handles POST /api/v1/session/:id/documents
func (h *SessionHandler) SaveDocuments(c *gin.Context) {
	sessionID := c.Param("id")

	var docs models.SessionDocuments
	if err := c.ShouldBindJSON(&docs); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	if err := h.service.SaveDocuments(c.Request.Context(), sessionID, &docs); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type pauseSessionRequest struct {
	CurrentQuestion int `json:"currentQuestion" binding:"min=0,max=100"`
}

// Pause handles POST /api/v1/session/:id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	sessionID := c.Param("id")

	var req pauseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	if err := h.service.Pause(c.Request.Context(), sessionID, req.CurrentQuestion); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resume handles POST /api/v1/session/:id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	sessionID := c.Param("id")

	resp, err := h.service.Resume(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Abandon handles POST /api/v1/session/:id/abandon
func (h *SessionHandler) Abandon(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.service.Abandon(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
