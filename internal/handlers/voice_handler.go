package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/services"
	"github.com/talendro/talendro-api/internal/voice"
	"github.com/talendro/talendro-api/pkg/logger"
)

// VoiceHandler bridges browser audio websockets to the voice provider
type VoiceHandler struct {
	service        services.VoiceServiceInterface
	allowedOrigins []string
}

// NewVoiceHandler creates a new voice handler. allowedOrigins gates the
// websocket upgrade the same way CORS gates the rest of the API.
func NewVoiceHandler(service services.VoiceServiceInterface, allowedOrigins []string) *VoiceHandler {
	return &VoiceHandler{service: service, allowedOrigins: allowedOrigins}
}

type signedURLRequest struct {
	SessionID string `json:"sessionId" binding:"required,uuid"`
}

// SignedURL handles POST /api/v1/voice/signed-url. The frontend uses it when
// connecting to the provider directly; the URL expires quickly and never
// exposes the provider API key.
func (h *VoiceHandler) SignedURL(c *gin.Context) {
	var req signedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	url, err := h.service.SignedURL(c.Request.Context(), req.SessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"signedUrl": url})
}

// Stream handles GET /api/v1/voice/stream/:id and upgrades to a websocket
// relayed to the provider. The session is validated and the upstream dialed
// before the upgrade so failures surface as plain HTTP errors.
func (h *VoiceHandler) Stream(c *gin.Context) {
	sessionID := c.Param("id")
	ctx := c.Request.Context()

	signedURL, err := h.service.SignedURL(ctx, sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	priming, err := h.service.Priming(ctx, sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	upstream, _, err := websocket.Dial(ctx, signedURL, nil)
	if err != nil {
		respondError(c, http.StatusBadGateway, "Voice provider unavailable", err)
		return
	}

	client, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		upstream.Close(websocket.StatusGoingAway, "client upgrade failed")
		attachError(c, err)
		return
	}

	bridge := voice.NewBridge(sessionID, h.service.Buffer(sessionID))
	if err := bridge.Run(ctx, client, upstream, priming); err != nil {
		// Drops are expected; the buffer stays so a reconnect can prime.
		logger.Warn("Voice bridge closed with error",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

type finishVoiceRequest struct {
	EndedEarly bool `json:"endedEarly"`
}

// Finish handles POST /api/v1/voice/stream/:id/finish. It completes the
// session with the server-observed transcript and returns the report.
func (h *VoiceHandler) Finish(c *gin.Context) {
	var req finishVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	report, err := h.service.Finish(c.Request.Context(), c.Param("id"), req.EndedEarly)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
