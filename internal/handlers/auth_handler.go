package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/middleware"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	"github.com/talendro/talendro-api/pkg/jwt"
)

// AuthHandler handles magic-link and admin password sign-in
type AuthHandler struct {
	service      services.AuthServiceInterface
	tokens       *jwt.TokenManager
	cookieDomain string
	cookieSecure bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service services.AuthServiceInterface, tokens *jwt.TokenManager, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		service:      service,
		tokens:       tokens,
		cookieDomain: cookieDomain,
		cookieSecure: cookieSecure,
	}
}

// RequestLogin handles POST /api/v1/auth/request-login
func (h *AuthHandler) RequestLogin(c *gin.Context) {
	var req models.RequestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.RequestLogin(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyLogin handles POST /api/v1/auth/verify
func (h *AuthHandler) VerifyLogin(c *gin.Context) {
	var req models.VerifyLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	session, token, err := h.service.VerifyLogin(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ttl := int(h.tokens.GetExpirationTime().Seconds())
	middleware.SetUserSessionCookie(c, token, ttl, h.cookieDomain, h.cookieSecure)

	c.JSON(http.StatusOK, session)
}

// Me handles GET /api/v1/auth/me for signed-in users
func (h *AuthHandler) Me(c *gin.Context) {
	session, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Not signed in", err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearUserSessionCookie(c, h.cookieDomain, h.cookieSecure)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminLogin handles POST /api/v1/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Invalid request", ParseValidationErrors(err), err)
		return
	}

	session, token, err := h.service.AdminLogin(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ttl := int(h.tokens.GetExpirationTime().Seconds())
	middleware.SetAdminSessionCookie(c, token, ttl, h.cookieDomain, h.cookieSecure)

	c.JSON(http.StatusOK, session)
}

// AdminMe handles GET /api/v1/admin/me behind the admin session middleware
func (h *AuthHandler) AdminMe(c *gin.Context) {
	session, err := middleware.GetAdminSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Not signed in", err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// AdminLogout handles POST /api/v1/admin/logout
func (h *AuthHandler) AdminLogout(c *gin.Context) {
	middleware.ClearAdminSessionCookie(c, h.cookieDomain, h.cookieSecure)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
