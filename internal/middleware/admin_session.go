package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/pkg/jwt"
)

const (
	// AdminSessionCookieName is the cookie used for admin web sessions
	AdminSessionCookieName = "talendro_admin"

	// AdminSessionContextKey stores the authenticated admin session in context
	AdminSessionContextKey = "admin_session"

	adminRole = "admin"
)

var (
	ErrAdminSessionNotFound = errors.New("admin session not found in context")
	ErrInvalidAdminSession  = errors.New("invalid admin session type")
)

// AdminSessionMiddleware validates the admin JWT cookie. The token must carry
// the admin role claim; a regular user session on this cookie is rejected.
func AdminSessionMiddleware(tokenManager *jwt.TokenManager, cookieDomain string, cookieSecure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(AdminSessionCookieName)
		if err != nil {
			_ = c.Error(fmt.Errorf("missing admin session cookie")) //nolint:errcheck
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := tokenManager.ValidateToken(cookie)
		if err != nil {
			_ = c.Error(fmt.Errorf("invalid admin session token: %w", err)) //nolint:errcheck
			clearCookie(c, AdminSessionCookieName, cookieDomain, cookieSecure)
			if errors.Is(err, jwt.ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		if claims.Role != adminRole {
			clearCookie(c, AdminSessionCookieName, cookieDomain, cookieSecure)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		session := &models.UserSession{
			ProfileID: claims.Subject,
			Email:     claims.Email,
			FullName:  claims.FullName,
			Role:      claims.Role,
		}

		c.Set(AdminSessionContextKey, session)
		c.Next()
	}
}

// GetAdminSession extracts the admin session from context
func GetAdminSession(c *gin.Context) (*models.UserSession, error) {
	val, exists := c.Get(AdminSessionContextKey)
	if !exists {
		return nil, ErrAdminSessionNotFound
	}

	session, ok := val.(*models.UserSession)
	if !ok {
		return nil, ErrInvalidAdminSession
	}

	return session, nil
}

// SetAdminSessionCookie sets the admin session cookie
func SetAdminSessionCookie(c *gin.Context, token string, ttlSeconds int, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AdminSessionCookieName, token, ttlSeconds, "/", domain, secure, true)
}

// ClearAdminSessionCookie clears the admin session cookie
func ClearAdminSessionCookie(c *gin.Context, domain string, secure bool) {
	clearCookie(c, AdminSessionCookieName, domain, secure)
}
