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
	// UserSessionCookieName is the cookie carrying the signed-in user's JWT
	UserSessionCookieName = "talendro_session"

	// UserSessionContextKey stores the authenticated session in request context
	UserSessionContextKey = "user_session"
)

var (
	ErrSessionNotFound = errors.New("session not found in context")
	ErrInvalidSession  = errors.New("invalid session type")
)

// UserSessionMiddleware validates the JWT session cookie and adds the session
// to the request context
func UserSessionMiddleware(tokenManager *jwt.TokenManager, cookieDomain string, cookieSecure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(UserSessionCookieName)
		if err != nil {
			_ = c.Error(fmt.Errorf("missing session cookie")) //nolint:errcheck
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		claims, err := tokenManager.ValidateToken(cookie)
		if err != nil {
			_ = c.Error(fmt.Errorf("invalid session token: %w", err)) //nolint:errcheck
			clearCookie(c, UserSessionCookieName, cookieDomain, cookieSecure)

			if errors.Is(err, jwt.ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		session := &models.UserSession{
			ProfileID: claims.Subject,
			Email:     claims.Email,
			FullName:  claims.FullName,
			IsPro:     claims.IsPro,
			Role:      claims.Role,
		}

		c.Set(UserSessionContextKey, session)
		c.Next()
	}
}

// GetUserSession extracts the session from context
func GetUserSession(c *gin.Context) (*models.UserSession, error) {
	val, exists := c.Get(UserSessionContextKey)
	if !exists {
		return nil, ErrSessionNotFound
	}

	session, ok := val.(*models.UserSession)
	if !ok {
		return nil, ErrInvalidSession
	}

	return session, nil
}

// SetUserSessionCookie sets the user session cookie
func SetUserSessionCookie(c *gin.Context, token string, ttlSeconds int, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(UserSessionCookieName, token, ttlSeconds, "/", domain, secure, true)
}

// ClearUserSessionCookie clears the user session cookie
func ClearUserSessionCookie(c *gin.Context, domain string, secure bool) {
	clearCookie(c, UserSessionCookieName, domain, secure)
}

func clearCookie(c *gin.Context, name, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", domain, secure, true)
}
