package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends an error JSON response and attaches the error to the gin
// context so the observability middleware can include the reason in the log
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails sends an error response with an additional details field.
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) { //nolint:unparam
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

// statusForCode maps application error codes to HTTP statuses. The code also
// rides in the response body so the frontend can report it back through the
// error-log endpoint without parsing message text.
func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeSessionNotFound, apperrors.CodeDiscountNotFound:
		return http.StatusNotFound
	case apperrors.CodeSessionExpired:
		return http.StatusGone
	case apperrors.CodeSessionAlreadyCompleted:
		return http.StatusConflict
	case apperrors.CodeDiscountExpired, apperrors.CodeDiscountAlreadyUsed,
		apperrors.CodeDiscountNotApplicable, apperrors.CodeDiscountUsageLimit:
		return http.StatusBadRequest
	case apperrors.CodeRateLimit:
		return http.StatusTooManyRequests
	case apperrors.CodeNetworkError, apperrors.CodeAIConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError translates a service-layer error into an HTTP response
func respondServiceError(c *gin.Context, err error) {
	attachError(c, err)

	if code, ok := apperrors.CodeOf(err); ok {
		c.JSON(statusForCode(code), gin.H{
			"error":     err.Error(),
			"errorCode": string(code),
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAccessDenied), errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
