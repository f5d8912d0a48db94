package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code from the closed application set.
// Services return these directly; handlers and the error-log pipeline never
// try to infer a code from message text.
type Code string

const (
	// Session errors
	CodeSessionNotFound         Code = "session_not_found"
	CodeSessionExpired          Code = "session_expired"
	CodeAIConnectionFailed      Code = "ai_connection_failed"
	CodeSessionAlreadyCompleted Code = "session_already_completed"

	// Discount errors
	CodeDiscountNotFound      Code = "code_not_found"
	CodeDiscountExpired       Code = "code_expired"
	CodeDiscountAlreadyUsed   Code = "code_already_used"
	CodeDiscountNotApplicable Code = "code_not_applicable"
	CodeDiscountUsageLimit    Code = "code_usage_limit_reached"

	// General errors
	CodeNetworkError Code = "network_error"
	CodeRateLimit    Code = "rate_limit"
)

// Sentinels for failures that carry no application code. Handlers map these
// to HTTP statuses; everything else is a 500.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// AccessDeniedError wraps ErrAccessDenied with the denial reason
func AccessDeniedError(reason string) error {
	if reason != "" {
		return fmt.Errorf("%s: %w", reason, ErrAccessDenied)
	}
	return ErrAccessDenied
}

// InvalidInputError wraps ErrInvalidInput with the offending field and why
// it was rejected
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// InternalError wraps ErrInternal with a description of what broke
func InternalError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}

// AppError carries a stable code alongside a human-readable message.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError wrapping an underlying cause.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the application code from an error chain.
// Returns ok=false for plain errors that carry no code.
func CodeOf(err error) (Code, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}
