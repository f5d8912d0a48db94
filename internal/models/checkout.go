package models

import "time"

// CreateCheckoutRequest starts a hosted checkout for a product
type CreateCheckoutRequest struct {
	SessionType     SessionType `json:"sessionType" binding:"required"`
	Email           string      `json:"email" binding:"required,email"`
	FirstName       string      `json:"firstName" binding:"max=100"`
	DiscountCodeID  string      `json:"discountCodeId" binding:"omitempty,uuid"`
	DiscountPercent int         `json:"discountPercent" binding:"min=0,max=100"`
}

// CreateCheckoutResponse carries the hosted checkout redirect URL
type CreateCheckoutResponse struct {
	URL string `json:"url"`
}

// VerifyPaymentRequest verifies a checkout session by id, or looks up an
// existing entitlement by email+product when the id is absent (direct revisit).
type VerifyPaymentRequest struct {
	CheckoutSessionID string      `json:"checkoutSessionId"`
	Email             string      `json:"email" binding:"omitempty,email"`
	SessionType       SessionType `json:"sessionType"`
}

// VerifyPaymentResponse reports payment status and the session to use
type VerifyPaymentResponse struct {
	Verified      bool           `json:"verified"`
	SessionID     string         `json:"sessionId,omitempty"`
	SessionStatus SessionStatus  `json:"sessionStatus,omitempty"`
	Report        *SessionReport `json:"report,omitempty"` // populated for already-completed sessions
	ErrorCode     string         `json:"errorCode,omitempty"`
}

// StartSessionRequest begins the interview for a verified session
type StartSessionRequest struct {
	SessionID         string      `json:"sessionId" binding:"omitempty,uuid"`
	CheckoutSessionID string      `json:"checkoutSessionId"`
	Email             string      `json:"email" binding:"required,email"`
	SessionType       SessionType `json:"sessionType" binding:"required"`
}

// PausedSessionConflict describes an existing paused session of the same
// product type that must be resolved before a new one starts
type PausedSessionConflict struct {
	SessionID       string    `json:"sessionId"`
	PausedAt        time.Time `json:"pausedAt"`
	CurrentQuestion int       `json:"currentQuestion"`
}

// StartSessionResponse either starts the session or reports a conflict
type StartSessionResponse struct {
	Started   bool                   `json:"started"`
	SessionID string                 `json:"sessionId,omitempty"`
	Conflict  *PausedSessionConflict `json:"conflict,omitempty"`
	ErrorCode string                 `json:"errorCode,omitempty"`
}

// ResumeSessionResponse restores persisted state for a paused session
type ResumeSessionResponse struct {
	SessionID       string           `json:"sessionId"`
	CurrentQuestion int              `json:"currentQuestion"`
	Documents       SessionDocuments `json:"documents"`
	MessageCount    int              `json:"messageCount"`
}
