package models

import "time"

// ErrorLog is a captured failure record for support triage
type ErrorLog struct {
	ID                string     `json:"id"`
	ErrorType         string     `json:"errorType"`
	ErrorCode         string     `json:"errorCode"`
	ErrorMessage      string     `json:"errorMessage"`
	UserEmail         string     `json:"userEmail"`
	SessionID         *string    `json:"sessionId"`
	Context           *string    `json:"context"` // free-form JSON
	AIResolution      *string    `json:"aiResolution"`
	ResolutionSuccess bool       `json:"resolutionSuccess"`
	Escalated         bool       `json:"escalated"`
	Resolved          bool       `json:"resolved"`
	CreatedAt         time.Time  `json:"createdAt"`
	ResolvedAt        *time.Time `json:"resolvedAt"`
}

// ReportErrorRequest is the centralized error-reporting call payload.
// The error code comes from the closed application set; the backend never
// infers it from message text.
type ReportErrorRequest struct {
	ErrorType    string  `json:"errorType" binding:"required,max=100"`
	ErrorCode    string  `json:"errorCode" binding:"required,max=100"`
	ErrorMessage string  `json:"errorMessage" binding:"required,max=2000"`
	UserEmail    string  `json:"userEmail" binding:"omitempty,email"`
	SessionID    string  `json:"sessionId" binding:"omitempty,uuid"`
	Context      *string `json:"context"`
}
