package models

import (
	"strings"
	"time"
)

// SessionType identifies one of the four coaching products
type SessionType string

const (
	SessionTypeQuickPrep SessionType = "quick_prep"
	SessionTypeFullMock  SessionType = "full_mock"
	SessionTypeVoiceMock SessionType = "voice_mock"
	SessionTypePro       SessionType = "pro"
)

// AllSessionTypes lists every purchasable product
var AllSessionTypes = []SessionType{SessionTypeQuickPrep, SessionTypeFullMock, SessionTypeVoiceMock, SessionTypePro}

// IsValid reports whether s is a known session type
func (s SessionType) IsValid() bool {
	switch s {
	case SessionTypeQuickPrep, SessionTypeFullMock, SessionTypeVoiceMock, SessionTypePro:
		return true
	}
	return false
}

// TierRank returns the position of a one-time product in the upgrade ladder
// (low to high). Pro is a subscription and sits outside the ladder: rank -1.
func (s SessionType) TierRank() int {
	switch s {
	case SessionTypeQuickPrep:
		return 0
	case SessionTypeFullMock:
		return 1
	case SessionTypeVoiceMock:
		return 2
	default:
		return -1
	}
}

// BasePriceCents returns the list price for a product
func (s SessionType) BasePriceCents() int64 {
	switch s {
	case SessionTypeQuickPrep:
		return 1200
	case SessionTypeFullMock:
		return 2900
	case SessionTypeVoiceMock:
		return 4900
	case SessionTypePro:
		return 2500 // per month
	default:
		return 0
	}
}

// DisplayName returns the customer-facing product name
func (s SessionType) DisplayName() string {
	switch s {
	case SessionTypeQuickPrep:
		return "Quick Prep Packet"
	case SessionTypeFullMock:
		return "Full Mock Interview"
	case SessionTypeVoiceMock:
		return "Voice Mock Interview"
	case SessionTypePro:
		return "Talendro Pro"
	default:
		return string(s)
	}
}

// SessionStatus represents the lifecycle status of a coaching session
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsTerminal returns true for statuses that allow no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// CanTransitionTo checks if a status transition is valid.
// Transitions are monotonic except the active<->paused cycle.
func (s SessionStatus) CanTransitionTo(newStatus SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case SessionStatusPending:
		return newStatus == SessionStatusActive || newStatus == SessionStatusCancelled
	case SessionStatusActive:
		return newStatus == SessionStatusPaused || newStatus == SessionStatusCompleted || newStatus == SessionStatusCancelled
	case SessionStatusPaused:
		return newStatus == SessionStatusActive || newStatus == SessionStatusCancelled
	default:
		return false
	}
}

// PauseExpiry is how long a paused session stays resumable
const PauseExpiry = 24 * time.Hour

// completionMarkers are scanned case-insensitively in every assistant reply.
// The model is instructed to emit one of these when the interview is over,
// but formatting varies, hence the three spellings.
var completionMarkers = []string{
	"## INTERVIEW COMPLETE",
	"**INTERVIEW COMPLETE**",
	"INTERVIEW COMPLETE",
}

// ContainsCompletionMarker reports whether an assistant reply signals the
// end of the interview.
func ContainsCompletionMarker(reply string) bool {
	upper := strings.ToUpper(reply)
	for _, marker := range completionMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// CoachingSession represents one purchased or subscription-granted engagement
type CoachingSession struct {
	ID                      string        `json:"id"`
	Email                   string        `json:"email"`
	FirstName               string        `json:"firstName"`
	SessionType             SessionType   `json:"sessionType"`
	Status                  SessionStatus `json:"status"`
	ResumeText              string        `json:"resumeText"`
	JobDescription          string        `json:"jobDescription"`
	CompanyURL              string        `json:"companyUrl"`
	PrepContent             *string       `json:"prepContent"`
	PausedAt                *time.Time    `json:"pausedAt"`
	CurrentQuestion         int           `json:"currentQuestion"`
	StripeCheckoutSessionID *string       `json:"stripeCheckoutSessionId"`
	StripePaymentIntentID   *string       `json:"stripePaymentIntentId"`
	CreatedAt               time.Time     `json:"createdAt"`
	UpdatedAt               time.Time     `json:"updatedAt"`
	CompletedAt             *time.Time    `json:"completedAt"`
}

// PauseExpired reports whether a paused session is past its resume window
func (s *CoachingSession) PauseExpired(now time.Time) bool {
	if s.Status != SessionStatusPaused || s.PausedAt == nil {
		return false
	}
	return now.Sub(*s.PausedAt) > PauseExpiry
}

// SessionDocuments is the intake payload saved onto a session
type SessionDocuments struct {
	FirstName      string `json:"firstName" binding:"required,max=100"`
	ResumeText     string `json:"resumeText" binding:"required,max=50000"`
	JobDescription string `json:"jobDescription" binding:"required,max=50000"`
	CompanyURL     string `json:"companyUrl" binding:"omitempty,url,max=2000"`
}
