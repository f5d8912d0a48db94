package models

import "time"

// SessionResult is the scored outcome of a completed session. One row per
// session, created exactly once by the results composer.
type SessionResult struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"sessionId"`
	OverallScore   *int       `json:"overallScore"`
	Strengths      []string   `json:"strengths"`
	Improvements   []string   `json:"improvements"`
	Recommendation string     `json:"recommendation"`
	EmailSent      bool       `json:"emailSent"`
	EmailSentAt    *time.Time `json:"emailSentAt"`
	ReportURL      *string    `json:"reportUrl"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// TranscriptEntry is one question/answer pair rendered from a transcript
type TranscriptEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SessionReport is the assembled report: what gets emailed and what gets
// shown on screen. The two must be identical, so both come from this one
// structure.
type SessionReport struct {
	SessionID    string            `json:"sessionId"`
	SessionType  SessionType       `json:"sessionType"`
	FirstName    string            `json:"firstName"`
	Analysis     *SessionResult    `json:"analysis,omitempty"`
	Transcript   []TranscriptEntry `json:"transcript,omitempty"`
	PrepContent  string            `json:"prepContent,omitempty"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}

// CompleteSessionRequest finishes a session and triggers results delivery
type CompleteSessionRequest struct {
	// Raw transcript for voice sessions; chat sessions use persisted messages
	Transcript string `json:"transcript" binding:"max=200000"`
	EndedEarly bool   `json:"endedEarly"`
}
