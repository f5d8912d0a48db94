package models

import "time"

// MessageRole is the author of one conversation turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one persisted turn of a text coaching conversation.
// Rows are append-only.
type ChatMessage struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"sessionId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Feedback       *string     `json:"feedback"` // optional per-turn feedback JSON
	QuestionNumber *int        `json:"questionNumber"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// CoachTurnRequest is one round trip through the AI coaching proxy.
// Message is empty on the session's first turn, where the system prompt
// alone initiates the exchange.
type CoachTurnRequest struct {
	SessionID string `json:"sessionId" binding:"required,uuid"`
	Message   string `json:"message" binding:"max=20000"`
}

// CoachTurnResponse carries the assistant's reply
type CoachTurnResponse struct {
	Reply             string `json:"reply"`
	QuestionNumber    int    `json:"questionNumber"`
	InterviewComplete bool   `json:"interviewComplete"`
}
