package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// CoachService proxies one conversation turn through the AI provider
type CoachService struct {
	sessionRepo repository.SessionDataSource
	messageRepo repository.MessageDataSource
	aiClient    ai.ClientInterface
}

// NewCoachService creates a new coach service
func NewCoachService(sessionRepo repository.SessionDataSource, messageRepo repository.MessageDataSource, aiClient ai.ClientInterface) *CoachService {
	return &CoachService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		aiClient:    aiClient,
	}
}

// Turn runs one exchange: system prompt, persisted history, the user's new
// message, then the model's reply. The first turn has no history and no user
// message; the system prompt alone opens the conversation.
func (s *CoachService) Turn(ctx context.Context, req *models.CoachTurnRequest) (*models.CoachTurnResponse, error) {
	session, err := s.sessionRepo.GetByID(ctx, req.SessionID)
	if err != nil {
		metrics.CoachTurns.WithLabelValues("unknown", "not_found").Inc()
		return nil, apperrors.Wrap(apperrors.CodeSessionNotFound, "session not found", err)
	}

	sessionType := string(session.SessionType)

	if session.Status != models.SessionStatusActive {
		metrics.CoachTurns.WithLabelValues(sessionType, "rejected").Inc()
		if session.Status == models.SessionStatusCompleted {
			return nil, apperrors.New(apperrors.CodeSessionAlreadyCompleted, "this interview is already finished")
		}
		return nil, apperrors.New(apperrors.CodeSessionNotFound, "session is not active")
	}

	history, err := s.messageRepo.ListBySession(ctx, req.SessionID)
	if err != nil {
		metrics.CoachTurns.WithLabelValues(sessionType, "error").Inc()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	firstTurn := len(history) == 0

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt(session)})
	for _, m := range history {
		role := ai.RoleUser
		if m.Role == models.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: m.Content})
	}

	userMessage := strings.TrimSpace(req.Message)
	if userMessage != "" {
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: userMessage})
	} else if !firstTurn {
		metrics.CoachTurns.WithLabelValues(sessionType, "rejected").Inc()
		return nil, apperrors.InvalidInputError("message", "message required after the first turn")
	}

	reply, err := s.aiClient.ChatCompletion(ctx, messages)
	if err != nil {
		metrics.CoachTurns.WithLabelValues(sessionType, "ai_error").Inc()
		logger.Error("Coach turn failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		if _, ok := apperrors.CodeOf(err); ok {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeAIConnectionFailed, "the coach is unreachable right now", err)
	}

	questionNumber := s.nextQuestionNumber(history)

	// Persistence comes after the AI call so a failed call leaves the
	// conversation exactly as it was.
	if userMessage != "" {
		if _, err := s.messageRepo.Append(ctx, &models.ChatMessage{
			SessionID: req.SessionID,
			Role:      models.RoleUser,
			Content:   userMessage,
		}); err != nil {
			metrics.CoachTurns.WithLabelValues(sessionType, "error").Inc()
			return nil, fmt.Errorf("failed to persist user turn: %w", err)
		}
	}
	if _, err := s.messageRepo.Append(ctx, &models.ChatMessage{
		SessionID:      req.SessionID,
		Role:           models.RoleAssistant,
		Content:        reply,
		QuestionNumber: &questionNumber,
	}); err != nil {
		metrics.CoachTurns.WithLabelValues(sessionType, "error").Inc()
		return nil, fmt.Errorf("failed to persist assistant turn: %w", err)
	}

	if err := s.sessionRepo.SetCurrentQuestion(ctx, req.SessionID, questionNumber); err != nil {
		logger.Error("Failed to advance question counter",
			zap.String("session_id", req.SessionID), zap.Error(err))
	}

	// quick_prep is a single-shot product: the first reply is the whole
	// prep packet and is pinned to the session.
	if firstTurn && session.SessionType == models.SessionTypeQuickPrep {
		if err := s.sessionRepo.SetPrepContent(ctx, req.SessionID, reply); err != nil {
			logger.Error("Failed to store prep packet",
				zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}

	complete := models.ContainsCompletionMarker(reply)
	metrics.CoachTurns.WithLabelValues(sessionType, "success").Inc()

	return &models.CoachTurnResponse{
		Reply:             reply,
		QuestionNumber:    questionNumber,
		InterviewComplete: complete,
	}, nil
}

// nextQuestionNumber counts prior assistant turns; each reply advances the
// interview by one question.
func (s *CoachService) nextQuestionNumber(history []*models.ChatMessage) int {
	n := 1
	for _, m := range history {
		if m.Role == models.RoleAssistant {
			n++
		}
	}
	return n
}
