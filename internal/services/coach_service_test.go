package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

func newCoachService(t *testing.T) (*services.CoachService, *MockSessionRepository, *MockMessageRepository, *MockAIClient) {
	t.Helper()
	mockSessions := new(MockSessionRepository)
	mockMessages := new(MockMessageRepository)
	mockAI := new(MockAIClient)
	service := services.NewCoachService(mockSessions, mockMessages, mockAI)
	return service, mockSessions, mockMessages, mockAI
}

func activeSession(sessionType models.SessionType) *models.CoachingSession {
	return &models.CoachingSession{
		ID:          "s1",
		Email:       "user@example.com",
		FirstName:   "Ada",
		SessionType: sessionType,
		Status:      models.SessionStatusActive,
	}
}

func assistantMessage(content string, question int) *models.ChatMessage {
	return &models.ChatMessage{
		SessionID:      "s1",
		Role:           models.RoleAssistant,
		Content:        content,
		QuestionNumber: &question,
	}
}

func TestCoachTurn_FirstTurnOpensWithoutUserMessage(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return([]*models.ChatMessage{}, nil).Once()
	mockAI.On("ChatCompletion", ctx, mock.MatchedBy(func(msgs []ai.Message) bool {
		// Only the system prompt goes out on the opening turn.
		return len(msgs) == 1 && msgs[0].Role == ai.RoleSystem
	})).Return("Welcome, Ada. Question 1: tell me about yourself.", nil).Once()
	mockMessages.On("Append", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Role == models.RoleAssistant && m.QuestionNumber != nil && *m.QuestionNumber == 1
	})).Return("m1", nil).Once()
	mockSessions.On("SetCurrentQuestion", ctx, "s1", 1).Return(nil).Once()

	resp, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1"})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.QuestionNumber)
	assert.False(t, resp.InterviewComplete)
	mockMessages.AssertExpectations(t)
}

func TestCoachTurn_HistoryAndUserMessageForwarded(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	history := []*models.ChatMessage{
		assistantMessage("Question 1: tell me about yourself.", 1),
		{SessionID: "s1", Role: models.RoleUser, Content: "I build APIs."},
		assistantMessage("Question 2: describe a hard bug.", 2),
	}

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return(history, nil).Once()
	mockAI.On("ChatCompletion", ctx, mock.MatchedBy(func(msgs []ai.Message) bool {
		// system + 3 history turns + the new user message, in order
		return len(msgs) == 5 &&
			msgs[0].Role == ai.RoleSystem &&
			msgs[1].Role == ai.RoleAssistant &&
			msgs[2].Role == ai.RoleUser &&
			msgs[3].Role == ai.RoleAssistant &&
			msgs[4].Role == ai.RoleUser &&
			msgs[4].Content == "It was a race in the cache layer."
	})).Return("Question 3: how did you find it?", nil).Once()
	mockMessages.On("Append", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Role == models.RoleUser
	})).Return("m2", nil).Once()
	mockMessages.On("Append", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Role == models.RoleAssistant && m.QuestionNumber != nil && *m.QuestionNumber == 3
	})).Return("m3", nil).Once()
	mockSessions.On("SetCurrentQuestion", ctx, "s1", 3).Return(nil).Once()

	resp, err := service.Turn(ctx, &models.CoachTurnRequest{
		SessionID: "s1",
		Message:   "It was a race in the cache layer.",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, resp.QuestionNumber)
	mockAI.AssertExpectations(t)
}

func TestCoachTurn_EmptyMessageRejectedAfterFirstTurn(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return([]*models.ChatMessage{
		assistantMessage("Question 1", 1),
	}, nil).Once()

	_, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1", Message: "   "})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	mockAI.AssertNotCalled(t, "ChatCompletion")
}

func TestCoachTurn_CompletedSession(t *testing.T) {
	service, mockSessions, _, _ := newCoachService(t)
	ctx := context.Background()

	done := activeSession(models.SessionTypeFullMock)
	done.Status = models.SessionStatusCompleted
	mockSessions.On("GetByID", ctx, "s1").Return(done, nil).Once()

	_, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1", Message: "hi"})

	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeSessionAlreadyCompleted, code)
}

func TestCoachTurn_AIFailureLeavesConversationUntouched(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return([]*models.ChatMessage{
		assistantMessage("Question 1", 1),
	}, nil).Once()
	mockAI.On("ChatCompletion", ctx, mock.Anything).Return("", errors.New("upstream timeout")).Once()

	_, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1", Message: "my answer"})

	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeAIConnectionFailed, code)
	mockMessages.AssertNotCalled(t, "Append")
	mockSessions.AssertNotCalled(t, "SetCurrentQuestion")
}

func TestCoachTurn_CompletionMarkerDetected(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return([]*models.ChatMessage{
		assistantMessage("Question 6", 6),
	}, nil).Once()
	mockAI.On("ChatCompletion", ctx, mock.Anything).
		Return("Great work today.\n\n## INTERVIEW COMPLETE", nil).Once()
	mockMessages.On("Append", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Role == models.RoleUser
	})).Return("m4", nil).Once()
	mockMessages.On("Append", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.Role == models.RoleAssistant
	})).Return("m5", nil).Once()
	mockSessions.On("SetCurrentQuestion", ctx, "s1", 7).Return(nil).Once()

	resp, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1", Message: "closing answer"})

	require.NoError(t, err)
	assert.True(t, resp.InterviewComplete)
}

func TestCoachTurn_QuickPrepPinsFirstReply(t *testing.T) {
	service, mockSessions, mockMessages, mockAI := newCoachService(t)
	ctx := context.Background()

	const packet = "Here is your prep packet for the role."

	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeQuickPrep), nil).Once()
	mockMessages.On("ListBySession", ctx, "s1").Return([]*models.ChatMessage{}, nil).Once()
	mockAI.On("ChatCompletion", ctx, mock.Anything).Return(packet, nil).Once()
	mockMessages.On("Append", ctx, mock.AnythingOfType("*models.ChatMessage")).Return("m6", nil).Once()
	mockSessions.On("SetCurrentQuestion", ctx, "s1", 1).Return(nil).Once()
	mockSessions.On("SetPrepContent", ctx, "s1", packet).Return(nil).Once()

	_, err := service.Turn(ctx, &models.CoachTurnRequest{SessionID: "s1"})

	require.NoError(t, err)
	mockSessions.AssertCalled(t, "SetPrepContent", ctx, "s1", packet)
}
