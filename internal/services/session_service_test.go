package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

func sessionTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://talendro.test"},
	}
}

func newSessionService(t *testing.T) (*services.SessionService, *MockSessionRepository, *MockMessageRepository, *MockEntitlementService, *MockEmailClient) {
	t.Helper()
	mockSessions := new(MockSessionRepository)
	mockMessages := new(MockMessageRepository)
	mockProfiles := new(MockProfileRepository)
	mockEntitlement := new(MockEntitlementService)
	mockEmail := new(MockEmailClient)
	service := services.NewSessionService(mockSessions, mockMessages, mockProfiles, mockEntitlement, mockEmail, sessionTestConfig())
	return service, mockSessions, mockMessages, mockEntitlement, mockEmail
}

func pausedSession(pausedAt time.Time) *models.CoachingSession {
	return &models.CoachingSession{
		ID:              "11111111-1111-1111-1111-111111111111",
		Email:           "user@example.com",
		FirstName:       "Ada",
		SessionType:     models.SessionTypeFullMock,
		Status:          models.SessionStatusPaused,
		PausedAt:        &pausedAt,
		CurrentQuestion: 3,
	}
}

func TestSessionStart_SameTypePausedConflict(t *testing.T) {
	service, mockSessions, _, mockEntitlement, _ := newSessionService(t)
	ctx := context.Background()

	paused := pausedSession(time.Now().Add(-2 * time.Hour))
	mockSessions.On("FindResumableByEmail", ctx, "user@example.com", models.SessionTypeFullMock).Return(paused, nil).Once()

	resp, err := service.Start(ctx, &models.StartSessionRequest{
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.False(t, resp.Started)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, paused.ID, resp.Conflict.SessionID)
	assert.Equal(t, 3, resp.Conflict.CurrentQuestion)
	mockEntitlement.AssertNotCalled(t, "Consume")
}

func TestSessionStart_DifferentTypeDoesNotConflict(t *testing.T) {
	service, mockSessions, _, mockEntitlement, _ := newSessionService(t)
	ctx := context.Background()

	// A paused full mock exists, but the caller starts a voice mock. The
	// repository lookup is type-scoped, so nothing comes back.
	mockSessions.On("FindResumableByEmail", ctx, "user@example.com", models.SessionTypeVoiceMock).Return(nil, apperrors.ErrNotFound).Once()
	mockEntitlement.On("Consume", ctx, mock.AnythingOfType("*models.EntitlementCheckRequest")).
		Return(&models.EntitlementResult{Allowed: true, Remaining: 2, Limit: 4}, nil).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("new-session-id", nil).Once()

	resp, err := service.Start(ctx, &models.StartSessionRequest{
		Email:       "user@example.com",
		SessionType: models.SessionTypeVoiceMock,
	})

	require.NoError(t, err)
	assert.True(t, resp.Started)
	assert.Equal(t, "new-session-id", resp.SessionID)
	mockSessions.AssertExpectations(t)
}

func TestSessionStart_ExpiredPauseIsCancelledAndStartProceeds(t *testing.T) {
	service, mockSessions, _, mockEntitlement, _ := newSessionService(t)
	ctx := context.Background()

	expired := pausedSession(time.Now().Add(-25 * time.Hour))
	mockSessions.On("FindResumableByEmail", ctx, "user@example.com", models.SessionTypeFullMock).Return(expired, nil).Once()
	mockSessions.On("UpdateStatus", ctx, expired.ID, models.SessionStatusCancelled).Return(nil).Once()
	mockEntitlement.On("Consume", ctx, mock.AnythingOfType("*models.EntitlementCheckRequest")).
		Return(&models.EntitlementResult{Allowed: true, Remaining: 5, Limit: 6}, nil).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("fresh-id", nil).Once()

	resp, err := service.Start(ctx, &models.StartSessionRequest{
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, resp.Started)
	mockSessions.AssertExpectations(t)
}

func TestSessionStart_FreshCheckoutSkipsConflictCheck(t *testing.T) {
	service, mockSessions, _, mockEntitlement, _ := newSessionService(t)
	ctx := context.Background()

	pending := &models.CoachingSession{
		ID:          "22222222-2222-2222-2222-222222222222",
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
		Status:      models.SessionStatusPending,
	}
	mockSessions.On("GetByCheckoutSessionID", ctx, "cs_test_123").Return(pending, nil).Once()
	mockSessions.On("GetByID", ctx, pending.ID).Return(pending, nil).Once()
	mockSessions.On("UpdateStatus", ctx, pending.ID, models.SessionStatusActive).Return(nil).Once()

	resp, err := service.Start(ctx, &models.StartSessionRequest{
		CheckoutSessionID: "cs_test_123",
		Email:             "user@example.com",
		SessionType:       models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, resp.Started)
	mockSessions.AssertNotCalled(t, "FindResumableByEmail")
	mockEntitlement.AssertNotCalled(t, "Consume")
}

func TestSessionStart_EntitlementDenied(t *testing.T) {
	service, mockSessions, _, mockEntitlement, _ := newSessionService(t)
	ctx := context.Background()

	mockSessions.On("FindResumableByEmail", ctx, "pro@example.com", models.SessionTypeFullMock).Return(nil, apperrors.ErrNotFound).Once()
	mockEntitlement.On("Consume", ctx, mock.AnythingOfType("*models.EntitlementCheckRequest")).
		Return(&models.EntitlementResult{Allowed: false, Message: "limit reached"}, nil).Once()

	resp, err := service.Start(ctx, &models.StartSessionRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)
	assert.False(t, resp.Started)
	// A limit denial is an access problem, not a missing session.
	assert.Empty(t, resp.ErrorCode)
	mockSessions.AssertNotCalled(t, "Create")
}

func TestSaveDocuments_StorageFailureDoesNotBlockIntake(t *testing.T) {
	service, mockSessions, _, _, _ := newSessionService(t)
	ctx := context.Background()

	docs := models.SessionDocuments{
		FirstName:      "Ada",
		ResumeText:     "resume",
		JobDescription: "role",
	}
	mockSessions.On("GetByID", ctx, "s1").Return(activeSession(models.SessionTypeFullMock), nil).Once()
	mockSessions.On("SetDocuments", ctx, "s1", docs).Return(errors.New("disk full")).Once()

	err := service.SaveDocuments(ctx, "s1", &docs)

	require.NoError(t, err)
	mockSessions.AssertExpectations(t)
}

func TestSaveDocuments_FinishedSessionRefused(t *testing.T) {
	service, mockSessions, _, _, _ := newSessionService(t)
	ctx := context.Background()

	done := activeSession(models.SessionTypeFullMock)
	done.Status = models.SessionStatusCompleted
	mockSessions.On("GetByID", ctx, "s1").Return(done, nil).Once()

	err := service.SaveDocuments(ctx, "s1", &models.SessionDocuments{
		FirstName:      "Ada",
		ResumeText:     "resume",
		JobDescription: "role",
	})

	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeSessionAlreadyCompleted, code)
	mockSessions.AssertNotCalled(t, "SetDocuments")
}

func TestSessionResume_InsideWindow(t *testing.T) {
	service, mockSessions, mockMessages, _, _ := newSessionService(t)
	ctx := context.Background()

	paused := pausedSession(time.Now().Add(-23 * time.Hour))
	paused.ResumeText = "resume text"
	paused.JobDescription = "jd"
	mockSessions.On("GetByID", ctx, paused.ID).Return(paused, nil).Once()
	mockSessions.On("MarkResumed", ctx, paused.ID).Return(nil).Once()
	mockMessages.On("ListBySession", ctx, paused.ID).Return([]*models.ChatMessage{{}, {}, {}}, nil).Once()

	resp, err := service.Resume(ctx, paused.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, resp.CurrentQuestion)
	assert.Equal(t, "resume text", resp.Documents.ResumeText)
	assert.Equal(t, 3, resp.MessageCount)
}

func TestSessionResume_PastWindowCancelsAndRefuses(t *testing.T) {
	service, mockSessions, _, _, _ := newSessionService(t)
	ctx := context.Background()

	expired := pausedSession(time.Now().Add(-25 * time.Hour))
	mockSessions.On("GetByID", ctx, expired.ID).Return(expired, nil).Once()
	mockSessions.On("UpdateStatus", ctx, expired.ID, models.SessionStatusCancelled).Return(nil).Once()

	_, err := service.Resume(ctx, expired.ID)

	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeSessionExpired, code)
	mockSessions.AssertNotCalled(t, "MarkResumed")
}

func TestSessionPause_SendsReminderEmail(t *testing.T) {
	service, mockSessions, _, _, mockEmail := newSessionService(t)
	ctx := context.Background()

	active := &models.CoachingSession{
		ID:          "33333333-3333-3333-3333-333333333333",
		Email:       "user@example.com",
		FirstName:   "Ada",
		SessionType: models.SessionTypeFullMock,
		Status:      models.SessionStatusActive,
	}
	mockSessions.On("GetByID", ctx, active.ID).Return(active, nil).Once()
	mockSessions.On("SetCurrentQuestion", ctx, active.ID, 4).Return(nil).Once()
	mockSessions.On("MarkPaused", ctx, active.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	mockEmail.On("Send", ctx, mock.AnythingOfType("email.SendRequest")).Return(nil).Once()

	err := service.Pause(ctx, active.ID, 4)

	require.NoError(t, err)
	mockSessions.AssertExpectations(t)
	mockEmail.AssertExpectations(t)
}

func TestSessionPause_OnlyActive(t *testing.T) {
	service, mockSessions, _, _, _ := newSessionService(t)
	ctx := context.Background()

	paused := pausedSession(time.Now())
	mockSessions.On("GetByID", ctx, paused.ID).Return(paused, nil).Once()

	err := service.Pause(ctx, paused.ID, 1)

	require.Error(t, err)
	mockSessions.AssertNotCalled(t, "MarkPaused")
}

func TestSessionAbandon_OnlyPaused(t *testing.T) {
	service, mockSessions, _, _, _ := newSessionService(t)
	ctx := context.Background()

	active := &models.CoachingSession{
		ID:     "44444444-4444-4444-4444-444444444444",
		Status: models.SessionStatusActive,
	}
	mockSessions.On("GetByID", ctx, active.ID).Return(active, nil).Once()

	err := service.Abandon(ctx, active.ID)

	require.Error(t, err)
	mockSessions.AssertNotCalled(t, "UpdateStatus")
}
