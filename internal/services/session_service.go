package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
)

// SessionService drives the session lifecycle: start, documents, pause,
// resume, abandon
type SessionService struct {
	sessionRepo repository.SessionDataSource
	messageRepo repository.MessageDataSource
	profileRepo repository.ProfileDataSource
	entitlement EntitlementServiceInterface
	emailClient email.ClientInterface
	config      *config.Config
	now         func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	sessionRepo repository.SessionDataSource,
	messageRepo repository.MessageDataSource,
	profileRepo repository.ProfileDataSource,
	entitlement EntitlementServiceInterface,
	emailClient email.ClientInterface,
	cfg *config.Config,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		profileRepo: profileRepo,
		entitlement: entitlement,
		emailClient: emailClient,
		config:      cfg,
		now:         time.Now,
	}
}

// Start begins an interview. Callers holding a live session id or a paid
// checkout id skip the conflict check; everyone else is screened for a
// paused session of the same product type before anything new starts.
func (s *SessionService) Start(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
	if req.SessionID != "" {
		return s.startExisting(ctx, req.SessionID)
	}

	if req.CheckoutSessionID != "" {
		session, err := s.sessionRepo.GetByCheckoutSessionID(ctx, req.CheckoutSessionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return &models.StartSessionResponse{
					Started:   false,
					ErrorCode: string(apperrors.CodeSessionNotFound),
				}, nil
			}
			return nil, err
		}
		return s.startExisting(ctx, session.ID)
	}

	// Conflict check: same product type only. A paused quick prep must not
	// block a new voice mock.
	existing, err := s.sessionRepo.FindResumableByEmail(ctx, req.Email, req.SessionType)
	if err == nil {
		if existing.Status == models.SessionStatusPaused {
			if !existing.PauseExpired(s.now()) {
				return &models.StartSessionResponse{
					Started: false,
					Conflict: &models.PausedSessionConflict{
						SessionID:       existing.ID,
						PausedAt:        *existing.PausedAt,
						CurrentQuestion: existing.CurrentQuestion,
					},
				}, nil
			}
			// Expired pauses are dead; cancel and fall through to a new start.
			if cancelErr := s.sessionRepo.UpdateStatus(ctx, existing.ID, models.SessionStatusCancelled); cancelErr != nil {
				logger.Error("Failed to cancel expired pause",
					zap.String("session_id", existing.ID), zap.Error(cancelErr))
			}
		} else {
			return &models.StartSessionResponse{Started: true, SessionID: existing.ID}, nil
		}
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Without a purchase reference the start must come from a Pro
	// entitlement, consumed atomically before the session exists.
	result, err := s.entitlement.Consume(ctx, &models.EntitlementCheckRequest{
		Email:       req.Email,
		SessionType: req.SessionType,
	})
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return &models.StartSessionResponse{Started: false}, apperrors.AccessDeniedError(result.Message)
	}

	sessionID, err := s.sessionRepo.Create(ctx, &models.CoachingSession{
		Email:       req.Email,
		SessionType: req.SessionType,
		Status:      models.SessionStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("Session started from entitlement",
		zap.String("session_id", sessionID),
		zap.String("session_type", string(req.SessionType)))

	return &models.StartSessionResponse{Started: true, SessionID: sessionID}, nil
}

func (s *SessionService) startExisting(ctx context.Context, sessionID string) (*models.StartSessionResponse, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &models.StartSessionResponse{
				Started:   false,
				ErrorCode: string(apperrors.CodeSessionNotFound),
			}, nil
		}
		return nil, err
	}

	switch session.Status {
	case models.SessionStatusActive:
		return &models.StartSessionResponse{Started: true, SessionID: session.ID}, nil
	case models.SessionStatusPending:
		if err := s.sessionRepo.UpdateStatus(ctx, session.ID, models.SessionStatusActive); err != nil {
			return nil, err
		}
		return &models.StartSessionResponse{Started: true, SessionID: session.ID}, nil
	case models.SessionStatusPaused:
		return &models.StartSessionResponse{
			Started: false,
			Conflict: &models.PausedSessionConflict{
				SessionID:       session.ID,
				PausedAt:        *session.PausedAt,
				CurrentQuestion: session.CurrentQuestion,
			},
		}, nil
	case models.SessionStatusCompleted:
		return &models.StartSessionResponse{
			Started:   false,
			SessionID: session.ID,
			ErrorCode: string(apperrors.CodeSessionAlreadyCompleted),
		}, nil
	default:
		return &models.StartSessionResponse{
			Started:   false,
			ErrorCode: string(apperrors.CodeSessionExpired),
		}, nil
	}
}

// SaveDocuments stores the intake payload on a session. Callers treat this
// as best-effort; the interview can proceed on in-memory documents.
func (s *SessionService) SaveDocuments(ctx context.Context, sessionID string, docs *models.SessionDocuments) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return apperrors.New(apperrors.CodeSessionAlreadyCompleted, "session is finished")
	}

	// The client keeps its own copy and the interview runs fine on that,
	// so a write failure is logged instead of failing the intake.
	if err := s.sessionRepo.SetDocuments(ctx, sessionID, *docs); err != nil {
		logger.Warn("Failed to persist session documents",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	return nil
}

// Pause suspends an active session and emails a resume link
func (s *SessionService) Pause(ctx context.Context, sessionID string, currentQuestion int) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusActive {
		return apperrors.New(apperrors.CodeSessionNotFound, "only active sessions can pause")
	}

	pausedAt := s.now()
	if currentQuestion > 0 {
		if err := s.sessionRepo.SetCurrentQuestion(ctx, sessionID, currentQuestion); err != nil {
			return err
		}
	}
	if err := s.sessionRepo.MarkPaused(ctx, sessionID, pausedAt); err != nil {
		return err
	}

	s.sendPauseReminder(ctx, session, pausedAt)

	logger.Info("Session paused",
		zap.String("session_id", sessionID),
		zap.Int("current_question", currentQuestion))

	return nil
}

// Resume reactivates a paused session inside the 24h window. Past it the
// session is cancelled and the caller gets session_expired; dead pauses are
// never resurrected.
func (s *SessionService) Resume(ctx context.Context, sessionID string) (*models.ResumeSessionResponse, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusPaused {
		return nil, apperrors.New(apperrors.CodeSessionNotFound, "session is not paused")
	}

	if session.PauseExpired(s.now()) {
		if err := s.sessionRepo.UpdateStatus(ctx, sessionID, models.SessionStatusCancelled); err != nil {
			logger.Error("Failed to cancel expired session",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, apperrors.New(apperrors.CodeSessionExpired, "this session expired after 24 hours paused")
	}

	if err := s.sessionRepo.MarkResumed(ctx, sessionID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListBySession(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load message history on resume",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	logger.Info("Session resumed",
		zap.String("session_id", sessionID),
		zap.Int("current_question", session.CurrentQuestion))

	return &models.ResumeSessionResponse{
		SessionID:       sessionID,
		CurrentQuestion: session.CurrentQuestion,
		Documents: models.SessionDocuments{
			FirstName:      session.FirstName,
			ResumeText:     session.ResumeText,
			JobDescription: session.JobDescription,
			CompanyURL:     session.CompanyURL,
		},
		MessageCount: len(messages),
	}, nil
}

// Abandon cancels a paused session the user chose not to resume
func (s *SessionService) Abandon(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionStatusPaused {
		return apperrors.New(apperrors.CodeSessionNotFound, "only paused sessions can be abandoned")
	}

	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, models.SessionStatusCancelled); err != nil {
		return err
	}

	logger.Info("Session abandoned", zap.String("session_id", sessionID))
	return nil
}

func (s *SessionService) sendPauseReminder(ctx context.Context, session *models.CoachingSession, pausedAt time.Time) {
	html, err := email.RenderPauseReminder(email.PauseReminderData{
		FirstName:   session.FirstName,
		ProductName: session.SessionType.DisplayName(),
		ExpiresAt:   email.FormatExpiry(pausedAt.Add(models.PauseExpiry)),
		ResumeURL:   s.config.Server.BaseURL + "/session/" + session.ID + "/resume",
	})
	if err != nil {
		logger.Error("Pause reminder render failed", zap.Error(err))
		return
	}

	if err := s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: session.Email, Name: session.FirstName},
		Subject:  "Your interview is paused",
		HTML:     html,
		Template: email.TemplatePauseReminder,
	}); err != nil {
		logger.Error("Pause reminder send failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}
