package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

const resolutionTimeout = 60 * time.Second

// knownResolutions maps (error type, error code) to canned user-facing
// resolutions. Codes come from the closed application set; nothing here is
// matched against message text.
var knownResolutions = map[string]string{
	"session/session_not_found":         "We couldn't find that session. Open the link from your confirmation email, which always points at your current session. If you purchased in the last few minutes, give it a moment and try again.",
	"session/session_expired":           "Paused sessions stay available for 24 hours and this one has passed that window, so it can't be resumed. Your completed answers were kept. Start a fresh session when you're ready.",
	"session/session_already_completed": "That session has already finished and its results were emailed to you. Check your inbox (and spam folder) for the report. Starting a new session needs a new purchase or an available Pro slot.",
	"payment/network_error":             "The payment provider didn't respond in time. If you completed checkout, you were charged at most once and your session will unlock within a few minutes. Refresh the verification page rather than paying again.",
	"ai/ai_connection_failed":           "Our AI coach had a temporary connection problem. Your conversation was saved exactly where it stopped. Wait a few seconds and send your answer again; nothing was lost.",
	"general/rate_limit":                "You sent requests faster than we allow for a short window. Wait about a minute and continue; your session state is unaffected.",
}

// ErrorLogService captures user-facing failures and follows up with an
// automated resolution where one exists
type ErrorLogService struct {
	errorLogRepo repository.ErrorLogDataSource
	aiClient     ai.ClientInterface
	emailClient  email.ClientInterface
	config       *config.Config

	wg sync.WaitGroup
}

// NewErrorLogService creates a new error-log service
func NewErrorLogService(
	errorLogRepo repository.ErrorLogDataSource,
	aiClient ai.ClientInterface,
	emailClient email.ClientInterface,
	cfg *config.Config,
) *ErrorLogService {
	return &ErrorLogService{
		errorLogRepo: errorLogRepo,
		aiClient:     aiClient,
		emailClient:  emailClient,
		config:       cfg,
	}
}

// Report persists the error and returns immediately. Resolution drafting and
// the emails run in the background so the reporting call stays cheap; the
// caller is usually a frontend already showing an error state.
func (s *ErrorLogService) Report(ctx context.Context, req *models.ReportErrorRequest) (string, error) {
	entry := &models.ErrorLog{
		ErrorType:    req.ErrorType,
		ErrorCode:    req.ErrorCode,
		ErrorMessage: req.ErrorMessage,
		UserEmail:    req.UserEmail,
		Context:      req.Context,
	}
	if req.SessionID != "" {
		sessionID := req.SessionID
		entry.SessionID = &sessionID
	}

	id, err := s.errorLogRepo.Create(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("failed to record error report: %w", err)
	}
	entry.ID = id

	metrics.ErrorReports.WithLabelValues(req.ErrorCode).Inc()
	logger.Info("Error report captured",
		zap.String("error_log_id", id),
		zap.String("error_type", req.ErrorType),
		zap.String("error_code", req.ErrorCode))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.Background(), resolutionTimeout)
		defer cancel()
		s.resolve(bgCtx, entry)
	}()

	return id, nil
}

// Wait blocks until in-flight resolution work finishes; used at shutdown
func (s *ErrorLogService) Wait() {
	s.wg.Wait()
}

func (s *ErrorLogService) resolve(ctx context.Context, entry *models.ErrorLog) {
	resolution, canned := knownResolutions[entry.ErrorType+"/"+entry.ErrorCode]
	if !canned {
		drafted, err := s.draftResolution(ctx, entry)
		if err != nil {
			logger.Error("Resolution draft failed",
				zap.String("error_log_id", entry.ID), zap.Error(err))
		} else {
			resolution = drafted
		}
	}

	resolved := false
	if resolution != "" && entry.UserEmail != "" {
		resolved = s.sendResolution(ctx, entry, resolution)
	}

	if resolution != "" {
		if err := s.errorLogRepo.SetResolution(ctx, entry.ID, resolution, resolved); err != nil {
			logger.Error("Resolution save failed",
				zap.String("error_log_id", entry.ID), zap.Error(err))
		}
	}

	// The admin always gets the full context, whether or not an automated
	// resolution went out.
	s.escalate(ctx, entry, resolution)
}

func (s *ErrorLogService) draftResolution(ctx context.Context, entry *models.ErrorLog) (string, error) {
	details := fmt.Sprintf("Error type: %s\nError code: %s\nError message: %s",
		entry.ErrorType, entry.ErrorCode, entry.ErrorMessage)
	if entry.Context != nil {
		details += "\nContext: " + *entry.Context
	}

	return s.aiClient.ChatCompletion(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: resolutionPrompt},
		{Role: ai.RoleUser, Content: details},
	})
}

func (s *ErrorLogService) sendResolution(ctx context.Context, entry *models.ErrorLog, resolution string) bool {
	html, err := email.RenderSupportResolution(email.SupportResolutionData{Resolution: resolution})
	if err != nil {
		logger.Error("Resolution render failed", zap.String("error_log_id", entry.ID), zap.Error(err))
		return false
	}

	err = s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: entry.UserEmail},
		Subject:  "About the issue you just hit on Talendro",
		HTML:     html,
		Template: email.TemplateSupportResolution,
	})
	if err != nil {
		logger.Error("Resolution email failed", zap.String("error_log_id", entry.ID), zap.Error(err))
		return false
	}

	return true
}

func (s *ErrorLogService) escalate(ctx context.Context, entry *models.ErrorLog, resolution string) {
	sessionID := ""
	if entry.SessionID != nil {
		sessionID = *entry.SessionID
	}

	html, err := email.RenderEscalation(email.EscalationData{
		ErrorType:    entry.ErrorType,
		ErrorCode:    entry.ErrorCode,
		ErrorMessage: entry.ErrorMessage,
		UserEmail:    entry.UserEmail,
		SessionID:    sessionID,
		AIResolution: resolution,
	})
	if err != nil {
		logger.Error("Escalation render failed", zap.String("error_log_id", entry.ID), zap.Error(err))
		return
	}

	err = s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: s.config.Email.AdminEmail},
		Subject:  fmt.Sprintf("[%s] %s reported by %s", entry.ErrorType, entry.ErrorCode, entry.UserEmail),
		HTML:     html,
		Template: email.TemplateAdminEscalation,
	})
	if err != nil {
		logger.Error("Escalation email failed", zap.String("error_log_id", entry.ID), zap.Error(err))
		return
	}

	if err := s.errorLogRepo.MarkEscalated(ctx, entry.ID); err != nil {
		logger.Error("Escalation flag failed", zap.String("error_log_id", entry.ID), zap.Error(err))
	}
}
