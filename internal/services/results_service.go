package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
	"github.com/talendro/talendro-api/pkg/s3storage"
)

// Transcript speaker labels. The voice bridge and the frontend both emit
// these exact prefixes.
const (
	coachLabel = "Sarah (Coach):"
	userLabel  = "You:"
)

// ResultsService assembles the end-of-session report: analysis, transcript,
// prep packet
type ResultsService struct {
	sessionRepo repository.SessionDataSource
	messageRepo repository.MessageDataSource
	resultRepo  repository.ResultDataSource
	aiClient    ai.ClientInterface
	emailClient email.ClientInterface
	storage     s3storage.ClientInterface
	now         func() time.Time
}

// NewResultsService creates a new results service
func NewResultsService(
	sessionRepo repository.SessionDataSource,
	messageRepo repository.MessageDataSource,
	resultRepo repository.ResultDataSource,
	aiClient ai.ClientInterface,
	emailClient email.ClientInterface,
	storage s3storage.ClientInterface,
) *ResultsService {
	return &ResultsService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		resultRepo:  resultRepo,
		aiClient:    aiClient,
		emailClient: emailClient,
		storage:     storage,
		now:         time.Now,
	}
}

// Complete finishes a session and returns the report shown on screen. The
// emailed report carries the identical content. Re-completing a completed
// session returns the stored report untouched: one completion, one email.
func (s *ResultsService) Complete(ctx context.Context, sessionID string, req *models.CompleteSessionRequest) (*models.SessionReport, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSessionNotFound, "session not found", err)
	}

	if session.Status == models.SessionStatusCompleted {
		return s.GetReport(ctx, sessionID)
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, apperrors.New(apperrors.CodeSessionExpired, "session was cancelled")
	}

	transcriptText := strings.TrimSpace(req.Transcript)
	if transcriptText == "" {
		transcriptText = s.renderStoredTranscript(ctx, sessionID)
	}
	entries := parseTranscript(transcriptText)

	report := &models.SessionReport{
		SessionID:   sessionID,
		SessionType: session.SessionType,
		FirstName:   session.FirstName,
		Transcript:  entries,
		GeneratedAt: s.now().UTC(),
	}
	if session.PrepContent != nil {
		report.PrepContent = *session.PrepContent
	}

	// Mock products get an AI assessment; quick prep's deliverable is the
	// packet itself.
	if session.SessionType != models.SessionTypeQuickPrep && len(entries) > 0 {
		analysis, err := s.analyze(ctx, sessionID, transcriptText)
		if err != nil {
			logger.Error("Transcript analysis failed",
				zap.String("session_id", sessionID), zap.Error(err))
		} else {
			stored, err := s.resultRepo.Upsert(ctx, analysis)
			if err != nil {
				return nil, fmt.Errorf("failed to store analysis: %w", err)
			}
			report.Analysis = stored
		}
	}

	if err := s.sessionRepo.MarkCompleted(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	metrics.SessionsCompleted.WithLabelValues(string(session.SessionType)).Inc()

	html, err := s.renderReportHTML(session, report)
	if err != nil {
		logger.Error("Report render failed", zap.String("session_id", sessionID), zap.Error(err))
	} else {
		s.archiveReport(ctx, sessionID, html)
		s.emailReport(ctx, session, html)
	}

	logger.Info("Session completed",
		zap.String("session_id", sessionID),
		zap.String("session_type", string(session.SessionType)),
		zap.Bool("ended_early", req.EndedEarly),
		zap.Int("transcript_entries", len(entries)))

	return report, nil
}

// GetReport rebuilds the report for an already completed session from
// stored rows
func (s *ResultsService) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSessionNotFound, "session not found", err)
	}

	report := &models.SessionReport{
		SessionID:   sessionID,
		SessionType: session.SessionType,
		FirstName:   session.FirstName,
		GeneratedAt: s.now().UTC(),
	}
	if session.PrepContent != nil {
		report.PrepContent = *session.PrepContent
	}

	result, err := s.resultRepo.GetBySessionID(ctx, sessionID)
	if err == nil {
		report.Analysis = result
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	report.Transcript = parseTranscript(s.renderStoredTranscript(ctx, sessionID))

	return report, nil
}

// renderStoredTranscript flattens persisted chat turns into the labeled
// transcript format
func (s *ResultsService) renderStoredTranscript(ctx context.Context, sessionID string) string {
	messages, err := s.messageRepo.ListBySession(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load transcript messages",
			zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}

	var sb strings.Builder
	for _, m := range messages {
		if m.Role == models.RoleAssistant {
			sb.WriteString(coachLabel + " ")
		} else {
			sb.WriteString(userLabel + " ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

type analysisResult struct {
	OverallScore   int      `json:"overall_score"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	Recommendation string   `json:"recommendation"`
}

func (s *ResultsService) analyze(ctx context.Context, sessionID, transcript string) (*models.SessionResult, error) {
	var parsed analysisResult
	err := s.aiClient.ChatCompletionJSON(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: analysisPrompt},
		{Role: ai.RoleUser, Content: transcript},
	}, &parsed)
	if err != nil {
		return nil, err
	}

	score := parsed.OverallScore
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	return &models.SessionResult{
		SessionID:      sessionID,
		OverallScore:   &score,
		Strengths:      parsed.Strengths,
		Improvements:   parsed.Improvements,
		Recommendation: parsed.Recommendation,
	}, nil
}

func (s *ResultsService) renderReportHTML(session *models.CoachingSession, report *models.SessionReport) (string, error) {
	data := email.ResultsData{
		FirstName:   report.FirstName,
		ProductName: session.SessionType.DisplayName(),
		Transcript:  report.Transcript,
	}
	if report.Analysis != nil {
		data.OverallScore = report.Analysis.OverallScore
		data.Strengths = report.Analysis.Strengths
		data.Improvements = report.Analysis.Improvements
		data.Recommendation = report.Analysis.Recommendation
	}
	if report.PrepContent != "" {
		// Prep packets are model-generated markdown rendered client side;
		// the email keeps them as preformatted text.
		data.PrepContent = template.HTML("<pre style=\"white-space:pre-wrap;font-family:inherit;\">" +
			template.HTMLEscapeString(report.PrepContent) + "</pre>")
	}

	return email.RenderResults(data)
}

// archiveReport uploads the rendered report, best-effort. Storage is optional
// in local setups, so a nil client skips the archive entirely.
func (s *ResultsService) archiveReport(ctx context.Context, sessionID, html string) {
	if s.storage == nil {
		return
	}

	key := fmt.Sprintf("reports/%s/%s.html", s.now().UTC().Format("2006/01"), sessionID)
	url, err := s.storage.UploadReport(ctx, key, html)
	if err != nil {
		logger.Error("Report archive failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := s.resultRepo.SetReportURL(ctx, sessionID, url); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.Error("Report url save failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// emailReport sends the report once. The email_sent flag gates the send, so
// retried completions cannot double-deliver.
func (s *ResultsService) emailReport(ctx context.Context, session *models.CoachingSession, html string) {
	if err := s.resultRepo.MarkEmailSent(ctx, session.ID, s.now()); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Error("Email marker failed", zap.String("session_id", session.ID), zap.Error(err))
			return
		}
		// No result row exists for quick prep; the send is still one-shot
		// because completion itself is.
	}

	if err := s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: session.Email, Name: session.FirstName},
		Subject:  "Your " + session.SessionType.DisplayName() + " results",
		HTML:     html,
		Template: email.TemplateResults,
	}); err != nil {
		logger.Error("Results email send failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

// parseTranscript splits labeled transcript text into Q/A pairs. A coach
// line opens a pair; the following user line closes it. Unanswered trailing
// questions are kept with an empty answer.
func parseTranscript(text string) []models.TranscriptEntry {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var entries []models.TranscriptEntry
	var current *models.TranscriptEntry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, coachLabel):
			if current != nil {
				entries = append(entries, *current)
			}
			current = &models.TranscriptEntry{
				Question: strings.TrimSpace(strings.TrimPrefix(line, coachLabel)),
			}
		case strings.HasPrefix(line, userLabel):
			answer := strings.TrimSpace(strings.TrimPrefix(line, userLabel))
			if current == nil {
				// Answer with no preceding question; keep it rather than
				// drop the user's words.
				current = &models.TranscriptEntry{}
			}
			if current.Answer != "" {
				current.Answer += "\n" + answer
			} else {
				current.Answer = answer
			}
		case current != nil:
			// Continuation of whichever side spoke last.
			if current.Answer != "" {
				current.Answer += "\n" + line
			} else if current.Question != "" {
				current.Question += "\n" + line
			} else {
				current.Answer = line
			}
		}
	}
	if current != nil {
		entries = append(entries, *current)
	}

	return entries
}
