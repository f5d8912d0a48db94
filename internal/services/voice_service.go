package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	"github.com/talendro/talendro-api/internal/voice"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
)

// VoiceService manages voice interview connections: signed provider URLs,
// the per-session transcript buffers the bridge writes into, and final
// transcript hand-off to the results pipeline.
type VoiceService struct {
	sessionRepo repository.SessionDataSource
	results     ResultsServiceInterface
	provider    voice.ProviderInterface

	mu      sync.Mutex
	buffers map[string]*voice.TranscriptBuffer
}

// NewVoiceService creates a new voice service
func NewVoiceService(
	sessionRepo repository.SessionDataSource,
	results ResultsServiceInterface,
	provider voice.ProviderInterface,
) *VoiceService {
	return &VoiceService{
		sessionRepo: sessionRepo,
		results:     results,
		provider:    provider,
		buffers:     make(map[string]*voice.TranscriptBuffer),
	}
}

// SignedURL validates the session and fetches a short-lived provider
// websocket URL. Only voice sessions qualify; Pro-granted audio sessions are
// created as voice_mock so they pass the same gate.
func (s *VoiceService) SignedURL(ctx context.Context, sessionID string) (string, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.Status.IsTerminal() {
		return "", apperrors.New(apperrors.CodeSessionAlreadyCompleted, "session is finished")
	}
	if session.SessionType != models.SessionTypeVoiceMock {
		return "", apperrors.InvalidInputError("sessionId", "not a voice session")
	}

	return s.provider.GetSignedURL(ctx)
}

// Buffer returns the transcript buffer for a session, creating it on first
// use. The buffer survives websocket drops so reconnects keep context.
func (s *VoiceService) Buffer(sessionID string) *voice.TranscriptBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.buffers[sessionID]
	if !ok {
		buf = voice.NewTranscriptBuffer()
		s.buffers[sessionID] = buf
	}
	return buf
}

// Priming returns the context to replay to the provider on reconnect, or nil
// on a fresh connection where the agent starts from its own prompt.
func (s *VoiceService) Priming(ctx context.Context, sessionID string) (*voice.PrimingContext, error) {
	buf := s.Buffer(sessionID)
	if buf.Len() == 0 {
		return nil, nil
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &voice.PrimingContext{
		FirstName:      session.FirstName,
		ResumeText:     session.ResumeText,
		JobDescription: session.JobDescription,
		RecentTurns:    buf.Recent(),
	}, nil
}

// Finish renders the server-observed transcript and runs the session through
// the results pipeline. The buffer is released whether or not completion
// succeeds downstream; a failed completion is retried through the regular
// complete endpoint with the frontend's own transcript copy.
func (s *VoiceService) Finish(ctx context.Context, sessionID string, endedEarly bool) (*models.SessionReport, error) {
	transcript := s.Buffer(sessionID).Render()

	report, err := s.results.Complete(ctx, sessionID, &models.CompleteSessionRequest{
		Transcript: transcript,
		EndedEarly: endedEarly,
	})
	s.Release(sessionID)
	if err != nil {
		return nil, err
	}

	logger.Info("Voice session finished",
		zap.String("session_id", sessionID),
		zap.Bool("ended_early", endedEarly))

	return report, nil
}

// Release drops a session's buffer without completing the session
func (s *VoiceService) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, sessionID)
}
