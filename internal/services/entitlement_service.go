package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// EntitlementService tracks Pro usage against the rolling 30-day window
type EntitlementService struct {
	profileRepo repository.ProfileDataSource
	config      *config.Config
	now         func() time.Time
}

// NewEntitlementService creates a new entitlement service
func NewEntitlementService(profileRepo repository.ProfileDataSource, cfg *config.Config) *EntitlementService {
	return &EntitlementService{
		profileRepo: profileRepo,
		config:      cfg,
		now:         time.Now,
	}
}

func (s *EntitlementService) limitFor(sessionType models.SessionType) (int, bool) {
	switch sessionType {
	case models.SessionTypeFullMock:
		return s.config.Entitlement.MockSessionLimit, true
	case models.SessionTypeVoiceMock:
		return s.config.Entitlement.AudioSessionLimit, true
	default:
		// quick_prep is unlimited for Pro members.
		return 0, false
	}
}

// Check reports whether a Pro member can start a session of the given type,
// without consuming anything. The usage window resets lazily: the first
// check past the 30-day mark zeroes both counters.
func (s *EntitlementService) Check(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error) {
	profile, err := s.profileRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "no_profile").Inc()
			return &models.EntitlementResult{Allowed: false, Message: "No active subscription."}, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if !profile.IsPro {
		metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "not_pro").Inc()
		return &models.EntitlementResult{Allowed: false, Message: "No active subscription."}, nil
	}

	limit, capped := s.limitFor(req.SessionType)
	if !capped {
		metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "unlimited").Inc()
		return &models.EntitlementResult{Allowed: true, Unlimited: true}, nil
	}

	profile, err = s.maybeResetWindow(ctx, profile)
	if err != nil {
		return nil, err
	}

	used := profile.ProMockSessionsUsed
	if req.SessionType == models.SessionTypeVoiceMock {
		used = profile.ProAudioSessionsUsed
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	result := &models.EntitlementResult{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     limit,
		ResetDate: profile.ProSessionResetDate,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("You've used all %d %s sessions for this period.", limit, req.SessionType.DisplayName())
		metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "denied").Inc()
	} else {
		metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "allowed").Inc()
	}

	return result, nil
}

// Consume atomically takes one session from the member's allowance. The
// check and increment are a single UPDATE, so two tabs racing for the last
// slot cannot both win.
func (s *EntitlementService) Consume(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error) {
	check, err := s.Check(ctx, req)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return check, nil
	}
	if check.Unlimited {
		return check, nil
	}

	limit, _ := s.limitFor(req.SessionType)

	var consumed bool
	if req.SessionType == models.SessionTypeVoiceMock {
		consumed, err = s.profileRepo.ConsumeAudioSession(ctx, req.Email, limit)
	} else {
		consumed, err = s.profileRepo.ConsumeMockSession(ctx, req.Email, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume entitlement: %w", err)
	}

	if !consumed {
		// Lost the race for the last slot.
		metrics.EntitlementChecks.WithLabelValues(string(req.SessionType), "denied").Inc()
		return &models.EntitlementResult{
			Allowed:   false,
			Limit:     limit,
			ResetDate: check.ResetDate,
			Message:   fmt.Sprintf("You've used all %d %s sessions for this period.", limit, req.SessionType.DisplayName()),
		}, nil
	}

	remaining := check.Remaining - 1
	if remaining < 0 {
		remaining = 0
	}

	logger.Info("Entitlement consumed",
		zap.String("email", req.Email),
		zap.String("session_type", string(req.SessionType)),
		zap.Int("remaining", remaining))

	return &models.EntitlementResult{
		Allowed:   true,
		Remaining: remaining,
		Limit:     limit,
		ResetDate: check.ResetDate,
	}, nil
}

// maybeResetWindow applies the lazy 30-day reset and reloads the profile
// when it fires
func (s *EntitlementService) maybeResetWindow(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	anchor := profile.ProSessionResetDate
	if anchor != nil && s.now().Sub(*anchor) <= models.UsageWindow {
		return profile, nil
	}

	// No anchor yet, or the window lapsed: zero the counters and restart
	// the clock from now.
	if err := s.profileRepo.ResetUsageWindow(ctx, profile.Email, s.now()); err != nil {
		return nil, fmt.Errorf("failed to reset usage window: %w", err)
	}

	logger.Info("Usage window reset", zap.String("email", profile.Email))

	refreshed, err := s.profileRepo.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to reload profile: %w", err)
	}
	return refreshed, nil
}
