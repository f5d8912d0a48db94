package services_test

import (
	"context"
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

func entitlementConfig() *config.Config {
	return &config.Config{
		Entitlement: config.EntitlementConfig{
			MockSessionLimit:  6,
			AudioSessionLimit: 4,
		},
	}
}

func proProfile(mockUsed, audioUsed int, resetDate time.Time) *models.Profile {
	return &models.Profile{
		ID:                   "p1",
		Email:                "pro@example.com",
		IsPro:                true,
		ProMockSessionsUsed:  mockUsed,
		ProAudioSessionsUsed: audioUsed,
		ProSessionResetDate:  &resetDate,
	}
}

func TestEntitlementCheck_NoProfile(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "ghost@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, "No active subscription.", result.Message)
}

func TestEntitlementCheck_NotPro(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	profile := proProfile(0, 0, time.Now())
	profile.IsPro = false
	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(profile, nil).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestEntitlementCheck_QuickPrepUnlimited(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	// Counters should not matter for an unlimited type.
	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(6, 4, time.Now()), nil).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeQuickPrep,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Unlimited)
	mockProfiles.AssertNotCalled(t, "ResetUsageWindow")
}

func TestEntitlementCheck_AtLimitMinusOne(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(5, 0, time.Now()), nil).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, 6, result.Limit)
}

func TestEntitlementCheck_AtLimit(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(0, 4, time.Now()), nil).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeVoiceMock,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.NotEmpty(t, result.Message)
}

func TestEntitlementCheck_LazyWindowReset(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	stale := time.Now().Add(-31 * 24 * time.Hour)
	fresh := proProfile(0, 0, time.Now())

	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(6, 4, stale), nil).Once()
	mockProfiles.On("ResetUsageWindow", ctx, "pro@example.com", mock.AnythingOfType("time.Time")).Return(nil).Once()
	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(fresh, nil).Once()

	result, err := service.Check(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 6, result.Remaining)
	mockProfiles.AssertExpectations(t)
}

func TestEntitlementConsume_Atomic(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(2, 0, time.Now()), nil).Once()
	mockProfiles.On("ConsumeMockSession", ctx, "pro@example.com", 6).Return(true, nil).Once()

	result, err := service.Consume(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 3, result.Remaining)
	mockProfiles.AssertExpectations(t)
}

func TestEntitlementConsume_LostRaceForLastSlot(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	// The read shows one slot left, but another request takes it between the
	// check and the increment.
	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(0, 3, time.Now()), nil).Once()
	mockProfiles.On("ConsumeAudioSession", ctx, "pro@example.com", 4).Return(false, nil).Once()

	result, err := service.Consume(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeVoiceMock,
	})

	require.NoError(t, err)
	assert.False(t, result.Allowed)
	mockProfiles.AssertExpectations(t)
}

func TestEntitlementConsume_UnlimitedSkipsCounter(t *testing.T) {
	mockProfiles := new(MockProfileRepository)
	service := services.NewEntitlementService(mockProfiles, entitlementConfig())
	ctx := context.Background()

	mockProfiles.On("GetByEmail", ctx, "pro@example.com").Return(proProfile(0, 0, time.Now()), nil).Once()

	result, err := service.Consume(ctx, &models.EntitlementCheckRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeQuickPrep,
	})

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.True(t, result.Unlimited)
	mockProfiles.AssertNotCalled(t, "ConsumeMockSession")
	mockProfiles.AssertNotCalled(t, "ConsumeAudioSession")
}
