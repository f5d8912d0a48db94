package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

func newAdminService() (*services.AdminService, *MockDiscountAdminRepository, *MockErrorLogAdminRepository, *MockDiscountCache) {
	discountRepo := new(MockDiscountAdminRepository)
	errorLogRepo := new(MockErrorLogAdminRepository)
	discountCache := new(MockDiscountCache)
	return services.NewAdminService(discountRepo, errorLogRepo, discountCache), discountRepo, errorLogRepo, discountCache
}

func TestAdminCreateDiscount_NormalizesCodeAndInvalidatesCache(t *testing.T) {
	service, discountRepo, _, discountCache := newAdminService()
	ctx := context.Background()

	discountRepo.On("Create", ctx, mock.MatchedBy(func(d *models.DiscountCode) bool {
		return d.Code == "SAVE20" && d.Active && d.PercentOff == 20
	})).Return("d1", nil).Once()
	discountCache.On("Invalidate", "SAVE20").Once()

	created, err := service.CreateDiscountCode(ctx, &models.CreateDiscountCodeRequest{
		Code:               "  save20 ",
		PercentOff:         20,
		ApplicableProducts: []models.SessionType{models.SessionTypeFullMock},
	})
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", created.Code)
	assert.True(t, created.Active)
	discountRepo.AssertExpectations(t)
	discountCache.AssertExpectations(t)
}

func TestAdminCreateDiscount_DuplicateCodeIsConflict(t *testing.T) {
	service, discountRepo, _, discountCache := newAdminService()
	ctx := context.Background()

	discountRepo.On("Create", ctx, mock.AnythingOfType("*models.DiscountCode")).
		Return("", apperrors.ErrConflict).Once()

	_, err := service.CreateDiscountCode(ctx, &models.CreateDiscountCodeRequest{
		Code:               "SAVE20",
		PercentOff:         20,
		ApplicableProducts: []models.SessionType{models.SessionTypeFullMock},
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)
	discountCache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestAdminSetDiscountActive_InvalidatesTheStoredCode(t *testing.T) {
	service, discountRepo, _, discountCache := newAdminService()
	ctx := context.Background()

	discountRepo.On("SetActive", ctx, "d1", false).Return("SAVE20", nil).Once()
	discountCache.On("Invalidate", "SAVE20").Once()

	err := service.SetDiscountCodeActive(ctx, "d1", false)
	require.NoError(t, err)
	discountRepo.AssertExpectations(t)
	discountCache.AssertExpectations(t)
}

func TestAdminSetDiscountActive_UnknownIDKeepsCache(t *testing.T) {
	service, discountRepo, _, discountCache := newAdminService()
	ctx := context.Background()

	discountRepo.On("SetActive", ctx, "missing", true).Return("", apperrors.ErrNotFound).Once()

	err := service.SetDiscountCodeActive(ctx, "missing", true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	discountCache.AssertNotCalled(t, "Invalidate", mock.Anything)
}

func TestAdminListErrorLogs_ClampsLimit(t *testing.T) {
	service, _, errorLogRepo, _ := newAdminService()
	ctx := context.Background()

	errorLogRepo.On("ListRecent", ctx, 100).Return([]*models.ErrorLog{}, nil).Twice()
	errorLogRepo.On("ListRecent", ctx, 25).Return([]*models.ErrorLog{{ID: "e1"}}, nil).Once()

	_, err := service.ListErrorLogs(ctx, 0)
	require.NoError(t, err)
	_, err = service.ListErrorLogs(ctx, 500)
	require.NoError(t, err)

	entries, err := service.ListErrorLogs(ctx, 25)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	errorLogRepo.AssertExpectations(t)
}
