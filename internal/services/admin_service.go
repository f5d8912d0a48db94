package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/cache"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	"github.com/talendro/talendro-api/pkg/logger"
)

const defaultErrorLogLimit = 100

// AdminService backs the authenticated admin surface: discount code
// management and error-report triage.
type AdminService struct {
	discountRepo  repository.DiscountAdminDataSource
	errorLogRepo  repository.ErrorLogAdminDataSource
	discountCache cache.DiscountCacheInterface
}

// NewAdminService creates a new admin service
func NewAdminService(
	discountRepo repository.DiscountAdminDataSource,
	errorLogRepo repository.ErrorLogAdminDataSource,
	discountCache cache.DiscountCacheInterface,
) *AdminService {
	return &AdminService{
		discountRepo:  discountRepo,
		errorLogRepo:  errorLogRepo,
		discountCache: discountCache,
	}
}

// ListDiscountCodes returns every code, newest first
func (s *AdminService) ListDiscountCodes(ctx context.Context) ([]*models.DiscountCode, error) {
	return s.discountRepo.List(ctx)
}

// CreateDiscountCode stores a new active code. The code string is normalized
// the same way validation normalizes user input, so lookups always match.
func (s *AdminService) CreateDiscountCode(ctx context.Context, req *models.CreateDiscountCodeRequest) (*models.DiscountCode, error) {
	d := &models.DiscountCode{
		Code:               models.NormalizeCode(req.Code),
		PercentOff:         req.PercentOff,
		ApplicableProducts: req.ApplicableProducts,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		MaxUses:            req.MaxUses,
		Active:             true,
		Description:        req.Description,
	}

	if _, err := s.discountRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create discount code: %w", err)
	}

	// A previously cached not-found sentinel for this code is now wrong.
	s.discountCache.Invalidate(d.Code)

	logger.Info("Discount code created",
		zap.String("code", d.Code),
		zap.Int("percent_off", d.PercentOff))

	return d, nil
}

// SetDiscountCodeActive enables or disables a code and drops its cache entry
// so the change is visible on the next validation
func (s *AdminService) SetDiscountCodeActive(ctx context.Context, id string, active bool) error {
	code, err := s.discountRepo.SetActive(ctx, id, active)
	if err != nil {
		return err
	}

	s.discountCache.Invalidate(code)

	logger.Info("Discount code active flag changed",
		zap.String("code", code),
		zap.Bool("active", active))

	return nil
}

// ListErrorLogs returns the newest error reports. A non-positive limit falls
// back to the default page size.
func (s *AdminService) ListErrorLogs(ctx context.Context, limit int) ([]*models.ErrorLog, error) {
	if limit <= 0 || limit > defaultErrorLogLimit {
		limit = defaultErrorLogLimit
	}
	return s.errorLogRepo.ListRecent(ctx, limit)
}
