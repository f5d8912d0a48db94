package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/cache"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// DiscountService validates promo codes against the rule chain
type DiscountService struct {
	discountCache cache.DiscountCacheInterface
	discountRepo  repository.DiscountDataSource
	now           func() time.Time
}

// NewDiscountService creates a new discount service
func NewDiscountService(discountCache cache.DiscountCacheInterface, discountRepo repository.DiscountDataSource) *DiscountService {
	return &DiscountService{
		discountCache: discountCache,
		discountRepo:  discountRepo,
		now:           time.Now,
	}
}

// rejection builds the structured failure response. Validation failures are
// expected outcomes, not errors; the handler returns them with a 200.
func rejection(code apperrors.Code, message string) *models.ValidateDiscountResponse {
	return &models.ValidateDiscountResponse{
		Valid:     false,
		ErrorCode: string(code),
		Message:   message,
	}
}

// Validate checks a code in a fixed order: existence and active flag, then
// validity window, then per-email redemption, then product applicability,
// then the global usage cap. Validation never consumes a use; redemption is
// recorded only at payment verification.
func (s *DiscountService) Validate(ctx context.Context, req *models.ValidateDiscountRequest) (*models.ValidateDiscountResponse, error) {
	code := models.NormalizeCode(req.Code)

	discount, err := s.discountCache.Get(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.DiscountValidations.WithLabelValues("not_found").Inc()
			return rejection(apperrors.CodeDiscountNotFound, "This code doesn't exist."), nil
		}
		metrics.DiscountValidations.WithLabelValues("error").Inc()
		logger.Error("Discount lookup failed", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to validate discount: %w", err)
	}

	if !discount.Active {
		metrics.DiscountValidations.WithLabelValues("not_found").Inc()
		return rejection(apperrors.CodeDiscountNotFound, "This code doesn't exist."), nil
	}

	if !discount.InWindow(s.now()) {
		metrics.DiscountValidations.WithLabelValues("expired").Inc()
		return rejection(apperrors.CodeDiscountExpired, "This code has expired."), nil
	}

	redeemed, err := s.discountRepo.HasRedeemed(ctx, discount.ID, req.Email)
	if err != nil {
		metrics.DiscountValidations.WithLabelValues("error").Inc()
		logger.Error("Redemption check failed", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to validate discount: %w", err)
	}
	if redeemed {
		metrics.DiscountValidations.WithLabelValues("already_used").Inc()
		return rejection(apperrors.CodeDiscountAlreadyUsed, "You've already used this code."), nil
	}

	if !discount.AppliesTo(req.SessionType) {
		metrics.DiscountValidations.WithLabelValues("not_applicable").Inc()
		return rejection(apperrors.CodeDiscountNotApplicable,
			fmt.Sprintf("This code doesn't apply to %s.", req.SessionType.DisplayName())), nil
	}

	if discount.UsageCapReached() {
		metrics.DiscountValidations.WithLabelValues("usage_limit").Inc()
		return rejection(apperrors.CodeDiscountUsageLimit, "This code has reached its usage limit."), nil
	}

	metrics.DiscountValidations.WithLabelValues("valid").Inc()
	logger.Info("Discount validated",
		zap.String("code", code),
		zap.String("session_type", string(req.SessionType)),
		zap.Int("percent_off", discount.PercentOff))

	return &models.ValidateDiscountResponse{
		Valid:       true,
		PercentOff:  discount.PercentOff,
		Description: discount.Description,
		DiscountID:  discount.ID,
	}, nil
}
