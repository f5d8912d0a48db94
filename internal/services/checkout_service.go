package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/pricing"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// upgradeCreditWindow bounds how far back a completed purchase still earns
// credit toward a higher tier.
const upgradeCreditWindow = 14 * 24 * time.Hour

// CheckoutService opens Stripe hosted checkout sessions
type CheckoutService struct {
	sessionRepo  repository.SessionDataSource
	discountRepo repository.DiscountDataSource
	stripeClient payments.ClientInterface
	now          func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(sessionRepo repository.SessionDataSource, discountRepo repository.DiscountDataSource, stripeClient payments.ClientInterface) *CheckoutService {
	return &CheckoutService{
		sessionRepo:  sessionRepo,
		discountRepo: discountRepo,
		stripeClient: stripeClient,
		now:          time.Now,
	}
}

// CreateCheckout resolves the final price and opens a hosted checkout.
// The upgrade credit is derived server-side from the buyer's most recent
// completed lower-tier purchase, never trusted from the request.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	if !req.SessionType.IsValid() {
		metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "invalid").Inc()
		return nil, apperrors.InvalidInputError("sessionType", "unknown product")
	}

	priorType, err := s.recentPurchaseType(ctx, req.Email, req.SessionType)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "error").Inc()
		return nil, err
	}

	quote := pricing.Resolve(pricing.Input{
		SessionType:      req.SessionType,
		PriorSessionType: priorType,
		DiscountPercent:  req.DiscountPercent,
	})

	// The pending row exists before Stripe is called so the webhook and the
	// verifier always have something to attach to.
	pendingID, err := s.sessionRepo.Create(ctx, &models.CoachingSession{
		Email:       req.Email,
		FirstName:   req.FirstName,
		SessionType: req.SessionType,
		Status:      models.SessionStatusPending,
	})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "error").Inc()
		return nil, fmt.Errorf("failed to create pending session: %w", err)
	}

	// The discount only rides along in metadata when it actually won the
	// resolution; a beaten code must not be redeemed at verification.
	discountID := ""
	if req.DiscountCodeID != "" && quote.AppliedDiscount == pricing.WinnerPromoCode {
		discountID = req.DiscountCodeID
	}

	sess, err := s.stripeClient.CreateCheckoutSession(ctx, payments.CheckoutInput{
		SessionID:       pendingID,
		SessionType:     req.SessionType,
		Email:           req.Email,
		FinalPriceCents: quote.FinalPriceCents,
		AppliedDiscount: quote.AppliedDiscount,
		DiscountID:      discountID,
	})
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "error").Inc()
		logger.Error("Checkout session creation failed",
			zap.String("session_type", string(req.SessionType)),
			zap.Error(err))
		return nil, apperrors.Wrap(apperrors.CodeNetworkError, "payment provider unavailable", err)
	}

	if err := s.sessionRepo.SetStripeIDs(ctx, pendingID, sess.ID, ""); err != nil {
		metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "error").Inc()
		return nil, fmt.Errorf("failed to link checkout session: %w", err)
	}

	metrics.CheckoutSessions.WithLabelValues(string(req.SessionType), "created").Inc()
	logger.Info("Checkout session created",
		zap.String("session_id", pendingID),
		zap.String("session_type", string(req.SessionType)),
		zap.Int64("final_price_cents", quote.FinalPriceCents),
		zap.String("applied_discount", quote.AppliedDiscount))

	return &models.CreateCheckoutResponse{URL: sess.URL}, nil
}

// recentPurchaseType finds the buyer's most recent completed purchase inside
// the credit window. Only relevant for tiered one-time products.
func (s *CheckoutService) recentPurchaseType(ctx context.Context, email string, target models.SessionType) (models.SessionType, error) {
	if target == models.SessionTypePro {
		return "", nil
	}

	prior, err := s.sessionRepo.FindRecentCompletedPurchase(ctx, email, s.now().Add(-upgradeCreditWindow))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up prior purchase: %w", err)
	}

	return prior.SessionType, nil
}
