package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
)

// SubscriptionService lets a signed-in subscriber schedule or undo a
// cancellation of their own Pro plan. Stripe is the source of truth; the
// local flag is mirrored immediately so the account page reflects the
// change without waiting for the subscription.updated webhook.
type SubscriptionService struct {
	profileRepo  repository.ProfileDataSource
	stripeClient payments.ClientInterface
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(profileRepo repository.ProfileDataSource, stripeClient payments.ClientInterface) *SubscriptionService {
	return &SubscriptionService{
		profileRepo:  profileRepo,
		stripeClient: stripeClient,
	}
}

// Cancel schedules the caller's subscription to end at the period boundary.
// Access stays on until then. Repeating the call is a no-op.
func (s *SubscriptionService) Cancel(ctx context.Context, email string) (*models.SubscriptionStatus, error) {
	profile, err := s.subscriber(ctx, email)
	if err != nil {
		return nil, err
	}

	if profile.CancelAtPeriodEnd {
		return subscriptionStatus(profile, true), nil
	}

	if err := s.stripeClient.CancelSubscriptionAtPeriodEnd(ctx, *profile.StripeSubscriptionID); err != nil {
		return nil, err
	}
	if err := s.profileRepo.SetCancelAtPeriodEnd(ctx, profile.Email, true); err != nil {
		// Stripe already accepted the change; the subscription.updated
		// webhook will bring the mirror back in line.
		logger.Error("Failed to mirror cancellation flag",
			zap.String("email", profile.Email), zap.Error(err))
	}

	logger.Info("Subscription cancellation scheduled",
		zap.String("subscription_id", *profile.StripeSubscriptionID))

	return subscriptionStatus(profile, true), nil
}

// Reactivate clears a pending cancellation before the period ends.
// Repeating the call is a no-op.
func (s *SubscriptionService) Reactivate(ctx context.Context, email string) (*models.SubscriptionStatus, error) {
	profile, err := s.subscriber(ctx, email)
	if err != nil {
		return nil, err
	}

	if !profile.CancelAtPeriodEnd {
		return subscriptionStatus(profile, false), nil
	}

	if err := s.stripeClient.ReactivateSubscription(ctx, *profile.StripeSubscriptionID); err != nil {
		return nil, err
	}
	if err := s.profileRepo.SetCancelAtPeriodEnd(ctx, profile.Email, false); err != nil {
		logger.Error("Failed to mirror reactivation flag",
			zap.String("email", profile.Email), zap.Error(err))
	}

	logger.Info("Subscription reactivated",
		zap.String("subscription_id", *profile.StripeSubscriptionID))

	return subscriptionStatus(profile, false), nil
}

// subscriber loads the profile and requires a live Pro subscription
func (s *SubscriptionService) subscriber(ctx context.Context, email string) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !profile.IsPro || profile.StripeSubscriptionID == nil {
		return nil, fmt.Errorf("no active subscription: %w", apperrors.ErrNotFound)
	}
	return profile, nil
}

func subscriptionStatus(profile *models.Profile, cancelAtPeriodEnd bool) *models.SubscriptionStatus {
	return &models.SubscriptionStatus{
		IsPro:             profile.IsPro,
		CancelAtPeriodEnd: cancelAtPeriodEnd,
		PeriodEnd:         profile.SubscriptionEnd,
	}
}
