package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/pricing"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

func newCheckoutService(t *testing.T) (*services.CheckoutService, *MockSessionRepository, *MockDiscountRepository, *MockStripeClient) {
	t.Helper()
	mockSessions := new(MockSessionRepository)
	mockDiscounts := new(MockDiscountRepository)
	mockStripe := new(MockStripeClient)
	service := services.NewCheckoutService(mockSessions, mockDiscounts, mockStripe)
	return service, mockSessions, mockDiscounts, mockStripe
}

func TestCreateCheckout_InvalidProduct(t *testing.T) {
	service, mockSessions, _, _ := newCheckoutService(t)

	_, err := service.CreateCheckout(context.Background(), &models.CreateCheckoutRequest{
		SessionType: "premium_deluxe",
		Email:       "user@example.com",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	mockSessions.AssertNotCalled(t, "Create")
}

func TestCreateCheckout_ListPrice(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	mockSessions.On("FindRecentCompletedPurchase", ctx, "user@example.com", mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-1", nil).Once()
	mockStripe.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in payments.CheckoutInput) bool {
		return in.SessionID == "pending-1" &&
			in.FinalPriceCents == 2900 &&
			in.AppliedDiscount == pricing.WinnerNone &&
			in.DiscountID == ""
	})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil).Once()
	mockSessions.On("SetStripeIDs", ctx, "pending-1", "cs_1", "").Return(nil).Once()

	resp, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType: models.SessionTypeFullMock,
		Email:       "user@example.com",
		FirstName:   "Ada",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", resp.URL)
	mockSessions.AssertExpectations(t)
	mockStripe.AssertExpectations(t)
}

func TestCreateCheckout_UpgradeCreditBeatsPromo(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	prior := &models.CoachingSession{
		ID:          "old-1",
		SessionType: models.SessionTypeQuickPrep,
		Status:      models.SessionStatusCompleted,
	}
	mockSessions.On("FindRecentCompletedPurchase", ctx, "user@example.com", mock.AnythingOfType("time.Time")).
		Return(prior, nil).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-2", nil).Once()

	// Credit for the 1200-cent quick prep beats a 20% promo on 2900 (580).
	// The beaten promo id must not ride along in metadata.
	mockStripe.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in payments.CheckoutInput) bool {
		return in.FinalPriceCents == 1700 &&
			in.AppliedDiscount == pricing.WinnerUpgradeCredit &&
			in.DiscountID == ""
	})).Return(&stripe.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/cs_2"}, nil).Once()
	mockSessions.On("SetStripeIDs", ctx, "pending-2", "cs_2", "").Return(nil).Once()

	_, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType:     models.SessionTypeFullMock,
		Email:           "user@example.com",
		DiscountCodeID:  "disc-1",
		DiscountPercent: 20,
	})

	require.NoError(t, err)
	mockStripe.AssertExpectations(t)
}

func TestCreateCheckout_PromoWinsAndIsForwarded(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	mockSessions.On("FindRecentCompletedPurchase", ctx, "user@example.com", mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-3", nil).Once()
	mockStripe.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in payments.CheckoutInput) bool {
		return in.FinalPriceCents == 2320 &&
			in.AppliedDiscount == pricing.WinnerPromoCode &&
			in.DiscountID == "disc-1"
	})).Return(&stripe.CheckoutSession{ID: "cs_3", URL: "https://checkout.stripe.com/cs_3"}, nil).Once()
	mockSessions.On("SetStripeIDs", ctx, "pending-3", "cs_3", "").Return(nil).Once()

	_, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType:     models.SessionTypeFullMock,
		Email:           "user@example.com",
		DiscountCodeID:  "disc-1",
		DiscountPercent: 20,
	})

	require.NoError(t, err)
	mockStripe.AssertExpectations(t)
}

func TestCreateCheckout_ProSkipsUpgradeLookup(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-4", nil).Once()
	mockStripe.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in payments.CheckoutInput) bool {
		return in.SessionType == models.SessionTypePro && in.FinalPriceCents == 2500
	})).Return(&stripe.CheckoutSession{ID: "cs_4", URL: "https://checkout.stripe.com/cs_4"}, nil).Once()
	mockSessions.On("SetStripeIDs", ctx, "pending-4", "cs_4", "").Return(nil).Once()

	_, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType: models.SessionTypePro,
		Email:       "user@example.com",
	})

	require.NoError(t, err)
	mockSessions.AssertNotCalled(t, "FindRecentCompletedPurchase")
}

func TestCreateCheckout_StripeDownLeavesPendingRow(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	mockSessions.On("FindRecentCompletedPurchase", ctx, "user@example.com", mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-5", nil).Once()
	mockStripe.On("CreateCheckoutSession", ctx, mock.AnythingOfType("payments.CheckoutInput")).
		Return(nil, errors.New("stripe: 503")).Once()

	_, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType: models.SessionTypeFullMock,
		Email:       "user@example.com",
	})

	require.Error(t, err)
	code, ok := apperrors.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNetworkError, code)
	mockSessions.AssertCalled(t, "Create", ctx, mock.AnythingOfType("*models.CoachingSession"))
	mockSessions.AssertNotCalled(t, "SetStripeIDs")
}

func TestCreateCheckout_StalePurchaseEarnsNoCredit(t *testing.T) {
	service, mockSessions, _, mockStripe := newCheckoutService(t)
	ctx := context.Background()

	// The repository is queried with a cutoff roughly 14 days back; anything
	// older never comes back from it, so the quote falls through to list price.
	mockSessions.On("FindRecentCompletedPurchase", ctx, "user@example.com",
		mock.MatchedBy(func(since time.Time) bool {
			return time.Since(since) > 13*24*time.Hour && time.Since(since) < 15*24*time.Hour
		})).Return(nil, apperrors.ErrNotFound).Once()
	mockSessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("pending-6", nil).Once()
	mockStripe.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(in payments.CheckoutInput) bool {
		return in.FinalPriceCents == 4900 && in.AppliedDiscount == pricing.WinnerNone
	})).Return(&stripe.CheckoutSession{ID: "cs_6", URL: "https://checkout.stripe.com/cs_6"}, nil).Once()
	mockSessions.On("SetStripeIDs", ctx, "pending-6", "cs_6", "").Return(nil).Once()

	_, err := service.CreateCheckout(ctx, &models.CreateCheckoutRequest{
		SessionType: models.SessionTypeVoiceMock,
		Email:       "user@example.com",
	})

	require.NoError(t, err)
	mockSessions.AssertExpectations(t)
}
