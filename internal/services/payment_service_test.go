package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/services"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

func paymentTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://talendro.test"},
		Entitlement: config.EntitlementConfig{
			MockSessionLimit:  6,
			AudioSessionLimit: 4,
		},
	}
}

type paymentMocks struct {
	sessions  *MockSessionRepository
	profiles  *MockProfileRepository
	discounts *MockDiscountRepository
	stripeAPI *MockStripeClient
	email     *MockEmailClient
	reports   *MockReportProvider
}

func newPaymentService(t *testing.T) (*services.PaymentService, *paymentMocks) {
	t.Helper()
	m := &paymentMocks{
		sessions:  new(MockSessionRepository),
		profiles:  new(MockProfileRepository),
		discounts: new(MockDiscountRepository),
		stripeAPI: new(MockStripeClient),
		email:     new(MockEmailClient),
		reports:   new(MockReportProvider),
	}
	service := services.NewPaymentService(m.sessions, m.profiles, m.discounts, m.stripeAPI, m.email, m.reports, paymentTestConfig())
	return service, m
}

func paidCheckout(id string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Status:        stripe.CheckoutSessionStatusComplete,
		AmountTotal:   2900,
		Metadata:      map[string]string{},
	}
}

func TestVerifyPayment_ActivatesPendingSession(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	checkout := paidCheckout("cs_1")
	pending := &models.CoachingSession{
		ID:          "s1",
		Email:       "user@example.com",
		FirstName:   "Ada",
		SessionType: models.SessionTypeFullMock,
		Status:      models.SessionStatusPending,
	}

	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_1").Return(checkout, nil).Once()
	m.sessions.On("GetByCheckoutSessionID", ctx, "cs_1").Return(pending, nil).Once()
	m.sessions.On("SetStripeIDs", ctx, "s1", "cs_1", "").Return(nil).Once()
	m.sessions.On("UpdateStatus", ctx, "s1", models.SessionStatusActive).Return(nil).Once()
	m.email.On("Send", ctx, mock.AnythingOfType("email.SendRequest")).Return(nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_1"})

	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, models.SessionStatusActive, resp.SessionStatus)
	m.sessions.AssertExpectations(t)
	m.email.AssertExpectations(t)
}

func TestVerifyPayment_CompletedSessionIsIdempotent(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	checkout := paidCheckout("cs_2")
	completed := &models.CoachingSession{
		ID:          "s2",
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
		Status:      models.SessionStatusCompleted,
	}
	stored := &models.SessionReport{SessionID: "s2", SessionType: models.SessionTypeFullMock}

	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_2").Return(checkout, nil).Once()
	m.sessions.On("GetByCheckoutSessionID", ctx, "cs_2").Return(completed, nil).Once()
	m.reports.On("GetReport", ctx, "s2").Return(stored, nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_2"})

	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Equal(t, models.SessionStatusCompleted, resp.SessionStatus)
	assert.Same(t, stored, resp.Report)
	m.sessions.AssertNotCalled(t, "UpdateStatus")
	m.sessions.AssertNotCalled(t, "SetStripeIDs")
	m.email.AssertNotCalled(t, "Send")
}

func TestVerifyPayment_StripeFailureIsGenericCode(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_3").Return(nil, errors.New("connection reset")).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_3"})

	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Equal(t, string(apperrors.CodeNetworkError), resp.ErrorCode)
}

func TestVerifyPayment_UnpaidCheckout(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	checkout := paidCheckout("cs_4")
	checkout.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	checkout.Status = stripe.CheckoutSessionStatusOpen
	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_4").Return(checkout, nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_4"})

	require.NoError(t, err)
	assert.False(t, resp.Verified)
	m.sessions.AssertNotCalled(t, "GetByCheckoutSessionID")
}

func TestVerifyPayment_RecordsDiscountRedemption(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	checkout := paidCheckout("cs_5")
	checkout.Metadata["discount_id"] = "disc-1"
	checkout.Metadata["applied_discount"] = "promo_code"
	pending := &models.CoachingSession{
		ID:          "s5",
		Email:       "user@example.com",
		SessionType: models.SessionTypeQuickPrep,
		Status:      models.SessionStatusPending,
	}

	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_5").Return(checkout, nil).Once()
	m.sessions.On("GetByCheckoutSessionID", ctx, "cs_5").Return(pending, nil).Once()
	m.sessions.On("SetStripeIDs", ctx, "s5", "cs_5", "").Return(nil).Once()
	m.sessions.On("UpdateStatus", ctx, "s5", models.SessionStatusActive).Return(nil).Once()
	m.discounts.On("RecordRedemption", ctx, "disc-1", "user@example.com", "s5").Return(nil).Once()
	m.email.On("Send", ctx, mock.AnythingOfType("email.SendRequest")).Return(nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_5"})

	require.NoError(t, err)
	assert.True(t, resp.Verified)
	m.discounts.AssertExpectations(t)
}

func TestVerifyPayment_RedemptionConflictTolerated(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	checkout := paidCheckout("cs_6")
	checkout.Metadata["discount_id"] = "disc-1"
	pending := &models.CoachingSession{
		ID:          "s6",
		Email:       "user@example.com",
		SessionType: models.SessionTypeQuickPrep,
		Status:      models.SessionStatusPending,
	}

	m.stripeAPI.On("GetCheckoutSession", ctx, "cs_6").Return(checkout, nil).Once()
	m.sessions.On("GetByCheckoutSessionID", ctx, "cs_6").Return(pending, nil).Once()
	m.sessions.On("SetStripeIDs", ctx, "s6", "cs_6", "").Return(nil).Once()
	m.sessions.On("UpdateStatus", ctx, "s6", models.SessionStatusActive).Return(nil).Once()
	m.discounts.On("RecordRedemption", ctx, "disc-1", "user@example.com", "s6").Return(apperrors.ErrConflict).Once()
	m.email.On("Send", ctx, mock.AnythingOfType("email.SendRequest")).Return(nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{CheckoutSessionID: "cs_6"})

	require.NoError(t, err)
	assert.True(t, resp.Verified)
}

func TestVerifyPayment_ByEmailReturnsLiveSession(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	live := &models.CoachingSession{
		ID:          "s7",
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
		Status:      models.SessionStatusActive,
	}
	m.sessions.On("FindResumableByEmail", ctx, "user@example.com", models.SessionTypeFullMock).Return(live, nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{
		Email:       "user@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, "s7", resp.SessionID)
	m.stripeAPI.AssertNotCalled(t, "FindActiveSubscriptionByEmail")
}

func TestVerifyPayment_ByEmailNothingFound(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	m.sessions.On("FindResumableByEmail", ctx, "user@example.com", models.SessionTypeVoiceMock).Return(nil, apperrors.ErrNotFound).Once()
	m.sessions.On("FindLatestCompleted", ctx, "user@example.com", models.SessionTypeVoiceMock).Return(nil, apperrors.ErrNotFound).Once()
	m.stripeAPI.On("FindActiveSubscriptionByEmail", ctx, "user@example.com").Return(nil, apperrors.ErrNotFound).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{
		Email:       "user@example.com",
		SessionType: models.SessionTypeVoiceMock,
	})

	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Empty(t, resp.ErrorCode)
	m.sessions.AssertNotCalled(t, "Create")
}

func TestVerifyPayment_ByEmailLiveSubscriptionCreatesSession(t *testing.T) {
	service, m := newPaymentService(t)
	ctx := context.Background()

	sub := &stripe.Subscription{
		ID:       "sub_1",
		Customer: &stripe.Customer{ID: "cus_1"},
	}
	m.sessions.On("FindResumableByEmail", ctx, "pro@example.com", models.SessionTypeFullMock).Return(nil, apperrors.ErrNotFound).Once()
	m.sessions.On("FindLatestCompleted", ctx, "pro@example.com", models.SessionTypeFullMock).Return(nil, apperrors.ErrNotFound).Once()
	m.stripeAPI.On("FindActiveSubscriptionByEmail", ctx, "pro@example.com").Return(sub, nil).Once()
	m.profiles.On("UpsertProSubscription", ctx, "pro@example.com", "", "cus_1", "sub_1",
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(&models.Profile{Email: "pro@example.com", IsPro: true}, nil).Once()
	m.sessions.On("Create", ctx, mock.AnythingOfType("*models.CoachingSession")).Return("s8", nil).Once()

	resp, err := service.VerifyPayment(ctx, &models.VerifyPaymentRequest{
		Email:       "pro@example.com",
		SessionType: models.SessionTypeFullMock,
	})

	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, "s8", resp.SessionID)
	m.profiles.AssertExpectations(t)
}
