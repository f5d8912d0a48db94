package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"

	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/payments"
)

// MockSessionRepository is a mock implementation of repository.SessionDataSource
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.CoachingSession) (string, error) {
	args := m.Called(ctx, session)
	return args.String(0), args.Error(1)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.CoachingSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingSession), args.Error(1)
}

func (m *MockSessionRepository) GetByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.CoachingSession, error) {
	args := m.Called(ctx, checkoutSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingSession), args.Error(1)
}

func (m *MockSessionRepository) FindResumableByEmail(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error) {
	args := m.Called(ctx, email, sessionType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingSession), args.Error(1)
}

func (m *MockSessionRepository) FindRecentCompletedPurchase(ctx context.Context, email string, since time.Time) (*models.CoachingSession, error) {
	args := m.Called(ctx, email, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingSession), args.Error(1)
}

func (m *MockSessionRepository) FindLatestCompleted(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error) {
	args := m.Called(ctx, email, sessionType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CoachingSession), args.Error(1)
}

func (m *MockSessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockSessionRepository) MarkPaused(ctx context.Context, id string, pausedAt time.Time) error {
	args := m.Called(ctx, id, pausedAt)
	return args.Error(0)
}

func (m *MockSessionRepository) MarkResumed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) MarkCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) SetDocuments(ctx context.Context, id string, docs models.SessionDocuments) error {
	args := m.Called(ctx, id, docs)
	return args.Error(0)
}

func (m *MockSessionRepository) SetPrepContent(ctx context.Context, id string, prepContent string) error {
	args := m.Called(ctx, id, prepContent)
	return args.Error(0)
}

func (m *MockSessionRepository) SetStripeIDs(ctx context.Context, id, checkoutSessionID, paymentIntentID string) error {
	args := m.Called(ctx, id, checkoutSessionID, paymentIntentID)
	return args.Error(0)
}

func (m *MockSessionRepository) SetCurrentQuestion(ctx context.Context, id string, questionNumber int) error {
	args := m.Called(ctx, id, questionNumber)
	return args.Error(0)
}

// MockProfileRepository is a mock implementation of repository.ProfileDataSource
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Profile, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) UpsertProSubscription(ctx context.Context, email, fullName, customerID, subscriptionID string, periodStart, periodEnd time.Time) (*models.Profile, error) {
	args := m.Called(ctx, email, fullName, customerID, subscriptionID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileRepository) SetCancelAtPeriodEnd(ctx context.Context, email string, cancel bool) error {
	args := m.Called(ctx, email, cancel)
	return args.Error(0)
}

func (m *MockProfileRepository) DeactivatePro(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockProfileRepository) ResetUsageWindow(ctx context.Context, email string, resetDate time.Time) error {
	args := m.Called(ctx, email, resetDate)
	return args.Error(0)
}

func (m *MockProfileRepository) ConsumeMockSession(ctx context.Context, email string, limit int) (bool, error) {
	args := m.Called(ctx, email, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileRepository) ConsumeAudioSession(ctx context.Context, email string, limit int) (bool, error) {
	args := m.Called(ctx, email, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileRepository) SetLoginToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, email, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockProfileRepository) ConsumeLoginToken(ctx context.Context, tokenHash string, now time.Time) (*models.Profile, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// MockDiscountRepository is a mock implementation of repository.DiscountDataSource
type MockDiscountRepository struct {
	mock.Mock
}

func (m *MockDiscountRepository) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DiscountCode), args.Error(1)
}

func (m *MockDiscountRepository) HasRedeemed(ctx context.Context, discountCodeID, email string) (bool, error) {
	args := m.Called(ctx, discountCodeID, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockDiscountRepository) RecordRedemption(ctx context.Context, discountCodeID, email, sessionID string) error {
	args := m.Called(ctx, discountCodeID, email, sessionID)
	return args.Error(0)
}

// MockDiscountCache is a mock implementation of cache.DiscountCacheInterface
type MockDiscountCache struct {
	mock.Mock
}

func (m *MockDiscountCache) Get(ctx context.Context, code string) (*models.DiscountCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DiscountCode), args.Error(1)
}

func (m *MockDiscountCache) Invalidate(code string) {
	m.Called(code)
}

// MockMessageRepository is a mock implementation of repository.MessageDataSource
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, msg *models.ChatMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatMessage), args.Error(1)
}

// MockResultRepository is a mock implementation of repository.ResultDataSource
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionResult), args.Error(1)
}

func (m *MockResultRepository) Upsert(ctx context.Context, result *models.SessionResult) (*models.SessionResult, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionResult), args.Error(1)
}

func (m *MockResultRepository) MarkEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error {
	args := m.Called(ctx, sessionID, sentAt)
	return args.Error(0)
}

func (m *MockResultRepository) SetReportURL(ctx context.Context, sessionID, reportURL string) error {
	args := m.Called(ctx, sessionID, reportURL)
	return args.Error(0)
}

// MockErrorLogRepository is a mock implementation of repository.ErrorLogDataSource
type MockErrorLogRepository struct {
	mock.Mock
}

func (m *MockErrorLogRepository) Create(ctx context.Context, entry *models.ErrorLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *MockErrorLogRepository) SetResolution(ctx context.Context, id, resolution string, success bool) error {
	args := m.Called(ctx, id, resolution, success)
	return args.Error(0)
}

func (m *MockErrorLogRepository) MarkEscalated(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockWebhookEventRepository is a mock implementation of repository.WebhookEventDataSource
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, stripeEventID, eventType string) (bool, error) {
	args := m.Called(ctx, stripeEventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventRepository) Release(ctx context.Context, stripeEventID string) error {
	args := m.Called(ctx, stripeEventID)
	return args.Error(0)
}

// MockStripeClient is a mock implementation of payments.ClientInterface
type MockStripeClient struct {
	mock.Mock
}

func (m *MockStripeClient) CreateCheckoutSession(ctx context.Context, in payments.CheckoutInput) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockStripeClient) GetCheckoutSession(ctx context.Context, checkoutSessionID string) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, checkoutSessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockStripeClient) FindActiveSubscriptionByEmail(ctx context.Context, email string) (*stripe.Subscription, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

func (m *MockStripeClient) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockStripeClient) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockStripeClient) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockStripeClient) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(stripe.Event), args.Error(1)
}

// MockAIClient is a mock implementation of ai.ClientInterface
type MockAIClient struct {
	mock.Mock
}

func (m *MockAIClient) ChatCompletion(ctx context.Context, messages []ai.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockAIClient) ChatCompletionJSON(ctx context.Context, messages []ai.Message, out any) error {
	args := m.Called(ctx, messages, out)
	return args.Error(0)
}

// MockEmailClient is a mock implementation of email.ClientInterface
type MockEmailClient struct {
	mock.Mock
}

func (m *MockEmailClient) Send(ctx context.Context, req email.SendRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockStorageClient is a mock implementation of s3storage.ClientInterface
type MockStorageClient struct {
	mock.Mock
}

func (m *MockStorageClient) UploadReport(ctx context.Context, key, htmlBody string) (string, error) {
	args := m.Called(ctx, key, htmlBody)
	return args.String(0), args.Error(1)
}

// MockEntitlementService is a mock implementation of services.EntitlementServiceInterface
type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) Check(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EntitlementResult), args.Error(1)
}

func (m *MockEntitlementService) Consume(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EntitlementResult), args.Error(1)
}

// MockReportProvider is a mock implementation of services.ReportProviderInterface
type MockReportProvider struct {
	mock.Mock
}

func (m *MockReportProvider) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionReport), args.Error(1)
}

// MockLoginLinkSender is a mock implementation of services.LoginLinkSenderInterface
type MockLoginLinkSender struct {
	mock.Mock
}

func (m *MockLoginLinkSender) SendLoginLink(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockResultsService is a mock implementation of services.ResultsServiceInterface
type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) Complete(ctx context.Context, sessionID string, req *models.CompleteSessionRequest) (*models.SessionReport, error) {
	args := m.Called(ctx, sessionID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionReport), args.Error(1)
}

func (m *MockResultsService) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionReport), args.Error(1)
}

// MockVoiceProvider is a mock implementation of voice.ProviderInterface
type MockVoiceProvider struct {
	mock.Mock
}

func (m *MockVoiceProvider) GetSignedURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockDiscountAdminRepository is a mock of repository.DiscountAdminDataSource
type MockDiscountAdminRepository struct {
	mock.Mock
}

func (m *MockDiscountAdminRepository) List(ctx context.Context) ([]*models.DiscountCode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DiscountCode), args.Error(1)
}

func (m *MockDiscountAdminRepository) Create(ctx context.Context, d *models.DiscountCode) (string, error) {
	args := m.Called(ctx, d)
	return args.String(0), args.Error(1)
}

func (m *MockDiscountAdminRepository) SetActive(ctx context.Context, id string, active bool) (string, error) {
	args := m.Called(ctx, id, active)
	return args.String(0), args.Error(1)
}

// MockErrorLogAdminRepository is a mock of repository.ErrorLogAdminDataSource
type MockErrorLogAdminRepository struct {
	mock.Mock
}

func (m *MockErrorLogAdminRepository) ListRecent(ctx context.Context, limit int) ([]*models.ErrorLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ErrorLog), args.Error(1)
}
