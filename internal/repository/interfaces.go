package repository

import (
	"context"
	"time"

	"github.com/talendro/talendro-api/internal/models"
)

// SessionDataSource defines the interface for coaching session persistence
type SessionDataSource interface {
	Create(ctx context.Context, session *models.CoachingSession) (string, error)
	GetByID(ctx context.Context, id string) (*models.CoachingSession, error)
	GetByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.CoachingSession, error)
	FindResumableByEmail(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error)
	FindRecentCompletedPurchase(ctx context.Context, email string, since time.Time) (*models.CoachingSession, error)
	FindLatestCompleted(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	MarkPaused(ctx context.Context, id string, pausedAt time.Time) error
	MarkResumed(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	SetDocuments(ctx context.Context, id string, docs models.SessionDocuments) error
	SetPrepContent(ctx context.Context, id string, prepContent string) error
	SetStripeIDs(ctx context.Context, id, checkoutSessionID, paymentIntentID string) error
	SetCurrentQuestion(ctx context.Context, id string, questionNumber int) error
}

// ProfileDataSource defines the interface for user profile persistence
type ProfileDataSource interface {
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Profile, error)
	UpsertProSubscription(ctx context.Context, email, fullName, customerID, subscriptionID string, periodStart, periodEnd time.Time) (*models.Profile, error)
	SetCancelAtPeriodEnd(ctx context.Context, email string, cancel bool) error
	DeactivatePro(ctx context.Context, email string) error
	ResetUsageWindow(ctx context.Context, email string, resetDate time.Time) error
	ConsumeMockSession(ctx context.Context, email string, limit int) (bool, error)
	ConsumeAudioSession(ctx context.Context, email string, limit int) (bool, error)
	SetLoginToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	ConsumeLoginToken(ctx context.Context, tokenHash string, now time.Time) (*models.Profile, error)
}

// DiscountDataSource defines the interface for discount code persistence
type DiscountDataSource interface {
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	HasRedeemed(ctx context.Context, discountCodeID, email string) (bool, error)
	RecordRedemption(ctx context.Context, discountCodeID, email, sessionID string) error
}

// DiscountAdminDataSource defines the code-management operations behind the
// admin surface
type DiscountAdminDataSource interface {
	List(ctx context.Context) ([]*models.DiscountCode, error)
	Create(ctx context.Context, d *models.DiscountCode) (string, error)
	SetActive(ctx context.Context, id string, active bool) (string, error)
}

// ErrorLogAdminDataSource defines the triage read path for the admin surface
type ErrorLogAdminDataSource interface {
	ListRecent(ctx context.Context, limit int) ([]*models.ErrorLog, error)
}

// MessageDataSource defines the interface for chat message persistence
type MessageDataSource interface {
	Append(ctx context.Context, msg *models.ChatMessage) (string, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)
}

// ResultDataSource defines the interface for session result persistence
type ResultDataSource interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.SessionResult, error)
	Upsert(ctx context.Context, result *models.SessionResult) (*models.SessionResult, error)
	MarkEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error
	SetReportURL(ctx context.Context, sessionID, reportURL string) error
}

// ErrorLogDataSource defines the interface for error report persistence
type ErrorLogDataSource interface {
	Create(ctx context.Context, entry *models.ErrorLog) (string, error)
	SetResolution(ctx context.Context, id, resolution string, success bool) error
	MarkEscalated(ctx context.Context, id string) error
}

// WebhookEventDataSource defines the interface for webhook idempotency tracking
type WebhookEventDataSource interface {
	// MarkProcessed records a Stripe event id. Returns false when the id
	// was already recorded, meaning the event is a replay.
	MarkProcessed(ctx context.Context, stripeEventID, eventType string) (bool, error)
	// Release drops a claimed id whose handler failed, so the redelivery
	// is processed rather than skipped as a replay.
	Release(ctx context.Context, stripeEventID string) error
}
