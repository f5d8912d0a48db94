package services

import (
	"context"

	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/voice"
)

// DiscountServiceInterface defines the discount validation operations
type DiscountServiceInterface interface {
	Validate(ctx context.Context, req *models.ValidateDiscountRequest) (*models.ValidateDiscountResponse, error)
}

// CheckoutServiceInterface defines the checkout operations
type CheckoutServiceInterface interface {
	CreateCheckout(ctx context.Context, req *models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error)
}

// PaymentServiceInterface defines the payment verification operations
type PaymentServiceInterface interface {
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
}

// SessionServiceInterface defines the session lifecycle operations
type SessionServiceInterface interface {
	Start(ctx context.Context, req *models.StartSessionRequest) (*models.StartSessionResponse, error)
	SaveDocuments(ctx context.Context, sessionID string, docs *models.SessionDocuments) error
	Pause(ctx context.Context, sessionID string, currentQuestion int) error
	Resume(ctx context.Context, sessionID string) (*models.ResumeSessionResponse, error)
	Abandon(ctx context.Context, sessionID string) error
}

// CoachServiceInterface defines the AI coaching proxy operations
type CoachServiceInterface interface {
	Turn(ctx context.Context, req *models.CoachTurnRequest) (*models.CoachTurnResponse, error)
}

// EntitlementServiceInterface defines the Pro usage-limit operations
type EntitlementServiceInterface interface {
	Check(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error)
	Consume(ctx context.Context, req *models.EntitlementCheckRequest) (*models.EntitlementResult, error)
}

// ResultsServiceInterface defines the results composition operations
type ResultsServiceInterface interface {
	Complete(ctx context.Context, sessionID string, req *models.CompleteSessionRequest) (*models.SessionReport, error)
	GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error)
}

// ReportProviderInterface is the slice of the results service the payment
// verifier needs: fetching stored reports for already completed sessions
type ReportProviderInterface interface {
	GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error)
}

// VoiceServiceInterface defines the voice interview connection operations
type VoiceServiceInterface interface {
	SignedURL(ctx context.Context, sessionID string) (string, error)
	Buffer(sessionID string) *voice.TranscriptBuffer
	Priming(ctx context.Context, sessionID string) (*voice.PrimingContext, error)
	Finish(ctx context.Context, sessionID string, endedEarly bool) (*models.SessionReport, error)
	Release(sessionID string)
}

// WebhookServiceInterface defines the Stripe webhook operations
type WebhookServiceInterface interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

// ErrorLogServiceInterface defines the error reporting operations
type ErrorLogServiceInterface interface {
	Report(ctx context.Context, req *models.ReportErrorRequest) (string, error)
}

// SubscriptionServiceInterface defines the self-service Pro plan operations
type SubscriptionServiceInterface interface {
	Cancel(ctx context.Context, email string) (*models.SubscriptionStatus, error)
	Reactivate(ctx context.Context, email string) (*models.SubscriptionStatus, error)
}

// AdminServiceInterface defines the admin-only management operations
type AdminServiceInterface interface {
	ListDiscountCodes(ctx context.Context) ([]*models.DiscountCode, error)
	CreateDiscountCode(ctx context.Context, req *models.CreateDiscountCodeRequest) (*models.DiscountCode, error)
	SetDiscountCodeActive(ctx context.Context, id string, active bool) error
	ListErrorLogs(ctx context.Context, limit int) ([]*models.ErrorLog, error)
}

// AuthServiceInterface defines the sign-in operations
type AuthServiceInterface interface {
	RequestLogin(ctx context.Context, req *models.RequestLoginRequest) (*models.RequestLoginResponse, error)
	VerifyLogin(ctx context.Context, req *models.VerifyLoginRequest) (*models.UserSession, string, error)
	AdminLogin(ctx context.Context, req *models.AdminLoginRequest) (*models.UserSession, string, error)
}

// LoginLinkSenderInterface is the slice of the auth service the webhook
// handler needs for subscriber onboarding
type LoginLinkSenderInterface interface {
	SendLoginLink(ctx context.Context, email string) error
}
