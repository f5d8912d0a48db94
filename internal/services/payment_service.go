package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/models"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/pricing"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// PaymentService verifies completed checkouts and activates sessions
type PaymentService struct {
	sessionRepo  repository.SessionDataSource
	profileRepo  repository.ProfileDataSource
	discountRepo repository.DiscountDataSource
	stripeClient payments.ClientInterface
	emailClient  email.ClientInterface
	reports      ReportProviderInterface
	config       *config.Config
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	sessionRepo repository.SessionDataSource,
	profileRepo repository.ProfileDataSource,
	discountRepo repository.DiscountDataSource,
	stripeClient payments.ClientInterface,
	emailClient email.ClientInterface,
	reports ReportProviderInterface,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		sessionRepo:  sessionRepo,
		profileRepo:  profileRepo,
		discountRepo: discountRepo,
		stripeClient: stripeClient,
		emailClient:  emailClient,
		reports:      reports,
		config:       cfg,
	}
}

// VerifyPayment confirms a checkout and returns the session to use. With a
// checkout id it asks Stripe directly; without one it reconciles by email,
// which covers buyers revisiting the success page or Pro members whose
// webhook was missed.
func (s *PaymentService) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if req.CheckoutSessionID != "" {
		return s.verifyByCheckoutID(ctx, req.CheckoutSessionID)
	}
	return s.verifyByEmail(ctx, req.Email, req.SessionType)
}

func (s *PaymentService) verifyByCheckoutID(ctx context.Context, checkoutSessionID string) (*models.VerifyPaymentResponse, error) {
	checkout, err := s.stripeClient.GetCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("stripe_error").Inc()
		logger.Error("Checkout session fetch failed",
			zap.String("checkout_session_id", checkoutSessionID),
			zap.Error(err))
		return &models.VerifyPaymentResponse{
			Verified:  false,
			ErrorCode: string(apperrors.CodeNetworkError),
		}, nil
	}

	if !checkoutPaid(checkout) {
		metrics.PaymentVerifications.WithLabelValues("unpaid").Inc()
		return &models.VerifyPaymentResponse{Verified: false}, nil
	}

	session, err := s.findLinkedSession(ctx, checkout)
	if err != nil {
		metrics.PaymentVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	// A completed session is never reprocessed: no re-activation, no second
	// results email. The stored report is returned as-is.
	if session.Status == models.SessionStatusCompleted {
		metrics.PaymentVerifications.WithLabelValues("already_completed").Inc()
		report, err := s.reports.GetReport(ctx, session.ID)
		if err != nil {
			logger.Error("Stored report fetch failed",
				zap.String("session_id", session.ID), zap.Error(err))
		}
		return &models.VerifyPaymentResponse{
			Verified:      false,
			SessionID:     session.ID,
			SessionStatus: models.SessionStatusCompleted,
			Report:        report,
		}, nil
	}

	if err := s.activate(ctx, session, checkout); err != nil {
		metrics.PaymentVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	s.recordRedemption(ctx, checkout, session)
	s.sendConfirmation(ctx, session, checkout)

	metrics.PaymentVerifications.WithLabelValues("verified").Inc()
	logger.Info("Payment verified",
		zap.String("session_id", session.ID),
		zap.String("session_type", string(session.SessionType)))

	return &models.VerifyPaymentResponse{
		Verified:      true,
		SessionID:     session.ID,
		SessionStatus: models.SessionStatusActive,
	}, nil
}

// verifyByEmail handles the success-page revisit without a checkout id
func (s *PaymentService) verifyByEmail(ctx context.Context, emailAddr string, sessionType models.SessionType) (*models.VerifyPaymentResponse, error) {
	if emailAddr == "" || !sessionType.IsValid() {
		return nil, apperrors.InvalidInputError("email", "email and sessionType required without a checkout id")
	}

	if live, err := s.sessionRepo.FindResumableByEmail(ctx, emailAddr, sessionType); err == nil {
		metrics.PaymentVerifications.WithLabelValues("existing_session").Inc()
		return &models.VerifyPaymentResponse{
			Verified:      true,
			SessionID:     live.ID,
			SessionStatus: live.Status,
		}, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if done, err := s.sessionRepo.FindLatestCompleted(ctx, emailAddr, sessionType); err == nil {
		report, reportErr := s.reports.GetReport(ctx, done.ID)
		if reportErr != nil {
			logger.Error("Stored report fetch failed",
				zap.String("session_id", done.ID), zap.Error(reportErr))
		}
		metrics.PaymentVerifications.WithLabelValues("already_completed").Inc()
		return &models.VerifyPaymentResponse{
			Verified:      false,
			SessionID:     done.ID,
			SessionStatus: models.SessionStatusCompleted,
			Report:        report,
		}, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Last resort: an active Stripe subscription entitles the member to a
	// fresh session even when no local row exists yet.
	sub, err := s.stripeClient.FindActiveSubscriptionByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.PaymentVerifications.WithLabelValues("unverified").Inc()
			return &models.VerifyPaymentResponse{Verified: false}, nil
		}
		metrics.PaymentVerifications.WithLabelValues("stripe_error").Inc()
		return &models.VerifyPaymentResponse{
			Verified:  false,
			ErrorCode: string(apperrors.CodeNetworkError),
		}, nil
	}

	s.syncProfileFromSubscription(ctx, emailAddr, sub)

	sessionID, err := s.sessionRepo.Create(ctx, &models.CoachingSession{
		Email:       emailAddr,
		SessionType: sessionType,
		Status:      models.SessionStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber session: %w", err)
	}

	metrics.PaymentVerifications.WithLabelValues("subscription").Inc()
	logger.Info("Session created from live subscription",
		zap.String("session_id", sessionID),
		zap.String("session_type", string(sessionType)))

	return &models.VerifyPaymentResponse{
		Verified:      true,
		SessionID:     sessionID,
		SessionStatus: models.SessionStatusActive,
	}, nil
}

func checkoutPaid(checkout *stripe.CheckoutSession) bool {
	if checkout.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return true
	}
	// Subscription-mode sessions with a trial report no_payment_required.
	return checkout.Status == stripe.CheckoutSessionStatusComplete &&
		checkout.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

// findLinkedSession locates the pending row created at checkout time, first
// by the stored checkout id, then by the session id carried in metadata.
// Creates the row when both lookups miss (e.g. the pending insert was lost).
func (s *PaymentService) findLinkedSession(ctx context.Context, checkout *stripe.CheckoutSession) (*models.CoachingSession, error) {
	session, err := s.sessionRepo.GetByCheckoutSessionID(ctx, checkout.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if id := checkout.Metadata["session_id"]; id != "" {
		session, err = s.sessionRepo.GetByID(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	sessionType := models.SessionType(checkout.Metadata["session_type"])
	if !sessionType.IsValid() {
		return nil, fmt.Errorf("checkout %s has no recoverable session", checkout.ID)
	}

	id, err := s.sessionRepo.Create(ctx, &models.CoachingSession{
		Email:       checkoutEmail(checkout),
		SessionType: sessionType,
		Status:      models.SessionStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recover session for checkout: %w", err)
	}

	logger.Warn("Recovered missing session row for paid checkout",
		zap.String("checkout_session_id", checkout.ID),
		zap.String("session_id", id))

	return s.sessionRepo.GetByID(ctx, id)
}

func checkoutEmail(checkout *stripe.CheckoutSession) string {
	if checkout.CustomerDetails != nil && checkout.CustomerDetails.Email != "" {
		return checkout.CustomerDetails.Email
	}
	return checkout.CustomerEmail
}

func (s *PaymentService) activate(ctx context.Context, session *models.CoachingSession, checkout *stripe.CheckoutSession) error {
	paymentIntentID := ""
	if checkout.PaymentIntent != nil {
		paymentIntentID = checkout.PaymentIntent.ID
	}

	if err := s.sessionRepo.SetStripeIDs(ctx, session.ID, checkout.ID, paymentIntentID); err != nil {
		return err
	}

	if session.Status == models.SessionStatusPending {
		if err := s.sessionRepo.UpdateStatus(ctx, session.ID, models.SessionStatusActive); err != nil {
			return err
		}
		session.Status = models.SessionStatusActive
	}

	if session.SessionType == models.SessionTypePro && checkout.Subscription != nil {
		s.syncProfileFromSubscription(ctx, checkoutEmail(checkout), checkout.Subscription)
	}

	return nil
}

// syncProfileFromSubscription mirrors a Stripe subscription onto the profile.
// Failures are logged, not surfaced; the purchased session still activates.
func (s *PaymentService) syncProfileFromSubscription(ctx context.Context, emailAddr string, sub *stripe.Subscription) {
	if sub == nil || emailAddr == "" {
		return
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	_, err := s.profileRepo.UpsertProSubscription(ctx, emailAddr, "", customerID, sub.ID,
		time.Unix(sub.CurrentPeriodStart, 0).UTC(), time.Unix(sub.CurrentPeriodEnd, 0).UTC())
	if err != nil {
		logger.Error("Profile subscription sync failed",
			zap.String("subscription_id", sub.ID), zap.Error(err))
	}
}

// recordRedemption burns the discount named in checkout metadata. This is
// the only place a redemption is written; validation never consumes a use.
func (s *PaymentService) recordRedemption(ctx context.Context, checkout *stripe.CheckoutSession, session *models.CoachingSession) {
	discountID := checkout.Metadata["discount_id"]
	if discountID == "" {
		return
	}

	err := s.discountRepo.RecordRedemption(ctx, discountID, session.Email, session.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Verification re-ran; the redemption is already on file.
			return
		}
		logger.Error("Discount redemption failed",
			zap.String("discount_id", discountID),
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

// sendConfirmation emails the receipt, best-effort
func (s *PaymentService) sendConfirmation(ctx context.Context, session *models.CoachingSession, checkout *stripe.CheckoutSession) {
	startURL := s.config.Server.BaseURL + "/session/" + session.ID

	if session.SessionType == models.SessionTypePro {
		html, err := email.RenderProWelcome(email.ProWelcomeData{
			FirstName:  session.FirstName,
			MockLimit:  s.config.Entitlement.MockSessionLimit,
			AudioLimit: s.config.Entitlement.AudioSessionLimit,
			StartURL:   startURL,
		})
		if err != nil {
			logger.Error("Pro welcome render failed", zap.Error(err))
			return
		}
		if err := s.emailClient.Send(ctx, email.SendRequest{
			To:       email.Address{Email: session.Email, Name: session.FirstName},
			Subject:  "Welcome to Talendro Pro",
			HTML:     html,
			Template: email.TemplateProWelcome,
		}); err != nil {
			logger.Error("Pro welcome send failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		return
	}

	isUpgrade := checkout.Metadata["applied_discount"] == pricing.WinnerUpgradeCredit
	template := email.TemplatePurchaseNew
	subject := "Your " + session.SessionType.DisplayName() + " session is ready"
	if isUpgrade {
		template = email.TemplatePurchaseUpgrade
		subject = "Upgrade confirmed: " + session.SessionType.DisplayName()
	}

	html, err := email.RenderPurchase(email.PurchaseData{
		FirstName:   session.FirstName,
		ProductName: session.SessionType.DisplayName(),
		AmountPaid:  email.FormatAmount(checkout.AmountTotal),
		IsUpgrade:   isUpgrade,
		StartURL:    startURL,
	})
	if err != nil {
		logger.Error("Purchase email render failed", zap.Error(err))
		return
	}

	if err := s.emailClient.Send(ctx, email.SendRequest{
		To:       email.Address{Email: session.Email, Name: session.FirstName},
		Subject:  subject,
		HTML:     html,
		Template: template,
	}); err != nil {
		logger.Error("Purchase email send failed", zap.String("session_id", session.ID), zap.Error(err))
	}
}
