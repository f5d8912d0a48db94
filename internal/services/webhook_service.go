package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/repository"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// WebhookService processes Stripe webhook deliveries. Every event id is
// claimed before any state change, so Stripe redeliveries are acknowledged
// without re-running their side effects; a failed handler releases the
// claim again so the retry actually reprocesses. Only successfully handled
// ids stay recorded, which is what keeps invoice.paid from double-resetting
// usage counters.
type WebhookService struct {
	webhookRepo  repository.WebhookEventDataSource
	profileRepo  repository.ProfileDataSource
	stripeClient payments.ClientInterface
	emailClient  email.ClientInterface
	loginLinks   LoginLinkSenderInterface
	config       *config.Config
	now          func() time.Time
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	webhookRepo repository.WebhookEventDataSource,
	profileRepo repository.ProfileDataSource,
	stripeClient payments.ClientInterface,
	emailClient email.ClientInterface,
	loginLinks LoginLinkSenderInterface,
	cfg *config.Config,
) *WebhookService {
	return &WebhookService{
		webhookRepo:  webhookRepo,
		profileRepo:  profileRepo,
		stripeClient: stripeClient,
		emailClient:  emailClient,
		loginLinks:   loginLinks,
		config:       cfg,
		now:          time.Now,
	}
}

// HandleEvent verifies and dispatches one webhook delivery. A nil return
// means Stripe gets a 200; signature failures are the only caller-visible
// error because Stripe retries on anything else.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripeClient.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		return fmt.Errorf("webhook signature: %s: %w", err.Error(), apperrors.ErrInvalidInput)
	}

	eventType := string(event.Type)

	first, err := s.webhookRepo.MarkProcessed(ctx, event.ID, eventType)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	if !first {
		metrics.WebhookEvents.WithLabelValues(eventType, "replay").Inc()
		logger.Info("Webhook replay skipped",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType))
		return nil
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.handleSubscriptionUpserted(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoiceFailed(ctx, event)
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	default:
		metrics.WebhookEvents.WithLabelValues(eventType, "ignored").Inc()
		logger.Info("Webhook event ignored", zap.String("event_type", eventType))
		return nil
	}

	if err != nil {
		// The claim must not outlive a failed handler: Stripe retries on the
		// 5xx, and that retry has to reprocess, not hit the replay skip.
		if releaseErr := s.webhookRepo.Release(ctx, event.ID); releaseErr != nil {
			logger.Error("Failed to release webhook event for retry",
				zap.String("event_id", event.ID), zap.Error(releaseErr))
		}
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		return err
	}
	metrics.WebhookEvents.WithLabelValues(eventType, "processed").Inc()

	return nil
}

func (s *WebhookService) handleSubscriptionUpserted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription event: %w", err)
	}

	emailAddr, err := s.resolveSubscriptionEmail(ctx, &sub)
	if err != nil {
		return err
	}

	fullName := ""
	if sub.Customer != nil {
		fullName = sub.Customer.Name
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	profile, err := s.profileRepo.UpsertProSubscription(ctx, emailAddr, fullName, customerID, sub.ID,
		time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		time.Unix(sub.CurrentPeriodEnd, 0).UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert pro subscription: %w", err)
	}

	if sub.CancelAtPeriodEnd != profile.CancelAtPeriodEnd {
		if err := s.profileRepo.SetCancelAtPeriodEnd(ctx, emailAddr, sub.CancelAtPeriodEnd); err != nil {
			return fmt.Errorf("failed to sync cancellation flag: %w", err)
		}
	}

	logger.Info("Subscription synced",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Bool("cancel_at_period_end", sub.CancelAtPeriodEnd))

	return nil
}

func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to decode subscription event: %w", err)
	}

	profile, err := s.profileRepo.GetByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Nothing to clear; the subscription was never mirrored.
			logger.Info("Deleted subscription has no profile", zap.String("subscription_id", sub.ID))
			return nil
		}
		return err
	}

	if err := s.profileRepo.DeactivatePro(ctx, profile.Email); err != nil {
		return fmt.Errorf("failed to deactivate pro: %w", err)
	}

	logger.Info("Pro access ended",
		zap.String("subscription_id", sub.ID))

	return nil
}

// handleInvoicePaid is the monthly renewal point: counters reset and the
// period end extends. The reset is unconditional here because the event id
// ledger already filtered replays.
func (s *WebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("failed to decode invoice event: %w", err)
	}
	if inv.Subscription == nil {
		// One-time payment invoices carry no entitlement.
		return nil
	}

	profile, err := s.profileRepo.GetByStripeSubscriptionID(ctx, inv.Subscription.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// The subscription.created event usually lands first, but Stripe
			// does not order deliveries. The later subscription sync will
			// establish the profile; the first window starts then.
			logger.Info("Invoice for unknown subscription",
				zap.String("subscription_id", inv.Subscription.ID))
			return nil
		}
		return err
	}

	if err := s.profileRepo.ResetUsageWindow(ctx, profile.Email, time.Unix(inv.PeriodEnd, 0).UTC()); err != nil {
		return fmt.Errorf("failed to reset usage window: %w", err)
	}

	logger.Info("Usage window renewed",
		zap.String("subscription_id", inv.Subscription.ID))

	return nil
}

func (s *WebhookService) handleInvoiceFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("failed to decode invoice event: %w", err)
	}
	if inv.Subscription == nil {
		return nil
	}

	profile, err := s.profileRepo.GetByStripeSubscriptionID(ctx, inv.Subscription.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	// Stripe retries the charge on its own schedule. Access stays on until
	// the subscription is actually deleted; here we flag the account and put
	// it in front of support.
	if err := s.profileRepo.SetCancelAtPeriodEnd(ctx, profile.Email, true); err != nil {
		return fmt.Errorf("failed to flag failed payment: %w", err)
	}

	html, err := email.RenderEscalation(email.EscalationData{
		ErrorType:    "billing",
		ErrorCode:    "invoice_payment_failed",
		ErrorMessage: fmt.Sprintf("Renewal charge of %s failed, Stripe will retry", email.FormatAmount(inv.AmountDue)),
		UserEmail:    profile.Email,
	})
	if err == nil {
		err = s.emailClient.Send(ctx, email.SendRequest{
			To:       email.Address{Email: s.config.Email.AdminEmail},
			Subject:  "Subscription payment failed",
			HTML:     html,
			Template: email.TemplateAdminEscalation,
		})
	}
	if err != nil {
		logger.Error("Payment failure notification failed",
			zap.String("subscription_id", inv.Subscription.ID), zap.Error(err))
	}

	logger.Warn("Subscription payment failed",
		zap.String("subscription_id", inv.Subscription.ID),
		zap.Int64("amount_due", inv.AmountDue))

	return nil
}

// handleCheckoutCompleted covers subscription-mode checkouts: make sure the
// payer has an account and send a one-time sign-in link so they land in a
// signed-in state. One-off purchases are handled by payment verification.
func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		return fmt.Errorf("failed to decode checkout event: %w", err)
	}
	if checkout.Mode != stripe.CheckoutSessionModeSubscription {
		return nil
	}

	emailAddr := checkout.CustomerEmail
	fullName := ""
	if checkout.CustomerDetails != nil {
		if checkout.CustomerDetails.Email != "" {
			emailAddr = checkout.CustomerDetails.Email
		}
		fullName = checkout.CustomerDetails.Name
	}
	if emailAddr == "" {
		logger.Warn("Subscription checkout without email", zap.String("checkout_id", checkout.ID))
		return nil
	}

	customerID := ""
	if checkout.Customer != nil {
		customerID = checkout.Customer.ID
	}
	subscriptionID := ""
	if checkout.Subscription != nil {
		subscriptionID = checkout.Subscription.ID
	}

	// Placeholder period; the subscription events carry the real bounds.
	nowTime := s.now().UTC()
	if _, err := s.profileRepo.UpsertProSubscription(ctx, emailAddr, fullName, customerID, subscriptionID,
		nowTime, nowTime.AddDate(0, 1, 0)); err != nil {
		return fmt.Errorf("failed to ensure subscriber profile: %w", err)
	}

	if err := s.loginLinks.SendLoginLink(ctx, emailAddr); err != nil {
		// The welcome email from payment verification still carries a start
		// link, so a failed magic link is not worth failing the event over.
		logger.Error("Subscriber sign-in link failed",
			zap.String("checkout_id", checkout.ID), zap.Error(err))
	}

	return nil
}

// resolveSubscriptionEmail finds the email behind a subscription event.
// Webhook payloads carry only the customer id, so an unknown subscription
// costs one customer fetch.
func (s *WebhookService) resolveSubscriptionEmail(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if profile, err := s.profileRepo.GetByStripeSubscriptionID(ctx, sub.ID); err == nil {
		return profile.Email, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return "", err
	}

	if sub.Customer == nil {
		return "", fmt.Errorf("subscription %s has no customer", sub.ID)
	}
	if sub.Customer.Email != "" {
		return sub.Customer.Email, nil
	}

	emailAddr, err := s.stripeClient.GetCustomerEmail(ctx, sub.Customer.ID)
	if err != nil {
		return "", err
	}
	if emailAddr == "" {
		return "", fmt.Errorf("customer %s has no email", sub.Customer.ID)
	}

	return emailAddr, nil
}
