package payments

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/models"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
)

// CheckoutInput carries everything needed to open a Stripe Checkout session
type CheckoutInput struct {
	SessionID       string
	SessionType     models.SessionType
	Email           string
	FinalPriceCents int64
	AppliedDiscount string
	DiscountID      string
}

// ClientInterface defines the Stripe operations used by the services
type ClientInterface interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, checkoutSessionID string) (*stripe.CheckoutSession, error)
	FindActiveSubscriptionByEmail(ctx context.Context, email string) (*stripe.Subscription, error)
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error
	ReactivateSubscription(ctx context.Context, subscriptionID string) error
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// Client wraps the Stripe SDK behind the interface the services consume
type Client struct {
	api *client.API
	cfg config.StripeConfig
}

// NewClient creates a Stripe client with its own API key, no package globals
func NewClient(cfg config.StripeConfig) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &Client{
		api: api,
		cfg: cfg,
	}
}

// CreateCheckoutSession opens a Checkout session. One-time products are
// priced inline from the resolved quote; the Pro subscription uses the
// configured recurring price. The call runs under the checkout timeout so a
// slow Stripe never holds the buyer past the budget.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*stripe.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CheckoutTimeout)*time.Second)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		CustomerEmail: stripe.String(in.Email),
		SuccessURL:    stripe.String(c.cfg.SuccessURL),
		CancelURL:     stripe.String(c.cfg.CancelURL),
		Metadata: map[string]string{
			"session_id":        in.SessionID,
			"session_type":      string(in.SessionType),
			"applied_discount":  in.AppliedDiscount,
			"discount_id":       in.DiscountID,
			"final_price_cents": fmt.Sprintf("%d", in.FinalPriceCents),
		},
	}
	params.Context = ctx

	if in.SessionType == models.SessionTypePro {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.cfg.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(in.FinalPriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.SessionType.DisplayName()),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
	}

	start := time.Now()
	sess, err := c.api.CheckoutSessions.New(params)
	duration := metrics.MeasureDuration(start)
	metrics.StripeRequestDuration.WithLabelValues("checkout_session_create").Observe(duration)

	if err != nil {
		logger.LogAPICall("stripe", "checkout_session_create", "error", duration, zap.Error(err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	logger.LogAPICall("stripe", "checkout_session_create", "success", duration)

	if err := c.validateCheckoutURL(sess.URL); err != nil {
		return nil, err
	}

	return sess, nil
}

// validateCheckoutURL rejects sessions whose hosted page points at a Stripe
// test or demo host. Those appear when a test-mode key leaks into production
// config, and sending a buyer there would silently not charge them.
func (c *Client) validateCheckoutURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.InternalError("checkout session has no hosted url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid checkout url: %w", err)
	}

	for _, blocked := range c.cfg.BlockedHosts {
		if u.Host == blocked {
			logger.Error("Blocked checkout host", zap.String("host", u.Host))
			return fmt.Errorf("checkout url host %s is blocked: %w", u.Host, apperrors.ErrInternal)
		}
	}

	return nil
}

// GetCheckoutSession fetches a Checkout session for payment verification
func (c *Client) GetCheckoutSession(ctx context.Context, checkoutSessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	params.AddExpand("payment_intent")

	start := time.Now()
	sess, err := c.api.CheckoutSessions.Get(checkoutSessionID, params)
	duration := metrics.MeasureDuration(start)
	metrics.StripeRequestDuration.WithLabelValues("checkout_session_get").Observe(duration)

	if err != nil {
		logger.LogAPICall("stripe", "checkout_session_get", "error", duration, zap.Error(err))
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	logger.LogAPICall("stripe", "checkout_session_get", "success", duration)

	return sess, nil
}

// FindActiveSubscriptionByEmail looks up a customer's active subscription,
// used to reconcile Pro status when webhooks were missed. Returns ErrNotFound
// when the email has no active subscription.
func (c *Client) FindActiveSubscriptionByEmail(ctx context.Context, email string) (*stripe.Subscription, error) {
	custParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	custParams.Context = ctx
	custParams.Limit = stripe.Int64(5)

	start := time.Now()
	defer func() {
		metrics.StripeRequestDuration.WithLabelValues("subscription_lookup").Observe(metrics.MeasureDuration(start))
	}()

	customers := c.api.Customers.List(custParams)
	for customers.Next() {
		cust := customers.Customer()

		subParams := &stripe.SubscriptionListParams{
			Customer: stripe.String(cust.ID),
			Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
		}
		subParams.Context = ctx
		subParams.Limit = stripe.Int64(1)

		subs := c.api.Subscriptions.List(subParams)
		for subs.Next() {
			return subs.Subscription(), nil
		}
		if err := subs.Err(); err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
	}
	if err := customers.Err(); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return nil, apperrors.ErrNotFound
}

// GetCustomerEmail resolves a customer id to its email address. Webhook
// subscription payloads carry only the customer id.
func (c *Client) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	start := time.Now()
	cust, err := c.api.Customers.Get(customerID, params)
	duration := metrics.MeasureDuration(start)
	metrics.StripeRequestDuration.WithLabelValues("customer_get").Observe(duration)

	if err != nil {
		logger.LogAPICall("stripe", "customer_get", "error", duration, zap.Error(err))
		return "", fmt.Errorf("failed to fetch customer: %w", err)
	}
	logger.LogAPICall("stripe", "customer_get", "success", duration)

	return cust.Email, nil
}

// CancelSubscriptionAtPeriodEnd schedules a cancellation for the period end
func (c *Client) CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	start := time.Now()
	_, err := c.api.Subscriptions.Update(subscriptionID, params)
	duration := metrics.MeasureDuration(start)
	metrics.StripeRequestDuration.WithLabelValues("subscription_cancel").Observe(duration)

	if err != nil {
		logger.LogAPICall("stripe", "subscription_cancel", "error", duration, zap.Error(err))
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	logger.LogAPICall("stripe", "subscription_cancel", "success", duration)

	return nil
}

// ReactivateSubscription clears a pending cancellation before the period ends
func (c *Client) ReactivateSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(false)}
	params.Context = ctx

	start := time.Now()
	_, err := c.api.Subscriptions.Update(subscriptionID, params)
	duration := metrics.MeasureDuration(start)
	metrics.StripeRequestDuration.WithLabelValues("subscription_reactivate").Observe(duration)

	if err != nil {
		logger.LogAPICall("stripe", "subscription_reactivate", "error", duration, zap.Error(err))
		return fmt.Errorf("failed to reactivate subscription: %w", err)
	}
	logger.LogAPICall("stripe", "subscription_reactivate", "success", duration)

	return nil
}

// ConstructEvent verifies a webhook signature and decodes the event
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
