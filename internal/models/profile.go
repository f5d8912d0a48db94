package models

import "time"

// Profile is a person's account and subscription record. Entitlement fields
// are written only by the Stripe webhook handler and the entitlement tracker;
// coaching sessions join on email, not a foreign key, because purchases can
// precede account creation.
type Profile struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	IsPro                 bool       `json:"isPro"`
	SubscriptionStart     *time.Time `json:"subscriptionStart"`
	SubscriptionEnd       *time.Time `json:"subscriptionEnd"`
	CancelAtPeriodEnd     bool       `json:"cancelAtPeriodEnd"`
	StripeCustomerID      *string    `json:"stripeCustomerId"`
	StripeSubscriptionID  *string    `json:"stripeSubscriptionId"`
	ProMockSessionsUsed   int        `json:"proMockSessionsUsed"`
	ProAudioSessionsUsed  int        `json:"proAudioSessionsUsed"`
	ProSessionResetDate   *time.Time `json:"proSessionResetDate"`
	AuthUserID            *string    `json:"authUserId"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// SubscriptionStatus is the caller-visible state of a Pro subscription
// after a manage operation
type SubscriptionStatus struct {
	IsPro             bool       `json:"isPro"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	PeriodEnd         *time.Time `json:"periodEnd,omitempty"`
}

// UsageWindow is the rolling entitlement window length. Anchored to
// pro_session_reset_date, not calendar months.
const UsageWindow = 30 * 24 * time.Hour

// EntitlementCheckRequest asks whether a Pro user may start a session
type EntitlementCheckRequest struct {
	Email       string      `json:"email" binding:"required,email"`
	SessionType SessionType `json:"sessionType" binding:"required"`
}

// EntitlementResult is the outcome of a check or consume call
type EntitlementResult struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	Unlimited bool       `json:"unlimited"`
	ResetDate *time.Time `json:"resetDate,omitempty"`
	Message   string     `json:"message,omitempty"`
}
