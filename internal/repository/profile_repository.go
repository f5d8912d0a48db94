package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talendro/talendro-api/internal/models"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

// ProfileRepository handles user profile data access
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{
		pool: pool,
	}
}

const profileColumns = `
	id, email, COALESCE(full_name, ''), is_pro,
	subscription_start, subscription_end, cancel_at_period_end,
	stripe_customer_id, stripe_subscription_id,
	pro_mock_sessions_used, pro_audio_sessions_used, pro_session_reset_date,
	auth_user_id, created_at, updated_at
`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID, &p.Email, &p.FullName, &p.IsPro,
		&p.SubscriptionStart, &p.SubscriptionEnd, &p.CancelAtPeriodEnd,
		&p.StripeCustomerID, &p.StripeSubscriptionID,
		&p.ProMockSessionsUsed, &p.ProAudioSessionsUsed, &p.ProSessionResetDate,
		&p.AuthUserID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &p, nil
}

// GetByEmail retrieves a profile by email (case-insensitive)
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = LOWER($1)`
	return scanProfile(r.pool.QueryRow(ctx, query, email))
}

// GetByStripeSubscriptionID retrieves the profile holding a Stripe subscription
func (r *ProfileRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE stripe_subscription_id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, subscriptionID))
}

// UpsertProSubscription activates Pro on a profile, creating it when the email
// is new. The usage reset date is initialized only when absent; counters are
// never touched here. Renewal resets happen on invoice.paid, so a mid-cycle
// subscription update cannot hand out a fresh window.
func (r *ProfileRepository) UpsertProSubscription(ctx context.Context, email, fullName, customerID, subscriptionID string, periodStart, periodEnd time.Time) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (
			email, full_name, is_pro, subscription_start, subscription_end,
			cancel_at_period_end, stripe_customer_id, stripe_subscription_id,
			pro_mock_sessions_used, pro_audio_sessions_used, pro_session_reset_date
		)
		VALUES (LOWER($1), $2, TRUE, $3, $4, FALSE, $5, $6, 0, 0, $3)
		ON CONFLICT (email) DO UPDATE SET
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), profiles.full_name),
			is_pro = TRUE,
			subscription_start = EXCLUDED.subscription_start,
			subscription_end = EXCLUDED.subscription_end,
			cancel_at_period_end = FALSE,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			pro_session_reset_date = COALESCE(profiles.pro_session_reset_date, EXCLUDED.subscription_start),
			updated_at = NOW()
		RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, query, email, fullName, periodStart, periodEnd, customerID, subscriptionID))
}

// SetCancelAtPeriodEnd flags or unflags a pending cancellation
func (r *ProfileRepository) SetCancelAtPeriodEnd(ctx context.Context, email string, cancel bool) error {
	query := `UPDATE profiles SET cancel_at_period_end = $2, updated_at = NOW() WHERE email = LOWER($1)`

	tag, err := r.pool.Exec(ctx, query, email, cancel)
	if err != nil {
		return fmt.Errorf("failed to update cancellation flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeactivatePro removes Pro access after the subscription ends
func (r *ProfileRepository) DeactivatePro(ctx context.Context, email string) error {
	query := `
		UPDATE profiles
		SET is_pro = FALSE, stripe_subscription_id = NULL, updated_at = NOW()
		WHERE email = LOWER($1)
	`

	tag, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to deactivate pro: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ResetUsageWindow zeroes both usage counters and anchors a new 30-day window
func (r *ProfileRepository) ResetUsageWindow(ctx context.Context, email string, resetDate time.Time) error {
	query := `
		UPDATE profiles
		SET pro_mock_sessions_used = 0, pro_audio_sessions_used = 0,
			pro_session_reset_date = $2, updated_at = NOW()
		WHERE email = LOWER($1)
	`

	tag, err := r.pool.Exec(ctx, query, email, resetDate)
	if err != nil {
		return fmt.Errorf("failed to reset usage window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ConsumeMockSession atomically increments the mock usage counter while it is
// under the limit. Returns false when the limit is already reached, so two
// concurrent starts cannot both pass the check.
func (r *ProfileRepository) ConsumeMockSession(ctx context.Context, email string, limit int) (bool, error) {
	query := `
		UPDATE profiles
		SET pro_mock_sessions_used = pro_mock_sessions_used + 1, updated_at = NOW()
		WHERE email = LOWER($1) AND is_pro = TRUE AND pro_mock_sessions_used < $2
		RETURNING pro_mock_sessions_used
	`

	var used int
	err := r.pool.QueryRow(ctx, query, email, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume mock session: %w", err)
	}

	return true, nil
}

// ConsumeAudioSession atomically increments the voice usage counter while it
// is under the limit
func (r *ProfileRepository) ConsumeAudioSession(ctx context.Context, email string, limit int) (bool, error) {
	query := `
		UPDATE profiles
		SET pro_audio_sessions_used = pro_audio_sessions_used + 1, updated_at = NOW()
		WHERE email = LOWER($1) AND is_pro = TRUE AND pro_audio_sessions_used < $2
		RETURNING pro_audio_sessions_used
	`

	var used int
	err := r.pool.QueryRow(ctx, query, email, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume audio session: %w", err)
	}

	return true, nil
}

// SetLoginToken stores a hashed magic-link token, replacing any previous one
func (r *ProfileRepository) SetLoginToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE profiles
		SET login_token = $2, login_token_expires_at = $3, updated_at = NOW()
		WHERE email = LOWER($1)
	`

	tag, err := r.pool.Exec(ctx, query, email, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store login token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ConsumeLoginToken redeems an unexpired magic-link token exactly once,
// clearing it in the same statement
func (r *ProfileRepository) ConsumeLoginToken(ctx context.Context, tokenHash string, now time.Time) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET login_token = NULL, login_token_expires_at = NULL, updated_at = NOW()
		WHERE login_token = $1 AND login_token_expires_at > $2
		RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, query, tokenHash, now))
}
