package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository tracks processed Stripe event ids so webhook
// deliveries are idempotent across retries and replays.
type WebhookEventRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(pool *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{
		pool: pool,
	}
}

// MarkProcessed records an event id before any handler runs. The unique
// constraint turns a replay into a no-op insert, reported as false.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, stripeEventID, eventType string) (bool, error) {
	query := `
		INSERT INTO webhook_events (stripe_event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (stripe_event_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, stripeEventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Release drops a claimed event id after its handler failed, so the next
// Stripe delivery of the same event is processed instead of skipped.
func (r *WebhookEventRepository) Release(ctx context.Context, stripeEventID string) error {
	query := `DELETE FROM webhook_events WHERE stripe_event_id = $1`

	if _, err := r.pool.Exec(ctx, query, stripeEventID); err != nil {
		return fmt.Errorf("failed to release webhook event: %w", err)
	}

	return nil
}
