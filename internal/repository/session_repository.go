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

// SessionRepository handles coaching session data access
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		pool: pool,
	}
}

const sessionColumns = `
	id, email, first_name, session_type, status,
	COALESCE(resume_text, ''), COALESCE(job_description, ''), COALESCE(company_url, ''),
	prep_content, paused_at, current_question,
	stripe_checkout_session_id, stripe_payment_intent_id,
	created_at, updated_at, completed_at
`

func scanSession(row pgx.Row) (*models.CoachingSession, error) {
	var s models.CoachingSession
	err := row.Scan(
		&s.ID, &s.Email, &s.FirstName, &s.SessionType, &s.Status,
		&s.ResumeText, &s.JobDescription, &s.CompanyURL,
		&s.PrepContent, &s.PausedAt, &s.CurrentQuestion,
		&s.StripeCheckoutSessionID, &s.StripePaymentIntentID,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

// Create inserts a new session in pending status and returns its id
func (r *SessionRepository) Create(ctx context.Context, session *models.CoachingSession) (string, error) {
	query := `
		INSERT INTO coaching_sessions (email, first_name, session_type, status)
		VALUES (LOWER($1), $2, $3, $4)
		RETURNING id
	`

	var id string
	err := r.pool.QueryRow(ctx, query, session.Email, session.FirstName, session.SessionType, session.Status).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

// GetByID retrieves a session by its id
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.CoachingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM coaching_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// GetByCheckoutSessionID retrieves the session tied to a Stripe checkout session
func (r *SessionRepository) GetByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.CoachingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM coaching_sessions WHERE stripe_checkout_session_id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, checkoutSessionID))
}

// FindResumableByEmail returns the most recent active or paused session of the
// given type for an email, used for the start-session conflict check.
func (r *SessionRepository) FindResumableByEmail(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM coaching_sessions
		WHERE email = LOWER($1) AND session_type = $2 AND status IN ('active', 'paused')
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanSession(r.pool.QueryRow(ctx, query, email, sessionType))
}

// FindRecentCompletedPurchase returns the most recent completed, paid
// session for an email since the cutoff. Feeds the upgrade-credit resolver.
func (r *SessionRepository) FindRecentCompletedPurchase(ctx context.Context, email string, since time.Time) (*models.CoachingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM coaching_sessions
		WHERE email = LOWER($1)
			AND status = 'completed'
			AND stripe_payment_intent_id IS NOT NULL
			AND completed_at >= $2
		ORDER BY completed_at DESC
		LIMIT 1
	`
	return scanSession(r.pool.QueryRow(ctx, query, email, since))
}

// FindLatestCompleted returns the newest completed session of a type for an
// email, used when a buyer revisits after finishing.
func (r *SessionRepository) FindLatestCompleted(ctx context.Context, email string, sessionType models.SessionType) (*models.CoachingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM coaching_sessions
		WHERE email = LOWER($1) AND session_type = $2 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1
	`
	return scanSession(r.pool.QueryRow(ctx, query, email, sessionType))
}

// UpdateStatus sets a session's status
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	query := `UPDATE coaching_sessions SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkPaused transitions a session to paused and records the pause time
func (r *SessionRepository) MarkPaused(ctx context.Context, id string, pausedAt time.Time) error {
	query := `
		UPDATE coaching_sessions
		SET status = 'paused', paused_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	tag, err := r.pool.Exec(ctx, query, id, pausedAt)
	if err != nil {
		return fmt.Errorf("failed to pause session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkResumed transitions a paused session back to active and clears the pause time
func (r *SessionRepository) MarkResumed(ctx context.Context, id string) error {
	query := `
		UPDATE coaching_sessions
		SET status = 'active', paused_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'paused'
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkCompleted transitions a session to completed and stamps completed_at
func (r *SessionRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE coaching_sessions
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetDocuments saves the intake documents onto a session
func (r *SessionRepository) SetDocuments(ctx context.Context, id string, docs models.SessionDocuments) error {
	query := `
		UPDATE coaching_sessions
		SET first_name = $2, resume_text = $3, job_description = $4, company_url = $5, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, docs.FirstName, docs.ResumeText, docs.JobDescription, docs.CompanyURL)
	if err != nil {
		return fmt.Errorf("failed to save session documents: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetPrepContent stores generated prep material as JSON
func (r *SessionRepository) SetPrepContent(ctx context.Context, id string, prepContent string) error {
	query := `UPDATE coaching_sessions SET prep_content = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, prepContent)
	if err != nil {
		return fmt.Errorf("failed to save prep content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetStripeIDs records the Stripe checkout session and payment intent ids
func (r *SessionRepository) SetStripeIDs(ctx context.Context, id, checkoutSessionID, paymentIntentID string) error {
	query := `
		UPDATE coaching_sessions
		SET stripe_checkout_session_id = $2,
			stripe_payment_intent_id = NULLIF($3, ''),
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, checkoutSessionID, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to save stripe ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetCurrentQuestion advances the interview question counter
func (r *SessionRepository) SetCurrentQuestion(ctx context.Context, id string, questionNumber int) error {
	query := `UPDATE coaching_sessions SET current_question = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, questionNumber)
	if err != nil {
		return fmt.Errorf("failed to update question counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
