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

// ResultRepository handles session result data access
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{
		pool: pool,
	}
}

const resultColumns = `
	id, session_id, overall_score, strengths, improvements,
	COALESCE(recommendation, ''), email_sent, email_sent_at, report_url, created_at
`

func scanResult(row pgx.Row) (*models.SessionResult, error) {
	var res models.SessionResult
	err := row.Scan(
		&res.ID, &res.SessionID, &res.OverallScore, &res.Strengths, &res.Improvements,
		&res.Recommendation, &res.EmailSent, &res.EmailSentAt, &res.ReportURL, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	return &res, nil
}

// GetBySessionID retrieves the analysis for a session
func (r *ResultRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionResult, error) {
	query := `SELECT ` + resultColumns + ` FROM session_results WHERE session_id = $1`
	return scanResult(r.pool.QueryRow(ctx, query, sessionID))
}

// Upsert writes the analysis for a session. session_id is unique, so a rerun
// of the composer overwrites the analysis fields but never the email markers.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.SessionResult) (*models.SessionResult, error) {
	query := `
		INSERT INTO session_results (session_id, overall_score, strengths, improvements, recommendation)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			strengths = EXCLUDED.strengths,
			improvements = EXCLUDED.improvements,
			recommendation = EXCLUDED.recommendation
		RETURNING ` + resultColumns

	return scanResult(r.pool.QueryRow(ctx, query,
		result.SessionID, result.OverallScore, result.Strengths, result.Improvements, result.Recommendation))
}

// MarkEmailSent stamps the result email exactly once. Returns ErrConflict
// when the email was already marked sent, so callers do not send twice.
func (r *ResultRepository) MarkEmailSent(ctx context.Context, sessionID string, sentAt time.Time) error {
	query := `
		UPDATE session_results
		SET email_sent = TRUE, email_sent_at = $2
		WHERE session_id = $1 AND email_sent = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, sessionID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

// SetReportURL records the archived report location
func (r *ResultRepository) SetReportURL(ctx context.Context, sessionID, reportURL string) error {
	query := `UPDATE session_results SET report_url = $2 WHERE session_id = $1`

	tag, err := r.pool.Exec(ctx, query, sessionID, reportURL)
	if err != nil {
		return fmt.Errorf("failed to set report url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
