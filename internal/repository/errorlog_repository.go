package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talendro/talendro-api/internal/models"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

// ErrorLogRepository handles error report data access
type ErrorLogRepository struct {
	pool *pgxpool.Pool
}

// NewErrorLogRepository creates a new error log repository
func NewErrorLogRepository(pool *pgxpool.Pool) *ErrorLogRepository {
	return &ErrorLogRepository{
		pool: pool,
	}
}

// Create stores a reported error and returns its id
func (r *ErrorLogRepository) Create(ctx context.Context, entry *models.ErrorLog) (string, error) {
	query := `
		INSERT INTO error_logs (error_type, error_code, error_message, user_email, session_id, context)
		VALUES ($1, $2, $3, NULLIF(LOWER($4), ''), NULLIF($5, '')::uuid, $6)
		RETURNING id
	`

	var sessionID string
	if entry.SessionID != nil {
		sessionID = *entry.SessionID
	}

	var id string
	err := r.pool.QueryRow(ctx, query,
		entry.ErrorType, entry.ErrorCode, entry.ErrorMessage,
		entry.UserEmail, sessionID, entry.Context).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}

	return id, nil
}

// ListRecent returns the newest error reports for the admin triage view
func (r *ErrorLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.ErrorLog, error) {
	query := `
		SELECT id, error_type, error_code, error_message,
			COALESCE(user_email, ''), session_id::text, context,
			ai_resolution, resolution_success, escalated, resolved,
			created_at, resolved_at
		FROM error_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ErrorLog
	for rows.Next() {
		var e models.ErrorLog
		err := rows.Scan(
			&e.ID, &e.ErrorType, &e.ErrorCode, &e.ErrorMessage,
			&e.UserEmail, &e.SessionID, &e.Context,
			&e.AIResolution, &e.ResolutionSuccess, &e.Escalated, &e.Resolved,
			&e.CreatedAt, &e.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SetResolution stores the automated resolution text and whether it resolved
// the report
func (r *ErrorLogRepository) SetResolution(ctx context.Context, id, resolution string, success bool) error {
	query := `
		UPDATE error_logs
		SET ai_resolution = $2, resolution_success = $3, resolved = $3,
			resolved_at = CASE WHEN $3 THEN NOW() ELSE NULL END
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, resolution, success)
	if err != nil {
		return fmt.Errorf("failed to set resolution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// MarkEscalated flags a report as forwarded to the admin inbox
func (r *ErrorLogRepository) MarkEscalated(ctx context.Context, id string) error {
	query := `UPDATE error_logs SET escalated = TRUE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark escalated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
