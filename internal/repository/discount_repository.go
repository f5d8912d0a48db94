package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talendro/talendro-api/internal/models"
	apperrors "github.com/talendro/talendro-api/pkg/errors"
)

// DiscountRepository handles discount code data access
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository creates a new discount repository
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{
		pool: pool,
	}
}

// GetByCode retrieves a discount code. Codes are stored uppercased, so the
// lookup normalizes the same way.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	query := `
		SELECT id, code, percent_off, applicable_products,
			valid_from, valid_until, max_uses, times_used, active,
			COALESCE(description, ''), created_at
		FROM discount_codes
		WHERE code = $1
	`

	var d models.DiscountCode
	var products []string
	err := r.pool.QueryRow(ctx, query, models.NormalizeCode(code)).Scan(
		&d.ID, &d.Code, &d.PercentOff, &products,
		&d.ValidFrom, &d.ValidUntil, &d.MaxUses, &d.TimesUsed, &d.Active,
		&d.Description, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}

	d.ApplicableProducts = make([]models.SessionType, 0, len(products))
	for _, p := range products {
		d.ApplicableProducts = append(d.ApplicableProducts, models.SessionType(p))
	}

	return &d, nil
}

// List returns every discount code, newest first
func (r *DiscountRepository) List(ctx context.Context) ([]*models.DiscountCode, error) {
	query := `
		SELECT id, code, percent_off, applicable_products,
			valid_from, valid_until, max_uses, times_used, active,
			COALESCE(description, ''), created_at
		FROM discount_codes
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	defer rows.Close()

	var codes []*models.DiscountCode
	for rows.Next() {
		var d models.DiscountCode
		var products []string
		err := rows.Scan(
			&d.ID, &d.Code, &d.PercentOff, &products,
			&d.ValidFrom, &d.ValidUntil, &d.MaxUses, &d.TimesUsed, &d.Active,
			&d.Description, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discount code: %w", err)
		}
		d.ApplicableProducts = make([]models.SessionType, 0, len(products))
		for _, p := range products {
			d.ApplicableProducts = append(d.ApplicableProducts, models.SessionType(p))
		}
		codes = append(codes, &d)
	}

	return codes, rows.Err()
}

// Create inserts a new active discount code. A duplicate code is returned as
// ErrConflict from the unique index.
func (r *DiscountRepository) Create(ctx context.Context, d *models.DiscountCode) (string, error) {
	query := `
		INSERT INTO discount_codes
			(code, percent_off, applicable_products, valid_from, valid_until,
			max_uses, active, description)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NULLIF($7, ''))
		RETURNING id, created_at
	`

	products := make([]string, 0, len(d.ApplicableProducts))
	for _, p := range d.ApplicableProducts {
		products = append(products, string(p))
	}

	err := r.pool.QueryRow(ctx, query,
		d.Code, d.PercentOff, products, d.ValidFrom, d.ValidUntil,
		d.MaxUses, d.Description).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", apperrors.ErrConflict
		}
		return "", fmt.Errorf("failed to create discount code: %w", err)
	}

	return d.ID, nil
}

// SetActive flips a code's active flag and returns the code string so callers
// can invalidate the cache entry
func (r *DiscountRepository) SetActive(ctx context.Context, id string, active bool) (string, error) {
	query := `UPDATE discount_codes SET active = $2 WHERE id = $1 RETURNING code`

	var code string
	err := r.pool.QueryRow(ctx, query, id, active).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to update discount code: %w", err)
	}

	return code, nil
}

// HasRedeemed reports whether an email already redeemed a code
func (r *DiscountRepository) HasRedeemed(ctx context.Context, discountCodeID, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM discount_redemptions
			WHERE discount_code_id = $1 AND LOWER(email) = LOWER($2)
		)
	`

	var redeemed bool
	err := r.pool.QueryRow(ctx, query, discountCodeID, email).Scan(&redeemed)
	if err != nil {
		return false, fmt.Errorf("failed to check redemption: %w", err)
	}

	return redeemed, nil
}

// RecordRedemption writes the redemption row and bumps the usage counter in
// one transaction. The unique index on (discount_code_id, lower(email)) makes
// a second redemption by the same email a conflict, returned as ErrConflict.
func (r *DiscountRepository) RecordRedemption(ctx context.Context, discountCodeID, email, sessionID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin redemption: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO discount_redemptions (discount_code_id, email, session_id)
		VALUES ($1, LOWER($2), $3)
	`
	if _, err := tx.Exec(ctx, insert, discountCodeID, email, sessionID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to record redemption: %w", err)
	}

	bump := `UPDATE discount_codes SET times_used = times_used + 1 WHERE id = $1`
	if _, err := tx.Exec(ctx, bump, discountCodeID); err != nil {
		return fmt.Errorf("failed to bump usage counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	return nil
}
