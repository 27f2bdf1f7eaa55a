package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nakamastream/accounts/internal/database"
	"github.com/nakamastream/accounts/internal/models"
)

// PasswordResetRepository handles password reset token data access
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func scanResetTokenRow(row rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := row.Scan(
		&token.ID, &token.UserID, &token.Token,
		&token.ExpiresAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create stores a new reset token. Tokens are never updated in place;
// repeated forgot-password requests pile up sibling rows until a
// consumption purges them all.
func (r *PasswordResetRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	query := `
		INSERT INTO password_reset_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token, expires_at, created_at
	`

	created, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, userID, token, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return created, nil
}

// GetValidTx loads the token row inside the consuming transaction,
// locking it so a concurrent consumption of a sibling token serializes
// behind this one. A missing, mismatched, or expired token maps to
// models.ErrNotFound; callers collapse all three into one outcome.
func (r *PasswordResetRepository) GetValidTx(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM password_reset_tokens
		WHERE token = $1 AND user_id = $2 AND expires_at > NOW()
		FOR UPDATE
	`

	return scanResetTokenRow(tx.QueryRow(ctx, query, token, userID))
}

// DeleteByUserIDTx purges every outstanding token for the user within
// the consuming transaction, so sibling tokens issued before the reset
// cannot be replayed afterward.
func (r *PasswordResetRepository) DeleteByUserIDTx(ctx context.Context, tx pgx.Tx, userID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete reset tokens for user: %w", err)
	}

	return nil
}

// CountByUserID reports outstanding tokens for a user.
func (r *PasswordResetRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM password_reset_tokens WHERE user_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CleanupExpired deletes tokens past their expiration
func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
