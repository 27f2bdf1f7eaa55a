package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nakamastream/accounts/internal/database"
	"github.com/nakamastream/accounts/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt records a login attempt in the database. The insert is
// a single atomic statement, so concurrent failures from the same IP
// cannot undercount each other.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (ip_address, route, attempt_time, success, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.IPAddress,
		attempt.Route,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
	)

	return err
}

// CountFailedByIP returns the number of failed attempts from an IP on a
// route within a time window. Successful attempts never count.
func (r *LoginAttemptRepository) CountFailedByIP(ctx context.Context, ipAddress, route string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND route = $2 AND success = false AND attempt_time >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, route, since).Scan(&count)
	return count, err
}

// OldestFailureTime returns the attempt time of the oldest failed
// attempt from an IP on a route within the window. Callers use it to
// tell a throttled client when the oldest counted failure ages out.
func (r *LoginAttemptRepository) OldestFailureTime(ctx context.Context, ipAddress, route string, since time.Time) (time.Time, error) {
	query := `
		SELECT MIN(attempt_time) FROM login_attempts
		WHERE ip_address = $1 AND route = $2 AND success = false AND attempt_time >= $3
	`

	var oldest *time.Time
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, route, since).Scan(&oldest)
	if err != nil {
		return time.Time{}, err
	}
	if oldest == nil {
		return time.Time{}, database.MapPostgresError(pgx.ErrNoRows)
	}
	return *oldest, nil
}

// DeleteExpired removes login attempts older than the retention window
func (r *LoginAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
