package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nakamastream/accounts/internal/database"
	"github.com/nakamastream/accounts/internal/models"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at, is_admin, banned, ban_expiration, registration_ip, bio, profile_image, banner_image`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var banExpiration *time.Time
	var bio, profileImage, bannerImage *string

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt, &user.IsAdmin,
		&user.Banned, &banExpiration, &user.RegistrationIP,
		&bio, &profileImage, &bannerImage,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.BanExpiration = banExpiration
	user.Bio = bio
	user.ProfileImage = profileImage
	user.BannerImage = bannerImage

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

// CountByRegistrationIP returns how many accounts were registered from
// the given source IP. Feeds the per-IP registration cap.
func (r *UserRepository) CountByRegistrationIP(ctx context.Context, ip string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE registration_ip = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, ip).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// Create inserts a new account. The unique constraints on username and
// email are the authoritative arbiter for concurrent registrations; a
// violation surfaces as models.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at, is_admin, banned, ban_expiration, registration_ip, bio, profile_image, banner_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns + `
	`

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.CreatedAt, user.UpdatedAt, user.IsAdmin,
		user.Banned, user.BanExpiration, user.RegistrationIP,
		user.Bio, user.ProfileImage, user.BannerImage,
	))
}

// UpdateProfile writes the mutable profile fields. Password changes go
// through UpdatePassword so the re-authentication guard stays in one place.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET username = $1, email = $2, bio = $3, profile_image = $4, banner_image = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + userColumns + `
	`

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.Bio, user.ProfileImage, user.BannerImage, time.Now(), id,
	))
}

func (r *UserRepository) UpdateBio(ctx context.Context, id string, bio string) error {
	query := `UPDATE users SET bio = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, bio, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePasswordTx is the transactional variant used by reset-token
// consumption, where the password update and the token purge must
// commit or roll back together.
func (r *UserRepository) UpdatePasswordTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.Exec(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	query := `UPDATE users SET is_admin = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, isAdmin, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetBan applies or lifts a ban. A nil expiration with banned=true is a
// permanent ban.
func (r *UserRepository) SetBan(ctx context.Context, id string, banned bool, expiration *time.Time) error {
	query := `UPDATE users SET banned = $1, ban_expiration = $2, updated_at = $3 WHERE id = $4`

	result, err := r.pool.Exec(ctx, query, banned, expiration, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return r.scanUsers(rows)
}
