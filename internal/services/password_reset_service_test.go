package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nakamastream/accounts/internal/models"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResetService(
	userRepo *MockUserRepository,
	resetRepo *MockPasswordResetRepository,
	emailService *MockEmailService,
) *PasswordResetService {
	logger := slog.Default()
	return NewPasswordResetService(
		userRepo,
		resetRepo,
		&MockTxRunner{},
		emailService,
		"https://example.com",
		time.Hour,
		logger,
		pkglogger.NewAuditLogger(logger),
	)
}

func TestPasswordResetService_Request_Success(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: "user123", Email: email}, nil
		},
	}

	var storedToken string
	var storedExpiry time.Time
	mockResetRepo := &MockPasswordResetRepository{
		CreateFunc: func(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
			storedToken = token
			storedExpiry = expiresAt
			return &models.PasswordResetToken{UserID: userID, Token: token, ExpiresAt: expiresAt}, nil
		},
	}

	var sentTo, sentLink string
	mockEmail := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, email, resetLink string) error {
			sentTo = email
			sentLink = resetLink
			return nil
		},
	}

	svc := newResetService(mockUserRepo, mockResetRepo, mockEmail)

	err := svc.Request(context.Background(), "alice@gmail.com", testClientIP)

	require.NoError(t, err)
	assert.Len(t, storedToken, 64, "token is 32 random bytes hex encoded")
	assert.WithinDuration(t, time.Now().Add(time.Hour), storedExpiry, 5*time.Second)
	assert.Equal(t, "alice@gmail.com", sentTo)
	assert.Contains(t, sentLink, "https://example.com/reset-password?")
	assert.Contains(t, sentLink, "token="+storedToken)
	assert.Contains(t, sentLink, "id=user123")
}

func TestPasswordResetService_Request_UnknownEmail(t *testing.T) {
	created := false
	mockResetRepo := &MockPasswordResetRepository{
		CreateFunc: func(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
			created = true
			return nil, nil
		},
	}

	svc := newResetService(&MockUserRepository{}, mockResetRepo, &MockEmailService{})

	err := svc.Request(context.Background(), "unknown@gmail.com", testClientIP)

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, created)
}

func TestPasswordResetService_Request_EmailDispatchFailure(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: "user123", Email: email}, nil
		},
	}
	mockEmail := &MockEmailService{
		SendPasswordResetEmailFunc: func(ctx context.Context, email, resetLink string) error {
			return models.ErrInternalServer
		},
	}

	svc := newResetService(mockUserRepo, &MockPasswordResetRepository{}, mockEmail)

	err := svc.Request(context.Background(), "alice@gmail.com", testClientIP)

	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestPasswordResetService_Consume_Success(t *testing.T) {
	var newHash string
	mockUserRepo := &MockUserRepository{
		UpdatePasswordTxFunc: func(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}

	purged := false
	mockResetRepo := &MockPasswordResetRepository{
		GetValidTxFunc: func(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error) {
			return &models.PasswordResetToken{UserID: userID, Token: token}, nil
		},
		DeleteByUserIDTxFunc: func(ctx context.Context, tx pgx.Tx, userID string) error {
			purged = true
			return nil
		},
	}

	svc := newResetService(mockUserRepo, mockResetRepo, &MockEmailService{})

	err := svc.Consume(context.Background(), "sometoken", "user123", "BrandNewSecret9")

	require.NoError(t, err)
	assert.NoError(t, pkgauth.ComparePassword("BrandNewSecret9", newHash))
	assert.True(t, purged, "consumption must purge every outstanding token for the user")
}

func TestPasswordResetService_Consume_InvalidToken(t *testing.T) {
	updated := false
	mockUserRepo := &MockUserRepository{
		UpdatePasswordTxFunc: func(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
			updated = true
			return nil
		},
	}

	svc := newResetService(mockUserRepo, &MockPasswordResetRepository{}, &MockEmailService{})

	err := svc.Consume(context.Background(), "bogus", "user123", "BrandNewSecret9")

	assert.ErrorIs(t, err, models.ErrTokenInvalidOrExpired)
	assert.False(t, updated, "an invalid token must leave the password untouched")
}

func TestPasswordResetService_Consume_ShortPassword(t *testing.T) {
	svc := newResetService(&MockUserRepository{}, &MockPasswordResetRepository{}, &MockEmailService{})

	err := svc.Consume(context.Background(), "sometoken", "user123", "short")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestPasswordResetService_Consume_PurgeFailureRollsBack(t *testing.T) {
	mockResetRepo := &MockPasswordResetRepository{
		GetValidTxFunc: func(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error) {
			return &models.PasswordResetToken{UserID: userID, Token: token}, nil
		},
		DeleteByUserIDTxFunc: func(ctx context.Context, tx pgx.Tx, userID string) error {
			return models.ErrInternalServer
		},
	}

	svc := newResetService(&MockUserRepository{}, mockResetRepo, &MockEmailService{})

	err := svc.Consume(context.Background(), "sometoken", "user123", "BrandNewSecret9")

	assert.ErrorIs(t, err, models.ErrInternalServer)
}
