package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/session"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc         func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	CountByRegistrationIPFunc func(ctx context.Context, ip string) (int, error)
	CreateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfileFunc         func(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdateBioFunc             func(ctx context.Context, id string, bio string) error
	UpdatePasswordFunc        func(ctx context.Context, id string, passwordHash string) error
	UpdatePasswordTxFunc      func(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error
	SetAdminFunc              func(ctx context.Context, id string, isAdmin bool) error
	SetBanFunc                func(ctx context.Context, id string, banned bool, expiration *time.Time) error
	ListFunc                  func(ctx context.Context, limit, offset int) ([]*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) CountByRegistrationIP(ctx context.Context, ip string) (int, error) {
	if m.CountByRegistrationIPFunc != nil {
		return m.CountByRegistrationIPFunc(ctx, ip)
	}
	return 0, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateBio(ctx context.Context, id string, bio string) error {
	if m.UpdateBioFunc != nil {
		return m.UpdateBioFunc(ctx, id, bio)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) UpdatePasswordTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error {
	if m.UpdatePasswordTxFunc != nil {
		return m.UpdatePasswordTxFunc(ctx, tx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	if m.SetAdminFunc != nil {
		return m.SetAdminFunc(ctx, id, isAdmin)
	}
	return nil
}

func (m *MockUserRepository) SetBan(ctx context.Context, id string, banned bool, expiration *time.Time) error {
	if m.SetBanFunc != nil {
		return m.SetBanFunc(ctx, id, banned, expiration)
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordAttemptFunc     func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedByIPFunc   func(ctx context.Context, ipAddress, route string, since time.Time) (int, error)
	OldestFailureTimeFunc func(ctx context.Context, ipAddress, route string, since time.Time) (time.Time, error)
}

func (m *MockLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) CountFailedByIP(ctx context.Context, ipAddress, route string, since time.Time) (int, error) {
	if m.CountFailedByIPFunc != nil {
		return m.CountFailedByIPFunc(ctx, ipAddress, route, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptRepository) OldestFailureTime(ctx context.Context, ipAddress, route string, since time.Time) (time.Time, error) {
	if m.OldestFailureTimeFunc != nil {
		return m.OldestFailureTimeFunc(ctx, ipAddress, route, since)
	}
	return time.Time{}, models.ErrNotFound
}

// MockPasswordResetRepository implements PasswordResetRepository for testing
type MockPasswordResetRepository struct {
	CreateFunc           func(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetValidTxFunc       func(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error)
	DeleteByUserIDTxFunc func(ctx context.Context, tx pgx.Tx, userID string) error
	CleanupExpiredFunc   func(ctx context.Context) (int64, error)
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, token, expiresAt)
	}
	return &models.PasswordResetToken{UserID: userID, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *MockPasswordResetRepository) GetValidTx(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error) {
	if m.GetValidTxFunc != nil {
		return m.GetValidTxFunc(ctx, tx, token, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockPasswordResetRepository) DeleteByUserIDTx(ctx context.Context, tx pgx.Tx, userID string) error {
	if m.DeleteByUserIDTxFunc != nil {
		return m.DeleteByUserIDTxFunc(ctx, tx, userID)
	}
	return nil
}

func (m *MockPasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	if m.CleanupExpiredFunc != nil {
		return m.CleanupExpiredFunc(ctx)
	}
	return 0, nil
}

// MockTxRunner implements TxRunner for testing. The callback receives a
// nil pgx.Tx; repository mocks ignore it.
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, resetLink string) error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, resetLink)
	}
	return nil
}

// MockProofVerifier implements ProofVerifier for testing
type MockProofVerifier struct {
	VerifyProofFunc func(ctx context.Context, proofToken string) bool
}

func (m *MockProofVerifier) VerifyProof(ctx context.Context, proofToken string) bool {
	if m.VerifyProofFunc != nil {
		return m.VerifyProofFunc(ctx, proofToken)
	}
	return true
}

// MockSessionEstablisher implements SessionEstablisher for testing
type MockSessionEstablisher struct {
	EstablishFunc func(ctx context.Context, sess *session.Session, user *models.User) error
	DestroyFunc   func(ctx context.Context, id string) error
}

func (m *MockSessionEstablisher) Establish(ctx context.Context, sess *session.Session, user *models.User) error {
	if m.EstablishFunc != nil {
		return m.EstablishFunc(ctx, sess, user)
	}
	sess.LoggedIn = true
	sess.UserID = user.ID
	sess.Username = user.Username
	sess.Email = user.Email
	sess.IsAdmin = user.IsAdmin
	return nil
}

func (m *MockSessionEstablisher) Destroy(ctx context.Context, id string) error {
	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, id)
	}
	return nil
}

// MockPhraseVerifier implements PhraseVerifier for testing
type MockPhraseVerifier struct {
	VerifyFunc func(sess *session.Session, submitted string) bool
}

func (m *MockPhraseVerifier) Verify(sess *session.Session, submitted string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(sess, submitted)
	}
	return true
}
