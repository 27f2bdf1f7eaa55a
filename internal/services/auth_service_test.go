package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/session"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientIP = "198.51.100.20"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newAuthService(
	userRepo *MockUserRepository,
	attemptRepo *MockLoginAttemptRepository,
	sessions *MockSessionEstablisher,
	phrases *MockPhraseVerifier,
) *AuthService {
	logger := slog.Default()
	svc := NewAuthService(
		userRepo,
		attemptRepo,
		sessions,
		phrases,
		auth.NewTimingDelay(auth.TimingConfig{}),
		5,
		15*time.Minute,
		logger,
		pkglogger.NewAuditLogger(logger),
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func testLoginUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.User{
		ID:           "user123",
		Username:     "alice",
		Email:        "alice@gmail.com",
		PasswordHash: hash,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	user := testLoginUser(t, "CorrectHorse42")
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	var recorded []*models.LoginAttempt
	mockAttemptRepo := &MockLoginAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			recorded = append(recorded, attempt)
			return nil
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, &MockSessionEstablisher{}, &MockPhraseVerifier{})
	sess := &session.Session{ID: "sess1"}

	result := svc.Login(context.Background(), sess, "alice", "CorrectHorse42", "phrase", testClientIP)

	require.Equal(t, LoginSuccess, result.Kind)
	assert.Equal(t, user, result.User)
	assert.True(t, sess.LoggedIn)
	assert.Equal(t, "user123", sess.UserID)
	require.Len(t, recorded, 1)
	assert.True(t, recorded[0].Success)
}

func TestAuthService_Login_BadCaptcha(t *testing.T) {
	lookupCalled := false
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			lookupCalled = true
			return nil, models.ErrNotFound
		},
	}

	var recorded []*models.LoginAttempt
	mockAttemptRepo := &MockLoginAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			recorded = append(recorded, attempt)
			return nil
		},
	}
	phrases := &MockPhraseVerifier{
		VerifyFunc: func(sess *session.Session, submitted string) bool {
			return false
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, &MockSessionEstablisher{}, phrases)

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "whatever", "wrong", testClientIP)

	assert.Equal(t, LoginBadCaptcha, result.Kind)
	assert.False(t, lookupCalled, "a captcha mismatch must not reach the credential store")
	require.Len(t, recorded, 1)
	assert.False(t, recorded[0].Success)
	assert.Equal(t, "captcha_mismatch", *recorded[0].FailureReason)
}

func TestAuthService_Login_RateLimited(t *testing.T) {
	lookupCalled := false
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			lookupCalled = true
			return nil, models.ErrNotFound
		},
	}
	mockAttemptRepo := &MockLoginAttemptRepository{
		CountFailedByIPFunc: func(ctx context.Context, ipAddress, route string, since time.Time) (int, error) {
			return 5, nil
		},
		OldestFailureTimeFunc: func(ctx context.Context, ipAddress, route string, since time.Time) (time.Time, error) {
			return testNow.Add(-10 * time.Minute), nil
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "CorrectHorse42", "phrase", testClientIP)

	assert.Equal(t, LoginRateLimited, result.Kind)
	assert.Equal(t, 5*time.Minute, result.RetryAfter)
	assert.False(t, lookupCalled, "a throttled IP must not cause a credential store query")
}

func TestAuthService_Login_UnknownUsername(t *testing.T) {
	var recorded []*models.LoginAttempt
	mockAttemptRepo := &MockLoginAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			recorded = append(recorded, attempt)
			return nil
		},
	}

	svc := newAuthService(&MockUserRepository{}, mockAttemptRepo, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "nobody", "whatever", "phrase", testClientIP)

	assert.Equal(t, LoginBadCredentials, result.Kind)
	require.Len(t, recorded, 1)
	assert.Equal(t, "bad_credentials", *recorded[0].FailureReason)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	user := testLoginUser(t, "CorrectHorse42")
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	var recorded []*models.LoginAttempt
	mockAttemptRepo := &MockLoginAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			recorded = append(recorded, attempt)
			return nil
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "WrongPassword", "phrase", testClientIP)

	// Unknown username and wrong password collapse into one outcome.
	assert.Equal(t, LoginBadCredentials, result.Kind)
	require.Len(t, recorded, 1)
	assert.Equal(t, "bad_credentials", *recorded[0].FailureReason)
}

func TestAuthService_Login_BannedPermanent(t *testing.T) {
	user := testLoginUser(t, "CorrectHorse42")
	user.Banned = true
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	var recorded []*models.LoginAttempt
	mockAttemptRepo := &MockLoginAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			recorded = append(recorded, attempt)
			return nil
		},
	}
	establishCalled := false
	sessions := &MockSessionEstablisher{
		EstablishFunc: func(ctx context.Context, sess *session.Session, user *models.User) error {
			establishCalled = true
			return nil
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, sessions, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "CorrectHorse42", "phrase", testClientIP)

	assert.Equal(t, LoginBannedPermanent, result.Kind)
	assert.False(t, establishCalled, "a banned account must never get a session")
	require.Len(t, recorded, 1)
	assert.False(t, recorded[0].Success, "a correct password against a banned account still counts as a failure")
	assert.Equal(t, "banned", *recorded[0].FailureReason)
}

func TestAuthService_Login_BannedTemporary(t *testing.T) {
	expiry := testNow.Add(48 * time.Hour)
	user := testLoginUser(t, "CorrectHorse42")
	user.Banned = true
	user.BanExpiration = &expiry
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newAuthService(mockUserRepo, &MockLoginAttemptRepository{}, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "CorrectHorse42", "phrase", testClientIP)

	require.Equal(t, LoginBannedTemporary, result.Kind)
	require.NotNil(t, result.BanExpiration)
	assert.Equal(t, expiry, *result.BanExpiration)
}

func TestAuthService_Login_ExpiredBanAdmits(t *testing.T) {
	expiry := testNow.Add(-time.Hour)
	user := testLoginUser(t, "CorrectHorse42")
	user.Banned = true
	user.BanExpiration = &expiry
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}

	svc := newAuthService(mockUserRepo, &MockLoginAttemptRepository{}, &MockSessionEstablisher{}, &MockPhraseVerifier{})
	sess := &session.Session{ID: "sess1"}

	result := svc.Login(context.Background(), sess, "alice", "CorrectHorse42", "phrase", testClientIP)

	assert.Equal(t, LoginSuccess, result.Kind)
	assert.True(t, sess.LoggedIn)
}

func TestAuthService_Login_AttemptStoreOutageFailsOpen(t *testing.T) {
	user := testLoginUser(t, "CorrectHorse42")
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	mockAttemptRepo := &MockLoginAttemptRepository{
		CountFailedByIPFunc: func(ctx context.Context, ipAddress, route string, since time.Time) (int, error) {
			return 0, models.ErrInternalServer
		},
	}

	svc := newAuthService(mockUserRepo, mockAttemptRepo, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "CorrectHorse42", "phrase", testClientIP)

	assert.Equal(t, LoginSuccess, result.Kind)
}

func TestAuthService_Login_SessionEstablishFailure(t *testing.T) {
	user := testLoginUser(t, "CorrectHorse42")
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	sessions := &MockSessionEstablisher{
		EstablishFunc: func(ctx context.Context, sess *session.Session, user *models.User) error {
			return models.ErrInternalServer
		},
	}

	svc := newAuthService(mockUserRepo, &MockLoginAttemptRepository{}, sessions, &MockPhraseVerifier{})

	result := svc.Login(context.Background(), &session.Session{ID: "sess1"}, "alice", "CorrectHorse42", "phrase", testClientIP)

	assert.Equal(t, LoginInternalError, result.Kind)
}

func TestAuthService_Logout(t *testing.T) {
	var destroyed string
	sessions := &MockSessionEstablisher{
		DestroyFunc: func(ctx context.Context, id string) error {
			destroyed = id
			return nil
		},
	}

	svc := newAuthService(&MockUserRepository{}, &MockLoginAttemptRepository{}, sessions, &MockPhraseVerifier{})

	err := svc.Logout(context.Background(), &session.Session{ID: "sess1", LoggedIn: true})

	require.NoError(t, err)
	assert.Equal(t, "sess1", destroyed)
}

func TestAuthService_Logout_NilSession(t *testing.T) {
	svc := newAuthService(&MockUserRepository{}, &MockLoginAttemptRepository{}, &MockSessionEstablisher{}, &MockPhraseVerifier{})

	assert.NoError(t, svc.Logout(context.Background(), nil))
}
