package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nakamastream/accounts/internal/models"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAllowedDomains = []string{"gmail.com", "yahoo.com", "hotmail.com", "outlook.com"}

func newRegistrationService(userRepo *MockUserRepository, verifier *MockProofVerifier) *RegistrationService {
	logger := slog.Default()
	return NewRegistrationService(userRepo, verifier, testAllowedDomains, 3, logger, pkglogger.NewAuditLogger(logger))
}

func TestRegistrationService_Register_Success(t *testing.T) {
	var created *models.User
	mockUserRepo := &MockUserRepository{
		CountByRegistrationIPFunc: func(ctx context.Context, ip string) (int, error) {
			return 0, nil
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user123"
			created = user
			return user, nil
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username:   "newuser",
		Email:      "newuser@gmail.com",
		Password:   "SecurePassword123",
		ProofToken: "proof-token",
	}, "203.0.113.7")

	require.True(t, decision.Allowed())
	require.NotNil(t, decision.User)
	assert.Equal(t, "user123", decision.User.ID)
	assert.Equal(t, "203.0.113.7", created.RegistrationIP)
	assert.NotEqual(t, "SecurePassword123", created.PasswordHash)
	assert.NoError(t, pkgauth.ComparePassword("SecurePassword123", created.PasswordHash))
}

func TestRegistrationService_Register_BadCaptcha(t *testing.T) {
	storeTouched := false
	mockUserRepo := &MockUserRepository{
		CountByRegistrationIPFunc: func(ctx context.Context, ip string) (int, error) {
			storeTouched = true
			return 0, nil
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			storeTouched = true
			return user, nil
		},
	}
	verifier := &MockProofVerifier{
		VerifyProofFunc: func(ctx context.Context, proofToken string) bool {
			return false
		},
	}

	svc := newRegistrationService(mockUserRepo, verifier)

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "newuser",
		Email:    "newuser@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionBadCaptcha, decision.Kind)
	assert.False(t, storeTouched, "a failed captcha must not reach the store")
}

func TestRegistrationService_Register_DomainNotAllowed(t *testing.T) {
	svc := newRegistrationService(&MockUserRepository{}, &MockProofVerifier{})

	for _, email := range []string{"user@example.com", "user@gmail.com.evil.net", "no-at-sign", "trailing@"} {
		decision := svc.Register(context.Background(), RegistrationCandidate{
			Username: "newuser",
			Email:    email,
			Password: "SecurePassword123",
		}, "203.0.113.7")

		assert.Equal(t, DecisionDomainNotAllowed, decision.Kind, "email %q should be rejected", email)
	}
}

func TestRegistrationService_Register_DomainCaseInsensitive(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user123"
			return user, nil
		},
	}
	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "newuser",
		Email:    "newuser@GMAIL.COM",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.True(t, decision.Allowed())
}

func TestRegistrationService_Register_IPCapExceeded(t *testing.T) {
	createCalled := false
	mockUserRepo := &MockUserRepository{
		CountByRegistrationIPFunc: func(ctx context.Context, ip string) (int, error) {
			return 3, nil
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			createCalled = true
			return user, nil
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "fourth",
		Email:    "fourth@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionIPCapExceeded, decision.Kind)
	assert.False(t, createCalled, "the fourth registration from one IP must not create an account")
}

func TestRegistrationService_Register_UsernameTaken(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return &models.User{ID: "existing", Username: username}, nil
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "taken",
		Email:    "fresh@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionUsernameTaken, decision.Kind)
}

func TestRegistrationService_Register_EmailTaken(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: "existing", Email: email}, nil
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "fresh",
		Email:    "taken@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionEmailTaken, decision.Kind)
}

func TestRegistrationService_Register_ConcurrentConflict(t *testing.T) {
	// The uniqueness pre-checks pass, then the insert loses the race and
	// the unique constraint fires.
	preChecked := false
	mockUserRepo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			if preChecked {
				return &models.User{ID: "winner", Username: username}, nil
			}
			preChecked = true
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "contested",
		Email:    "contested@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionUsernameTaken, decision.Kind)
}

func TestRegistrationService_Register_CountError(t *testing.T) {
	mockUserRepo := &MockUserRepository{
		CountByRegistrationIPFunc: func(ctx context.Context, ip string) (int, error) {
			return 0, models.ErrInternalServer
		},
	}

	svc := newRegistrationService(mockUserRepo, &MockProofVerifier{})

	decision := svc.Register(context.Background(), RegistrationCandidate{
		Username: "newuser",
		Email:    "newuser@gmail.com",
		Password: "SecurePassword123",
	}, "203.0.113.7")

	assert.Equal(t, DecisionInternalError, decision.Kind)
}
