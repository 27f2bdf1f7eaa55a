package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nakamastream/accounts/internal/models"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
)

// PasswordResetRepository handles reset token persistence. The Tx
// variants run inside the consuming transaction.
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetValidTx(ctx context.Context, tx pgx.Tx, token, userID string) (*models.PasswordResetToken, error)
	DeleteByUserIDTx(ctx context.Context, tx pgx.Tx, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// TxRunner wraps a function in a database transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// PasswordResetService issues reset tokens by email and consumes them
// transactionally.
type PasswordResetService struct {
	userRepo     UserRepository
	resetRepo    PasswordResetRepository
	tx           TxRunner
	emailService EmailService
	resetBaseURL string
	tokenTTL     time.Duration
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(
	userRepo UserRepository,
	resetRepo PasswordResetRepository,
	tx TxRunner,
	emailService EmailService,
	resetBaseURL string,
	tokenTTL time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		userRepo:     userRepo,
		resetRepo:    resetRepo,
		tx:           tx,
		emailService: emailService,
		resetBaseURL: resetBaseURL,
		tokenTTL:     tokenTTL,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// Request issues a fresh reset token for the account registered under
// email and mails the reset link. An unknown email returns
// models.ErrNotFound. Earlier tokens stay valid until one of them is
// consumed.
func (s *PasswordResetService) Request(ctx context.Context, email, clientIP string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up user for password reset",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	if _, err := s.resetRepo.Create(ctx, user.ID, token, expiresAt); err != nil {
		s.logger.Error("failed to store reset token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, user.Email, s.resetLink(token, user.ID)); err != nil {
		// The token is already stored; the user can retry the request
		// and any issued token stays honorable until consumed.
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("password_reset_requested", user.ID, user.ID)
	s.logger.Info("password reset requested",
		slog.String("user_id", user.ID),
		slog.String("ip_address", clientIP))

	return nil
}

// Consume redeems a reset token: inside one transaction it locks the
// matching unexpired token row, writes the new password hash, and
// purges every outstanding token for the user. A missing, mismatched,
// or expired token surfaces as models.ErrTokenInvalidOrExpired and
// leaves the password untouched.
func (s *PasswordResetService) Consume(ctx context.Context, token, userID, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password during reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	err = s.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := s.resetRepo.GetValidTx(ctx, tx, token, userID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrTokenInvalidOrExpired
			}
			return err
		}

		if err := s.userRepo.UpdatePasswordTx(ctx, tx, userID, hash); err != nil {
			return err
		}

		return s.resetRepo.DeleteByUserIDTx(ctx, tx, userID)
	})
	if err != nil {
		if errors.Is(err, models.ErrTokenInvalidOrExpired) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "password_reset_consume",
				UserID:        userID,
				Success:       false,
				FailureReason: "token invalid or expired",
			})
			return models.ErrTokenInvalidOrExpired
		}
		s.logger.Error("failed to consume reset token",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("password_reset_completed", userID, userID)
	return nil
}

// CleanupExpired removes expired tokens; called by the background sweeper.
func (s *PasswordResetService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.resetRepo.CleanupExpired(ctx)
}

func (s *PasswordResetService) resetLink(token, userID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("id", userID)
	return fmt.Sprintf("%s/reset-password?%s", s.resetBaseURL, q.Encode())
}
