package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nakamastream/accounts/internal/models"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
)

// UserRepository handles account persistence.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CountByRegistrationIP(ctx context.Context, ip string) (int, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error)
	UpdateBio(ctx context.Context, id string, bio string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx pgx.Tx, id string, passwordHash string) error
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	SetBan(ctx context.Context, id string, banned bool, expiration *time.Time) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// ProfileUpdate carries the fields of an update-info request. Nil
// pointers leave the stored value untouched. NewPassword is applied
// only when CurrentPassword is supplied and verifies.
type ProfileUpdate struct {
	Username        *string
	Email           *string
	Bio             *string
	ProfileImage    *string
	BannerImage     *string
	CurrentPassword string
	NewPassword     string
}

// UserService handles account mutations behind the session boundary.
type UserService struct {
	userRepo    UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(userRepo UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		userRepo:    userRepo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ChangePassword re-verifies the caller's current password against the
// freshly loaded hash, never session state, before writing the new one.
// A failed verification mutates nothing.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return s.mapLookupError(err, userID)
	}

	if err := pkgauth.ComparePassword(currentPassword, user.PasswordHash); err != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "password_change",
			UserID:        userID,
			Success:       false,
			FailureReason: "current password mismatch",
		})
		return models.ErrWrongPassword
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("password_change", userID, userID)
	return nil
}

// UpdateProfile applies an update-info request. When CurrentPassword is
// supplied the same verify-then-apply gate as ChangePassword runs
// before any field is persisted; when it is omitted, profile fields
// update without re-verification and NewPassword is ignored.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapLookupError(err, userID)
	}

	verified := false
	if update.CurrentPassword != "" {
		if err := pkgauth.ComparePassword(update.CurrentPassword, user.PasswordHash); err != nil {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "profile_update",
				UserID:        userID,
				Success:       false,
				FailureReason: "current password mismatch",
			})
			return nil, models.ErrWrongPassword
		}
		verified = true
	}

	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Bio != nil {
		user.Bio = update.Bio
	}
	if update.ProfileImage != nil {
		user.ProfileImage = update.ProfileImage
	}
	if update.BannerImage != nil {
		user.BannerImage = update.BannerImage
	}

	updated, err := s.userRepo.UpdateProfile(ctx, userID, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update profile",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if verified && update.NewPassword != "" {
		if err := pkgauth.ValidatePassword(update.NewPassword); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
		}
		hash, err := pkgauth.HashPassword(update.NewPassword)
		if err != nil {
			s.logger.Error("failed to hash new password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
			s.logger.Error("failed to update password",
				slog.String("user_id", userID),
				slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	s.auditLogger.LogAccountAction("profile_update", userID, userID)
	return updated, nil
}

// UpdateBio updates only the profile bio.
func (s *UserService) UpdateBio(ctx context.Context, userID, bio string) error {
	if err := s.userRepo.UpdateBio(ctx, userID, bio); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to update bio",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// DemoteUser strips admin rights from the target account. Authorization
// is the route's concern; actorID is recorded for the audit trail.
func (s *UserService) DemoteUser(ctx context.Context, actorID, targetID string) error {
	if err := s.userRepo.SetAdmin(ctx, targetID, false); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to demote user",
			slog.String("target_id", targetID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("admin_demote", targetID, actorID)
	return nil
}

// BanUser bans the target account. A nil expiration is a permanent ban.
func (s *UserService) BanUser(ctx context.Context, actorID, targetID string, expiration *time.Time) error {
	if err := s.userRepo.SetBan(ctx, targetID, true, expiration); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to ban user",
			slog.String("target_id", targetID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("admin_ban", targetID, actorID)
	return nil
}

// UnbanUser lifts any ban on the target account.
func (s *UserService) UnbanUser(ctx context.Context, actorID, targetID string) error {
	if err := s.userRepo.SetBan(ctx, targetID, false, nil); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to unban user",
			slog.String("target_id", targetID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("admin_unban", targetID, actorID)
	return nil
}

// ListUsers returns a page of accounts ordered by creation time, newest
// first. Limits outside 1..100 are clamped.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// GetByID loads a single account.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapLookupError(err, userID)
	}
	return user, nil
}

func (s *UserService) mapLookupError(err error, userID string) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error("failed to load user",
		slog.String("user_id", userID),
		slog.Any("error", err))
	return models.ErrInternalServer
}
