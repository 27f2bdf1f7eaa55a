package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/services"
	"github.com/nakamastream/accounts/internal/session"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
)

// UserServiceInterface defines the interface for account mutations
type UserServiceInterface interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.User, error)
	UpdateBio(ctx context.Context, userID, bio string) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// SessionSaver persists refreshed session state after profile changes
type SessionSaver interface {
	Save(ctx context.Context, sess *session.Session) error
}

// ProfileHandler handles profile reads and updates
type ProfileHandler struct {
	userService UserServiceInterface
	sessions    SessionSaver
	logger      *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(userService UserServiceInterface, sessions SessionSaver, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
	}
}

// UserResponse is the public view of an account. The password hash and
// moderation fields never leave the server.
type UserResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	IsAdmin      bool      `json:"is_admin"`
	Bio          *string   `json:"bio,omitempty"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	BannerImage  *string   `json:"banner_image,omitempty"`
}

// ToUserResponse converts a user model to its public view
func ToUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		CreatedAt:    user.CreatedAt,
		IsAdmin:      user.IsAdmin,
		Bio:          user.Bio,
		ProfileImage: user.ProfileImage,
		BannerImage:  user.BannerImage,
	}
}

// UpdateInfoRequest represents the request body for profile updates.
// new_password is honored only when current_password verifies.
type UpdateInfoRequest struct {
	Username        *string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Bio             *string `json:"bio" validate:"omitempty,max=500"`
	ProfileImage    *string `json:"profile_image" validate:"omitempty,url"`
	BannerImage     *string `json:"banner_image" validate:"omitempty,url"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password" validate:"omitempty,min=8,max=128"`
}

// UpdateBioRequest represents the request body for bio-only updates
type UpdateBioRequest struct {
	Bio string `json:"bio" validate:"max=500"`
}

// Me returns the account behind the current session
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r)

	user, err := h.userService.GetByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ToUserResponse(user))
}

// UpdateInfo handles profile updates, optionally gated by the caller's
// current password
func (h *ProfileHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	var req UpdateInfoRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sess := auth.GetSession(r)

	updated, err := h.userService.UpdateProfile(r.Context(), sess.UserID, services.ProfileUpdate{
		Username:        req.Username,
		Email:           req.Email,
		Bio:             req.Bio,
		ProfileImage:    req.ProfileImage,
		BannerImage:     req.BannerImage,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWrongPassword):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username or email already in use")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	// Keep the session's identity fields in step with the store.
	sess.Username = updated.Username
	sess.Email = updated.Email
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.logger.Warn("failed to refresh session after profile update",
			slog.String("user_id", sess.UserID),
			slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusOK, ToUserResponse(updated))
}

// UpdateBio handles bio-only updates
func (h *ProfileHandler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	var req UpdateBioRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sess := auth.GetSession(r)

	if err := h.userService.UpdateBio(r.Context(), sess.UserID, req.Bio); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Bio updated"})
}
