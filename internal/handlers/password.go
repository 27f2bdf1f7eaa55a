package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
)

// PasswordResetServiceInterface defines the interface for the reset
// token lifecycle
type PasswordResetServiceInterface interface {
	Request(ctx context.Context, email, clientIP string) error
	Consume(ctx context.Context, token, userID, newPassword string) error
}

// PasswordHandler handles forgot-password, reset and change-password
type PasswordHandler struct {
	resetService PasswordResetServiceInterface
	userService  UserServiceInterface
	ipConfig     *pkghttp.IPConfig
}

// NewPasswordHandler creates a new PasswordHandler
func NewPasswordHandler(resetService PasswordResetServiceInterface, userService UserServiceInterface, ipConfig *pkghttp.IPConfig) *PasswordHandler {
	return &PasswordHandler{
		resetService: resetService,
		userService:  userService,
		ipConfig:     ipConfig,
	}
}

// ForgotPasswordRequest represents the request body for forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for redeeming a
// reset token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	UserID   string `json:"id" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// ChangePasswordRequest represents the request body for the logged-in
// password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// Forgot issues a reset token and mails the reset link
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.resetService.Request(r.Context(), req.Email, clientIP); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Email is not registered")
			return
		}
		pkghttp.WriteInternalError(w, "Could not send reset email")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Reset email sent"})
}

// ResetForm validates the reset link parameters. Both token and id must
// be present before anything touches the token store.
func (h *PasswordHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID := r.URL.Query().Get("id")

	if token == "" || userID == "" {
		pkghttp.WriteBadRequest(w, "Missing parameters")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// Reset redeems a reset token and sets the new password
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.resetService.Consume(r.Context(), req.Token, req.UserID, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrTokenInvalidOrExpired):
			pkghttp.WriteBadRequest(w, "Reset token is invalid or expired")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// Change handles the logged-in password change, re-verifying the
// current password before anything is written
func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sess := auth.GetSession(r)

	if err := h.userService.ChangePassword(r.Context(), sess.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrWrongPassword):
			pkghttp.WriteUnauthorized(w, "Current password is incorrect")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w, "Account no longer exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}
