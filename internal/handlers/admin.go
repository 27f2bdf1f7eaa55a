package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
)

// AdminServiceInterface defines the interface for moderation actions
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	DemoteUser(ctx context.Context, actorID, targetID string) error
	BanUser(ctx context.Context, actorID, targetID string, expiration *time.Time) error
	UnbanUser(ctx context.Context, actorID, targetID string) error
}

// AdminHandler handles moderation endpoints. Routes mounting it sit
// behind RequireAdmin.
type AdminHandler struct {
	adminService AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService AdminServiceInterface) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// BanUserRequest represents the request body for banning an account.
// A nil expiration is a permanent ban.
type BanUserRequest struct {
	Expiration *time.Time `json:"expiration"`
}

// ListUsers returns a page of accounts for the moderation view
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.adminService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, ToUserResponse(user))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// DemoteUser strips admin rights from the target account
func (h *AdminHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	sess := auth.GetSession(r)

	if err := h.adminService.DemoteUser(r.Context(), sess.UserID, targetID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "User demoted"})
}

// BanUser bans the target account, permanently or until the given time
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	var req BanUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Expiration != nil && req.Expiration.Before(time.Now()) {
		pkghttp.WriteBadRequest(w, "Ban expiration must be in the future")
		return
	}

	sess := auth.GetSession(r)

	if err := h.adminService.BanUser(r.Context(), sess.UserID, targetID, req.Expiration); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "User banned"})
}

// UnbanUser lifts any ban on the target account
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if targetID == "" {
		pkghttp.WriteBadRequest(w, "Missing user id")
		return
	}

	sess := auth.GetSession(r)

	if err := h.adminService.UnbanUser(r.Context(), sess.UserID, targetID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "User unbanned"})
}
