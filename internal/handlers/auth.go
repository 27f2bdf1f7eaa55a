package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/services"
	"github.com/nakamastream/accounts/internal/session"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
)

// RegistrationServiceInterface defines the interface for the registration gate
type RegistrationServiceInterface interface {
	Register(ctx context.Context, candidate services.RegistrationCandidate, clientIP string) services.Decision
}

// AuthServiceInterface defines the interface for the login controller
type AuthServiceInterface interface {
	Login(ctx context.Context, sess *session.Session, username, password, captchaInput, clientIP string) services.LoginResult
	Logout(ctx context.Context, sess *session.Session) error
}

// CaptchaIssuer binds a fresh word challenge to the session
type CaptchaIssuer interface {
	Issue(ctx context.Context, sess *session.Session) (string, error)
}

// AuthHandler handles registration, login, logout and captcha issuance
type AuthHandler struct {
	registration RegistrationServiceInterface
	authService  AuthServiceInterface
	captcha      CaptchaIssuer
	cookieConfig auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	registration RegistrationServiceInterface,
	authService AuthServiceInterface,
	captcha CaptchaIssuer,
	cookieConfig auth.CookieConfig,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		authService:  authService,
		captcha:      captcha,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	CaptchaToken string `json:"captcha_token" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Captcha  string `json:"captcha" validate:"required"`
}

// CaptchaResponse carries the issued word challenge
type CaptchaResponse struct {
	Captcha string `json:"captcha"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	decision := h.registration.Register(r.Context(), services.RegistrationCandidate{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		ProofToken: req.CaptchaToken,
	}, clientIP)

	switch decision.Kind {
	case services.DecisionAllow:
		pkghttp.WriteJSON(w, http.StatusCreated, ToUserResponse(decision.User))
	case services.DecisionBadCaptcha:
		pkghttp.WriteBadRequest(w, "Captcha verification failed")
	case services.DecisionDomainNotAllowed:
		pkghttp.WriteBadRequest(w, "Email domain is not allowed")
	case services.DecisionIPCapExceeded:
		pkghttp.WriteForbidden(w, "Account limit reached for this network")
	case services.DecisionUsernameTaken:
		pkghttp.WriteConflict(w, "Username is already taken")
	case services.DecisionEmailTaken:
		pkghttp.WriteConflict(w, "Email is already registered")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sess := auth.GetSession(r)
	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	result := h.authService.Login(r.Context(), sess, req.Username, req.Password, req.Captcha, clientIP)

	switch result.Kind {
	case services.LoginSuccess:
		pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
			Message: "Login successful",
			User:    ToUserResponse(result.User),
		})
	case services.LoginBadCaptcha:
		pkghttp.WriteUnauthorized(w, "Captcha incorrect")
	case services.LoginBadCredentials:
		// Unknown username and wrong password share one message.
		pkghttp.WriteUnauthorized(w, "Invalid username or password")
	case services.LoginBannedPermanent:
		pkghttp.WriteForbidden(w, "This account is permanently banned")
	case services.LoginBannedTemporary:
		pkghttp.WriteErrorWithDetails(w, http.StatusForbidden, "forbidden",
			"This account is temporarily banned",
			fmt.Sprintf("ban expires at %s", result.BanExpiration.UTC().Format(time.RFC3339)))
	case services.LoginRateLimited:
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
		pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Logout destroys the server-side session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r)

	if err := h.authService.Logout(r.Context(), sess); err != nil {
		pkghttp.WriteInternalError(w, "Could not log out")
		return
	}

	auth.ClearSessionCookie(w, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// NewCaptcha issues a fresh word challenge bound to the session,
// replacing any phrase issued earlier.
func (h *AuthHandler) NewCaptcha(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r)
	if sess == nil {
		pkghttp.WriteInternalError(w, "No session")
		return
	}

	phrase, err := h.captcha.Issue(r.Context(), sess)
	if err != nil {
		pkghttp.WriteInternalError(w, "Could not issue captcha")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, CaptchaResponse{Captcha: phrase})
}
