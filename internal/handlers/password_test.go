package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/session"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
	"github.com/stretchr/testify/assert"
)

func newPasswordHandler(resetService *MockPasswordResetService, userService *MockUserService) *PasswordHandler {
	return NewPasswordHandler(resetService, userService, &pkghttp.IPConfig{})
}

func TestPasswordHandler_Forgot_Success(t *testing.T) {
	var requestedEmail string
	resetService := &MockPasswordResetService{
		RequestFunc: func(ctx context.Context, email, clientIP string) error {
			requestedEmail = email
			return nil
		},
	}
	handler := newPasswordHandler(resetService, &MockUserService{})

	req := newJSONRequest(t, http.MethodPost, "/api/auth/forgot-password", ForgotPasswordRequest{
		Email: "Alice@Gmail.com",
	}, nil)
	rec := httptest.NewRecorder()

	handler.Forgot(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@gmail.com", requestedEmail, "email is normalized before lookup")
}

func TestPasswordHandler_Forgot_UnknownEmail(t *testing.T) {
	resetService := &MockPasswordResetService{
		RequestFunc: func(ctx context.Context, email, clientIP string) error {
			return models.ErrNotFound
		},
	}
	handler := newPasswordHandler(resetService, &MockUserService{})

	req := newJSONRequest(t, http.MethodPost, "/api/auth/forgot-password", ForgotPasswordRequest{
		Email: "unknown@gmail.com",
	}, nil)
	rec := httptest.NewRecorder()

	handler.Forgot(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordHandler_ResetForm_MissingParameters(t *testing.T) {
	handler := newPasswordHandler(&MockPasswordResetService{}, &MockUserService{})

	for _, target := range []string{
		"/reset-password",
		"/reset-password?token=abc",
		"/reset-password?id=user123",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()

		handler.ResetForm(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %q", target)
		assert.Contains(t, rec.Body.String(), "Missing parameters")
	}
}

func TestPasswordHandler_ResetForm_Valid(t *testing.T) {
	handler := newPasswordHandler(&MockPasswordResetService{}, &MockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/reset-password?token=abc&id=user123", nil)
	rec := httptest.NewRecorder()

	handler.ResetForm(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordHandler_Reset_Success(t *testing.T) {
	var gotToken, gotUserID, gotPassword string
	resetService := &MockPasswordResetService{
		ConsumeFunc: func(ctx context.Context, token, userID, newPassword string) error {
			gotToken = token
			gotUserID = userID
			gotPassword = newPassword
			return nil
		},
	}
	handler := newPasswordHandler(resetService, &MockUserService{})

	req := newJSONRequest(t, http.MethodPost, "/api/auth/reset-password", ResetPasswordRequest{
		Token:    "sometoken",
		UserID:   "user123",
		Password: "BrandNewSecret9",
	}, nil)
	rec := httptest.NewRecorder()

	handler.Reset(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sometoken", gotToken)
	assert.Equal(t, "user123", gotUserID)
	assert.Equal(t, "BrandNewSecret9", gotPassword)
}

func TestPasswordHandler_Reset_InvalidToken(t *testing.T) {
	resetService := &MockPasswordResetService{
		ConsumeFunc: func(ctx context.Context, token, userID, newPassword string) error {
			return models.ErrTokenInvalidOrExpired
		},
	}
	handler := newPasswordHandler(resetService, &MockUserService{})

	req := newJSONRequest(t, http.MethodPost, "/api/auth/reset-password", ResetPasswordRequest{
		Token:    "expired",
		UserID:   "user123",
		Password: "BrandNewSecret9",
	}, nil)
	rec := httptest.NewRecorder()

	handler.Reset(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired")
}

func TestPasswordHandler_Change_Success(t *testing.T) {
	var gotUserID string
	userService := &MockUserService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			gotUserID = userID
			return nil
		},
	}
	handler := newPasswordHandler(&MockPasswordResetService{}, userService)

	sess := &session.Session{ID: "sess1", LoggedIn: true, UserID: "user123"}
	req := newJSONRequest(t, http.MethodPost, "/api/users/password", ChangePasswordRequest{
		CurrentPassword: "OldPassword1",
		NewPassword:     "NewPassword22",
	}, sess)
	rec := httptest.NewRecorder()

	handler.Change(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user123", gotUserID, "the target account comes from the session, never the body")
}

func TestPasswordHandler_Change_WrongCurrentPassword(t *testing.T) {
	userService := &MockUserService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return models.ErrWrongPassword
		},
	}
	handler := newPasswordHandler(&MockPasswordResetService{}, userService)

	sess := &session.Session{ID: "sess1", LoggedIn: true, UserID: "user123"}
	req := newJSONRequest(t, http.MethodPost, "/api/users/password", ChangePasswordRequest{
		CurrentPassword: "Wrong",
		NewPassword:     "NewPassword22",
	}, sess)
	rec := httptest.NewRecorder()

	handler.Change(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordHandler_Change_ShortNewPassword(t *testing.T) {
	called := false
	userService := &MockUserService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			called = true
			return nil
		},
	}
	handler := newPasswordHandler(&MockPasswordResetService{}, userService)

	sess := &session.Session{ID: "sess1", LoggedIn: true, UserID: "user123"}
	req := newJSONRequest(t, http.MethodPost, "/api/users/password", ChangePasswordRequest{
		CurrentPassword: "OldPassword1",
		NewPassword:     "tiny",
	}, sess)
	rec := httptest.NewRecorder()

	handler.Change(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
