package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/services"
	"github.com/nakamastream/accounts/internal/session"
	"github.com/stretchr/testify/require"
)

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	RegisterFunc func(ctx context.Context, candidate services.RegistrationCandidate, clientIP string) services.Decision
}

func (m *MockRegistrationService) Register(ctx context.Context, candidate services.RegistrationCandidate, clientIP string) services.Decision {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, candidate, clientIP)
	}
	return services.Decision{Kind: services.DecisionInternalError}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, sess *session.Session, username, password, captchaInput, clientIP string) services.LoginResult
	LogoutFunc func(ctx context.Context, sess *session.Session) error
}

func (m *MockAuthService) Login(ctx context.Context, sess *session.Session, username, password, captchaInput, clientIP string) services.LoginResult {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, sess, username, password, captchaInput, clientIP)
	}
	return services.LoginResult{Kind: services.LoginInternalError}
}

func (m *MockAuthService) Logout(ctx context.Context, sess *session.Session) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sess)
	}
	return nil
}

// MockCaptchaIssuer implements CaptchaIssuer for testing
type MockCaptchaIssuer struct {
	IssueFunc func(ctx context.Context, sess *session.Session) (string, error)
}

func (m *MockCaptchaIssuer) Issue(ctx context.Context, sess *session.Session) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, sess)
	}
	return "challenge", nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
	UpdateProfileFunc  func(ctx context.Context, userID string, update services.ProfileUpdate) (*models.User, error)
	UpdateBioFunc      func(ctx context.Context, userID, bio string) error
	GetByIDFunc        func(ctx context.Context, userID string) (*models.User, error)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, update)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) UpdateBio(ctx context.Context, userID, bio string) error {
	if m.UpdateBioFunc != nil {
		return m.UpdateBioFunc(ctx, userID, bio)
	}
	return nil
}

func (m *MockUserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestFunc func(ctx context.Context, email, clientIP string) error
	ConsumeFunc func(ctx context.Context, token, userID, newPassword string) error
}

func (m *MockPasswordResetService) Request(ctx context.Context, email, clientIP string) error {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, email, clientIP)
	}
	return nil
}

func (m *MockPasswordResetService) Consume(ctx context.Context, token, userID, newPassword string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, token, userID, newPassword)
	}
	return nil
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListUsersFunc  func(ctx context.Context, limit, offset int) ([]*models.User, error)
	DemoteUserFunc func(ctx context.Context, actorID, targetID string) error
	BanUserFunc    func(ctx context.Context, actorID, targetID string, expiration *time.Time) error
	UnbanUserFunc  func(ctx context.Context, actorID, targetID string) error
}

func (m *MockAdminService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockAdminService) DemoteUser(ctx context.Context, actorID, targetID string) error {
	if m.DemoteUserFunc != nil {
		return m.DemoteUserFunc(ctx, actorID, targetID)
	}
	return nil
}

func (m *MockAdminService) BanUser(ctx context.Context, actorID, targetID string, expiration *time.Time) error {
	if m.BanUserFunc != nil {
		return m.BanUserFunc(ctx, actorID, targetID, expiration)
	}
	return nil
}

func (m *MockAdminService) UnbanUser(ctx context.Context, actorID, targetID string) error {
	if m.UnbanUserFunc != nil {
		return m.UnbanUserFunc(ctx, actorID, targetID)
	}
	return nil
}

// MockSessionSaver implements SessionSaver for testing
type MockSessionSaver struct {
	SaveFunc func(ctx context.Context, sess *session.Session) error
}

func (m *MockSessionSaver) Save(ctx context.Context, sess *session.Session) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, sess)
	}
	return nil
}

// newJSONRequest builds a request with a JSON body and the given
// session attached, the way the session middleware would.
func newJSONRequest(t *testing.T, method, target string, body any, sess *session.Session) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(auth.WithSession(req.Context(), sess))
	}
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}
