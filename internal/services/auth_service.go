package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/session"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
)

// LoginResultKind classifies the outcome of a login attempt.
type LoginResultKind int

const (
	LoginSuccess LoginResultKind = iota
	LoginBadCaptcha
	LoginBadCredentials
	LoginBannedPermanent
	LoginBannedTemporary
	LoginRateLimited
	LoginInternalError
)

// LoginResult is the outcome of the login controller. BanExpiration is
// set only for temporary bans, RetryAfter only when rate limited, User
// only on success.
type LoginResult struct {
	Kind          LoginResultKind
	User          *models.User
	BanExpiration *time.Time
	RetryAfter    time.Duration
}

// LoginAttemptRepository records attempts and answers rate-limit queries.
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedByIP(ctx context.Context, ipAddress, route string, since time.Time) (int, error)
	OldestFailureTime(ctx context.Context, ipAddress, route string, since time.Time) (time.Time, error)
}

// SessionEstablisher promotes an anonymous session to an authenticated one.
type SessionEstablisher interface {
	Establish(ctx context.Context, sess *session.Session, user *models.User) error
	Destroy(ctx context.Context, id string) error
}

// PhraseVerifier checks the word challenge bound to the session.
type PhraseVerifier interface {
	Verify(sess *session.Session, submitted string) bool
}

const loginRoute = "login"

// Attempts stay queryable well past the counting window so operators
// can review abuse before cleanup removes them.
const attemptRetention = 24 * time.Hour

// bcrypt hash of an unguessable value. Compared against when the
// username does not exist so both credential failure paths cost one
// hash and stay in the same timing category.
const unknownUserHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService is the login controller: captcha gate, per-IP rate
// limiting, credential check, ban enforcement, session establishment.
type AuthService struct {
	userRepo    UserRepository
	attemptRepo LoginAttemptRepository
	sessions    SessionEstablisher
	phrases     PhraseVerifier
	timingDelay *auth.TimingDelay
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo UserRepository,
	attemptRepo LoginAttemptRepository,
	sessions SessionEstablisher,
	phrases PhraseVerifier,
	timingDelay *auth.TimingDelay,
	maxAttempts int,
	window time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		attemptRepo: attemptRepo,
		sessions:    sessions,
		phrases:     phrases,
		timingDelay: timingDelay,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Login runs the full gate sequence for one attempt. The order is
// fixed: captcha first, then the rate limiter, and only then the
// credential store. A throttled IP never causes a store lookup.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, username, password, captchaInput, clientIP string) LoginResult {
	now := s.now()

	if !s.phrases.Verify(sess, captchaInput) {
		s.recordFailure(ctx, clientIP, "captcha_mismatch", now)
		s.audit("login", "", clientIP, "captcha mismatch")
		s.timingDelay.Wait(false)
		return LoginResult{Kind: LoginBadCaptcha}
	}

	since := now.Add(-s.window)
	count, err := s.attemptRepo.CountFailedByIP(ctx, clientIP, loginRoute, since)
	if err != nil {
		// Fail open: an attempt-store outage must not lock everyone out.
		s.logger.Warn("failed to count login attempts, failing open",
			slog.String("ip_address", clientIP),
			slog.Any("error", err))
		count = 0
	}
	if count >= s.maxAttempts {
		s.audit("login", "", clientIP, "rate limit exceeded")
		return LoginResult{Kind: LoginRateLimited, RetryAfter: s.retryAfter(ctx, clientIP, since, now)}
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a hash so unknown-username and wrong-password take
			// the same time.
			_ = pkgauth.ComparePassword(password, unknownUserHash)
			s.recordFailure(ctx, clientIP, "bad_credentials", now)
			s.audit("login", "", clientIP, "unknown username")
			s.timingDelay.Wait(false)
			return LoginResult{Kind: LoginBadCredentials}
		}
		s.logger.Error("failed to look up user for login",
			slog.String("ip_address", clientIP),
			slog.Any("error", err))
		return LoginResult{Kind: LoginInternalError}
	}

	if err := pkgauth.ComparePassword(password, user.PasswordHash); err != nil {
		s.recordFailure(ctx, clientIP, "bad_credentials", now)
		s.audit("login", user.ID, clientIP, "wrong password")
		s.timingDelay.Wait(false)
		return LoginResult{Kind: LoginBadCredentials}
	}

	// Ban check runs after the password match: a correct password
	// against a banned account still counts as a failed attempt and
	// never yields a session.
	if user.BanActive(now) {
		s.recordFailure(ctx, clientIP, "banned", now)
		s.audit("login", user.ID, clientIP, "account banned")
		if user.BanPermanent() {
			return LoginResult{Kind: LoginBannedPermanent}
		}
		return LoginResult{Kind: LoginBannedTemporary, BanExpiration: user.BanExpiration}
	}

	if err := s.sessions.Establish(ctx, sess, user); err != nil {
		s.logger.Error("failed to establish session",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return LoginResult{Kind: LoginInternalError}
	}

	if err := s.attemptRepo.RecordAttempt(ctx, &models.LoginAttempt{
		IPAddress:   clientIP,
		Route:       loginRoute,
		AttemptTime: now,
		Success:     true,
		ExpiresAt:   now.Add(attemptRetention),
	}); err != nil {
		s.logger.Warn("failed to record successful login attempt", slog.Any("error", err))
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})
	s.timingDelay.Wait(true)

	return LoginResult{Kind: LoginSuccess, User: user}
}

// Logout destroys the server-side session record. The cookie becomes a
// dangling reference the moment this returns.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	return s.sessions.Destroy(ctx, sess.ID)
}

// retryAfter reports how long until the oldest counted failure leaves
// the window. Falls back to the full window when the store cannot answer.
func (s *AuthService) retryAfter(ctx context.Context, clientIP string, since, now time.Time) time.Duration {
	oldest, err := s.attemptRepo.OldestFailureTime(ctx, clientIP, loginRoute, since)
	if err != nil {
		return s.window
	}
	remaining := oldest.Add(s.window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *AuthService) recordFailure(ctx context.Context, clientIP, reason string, now time.Time) {
	err := s.attemptRepo.RecordAttempt(ctx, &models.LoginAttempt{
		IPAddress:     clientIP,
		Route:         loginRoute,
		AttemptTime:   now,
		Success:       false,
		FailureReason: &reason,
		ExpiresAt:     now.Add(attemptRetention),
	})
	if err != nil {
		s.logger.Warn("failed to record login attempt",
			slog.String("ip_address", clientIP),
			slog.Any("error", err))
	}
}

func (s *AuthService) audit(eventType, userID, ip, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		IPAddress:     ip,
		Success:       false,
		FailureReason: reason,
	})
}
