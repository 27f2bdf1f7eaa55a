package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nakamastream/accounts/internal/models"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
)

// DecisionKind classifies the outcome of a registration attempt.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionBadCaptcha
	DecisionDomainNotAllowed
	DecisionIPCapExceeded
	DecisionUsernameTaken
	DecisionEmailTaken
	DecisionInternalError
)

// Decision is the outcome of the registration gate. Callers branch on
// Kind instead of matching message strings; User is set only on Allow.
type Decision struct {
	Kind DecisionKind
	User *models.User
}

// Allowed reports whether the registration was accepted.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllow
}

// RegistrationCandidate carries the inputs of one registration attempt.
type RegistrationCandidate struct {
	Username   string
	Email      string
	Password   string
	ProofToken string
}

// ProofVerifier checks an anti-bot proof token with an external
// verification endpoint.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, proofToken string) bool
}

// RegistrationService gates account creation: proof-of-humanity check,
// email domain allowlist, per-IP account cap, then uniqueness.
type RegistrationService struct {
	userRepo       UserRepository
	verifier       ProofVerifier
	allowedDomains []string
	maxPerIP       int
	logger         *slog.Logger
	auditLogger    *pkglogger.AuditLogger
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(
	userRepo UserRepository,
	verifier ProofVerifier,
	allowedDomains []string,
	maxPerIP int,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *RegistrationService {
	normalized := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(d)))
	}

	return &RegistrationService{
		userRepo:       userRepo,
		verifier:       verifier,
		allowedDomains: normalized,
		maxPerIP:       maxPerIP,
		logger:         logger,
		auditLogger:    auditLogger,
	}
}

// Register evaluates the candidate against every gate in order and
// creates the account only when all of them pass. A rejected attempt
// leaves no trace in the store.
func (s *RegistrationService) Register(ctx context.Context, candidate RegistrationCandidate, clientIP string) Decision {
	if !s.verifier.VerifyProof(ctx, candidate.ProofToken) {
		s.audit("registration_rejected_captcha", clientIP, "captcha verification failed")
		return Decision{Kind: DecisionBadCaptcha}
	}

	if !s.domainAllowed(candidate.Email) {
		s.audit("registration_rejected_domain", clientIP, "email domain not allowed")
		return Decision{Kind: DecisionDomainNotAllowed}
	}

	count, err := s.userRepo.CountByRegistrationIP(ctx, clientIP)
	if err != nil {
		s.logger.Error("failed to count accounts by registration IP",
			slog.String("ip_address", clientIP),
			slog.Any("error", err))
		return Decision{Kind: DecisionInternalError}
	}
	if count >= s.maxPerIP {
		s.audit("registration_rejected_ip_cap", clientIP, "account cap reached for IP")
		return Decision{Kind: DecisionIPCapExceeded}
	}

	if kind, ok := s.checkTaken(ctx, candidate.Username, candidate.Email); !ok {
		if kind == DecisionInternalError {
			return Decision{Kind: DecisionInternalError}
		}
		s.audit("registration_rejected_taken", clientIP, "identifier already in use")
		return Decision{Kind: kind}
	}

	hash, err := pkgauth.HashPassword(candidate.Password)
	if err != nil {
		s.logger.Error("failed to hash password during registration", slog.Any("error", err))
		return Decision{Kind: DecisionInternalError}
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Username:       candidate.Username,
		Email:          candidate.Email,
		PasswordHash:   hash,
		RegistrationIP: clientIP,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost a race with a concurrent registration; the unique
			// constraint is the authoritative arbiter.
			if kind, _ := s.checkTaken(ctx, candidate.Username, candidate.Email); kind != DecisionAllow {
				s.audit("registration_rejected_taken", clientIP, "identifier already in use")
				return Decision{Kind: kind}
			}
			return Decision{Kind: DecisionUsernameTaken}
		}
		s.logger.Error("failed to create user",
			slog.String("ip_address", clientIP),
			slog.Any("error", err))
		return Decision{Kind: DecisionInternalError}
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "registration",
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})

	return Decision{Kind: DecisionAllow, User: user}
}

func (s *RegistrationService) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])

	for _, allowed := range s.allowedDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}

// checkTaken reports (DecisionAllow, true) when both identifiers are
// free. Username is checked before email so the caller sees one
// deterministic reason when both collide.
func (s *RegistrationService) checkTaken(ctx context.Context, username, email string) (DecisionKind, bool) {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return DecisionUsernameTaken, false
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return DecisionInternalError, false
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return DecisionEmailTaken, false
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return DecisionInternalError, false
	}

	return DecisionAllow, true
}

func (s *RegistrationService) audit(eventType, ip, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		IPAddress:     ip,
		Success:       false,
		FailureReason: reason,
	})
}
