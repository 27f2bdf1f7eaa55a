package captcha

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nakamastream/accounts/internal/session"
)

// SessionSaver persists the phrase binding onto the session record.
type SessionSaver interface {
	Save(ctx context.Context, sess *session.Session) error
}

// Manager issues and verifies session-bound word challenges. A session
// carries at most one phrase; issuing a new one overwrites the old.
type Manager struct {
	words  []string
	store  SessionSaver
	logger *slog.Logger
}

func NewManager(words []string, store SessionSaver, logger *slog.Logger) *Manager {
	return &Manager{
		words:  words,
		store:  store,
		logger: logger,
	}
}

// Issue binds a fresh phrase to the session, replacing any prior one.
func (m *Manager) Issue(ctx context.Context, sess *session.Session) (string, error) {
	if len(m.words) == 0 {
		return "", fmt.Errorf("captcha word list is empty")
	}

	phrase := m.words[rand.IntN(len(m.words))]
	sess.CaptchaPhrase = phrase

	if err := m.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to bind captcha phrase: %w", err)
	}

	return phrase, nil
}

// Verify compares the submitted phrase against the session-bound one.
// It does not clear the phrase; callers re-issue explicitly on the next
// page load or regenerate request.
func (m *Manager) Verify(sess *session.Session, submitted string) bool {
	if sess == nil || sess.CaptchaPhrase == "" {
		return false
	}
	return submitted == sess.CaptchaPhrase
}
