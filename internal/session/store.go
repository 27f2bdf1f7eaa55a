package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nakamastream/accounts/internal/models"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Session is the per-visitor state threaded through the handlers. It
// exists before login (anonymous, carrying only the captcha phrase) and
// is populated by a successful login. Logout deletes the whole record,
// not just the LoggedIn flag.
type Session struct {
	ID            string    `json:"-"`
	LoggedIn      bool      `json:"logged_in"`
	UserID        string    `json:"user_id,omitempty"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	IsAdmin       bool      `json:"is_admin,omitempty"`
	CaptchaPhrase string    `json:"captcha_phrase,omitempty"`
}

// Store persists sessions in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Create starts a new anonymous session.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: id}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Get loads a session by ID. Returns ErrSessionNotFound for unknown or
// expired IDs.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	sess.ID = id

	return &sess, nil
}

// Save writes the session back and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// Establish marks the session authenticated with the account's identity.
// Only called after the login controller has fully approved the attempt.
func (s *Store) Establish(ctx context.Context, sess *Session, user *models.User) error {
	sess.LoggedIn = true
	sess.UserID = user.ID
	sess.Username = user.Username
	sess.Email = user.Email
	sess.CreatedAt = user.CreatedAt
	sess.IsAdmin = user.IsAdmin

	return s.Save(ctx, sess)
}

// Destroy removes the session record entirely. All fields disappear
// atomically with the delete; there is no half-logged-out state.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	s.logger.Info("session destroyed", slog.String("session_id", id))
	return nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
