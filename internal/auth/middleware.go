package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/nakamastream/accounts/internal/session"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionMiddleware resolves the visitor's session from the session
// cookie, creating a fresh anonymous session when none exists. The
// session value object is threaded through the request context so every
// handler works with the same loaded state.
func SessionMiddleware(store *session.Store, cookieConfig CookieConfig, ttlSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *session.Session

			if id, err := GetSessionCookie(r); err == nil && id != "" {
				loaded, err := store.Get(r.Context(), id)
				if err == nil {
					sess = loaded
				} else if !errors.Is(err, session.ErrSessionNotFound) {
					pkghttp.WriteInternalError(w, "Could not load session")
					return
				}
			}

			if sess == nil {
				created, err := store.Create(r.Context())
				if err != nil {
					pkghttp.WriteInternalError(w, "Could not create session")
					return
				}
				sess = created
				SetSessionCookie(w, sess.ID, ttlSeconds, cookieConfig)
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// GetSession returns the session attached to the request, or nil when
// the middleware did not run.
func GetSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionContextKey).(*session.Session)
	return sess
}

// RequireLogin rejects requests without an authenticated session.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r)
		if sess == nil || !sess.LoggedIn {
			pkghttp.WriteUnauthorized(w, "Login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from non-admin sessions.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r)
		if sess == nil || !sess.LoggedIn {
			pkghttp.WriteUnauthorized(w, "Login required")
			return
		}
		if !sess.IsAdmin {
			pkghttp.WriteForbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
