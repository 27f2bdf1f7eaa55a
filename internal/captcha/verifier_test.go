package captcha

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Success(t *testing.T) {
	var gotResponse, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotResponse = r.FormValue("response")
		gotSecret = r.FormValue("secret")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	v := NewVerifier("server-secret", server.URL, 5*time.Second, slog.Default())

	ok := v.VerifyProof(context.Background(), "client-proof-token")
	assert.True(t, ok)
	assert.Equal(t, "client-proof-token", gotResponse)
	assert.Equal(t, "server-secret", gotSecret)
}

func TestVerifier_ServiceRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}))
	defer server.Close()

	v := NewVerifier("server-secret", server.URL, 5*time.Second, slog.Default())
	assert.False(t, v.VerifyProof(context.Background(), "bad-token"))
}

func TestVerifier_FailClosed(t *testing.T) {
	t.Run("empty proof token", func(t *testing.T) {
		v := NewVerifier("secret", "http://127.0.0.1:0", time.Second, slog.Default())
		assert.False(t, v.VerifyProof(context.Background(), ""))
	})

	t.Run("unreachable service", func(t *testing.T) {
		v := NewVerifier("secret", "http://127.0.0.1:1", 500*time.Millisecond, slog.Default())
		assert.False(t, v.VerifyProof(context.Background(), "token"))
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		v := NewVerifier("secret", server.URL, time.Second, slog.Default())
		assert.False(t, v.VerifyProof(context.Background(), "token"))
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not-json`))
		}))
		defer server.Close()

		v := NewVerifier("secret", server.URL, time.Second, slog.Default())
		assert.False(t, v.VerifyProof(context.Background(), "token"))
	})
}
