package captcha

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier calls the external proof-of-humanity endpoint used during
// registration. The service is an untrusted network dependency: any
// transport or decode error counts as a failed verification.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	logger    *slog.Logger
}

func NewVerifier(secret, verifyURL string, timeout time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type siteverifyResponse struct {
	Success bool `json:"success"`
}

// VerifyProof checks a client-submitted proof token against the
// verification service. Fail-closed: false on any error.
func (v *Verifier) VerifyProof(ctx context.Context, proofToken string) bool {
	if proofToken == "" {
		return false
	}

	form := url.Values{}
	form.Set("response", proofToken)
	form.Set("secret", v.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.Error("failed to build captcha verification request", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("captcha verification request failed", slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Warn("captcha verification returned non-200", slog.Int("status", resp.StatusCode))
		return false
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		v.logger.Warn("failed to decode captcha verification response", slog.Any("error", err))
		return false
	}

	return body.Success
}
