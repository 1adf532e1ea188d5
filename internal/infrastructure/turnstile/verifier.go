// Package turnstile verifies Cloudflare Turnstile CAPTCHA tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/idgate/internal/config"
)

const siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks CAPTCHA tokens against the Turnstile siteverify endpoint.
// When disabled in config every request passes.
type Verifier struct {
	enabled  bool
	secret   string
	endpoint string
	client   *http.Client
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{
		enabled:  cfg.TurnstileEnabled,
		secret:   cfg.TurnstileSecretKey,
		endpoint: siteverifyURL,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify returns true if CAPTCHA is disabled or the token is valid. A missing
// token, an upstream failure, or a negative response all fail closed.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) bool {
	if !v.enabled {
		return true
	}
	if token == "" {
		slog.Warn("captcha verification failed: no token", "ip", remoteIP)
		return false
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		slog.Warn("captcha siteverify request failed", "ip", remoteIP, "err", err)
		return false
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("captcha siteverify decode failed", "ip", remoteIP, "err", err)
		return false
	}
	if !result.Success {
		slog.Warn("captcha verification failed", "ip", remoteIP)
	}
	return result.Success
}
