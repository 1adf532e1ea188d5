// Package verification owns the transient, time-bounded verification state:
// one-time codes, resend cooldowns, verified-identity flags, and consumed
// link-token IDs. Everything lives in the injected TTL key/value store; the
// package holds no state of its own.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/idgate/internal/domain"
)

// KV is the time-bounded key/value store contract. Set always clobbers any
// previous value for the key; per-key operations are atomic at the store.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Manager issues and verifies one-time codes and governs resend cooldowns.
type Manager struct {
	kv       KV
	otpTTL   time.Duration
	cooldown time.Duration
	flagTTL  time.Duration
}

func NewManager(kv KV, otpTTL, cooldown, flagTTL time.Duration) *Manager {
	return &Manager{kv: kv, otpTTL: otpTTL, cooldown: cooldown, flagTTL: flagTTL}
}

func codeKey(identity domain.Identity, purpose domain.Purpose) string {
	return fmt.Sprintf("otp:%s:%s", identity.Value, purpose)
}

func resendKey(identity domain.Identity, purpose domain.Purpose) string {
	return fmt.Sprintf("resend:%s:%s", identity.Value, purpose)
}

func verifiedKey(identity domain.Identity, purpose domain.Purpose) string {
	return fmt.Sprintf("verified:%s:%s", identity.Value, purpose)
}

func consumedKey(tokenID string) string {
	return "consumed:" + tokenID
}

// IssueCode generates a cryptographically random 6-digit code and stores it
// under (identity, purpose), overwriting any previous code for that pair.
// The caller is responsible for delivery.
func (m *Manager) IssueCode(ctx context.Context, identity domain.Identity, purpose domain.Purpose) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := m.kv.Set(ctx, codeKey(identity, purpose), code, m.otpTTL); err != nil {
		return "", err
	}
	slog.Info("otp issued", "identity", identity.Value, "purpose", purpose)
	return code, nil
}

// VerifyCode checks the submitted code against the stored one. The stored
// code is deleted only on a correct match (single use); a mismatch leaves it
// in place so a later correct attempt within the TTL still succeeds. A racing
// second verify after a success observes ErrCodeExpired.
func (m *Manager) VerifyCode(ctx context.Context, identity domain.Identity, code string, purpose domain.Purpose) error {
	if !isSixDigits(code) {
		return fmt.Errorf("otp must be 6 digits: %w", domain.ErrCodeMismatch)
	}
	stored, err := m.kv.Get(ctx, codeKey(identity, purpose))
	if err != nil {
		return fmt.Errorf("otp for %s/%s: %w", identity.Value, purpose, domain.ErrCodeExpired)
	}
	if stored != code {
		return fmt.Errorf("otp for %s/%s: %w", identity.Value, purpose, domain.ErrCodeMismatch)
	}
	if err := m.kv.Delete(ctx, codeKey(identity, purpose)); err != nil {
		slog.Warn("failed to delete consumed otp", "identity", identity.Value, "purpose", purpose, "err", err)
	}
	return nil
}

// CanResend reports whether a resend is allowed and, if not, the seconds
// remaining until it is.
func (m *Manager) CanResend(ctx context.Context, identity domain.Identity, purpose domain.Purpose) (bool, int, error) {
	remaining, err := m.kv.TTL(ctx, resendKey(identity, purpose))
	if err != nil {
		return false, 0, err
	}
	if remaining > 0 {
		// Ceiling, so a blocked resend never reports zero seconds left.
		return false, int((remaining + time.Second - 1) / time.Second), nil
	}
	return true, 0, nil
}

// StartCooldown arms the resend cooldown, unconditionally overwriting any
// running one. The cooldown is independent of the OTP lifetime.
func (m *Manager) StartCooldown(ctx context.Context, identity domain.Identity, purpose domain.Purpose) error {
	return m.kv.Set(ctx, resendKey(identity, purpose), "1", m.cooldown)
}

// MarkVerified records that (identity, purpose) passed OTP or link
// verification. The flag is consumed exactly once by the state-mutating step
// that follows.
func (m *Manager) MarkVerified(ctx context.Context, identity domain.Identity, purpose domain.Purpose) error {
	return m.kv.Set(ctx, verifiedKey(identity, purpose), "1", m.flagTTL)
}

// ConsumeVerified atomically reads and clears the verification flag,
// reporting whether it was set.
func (m *Manager) ConsumeVerified(ctx context.Context, identity domain.Identity, purpose domain.Purpose) (bool, error) {
	_, err := m.kv.GetDel(ctx, verifiedKey(identity, purpose))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ConsumeLinkTokenID records a link token ID as used. Returns false when the
// ID was already consumed, which callers treat as a replayed token.
func (m *Manager) ConsumeLinkTokenID(ctx context.Context, tokenID string, maxAge time.Duration) (bool, error) {
	return m.kv.SetNX(ctx, consumedKey(tokenID), "1", maxAge)
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
