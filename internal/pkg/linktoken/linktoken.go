// Package linktoken implements the signed, self-contained tokens embedded in
// confirmation links. A token carries its payload and an HMAC-SHA256
// signature; validity is proven entirely by the signature plus the embedded
// issue timestamp, with no server-side record.
package linktoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/idgate/internal/domain"
	"github.com/idgate/internal/pkg/id"
)

// Payload is the signed content of a confirmation-link token.
type Payload struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
	TokenID  string `json:"jti"`
	IssuedAt int64  `json:"iat"`
}

// Codec issues and verifies link tokens with a single server secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// NewCodecWithClock is used by tests that need a deterministic clock.
func NewCodecWithClock(secret string, now func() time.Time) *Codec {
	return &Codec{secret: []byte(secret), now: now}
}

// Issue serializes and signs the payload and returns an opaque string safe
// for URL embedding. Each token carries a fresh ULID so verification flows
// can enforce single use.
func (c *Codec) Issue(identity domain.Identity, purpose domain.Purpose) (string, error) {
	payload := Payload{
		Identity: identity.Value,
		Purpose:  string(purpose),
		TokenID:  id.New(),
		IssuedAt: c.now().Unix(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal link token payload: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.sign(body), nil
}

// Verify checks the signature first, then the token age. A tampered token
// fails with ErrInvalidToken; a stale one with ErrTokenExpired.
func (c *Codec) Verify(token string, maxAge time.Duration) (*Payload, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("link token has no signature: %w", domain.ErrInvalidToken)
	}
	if !hmac.Equal([]byte(c.sign(body)), []byte(sig)) {
		return nil, fmt.Errorf("link token signature mismatch: %w", domain.ErrInvalidToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode link token body: %w", domain.ErrInvalidToken)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal link token body: %w", domain.ErrInvalidToken)
	}
	if c.now().Sub(time.Unix(payload.IssuedAt, 0)) > maxAge {
		return nil, fmt.Errorf("link token older than %s: %w", maxAge, domain.ErrTokenExpired)
	}
	return &payload, nil
}

func (c *Codec) sign(body string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
