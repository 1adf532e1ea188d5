package jwtinfra

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/idgate/internal/config"
	"github.com/idgate/internal/domain"
)

const (
	TypeAccess        = "access"
	TypeRefresh       = "refresh"
	TypeResetPassword = "reset_password"
)

// SessionClaims is the payload of access and refresh tokens. Refresh tokens
// carry a unique ID (RegisteredClaims.ID) used by the revocation ledger;
// access tokens are short-lived and never individually revocable.
type SessionClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// ResetClaims is the payload of reset-authorization tokens. Presenting one is
// the sole authorization to mutate a password.
type ResetClaims struct {
	Identity  string `json:"identity"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs with the single server secret.
type Provider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		secret:     []byte(cfg.SecretKey),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		resetTTL:   cfg.ResetTokenTTL,
		now:        time.Now,
	}
}

// WithClock overrides the provider clock. Test helper.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// IssuePair mints a fresh access/refresh token pair for the user.
func (p *Provider) IssuePair(userID string) (domain.TokenPair, error) {
	now := p.now()
	access, err := p.signSession(SessionClaims{
		UserID:    userID,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := p.signSession(SessionClaims{
		UserID:    userID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess validates an access token. Every failure collapses to
// ErrUnauthorized; the gate does not distinguish why a token was rejected.
func (p *Provider) VerifyAccess(tokenStr string) (*SessionClaims, error) {
	claims, err := p.parseSession(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("access token rejected: %w", domain.ErrUnauthorized)
	}
	if claims.TokenType != TypeAccess {
		return nil, fmt.Errorf("token is not an access token: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims, including
// the token ID consulted against the revocation ledger. Expired tokens fail
// with ErrTokenExpired, everything else with ErrInvalidToken.
func (p *Provider) VerifyRefresh(tokenStr string) (*SessionClaims, error) {
	claims, err := p.parseSession(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("refresh token: %w", domain.ErrTokenExpired)
		}
		return nil, fmt.Errorf("refresh token: %w", domain.ErrInvalidToken)
	}
	if claims.TokenType != TypeRefresh || claims.ID == "" {
		return nil, fmt.Errorf("token is not a refresh token: %w", domain.ErrInvalidToken)
	}
	return claims, nil
}

// RemainingLifetime returns how long the claims stay valid from now. Used as
// the ledger TTL so revocation records expire with the tokens they block.
func (p *Provider) RemainingLifetime(claims *SessionClaims) time.Duration {
	return claims.ExpiresAt.Time.Sub(p.now())
}

// IssueResetToken mints a short-lived reset-authorization token for a
// verified identity.
func (p *Provider) IssueResetToken(identity string) (string, error) {
	now := p.now()
	claims := ResetClaims{
		Identity:  identity,
		TokenType: TypeResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.resetTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// VerifyResetToken validates a reset-authorization token and returns the
// identity it was issued for. Every distinct failure (bad signature, expiry,
// wrong type) collapses into one generic ErrUnauthorized so callers cannot
// probe which check failed; the specific cause is only logged.
func (p *Provider) VerifyResetToken(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ResetClaims{}, p.keyFunc,
		jwt.WithTimeFunc(p.now))
	if err != nil {
		slog.Info("reset token rejected", "err", err)
		return "", domain.ErrUnauthorized
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid {
		slog.Info("reset token rejected", "err", "invalid claims")
		return "", domain.ErrUnauthorized
	}
	if claims.TokenType != TypeResetPassword {
		slog.Info("reset token rejected", "err", "wrong token type", "type", claims.TokenType)
		return "", domain.ErrUnauthorized
	}
	return claims.Identity, nil
}

func (p *Provider) signSession(claims SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *Provider) parseSession(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, p.keyFunc,
		jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (p *Provider) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return p.secret, nil
}
