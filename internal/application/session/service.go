package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/idgate/internal/domain"
	jwtinfra "github.com/idgate/internal/infrastructure/jwt"
)

// Ledger is the persisted denylist of revoked refresh-token IDs. Add must be
// atomic add-if-absent; it is the linearization point of rotation, so a
// double rotation of the same refresh token lets exactly one caller through.
type Ledger interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

type Service interface {
	IssuePair(ctx context.Context, userID string) (domain.TokenPair, error)
	Rotate(ctx context.Context, oldRefresh string) (domain.TokenPair, error)
	Revoke(ctx context.Context, refresh string) error
	VerifyAccess(token string) (*jwtinfra.SessionClaims, error)
}

type service struct {
	tokens *jwtinfra.Provider
	ledger Ledger
}

func NewService(tokens *jwtinfra.Provider, ledger Ledger) Service {
	return &service{tokens: tokens, ledger: ledger}
}

func revokedKey(tokenID string) string { return "revoked:" + tokenID }

func (s *service) IssuePair(_ context.Context, userID string) (domain.TokenPair, error) {
	return s.tokens.IssuePair(userID)
}

// Rotate exchanges a live refresh token for a fresh pair and permanently
// retires the old one. All failure causes (bad signature, expiry, already
// revoked) collapse to ErrUnauthorized; the cause is only logged.
func (s *service) Rotate(ctx context.Context, oldRefresh string) (domain.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(oldRefresh)
	if err != nil {
		slog.Info("refresh rotation rejected", "err", err)
		return domain.TokenPair{}, fmt.Errorf("rotate: %w", domain.ErrUnauthorized)
	}
	remaining := s.tokens.RemainingLifetime(claims)
	added, err := s.ledger.SetNX(ctx, revokedKey(claims.ID), "1", remaining)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("revocation ledger: %w", err)
	}
	if !added {
		slog.Info("refresh rotation rejected", "err", "token already revoked", "token_id", claims.ID)
		return domain.TokenPair{}, fmt.Errorf("rotate revoked token: %w", domain.ErrUnauthorized)
	}
	return s.tokens.IssuePair(claims.UserID)
}

// Revoke adds the refresh token's ID to the ledger. A malformed or expired
// token fails with ErrTokenMalformed; revoking an already-revoked token is a
// no-op so retried logouts stay idempotent.
func (s *service) Revoke(ctx context.Context, refresh string) error {
	claims, err := s.tokens.VerifyRefresh(refresh)
	if err != nil {
		return fmt.Errorf("revoke: %w", domain.ErrTokenMalformed)
	}
	remaining := s.tokens.RemainingLifetime(claims)
	if _, err := s.ledger.SetNX(ctx, revokedKey(claims.ID), "1", remaining); err != nil {
		return fmt.Errorf("revocation ledger: %w", err)
	}
	slog.Info("refresh token revoked", "token_id", claims.ID, "user_id", claims.UserID)
	return nil
}

func (s *service) VerifyAccess(token string) (*jwtinfra.SessionClaims, error) {
	return s.tokens.VerifyAccess(token)
}
