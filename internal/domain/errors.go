package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrCodeExpired       = errors.New("code expired")
	ErrCodeMismatch      = errors.New("code mismatch")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("malformed token")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrPasswordNotSet    = errors.New("password not set")
	ErrIncorrectPassword = errors.New("incorrect password")
)

// CooldownError reports that a send was attempted before the resend cooldown
// elapsed. It is an expected outcome, not a fault; handlers surface it as a
// structured 429 carrying the remaining wait.
type CooldownError struct {
	Seconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("resend cooldown active: %ds remaining", e.Seconds)
}
