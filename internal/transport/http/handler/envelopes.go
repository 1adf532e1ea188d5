package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/idgate/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitEnvelope wraps identity-submission and resend responses.
type SubmitEnvelope struct {
	Message string `json:"message,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	Channel string `json:"channel,omitempty"`
	NextURL string `json:"next_url,omitempty"`
}

// AuthEnvelope wraps successful verification and login responses.
type AuthEnvelope struct {
	Message string       `json:"message,omitempty"`
	Action  string       `json:"action,omitempty"`
	Access  string       `json:"access,omitempty"`
	Refresh string       `json:"refresh,omitempty"`
	User    *domain.User `json:"user,omitempty"`
}

// ResetTokenEnvelope wraps the reset-verification step.
type ResetTokenEnvelope struct {
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"reset_token,omitempty"`
}

// CooldownEnvelope reports a blocked resend with the remaining wait.
type CooldownEnvelope struct {
	Error           string `json:"error"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError is the boundary-level error translator: it maps the domain error
// taxonomy onto transport responses and keeps business logic free of HTTP
// concerns. Unexpected faults are logged with context and surfaced as one
// generic internal error.
func httpError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, CooldownEnvelope{
			Error:           "please wait before requesting another code",
			CooldownSeconds: cooldown.Seconds,
		})
	case errors.Is(err, domain.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, "enter a valid email address or phone number")
	case errors.Is(err, domain.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "the code has expired, please request a new one")
	case errors.Is(err, domain.ErrCodeMismatch):
		writeError(w, http.StatusBadRequest, "the code is incorrect")
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusBadRequest, "the token has expired, please request a new one")
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "the token is not valid")
	case errors.Is(err, domain.ErrTokenMalformed):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, domain.ErrPasswordNotSet), errors.Is(err, domain.ErrIncorrectPassword):
		writeError(w, http.StatusBadRequest, "the password is wrong or not set yet")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("unhandled error in handler", "err", err)
		writeError(w, http.StatusInternalServerError, "an unknown error occurred, please try again")
	}
}
