package handler

import (
	"encoding/json"
	"net/http"

	"github.com/idgate/internal/application/auth"
	"github.com/idgate/internal/application/session"
	"github.com/idgate/internal/pkg/validate"
)

// AuthHandler handles the identity-submission and verification endpoints.
type AuthHandler struct {
	svc      auth.Service
	sessions session.Service
}

func NewAuthHandler(svc auth.Service, sessions session.Service) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions}
}

func (h *AuthHandler) SubmitIdentity(w http.ResponseWriter, r *http.Request) {
	var req auth.SubmitIdentityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.SubmitIdentity(r.Context(), req.Identity)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitEnvelope{
		Message: "a verification code or link has been sent",
		Purpose: string(result.Purpose),
		Channel: string(result.Channel),
		NextURL: result.NextURL,
	})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.VerifyCode(r.Context(), req.Identity, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAuthResult(w, result)
}

func (h *AuthHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyLinkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.VerifyLink(r.Context(), req.Identity, req.Token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAuthResult(w, result)
}

func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req auth.SubmitIdentityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.Resend(r.Context(), req.Identity)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitEnvelope{
		Message: "a verification code or link has been sent again",
		Purpose: string(result.Purpose),
		Channel: string(result.Channel),
		NextURL: result.NextURL,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.LoginWithPassword(r.Context(), req.Identity, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	writeAuthResult(w, result)
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	pair, err := h.sessions.Rotate(r.Context(), req.Refresh)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.sessions.Revoke(r.Context(), req.Refresh); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

func writeAuthResult(w http.ResponseWriter, result *auth.AuthResult) {
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Message: "authenticated",
		Action:  result.Action,
		Access:  result.Tokens.Access,
		Refresh: result.Tokens.Refresh,
		User:    result.User,
	})
}

// decodeAndValidate decodes the JSON body into req and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
