package handler

import (
	"net/http"

	"github.com/idgate/internal/application/password"
	"github.com/idgate/internal/transport/http/middleware"
)

// PasswordHandler handles reset, first-time, and change password endpoints.
type PasswordHandler struct {
	svc password.Service
}

func NewPasswordHandler(svc password.Service) *PasswordHandler {
	return &PasswordHandler{svc: svc}
}

func (h *PasswordHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req password.RequestResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.svc.RequestReset(r.Context(), req.Identity)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitEnvelope{
		Message: "if the account exists, a reset code or link has been sent",
		Purpose: string(result.Purpose),
		Channel: string(result.Channel),
		NextURL: result.NextURL,
	})
}

func (h *PasswordHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req password.VerifyResetCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	token, err := h.svc.VerifyResetCode(r.Context(), req.Identity, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetTokenEnvelope{Message: "code confirmed", ResetToken: token})
}

func (h *PasswordHandler) VerifyResetLink(w http.ResponseWriter, r *http.Request) {
	var req password.VerifyResetLinkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	token, err := h.svc.VerifyResetLink(r.Context(), req.Identity, req.Token)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResetTokenEnvelope{Message: "link confirmed", ResetToken: token})
}

func (h *PasswordHandler) ApplyReset(w http.ResponseWriter, r *http.Request) {
	var req password.ApplyResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := h.svc.ApplyReset(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}

func (h *PasswordHandler) SetFirstPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req password.SetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := h.svc.SetFirstPassword(r.Context(), claims.UserID, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password set"})
}

func (h *PasswordHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req password.ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := h.svc.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}
