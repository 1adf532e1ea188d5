package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/idgate/internal/application/auth"
	"github.com/idgate/internal/application/verification"
	"github.com/idgate/internal/domain"
	jwtinfra "github.com/idgate/internal/infrastructure/jwt"
	"github.com/idgate/internal/pkg/identity"
	"github.com/idgate/internal/pkg/linktoken"
	"golang.org/x/crypto/bcrypt"
)

type RequestResetRequest struct {
	Identity string `json:"identity" validate:"required"`
}

type VerifyResetCodeRequest struct {
	Identity string `json:"identity" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

type VerifyResetLinkRequest struct {
	Identity string `json:"identity" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type ApplyResetRequest struct {
	ResetToken      string `json:"reset_token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// ResetResult mirrors SubmitResult for the reset request step.
type ResetResult struct {
	Purpose domain.Purpose         `json:"purpose"`
	Channel domain.DeliveryChannel `json:"channel"`
	NextURL string                 `json:"next_url"`
}

type Service interface {
	RequestReset(ctx context.Context, rawIdentity string) (*ResetResult, error)
	VerifyResetCode(ctx context.Context, rawIdentity, otp string) (resetToken string, err error)
	VerifyResetLink(ctx context.Context, rawIdentity, token string) (resetToken string, err error)
	ApplyReset(ctx context.Context, resetToken, newPassword string) error
	SetFirstPassword(ctx context.Context, userID, newPassword string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

// ServiceDeps bundles the collaborators of the password service.
type ServiceDeps struct {
	UserRepo    auth.UserRepository
	Verifier    *verification.Manager
	LinkCodec   *linktoken.Codec
	Tokens      *jwtinfra.Provider
	Notifier    auth.Notifier
	LinkMaxAge  time.Duration
	LinkBaseURL string
}

type service struct {
	users      auth.UserRepository
	verifier   *verification.Manager
	links      *linktoken.Codec
	tokens     *jwtinfra.Provider
	notifier   auth.Notifier
	linkMaxAge time.Duration
	linkBase   string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:      deps.UserRepo,
		verifier:   deps.Verifier,
		links:      deps.LinkCodec,
		tokens:     deps.Tokens,
		notifier:   deps.Notifier,
		linkMaxAge: deps.LinkMaxAge,
		linkBase:   deps.LinkBaseURL,
	}
}

// RequestReset sends a reset OTP or link when the account exists. The
// response is identical either way so the endpoint cannot be used to probe
// which identities are registered.
func (s *service) RequestReset(ctx context.Context, rawIdentity string) (*ResetResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	purpose := domain.PurposeResetPassword

	// The cooldown gate runs before the account lookup so blocked and
	// accepted requests behave the same for known and unknown identities.
	allowed, remaining, err := s.verifier.CanResend(ctx, ident, purpose)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &domain.CooldownError{Seconds: remaining}
	}

	_, lookupErr := s.users.GetByIdentity(ctx, ident)
	switch {
	case lookupErr == nil:
		if err := s.dispatch(ctx, ident); err != nil {
			return nil, err
		}
	case errors.Is(lookupErr, domain.ErrNotFound):
		slog.Info("password reset requested for unknown identity", "identity", ident.Value)
	default:
		return nil, lookupErr
	}

	if err := s.verifier.StartCooldown(ctx, ident, purpose); err != nil {
		slog.Warn("failed to start resend cooldown", "identity", ident.Value, "err", err)
	}
	next := "/v1/password/verify-code"
	channel := domain.ChannelSMS
	if ident.IsEmail() {
		next = "/v1/password/verify-link"
		channel = domain.ChannelEmail
	}
	return &ResetResult{Purpose: purpose, Channel: channel, NextURL: next}, nil
}

// VerifyResetCode consumes the reset OTP, marks the identity verified, and
// exchanges that proof for a reset-authorization token.
func (s *service) VerifyResetCode(ctx context.Context, rawIdentity, otp string) (string, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return "", err
	}
	if err := s.verifier.VerifyCode(ctx, ident, otp, domain.PurposeResetPassword); err != nil {
		return "", err
	}
	if err := s.verifier.MarkVerified(ctx, ident, domain.PurposeResetPassword); err != nil {
		return "", err
	}
	return s.issueResetToken(ctx, ident)
}

// VerifyResetLink validates the reset confirmation link (single use via its
// token ID) and exchanges the proof for a reset-authorization token.
func (s *service) VerifyResetLink(ctx context.Context, rawIdentity, token string) (string, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return "", err
	}
	payload, err := s.links.Verify(token, s.linkMaxAge)
	if err != nil {
		return "", err
	}
	if payload.Identity != ident.Value || payload.Purpose != string(domain.PurposeResetPassword) {
		return "", fmt.Errorf("link token does not match reset request: %w", domain.ErrInvalidToken)
	}
	fresh, err := s.verifier.ConsumeLinkTokenID(ctx, payload.TokenID, s.linkMaxAge)
	if err != nil {
		return "", err
	}
	if !fresh {
		return "", fmt.Errorf("link token replayed: %w", domain.ErrInvalidToken)
	}
	if err := s.verifier.MarkVerified(ctx, ident, domain.PurposeResetPassword); err != nil {
		return "", err
	}
	return s.issueResetToken(ctx, ident)
}

// issueResetToken consumes the verification flag as proof. Exactly one reset
// token is minted per successful verification, even under retried requests.
func (s *service) issueResetToken(ctx context.Context, ident domain.Identity) (string, error) {
	proven, err := s.verifier.ConsumeVerified(ctx, ident, domain.PurposeResetPassword)
	if err != nil {
		return "", err
	}
	if !proven {
		return "", fmt.Errorf("identity not verified for reset: %w", domain.ErrUnauthorized)
	}
	token, err := s.tokens.IssueResetToken(ident.Value)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	slog.Info("reset token issued", "identity", ident.Value)
	return token, nil
}

// ApplyReset verifies the reset-authorization token and sets the new
// password. Every failure cause, including an unknown user, collapses into
// the generic unauthorized error the token verifier returns.
func (s *service) ApplyReset(ctx context.Context, resetToken, newPassword string) error {
	identityValue, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		return err
	}
	ident, err := identity.Normalize(identityValue)
	if err != nil {
		slog.Info("reset token carried invalid identity", "identity", identityValue)
		return domain.ErrUnauthorized
	}
	user, err := s.users.GetByIdentity(ctx, ident)
	if err != nil {
		slog.Info("reset token for unknown user", "identity", ident.Value)
		return domain.ErrUnauthorized
	}
	if err := s.setPassword(ctx, user.UserID, newPassword); err != nil {
		return err
	}
	slog.Info("password reset applied", "user_id", user.UserID)
	return nil
}

// SetFirstPassword sets a password on an account that never had one.
func (s *service) SetFirstPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasUsablePassword() {
		return fmt.Errorf("password already set: %w", domain.ErrForbidden)
	}
	return s.setPassword(ctx, userID, newPassword)
}

// ChangePassword replaces an existing password after checking the old one.
func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasUsablePassword() {
		return fmt.Errorf("change password: %w", domain.ErrPasswordNotSet)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return fmt.Errorf("change password: %w", domain.ErrIncorrectPassword)
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *service) setPassword(ctx context.Context, userID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

// dispatch sends the reset artifact: links for email identities, codes for
// phones.
func (s *service) dispatch(ctx context.Context, ident domain.Identity) error {
	purpose := domain.PurposeResetPassword
	if ident.IsEmail() {
		token, err := s.links.Issue(ident, purpose)
		if err != nil {
			return err
		}
		q := url.Values{
			"email":   {ident.Value},
			"token":   {token},
			"purpose": {string(purpose)},
		}
		link := s.linkBase + "/verify-link?" + q.Encode()
		s.notifier.SendEmail(ident.Value, "Reset your password",
			"Follow this link to reset your password:\n\n"+link+"\n\nThe link is valid for 15 minutes.")
		slog.Info("password reset link sent", "identity", ident.Value)
		return nil
	}
	code, err := s.verifier.IssueCode(ctx, ident, purpose)
	if err != nil {
		return err
	}
	s.notifier.SendSMS(ident.Value, "Your password reset code: "+code)
	slog.Info("password reset otp sent", "identity", ident.Value)
	return nil
}
