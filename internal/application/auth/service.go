package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/idgate/internal/application/session"
	"github.com/idgate/internal/application/verification"
	"github.com/idgate/internal/domain"
	"github.com/idgate/internal/pkg/id"
	"github.com/idgate/internal/pkg/identity"
	"github.com/idgate/internal/pkg/linktoken"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the user-lookup capability the engine consumes. The
// engine does not own user storage.
type UserRepository interface {
	GetByIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Notifier delivers codes and links out of band. Calls are fire-and-forget;
// the flows never block on delivery.
type Notifier interface {
	SendEmail(to, subject, body string)
	SendSMS(to, message string)
}

type SubmitIdentityRequest struct {
	Identity string `json:"identity" validate:"required"`
}

type VerifyCodeRequest struct {
	Identity string `json:"identity" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

type VerifyLinkRequest struct {
	Identity string `json:"identity" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

type PasswordLoginRequest struct {
	Identity string `json:"identity" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SubmitResult tells the client what was sent and where to go next.
type SubmitResult struct {
	Purpose domain.Purpose         `json:"purpose"`
	Channel domain.DeliveryChannel `json:"channel"`
	NextURL string                 `json:"next_url"`
}

// AuthResult is the outcome of a successful verification or password login.
type AuthResult struct {
	User   *domain.User     `json:"user"`
	Action string           `json:"action"` // "login" | "register"
	Tokens domain.TokenPair `json:"tokens"`
}

type Service interface {
	SubmitIdentity(ctx context.Context, rawIdentity string) (*SubmitResult, error)
	Resend(ctx context.Context, rawIdentity string) (*SubmitResult, error)
	VerifyCode(ctx context.Context, rawIdentity, otp string) (*AuthResult, error)
	VerifyLink(ctx context.Context, rawIdentity, token string) (*AuthResult, error)
	LoginWithPassword(ctx context.Context, rawIdentity, password string) (*AuthResult, error)
}

// ServiceDeps bundles the collaborators of the auth service.
type ServiceDeps struct {
	UserRepo    UserRepository
	Verifier    *verification.Manager
	LinkCodec   *linktoken.Codec
	Sessions    session.Service
	Notifier    Notifier
	LinkMaxAge  time.Duration
	LinkBaseURL string
}

type service struct {
	users      UserRepository
	verifier   *verification.Manager
	links      *linktoken.Codec
	sessions   session.Service
	notifier   Notifier
	linkMaxAge time.Duration
	linkBase   string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:      deps.UserRepo,
		verifier:   deps.Verifier,
		links:      deps.LinkCodec,
		sessions:   deps.Sessions,
		notifier:   deps.Notifier,
		linkMaxAge: deps.LinkMaxAge,
		linkBase:   deps.LinkBaseURL,
	}
}

// SubmitIdentity normalizes the identity, resolves the purpose, dispatches an
// OTP or confirmation link, and arms the resend cooldown.
func (s *service) SubmitIdentity(ctx context.Context, rawIdentity string) (*SubmitResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	purpose, err := s.resolvePurpose(ctx, ident, false)
	if err != nil {
		return nil, err
	}
	result, err := s.dispatch(ctx, ident, purpose)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.StartCooldown(ctx, ident, purpose); err != nil {
		slog.Warn("failed to start resend cooldown", "identity", ident.Value, "err", err)
	}
	return result, nil
}

// Resend re-runs the submission once the cooldown allows it. A blocked resend
// is reported as a CooldownError carrying the remaining wait, not a fault.
func (s *service) Resend(ctx context.Context, rawIdentity string) (*SubmitResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	purpose, err := s.resolvePurpose(ctx, ident, false)
	if err != nil {
		return nil, err
	}
	allowed, remaining, err := s.verifier.CanResend(ctx, ident, purpose)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &domain.CooldownError{Seconds: remaining}
	}
	result, err := s.dispatch(ctx, ident, purpose)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.StartCooldown(ctx, ident, purpose); err != nil {
		slog.Warn("failed to start resend cooldown", "identity", ident.Value, "err", err)
	}
	return result, nil
}

// VerifyCode consumes the one-time code and logs the user in, creating the
// account first when the purpose resolved to registration.
func (s *service) VerifyCode(ctx context.Context, rawIdentity, otp string) (*AuthResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	purpose, err := s.resolvePurpose(ctx, ident, false)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.VerifyCode(ctx, ident, otp, purpose); err != nil {
		return nil, err
	}
	return s.loginOrRegister(ctx, ident)
}

// VerifyLink validates a confirmation-link token, enforces single use via the
// embedded token ID, and logs the user in or registers them.
func (s *service) VerifyLink(ctx context.Context, rawIdentity, token string) (*AuthResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	payload, err := s.links.Verify(token, s.linkMaxAge)
	if err != nil {
		return nil, err
	}
	if payload.Identity != ident.Value {
		return nil, fmt.Errorf("link token issued for another identity: %w", domain.ErrInvalidToken)
	}
	// A reset link authorizes a password mutation, never a login.
	if payload.Purpose == string(domain.PurposeResetPassword) {
		return nil, fmt.Errorf("link token issued for password reset: %w", domain.ErrInvalidToken)
	}
	fresh, err := s.verifier.ConsumeLinkTokenID(ctx, payload.TokenID, s.linkMaxAge)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, fmt.Errorf("link token replayed: %w", domain.ErrInvalidToken)
	}
	return s.loginOrRegister(ctx, ident)
}

// LoginWithPassword authenticates with identity + password. "No such user",
// "no password set", and "wrong password" stay distinct in the error chain
// but the transport collapses them into near-identical client messages.
func (s *service) LoginWithPassword(ctx context.Context, rawIdentity, password string) (*AuthResult, error) {
	ident, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByIdentity(ctx, ident)
	if err != nil {
		return nil, fmt.Errorf("password login for %s: %w", ident.Value, domain.ErrNotFound)
	}
	if !user.HasUsablePassword() {
		return nil, fmt.Errorf("password login for %s: %w", ident.Value, domain.ErrPasswordNotSet)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("password login for %s: %w", ident.Value, domain.ErrIncorrectPassword)
	}
	tokens, err := s.sessions.IssuePair(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	slog.Info("user authenticated with password", "user_id", user.UserID)
	return &AuthResult{User: user, Action: "login", Tokens: tokens}, nil
}

// resolvePurpose derives the intent fresh on every call. Reset context
// short-circuits; otherwise existence of the user decides login vs register.
func (s *service) resolvePurpose(ctx context.Context, ident domain.Identity, reset bool) (domain.Purpose, error) {
	if reset {
		return domain.PurposeResetPassword, nil
	}
	if _, err := s.users.GetByIdentity(ctx, ident); err != nil {
		if isNotFound(err) {
			return domain.PurposeRegister, nil
		}
		return "", err
	}
	return domain.PurposeLogin, nil
}

// dispatch sends the verification artifact for (identity, purpose):
// registration and reset by email get a confirmation link, everything else a
// one-time code.
func (s *service) dispatch(ctx context.Context, ident domain.Identity, purpose domain.Purpose) (*SubmitResult, error) {
	if ident.IsEmail() && purpose != domain.PurposeLogin {
		token, err := s.links.Issue(ident, purpose)
		if err != nil {
			return nil, err
		}
		link := s.buildLink(ident, token, purpose)
		s.notifier.SendEmail(ident.Value, "Confirm your email",
			"Follow this link to continue:\n\n"+link+"\n\nThe link is valid for 15 minutes.")
		slog.Info("confirmation link sent", "identity", ident.Value, "purpose", purpose)
		return &SubmitResult{Purpose: purpose, Channel: domain.ChannelEmail, NextURL: nextURL(purpose, true)}, nil
	}

	code, err := s.verifier.IssueCode(ctx, ident, purpose)
	if err != nil {
		return nil, err
	}
	if ident.IsEmail() {
		s.notifier.SendEmail(ident.Value, "Verification code", "Your verification code: "+code)
		return &SubmitResult{Purpose: purpose, Channel: domain.ChannelEmail, NextURL: nextURL(purpose, false)}, nil
	}
	s.notifier.SendSMS(ident.Value, "Your verification code: "+code)
	return &SubmitResult{Purpose: purpose, Channel: domain.ChannelSMS, NextURL: nextURL(purpose, false)}, nil
}

func (s *service) buildLink(ident domain.Identity, token string, purpose domain.Purpose) string {
	q := url.Values{
		"email":   {ident.Value},
		"token":   {token},
		"purpose": {string(purpose)},
	}
	return s.linkBase + "/verify-link?" + q.Encode()
}

func nextURL(purpose domain.Purpose, link bool) string {
	base := "/v1/auth/"
	if purpose == domain.PurposeResetPassword {
		base = "/v1/password/"
	}
	if link {
		return base + "verify-link"
	}
	return base + "verify-code"
}

func (s *service) loginOrRegister(ctx context.Context, ident domain.Identity) (*AuthResult, error) {
	user, err := s.users.GetByIdentity(ctx, ident)
	action := "login"
	switch {
	case err == nil:
	case isNotFound(err):
		user, err = s.register(ctx, ident)
		if err != nil {
			return nil, err
		}
		action = "register"
	default:
		return nil, err
	}
	tokens, err := s.sessions.IssuePair(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	slog.Info("user authenticated", "user_id", user.UserID, "action", action)
	return &AuthResult{User: user, Action: action, Tokens: tokens}, nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

func (s *service) register(ctx context.Context, ident domain.Identity) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		UserID:    id.New(),
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ident.IsEmail() {
		user.Email = ident.Value
	} else {
		user.Phone = ident.Value
	}
	if err := s.users.Put(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user_id", user.UserID)
	return user, nil
}
