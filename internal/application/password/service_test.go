package password

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/idgate/internal/application/verification"
	"github.com/idgate/internal/config"
	"github.com/idgate/internal/domain"
	jwtinfra "github.com/idgate/internal/infrastructure/jwt"
	redisinfra "github.com/idgate/internal/infrastructure/redis"
	"github.com/idgate/internal/pkg/linktoken"
)

// --- mocks ---

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) GetByIdentity(ctx context.Context, ident domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, ident)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserRepo) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type fakeNotifier struct {
	emails []string
	sms    []string
}

func (f *fakeNotifier) SendEmail(to, subject, body string) { f.emails = append(f.emails, body) }
func (f *fakeNotifier) SendSMS(to, message string)         { f.sms = append(f.sms, message) }

func (f *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sms)
	last := f.sms[len(f.sms)-1]
	idx := strings.LastIndex(last, ": ")
	require.GreaterOrEqual(t, idx, 0)
	return last[idx+2:]
}

func (f *fakeNotifier) lastLinkToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.emails)
	body := f.emails[len(f.emails)-1]
	start := strings.Index(body, "token=")
	require.GreaterOrEqual(t, start, 0)
	token := body[start+len("token="):]
	if end := strings.IndexAny(token, "&\n"); end >= 0 {
		token = token[:end]
	}
	return token
}

// --- helpers ---

func newTestService(t *testing.T, users *mockUserRepo, notifier *fakeNotifier) Service {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redisinfra.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewService(ServiceDeps{
		UserRepo:  users,
		Verifier:  verification.NewManager(store, 2*time.Minute, 2*time.Minute, 10*time.Minute),
		LinkCodec: linktoken.NewCodec("test-secret"),
		Tokens: jwtinfra.NewProvider(&config.Config{
			SecretKey:     "test-secret",
			ResetTokenTTL: 30 * time.Minute,
		}),
		Notifier:    notifier,
		LinkMaxAge:  15 * time.Minute,
		LinkBaseURL: "http://localhost:3000",
	})
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- RequestReset ---

func TestRequestReset_NoAccountProbe(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	// The response for an unknown identity is indistinguishable from a known
	// one, and nothing is sent.
	res, err := svc.RequestReset(context.Background(), "09123456789")
	require.NoError(t, err)
	assert.Equal(t, domain.PurposeResetPassword, res.Purpose)
	assert.Equal(t, domain.ChannelSMS, res.Channel)
	assert.Empty(t, notifier.sms)
	assert.Empty(t, notifier.emails)
}

func TestRequestReset_PhoneSendsCode(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Phone: "09123456789"}, nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	res, err := svc.RequestReset(context.Background(), "09123456789")
	require.NoError(t, err)
	assert.Equal(t, "/v1/password/verify-code", res.NextURL)
	require.Len(t, notifier.sms, 1)
	assert.Len(t, notifier.lastCode(t), 6)
}

func TestRequestReset_EmailSendsLink(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Email: "alice@example.com"}, nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	res, err := svc.RequestReset(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "/v1/password/verify-link", res.NextURL)
	assert.Equal(t, domain.ChannelEmail, res.Channel)
	require.Len(t, notifier.emails, 1)
	assert.Contains(t, notifier.emails[0], "token=")
}

func TestRequestReset_RepeatBlockedByCooldown(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Phone: "09123456789"}, nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	_, err := svc.RequestReset(context.Background(), "09123456789")
	require.NoError(t, err)

	_, err = svc.RequestReset(context.Background(), "09123456789")
	require.Error(t, err)
	var cooldown *domain.CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Greater(t, cooldown.Seconds, 0)
	assert.Len(t, notifier.sms, 1)
}

// --- VerifyResetCode / VerifyResetLink / ApplyReset ---

func TestResetFlow_EndToEnd(t *testing.T) {
	oldHash := hash(t, "old-password")
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Phone: "09123456789", PasswordHash: oldHash}, nil)
	users.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	_, err := svc.RequestReset(context.Background(), "09123456789")
	require.NoError(t, err)

	resetToken, err := svc.VerifyResetCode(context.Background(), "09123456789", notifier.lastCode(t))
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, svc.ApplyReset(context.Background(), resetToken, "new-password-1"))

	// The stored hash was replaced and matches the new password.
	updates := users.Calls[len(users.Calls)-1].Arguments.Get(2).(map[string]interface{})
	newHash, ok := updates["password_hash"].(string)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password-1")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("old-password")))
}

func TestVerifyResetCode_WrongCode(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Phone: "09123456789"}, nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	_, err := svc.RequestReset(context.Background(), "09123456789")
	require.NoError(t, err)

	wrong := "000000"
	if notifier.lastCode(t) == wrong {
		wrong = "000001"
	}
	_, err = svc.VerifyResetCode(context.Background(), "09123456789", wrong)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeMismatch))
}

func TestVerifyResetLink_IssuesTokenOnceOnly(t *testing.T) {
	users := &mockUserRepo{}
	users.On("GetByIdentity", mock.Anything, mock.Anything).
		Return(&domain.User{UserID: "u1", Email: "alice@example.com"}, nil)
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	_, err := svc.RequestReset(context.Background(), "alice@example.com")
	require.NoError(t, err)

	token := notifier.lastLinkToken(t)
	resetToken, err := svc.VerifyResetLink(context.Background(), "alice@example.com", token)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	_, err = svc.VerifyResetLink(context.Background(), "alice@example.com", token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestVerifyResetLink_RejectsAuthLink(t *testing.T) {
	users := &mockUserRepo{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, users, notifier)

	// A login/register link must not authorize a password reset.
	ident := domain.Identity{Value: "alice@example.com", Kind: domain.IdentityEmail}
	authToken, err := linktoken.NewCodec("test-secret").Issue(ident, domain.PurposeRegister)
	require.NoError(t, err)

	_, err = svc.VerifyResetLink(context.Background(), "alice@example.com", authToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestApplyReset_GarbageToken(t *testing.T) {
	svc := newTestService(t, &mockUserRepo{}, &fakeNotifier{})

	err := svc.ApplyReset(context.Background(), "not-a-jwt", "new-password-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestApplyReset_SessionTokenRejected(t *testing.T) {
	provider := jwtinfra.NewProvider(&config.Config{
		SecretKey:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   30 * time.Minute,
	})
	pair, err := provider.IssuePair("u1")
	require.NoError(t, err)

	svc := newTestService(t, &mockUserRepo{}, &fakeNotifier{})
	err = svc.ApplyReset(context.Background(), pair.Access, "new-password-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- SetFirstPassword / ChangePassword ---

func TestSetFirstPassword(t *testing.T) {
	users := &mockUserRepo{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	users.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	svc := newTestService(t, users, &fakeNotifier{})

	require.NoError(t, svc.SetFirstPassword(context.Background(), "u1", "first-password"))
	users.AssertCalled(t, "Update", mock.Anything, "u1", mock.Anything)
}

func TestSetFirstPassword_AlreadySet(t *testing.T) {
	users := &mockUserRepo{}
	users.On("Get", mock.Anything, "u1").
		Return(&domain.User{UserID: "u1", PasswordHash: hash(t, "existing")}, nil)
	svc := newTestService(t, users, &fakeNotifier{})

	err := svc.SetFirstPassword(context.Background(), "u1", "first-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestChangePassword(t *testing.T) {
	users := &mockUserRepo{}
	users.On("Get", mock.Anything, "u1").
		Return(&domain.User{UserID: "u1", PasswordHash: hash(t, "old-password")}, nil)
	users.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	svc := newTestService(t, users, &fakeNotifier{})

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "old-password", "new-password-1"))
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	users := &mockUserRepo{}
	users.On("Get", mock.Anything, "u1").
		Return(&domain.User{UserID: "u1", PasswordHash: hash(t, "old-password")}, nil)
	svc := newTestService(t, users, &fakeNotifier{})

	err := svc.ChangePassword(context.Background(), "u1", "wrong", "new-password-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIncorrectPassword))
}

func TestChangePassword_NoPasswordSet(t *testing.T) {
	users := &mockUserRepo{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	svc := newTestService(t, users, &fakeNotifier{})

	err := svc.ChangePassword(context.Background(), "u1", "old", "new-password-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPasswordNotSet))
}
