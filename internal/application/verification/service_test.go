package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idgate/internal/domain"
	redisinfra "github.com/idgate/internal/infrastructure/redis"
)

var phone = domain.Identity{Value: "09123456789", Kind: domain.IdentityPhone}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisinfra.NewStore(rdb)
	return NewManager(store, 2*time.Minute, 2*time.Minute, 10*time.Minute), mr
}

func TestIssueAndVerifyCode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, m.VerifyCode(ctx, phone, code, domain.PurposeLogin))

	// Single use: the same code is gone after a successful verify.
	err = m.VerifyCode(ctx, phone, code, domain.PurposeLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeExpired))
}

func TestVerifyCode_MismatchKeepsCode(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	err = m.VerifyCode(ctx, phone, wrong, domain.PurposeLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeMismatch))

	// A later correct attempt within the TTL still succeeds.
	require.NoError(t, m.VerifyCode(ctx, phone, code, domain.PurposeLogin))
}

func TestVerifyCode_Expired(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	code, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)

	mr.FastForward(3 * time.Minute)

	err = m.VerifyCode(ctx, phone, code, domain.PurposeLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeExpired))
}

func TestVerifyCode_MalformedInput(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, bad := range []string{"", "12345", "1234567", "12345x"} {
		err := m.VerifyCode(ctx, phone, bad, domain.PurposeLogin)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, domain.ErrCodeMismatch), bad)
	}
}

func TestIssueCode_OverwritesPrevious(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	second, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)

	if first != second {
		err = m.VerifyCode(ctx, phone, first, domain.PurposeLogin)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCodeMismatch))
	}
	require.NoError(t, m.VerifyCode(ctx, phone, second, domain.PurposeLogin))
}

func TestCodesAreScopedByPurpose(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	code, err := m.IssueCode(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)

	err = m.VerifyCode(ctx, phone, code, domain.PurposeResetPassword)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeExpired))
}

func TestResendCooldown(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	ok, wait, err := m.CanResend(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, wait)

	require.NoError(t, m.StartCooldown(ctx, phone, domain.PurposeLogin))

	ok, wait, err = m.CanResend(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, wait, 0)

	mr.FastForward(2 * time.Minute)

	ok, _, err = m.CanResend(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanResend_SubSecondRemainderReportsOneSecond(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := NewManager(redisinfra.NewStore(rdb), 2*time.Minute, 500*time.Millisecond, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, m.StartCooldown(ctx, phone, domain.PurposeLogin))

	ok, wait, err := m.CanResend(ctx, phone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, wait)
}

func TestVerifiedFlag_ConsumedOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	ok, err := m.ConsumeVerified(ctx, phone, domain.PurposeResetPassword)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.MarkVerified(ctx, phone, domain.PurposeResetPassword))

	ok, err = m.ConsumeVerified(ctx, phone, domain.PurposeResetPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.ConsumeVerified(ctx, phone, domain.PurposeResetPassword)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeLinkTokenID(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	fresh, err := m.ConsumeLinkTokenID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = m.ConsumeLinkTokenID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)
}
