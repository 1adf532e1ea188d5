package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyMailer struct {
	mu       sync.Mutex
	calls    int
	failures int
	done     chan struct{}
}

func (m *flakyMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("smtp unavailable")
	}
	close(m.done)
	return nil
}

func (m *flakyMailer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingSMS struct {
	done chan string
}

func (s *recordingSMS) SendSMS(ctx context.Context, to, message string) error {
	s.done <- to + "|" + message
	return nil
}

func newTestDispatcher(mailer Mailer, sms SMSSender) *Dispatcher {
	d := NewDispatcher(mailer, sms)
	d.sleep = func(time.Duration) {}
	return d
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSendEmail_FirstAttemptSucceeds(t *testing.T) {
	mailer := &flakyMailer{done: make(chan struct{})}
	d := newTestDispatcher(mailer, nil)

	d.SendEmail("alice@example.com", "subject", "body")
	wait(t, mailer.done)
	assert.Equal(t, 1, mailer.callCount())
}

func TestSendEmail_RetriesTransientFailure(t *testing.T) {
	mailer := &flakyMailer{failures: 2, done: make(chan struct{})}
	d := newTestDispatcher(mailer, nil)

	d.SendEmail("alice@example.com", "subject", "body")
	wait(t, mailer.done)
	assert.Equal(t, 3, mailer.callCount())
}

func TestSendEmail_GivesUpAfterMaxAttempts(t *testing.T) {
	mailer := &flakyMailer{failures: 100, done: make(chan struct{})}
	attempts := make(chan struct{}, 10)
	d := NewDispatcher(mailer, nil)
	d.sleep = func(time.Duration) { attempts <- struct{}{} }

	d.SendEmail("alice@example.com", "subject", "body")

	// Two sleeps separate the three attempts; after the second the
	// dispatcher stops retrying.
	for i := 0; i < maxAttempts-1; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for retry")
		}
	}
	assert.Eventually(t, func() bool { return mailer.callCount() == maxAttempts },
		2*time.Second, 10*time.Millisecond)
}

// A dispatcher built without concrete senders (degraded startup) must drop
// deliveries, not dereference a nil interface inside the dispatch goroutine.
func TestNilSendersDropInsteadOfPanicking(t *testing.T) {
	d := NewDispatcher(nil, nil)
	d.sleep = func(time.Duration) {}

	assert.NotPanics(t, func() {
		d.retry("sms", "09123456789", func() error {
			return d.sms.SendSMS(context.Background(), "09123456789", "Your verification code: 123456")
		})
		d.retry("email", "alice@example.com", func() error {
			return d.mailer.SendEmail("alice@example.com", "subject", "body")
		})
	})
}

func TestSendSMS_Delivers(t *testing.T) {
	sms := &recordingSMS{done: make(chan string, 1)}
	d := newTestDispatcher(nil, sms)

	d.SendSMS("09123456789", "Your verification code: 123456")

	select {
	case got := <-sms.done:
		require.Equal(t, "09123456789|Your verification code: 123456", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
