// Package notify decouples outbound message delivery from the flows that
// trigger it. Sends run in a background goroutine with a bounded retry
// budget; issuing calls return immediately and delivery failures are logged,
// never surfaced to the end user.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

const (
	maxAttempts = 3
	retryDelay  = 5 * time.Second
)

// Dispatcher wraps the concrete senders with async bounded-retry dispatch.
type Dispatcher struct {
	mailer Mailer
	sms    SMSSender
	// sleep is swapped out in tests to avoid real delays.
	sleep func(time.Duration)
}

// NewDispatcher wraps the senders. A nil sender is replaced with one that
// drops and logs, so a degraded startup (no SNS credentials, no SMTP host)
// downgrades delivery instead of panicking inside a dispatch goroutine.
func NewDispatcher(mailer Mailer, sms SMSSender) *Dispatcher {
	if mailer == nil {
		mailer = dropMailer{}
	}
	if sms == nil {
		sms = dropSMS{}
	}
	return &Dispatcher{mailer: mailer, sms: sms, sleep: time.Sleep}
}

type dropMailer struct{}

func (dropMailer) SendEmail(to, subject, body string) error {
	slog.Error("email dropped: no mailer configured", "to", to, "subject", subject)
	return nil
}

type dropSMS struct{}

func (dropSMS) SendSMS(_ context.Context, to, _ string) error {
	slog.Error("sms dropped: no sms sender configured", "to", to)
	return nil
}

// SendEmail dispatches an email in the background and returns immediately.
func (d *Dispatcher) SendEmail(to, subject, body string) {
	go d.retry("email", to, func() error {
		return d.mailer.SendEmail(to, subject, body)
	})
}

// SendSMS dispatches an SMS in the background and returns immediately.
func (d *Dispatcher) SendSMS(to, message string) {
	go d.retry("sms", to, func() error {
		return d.sms.SendSMS(context.Background(), to, message)
	})
}

func (d *Dispatcher) retry(channel, to string, send func() error) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = send(); err == nil {
			slog.Info("notification delivered", "channel", channel, "to", to, "attempt", attempt)
			return
		}
		slog.Warn("notification attempt failed", "channel", channel, "to", to, "attempt", attempt, "err", err)
		if attempt < maxAttempts {
			d.sleep(retryDelay)
		}
	}
	slog.Error("notification delivery gave up", "channel", channel, "to", to, "attempts", maxAttempts, "err", err)
}
