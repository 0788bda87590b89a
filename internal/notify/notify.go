// Package notify delivers owner notifications about new subscribers and
// purchases. Delivery is best effort: callers get a bool and never an error,
// and nothing in here may fail the request that triggered it.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// Notifier sends one message. An empty recipient means the owner address.
type Notifier interface {
	Notify(ctx context.Context, subject, body, recipient string) bool
}

// Runner is a Notifier with a lifecycle.
type Runner interface {
	Notifier
	Start(ctx context.Context)
	Close(ctx context.Context) error
}

// Sink performs the actual delivery of a message.
type Sink interface {
	Send(ctx context.Context, n domain.Notification) error
}

// Recorder receives delivery outcomes, e.g. for metrics.
type Recorder interface {
	NotificationSent()
	NotificationFailed()
	NotificationDeadLettered()
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent()         {}
func (nopRecorder) NotificationFailed()       {}
func (nopRecorder) NotificationDeadLettered() {}

// Options tune delivery. Zero values take defaults.
type Options struct {
	OwnerEmail  string
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	PollWait    time.Duration
	SendTimeout time.Duration
	Recorder    Recorder
	DeadLetter  DeadLetter
}

func (o Options) withDefaults() Options {
	if o.OwnerEmail == "" {
		o.OwnerEmail = domain.DefaultOwnerEmail
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.PollWait <= 0 {
		o.PollWait = time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 15 * time.Second
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.DeadLetter == nil {
		o.DeadLetter = LogDeadLetter{}
	}
	return o
}

func newNotification(subject, body, recipient, owner string) domain.Notification {
	if recipient == "" {
		recipient = owner
	}
	return domain.Notification{
		ID:        uuid.NewString(),
		To:        recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// safeSend calls sink.Send, converting a panic into an error.
func safeSend(ctx context.Context, sink Sink, n domain.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Send(ctx, n)
}

func recoverNotify(ok *bool, subject string) {
	if r := recover(); r != nil {
		logger.Error("notification panicked", "subject", subject, "panic", fmt.Sprint(r))
		*ok = false
	}
}

// Sync delivers inline, once, on the caller's goroutine.
type Sync struct {
	sink Sink
	opts Options
}

// NewSync creates a synchronous notifier.
func NewSync(sink Sink, opts Options) *Sync {
	return &Sync{sink: sink, opts: opts.withDefaults()}
}

// Notify sends immediately. The send is detached from ctx cancellation so a
// client disconnect does not abort it, but it is still bounded by SendTimeout.
func (s *Sync) Notify(ctx context.Context, subject, body, recipient string) (ok bool) {
	defer recoverNotify(&ok, subject)

	n := newNotification(subject, body, recipient, s.opts.OwnerEmail)
	n.Attempts = 1
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SendTimeout)
	defer cancel()

	if err := safeSend(sendCtx, s.sink, n); err != nil {
		s.opts.Recorder.NotificationFailed()
		logger.Error("notification failed", "id", n.ID, "to", n.To, "subject", n.Subject, "error", err.Error())
		return false
	}
	s.opts.Recorder.NotificationSent()
	return true
}

func (s *Sync) Start(context.Context)       {}
func (s *Sync) Close(context.Context) error { return nil }
