package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// Notifier is the owner notification sink. It must not block on delivery
// and reports success as a bool only.
type Notifier interface {
	Notify(ctx context.Context, subject, body, recipient string) bool
}

// Recorder receives subscription outcomes for metrics. Optional.
type Recorder interface {
	SubscriptionRecorded(created bool)
}

// Result is the outcome of Subscribe.
type Result struct {
	Created    bool
	Subscriber *domain.Subscriber
}

// Service implements subscription business logic. It is safe for
// concurrent use if the repository is.
type Service struct {
	repo     Repository
	notifier Notifier
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// NewService creates a subscription service backed by the given repository.
func NewService(repo Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{repo: repo, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSubscriberSubject is the subject line of new subscriber notifications.
const NewSubscriberSubject = "🎉 New Subscriber - Free Viral Hook Checklist"

// Subscribe records email on the list. An address that is already present
// yields the existing record with Created=false. The email must already be
// validated.
func (s *Service) Subscribe(ctx context.Context, email string) (*Result, error) {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.record(false)
		return &Result{Created: false, Subscriber: existing}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("%w: lookup: %w", ErrSubscribeFailed, err)
	}

	stored, created, err := s.repo.InsertIfAbsent(ctx, domain.NewSubscriber(email, s.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: insert: %w", ErrSubscribeFailed, err)
	}
	s.record(created)
	if !created {
		// Lost a race with a concurrent signup for the same address.
		return &Result{Created: false, Subscriber: stored}, nil
	}

	if s.notifier != nil {
		body := fmt.Sprintf("New subscriber: %s\nSource: Free Viral Hook Checklist\nTime: %s",
			stored.Email, stored.SubscribedAt.Format(time.RFC3339))
		s.notifier.Notify(ctx, NewSubscriberSubject, body, "")
	}
	logger.Info("new email subscription", "email", stored.Email, "subscriber_id", stored.ID)

	return &Result{Created: true, Subscriber: stored}, nil
}

// List returns up to domain.ListCap subscribers.
func (s *Service) List(ctx context.Context) ([]domain.Subscriber, error) {
	subs, err := s.repo.List(ctx, domain.ListCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	if len(subs) > domain.ListCap {
		subs = subs[:domain.ListCap]
	}
	if subs == nil {
		subs = []domain.Subscriber{}
	}
	return subs, nil
}

func (s *Service) record(created bool) {
	if s.recorder != nil {
		s.recorder.SubscriptionRecorded(created)
	}
}
