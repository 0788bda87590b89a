// Package memory is a process-local store used for development and tests.
// Records are kept in insertion order and lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
)

// Store holds all three collections behind one lock.
type Store struct {
	mu          sync.RWMutex
	subscribers []domain.Subscriber
	byEmail     map[string]int
	purchases   []domain.Purchase
	checks      []domain.StatusCheck
}

// New creates an empty store.
func New() *Store {
	return &Store{byEmail: make(map[string]int)}
}

// Subscribers returns the subscriber repository view.
func (s *Store) Subscribers() *SubscriberRepo { return &SubscriberRepo{s} }

// Purchases returns the purchase repository view.
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s} }

// StatusChecks returns the status-check repository view.
func (s *Store) StatusChecks() *StatusRepo { return &StatusRepo{s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// SubscriberRepo implements subscription.Repository.
type SubscriberRepo struct{ s *Store }

func (r *SubscriberRepo) FindByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.byEmail[email]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	sub := r.s.subscribers[i]
	return &sub, nil
}

func (r *SubscriberRepo) InsertIfAbsent(_ context.Context, sub *domain.Subscriber) (*domain.Subscriber, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.byEmail[sub.Email]; ok {
		existing := r.s.subscribers[i]
		return &existing, false, nil
	}
	r.s.byEmail[sub.Email] = len(r.s.subscribers)
	r.s.subscribers = append(r.s.subscribers, *sub)
	return sub, true, nil
}

func (r *SubscriberRepo) List(_ context.Context, limit int) ([]domain.Subscriber, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return head(r.s.subscribers, limit), nil
}

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct{ s *Store }

func (r *PurchaseRepo) Insert(_ context.Context, p *domain.Purchase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.purchases = append(r.s.purchases, *p)
	return nil
}

func (r *PurchaseRepo) List(_ context.Context, limit int) ([]domain.Purchase, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return head(r.s.purchases, limit), nil
}

// StatusRepo implements status.Repository.
type StatusRepo struct{ s *Store }

func (r *StatusRepo) Insert(_ context.Context, sc *domain.StatusCheck) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.checks = append(r.s.checks, *sc)
	return nil
}

func (r *StatusRepo) List(_ context.Context, limit int) ([]domain.StatusCheck, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return head(r.s.checks, limit), nil
}

// head copies at most limit leading elements so callers never alias the
// store's backing arrays.
func head[T any](items []T, limit int) []T {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]T, limit)
	copy(out, items[:limit])
	return out
}
