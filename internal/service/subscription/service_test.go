package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklebrand/brand-api/internal/domain"
)

// mockRepo is an in-memory repository for testing.
type mockRepo struct {
	mu        sync.Mutex
	byEmail   map[string]*domain.Subscriber
	order     []string
	findErr   error
	insertErr error
	// hideOnFind makes FindByEmail miss, forcing the insert path.
	hideOnFind bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{byEmail: make(map[string]*domain.Subscriber)}
}

func (m *mockRepo) FindByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.byEmail[email]
	if !ok || m.hideOnFind {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) InsertIfAbsent(_ context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, false, m.insertErr
	}
	if existing, ok := m.byEmail[s.Email]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *s
	m.byEmail[s.Email] = &cp
	m.order = append(m.order, s.Email)
	return s, true, nil
}

func (m *mockRepo) List(_ context.Context, limit int) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, email := range m.order {
		if len(out) == limit {
			break
		}
		out = append(out, *m.byEmail[email])
	}
	return out, nil
}

type notifyCall struct {
	subject, body, recipient string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	ok    bool
}

func (f *fakeNotifier) Notify(_ context.Context, subject, body, recipient string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{subject, body, recipient})
	return f.ok
}

type countingRecorder struct {
	mu               sync.Mutex
	created, existed int
}

func (c *countingRecorder) SubscriptionRecorded(created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if created {
		c.created++
	} else {
		c.existed++
	}
}

func fixedClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestSubscribeTwice(t *testing.T) {
	repo := newMockRepo()
	notifier := &fakeNotifier{ok: true}
	rec := &countingRecorder{}
	svc := NewService(repo, notifier, WithClock(fixedClock), WithRecorder(rec))
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "a@b.com", first.Subscriber.Email)
	assert.Equal(t, domain.SubscriberSource, first.Subscriber.Source)
	assert.Equal(t, domain.SubscriberActive, first.Subscriber.Status)
	assert.Equal(t, fixedClock(), first.Subscriber.SubscribedAt)
	assert.NotEmpty(t, first.Subscriber.ID)

	second, err := svc.Subscribe(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Subscriber.ID, second.Subscriber.ID)

	subs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.Len(t, notifier.calls, 1, "only new subscribers notify the owner")
	assert.Equal(t, NewSubscriberSubject, notifier.calls[0].subject)
	assert.Contains(t, notifier.calls[0].body, "New subscriber: a@b.com")
	assert.Empty(t, notifier.calls[0].recipient)

	assert.Equal(t, 1, rec.created)
	assert.Equal(t, 1, rec.existed)
}

func TestSubscribeNotificationFailureIsIgnored(t *testing.T) {
	svc := NewService(newMockRepo(), &fakeNotifier{ok: false})

	res, err := svc.Subscribe(context.Background(), "fan@example.com")
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestSubscribeWithoutNotifier(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	res, err := svc.Subscribe(context.Background(), "fan@example.com")
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestSubscribeLostRaceReturnsWinner(t *testing.T) {
	repo := newMockRepo()
	notifier := &fakeNotifier{ok: true}
	svc := NewService(repo, notifier)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "race@example.com")
	require.NoError(t, err)

	repo.hideOnFind = true
	second, err := svc.Subscribe(ctx, "race@example.com")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Subscriber.ID, second.Subscriber.ID)
	assert.Len(t, notifier.calls, 1)
}

func TestSubscribeConcurrentSameEmail(t *testing.T) {
	repo := newMockRepo()
	notifier := &fakeNotifier{ok: true}
	svc := NewService(repo, notifier)

	const n = 25
	var wg sync.WaitGroup
	results := make(chan *Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Subscribe(context.Background(), "same@example.com")
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	ids := map[string]bool{}
	for res := range results {
		if res.Created {
			created++
		}
		ids[res.Subscriber.ID] = true
	}
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Len(t, repo.order, 1)
}

func TestSubscribeStoreFailures(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepo()
	repo.findErr = errors.New("connection reset by peer")
	_, err := NewService(repo, nil).Subscribe(ctx, "a@b.com")
	require.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Contains(t, err.Error(), "connection reset")

	repo = newMockRepo()
	repo.insertErr = errors.New("write concern timeout")
	notifier := &fakeNotifier{ok: true}
	_, err = NewService(repo, notifier).Subscribe(ctx, "a@b.com")
	require.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Empty(t, notifier.calls)
	assert.Empty(t, repo.order)
}

func TestListCapsAtListCap(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < domain.ListCap+5; i++ {
		_, err := svc.Subscribe(ctx, fmt.Sprintf("fan%d@example.com", i))
		require.NoError(t, err)
	}

	subs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, domain.ListCap)
}

func TestListEmptyIsNotNil(t *testing.T) {
	subs, err := NewService(newMockRepo(), nil).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}
