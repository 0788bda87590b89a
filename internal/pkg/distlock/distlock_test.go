package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "migrate", time.Minute)
	b := NewRedisLock(client, "migrate", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own the key, so its release is a no-op.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("brand-api:lock:migrate"))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("brand-api:lock:migrate"))
}

func TestRedisLockExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	ok, err := NewRedisLock(client, "migrate", time.Second).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewRedisLock(client, "migrate", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "migrate")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLockSelectsBackend(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLock{}, NewLock(client, db, "k", time.Minute))
	assert.IsType(t, &PGAdvisoryLock{}, NewLock(nil, db, "k", time.Minute))
	assert.IsType(t, &LocalLock{}, NewLock(nil, nil, "k", time.Minute))
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	lock := NewLocalLock("run-test")

	ran := false
	err := Run(ctx, lock, func(ctx context.Context) error {
		ran = true
		// Nested attempt on the same key must not get in.
		return Run(ctx, NewLocalLock("run-test"), func(context.Context) error { return nil })
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// Released after the first Run returned.
	boom := errors.New("boom")
	err = Run(ctx, lock, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
