package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sparklebrand/brand-api/internal/domain"
)

var (
	// ErrQueueFull is returned by Push when a bounded queue has no room.
	ErrQueueFull = errors.New("notification queue full")
	// ErrEmpty is returned by Pop when nothing arrived within the wait.
	ErrEmpty = errors.New("notification queue empty")
)

// DecodeError is returned by Pop when an entry was removed from the queue
// but could not be decoded. Raw holds the entry as stored.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string { return "decode notification: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Queue buffers notifications between Notify and the workers.
type Queue interface {
	Push(ctx context.Context, n domain.Notification) error
	// Pop waits up to wait for a message; wait <= 0 does not block.
	Pop(ctx context.Context, wait time.Duration) (domain.Notification, error)
}

// ChannelQueue is a bounded in-process queue.
type ChannelQueue struct {
	ch chan domain.Notification
}

// NewChannelQueue creates a queue holding up to size messages.
func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{ch: make(chan domain.Notification, size)}
}

func (q *ChannelQueue) Push(_ context.Context, n domain.Notification) error {
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Pop(ctx context.Context, wait time.Duration) (domain.Notification, error) {
	if wait <= 0 {
		select {
		case n := <-q.ch:
			return n, nil
		default:
			return domain.Notification{}, ErrEmpty
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case n := <-q.ch:
		return n, nil
	case <-timer.C:
		return domain.Notification{}, ErrEmpty
	case <-ctx.Done():
		return domain.Notification{}, ctx.Err()
	}
}

// Len reports the number of buffered messages.
func (q *ChannelQueue) Len() int { return len(q.ch) }

// DefaultRedisKey is the list RedisQueue uses unless told otherwise.
const DefaultRedisKey = "brand-api:notifications"

// RedisQueue is a Redis list shared by every replica: LPUSH in, BRPOP out.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue uses key, or DefaultRedisKey when key is empty.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) (domain.Notification, error) {
	var raw string
	if wait <= 0 {
		v, err := q.client.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.Notification{}, ErrEmpty
		}
		if err != nil {
			return domain.Notification{}, fmt.Errorf("rpop %s: %w", q.key, err)
		}
		raw = v
	} else {
		res, err := q.client.BRPop(ctx, wait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.Notification{}, ErrEmpty
		}
		if err != nil {
			return domain.Notification{}, fmt.Errorf("brpop %s: %w", q.key, err)
		}
		raw = res[1]
	}

	var n domain.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return domain.Notification{}, &DecodeError{Raw: raw, Err: err}
	}
	return n, nil
}

// Len reports the list length.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
