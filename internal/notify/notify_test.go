package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/httpretry"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

type fakeSink struct {
	mu       sync.Mutex
	failures int // fail this many sends before succeeding; -1 fails forever
	sent     []domain.Notification
	calls    int
	delay    time.Duration
}

func (s *fakeSink) Send(ctx context.Context, n domain.Notification) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return errors.New("smtp unavailable")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *fakeSink) delivered() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.sent...)
}

type panicSink struct{}

func (panicSink) Send(context.Context, domain.Notification) error { panic("template exploded") }

type fakeDeadLetter struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (d *fakeDeadLetter) Store(_ context.Context, n domain.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, n)
	return nil
}

func (d *fakeDeadLetter) stored() []domain.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Notification(nil), d.items...)
}

type countingRecorder struct {
	sent, failed, dead atomic.Int32
}

func (r *countingRecorder) NotificationSent()         { r.sent.Add(1) }
func (r *countingRecorder) NotificationFailed()       { r.failed.Add(1) }
func (r *countingRecorder) NotificationDeadLettered() { r.dead.Add(1) }

func fastOptions(dl DeadLetter, rec Recorder) Options {
	return Options{
		OwnerEmail:  "owner@example.com",
		Workers:     2,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		PollWait:    10 * time.Millisecond,
		DeadLetter:  dl,
		Recorder:    rec,
	}
}

func TestSyncNotify(t *testing.T) {
	sink := &fakeSink{}
	rec := &countingRecorder{}
	n := NewSync(sink, fastOptions(nil, rec))

	assert.True(t, n.Notify(context.Background(), "Hello", "body", ""))
	assert.True(t, n.Notify(context.Background(), "Hello", "body", "buyer@example.com"))

	got := sink.delivered()
	require.Len(t, got, 2)
	assert.Equal(t, "owner@example.com", got[0].To)
	assert.Equal(t, "buyer@example.com", got[1].To)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, int32(2), rec.sent.Load())
}

func TestSyncNotifyFailureReturnsFalse(t *testing.T) {
	rec := &countingRecorder{}
	n := NewSync(&fakeSink{failures: -1}, fastOptions(nil, rec))
	assert.False(t, n.Notify(context.Background(), "Hello", "body", ""))
	assert.Equal(t, int32(1), rec.failed.Load())
}

func TestSyncNotifyRecoversPanic(t *testing.T) {
	n := NewSync(panicSink{}, fastOptions(nil, nil))
	assert.NotPanics(t, func() {
		assert.False(t, n.Notify(context.Background(), "Hello", "body", ""))
	})
}

func TestSyncNotifyIgnoresCallerCancellation(t *testing.T) {
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, NewSync(sink, fastOptions(nil, nil)).Notify(ctx, "Hello", "body", ""))
	assert.Len(t, sink.delivered(), 1)
}

func TestDispatcherDeliversAsync(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(NewChannelQueue(16), sink, fastOptions(nil, nil))
	d.Start(context.Background())
	defer d.Close(context.Background())

	assert.True(t, d.Notify(context.Background(), "Hello", "body", ""))
	assert.Eventually(t, func() bool { return len(sink.delivered()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	sink := &fakeSink{failures: 2}
	rec := &countingRecorder{}
	dl := &fakeDeadLetter{}
	d := NewDispatcher(NewChannelQueue(16), sink, fastOptions(dl, rec))
	d.Start(context.Background())
	defer d.Close(context.Background())

	require.True(t, d.Notify(context.Background(), "Hello", "body", ""))
	require.Eventually(t, func() bool { return len(sink.delivered()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, sink.delivered()[0].Attempts)
	assert.Equal(t, int32(2), rec.failed.Load())
	assert.Equal(t, int32(1), rec.sent.Load())
	assert.Empty(t, dl.stored())
}

func TestDispatcherDeadLettersAfterMaxAttempts(t *testing.T) {
	dl := &fakeDeadLetter{}
	rec := &countingRecorder{}
	d := NewDispatcher(NewChannelQueue(16), &fakeSink{failures: -1}, fastOptions(dl, rec))
	d.Start(context.Background())
	defer d.Close(context.Background())

	require.True(t, d.Notify(context.Background(), "Hello", "body", ""))
	require.Eventually(t, func() bool { return len(dl.stored()) == 1 }, time.Second, 5*time.Millisecond)

	dead := dl.stored()[0]
	assert.Equal(t, 3, dead.Attempts)
	assert.Equal(t, "smtp unavailable", dead.LastError)
	assert.Equal(t, int32(1), rec.dead.Load())
}

func TestDispatcherFullQueueReturnsFalse(t *testing.T) {
	dl := &fakeDeadLetter{}
	d := NewDispatcher(NewChannelQueue(1), &fakeSink{}, fastOptions(dl, nil))

	assert.True(t, d.Notify(context.Background(), "one", "body", ""))
	assert.False(t, d.Notify(context.Background(), "two", "body", ""))
	require.Len(t, dl.stored(), 1)
	assert.Equal(t, ErrQueueFull.Error(), dl.stored()[0].LastError)
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := &fakeSink{delay: 2 * time.Millisecond}
	d := NewDispatcher(NewChannelQueue(64), sink, fastOptions(nil, nil))
	for i := 0; i < 20; i++ {
		require.True(t, d.Notify(context.Background(), "Hello", "body", ""))
	}
	d.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Len(t, sink.delivered(), 20)

	assert.False(t, d.Notify(context.Background(), "late", "body", ""))
}

func TestDispatcherCloseDeadlineDeadLetters(t *testing.T) {
	dl := &fakeDeadLetter{}
	opts := fastOptions(dl, nil)
	opts.BaseDelay = time.Hour
	opts.MaxDelay = time.Hour
	d := NewDispatcher(NewChannelQueue(4), &fakeSink{failures: -1}, opts)
	d.Start(context.Background())
	require.True(t, d.Notify(context.Background(), "Hello", "body", ""))

	// Wait until the first attempt failed and the worker is backing off.
	require.Eventually(t, func() bool { return d.queueEmpty() }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	require.Len(t, dl.stored(), 1)
	assert.Equal(t, 1, dl.stored()[0].Attempts)
}

func (d *Dispatcher) queueEmpty() bool {
	q, ok := d.queue.(*ChannelQueue)
	return ok && q.Len() == 0
}

func TestNotifyRecoversPanicInDispatcher(t *testing.T) {
	d := NewDispatcher(panickingQueue{}, &fakeSink{}, fastOptions(&fakeDeadLetter{}, nil))
	assert.NotPanics(t, func() {
		assert.False(t, d.Notify(context.Background(), "Hello", "body", ""))
	})
}

type panickingQueue struct{}

func (panickingQueue) Push(context.Context, domain.Notification) error { panic("boom") }
func (panickingQueue) Pop(context.Context, time.Duration) (domain.Notification, error) {
	return domain.Notification{}, ErrEmpty
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisQueueRoundTrip(t *testing.T) {
	q := NewRedisQueue(newRedis(t), "")
	ctx := context.Background()

	_, err := q.Pop(ctx, 0)
	assert.ErrorIs(t, err, ErrEmpty)

	first := newNotification("one", "body", "", "owner@example.com")
	second := newNotification("two", "body", "", "owner@example.com")
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Pop(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Subject)
}

func TestDispatcherOverRedisQueue(t *testing.T) {
	sink := &fakeSink{}
	opts := fastOptions(nil, nil)
	opts.PollWait = time.Second
	d := NewDispatcher(NewRedisQueue(newRedis(t), "test:notifications"), sink, opts)
	d.Start(context.Background())

	require.True(t, d.Notify(context.Background(), "Hello", "body", ""))
	require.Eventually(t, func() bool { return len(sink.delivered()) == 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, d.Close(ctx))
}

func TestWebhookSink(t *testing.T) {
	var got domain.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(httpretry.NewRetryClient(nil, 1, httpretry.WithDelays(time.Millisecond, time.Millisecond)), srv.URL)
	n := newNotification("Hello", "body", "", "owner@example.com")
	require.NoError(t, sink.Send(context.Background(), n))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "owner@example.com", got.To)
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sink := NewWebhookSink(http.DefaultClient, srv.URL)
	err := sink.Send(context.Background(), newNotification("Hello", "body", "", "owner@example.com"))
	assert.ErrorContains(t, err, "status 403")
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSink(t *testing.T) {
	api := &fakeSES{}
	sink := NewSESSink(api, "noreply@example.com")
	n := newNotification("Hello", "line one\nline two", "", "owner@example.com")

	require.NoError(t, sink.Send(context.Background(), n))
	assert.Equal(t, "noreply@example.com", aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"owner@example.com"}, api.in.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(api.in.Content.Simple.Subject.Data))
	assert.Equal(t, "line one\nline two", aws.ToString(api.in.Content.Simple.Body.Text.Data))

	api.err = errors.New("throttled")
	assert.ErrorContains(t, sink.Send(context.Background(), n), "ses send")
}

type fakeS3 struct {
	key, bucket string
	body        []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = aws.ToString(in.Key)
	f.bucket = aws.ToString(in.Bucket)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3DeadLetter(t *testing.T) {
	api := &fakeS3{}
	dl := NewS3DeadLetter(api, "brand-dead-letters")
	n := newNotification("Hello", "body", "", "owner@example.com")
	n.CreatedAt = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	n.LastError = "smtp unavailable"

	require.NoError(t, dl.Store(context.Background(), n))
	assert.Equal(t, "brand-dead-letters", api.bucket)
	assert.Equal(t, "dead-letter/notifications/2024/03/09/"+n.ID+".json", api.key)

	var stored domain.Notification
	require.NoError(t, json.Unmarshal(api.body, &stored))
	assert.Equal(t, "smtp unavailable", stored.LastError)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()
	base := config.NotifyConfig{Mode: "async", Sink: "log", Queue: "memory", QueueSize: 8, MaxAttempts: 3}

	r, err := New(ctx, base, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Dispatcher{}, r)

	syncCfg := base
	syncCfg.Mode = "sync"
	r, err = New(ctx, syncCfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Sync{}, r)

	webhook := base
	webhook.Sink = "webhook"
	_, err = New(ctx, webhook, nil, nil)
	assert.ErrorContains(t, err, "webhook_url")

	unknown := base
	unknown.Sink = "pigeon"
	_, err = New(ctx, unknown, nil, nil)
	assert.ErrorContains(t, err, "unknown notify sink")

	redisQueue := base
	redisQueue.Queue = "redis"
	_, err = New(ctx, redisQueue, nil, nil)
	assert.ErrorContains(t, err, "redis")

	r, err = New(ctx, redisQueue, newRedis(t), nil)
	require.NoError(t, err)
	assert.IsType(t, &Dispatcher{}, r)
}

func TestDeadLetterClientUsesNotifyRegion(t *testing.T) {
	cfg := config.NotifyConfig{
		DeadLetterBucket: "brand-dead-letters",
		SES:              config.SESConfig{Region: "ap-southeast-2", AccessKey: "AKIDEXAMPLE", SecretKey: "secret"},
	}

	client, err := DeadLetterClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", client.Options().Region)

	r, err := New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	d, ok := r.(*Dispatcher)
	require.True(t, ok)
	s3dl, ok := d.opts.DeadLetter.(*S3DeadLetter)
	require.True(t, ok)
	assert.Equal(t, "brand-dead-letters", s3dl.bucket)
}

func TestLogSinkWritesAddressesInFull(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetRedactPII(true)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	body := "Product: Viral Hooks eBook\nCustomer Email: buyer.person@example.com\n"
	require.True(t, NewSync(LogSink{}, Options{}).Notify(context.Background(), "New Purchase", body, ""))

	var entry map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "owner notification", entry["msg"])
	assert.Equal(t, domain.DefaultOwnerEmail, entry["to"])
	assert.Equal(t, body, entry["body"])
}

func TestRedisQueuePopReturnsUndecodableEntry(t *testing.T) {
	client := newRedis(t)
	q := NewRedisQueue(client, "test:corrupt")
	ctx := context.Background()
	require.NoError(t, client.LPush(ctx, "test:corrupt", "{not json").Err())

	_, err := q.Pop(ctx, 0)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "{not json", derr.Raw)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherDeadLettersUndecodableEntry(t *testing.T) {
	client := newRedis(t)
	require.NoError(t, client.LPush(context.Background(), "test:corrupt", "{not json").Err())

	dl := &fakeDeadLetter{}
	rec := &countingRecorder{}
	sink := &fakeSink{}
	opts := fastOptions(dl, rec)
	opts.PollWait = time.Second
	d := NewDispatcher(NewRedisQueue(client, "test:corrupt"), sink, opts)
	d.Start(context.Background())

	require.Eventually(t, func() bool { return len(dl.stored()) == 1 }, 3*time.Second, 10*time.Millisecond)
	stored := dl.stored()[0]
	assert.Equal(t, "{not json", stored.Body)
	assert.Contains(t, stored.LastError, "decode notification")
	assert.Equal(t, int32(1), rec.dead.Load())
	assert.Empty(t, sink.delivered())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, d.Close(ctx))
}
