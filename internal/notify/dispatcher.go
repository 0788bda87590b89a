package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/httpretry"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// Dispatcher enqueues on Notify and delivers from worker goroutines with
// exponential backoff. Messages that exhaust MaxAttempts, or that cannot be
// enqueued, go to the DeadLetter.
type Dispatcher struct {
	queue Queue
	sink  Sink
	opts  Options

	// popCtx stops workers waiting on the queue; lifeCtx aborts deliveries.
	popCtx     context.Context
	popCancel  context.CancelFunc
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewDispatcher creates a dispatcher. Call Start to run the workers.
func NewDispatcher(queue Queue, sink Sink, opts Options) *Dispatcher {
	d := &Dispatcher{queue: queue, sink: sink, opts: opts.withDefaults()}
	d.lifeCtx, d.lifeCancel = context.WithCancel(context.Background())
	d.popCtx, d.popCancel = context.WithCancel(d.lifeCtx)
	return d
}

// Notify enqueues and returns true, or returns false if the message could
// not be queued (full queue, closed dispatcher, queue backend error).
func (d *Dispatcher) Notify(ctx context.Context, subject, body, recipient string) (ok bool) {
	defer recoverNotify(&ok, subject)

	n := newNotification(subject, body, recipient, d.opts.OwnerEmail)
	if d.closed.Load() {
		n.LastError = "dispatcher closed"
		d.deadLetter(n)
		return false
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.queue.Push(pushCtx, n); err != nil {
		logger.Warn("notification not queued", "id", n.ID, "subject", n.Subject, "error", err.Error())
		n.LastError = err.Error()
		d.deadLetter(n)
		return false
	}
	return true
}

// Start launches the workers. ctx cancellation stops them like Close
// without a drain deadline.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
		go func() {
			select {
			case <-ctx.Done():
				d.popCancel()
			case <-d.lifeCtx.Done():
			}
		}()
		logger.Info("notification dispatcher started", "workers", d.opts.Workers)
	})
}

// Close stops accepting messages and lets the workers drain what is queued.
// When ctx expires first, in-flight deliveries are aborted, dead-lettered,
// and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.popCancel()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			d.lifeCancel()
			<-done
			err = ctx.Err()
		}
		d.lifeCancel()
		logger.Info("notification dispatcher stopped")
	})
	return err
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		n, err := d.queue.Pop(d.popCtx, d.opts.PollWait)
		if err == nil {
			d.deliver(n)
			continue
		}
		if d.popCtx.Err() != nil {
			d.drain()
			return
		}
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if d.undecodable(err) {
			continue
		}
		logger.Error("notification queue pop failed", "worker", id, "error", err.Error())
		select {
		case <-time.After(time.Second):
		case <-d.popCtx.Done():
		}
	}
}

func (d *Dispatcher) drain() {
	for d.lifeCtx.Err() == nil {
		n, err := d.queue.Pop(d.lifeCtx, 0)
		if d.undecodable(err) {
			continue
		}
		if err != nil {
			return
		}
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n domain.Notification) {
	for n.Attempts < d.opts.MaxAttempts {
		n.Attempts++

		sendCtx, cancel := context.WithTimeout(d.lifeCtx, d.opts.SendTimeout)
		err := safeSend(sendCtx, d.sink, n)
		cancel()
		if err == nil {
			d.opts.Recorder.NotificationSent()
			return
		}

		d.opts.Recorder.NotificationFailed()
		n.LastError = err.Error()
		logger.Warn("notification attempt failed",
			"id", n.ID, "attempt", n.Attempts, "max_attempts", d.opts.MaxAttempts, "error", n.LastError)

		if n.Attempts >= d.opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(httpretry.Backoff(n.Attempts, d.opts.BaseDelay, d.opts.MaxDelay))
		select {
		case <-timer.C:
		case <-d.lifeCtx.Done():
			timer.Stop()
			d.deadLetter(n)
			return
		}
	}
	d.deadLetter(n)
}

// undecodable dead-letters an entry the queue already removed but could not
// decode, keeping the raw payload as the body.
func (d *Dispatcher) undecodable(err error) bool {
	var derr *DecodeError
	if !errors.As(err, &derr) {
		return false
	}
	logger.Error("undecodable notification", "error", derr.Error())
	n := newNotification("undecodable notification", derr.Raw, "", d.opts.OwnerEmail)
	n.LastError = derr.Error()
	d.deadLetter(n)
	return true
}

func (d *Dispatcher) deadLetter(n domain.Notification) {
	d.opts.Recorder.NotificationDeadLettered()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.opts.DeadLetter.Store(ctx, n); err != nil {
		logger.Error("dead letter store failed", "id", n.ID, "subject", n.Subject, "error", err.Error())
	}
}
