package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"signal-monitorv1/internal/model"
)

const (
	defaultQueueSize   = 64
	defaultMaxAttempts = 3
	defaultRetryDelay  = 5 * time.Second
)

// Queue wraps a backend with a buffered delivery worker. Enqueue never
// blocks the evaluation path; failed deliveries are retried with fixed
// delay until the attempt budget runs out. Retries only re-deliver, they
// never re-run admission checks.
type Queue struct {
	backend     Notifier
	ch          chan *model.TradingSignal
	maxAttempts int
	retryDelay  time.Duration
}

// QueueOption tunes a Queue.
type QueueOption func(*Queue)

// WithMaxAttempts sets the per-signal delivery attempt budget.
func WithMaxAttempts(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between delivery attempts.
func WithRetryDelay(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.retryDelay = d
		}
	}
}

// NewQueue creates a delivery queue in front of backend. Call Run to start
// the worker.
func NewQueue(backend Notifier, opts ...QueueOption) *Queue {
	q := &Queue{
		backend:     backend,
		ch:          make(chan *model.TradingSignal, defaultQueueSize),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Notify enqueues the signal for asynchronous delivery. Returns an error
// only when the queue is full; the signal is dropped in that case.
func (q *Queue) Notify(_ context.Context, sig *model.TradingSignal) error {
	select {
	case q.ch <- sig:
		return nil
	default:
		log.Printf("[notify] queue full, dropping %s", sig.Key())
		return ErrQueueFull
	}
}

// ErrQueueFull is returned when the delivery queue cannot accept a signal.
var ErrQueueFull = fmt.Errorf("notification queue full")

// Run consumes the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-q.ch:
			q.deliver(ctx, sig)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, sig *model.TradingSignal) {
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		err := q.backend.Notify(ctx, sig)
		if err == nil {
			return
		}
		log.Printf("[notify] delivery attempt %d/%d failed for %s: %v",
			attempt, q.maxAttempts, sig.Key(), err)

		if attempt == q.maxAttempts {
			log.Printf("[notify] giving up on %s after %d attempts", sig.Key(), q.maxAttempts)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
}
