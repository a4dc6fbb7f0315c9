package bus

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"ledger/internal/obs"
	"ledger/internal/schema"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

// Queue is a bounded, non-blocking notification queue between the engine and
// slower consumers such as the journal writer.
type Queue struct {
	ch      chan schema.Notification
	metrics *obs.Metrics

	mu     sync.RWMutex
	closed bool
}

// NewQueue allocates a queue with the given capacity. metrics may be nil.
func NewQueue(capacity int, metrics *obs.Metrics) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.Notification, capacity), metrics: metrics}
}

// TryPublish enqueues a notification without blocking.
func (q *Queue) TryPublish(n schema.Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.metrics.IncQueueClosed()
		return ErrQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		q.metrics.IncQueueDrop()
		return errors.Wrapf(ErrQueueFull, "seq %d", n.Seq)
	}
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new notifications. Queued ones are
// still delivered by Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes notifications until the context is done or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context, handler func(schema.Notification)) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-q.ch:
			if !ok {
				return
			}
			handler(n)
		}
	}
}
