// Package watch provides live query streams over a single datastore.
//
// The storage layer calls Hub.Notify after every committed write; every
// active subscription then re-runs its query and delivers the fresh
// result. Intermediate versions are conflated, so a slow consumer always
// observes the latest state rather than a backlog.
package watch

import (
	"context"
	"log/slog"
	"sync"
)

// Hub fans out change notifications to subscriptions.
type Hub struct {
	mu   sync.Mutex
	next chan struct{}
}

func NewHub() *Hub {
	return &Hub{next: make(chan struct{})}
}

// Notify wakes every subscription so it re-runs its query. Safe to call
// from any goroutine.
func (h *Hub) Notify() {
	h.mu.Lock()
	close(h.next)
	h.next = make(chan struct{})
	h.mu.Unlock()
}

// wait returns a channel closed by the next Notify.
func (h *Hub) wait() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

// Query produces the current derived value for a subscription.
type Query[T any] func(ctx context.Context) (T, error)

// Stream is a live sequence of query results. C carries the initial
// value and one value per write batch thereafter. Close releases the
// subscription; live reads are side-effect-free, so abandoning a stream
// mid-flight never leaves partial state behind.
type Stream[T any] struct {
	C      <-chan T
	cancel context.CancelFunc
	done   <-chan struct{}
}

func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}

// Subscribe runs q immediately and again after every Hub notification,
// until ctx is cancelled or the stream is closed.
func Subscribe[T any](ctx context.Context, h *Hub, q Query[T]) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		for {
			// Grab the wait channel before querying so a write that
			// lands mid-query still triggers a re-run.
			wakeup := h.wait()
			v, err := q(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.ErrorContext(ctx, "Live query failed", "error", err)
			} else {
				deliver(out, v)
			}
			select {
			case <-ctx.Done():
				return
			case <-wakeup:
			}
		}
	}()

	return &Stream[T]{C: out, cancel: cancel, done: done}
}

// deliver replaces any undelivered value so the consumer sees the
// latest state.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
