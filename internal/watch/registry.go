package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultGrace keeps a shared query warm briefly after its last
// subscriber detaches, so rapid unsubscribe/resubscribe cycles do not
// re-run expensive joins from scratch.
const DefaultGrace = 5 * time.Second

// Registry shares one running query between all subscribers that use
// the same key.
type Registry struct {
	hub     *Hub
	grace   time.Duration
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	refs    int
	cancel  context.CancelFunc
	grace   *time.Timer
	carrier any // *carrier[T]
}

type carrier[T any] struct {
	mu    sync.Mutex
	subs  map[chan T]struct{}
	last  T
	valid bool
}

func NewRegistry(hub *Hub, grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Registry{
		hub:     hub,
		grace:   grace,
		entries: make(map[string]*entry),
	}
}

// Acquire attaches to the shared stream for key, starting it if needed.
// A subscriber joining an already-warm stream receives the last known
// value immediately. Close the returned stream to release the slot; the
// underlying query stays warm for the grace period in case another
// subscriber arrives.
func Acquire[T any](r *Registry, key string, q Query[T]) *Stream[T] {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		if e.grace != nil {
			e.grace.Stop()
			e.grace = nil
		}
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		c := &carrier[T]{subs: make(map[chan T]struct{})}
		e = &entry{cancel: cancel, carrier: c}
		r.entries[key] = e
		go run(ctx, r.hub, q, c)
	}
	e.refs++
	c, ok := e.carrier.(*carrier[T])
	r.mu.Unlock()
	if !ok {
		slog.Error("Shared stream type mismatch", "key", key)
		// Fall back to a dedicated subscription rather than panic.
		return Subscribe(context.Background(), r.hub, q)
	}

	out := make(chan T, 1)
	c.mu.Lock()
	c.subs[out] = struct{}{}
	if c.valid {
		deliver(out, c.last)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, out)
			c.mu.Unlock()
			r.release(key)
			close(done)
		})
	}
	return &Stream[T]{C: out, cancel: cancel, done: done}
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	e.grace = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		cur, ok := r.entries[key]
		if !ok || cur.refs > 0 {
			return
		}
		cur.cancel()
		delete(r.entries, key)
	})
}

// Close tears down every shared stream immediately.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		if e.grace != nil {
			e.grace.Stop()
		}
		e.cancel()
		delete(r.entries, key)
	}
}

func run[T any](ctx context.Context, h *Hub, q Query[T], c *carrier[T]) {
	for {
		wakeup := h.wait()
		v, err := q(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "Shared live query failed", "error", err)
		} else {
			c.mu.Lock()
			c.last = v
			c.valid = true
			for sub := range c.subs {
				deliver(sub, v)
			}
			c.mu.Unlock()
		}
		select {
		case <-ctx.Done():
			return
		case <-wakeup:
		}
	}
}
