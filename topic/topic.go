// Package topic is a small publish/subscribe channel used to observe call
// outcomes.
//
// The listener set is an immutable slice swapped atomically on every
// Subscribe and unsubscribe. Publish iterates the slice it loaded when it
// started, so listeners added during a publish are not called and listeners
// removed during it are still called. A listener that panics is logged and
// skipped; delivery to the remaining listeners continues.
package topic

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Listener[T any] func(msg T)

type subscription[T any] struct {
	fn Listener[T]
}

type Topic[T any] struct {
	name      string
	logger    *slog.Logger
	listeners atomic.Pointer[[]*subscription[T]]
}

type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
}

// WithName labels log records emitted by the topic.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New[T any](opts ...Option) *Topic[T] {
	o := options{name: "topic"}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Topic[T]{name: o.name, logger: o.logger}
	t.listeners.Store(&[]*subscription[T]{})
	return t
}

// Subscribe registers fn and returns a function removing it. Calling the
// returned function more than once has no further effect.
func (t *Topic[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	sub := &subscription[T]{fn: fn}
	for {
		old := t.listeners.Load()
		next := make([]*subscription[T], len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, sub)
		if t.listeners.CompareAndSwap(old, &next) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(sub) })
	}
}

func (t *Topic[T]) remove(sub *subscription[T]) {
	for {
		old := t.listeners.Load()
		next := make([]*subscription[T], 0, len(*old))
		for _, s := range *old {
			if s != sub {
				next = append(next, s)
			}
		}
		if len(next) == len(*old) {
			return
		}
		if t.listeners.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Len returns the number of current subscriptions.
func (t *Topic[T]) Len() int {
	return len(*t.listeners.Load())
}

// Publish calls every listener subscribed when Publish started, in
// subscription order, on the calling goroutine.
func (t *Topic[T]) Publish(msg T) {
	for _, s := range *t.listeners.Load() {
		t.deliver(s, msg)
	}
}

// PublishAsync calls every listener on its own goroutine and waits for all
// of them, or for ctx to be done, whichever comes first.
func (t *Topic[T]) PublishAsync(ctx context.Context, msg T) error {
	subs := *t.listeners.Load()
	if len(subs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(len(subs))
	for _, s := range subs {
		go func(s *subscription[T]) {
			defer wg.Done()
			t.deliver(s, msg)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Topic[T]) deliver(s *subscription[T], msg T) {
	defer func() {
		if r := recover(); r != nil {
			t.log().Error("listener panicked", "topic", t.name, "panic", r)
		}
	}()
	s.fn(msg)
}

func (t *Topic[T]) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}
