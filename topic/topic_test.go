package topic

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPublishInSubscriptionOrder(t *testing.T) {
	tp := New[int]()
	var got []string

	tp.Subscribe(func(n int) { got = append(got, "a") })
	tp.Subscribe(func(n int) { got = append(got, "b") })
	tp.Subscribe(func(n int) { got = append(got, "c") })

	tp.Publish(1)

	if strings.Join(got, "") != "abc" {
		t.Fatalf("expected abc, got %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	tp := New[int]()
	var calls int

	unsub := tp.Subscribe(func(int) { calls++ })
	tp.Publish(1)
	unsub()
	unsub()
	tp.Publish(2)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if tp.Len() != 0 {
		t.Fatalf("expected no listeners, got %d", tp.Len())
	}
}

func TestSameFunctionTwiceIsTwoSubscriptions(t *testing.T) {
	tp := New[int]()
	var calls int
	fn := func(int) { calls++ }

	first := tp.Subscribe(fn)
	tp.Subscribe(fn)
	first()
	tp.Publish(1)

	if calls != 1 {
		t.Fatalf("expected the second subscription to survive, got %d calls", calls)
	}
}

func TestPublishUsesSnapshot(t *testing.T) {
	tp := New[int]()
	var added, removed int32

	var unsubLate func()
	tp.Subscribe(func(int) {
		// Subscribing during a publish must not affect this publish.
		tp.Subscribe(func(int) { atomic.AddInt32(&added, 1) })
		// Removing a later listener must not skip it for this publish.
		unsubLate()
	})
	unsubLate = tp.Subscribe(func(int) { atomic.AddInt32(&removed, 1) })

	tp.Publish(1)

	if added != 0 {
		t.Fatalf("listener added during publish was called %d times", added)
	}
	if removed != 1 {
		t.Fatalf("listener removed during publish was called %d times", removed)
	}

	tp.Publish(2)
	if added != 1 || removed != 1 {
		t.Fatalf("second publish: added=%d removed=%d", added, removed)
	}
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	tp := New[string](WithName("failed"), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	var after bool

	tp.Subscribe(func(string) { panic("boom") })
	tp.Subscribe(func(string) { after = true })

	tp.Publish("x")

	if !after {
		t.Fatal("listener after a panicking one was not called")
	}
	if !strings.Contains(buf.String(), "listener panicked") || !strings.Contains(buf.String(), "failed") {
		t.Fatalf("expected panic to be logged, got %q", buf.String())
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	tp := New[int]()
	var count int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := tp.Subscribe(func(int) { atomic.AddInt64(&count, 1) })
			defer unsub()
			tp.Publish(1)
		}()
		go func() {
			defer wg.Done()
			tp.Publish(2)
		}()
	}
	wg.Wait()

	if tp.Len() != 0 {
		t.Fatalf("expected all listeners removed, got %d", tp.Len())
	}
	if atomic.LoadInt64(&count) < 20 {
		t.Fatalf("each subscriber should see its own publish, got %d deliveries", count)
	}
}

func TestPublishAsyncWaitsForListeners(t *testing.T) {
	tp := New[int]()
	var done int32

	for i := 0; i < 3; i++ {
		tp.Subscribe(func(int) {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
		})
	}

	if err := tp.PublishAsync(context.Background(), 1); err != nil {
		t.Fatalf("publish async: %v", err)
	}
	if atomic.LoadInt32(&done) != 3 {
		t.Fatalf("expected 3 listeners finished, got %d", done)
	}
}

func TestPublishAsyncHonorsContext(t *testing.T) {
	tp := New[int]()
	release := make(chan struct{})
	defer close(release)
	tp.Subscribe(func(int) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tp.PublishAsync(ctx, 1); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
