package natsadapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/client"
	"github.com/unruly-software/api/schema"
	"github.com/unruly-software/api/server"
)

type subject string

func (s subject) NATSSubject() string { return string(s) }

type counter struct{ Value int }

func testCatalog() *api.Catalog[subject] {
	return api.NewCatalog(map[string]api.Definition[subject]{
		"increment": {
			Request:  schema.MustJSON("increment.request", `{"type":"object","properties":{"by":{"type":"integer","minimum":1}},"required":["by"]}`),
			Response: schema.MustJSON("increment.response", `{"type":"integer"}`),
			Metadata: "counter.increment",
		},
		"reset": {
			Metadata: "counter.reset",
		},
		"explode": {
			Metadata: "counter.explode",
		},
	})
}

func newDispatcher(t *testing.T, served *atomic.Int32) *server.Dispatcher[subject, *counter] {
	t.Helper()
	r := server.NewRouter[subject, *counter](testCatalog())
	count := func(c *counter) *counter {
		if served != nil {
			served.Add(1)
		}
		return c
	}
	return r.MustImplement([]server.Implementation[*counter]{
		r.Endpoint("increment").Handle(server.Typed(func(_ context.Context, req struct {
			By int `json:"by"`
		}, in server.Input[subject, *counter]) (int, error) {
			c := count(in.Context)
			c.Value += req.By
			return c.Value, nil
		})),
		r.Endpoint("reset").Handle(func(_ context.Context, in server.Input[subject, *counter]) (any, error) {
			count(in.Context).Value = 0
			return nil, nil
		}),
		r.Endpoint("explode").Handle(func(context.Context, server.Input[subject, *counter]) (any, error) {
			return nil, errors.New("Invalid user ID")
		}),
	})
}

func embedded(t *testing.T) *nats.Conn {
	t.Helper()
	nc, ns, err := RunEmbedded(EmbeddedConfig{InProcess: true})
	if err != nil {
		t.Fatalf("embedded server: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
	})
	return nc
}

func quiet() Option { return WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) }

func TestServeAndResolve(t *testing.T) {
	nc := embedded(t)
	shared := &counter{}
	svc, err := Serve(nc, newDispatcher(t, nil), func(*nats.Msg) (*counter, error) { return shared, nil }, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Unsubscribe()

	subjects := svc.Subjects()
	sort.Strings(subjects)
	if strings.Join(subjects, ",") != "counter.explode,counter.increment,counter.reset" {
		t.Fatalf("unexpected subjects %v", subjects)
	}

	c := client.New(testCatalog(), NewResolver[subject](nc))
	ctx := context.Background()
	inc := api.NewOp[map[string]int, int]("increment")

	for i, want := range []int{2, 5} {
		got, err := client.Do(ctx, c, inc, map[string]int{"by": 2 + i})
		if err != nil || got != want {
			t.Fatalf("increment %d: expected %d, got %d, %v", i, want, got, err)
		}
	}

	if out, err := c.Call(ctx, "reset", nil); err != nil || out != nil {
		t.Fatalf("reset: %v, %v", out, err)
	}
	if shared.Value != 0 {
		t.Fatalf("expected reset counter, got %d", shared.Value)
	}

	_, err = c.Call(ctx, "explode", nil)
	var remote *api.RemoteError
	if !errors.As(err, &remote) || remote.Status != 500 || err.Error() != "Invalid user ID" {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestServerSideValidation(t *testing.T) {
	nc := embedded(t)
	svc, err := Serve(nc, newDispatcher(t, nil), func(*nats.Msg) (*counter, error) { return &counter{}, nil }, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Unsubscribe()

	// Bypass the caller's own validation to reach the server.
	resolve := NewResolver[subject](nc)
	def, _ := testCatalog().Lookup("increment")
	_, err = resolve(context.Background(), client.Request[subject]{
		Operation:  "increment",
		Definition: def,
		Input:      map[string]any{"by": 0},
	})
	var remote *api.RemoteError
	if !errors.As(err, &remote) || remote.Status != 400 {
		t.Fatalf("expected 400 remote error, got %v", err)
	}
}

func TestContextFuncError(t *testing.T) {
	nc := embedded(t)
	svc, err := Serve(nc, newDispatcher(t, nil), func(msg *nats.Msg) (*counter, error) {
		if msg.Header.Get(CallIDHeader) == "" {
			return nil, errors.New("missing call id")
		}
		return nil, errors.New("no session")
	}, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Unsubscribe()

	c := client.New(testCatalog(), NewResolver[subject](nc))
	_, err = c.Call(context.Background(), "reset", nil)
	if err == nil || err.Error() != "no session" {
		t.Fatalf("expected context error with call id header present, got %v", err)
	}
}

func TestQueueGroupSharesLoad(t *testing.T) {
	nc := embedded(t)
	var a, b atomic.Int32
	for _, served := range []*atomic.Int32{&a, &b} {
		svc, err := Serve(nc, newDispatcher(t, served), func(*nats.Msg) (*counter, error) { return &counter{}, nil },
			WithQueue("counters"), quiet())
		if err != nil {
			t.Fatal(err)
		}
		defer svc.Unsubscribe()
	}

	c := client.New(testCatalog(), NewResolver[subject](nc))
	const calls = 40
	for i := 0; i < calls; i++ {
		if _, err := c.Call(context.Background(), "reset", nil); err != nil {
			t.Fatal(err)
		}
	}
	if a.Load()+b.Load() != calls {
		t.Fatalf("each request should be served once, got %d + %d", a.Load(), b.Load())
	}
}

func TestResolverWithoutResponders(t *testing.T) {
	nc := embedded(t)
	c := client.New(testCatalog(), NewResolver[subject](nc))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Call(ctx, "reset", nil)
	if !errors.Is(err, nats.ErrNoResponders) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no responders, got %v", err)
	}
}

func TestDrain(t *testing.T) {
	nc := embedded(t)
	svc, err := Serve(nc, newDispatcher(t, nil), func(*nats.Msg) (*counter, error) { return &counter{}, nil }, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func serveSingle(t *testing.T, nc *nats.Conn, name string, h server.Handler[subject, *counter], opts ...Option) *client.Caller[subject] {
	t.Helper()
	catalog := api.NewCatalog(map[string]api.Definition[subject]{
		name: {Metadata: subject("counter." + name)},
	})
	r := server.NewRouter[subject, *counter](catalog)
	d := r.MustImplement([]server.Implementation[*counter]{r.Endpoint(name).Handle(h)})
	svc, err := Serve(nc, d, func(*nats.Msg) (*counter, error) { return &counter{}, nil }, append(opts, quiet())...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Unsubscribe() })
	return client.New(catalog, NewResolver[subject](nc))
}

func TestHandlerPanicRepliesWithError(t *testing.T) {
	nc := embedded(t)
	c := serveSingle(t, nc, "boom", func(context.Context, server.Input[subject, *counter]) (any, error) {
		panic("boom")
	})

	for i := 0; i < 2; i++ {
		_, err := c.Call(context.Background(), "boom", nil)
		var remote *api.RemoteError
		if !errors.As(err, &remote) || remote.Status != 500 || !strings.Contains(err.Error(), "boom") {
			t.Fatalf("call %d: expected 500 remote error, got %v", i, err)
		}
	}
	if !nc.IsConnected() {
		t.Fatal("connection should survive a panicking handler")
	}
}

func TestTimeoutCancelsDispatchContext(t *testing.T) {
	nc := embedded(t)
	c := serveSingle(t, nc, "wait", func(ctx context.Context, _ server.Input[subject, *counter]) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, errors.New("context was never cancelled")
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := c.Call(context.Background(), "wait", nil)
	if err == nil || err.Error() != context.DeadlineExceeded.Error() {
		t.Fatalf("expected deadline exceeded from the handler, got %v", err)
	}
}

func TestUnsubscribeCancelsInFlight(t *testing.T) {
	nc := embedded(t)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	catalog := api.NewCatalog(map[string]api.Definition[subject]{
		"wait": {Metadata: "counter.wait"},
	})
	r := server.NewRouter[subject, *counter](catalog)
	d := r.MustImplement([]server.Implementation[*counter]{
		r.Endpoint("wait").Handle(func(ctx context.Context, _ server.Input[subject, *counter]) (any, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}),
	})
	svc, err := Serve(nc, d, func(*nats.Msg) (*counter, error) { return &counter{}, nil }, quiet())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.New(catalog, NewResolver[subject](nc)).Call(ctx, "wait", nil)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	svc.Unsubscribe()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe should cancel the in-flight dispatch")
	}
}
