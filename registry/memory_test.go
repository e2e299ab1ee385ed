package registry

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRegistry(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	inst1 := Instance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := Instance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, "userapi", inst1, 10*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, "userapi", inst2, 10*time.Second); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover(ctx, "userapi")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 || instances[0].Addr != inst1.Addr {
		t.Fatalf("unexpected instances %+v", instances)
	}

	if err := reg.Deregister(ctx, "userapi", inst1.Addr); err != nil {
		t.Fatal(err)
	}
	instances, _ = reg.Discover(ctx, "userapi")
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expected only %s, got %+v", inst2.Addr, instances)
	}

	if other, _ := reg.Discover(ctx, "other"); len(other) != 0 {
		t.Fatalf("expected no instances for other service, got %+v", other)
	}
}

func TestMemoryRegistryWatch(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	ch := reg.Watch(ctx, "userapi")
	if initial := <-ch; len(initial) != 0 {
		t.Fatalf("expected empty initial list, got %+v", initial)
	}

	_ = reg.Register(ctx, "userapi", Instance{Addr: "a"}, 0)
	_ = reg.Register(ctx, "userapi", Instance{Addr: "b"}, 0)

	select {
	case list := <-ch:
		if len(list) != 2 {
			t.Fatalf("expected latest list with 2 instances, got %+v", list)
		}
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	for range ch {
	}
}
