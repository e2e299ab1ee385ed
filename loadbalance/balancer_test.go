package loadbalance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/unruly-software/api/registry"
)

var testInstances = []registry.Instance{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobin{}

	for i := 0; i < 6; i++ {
		inst, err := b.Pick(testInstances, "")
		if err != nil {
			t.Fatal(err)
		}
		if want := testInstances[i%3].Addr; inst.Addr != want {
			t.Fatalf("pick %d: expect %s, got %s", i, want, inst.Addr)
		}
	}
}

func TestEmpty(t *testing.T) {
	for _, name := range []string{RoundRobinName, WeightedRandomName, ConsistentHashName} {
		b, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Pick(nil, "k"); !errors.Is(err, ErrNoInstances) {
			t.Fatalf("%s: expect ErrNoInstances, got %v", name, err)
		}
	}
}

func TestWeightedRandom(t *testing.T) {
	b := NewWeightedRandom()

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances, "")
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// Weights are 10:5:10, so :8001 should be picked about twice as often as :8002.
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := NewWeightedRandom()
	inst, err := b.Pick([]registry.Instance{{Addr: "a"}, {Addr: "b"}}, "")
	if err != nil || (inst.Addr != "a" && inst.Addr != "b") {
		t.Fatalf("unexpected pick %+v, %v", inst, err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHash(DefaultReplicas)

	first, _ := b.Pick(testInstances, "getUser")
	for i := 0; i < 10; i++ {
		again, _ := b.Pick(testInstances, "getUser")
		if again.Addr != first.Addr {
			t.Fatalf("same key mapped to %s and %s", first.Addr, again.Addr)
		}
	}

	// Order of the instance list does not matter.
	reversed := []registry.Instance{testInstances[2], testInstances[1], testInstances[0]}
	if inst, _ := b.Pick(reversed, "getUser"); inst.Addr != first.Addr {
		t.Fatalf("reordering moved key from %s to %s", first.Addr, inst.Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Pick(testInstances, fmt.Sprintf("op-%d", i))
		seen[inst.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("least_conn"); err == nil {
		t.Fatal("expect error for unknown strategy")
	}
}
