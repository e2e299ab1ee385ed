package loadbalance

import (
	"sync/atomic"

	"github.com/unruly-software/api/registry"
)

const RoundRobinName = "round_robin"

// RoundRobin cycles through instances in order.
type RoundRobin struct {
	counter atomic.Uint64
}

func (b *RoundRobin) Pick(instances []registry.Instance, _ string) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}
	n := b.counter.Add(1) - 1
	return instances[n%uint64(len(instances))], nil
}

func (b *RoundRobin) Name() string { return RoundRobinName }
