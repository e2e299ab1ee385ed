// Package loadbalance picks the instance a frame transport call goes to.
//
//   - round_robin:     equal instances, stateless handlers
//   - weighted_random: instances of different capacity
//   - consistent_hash: the same key (by default the operation name) keeps
//     landing on the same instance while the instance set is stable
package loadbalance

import (
	"errors"
	"fmt"

	"github.com/unruly-software/api/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects one of instances for a call. key identifies the call for
// strategies that need affinity and is ignored by the others. Pick is called
// concurrently.
type Balancer interface {
	Pick(instances []registry.Instance, key string) (registry.Instance, error)
	Name() string
}

// New returns the balancer registered under name.
func New(name string) (Balancer, error) {
	switch name {
	case "", RoundRobinName:
		return &RoundRobin{}, nil
	case WeightedRandomName:
		return NewWeightedRandom(), nil
	case ConsistentHashName:
		return NewConsistentHash(DefaultReplicas), nil
	}
	return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
}
