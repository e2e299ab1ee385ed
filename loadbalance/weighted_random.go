package loadbalance

import (
	"math/rand"
	"sync"
	"time"

	"github.com/unruly-software/api/registry"
)

const WeightedRandomName = "weighted_random"

// WeightedRandom picks instances with probability proportional to their
// Weight. Instances without a positive weight count as weight 1.
type WeightedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewWeightedRandom() *WeightedRandom {
	return &WeightedRandom{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (b *WeightedRandom) Pick(instances []registry.Instance, _ string) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}

	total := 0
	for _, inst := range instances {
		total += weight(inst)
	}

	b.mu.Lock()
	r := b.rnd.Intn(total)
	b.mu.Unlock()

	for _, inst := range instances {
		r -= weight(inst)
		if r < 0 {
			return inst, nil
		}
	}
	return instances[len(instances)-1], nil
}

func (b *WeightedRandom) Name() string { return WeightedRandomName }

func weight(inst registry.Instance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
