package loadbalance

import (
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/unruly-software/api/registry"
)

const (
	ConsistentHashName = "consistent_hash"
	DefaultReplicas    = 100
)

// ConsistentHash maps keys onto a crc32 ring holding Replicas virtual nodes
// per instance. The ring is rebuilt only when the instance set changes.
type ConsistentHash struct {
	replicas int

	mu    sync.Mutex
	sig   string
	ring  []uint32
	nodes map[uint32]registry.Instance
}

func NewConsistentHash(replicas int) *ConsistentHash {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	return &ConsistentHash{replicas: replicas}
}

func (b *ConsistentHash) Pick(instances []registry.Instance, key string) (registry.Instance, error) {
	if len(instances) == 0 {
		return registry.Instance{}, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sig := signature(instances); sig != b.sig {
		b.build(instances)
		b.sig = sig
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHash) Name() string { return ConsistentHashName }

func (b *ConsistentHash) build(instances []registry.Instance) {
	b.ring = make([]uint32, 0, len(instances)*b.replicas)
	b.nodes = make(map[uint32]registry.Instance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			h := crc32.ChecksumIEEE([]byte(inst.Addr + "#" + strconv.Itoa(i)))
			if _, taken := b.nodes[h]; taken {
				continue
			}
			b.ring = append(b.ring, h)
			b.nodes[h] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

func signature(instances []registry.Instance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",")
}
