package resolver

import (
	"hash/crc32"
	"math/rand"
	"sort"
	"strconv"
	"sync/atomic"
)

// RoundRobinBalancer distributes picks evenly across instances in order,
// using an atomic counter for lock-free, goroutine-safe selection.
// Best for stateless services with similar-capacity instances.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string { return "RoundRobin" }

// WeightedRandomBalancer picks instances probabilistically by weight: an
// instance with weight 10 gets roughly twice the traffic of one with
// weight 5. Best for heterogeneous instances.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	total := 0
	for _, inst := range instances {
		total += inst.Weight
	}
	if total <= 0 {
		return &instances[rand.Intn(len(instances))], nil
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string { return "WeightedRandom" }

// ConsistentHashBalancer maps a caller-supplied key to an instance using a
// hash ring, giving the same key the same instance until the ring
// changes — cache affinity for stateful services. Each real instance gets
// 100 virtual nodes on the ring so three instances don't cluster and
// starve one another of traffic.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]*Instance
}

// NewConsistentHashBalancer builds an empty hash ring.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]*Instance),
	}
}

// Rebuild replaces the ring's contents with instances, rebuilding virtual
// nodes from scratch — called whenever a resolver.Watch update arrives.
func (b *ConsistentHashBalancer) Rebuild(instances []Instance) {
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]*Instance, len(instances)*b.replicas)
	for i := range instances {
		b.add(&instances[i])
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

func (b *ConsistentHashBalancer) add(inst *Instance) {
	for i := 0; i < b.replicas; i++ {
		key := inst.Addr + "#" + strconv.Itoa(i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = inst
	}
}

// PickKey finds the instance responsible for key: hash it, then find the
// first ring node at or after that hash, wrapping around to the first
// node if the hash exceeds every node's value.
func (b *ConsistentHashBalancer) PickKey(key string) (*Instance, error) {
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

// Pick implements Balancer by rebuilding the ring from the candidate set
// and using the first candidate's address as the key, so ConsistentHashBalancer still fits
// anywhere a plain Balancer is expected; callers that care about key
// affinity should call PickKey directly instead.
func (b *ConsistentHashBalancer) Pick(instances []Instance) (*Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	b.Rebuild(instances)
	return b.PickKey(instances[0].Addr)
}

func (b *ConsistentHashBalancer) Name() string { return "ConsistentHash" }
