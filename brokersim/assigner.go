package brokersim

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// Partitioner maps a routing key to a partition number in [1, partitionCount].
type Partitioner func(key string, partitionCount int) int

// PartitionerFactory builds the partitioner of a single topic, so stateful
// strategies never share state between topics.
type PartitionerFactory func() Partitioner

// Assign is the default partitioner: FNV-1a of the key modulo the count,
// shifted to the 1-indexed partition space. The result for a given key may
// change when the partition count grows.
func Assign(key string, partitionCount int) int {
	return int(Hash(key)%uint32(partitionCount)) + 1
}

// Hash returns the 32-bit FNV-1a hash of s.
func Hash(s string) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(s))
	return hasher.Sum32()
}

type roundRobin struct {
	mu      sync.Mutex
	counter int
}

func (rr *roundRobin) partition(_ string, partitionCount int) int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	part := rr.counter%partitionCount + 1
	rr.counter++
	return part
}

// RoundRobin returns a partitioner that ignores the key and cycles through
// the partitions, starting at 1.
func RoundRobin() Partitioner {
	rr := &roundRobin{}
	return rr.partition
}

// HashPartitioner is the PartitionerFactory of Assign.
func HashPartitioner() Partitioner {
	return Assign
}

// PartitionerByName resolves a strategy name: "hash" or "roundrobin".
func PartitionerByName(strategy string) (PartitionerFactory, error) {
	switch strategy {
	case "hash":
		return HashPartitioner, nil
	case "roundrobin":
		return RoundRobin, nil
	default:
		return nil, fmt.Errorf("%w: unknown partitioner %q", ErrInvalidConfig, strategy)
	}
}
