package brokersim

import (
	"sync"
)

// ConcurrentMapShard is a single shard of a ConcurrentMap.
type ConcurrentMapShard[V any] struct {
	sync.RWMutex
	Items map[string]V
}

// ConcurrentMap is a thread-safe map from string keys, sharded by key hash
// so that writers to different keys rarely contend.
type ConcurrentMap[V any] struct {
	shards     []*ConcurrentMapShard[V]
	shardCount int
}

// NewConcurrentMap creates a map with the given number of shards.
func NewConcurrentMap[V any](shardCount int) *ConcurrentMap[V] {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := &ConcurrentMap[V]{
		shards:     make([]*ConcurrentMapShard[V], shardCount),
		shardCount: shardCount,
	}
	for i := 0; i < shardCount; i++ {
		m.shards[i] = &ConcurrentMapShard[V]{
			Items: make(map[string]V),
		}
	}
	return m
}

// ShardForKey returns the shard that stores key.
func (m *ConcurrentMap[V]) ShardForKey(key string) *ConcurrentMapShard[V] {
	return m.shards[Hash(key)%uint32(m.shardCount)]
}

// SetIfAbsent stores the value built by create unless key is present.
// It returns the stored value and whether it was created by this call.
func (m *ConcurrentMap[V]) SetIfAbsent(key string, create func() V) (V, bool) {
	shard := m.ShardForKey(key)
	shard.Lock()
	defer shard.Unlock()
	if val, ok := shard.Items[key]; ok {
		return val, false
	}
	val := create()
	shard.Items[key] = val
	return val, true
}

func (m *ConcurrentMap[V]) Get(key string) (V, bool) {
	shard := m.ShardForKey(key)
	shard.RLock()
	defer shard.RUnlock()
	val, ok := shard.Items[key]
	return val, ok
}

// Count returns the number of keys across all shards.
func (m *ConcurrentMap[V]) Count() int {
	count := 0
	for _, shard := range m.shards {
		shard.RLock()
		count += len(shard.Items)
		shard.RUnlock()
	}
	return count
}

// Keys returns all keys, in no particular order.
func (m *ConcurrentMap[V]) Keys() []string {
	keys := make([]string, 0)
	for _, shard := range m.shards {
		shard.RLock()
		for k := range shard.Items {
			keys = append(keys, k)
		}
		shard.RUnlock()
	}
	return keys
}
