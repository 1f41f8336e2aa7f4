package brokersim

import (
	"fmt"
	"sort"
	"sync"

	"brokersim/internal/logging"

	"github.com/sirupsen/logrus"
)

// Topic is a named set of partitions numbered 1..PartitionCount.
// The partition count only ever grows.
type Topic struct {
	mu             sync.RWMutex
	name           string
	partitions     map[int]*Partition
	partitionCount int
	limits         *limits
	partitioner    Partitioner
	logger         *logrus.Entry
}

func newTopic(name string, partitionCount int, l *limits, partitioner Partitioner, logger *logrus.Entry) *Topic {
	t := &Topic{
		name:           name,
		partitions:     make(map[int]*Partition, partitionCount),
		partitionCount: partitionCount,
		limits:         l,
		partitioner:    partitioner,
		logger:         logger,
	}
	for i := 1; i <= partitionCount; i++ {
		t.partitions[i] = newPartition(i, l)
	}
	return t
}

func (t *Topic) Name() string {
	return t.name
}

func (t *Topic) PartitionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.partitionCount
}

// Partition returns the partition with the given number, or nil.
func (t *Topic) Partition(number int) *Partition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.partitions[number]
}

// Partitions returns all partitions ordered by number.
func (t *Topic) Partitions() []*Partition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	parts := make([]*Partition, 0, len(t.partitions))
	for _, p := range t.partitions {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].number < parts[j].number
	})
	return parts
}

// AddMessage routes m to its explicit partition, or to the partition the
// partitioner picks from the key under the current partition count.
func (t *Topic) AddMessage(m Message) (AddResult, error) {
	t.mu.RLock()
	number, explicit := m.Partition()
	if !explicit {
		number = t.partitioner(m.key, t.partitionCount)
		if number < 1 || number > t.partitionCount {
			count := t.partitionCount
			t.mu.RUnlock()
			return Dropped, fmt.Errorf("%w: %d not in 1..%d for topic %s", ErrInvalidAssignment, number, count, t.name)
		}
	}
	partition, ok := t.partitions[number]
	t.mu.RUnlock()

	if !ok {
		return Dropped, &PartitionNotFoundError{Topic: t.name, Partition: number}
	}
	return partition.AddMessage(m), nil
}

// ChangePartitionCount grows the topic to newCount partitions. Shrinking is
// rejected and leaves the topic untouched.
func (t *Topic) ChangePartitionCount(newCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if newCount < t.partitionCount {
		return &UnsupportedOperationError{Topic: t.name, Current: t.partitionCount, Requested: newCount}
	}
	for i := t.partitionCount + 1; i <= newCount; i++ {
		t.partitions[i] = newPartition(i, t.limits)
	}
	if newCount > t.partitionCount {
		t.logger.WithField("Topic", logging.DTopic).Infof("Topic %s grew from %d to %d partitions.", t.name, t.partitionCount, newCount)
	}
	t.partitionCount = newCount
	return nil
}
