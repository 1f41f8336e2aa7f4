package brokersim

import (
	"sort"
	"sync"
	"time"
)

// AddResult describes what happened to a message handed to a partition.
type AddResult int

const (
	Stored  AddResult = iota // inserted, nothing removed
	Evicted                  // inserted after removing the oldest message
	Dropped                  // older than the broker minimum, ignored
)

func (r AddResult) String() string {
	switch r {
	case Stored:
		return "stored"
	case Evicted:
		return "evicted"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// limits are fixed at broker construction and shared by every partition.
type limits struct {
	minimumTimestamp time.Time
	capacity         int
}

type entry struct {
	msg Message
	seq uint64
}

// Partition is a capacity-bounded set of messages kept in timestamp order.
// Messages with equal timestamps keep their insertion order.
type Partition struct {
	mu      sync.RWMutex
	number  int
	limits  *limits
	entries []entry
	nextSeq uint64
}

func newPartition(number int, l *limits) *Partition {
	return &Partition{
		number:  number,
		limits:  l,
		entries: make([]entry, 0, l.capacity),
	}
}

func (p *Partition) Number() int {
	return p.number
}

// AddMessage stores m unless it predates the broker minimum. A full
// partition first loses its earliest message, even when m is older still.
func (p *Partition) AddMessage(m Message) AddResult {
	if m.timestamp.Before(p.limits.minimumTimestamp) {
		return Dropped
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result := Stored
	if len(p.entries) == p.limits.capacity {
		p.entries = append(p.entries[:0], p.entries[1:]...)
		result = Evicted
	}

	e := entry{msg: m, seq: p.nextSeq}
	p.nextSeq++

	// first entry strictly later than m; equal timestamps stay ahead of m
	idx := sort.Search(len(p.entries), func(i int) bool {
		return p.entries[i].msg.timestamp.After(m.timestamp)
	})
	p.entries = append(p.entries, entry{})
	copy(p.entries[idx+1:], p.entries[idx:])
	p.entries[idx] = e

	return result
}

func (p *Partition) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Messages returns a copy of the partition content, oldest first.
func (p *Partition) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	msgs := make([]Message, len(p.entries))
	for i, e := range p.entries {
		msgs[i] = e.msg
	}
	return msgs
}
