package brokersim

import (
	"fmt"
	"sort"
	"time"

	"brokersim/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const topicShards = 16

// Config is fixed at broker construction and applies to every topic.
type Config struct {
	BrokerID             string    // defaults to a random UUID
	MinimumTimestamp     time.Time // messages strictly before this are dropped
	CapacityPerPartition int       // maximum messages held by one partition
	Logger               *logrus.Entry

	// Partitioner is called once per topic. Defaults to HashPartitioner.
	Partitioner PartitionerFactory
}

// Broker is the registry of topics.
type Broker struct {
	ID     string
	topics *ConcurrentMap[*Topic]
	limits *limits

	partitioner PartitionerFactory
	logger      *logrus.Entry
}

// Stats summarizes the broker content.
type Stats struct {
	Topics     int
	Partitions int
	Messages   int
}

func NewBroker(cfg Config) (*Broker, error) {
	if cfg.CapacityPerPartition < 1 {
		return nil, fmt.Errorf("%w: capacity per partition is %d", ErrInvalidConfig, cfg.CapacityPerPartition)
	}
	if cfg.MinimumTimestamp.IsZero() {
		return nil, fmt.Errorf("%w: minimum timestamp is not set", ErrInvalidConfig)
	}
	if cfg.BrokerID == "" {
		cfg.BrokerID = uuid.NewString()
	}
	if cfg.Partitioner == nil {
		cfg.Partitioner = HashPartitioner
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard().WithField("Node", cfg.BrokerID)
	}

	return &Broker{
		ID:     cfg.BrokerID,
		topics: NewConcurrentMap[*Topic](topicShards),
		limits: &limits{
			minimumTimestamp: cfg.MinimumTimestamp,
			capacity:         cfg.CapacityPerPartition,
		},
		partitioner: cfg.Partitioner,
		logger:      cfg.Logger,
	}, nil
}

func (b *Broker) MinimumTimestamp() time.Time {
	return b.limits.minimumTimestamp
}

func (b *Broker) CapacityPerPartition() int {
	return b.limits.capacity
}

// AddTopic creates the topic if it does not exist yet. Adding an existing
// topic is a no-op and keeps its partition count.
func (b *Broker) AddTopic(name string, partitionCount int) error {
	if partitionCount < 1 {
		return fmt.Errorf("%w: topic %s requested %d", ErrInvalidPartitionCount, name, partitionCount)
	}
	_, created := b.topics.SetIfAbsent(name, func() *Topic {
		return newTopic(name, partitionCount, b.limits, b.partitioner(), b.logger)
	})
	if created {
		b.logger.WithField("Topic", logging.DBroker).Debugf("Topic %s with %d partitions created.", name, partitionCount)
	} else {
		b.logger.WithField("Topic", logging.DBroker).Debugf("Topic %s already exists, keeping its settings.", name)
	}
	return nil
}

// Topic looks up a topic by name.
func (b *Broker) Topic(name string) (*Topic, error) {
	t, ok := b.topics.Get(name)
	if !ok {
		return nil, &TopicNotFoundError{Topic: name}
	}
	return t, nil
}

// TopicCount returns the number of registered topics.
func (b *Broker) TopicCount() int {
	return b.topics.Count()
}

// Topics returns all topics ordered by name.
func (b *Broker) Topics() []*Topic {
	names := b.topics.Keys()
	sort.Strings(names)
	topics := make([]*Topic, 0, len(names))
	for _, name := range names {
		if t, ok := b.topics.Get(name); ok {
			topics = append(topics, t)
		}
	}
	return topics
}

func (b *Broker) AddMessage(topicName string, m Message) (AddResult, error) {
	t, err := b.Topic(topicName)
	if err != nil {
		return Dropped, err
	}
	return t.AddMessage(m)
}

// ChangeTopicSettings grows the topic to partitionCount partitions.
func (b *Broker) ChangeTopicSettings(topicName string, partitionCount int) error {
	t, err := b.Topic(topicName)
	if err != nil {
		return err
	}
	return t.ChangePartitionCount(partitionCount)
}

func (b *Broker) Stats() Stats {
	var s Stats
	for _, t := range b.Topics() {
		s.Topics++
		for _, p := range t.Partitions() {
			s.Partitions++
			s.Messages += p.Len()
		}
	}
	return s
}
