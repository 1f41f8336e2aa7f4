package brokersim

import (
	"errors"
	"fmt"
)

var (
	ErrTopicNotFound         = errors.New("topic not found")
	ErrPartitionNotFound     = errors.New("partition not found")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrInvalidConfig         = errors.New("invalid broker configuration")
	ErrInvalidPartitionCount = errors.New("partition count must be at least 1")
	ErrInvalidAssignment     = errors.New("partitioner returned a partition out of range")
	ErrCorruptSnapshot       = errors.New("corrupt snapshot file")
)

// TopicNotFoundError is returned when a record names a topic that was never added.
type TopicNotFoundError struct {
	Topic string
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("The topic %s does not exist", e.Topic)
}

func (e *TopicNotFoundError) Is(target error) bool {
	return target == ErrTopicNotFound
}

// PartitionNotFoundError is returned when a message carries an explicit
// partition number outside 1..partitionCount.
type PartitionNotFoundError struct {
	Topic     string
	Partition int
}

func (e *PartitionNotFoundError) Error() string {
	return fmt.Sprintf("The topic %s does not have a partition with number %d", e.Topic, e.Partition)
}

func (e *PartitionNotFoundError) Is(target error) bool {
	return target == ErrPartitionNotFound
}

// UnsupportedOperationError is returned on an attempt to shrink a topic.
type UnsupportedOperationError struct {
	Topic     string
	Current   int
	Requested int
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("The topic %s cannot shrink from %d to %d partitions", e.Topic, e.Current, e.Requested)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}
