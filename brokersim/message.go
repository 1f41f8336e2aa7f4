package brokersim

import (
	"fmt"
	"time"
)

// Layouts accepted for message and broker timestamps, most specific last.
var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// Message is an immutable record appended to a topic.
// A nil partition means the topic's partitioner picks one from the key.
type Message struct {
	timestamp time.Time
	body      string
	partition *int
	key       string
}

func NewMessage(timestamp time.Time, body, key string) Message {
	return Message{timestamp: timestamp, body: body, key: key}
}

func NewPartitionedMessage(timestamp time.Time, body string, partition int, key string) Message {
	p := partition
	return Message{timestamp: timestamp, body: body, partition: &p, key: key}
}

func (m Message) Timestamp() time.Time { return m.timestamp }
func (m Message) Body() string         { return m.body }
func (m Message) Key() string          { return m.key }

// Partition reports the explicit partition number, if the message has one.
func (m Message) Partition() (int, bool) {
	if m.partition == nil {
		return 0, false
	}
	return *m.partition, true
}

func (m Message) String() string {
	return fmt.Sprintf("Message{timestamp=%s, message='%s'}", FormatTimestamp(m.timestamp), m.body)
}

// ParseTimestamp parses an ISO-8601 local date-time such as 2018-05-15T19:42
// or 2018-05-15T19:42:07.5. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		t, err = time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
}

// FormatTimestamp renders t as an ISO-8601 local date-time, omitting
// seconds when they and the fraction are zero. A fraction is printed with
// 3, 6 or 9 digits, whichever is the shortest exact form.
func FormatTimestamp(t time.Time) string {
	nanos := t.Nanosecond()
	switch {
	case nanos == 0 && t.Second() == 0:
		return t.Format("2006-01-02T15:04")
	case nanos == 0:
		return t.Format("2006-01-02T15:04:05")
	case nanos%1_000_000 == 0:
		return t.Format("2006-01-02T15:04:05.000")
	case nanos%1_000 == 0:
		return t.Format("2006-01-02T15:04:05.000000")
	default:
		return t.Format("2006-01-02T15:04:05.000000000")
	}
}
