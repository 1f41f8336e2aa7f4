package ingest

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"brokersim/brokersim"

	"github.com/pkg/errors"
)

// TopicDecl declares a topic and its initial partition count.
type TopicDecl struct {
	Line           int
	Name           string
	PartitionCount int
}

// MessageRecord is one message line bound for a topic.
type MessageRecord struct {
	Line    int
	Topic   string
	Message brokersim.Message
}

// SettingChange requests a new partition count for a topic.
type SettingChange struct {
	Line           int
	Topic          string
	PartitionCount int
}

// Script is the parsed form of the broker input:
//
//	minimum timestamp
//	capacity per partition
//	N, then N lines of name;partitionCount
//	M, then M lines of topic;timestamp;body;key or topic;timestamp;body;partition;key
//	K, then K lines of name;newPartitionCount
//	M, then M message lines
type Script struct {
	MinimumTimestamp time.Time
	Capacity         int
	Topics           []TopicDecl
	FirstBatch       []MessageRecord
	Changes          []SettingChange
	SecondBatch      []MessageRecord
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next() (string, error) {
	if !lr.sc.Scan() {
		if err := lr.sc.Err(); err != nil {
			return "", errors.Wrapf(err, "line %d", lr.line+1)
		}
		return "", io.EOF
	}
	lr.line++
	return strings.TrimRight(lr.sc.Text(), "\r"), nil
}

func (lr *lineReader) nextInt(what string) (int, error) {
	s, err := lr.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "line %d: %s", lr.line, what)
	}
	return n, nil
}

// nextCount reads a record count, which must not be negative.
func (lr *lineReader) nextCount(what string) (int, error) {
	n, err := lr.nextInt(what)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Errorf("line %d: %s is negative: %d", lr.line, what, n)
	}
	return n, nil
}

// Parse reads a complete script. The setting changes and the second message
// batch may be absent, in which case they are empty.
func Parse(r io.Reader) (*Script, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lr := &lineReader{sc: sc}
	s := &Script{}

	tsLine, err := lr.next()
	if err != nil {
		return nil, errors.Wrap(unexpected(err), "minimum timestamp")
	}
	if s.MinimumTimestamp, err = brokersim.ParseTimestamp(strings.TrimSpace(tsLine)); err != nil {
		return nil, errors.Wrapf(err, "line %d", lr.line)
	}
	if s.Capacity, err = lr.nextInt("capacity per partition"); err != nil {
		return nil, errors.Wrap(unexpected(err), "capacity")
	}

	topicCount, err := lr.nextCount("topic count")
	if err != nil {
		return nil, errors.Wrap(unexpected(err), "topics")
	}
	for i := 0; i < topicCount; i++ {
		decl, err := parseTopicLine(lr)
		if err != nil {
			return nil, err
		}
		s.Topics = append(s.Topics, TopicDecl{Line: decl.Line, Name: decl.Name, PartitionCount: decl.PartitionCount})
	}

	if s.FirstBatch, err = parseBatch(lr); err != nil {
		return nil, errors.Wrap(unexpected(err), "first batch")
	}

	changeCount, err := lr.nextCount("setting change count")
	if err == io.EOF {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	for i := 0; i < changeCount; i++ {
		change, err := parseTopicLine(lr)
		if err != nil {
			return nil, err
		}
		s.Changes = append(s.Changes, SettingChange{Line: change.Line, Topic: change.Name, PartitionCount: change.PartitionCount})
	}

	s.SecondBatch, err = parseBatch(lr)
	if err == io.EOF {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

type topicLine struct {
	Line           int
	Name           string
	PartitionCount int
}

func parseTopicLine(lr *lineReader) (topicLine, error) {
	text, err := lr.next()
	if err != nil {
		return topicLine{}, errors.Wrapf(unexpected(err), "line %d", lr.line+1)
	}
	parts := strings.Split(text, ";")
	if len(parts) != 2 {
		return topicLine{}, errors.Errorf("line %d: expected name;partitionCount, got %q", lr.line, text)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return topicLine{}, errors.Wrapf(err, "line %d: partition count", lr.line)
	}
	return topicLine{Line: lr.line, Name: parts[0], PartitionCount: n}, nil
}

func parseBatch(lr *lineReader) ([]MessageRecord, error) {
	count, err := lr.nextCount("message count")
	if err != nil {
		return nil, err
	}
	var records []MessageRecord
	for i := 0; i < count; i++ {
		text, err := lr.next()
		if err != nil {
			return nil, errors.Wrapf(unexpected(err), "line %d", lr.line+1)
		}
		rec, err := ParseMessageLine(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lr.line)
		}
		rec.Line = lr.line
		records = append(records, rec)
	}
	return records, nil
}

// ParseMessageLine parses topic;timestamp;body;key or
// topic;timestamp;body;partition;key.
func ParseMessageLine(text string) (MessageRecord, error) {
	parts := strings.Split(text, ";")
	if len(parts) != 4 && len(parts) != 5 {
		return MessageRecord{}, errors.Errorf("expected 4 or 5 fields, got %d in %q", len(parts), text)
	}
	ts, err := brokersim.ParseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return MessageRecord{}, err
	}
	if len(parts) == 4 {
		return MessageRecord{Topic: parts[0], Message: brokersim.NewMessage(ts, parts[2], parts[3])}, nil
	}
	partition, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return MessageRecord{}, errors.Wrap(err, "partition")
	}
	return MessageRecord{Topic: parts[0], Message: brokersim.NewPartitionedMessage(ts, parts[2], partition, parts[4])}, nil
}

// unexpected turns an early end of input into io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
