package brokersim

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"brokersim/internal/logging"

	"github.com/klauspost/compress/s2"
	"github.com/sirupsen/logrus"
)

const defaultMessagesPerFile = 1000

// Persister writes broker snapshots as one directory per topic-partition
// ("<topic>-<number>", the topic path-escaped). Each directory holds files named after the index of
// their first message; a file is a sequence of little-endian uint32 length
// prefixed records, each an s2-compressed JSON message.
type Persister struct {
	BaseDir            string
	NumMessagePerBatch int
	mu                 sync.Mutex
	logger             *logrus.Entry
}

type snapshotRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
	Key       string    `json:"key"`
}

func NewPersister(baseDir string, messagesPerFile int, logger *logrus.Entry) *Persister {
	if messagesPerFile <= 0 {
		messagesPerFile = defaultMessagesPerFile
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Persister{
		BaseDir:            baseDir,
		NumMessagePerBatch: messagesPerFile,
		logger:             logger,
	}
}

// SaveSnapshot writes every partition of b under BaseDir, replacing files of
// a previous snapshot for the same partitions.
func (p *Persister) SaveSnapshot(b *Broker) error {
	for _, t := range b.Topics() {
		for _, part := range t.Partitions() {
			id := topicPartitionID(t.Name(), part.Number())
			if err := p.persistData(id, part.Messages()...); err != nil {
				return fmt.Errorf("persist %s: %w", id, err)
			}
		}
	}
	p.logger.WithField("Topic", logging.DPersist).Infof("Snapshot of broker %s written to %s.", b.ID, p.BaseDir)
	return nil
}

func (p *Persister) persistData(topicPartitionID string, msgs ...Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dirPath := filepath.Join(p.BaseDir, topicPartitionID)
	if err := os.RemoveAll(dirPath); err != nil {
		return err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	var currentFile *os.File
	closeCurrent := func() error {
		if currentFile == nil {
			return nil
		}
		err := currentFile.Sync()
		if cerr := currentFile.Close(); err == nil {
			err = cerr
		}
		currentFile = nil
		return err
	}
	defer closeCurrent()

	for offset, msg := range msgs {
		// rotate on every batch boundary
		if offset%p.NumMessagePerBatch == 0 {
			if err := closeCurrent(); err != nil {
				return err
			}
			filePath := filepath.Join(dirPath, fmt.Sprintf("%010d.bin", offset))
			f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return err
			}
			currentFile = f
		}

		data, err := json.Marshal(snapshotRecord{Timestamp: msg.timestamp, Body: msg.body, Key: msg.key})
		if err != nil {
			return err
		}
		data = s2.Encode(nil, data)

		if err := binary.Write(currentFile, binary.LittleEndian, uint32(len(data))); err != nil {
			return err
		}
		if _, err := currentFile.Write(data); err != nil {
			return err
		}
	}

	return closeCurrent()
}

// LoadSnapshot replays a snapshot into b. Topics are created, or grown, to
// the highest partition number found, and every message is re-added to the
// partition it was saved from, so b's own limits still apply.
func (p *Persister) LoadSnapshot(b *Broker) error {
	dirs, err := os.ReadDir(p.BaseDir)
	if err != nil {
		return err
	}

	type partitionDir struct {
		topic  string
		number int
		name   string
	}
	var found []partitionDir
	counts := make(map[string]int)

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		topic, number, ok := parseTopicPartitionID(d.Name())
		if !ok {
			p.logger.WithField("Topic", logging.DPersist).Warnf("Skipping unexpected directory %s.", d.Name())
			continue
		}
		found = append(found, partitionDir{topic: topic, number: number, name: d.Name()})
		if number > counts[topic] {
			counts[topic] = number
		}
	}

	for topic, count := range counts {
		if err := b.AddTopic(topic, count); err != nil {
			return err
		}
		if err := b.ChangeTopicSettings(topic, count); err != nil && !errors.Is(err, ErrUnsupportedOperation) {
			return err
		}
	}

	for _, pd := range found {
		msgs, err := p.loadMessagesForPartition(pd.name)
		if err != nil {
			return fmt.Errorf("load %s: %w", pd.name, err)
		}
		for _, rec := range msgs {
			m := NewPartitionedMessage(rec.Timestamp, rec.Body, pd.number, rec.Key)
			if _, err := b.AddMessage(pd.topic, m); err != nil {
				return err
			}
		}
	}

	p.logger.WithField("Topic", logging.DPersist).Infof("Loaded %d partitions from %s.", len(found), p.BaseDir)
	return nil
}

// topicPartitionID names the directory of a partition. The topic is
// path-escaped so that it never contains a separator.
func topicPartitionID(topic string, number int) string {
	return fmt.Sprintf("%s-%d", url.PathEscape(topic), number)
}

func parseTopicPartitionID(name string) (string, int, bool) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return "", 0, false
	}
	number, err := strconv.Atoi(name[idx+1:])
	if err != nil || number < 1 {
		return "", 0, false
	}
	topic, err := url.PathUnescape(name[:idx])
	if err != nil {
		return "", 0, false
	}
	return topic, number, true
}

func (p *Persister) loadMessagesForPartition(topicPartitionID string) ([]snapshotRecord, error) {
	dirPath := filepath.Join(p.BaseDir, topicPartitionID)

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() < files[j].Name()
	})

	var records []snapshotRecord
	for _, file := range files {
		recs, err := p.readMessagesFromFile(filepath.Join(dirPath, file.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (p *Persister) readMessagesFromFile(filePath string) ([]snapshotRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	remaining := info.Size()

	var records []snapshotRecord
	for {
		var length uint32
		err := binary.Read(file, binary.LittleEndian, &length)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		remaining -= 4
		if int64(length) > remaining {
			return nil, fmt.Errorf("%w: %s: record of %d bytes with %d bytes left", ErrCorruptSnapshot, filePath, length, remaining)
		}
		remaining -= int64(length)

		data := make([]byte, length)
		if _, err := io.ReadFull(file, data); err != nil {
			return nil, err
		}
		data, err = s2.Decode(nil, data)
		if err != nil {
			return nil, err
		}

		var rec snapshotRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
