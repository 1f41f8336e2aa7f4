package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log topics, attached to every entry as the "Topic" field.
const (
	DBroker  = "BROKER"
	DTopic   = "TOPIC"
	DIngest  = "INGEST"
	DPersist = "PERSIST"
)

// NewEntry builds a logger that writes text lines to w at the given level,
// tagged with the node name.
func NewEntry(w io.Writer, level string, node string) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger.WithField("Node", node), nil
}

// Discard returns an entry that drops everything, for tests and library
// callers that did not configure a logger.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
