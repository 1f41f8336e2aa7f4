package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"brokersim/brokersim"
	"brokersim/internal/ingest"
	"brokersim/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	brokerName = flag.String(
		"broker-name",
		"",
		"unique name of the broker, a random UUID when empty",
	)
	logLevel = flag.String(
		"log-level",
		"warning",
		"logrus level for diagnostics written to stderr",
	)
	workers = flag.Int(
		"workers",
		1,
		"number of topics ingested concurrently within a batch",
	)
	partitioner = flag.String(
		"partitioner",
		"hash",
		"partition assignment for messages without an explicit partition: hash or roundrobin",
	)
	restoreDir = flag.String(
		"restore-dir",
		"",
		"directory of a previous snapshot to load before reading input",
	)
	snapshotDir = flag.String(
		"snapshot-dir",
		"",
		"directory to write the final broker snapshot to",
	)
	messagesPerFile = flag.Int(
		"messages-per-file",
		1000,
		"number of messages per snapshot file",
	)
)

func main() {
	flag.Parse()

	name := *brokerName
	if name == "" {
		name = uuid.NewString()
	}
	logger, err := logging.NewEntry(os.Stderr, *logLevel, name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	newPartitioner, err := brokersim.PartitionerByName(*partitioner)
	if err != nil {
		logrus.Fatalf("Invalid partitioner: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	script, err := ingest.Parse(os.Stdin)
	if err != nil {
		logger.WithField("Topic", logging.DIngest).Fatalf("Failed to read input: %v", err)
	}

	broker, err := brokersim.NewBroker(brokersim.Config{
		BrokerID:             name,
		MinimumTimestamp:     script.MinimumTimestamp,
		CapacityPerPartition: script.Capacity,
		Partitioner:          newPartitioner,
		Logger:               logger,
	})
	if err != nil {
		logger.WithField("Topic", logging.DBroker).Fatalf("Failed to create broker: %v", err)
	}
	logger.WithField("Topic", logging.DBroker).Infof("Broker %s started, minimum timestamp %s, capacity %d.",
		broker.ID, brokersim.FormatTimestamp(script.MinimumTimestamp), script.Capacity)

	if *restoreDir != "" {
		p := brokersim.NewPersister(*restoreDir, *messagesPerFile, logger)
		if err := p.LoadSnapshot(broker); err != nil {
			logger.WithField("Topic", logging.DPersist).Fatalf("Failed to restore snapshot: %v", err)
		}
	}

	runner := ingest.NewRunner(broker, os.Stdout, *workers, logger)
	if err := runner.Run(ctx, script); err != nil {
		logger.WithField("Topic", logging.DIngest).Fatalf("Run aborted: %v", err)
	}

	if *snapshotDir != "" {
		p := brokersim.NewPersister(*snapshotDir, *messagesPerFile, logger)
		if err := p.SaveSnapshot(broker); err != nil {
			logger.WithField("Topic", logging.DPersist).Fatalf("Failed to write snapshot: %v", err)
		}
	}
}
