package ingest

import (
	"context"
	"errors"
	"io"

	"brokersim/brokersim"
	"brokersim/internal/logging"
	"brokersim/internal/report"

	"github.com/puzpuzpuz/xsync"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcomes counts what happened to the records of a run.
type Outcomes struct {
	Stored   int64
	Evicted  int64
	Dropped  int64 // older than the broker minimum
	Rejected int64 // unknown topic, unknown partition or refused setting change
}

// Runner applies a Script to a broker and writes the report to out.
type Runner struct {
	broker  *brokersim.Broker
	out     io.Writer
	workers int
	logger  *logrus.Entry

	stored   *xsync.Counter
	evicted  *xsync.Counter
	dropped  *xsync.Counter
	rejected *xsync.Counter
}

// NewRunner creates a runner. With workers > 1 each message batch is
// ingested one goroutine per topic, at most workers at a time; records of
// the same topic keep their input order either way.
func NewRunner(b *brokersim.Broker, out io.Writer, workers int, logger *logrus.Entry) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		broker:   b,
		out:      out,
		workers:  workers,
		logger:   logger,
		stored:   new(xsync.Counter),
		evicted:  new(xsync.Counter),
		dropped:  new(xsync.Counter),
		rejected: new(xsync.Counter),
	}
}

func (r *Runner) Outcomes() Outcomes {
	return Outcomes{
		Stored:   r.stored.Value(),
		Evicted:  r.evicted.Value(),
		Dropped:  r.dropped.Value(),
		Rejected: r.rejected.Value(),
	}
}

// Run declares the topics, ingests the first batch, applies the setting
// changes and ingests the second batch, dumping the broker after each batch.
// Per-record failures are written to out and do not stop the run.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	for _, decl := range s.Topics {
		if err := r.broker.AddTopic(decl.Name, decl.PartitionCount); err != nil {
			r.rejected.Inc()
			r.logger.WithField("Topic", logging.DIngest).Warnf("line %d: %v", decl.Line, err)
			if err := report.Line(r.out, err.Error()); err != nil {
				return err
			}
		}
	}

	steps := []func() error{
		func() error { return report.Line(r.out, report.AddingMessages) },
		func() error { return r.IngestBatch(ctx, s.FirstBatch) },
		func() error { return report.Line(r.out, report.StateAfterAddition) },
		func() error { return report.WriteBroker(r.out, r.broker) },
		func() error { return report.Line(r.out, report.ChangeOfTopics) },
		func() error { return r.ApplyChanges(s.Changes) },
		func() error { return report.Line(r.out, report.AddingNewMessages) },
		func() error { return r.IngestBatch(ctx, s.SecondBatch) },
		func() error { return report.Line(r.out, report.StateAfterChange) },
		func() error { return report.WriteBroker(r.out, r.broker) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	o := r.Outcomes()
	r.logger.WithField("Topic", logging.DIngest).Infof("Run finished: %d stored, %d evicted, %d dropped, %d rejected.",
		o.Stored, o.Evicted, o.Dropped, o.Rejected)
	return nil
}

// IngestBatch adds every record to the broker and then writes the failed
// records' errors to out in input order.
func (r *Runner) IngestBatch(ctx context.Context, records []MessageRecord) error {
	errs := make([]error, len(records))

	if r.workers == 1 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			errs[i] = r.add(rec)
		}
	} else {
		// group record indexes by topic, preserving order inside a topic
		groups := make(map[string][]int)
		var order []string
		for i, rec := range records {
			if _, ok := groups[rec.Topic]; !ok {
				order = append(order, rec.Topic)
			}
			groups[rec.Topic] = append(groups[rec.Topic], i)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, topic := range order {
			idxs := groups[topic]
			g.Go(func() error {
				for _, i := range idxs {
					if err := gctx.Err(); err != nil {
						return err
					}
					errs[i] = r.add(records[i])
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for _, err := range errs {
		if err == nil {
			continue
		}
		if err := report.Line(r.out, err.Error()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) add(rec MessageRecord) error {
	result, err := r.broker.AddMessage(rec.Topic, rec.Message)
	if err != nil {
		r.rejected.Inc()
		entry := r.logger.WithField("Topic", logging.DIngest)
		switch {
		case errors.Is(err, brokersim.ErrTopicNotFound), errors.Is(err, brokersim.ErrPartitionNotFound):
			entry.Debugf("line %d rejected: %v", rec.Line, err)
		default:
			entry.Errorf("line %d failed: %v", rec.Line, err)
		}
		return err
	}
	switch result {
	case brokersim.Stored:
		r.stored.Inc()
	case brokersim.Evicted:
		r.stored.Inc()
		r.evicted.Inc()
	case brokersim.Dropped:
		r.dropped.Inc()
	}
	return nil
}

// ApplyChanges grows the named topics. Refused changes are written to out
// and skipped.
func (r *Runner) ApplyChanges(changes []SettingChange) error {
	for _, c := range changes {
		err := r.broker.ChangeTopicSettings(c.Topic, c.PartitionCount)
		if err == nil {
			continue
		}
		r.rejected.Inc()
		r.logger.WithField("Topic", logging.DIngest).Debugf("line %d rejected: %v", c.Line, err)
		if err := report.Line(r.out, err.Error()); err != nil {
			return err
		}
	}
	return nil
}
