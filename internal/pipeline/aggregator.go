package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

// Publisher receives every line after it has been written to the
// output stream. Publish must not block. line is not reused by the
// aggregator and must not be modified.
type Publisher interface {
	Publish(line []byte)
}

// Stats summarizes one aggregator run.
type Stats struct {
	Written           uint64
	SerializeFailures uint64
	WriteFailures     uint64
}

// Failures is the total number of events that did not reach the output.
func (s Stats) Failures() uint64 {
	return s.SerializeFailures + s.WriteFailures
}

// Aggregator is the single consumer of the queue. It writes one JSON
// object per line and flushes after every line, so lines appear in
// exactly the order events arrived at the queue.
type Aggregator struct {
	out       *bufio.Writer
	logger    *zap.SugaredLogger
	recorder  Recorder
	publisher Publisher
	marshal   func(telemetry.Event) ([]byte, error)
}

func NewAggregator(w io.Writer, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{
		out:     bufio.NewWriter(w),
		logger:  logger,
		marshal: marshalEvent,
	}
}

// SetRecorder configures counters. Must be called before Run.
func (a *Aggregator) SetRecorder(r Recorder) {
	a.recorder = r
}

// SetPublisher mirrors written lines to p. Must be called before Run.
func (a *Aggregator) SetPublisher(p Publisher) {
	a.publisher = p
}

func marshalEvent(ev telemetry.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// Run drains events until the channel is closed. A serialization
// failure drops that one event and the loop continues. A failure to
// write the output stream ends the run with an error, since every
// later line would fail the same way.
func (a *Aggregator) Run(events <-chan telemetry.Event) (Stats, error) {
	var stats Stats
	for ev := range events {
		line, err := a.marshal(ev)
		if err != nil {
			stats.SerializeFailures++
			a.sinkFailure("serialize")
			a.logger.Warnf("Dropping %s event: marshal: %v", ev.Type(), err)
			continue
		}

		if err := a.writeLine(line); err != nil {
			stats.WriteFailures++
			a.sinkFailure("write")
			return stats, fmt.Errorf("writing %s event: %w", ev.Type(), err)
		}
		stats.Written++
		if a.recorder != nil {
			a.recorder.EventWritten(ev.Type())
		}
		if a.publisher != nil {
			a.publisher.Publish(line)
		}
	}
	return stats, nil
}

func (a *Aggregator) writeLine(line []byte) error {
	if _, err := a.out.Write(line); err != nil {
		return err
	}
	if err := a.out.WriteByte('\n'); err != nil {
		return err
	}
	return a.out.Flush()
}

func (a *Aggregator) sinkFailure(reason string) {
	if a.recorder != nil {
		a.recorder.SinkFailure(reason)
	}
}
