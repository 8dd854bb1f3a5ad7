package pipeline

import (
	"sync"
	"time"

	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

const (
	DefaultCapacity        = 4096
	DefaultDropLogInterval = 10 * time.Second
)

// Emitter accepts events from a watcher. Emit never blocks; it reports
// false when the event was dropped.
type Emitter interface {
	Emit(ev telemetry.Event) bool
}

// Recorder receives pipeline counters. A nil Recorder disables them.
type Recorder interface {
	EventQueued(t telemetry.EventType)
	EventDropped(t telemetry.EventType)
	EventWritten(t telemetry.EventType)
	SinkFailure(reason string)
}

// Queue is the fan-in point between the watchers and the aggregator:
// any number of goroutines may call Emit concurrently, exactly one
// goroutine reads Events.
//
// Capacity is bounded. When the buffer is full Emit drops the event
// rather than blocking, so a slow sink never stalls a watcher that is
// reading kernel notifications. Drops are counted per event type and a
// summary is logged at most once per drop log interval.
type Queue struct {
	mu     sync.RWMutex
	ch     chan telemetry.Event
	closed bool

	logger          *zap.SugaredLogger
	recorder        Recorder
	dropLogInterval time.Duration

	dropMu      sync.Mutex
	dropped     map[telemetry.EventType]uint64
	pending     uint64
	lastDropLog time.Time
}

// NewQueue creates a queue buffering up to capacity events. A
// non-positive capacity selects DefaultCapacity.
func NewQueue(capacity int, logger *zap.SugaredLogger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Queue{
		ch:              make(chan telemetry.Event, capacity),
		logger:          logger,
		dropLogInterval: DefaultDropLogInterval,
		dropped:         make(map[telemetry.EventType]uint64),
	}
}

// SetRecorder configures counters. Must be called before the first Emit.
func (q *Queue) SetRecorder(r Recorder) {
	q.recorder = r
}

// SetDropLogInterval changes how often drop summaries are logged.
func (q *Queue) SetDropLogInterval(d time.Duration) {
	if d > 0 {
		q.dropLogInterval = d
	}
}

// Emit enqueues ev without blocking. It returns false if the queue is
// full or already closed.
func (q *Queue) Emit(ev telemetry.Event) bool {
	if ev == nil {
		return false
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.recordDrop(ev.Type())
		return false
	}
	select {
	case q.ch <- ev:
		q.mu.RUnlock()
		if q.recorder != nil {
			q.recorder.EventQueued(ev.Type())
		}
		return true
	default:
		q.mu.RUnlock()
		q.recordDrop(ev.Type())
		return false
	}
}

func (q *Queue) recordDrop(t telemetry.EventType) {
	if q.recorder != nil {
		q.recorder.EventDropped(t)
	}

	q.dropMu.Lock()
	defer q.dropMu.Unlock()
	q.dropped[t]++
	q.pending++
	now := time.Now()
	if q.lastDropLog.IsZero() || now.Sub(q.lastDropLog) >= q.dropLogInterval {
		q.logger.Warnf("Telemetry events dropped: %d (queue full, capacity %d)", q.pending, cap(q.ch))
		q.pending = 0
		q.lastDropLog = now
	}
}

// Events returns the receive side of the queue. It is closed by Close.
func (q *Queue) Events() <-chan telemetry.Event {
	return q.ch
}

// Len reports how many events are buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap reports the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns a copy of the per-type drop counters.
func (q *Queue) Dropped() map[telemetry.EventType]uint64 {
	q.dropMu.Lock()
	defer q.dropMu.Unlock()
	out := make(map[telemetry.EventType]uint64, len(q.dropped))
	for t, n := range q.dropped {
		out[t] = n
	}
	return out
}

// Close stops accepting events and closes the channel returned by
// Events once the buffered events have been read. Safe to call twice.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
