package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/hostwatch/collector/internal/telemetry"
)

// recordingEmitter collects emitted events. Safe for concurrent use.
type recordingEmitter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (e *recordingEmitter) Emit(ev telemetry.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return true
}

func (e *recordingEmitter) snapshot() []telemetry.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]telemetry.Event, len(e.events))
	copy(out, e.events)
	return out
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// waitForEvents polls until at least n events were emitted.
func waitForEvents(t *testing.T, e *recordingEmitter, n int) []telemetry.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := e.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(e.snapshot()))
	return nil
}

// recordingProbe counts cycle reports.
type recordingProbe struct {
	mu        sync.Mutex
	successes int
	failures  int
	tracked   int
}

func (p *recordingProbe) CycleSucceeded(tracked int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.successes++
	p.tracked = tracked
}

func (p *recordingProbe) CycleFailed(error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
}

func (p *recordingProbe) counts() (successes, failures, tracked int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.successes, p.failures, p.tracked
}
