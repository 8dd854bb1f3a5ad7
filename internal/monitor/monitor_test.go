package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap/zaptest"
)

// funcWatcher adapts a function to Watcher.
type funcWatcher struct {
	name string
	run  func(ctx context.Context, out pipeline.Emitter, probe Probe) error
}

func (w funcWatcher) Name() string { return w.name }

func (w funcWatcher) Run(ctx context.Context, out pipeline.Emitter, probe Probe) error {
	return w.run(ctx, out, probe)
}

// tickingWatcher emits a file event every few milliseconds until cancelled.
func tickingWatcher(name string) funcWatcher {
	return funcWatcher{name: name, run: func(ctx context.Context, out pipeline.Emitter, probe Probe) error {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				out.Emit(telemetry.NewFileEvent("create", "/tmp/"+name))
				probe.CycleSucceeded(1)
			}
		}
	}}
}

type countingMonitorRecorder struct {
	mu       sync.Mutex
	failures map[string]int
	tracked  map[string]int
	up       map[string]bool
}

func newCountingMonitorRecorder() *countingMonitorRecorder {
	return &countingMonitorRecorder{
		failures: make(map[string]int),
		tracked:  make(map[string]int),
		up:       make(map[string]bool),
	}
}

func (r *countingMonitorRecorder) CycleFailed(watcher string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[watcher]++
}

func (r *countingMonitorRecorder) Tracked(watcher string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[watcher] = n
}

func (r *countingMonitorRecorder) WatcherUp(watcher string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.up[watcher] = up
}

func runMonitor(t *testing.T, m *Monitor, out pipeline.Emitter) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, out)
		close(done)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Monitor.Run did not return after cancel")
		}
	}
}

func waitForStatus(t *testing.T, m *Monitor, name string, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, h := range m.Health() {
			if h.Name == name && h.Status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watcher %s never reached status %s", name, want)
}

func TestMonitor_FailingWatcherDoesNotStopOthers(t *testing.T) {
	failing := funcWatcher{name: "usb", run: func(context.Context, pipeline.Emitter, Probe) error {
		return errors.New("opening usb hotplug subscription: permission denied")
	}}
	panicking := funcWatcher{name: "network", run: func(context.Context, pipeline.Emitter, Probe) error {
		panic("boom")
	}}

	rec := newCountingMonitorRecorder()
	m := NewMonitor([]Watcher{failing, panicking, tickingWatcher("file")}, zaptest.NewLogger(t).Sugar(), 3)
	m.SetRecorder(rec)
	out := &recordingEmitter{}

	stop := runMonitor(t, m, out)
	waitForEvents(t, out, 2)
	waitForStatus(t, m, "usb", StatusFailed)
	waitForStatus(t, m, "network", StatusFailed)

	health := make(map[string]WatcherHealth)
	for _, h := range m.Health() {
		health[h.Name] = h
	}
	if got := health["usb"].Status; got != StatusFailed {
		t.Errorf("usb status = %s, want failed", got)
	}
	if got := health["network"].Status; got != StatusFailed {
		t.Errorf("network status = %s, want failed", got)
	}
	if got := health["network"].LastError; got != "panic: boom" {
		t.Errorf("network LastError = %q, want %q", got, "panic: boom")
	}
	if got := health["file"].Status; got != StatusHealthy {
		t.Errorf("file status = %s, want healthy", got)
	}
	if m.Healthy() {
		t.Error("Healthy() = true with failed watchers")
	}

	stop()

	if got := m.Health()[0]; got.Name != "file" || got.Status != StatusStopped {
		t.Errorf("after stop: %+v, want file stopped", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, name := range []string{"usb", "network", "file"} {
		if rec.up[name] {
			t.Errorf("watcher %s still reported up after Run returned", name)
		}
	}
	if rec.tracked["file"] != 1 {
		t.Errorf("tracked[file] = %d, want 1", rec.tracked["file"])
	}
}

func TestMonitor_AllWatchersShareOneEmitter(t *testing.T) {
	names := []string{"process", "usb", "network", "file"}
	watchers := make([]Watcher, 0, len(names))
	for _, name := range names {
		watchers = append(watchers, tickingWatcher(name))
	}

	q := pipeline.NewQueue(1024, nil)
	m := NewMonitor(watchers, nil, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, q)
		q.Close()
		close(done)
	}()

	paths := make(map[string]bool)
	deadline := time.After(2 * time.Second)
	for len(paths) < len(names) {
		select {
		case ev := <-q.Events():
			paths[ev.(telemetry.FileEvent).Path] = true
		case <-deadline:
			t.Fatalf("saw events from %d watchers, want %d", len(paths), len(names))
		}
	}
	cancel()
	<-done

	// Queue is closed once every watcher returned, so draining ends.
	for range q.Events() {
	}
}

func TestMonitor_DegradedWatcherRecovers(t *testing.T) {
	step := make(chan bool)
	flaky := funcWatcher{name: "process", run: func(ctx context.Context, _ pipeline.Emitter, probe Probe) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ok := <-step:
				if ok {
					probe.CycleSucceeded(4)
				} else {
					probe.CycleFailed(errors.New("proc unavailable"))
				}
			}
		}
	}}

	rec := newCountingMonitorRecorder()
	m := NewMonitor([]Watcher{flaky}, zaptest.NewLogger(t).Sugar(), 2)
	m.SetRecorder(rec)
	stop := runMonitor(t, m, &recordingEmitter{})
	defer stop()

	step <- false
	step <- false
	step <- true // each send waits for the previous cycle to finish
	step <- false

	snap := m.Health()[0]
	if snap.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy after recovery", snap.Status)
	}
	if snap.TotalFailures < 2 {
		t.Errorf("TotalFailures = %d, want at least 2", snap.TotalFailures)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.failures["process"] < 2 {
		t.Errorf("recorded failures = %d, want at least 2", rec.failures["process"])
	}
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"process": "Process",
		"usb":     "USB",
		"network": "Network",
		"file":    "File",
		"":        "",
	}
	for in, want := range tests {
		if got := label(in); got != want {
			t.Errorf("label(%q) = %q, want %q", in, got, want)
		}
	}
}
