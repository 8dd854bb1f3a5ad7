package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hostwatch/collector/internal/pipeline"
	"go.uber.org/zap"
)

const defaultFailureThreshold = 3

// Watcher observes one OS-level source and emits telemetry events.
//
// Run blocks until ctx is cancelled, the underlying source is closed, or
// the watcher cannot continue. A nil return is a clean stop; a non-nil
// error ends only this watcher. Each watcher keeps its own "previously
// seen" state inside Run, so watchers never share mutable state.
type Watcher interface {
	// Name is a short lowercase identifier: "process", "usb", "network"
	// or "file".
	Name() string
	Run(ctx context.Context, out pipeline.Emitter, probe Probe) error
}

// Probe receives progress reports from a polling watcher.
type Probe interface {
	// CycleSucceeded reports a completed poll cycle and the size of the
	// watcher's remembered set afterwards.
	CycleSucceeded(tracked int)
	// CycleFailed reports a poll cycle that was skipped.
	CycleFailed(err error)
}

// Recorder receives watcher counters. A nil Recorder disables them.
type Recorder interface {
	CycleFailed(watcher string)
	Tracked(watcher string, n int)
	WatcherUp(watcher string, up bool)
}

// Monitor supervises the watchers: one goroutine each, all emitting into
// the same pipeline.Emitter. A watcher that fails or panics is logged
// and marked failed; the others keep running.
type Monitor struct {
	watchers  []Watcher
	logger    *zap.SugaredLogger
	threshold int
	recorder  Recorder
	health    map[string]*watcherHealth // keyed by watcher name
}

// DefaultWatchers returns the four host watchers backed by the real
// operating system sources.
func DefaultWatchers(logger *zap.SugaredLogger) []Watcher {
	return []Watcher{
		NewProcessWatcher(gopsutilProcessTable{}, logger),
		NewUsbWatcher(OpenUevents, nil, logger),
		NewNetworkWatcher(gopsutilConnectionTable{}, logger),
		NewFileWatcher(WatchRoot, FsnotifyOpener(logger), logger),
	}
}

func NewMonitor(watchers []Watcher, logger *zap.SugaredLogger, failureThreshold int) *Monitor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	health := make(map[string]*watcherHealth, len(watchers))
	for _, w := range watchers {
		health[w.Name()] = newWatcherHealth(w.Name())
	}
	return &Monitor{
		watchers:  watchers,
		logger:    logger,
		threshold: failureThreshold,
		health:    health,
	}
}

// SetRecorder configures counters. Must be called before Run.
func (m *Monitor) SetRecorder(r Recorder) {
	m.recorder = r
}

// Run starts every watcher and blocks until all of them have returned.
// The caller closes the emitter's queue afterwards.
func (m *Monitor) Run(ctx context.Context, out pipeline.Emitter) {
	var wg sync.WaitGroup
	for _, w := range m.watchers {
		h := m.health[w.Name()]
		probe := &watcherProbe{monitor: m, name: w.Name(), health: h}

		h.recordStart()
		if m.recorder != nil {
			m.recorder.WatcherUp(w.Name(), true)
		}

		wg.Add(1)
		go func(w Watcher) {
			defer wg.Done()
			err := m.runWatcher(ctx, w, out, probe)
			h.recordExit(err)
			if m.recorder != nil {
				m.recorder.WatcherUp(w.Name(), false)
			}
			if err != nil {
				m.logger.Errorf("%s monitor failed: %v", label(w.Name()), err)
				return
			}
			m.logger.Infof("%s monitor stopped", label(w.Name()))
		}(w)
		m.logger.Infof("%s monitor started", label(w.Name()))
	}
	wg.Wait()
}

// runWatcher converts a panic inside a watcher into an error so one
// broken watcher cannot take the others down.
func (m *Monitor) runWatcher(ctx context.Context, w Watcher, out pipeline.Emitter, probe Probe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Run(ctx, out, probe)
}

// Health returns a snapshot for every watcher, sorted by name.
func (m *Monitor) Health() []WatcherHealth {
	out := make([]WatcherHealth, 0, len(m.health))
	for _, h := range m.health {
		out = append(out, h.snapshot(m.threshold))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether no watcher has failed or is degraded.
func (m *Monitor) Healthy() bool {
	for _, h := range m.Health() {
		if h.Status == StatusFailed || h.Status == StatusDegraded {
			return false
		}
	}
	return true
}

func label(name string) string {
	switch name {
	case "":
		return name
	case "usb":
		return "USB"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// watcherProbe feeds a watcher's cycle reports into its health record
// and logs status transitions once.
type watcherProbe struct {
	monitor *Monitor
	name    string
	health  *watcherHealth
}

func (p *watcherProbe) CycleSucceeded(tracked int) {
	p.health.recordCycleSuccess(tracked)
	if r := p.monitor.recorder; r != nil {
		r.Tracked(p.name, tracked)
	}
	if status, changed := p.health.statusChange(p.monitor.threshold); changed && status == StatusHealthy {
		p.monitor.logger.Infof("%s monitor healthy", label(p.name))
	}
}

func (p *watcherProbe) CycleFailed(err error) {
	p.health.recordCycleFailure(err)
	if r := p.monitor.recorder; r != nil {
		r.CycleFailed(p.name)
	}
	status, changed := p.health.statusChange(p.monitor.threshold)
	if changed && status == StatusDegraded {
		p.monitor.logger.Warnf("%s monitor degraded after %d failed cycles: %v", label(p.name), p.monitor.threshold, err)
		return
	}
	p.monitor.logger.Debugf("%s monitor cycle skipped: %v", label(p.name), err)
}

type nopProbe struct{}

func (nopProbe) CycleSucceeded(int) {}
func (nopProbe) CycleFailed(error)  {}
