package monitor

import (
	"context"
	"time"

	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

// ProcessPollInterval is how often the process table is re-enumerated.
// Processes that start and exit between two enumerations are not seen.
const ProcessPollInterval = 10 * time.Second

// ProcessInfo is what the process watcher needs to know about one process.
type ProcessInfo struct {
	PID  int32
	Name string
	Exe  string
	Args []string
}

// ProcessTable enumerates running processes.
type ProcessTable interface {
	// PIDs lists the identifiers of all running processes.
	PIDs(ctx context.Context) ([]int32, error)
	// Inspect reads one process. It fails if the process exited after
	// it was listed.
	Inspect(ctx context.Context, pid int32) (ProcessInfo, error)
}

// ProcessWatcher reports every process identifier that appears in the
// process table after startup. Processes already running when the
// watcher starts seed the seen set and are never reported. A PID is
// reported at most once, so a recycled PID is not reported again.
type ProcessWatcher struct {
	table    ProcessTable
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewProcessWatcher(table ProcessTable, logger *zap.SugaredLogger) *ProcessWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ProcessWatcher{
		table:    table,
		interval: ProcessPollInterval,
		logger:   logger,
	}
}

func (w *ProcessWatcher) Name() string { return "process" }

func (w *ProcessWatcher) Run(ctx context.Context, out pipeline.Emitter, probe Probe) error {
	if probe == nil {
		probe = nopProbe{}
	}

	seen := make(map[int32]struct{})
	seeded := w.seed(ctx, seen, probe)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !seeded {
			seeded = w.seed(ctx, seen, probe)
			continue
		}
		w.poll(ctx, seen, out, probe)
	}
}

// seed fills seen from the current process table without emitting.
// It reports false if the table could not be read; the next cycle
// tries again.
func (w *ProcessWatcher) seed(ctx context.Context, seen map[int32]struct{}, probe Probe) bool {
	pids, err := w.table.PIDs(ctx)
	if err != nil {
		probe.CycleFailed(err)
		return false
	}
	for _, pid := range pids {
		seen[pid] = struct{}{}
	}
	w.logger.Debugf("Process monitor seeded with %d existing processes", len(seen))
	probe.CycleSucceeded(len(seen))
	return true
}

// poll runs one cycle: every PID not yet in seen is inspected, reported
// and remembered. A process that cannot be inspected stays unseen and
// is retried on the next cycle if it is still listed.
func (w *ProcessWatcher) poll(ctx context.Context, seen map[int32]struct{}, out pipeline.Emitter, probe Probe) {
	pids, err := w.table.PIDs(ctx)
	if err != nil {
		probe.CycleFailed(err)
		return
	}

	for _, pid := range pids {
		if _, ok := seen[pid]; ok {
			continue
		}
		info, err := w.table.Inspect(ctx, pid)
		if err != nil {
			w.logger.Debugf("Skipping process %d: %v", pid, err)
			continue
		}
		out.Emit(telemetry.NewProcessEvent(uint32(pid), info.Name, info.Exe, info.Args))
		seen[pid] = struct{}{}
	}
	probe.CycleSucceeded(len(seen))
}
