package monitor

import (
	"context"
	"time"

	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

// NetworkPollInterval is how often the TCP table is re-read.
const NetworkPollInterval = 20 * time.Second

// Connection is one row of the TCP table. PID is telemetry.UnresolvedPID
// when the socket's owner is unknown.
type Connection struct {
	Local  string
	Remote string
	State  string
	PID    int32
}

// ConnectionTable reads the current TCP connection table.
type ConnectionTable interface {
	Connections(ctx context.Context) ([]Connection, error)
}

// fingerprint identifies a connection for deduplication only.
type fingerprint struct {
	local  string
	remote string
	state  string
	pid    int32
}

// NetworkWatcher reports each distinct (local, remote, state, pid) tuple
// once. Unlike the process watcher it is not seeded: connections that
// exist at startup are reported on the first cycle, which runs
// immediately. The fingerprint set is never pruned.
type NetworkWatcher struct {
	table    ConnectionTable
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewNetworkWatcher(table ConnectionTable, logger *zap.SugaredLogger) *NetworkWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &NetworkWatcher{
		table:    table,
		interval: NetworkPollInterval,
		logger:   logger,
	}
}

func (w *NetworkWatcher) Name() string { return "network" }

func (w *NetworkWatcher) Run(ctx context.Context, out pipeline.Emitter, probe Probe) error {
	if probe == nil {
		probe = nopProbe{}
	}

	seen := make(map[fingerprint]struct{})

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx, seen, out, probe)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll(ctx, seen, out, probe)
		}
	}
}

// poll runs one cycle. A table read failure skips the cycle; the next
// attempt happens at the next tick.
func (w *NetworkWatcher) poll(ctx context.Context, seen map[fingerprint]struct{}, out pipeline.Emitter, probe Probe) {
	conns, err := w.table.Connections(ctx)
	if err != nil {
		probe.CycleFailed(err)
		return
	}

	added := 0
	for _, c := range conns {
		key := fingerprint{local: c.Local, remote: c.Remote, state: c.State, pid: c.PID}
		if _, ok := seen[key]; ok {
			continue
		}
		out.Emit(telemetry.NewNetworkEvent(c.Local, c.Remote, c.State, c.PID))
		seen[key] = struct{}{}
		added++
	}
	if added > 0 {
		w.logger.Debugf("Network monitor: %d new connections, %d tracked", added, len(seen))
	}
	probe.CycleSucceeded(len(seen))
}
