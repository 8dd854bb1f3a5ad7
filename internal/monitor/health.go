package monitor

import (
	"sync"
	"time"
)

// Status is the health of one watcher as reported on /healthz.
type Status string

const (
	StatusStarting Status = "starting"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// WatcherHealth is a point-in-time copy of a watcher's health.
type WatcherHealth struct {
	Name                string    `json:"name"`
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalFailures       uint64    `json:"total_failures"`
	Tracked             int       `json:"tracked"`
	LastError           string    `json:"last_error,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
}

// watcherHealth tracks consecutive cycle failures for a single watcher.
// Fields are protected by mu because the watcher goroutine writes them
// while the health endpoint reads them.
type watcherHealth struct {
	mu                  sync.Mutex
	name                string
	started             bool
	exited              bool
	exitErr             string
	consecutiveFailures int
	totalFailures       uint64
	lastErr             string
	lastFail            time.Time
	tracked             int
	lastEmittedStatus   Status
}

func newWatcherHealth(name string) *watcherHealth {
	return &watcherHealth{
		name:              name,
		lastEmittedStatus: StatusStarting,
	}
}

func (h *watcherHealth) recordStart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	h.lastEmittedStatus = StatusHealthy
}

func (h *watcherHealth) recordCycleSuccess(tracked int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.tracked = tracked
}

func (h *watcherHealth) recordCycleFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	h.totalFailures++
	h.lastErr = err.Error()
	h.lastFail = time.Now()
}

// recordExit marks the watcher as finished. A nil error means a clean
// stop, anything else is a failure.
func (h *watcherHealth) recordExit(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exited = true
	if err != nil {
		h.exitErr = err.Error()
		h.lastErr = h.exitErr
		h.lastFail = time.Now()
	}
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *watcherHealth) statusLocked(threshold int) Status {
	switch {
	case h.exited && h.exitErr != "":
		return StatusFailed
	case h.exited:
		return StatusStopped
	case !h.started:
		return StatusStarting
	case h.consecutiveFailures >= threshold:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// snapshot returns a consistent copy of all health fields under the lock.
func (h *watcherHealth) snapshot(threshold int) WatcherHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return WatcherHealth{
		Name:                h.name,
		Status:              h.statusLocked(threshold),
		ConsecutiveFailures: h.consecutiveFailures,
		TotalFailures:       h.totalFailures,
		Tracked:             h.tracked,
		LastError:           h.lastErr,
		LastFailure:         h.lastFail,
	}
}

// statusChange returns the current status and whether it differs from
// the last one returned by statusChange. Used to log transitions once.
func (h *watcherHealth) statusChange(threshold int) (Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	status := h.statusLocked(threshold)
	changed := status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = status
	}
	return status, changed
}
