package monitor

import (
	"context"
	"fmt"

	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

// WatchRoot is the directory tree the filesystem watcher observes.
const WatchRoot = "/tmp"

// Notification is one filesystem change. A single notification may
// concern several paths; they all share the same action description.
type Notification struct {
	Action string
	Paths  []string
}

// FileNotifier delivers filesystem change notifications for a tree.
type FileNotifier interface {
	Notifications() <-chan Notification
	// Errors carries problems reported by the notification source.
	// They never become events.
	Errors() <-chan error
	Close() error
}

// FileNotifierOpener subscribes recursively to changes under root.
type FileNotifierOpener func(root string) (FileNotifier, error)

// FileWatcher emits one FileEvent per (notification, path) pair, with no
// deduplication.
type FileWatcher struct {
	root   string
	open   FileNotifierOpener
	logger *zap.SugaredLogger
}

func NewFileWatcher(root string, open FileNotifierOpener, logger *zap.SugaredLogger) *FileWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileWatcher{
		root:   root,
		open:   open,
		logger: logger,
	}
}

func (w *FileWatcher) Name() string { return "file" }

func (w *FileWatcher) Run(ctx context.Context, out pipeline.Emitter, probe Probe) error {
	notifier, err := w.open(w.root)
	if err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	defer notifier.Close()

	w.logger.Infof("File monitor watching directory: %s", w.root)

	notes := notifier.Notifications()
	errs := notifier.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case note, ok := <-notes:
			if !ok {
				return nil
			}
			w.emit(note, out)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Debugf("Dropping file notification error: %v", err)
		}
	}
}

// emit fans one notification out into one event per path. Notifications
// without an action are malformed and dropped.
func (w *FileWatcher) emit(note Notification, out pipeline.Emitter) {
	if note.Action == "" {
		w.logger.Debugf("Dropping file notification without action for %v", note.Paths)
		return
	}
	for _, path := range note.Paths {
		if path == "" {
			continue
		}
		out.Emit(telemetry.NewFileEvent(note.Action, path))
	}
}
