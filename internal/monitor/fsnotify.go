package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	fsnotifyBuffer     = 4096
	notificationBuffer = 256
)

// fsnotifyNotifier adapts an fsnotify.Watcher to FileNotifier. fsnotify
// watches single directories, so every directory under the root is added
// at startup and directories created later are added as they appear.
type fsnotifyNotifier struct {
	watcher   *fsnotify.Watcher
	notes     chan Notification
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.SugaredLogger
}

// FsnotifyOpener returns a FileNotifierOpener backed by fsnotify.
func FsnotifyOpener(logger *zap.SugaredLogger) FileNotifierOpener {
	return func(root string) (FileNotifier, error) {
		return newFsnotifyNotifier(root, logger)
	}
}

func newFsnotifyNotifier(root string, logger *zap.SugaredLogger) (*fsnotifyNotifier, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	watcher, err := fsnotify.NewBufferedWatcher(fsnotifyBuffer)
	if err != nil {
		return nil, err
	}

	n := &fsnotifyNotifier{
		watcher: watcher,
		notes:   make(chan Notification, notificationBuffer),
		errs:    make(chan error, 4),
		done:    make(chan struct{}),
		logger:  logger,
	}

	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}
	n.addTree(root, false)

	go n.forward()
	return n, nil
}

// addTree registers every directory below dir. Directories that vanish
// or cannot be read are skipped. When includeRoot is set dir itself is
// added too.
func (n *fsnotifyNotifier) addTree(dir string, includeRoot bool) {
	for _, path := range collectRecursiveDirs(dir) {
		if path == dir && !includeRoot {
			continue
		}
		if err := n.watcher.Add(path); err != nil {
			n.logger.Debugf("File monitor: cannot watch %s: %v", path, err)
		}
	}
}

func collectRecursiveDirs(root string) []string {
	dirs := []string{}
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}

func (n *fsnotifyNotifier) forward() {
	defer close(n.notes)
	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				n.addTree(event.Name, true)
			}
			note := Notification{
				Action: describeOp(event.Op),
				Paths:  []string{event.Name},
			}
			select {
			case n.notes <- note:
			case <-n.done:
				return
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errs <- err:
			case <-n.done:
				return
			default:
				// Nobody is draining errors fast enough; they are
				// diagnostics only.
			}
		case <-n.done:
			return
		}
	}
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

// describeOp names an fsnotify operation. Combined operations are joined
// with "|", e.g. "create|modify".
func describeOp(op fsnotify.Op) string {
	var parts []string
	if op.Has(fsnotify.Create) {
		parts = append(parts, "create")
	}
	if op.Has(fsnotify.Write) {
		parts = append(parts, "modify")
	}
	if op.Has(fsnotify.Remove) {
		parts = append(parts, "remove")
	}
	if op.Has(fsnotify.Rename) {
		parts = append(parts, "rename")
	}
	if op.Has(fsnotify.Chmod) {
		parts = append(parts, "metadata")
	}
	return strings.Join(parts, "|")
}

func (n *fsnotifyNotifier) Notifications() <-chan Notification { return n.notes }

func (n *fsnotifyNotifier) Errors() <-chan error { return n.errs }

func (n *fsnotifyNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		if errors.Is(err, fsnotify.ErrClosed) {
			err = nil
		}
	})
	if err != nil {
		return fmt.Errorf("closing file notifier: %w", err)
	}
	return nil
}
