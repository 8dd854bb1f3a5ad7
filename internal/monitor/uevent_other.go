//go:build !linux

package monitor

import "fmt"

// OpenUevents has no implementation outside Linux; the USB watcher fails
// at startup and the other watchers keep running.
func OpenUevents(subsystem string) (UeventSource, error) {
	return nil, fmt.Errorf("kernel uevents for %q: %w", subsystem, ErrUnsupported)
}
