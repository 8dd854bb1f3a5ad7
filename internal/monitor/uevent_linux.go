//go:build linux

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// kernelUeventGroup is the netlink multicast group the kernel
	// publishes uevents on. Group 2 carries udev's re-broadcasts.
	kernelUeventGroup = 1
	ueventBufferSize  = 16 * 1024
	ueventSocketBuf   = 1 << 20
	// ueventPollTimeout bounds each blocking receive so Receive can
	// notice context cancellation.
	ueventPollTimeout = 500 * time.Millisecond
)

// netlinkUeventSource reads kernel uevents from a NETLINK_KOBJECT_UEVENT
// socket and keeps those for one subsystem.
type netlinkUeventSource struct {
	mu        sync.Mutex
	fd        int
	closed    bool
	subsystem string
	buf       []byte
}

// OpenUevents subscribes to kernel uevents for subsystem. An empty
// subsystem delivers every notification.
func OpenUevents(subsystem string) (UeventSource, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelUeventGroup}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	tv := unix.NsecToTimeval(ueventPollTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink receive timeout: %w", err)
	}
	// Best effort: a larger buffer absorbs hotplug bursts.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, ueventSocketBuf)

	return &netlinkUeventSource{
		fd:        fd,
		subsystem: subsystem,
		buf:       make([]byte, ueventBufferSize),
	}, nil
}

func (s *netlinkUeventSource) Receive(ctx context.Context) (Uevent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Uevent{}, err
		}

		fd, ok := s.descriptor()
		if !ok {
			return Uevent{}, ErrSourceClosed
		}

		n, from, err := unix.Recvfrom(fd, s.buf, 0)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.ENOBUFS):
				return Uevent{}, ErrUeventOverrun
			case errors.Is(err, unix.EBADF):
				return Uevent{}, ErrSourceClosed
			}
			return Uevent{}, fmt.Errorf("netlink receive: %w", err)
		}
		if n == 0 {
			continue
		}

		// Only the kernel (port id 0) may speak on this group.
		if sa, ok := from.(*unix.SockaddrNetlink); !ok || sa.Pid != 0 {
			continue
		}

		ev, err := ParseUevent(s.buf[:n])
		if err != nil {
			return Uevent{}, err
		}
		if s.subsystem != "" && ev.Subsystem != s.subsystem {
			continue
		}
		return ev, nil
	}
}

func (s *netlinkUeventSource) descriptor() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd, !s.closed
}

func (s *netlinkUeventSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
