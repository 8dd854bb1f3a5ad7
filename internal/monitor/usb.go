package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hostwatch/collector/internal/pipeline"
	"github.com/hostwatch/collector/internal/telemetry"
	"go.uber.org/zap"
)

const usbSubsystem = "usb"

var (
	// ErrSourceClosed is returned by a notification source after Close.
	ErrSourceClosed = errors.New("notification source closed")
	// ErrUnsupported is returned when the platform has no hotplug source.
	ErrUnsupported = errors.New("not supported on this platform")
	// ErrMalformedUevent marks a datagram that is not a kernel uevent.
	ErrMalformedUevent = errors.New("malformed uevent")
	// ErrUeventOverrun means the kernel dropped notifications because
	// the socket buffer was full.
	ErrUeventOverrun = errors.New("uevent receive buffer overrun")
)

// Uevent is one kernel device notification.
type Uevent struct {
	Action    string
	DevPath   string
	Subsystem string
	Env       map[string]string
}

// Get returns the value of an environment key, or "" if absent.
func (u Uevent) Get(key string) string {
	return u.Env[key]
}

// UeventSource delivers kernel device notifications for one subsystem.
type UeventSource interface {
	// Receive blocks until the next notification arrives or ctx is
	// done. It returns ErrSourceClosed after Close.
	Receive(ctx context.Context) (Uevent, error)
	Close() error
}

// UeventOpener subscribes to notifications for one subsystem.
type UeventOpener func(subsystem string) (UeventSource, error)

// DeviceAttributes looks up sysfs data for a device path.
type DeviceAttributes interface {
	Attribute(devPath, name string) (string, bool)
	Driver(devPath string) (string, bool)
}

// ParseUevent decodes a kernel uevent datagram:
//
//	ACTION@DEVPATH\0KEY=VALUE\0KEY=VALUE\0...
//
// Messages re-broadcast by udev start with "libudev" and are rejected.
func ParseUevent(msg []byte) (Uevent, error) {
	if bytes.HasPrefix(msg, []byte("libudev")) {
		return Uevent{}, fmt.Errorf("%w: udev-format message", ErrMalformedUevent)
	}

	fields := bytes.Split(bytes.TrimRight(msg, "\x00"), []byte{0})
	header := string(fields[0])
	at := strings.IndexByte(header, '@')
	if at <= 0 || at == len(header)-1 {
		return Uevent{}, fmt.Errorf("%w: header %q", ErrMalformedUevent, header)
	}

	ev := Uevent{
		Action:  header[:at],
		DevPath: header[at+1:],
		Env:     make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
	}

	if action := ev.Env["ACTION"]; action != "" {
		ev.Action = action
	}
	if devPath := ev.Env["DEVPATH"]; devPath != "" {
		ev.DevPath = devPath
	}
	ev.Subsystem = ev.Env["SUBSYSTEM"]
	return ev, nil
}

// sysfsAttributes reads device attributes from a mounted sysfs.
type sysfsAttributes struct {
	root string
}

func (s sysfsAttributes) Attribute(devPath, name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.root, devPath, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (s sysfsAttributes) Driver(devPath string) (string, bool) {
	target, err := os.Readlink(filepath.Join(s.root, devPath, "driver"))
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// UsbWatcher emits one UsbEvent per kernel hotplug notification for the
// usb subsystem, with no deduplication.
type UsbWatcher struct {
	open   UeventOpener
	attrs  DeviceAttributes
	logger *zap.SugaredLogger
}

func NewUsbWatcher(open UeventOpener, attrs DeviceAttributes, logger *zap.SugaredLogger) *UsbWatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if attrs == nil {
		attrs = sysfsAttributes{root: "/sys"}
	}
	return &UsbWatcher{
		open:   open,
		attrs:  attrs,
		logger: logger,
	}
}

func (w *UsbWatcher) Name() string { return "usb" }

// Run fails only if the subscription cannot be opened or the source
// reports an unrecoverable error. Malformed datagrams and buffer
// overruns are logged and skipped.
func (w *UsbWatcher) Run(ctx context.Context, out pipeline.Emitter, probe Probe) error {
	src, err := w.open(usbSubsystem)
	if err != nil {
		return fmt.Errorf("opening usb hotplug subscription: %w", err)
	}
	defer src.Close()

	for {
		ev, err := src.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, ErrSourceClosed):
				return nil
			case errors.Is(err, ErrMalformedUevent):
				w.logger.Debugf("Dropping uevent: %v", err)
				continue
			case errors.Is(err, ErrUeventOverrun):
				w.logger.Warnf("USB monitor: kernel notifications lost: %v", err)
				continue
			}
			return fmt.Errorf("receiving usb notification: %w", err)
		}
		out.Emit(w.describe(ev))
	}
}

// describe builds the event for one notification. Vendor and product
// ids come from the device's sysfs attributes. Once a device is removed
// its sysfs directory is gone, so for usb_device removals they fall back
// to the PRODUCT key ("vid/pid/bcd").
func (w *UsbWatcher) describe(ev Uevent) telemetry.UsbEvent {
	vendor, _ := w.attrs.Attribute(ev.DevPath, "idVendor")
	model, _ := w.attrs.Attribute(ev.DevPath, "idProduct")
	if ev.Action == "remove" && ev.Get("DEVTYPE") == "usb_device" {
		v, m := parseProduct(ev.Get("PRODUCT"))
		if vendor == "" {
			vendor = v
		}
		if model == "" {
			model = m
		}
	}

	driver := ev.Get("DRIVER")
	if driver == "" {
		driver, _ = w.attrs.Driver(ev.DevPath)
	}

	return telemetry.NewUsbEvent(ev.Action, vendor, model, driver)
}

// parseProduct splits a PRODUCT value such as "46d/c52b/1201" into ids
// padded to the four hex digits sysfs uses ("046d", "c52b").
func parseProduct(product string) (vendor, model string) {
	parts := strings.Split(product, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return padHex4(parts[0]), padHex4(parts[1])
}

func padHex4(s string) string {
	if s == "" || len(s) >= 4 {
		return s
	}
	return strings.Repeat("0", 4-len(s)) + s
}
