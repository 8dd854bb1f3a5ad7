package telemetry

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// EventType is the discriminator carried in every serialized event as
// the "event_type" field.
type EventType string

const (
	TypeProcessStart EventType = "process_start"
	TypeUsb          EventType = "usb_event"
	TypeNetworkConn  EventType = "network_conn"
	TypeFile         EventType = "file_event"
)

// Types returns every recognized event type, in a stable order.
func Types() []EventType {
	return []EventType{TypeProcessStart, TypeUsb, TypeNetworkConn, TypeFile}
}

// Event is one observed fact. The set of implementations is closed:
// ProcessEvent, UsbEvent, NetworkEvent and FileEvent.
//
// Events are plain values. Once constructed they are never modified;
// a watcher hands an event to the pipeline and keeps no reference to it.
type Event interface {
	Type() EventType
	json.Marshaler
	sealed()
}

// ProcessEvent reports a process identifier newly observed in the
// process table.
type ProcessEvent struct {
	PID  uint32 `json:"pid"`
	Name string `json:"name"`
	Exe  string `json:"exe"`
	Cmd  string `json:"cmd"`
}

// UsbEvent reports one kernel hotplug notification for the usb subsystem.
// Any field may be empty when the kernel did not provide it.
type UsbEvent struct {
	Action   string `json:"action"`
	VendorID string `json:"vendor_id"`
	ModelID  string `json:"model_id"`
	Driver   string `json:"driver"`
}

// NetworkEvent reports a TCP connection tuple newly observed in the
// connection table. PID is -1 when the owning process is unknown.
type NetworkEvent struct {
	LocalAddress  string `json:"local_address"`
	RemoteAddress string `json:"remote_address"`
	State         string `json:"state"`
	PID           int32  `json:"pid"`
}

// FileEvent reports one filesystem mutation for one affected path.
type FileEvent struct {
	Action string `json:"action"`
	Path   string `json:"path"`
}

// UnresolvedPID is the NetworkEvent.PID value for sockets whose owner
// could not be found.
const UnresolvedPID int32 = -1

func (ProcessEvent) Type() EventType { return TypeProcessStart }
func (UsbEvent) Type() EventType     { return TypeUsb }
func (NetworkEvent) Type() EventType { return TypeNetworkConn }
func (FileEvent) Type() EventType    { return TypeFile }

func (ProcessEvent) sealed() {}
func (UsbEvent) sealed()     {}
func (NetworkEvent) sealed() {}
func (FileEvent) sealed()    {}

// The alias types drop the MarshalJSON method so the embedded fields
// are flattened next to event_type instead of recursing.

func (e ProcessEvent) MarshalJSON() ([]byte, error) {
	type fields ProcessEvent
	return json.Marshal(struct {
		EventType EventType `json:"event_type"`
		fields
	}{e.Type(), fields(e)})
}

func (e UsbEvent) MarshalJSON() ([]byte, error) {
	type fields UsbEvent
	return json.Marshal(struct {
		EventType EventType `json:"event_type"`
		fields
	}{e.Type(), fields(e)})
}

func (e NetworkEvent) MarshalJSON() ([]byte, error) {
	type fields NetworkEvent
	return json.Marshal(struct {
		EventType EventType `json:"event_type"`
		fields
	}{e.Type(), fields(e)})
}

func (e FileEvent) MarshalJSON() ([]byte, error) {
	type fields FileEvent
	return json.Marshal(struct {
		EventType EventType `json:"event_type"`
		fields
	}{e.Type(), fields(e)})
}

// Lossy returns s with every invalid UTF-8 sequence replaced by U+FFFD.
// Kernel-supplied names and paths are arbitrary bytes; every string field
// goes through Lossy before an event is built.
func Lossy(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// NewProcessEvent builds a ProcessEvent, joining args with single spaces.
func NewProcessEvent(pid uint32, name, exe string, args []string) ProcessEvent {
	return ProcessEvent{
		PID:  pid,
		Name: Lossy(name),
		Exe:  Lossy(exe),
		Cmd:  Lossy(strings.Join(args, " ")),
	}
}

func NewUsbEvent(action, vendorID, modelID, driver string) UsbEvent {
	return UsbEvent{
		Action:   Lossy(action),
		VendorID: Lossy(vendorID),
		ModelID:  Lossy(modelID),
		Driver:   Lossy(driver),
	}
}

func NewNetworkEvent(local, remote, state string, pid int32) NetworkEvent {
	return NetworkEvent{
		LocalAddress:  Lossy(local),
		RemoteAddress: Lossy(remote),
		State:         Lossy(state),
		PID:           pid,
	}
}

func NewFileEvent(action, path string) FileEvent {
	return FileEvent{
		Action: Lossy(action),
		Path:   Lossy(path),
	}
}
