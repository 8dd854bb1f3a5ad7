// Package client reads the collector's live tail over WebSocket.
// Types mirror the collector's NDJSON records without importing
// collector packages.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the discriminator carried in every record.
type EventType string

const (
	TypeProcessStart EventType = "process_start"
	TypeUsb          EventType = "usb_event"
	TypeNetworkConn  EventType = "network_conn"
	TypeFile         EventType = "file_event"
)

// Types lists the known event types in display order.
func Types() []EventType {
	return []EventType{TypeProcessStart, TypeUsb, TypeNetworkConn, TypeFile}
}

// Short is a compact column label for the type.
func (t EventType) Short() string {
	switch t {
	case TypeProcessStart:
		return "proc"
	case TypeUsb:
		return "usb"
	case TypeNetworkConn:
		return "net"
	case TypeFile:
		return "file"
	default:
		return "?"
	}
}

// Event is one record of the stream. Only the fields belonging to
// Type are set.
type Event struct {
	Type EventType `json:"event_type"`

	// process_start, network_conn
	PID int64 `json:"pid"`

	// process_start
	Name string `json:"name"`
	Exe  string `json:"exe"`
	Cmd  string `json:"cmd"`

	// usb_event, file_event
	Action string `json:"action"`

	// usb_event
	VendorID string `json:"vendor_id"`
	ModelID  string `json:"model_id"`
	Driver   string `json:"driver"`

	// network_conn
	LocalAddress  string `json:"local_address"`
	RemoteAddress string `json:"remote_address"`
	State         string `json:"state"`

	// file_event
	Path string `json:"path"`
}

var ErrUnknownType = errors.New("unknown event type")

// Decode parses one stream line.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	switch ev.Type {
	case TypeProcessStart, TypeUsb, TypeNetworkConn, TypeFile:
		return ev, nil
	}
	return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
}

// Summary renders the type-specific fields on one line.
func (e Event) Summary() string {
	switch e.Type {
	case TypeProcessStart:
		cmd := e.Cmd
		if cmd == "" {
			cmd = e.Name
		}
		return fmt.Sprintf("pid %d %s", e.PID, cmd)
	case TypeUsb:
		id := "????:????"
		if e.VendorID != "" || e.ModelID != "" {
			id = e.VendorID + ":" + e.ModelID
		}
		s := e.Action + " " + id
		if e.Driver != "" {
			s += " (" + e.Driver + ")"
		}
		return s
	case TypeNetworkConn:
		owner := "pid ?"
		if e.PID >= 0 {
			owner = fmt.Sprintf("pid %d", e.PID)
		}
		return fmt.Sprintf("%s -> %s %s %s", e.LocalAddress, e.RemoteAddress, e.State, owner)
	case TypeFile:
		return e.Action + " " + e.Path
	}
	return string(e.Type)
}
