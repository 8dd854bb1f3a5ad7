package client

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Event
		wantErr bool
	}{
		{
			name: "process",
			line: `{"event_type":"process_start","pid":3,"name":"sleep","exe":"/usr/bin/sleep","cmd":"sleep 60"}`,
			want: Event{Type: TypeProcessStart, PID: 3, Name: "sleep", Exe: "/usr/bin/sleep", Cmd: "sleep 60"},
		},
		{
			name: "usb",
			line: `{"event_type":"usb_event","action":"add","vendor_id":"046d","model_id":"c52b","driver":"usb"}`,
			want: Event{Type: TypeUsb, Action: "add", VendorID: "046d", ModelID: "c52b", Driver: "usb"},
		},
		{
			name: "network unresolved pid",
			line: `{"event_type":"network_conn","local_address":"127.0.0.1:80","remote_address":"0.0.0.0:0","state":"LISTEN","pid":-1}`,
			want: Event{Type: TypeNetworkConn, LocalAddress: "127.0.0.1:80", RemoteAddress: "0.0.0.0:0", State: "LISTEN", PID: -1},
		},
		{
			name: "file",
			line: `{"event_type":"file_event","action":"modify","path":"/tmp/a"}`,
			want: Event{Type: TypeFile, Action: "modify", Path: "/tmp/a"},
		},
		{name: "unknown type", line: `{"event_type":"kernel_panic"}`, wantErr: true},
		{name: "not json", line: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := Decode([]byte(`{"event_type":""}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("empty type: err = %v, want ErrUnknownType", err)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Type: TypeProcessStart, PID: 42, Name: "bash", Cmd: "bash -l"}, "pid 42 bash -l"},
		{Event{Type: TypeProcessStart, PID: 2, Name: "kthreadd"}, "pid 2 kthreadd"},
		{Event{Type: TypeUsb, Action: "add", VendorID: "046d", ModelID: "c52b", Driver: "usbhid"}, "add 046d:c52b (usbhid)"},
		{Event{Type: TypeUsb, Action: "remove"}, "remove ????:????"},
		{Event{Type: TypeNetworkConn, LocalAddress: "10.0.0.2:5000", RemoteAddress: "1.1.1.1:443", State: "ESTABLISHED", PID: 7}, "10.0.0.2:5000 -> 1.1.1.1:443 ESTABLISHED pid 7"},
		{Event{Type: TypeNetworkConn, LocalAddress: "[::]:22", RemoteAddress: "[::]:0", State: "LISTEN", PID: -1}, "[::]:22 -> [::]:0 LISTEN pid ?"},
		{Event{Type: TypeFile, Action: "create|modify", Path: "/tmp/x"}, "create|modify /tmp/x"},
	}
	for _, tt := range tests {
		if got := tt.ev.Summary(); got != tt.want {
			t.Errorf("Summary(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
