package feed

import (
	"strings"
	"testing"

	"github.com/hostwatch/collector/tui/internal/client"
)

func fileEvent(path string) client.Event {
	return client.Event{Type: client.TypeFile, Action: "create", Path: path}
}

func procEvent(pid int64) client.Event {
	return client.Event{Type: client.TypeProcessStart, PID: pid, Name: "sleep"}
}

func TestAddEntry(t *testing.T) {
	m := New()
	m.Add(fileEvent("/tmp/a"))
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Event.Path != "/tmp/a" {
		t.Errorf("expected path /tmp/a, got %q", m.Entries[0].Event.Path)
	}
}

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(fileEvent("/tmp/x"))
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Add(fileEvent("/tmp/x"))
	}
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after adds")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10) // shouldn't go below 0
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(fileEvent("/tmp/x"))
	}
	m.ScrollUp(100)
	if m.Offset != 4 { // max is len-1
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestAddKeepsScrollPosition(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(fileEvent("/tmp/x"))
	}
	m.ScrollUp(5)
	m.Add(fileEvent("/tmp/new"))
	if m.Offset != 6 {
		t.Errorf("expected offset 6 after add while scrolled, got %d", m.Offset)
	}
}

func TestFilter(t *testing.T) {
	m := New()
	m.Add(fileEvent("/tmp/a"))
	m.Add(procEvent(42))
	m.Add(fileEvent("/tmp/b"))

	m.SetFilter(client.TypeProcessStart)
	v := m.View(80, 20)
	if !strings.Contains(v, "pid 42") {
		t.Error("filtered view should contain the process event")
	}
	if strings.Contains(v, "/tmp/a") {
		t.Error("filtered view should not contain file events")
	}

	m.SetFilter("")
	v = m.View(80, 20)
	if !strings.Contains(v, "/tmp/a") || !strings.Contains(v, "/tmp/b") {
		t.Error("unfiltered view should contain every event")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	v := m.View(80, 20)
	if !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}
