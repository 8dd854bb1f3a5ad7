// Package feed provides the scrollable list of received events.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hostwatch/collector/tui/internal/client"
	"github.com/hostwatch/collector/tui/internal/theme"
)

const maxEntries = 1000

// Entry is one received event and when it arrived.
type Entry struct {
	Time  time.Time
	Event client.Event
}

// Model holds the feed state.
type Model struct {
	Entries []Entry
	Offset  int              // scroll offset (from bottom)
	Filter  client.EventType // empty means all
}

// New creates an empty feed.
func New() Model {
	return Model{}
}

// Add appends an event and caps the buffer. The scroll position is kept
// while the user is looking at older entries.
func (m *Model) Add(ev client.Event) {
	m.Entries = append(m.Entries, Entry{
		Time:  time.Now(),
		Event: ev,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	if m.Offset > 0 && (m.Filter == "" || ev.Type == m.Filter) {
		m.Offset++
		m.clampOffset()
	}
}

// SetFilter shows only events of type t. An empty t shows everything.
func (m *Model) SetFilter(t client.EventType) {
	m.Filter = t
	m.Offset = 0
}

// visible returns the entries that pass the filter, oldest first.
func (m Model) visible() []Entry {
	if m.Filter == "" {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Event.Type == m.Filter {
			out = append(out, e)
		}
	}
	return out
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	m.clampOffset()
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

func (m *Model) clampOffset() {
	max := len(m.visible()) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

// panelStyle returns the shared border style for the feed panel.
func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the feed into a panel of the given size.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 4
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := " EVENTS "
	if m.Filter != "" {
		title = fmt.Sprintf(" EVENTS: %s ", m.Filter)
	}
	header := theme.StyleHeader.Render(title)

	entries := m.visible()
	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events received yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
	}

	// Build visible lines from bottom (minus offset).
	end := len(entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		e := entries[i]
		tsStr := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		typeStr := lipgloss.NewStyle().Foreground(theme.TypeColor(string(e.Event.Type))).Width(5).Render(e.Event.Type.Short())
		msgStr := e.Event.Summary()
		if len(msgStr) > innerW-20 && innerW > 23 {
			msgStr = msgStr[:innerW-23] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", tsStr, typeStr, msgStr))
	}

	body := strings.Join(lines, "\n")
	scrollIndicator := ""
	if m.Offset > 0 {
		scrollIndicator = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, header, body, scrollIndicator))
}
