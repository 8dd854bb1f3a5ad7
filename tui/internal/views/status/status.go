package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hostwatch/collector/tui/internal/client"
	"github.com/hostwatch/collector/tui/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Paused    bool
	Filter    client.EventType // empty means all
	Counts    map[client.EventType]int
	Rejected  int
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{
		Counts: make(map[client.EventType]int),
	}
}

// Count records one received event.
func (m *Model) Count(t client.EventType) {
	m.Counts[t]++
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	var countParts []string
	for _, t := range client.Types() {
		label := fmt.Sprintf("%s %d", t.Short(), m.Counts[t])
		style := lipgloss.NewStyle().Foreground(theme.TypeColor(string(t)))
		if m.Filter == t {
			style = style.Bold(true).Underline(true)
		}
		countParts = append(countParts, style.Render(label))
	}
	if m.Rejected > 0 {
		countParts = append(countParts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("bad %d", m.Rejected),
		))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + strings.Join(countParts, "  ")
	if m.Paused {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("PAUSED")
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
