package app

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/hostwatch/collector/tui/internal/client"
	"github.com/hostwatch/collector/tui/internal/theme"
	"github.com/hostwatch/collector/tui/internal/views/feed"
	"github.com/hostwatch/collector/tui/internal/views/status"
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	url    string
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Sub-views.
	statusBar status.Model
	feed      feed.Model

	// Connection state.
	connected bool
	lastErr   error
	paused    bool
}

// New creates the root model. url is only used for display.
func New(ws *client.WSClient, url string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		url:       url,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		feed:      feed.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.lastErr = nil
		m.statusBar.Connected = true
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.lastErr = msg.Err
		m.statusBar.Connected = false
		return m, m.ws.Listen(m.ctx)

	case client.WSDialErrorMsg:
		m.lastErr = msg.Err
		return m, m.ws.Retry(m.ctx, msg.Retry)

	case client.WSEventMsg:
		m.statusBar.Count(msg.Event.Type)
		if !m.paused {
			m.feed.Add(msg.Event)
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDecodeErrorMsg:
		m.statusBar.Rejected++
		return m, m.ws.ReadLoop(m.ctx)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.feed.ScrollUp(1)

	case key.Matches(msg, m.keys.Down):
		m.feed.ScrollDown(1)

	case key.Matches(msg, m.keys.PageUp):
		m.feed.ScrollUp(m.pageSize())

	case key.Matches(msg, m.keys.PageDown):
		m.feed.ScrollDown(m.pageSize())

	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		m.statusBar.Paused = m.paused

	case key.Matches(msg, m.keys.All):
		m.setFilter("")

	case key.Matches(msg, m.keys.Process):
		m.setFilter(client.TypeProcessStart)

	case key.Matches(msg, m.keys.Usb):
		m.setFilter(client.TypeUsb)

	case key.Matches(msg, m.keys.Network):
		m.setFilter(client.TypeNetworkConn)

	case key.Matches(msg, m.keys.File):
		m.setFilter(client.TypeFile)
	}

	return m, nil
}

func (m *Model) setFilter(t client.EventType) {
	m.feed.SetFilter(t)
	m.statusBar.Filter = t
}

func (m Model) pageSize() int {
	if n := m.feedHeight() - 4; n > 1 {
		return n
	}
	return 1
}

// feedHeight is what remains after the status bar and help line.
func (m Model) feedHeight() int {
	return m.height - 4
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if !m.connected {
		return m.renderDisconnected()
	}

	sections := []string{
		m.statusBar.View(),
		m.feed.View(m.width, m.feedHeight()),
		theme.StyleDimmed.Render("  j/k:scroll  0:all  1:proc  2:usb  3:net  4:file  p:pause  q:quit"),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
		"",
		theme.StyleDimmed.Render("Reconnecting to " + m.url + "..."),
	}
	if m.lastErr != nil {
		lines = append(lines, theme.StyleDimmed.Render(m.lastErr.Error()))
	}
	if total := m.received(); total > 0 {
		lines = append(lines, "", m.statusBar.View())
	}

	box := lipgloss.NewStyle().
		Padding(1, 4).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Center, lines...))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) received() int {
	total := 0
	for _, n := range m.statusBar.Counts {
		total += n
	}
	return total
}
