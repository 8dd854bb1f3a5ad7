package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Pause    key.Binding
	All      key.Binding
	Process  key.Binding
	Usb      key.Binding
	Network  key.Binding
	File     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "older"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "newer"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page older"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page newer"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause"),
		),
		All: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "all events"),
		),
		Process: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "processes"),
		),
		Usb: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "usb"),
		),
		Network: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "network"),
		),
		File: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "files"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
