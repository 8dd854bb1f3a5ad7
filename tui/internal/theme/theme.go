// Package theme provides the Lip Gloss color palette and reusable styles
// for the live tail viewer. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Event type colors.
var (
	ColorProcess = lipgloss.Color("#a855f7")
	ColorUsb     = lipgloss.Color("#d97706")
	ColorNetwork = lipgloss.Color("#3b82f6")
	ColorFile    = lipgloss.Color("#22c55e")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// TypeColor returns the color for an event_type value.
func TypeColor(eventType string) lipgloss.Color {
	switch eventType {
	case "process_start":
		return ColorProcess
	case "usb_event":
		return ColorUsb
	case "network_conn":
		return ColorNetwork
	case "file_event":
		return ColorFile
	default:
		return ColorDefault
	}
}

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)
)
