package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hostwatch/collector/tui/internal/app"
	"github.com/hostwatch/collector/tui/internal/client"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("hostwatch-tail", pflag.ContinueOnError)
	wsURL := flags.StringP("url", "u", "ws://127.0.0.1:9090/ws", "WebSocket URL of the collector's live tail")
	token := flags.StringP("token", "t", "", "Auth token (if the collector requires it)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ws := client.NewWSClient(*wsURL, *token)

	m := app.New(ws, *wsURL)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
