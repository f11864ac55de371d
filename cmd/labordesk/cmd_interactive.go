package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/labordesk/internal/app"
)

// runInteractive opens the notification center TUI.
func runInteractive() error {
	opts, err := app.NewSession(cfg, logger)
	if err != nil {
		return err
	}

	m := app.New(opts)
	// The poller is shared by every copy of the model.
	defer m.Shutdown()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running notification center: %w", err)
	}
	return nil
}
