package app

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"chiefkit/cmd/chief/ui"
	"chiefkit/internal/config"
	"chiefkit/internal/logging"
)

// Run starts the interactive client on the alt screen and blocks until
// it exits. Logging and the audit trail are set up here so the model
// can assume both.
func Run(cfg *config.Config, styles ui.Styles) error {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if err := logging.Initialize(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "logging unavailable: %v\n", err)
	}
	if err := logging.InitAudit(); err != nil {
		fmt.Fprintf(os.Stderr, "audit log unavailable: %v\n", err)
	}

	model := New(cfg, styles)
	defer model.Shutdown()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal session failed: %w", err)
	}
	return nil
}
