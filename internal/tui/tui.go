// Package tui implements the interactive dashboard for OpenSync.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/store"
)

// Run launches the dashboard for the settings at settingsPath.
func Run(settingsPath string) error {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	db, err := store.Open(config.DatabaseFile(settings.DataPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logPath, err := config.GlobalDaemonLogFile()
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewModel(db, logPath), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
