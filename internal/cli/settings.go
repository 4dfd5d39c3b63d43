package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or initialize settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Long: `Print the settings the daemon would start with: the settings file
merged over the defaults. Notecard environment overrides are applied by the
daemon at startup and are not shown.`,
	RunE: runSettingsShow,
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	RunE:  runSettingsInit,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.SettingsPath(settingsPath)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsInitCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsCmd.AddCommand(settingsShowCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	if settings.Savvy.Token != "" {
		settings.Savvy.Token = "********"
	}
	return yaml.NewEncoder(os.Stdout).Encode(settings)
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	path, err := config.SettingsPath(settingsPath)
	if err != nil {
		return err
	}
	if config.FileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.SaveSettings(path, models.NewSettings()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
