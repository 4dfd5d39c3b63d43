package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensync-io/opensync/internal/config"
	"github.com/opensync-io/opensync/internal/models"
)

func TestPruneCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "log.csv")
	out := filepath.Join(dir, "pruned.csv")
	log := strings.Join([]string{
		`#airframe_info, log_version="1.00"`,
		"#yyy-mm-dd, hh:mm:ss, rpm, kt",
		"Lcl Date, Lcl Time, E1 RPM, IAS",
		"2022-09-17, 10:00:00, 2500, 90",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(in, []byte(log), 0o644))

	rootCmd.SetArgs([]string{"prune", "--columns", "Lcl Time,E1 RPM", in, out})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		pruneColumns = nil
	})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "IAS")
	assert.Contains(t, string(data), "E1 RPM")
}

func TestSettingsInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	settingsPath = path
	t.Cleanup(func() {
		settingsPath = ""
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"settings", "init", "--config", path})
	require.NoError(t, rootCmd.Execute())

	s, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, models.ModeWiFi, s.Mode)

	rootCmd.SetArgs([]string{"settings", "init", "--config", path})
	assert.Error(t, rootCmd.Execute(), "an existing file is not overwritten")
}
