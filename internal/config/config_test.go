package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensync-io/opensync/internal/models"
)

const partialSettings = `mode: wifi
poll_period: 30s
sdcard:
  type: flashair
savvy:
  aircraft_id: "1234"
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsKeepsDefaults(t *testing.T) {
	s, err := LoadSettings(writeSettings(t, partialSettings))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, s.PollPeriod)
	assert.Equal(t, models.SDCardFlashAir, s.SDCard.Type)
	assert.Equal(t, "http://flashair.local", s.SDCard.FlashAirURL)
	assert.Equal(t, 10*time.Second, s.Power.WiFiGrace)
	assert.Equal(t, "1234", s.Savvy.AircraftID)
	assert.True(t, filepath.IsAbs(s.DataPath))
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, s.PollPeriod)
}

func TestLoadSettingsRejectsUnknownMode(t *testing.T) {
	_, err := LoadSettings(writeSettings(t, "mode: glider\n"))
	assert.Error(t, err)
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s := models.NewSettings()
	s.Savvy.Token = "secret"
	s.SDCard.StableAfter = 20 * time.Second
	require.NoError(t, SaveSettings(path, s))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Savvy.Token)
	assert.Equal(t, 20*time.Second, loaded.SDCard.StableAfter)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestApplyEnvRespectsFile(t *testing.T) {
	path := writeSettings(t, partialSettings)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	keys, err := SettingsKeys(path)
	require.NoError(t, err)
	assert.True(t, keys["savvy_aircraft_id"])
	assert.True(t, keys["poll_period"])

	applied := ApplyEnv(s, map[string]string{
		"poll_period":              "5",
		"savvy_token":              "from-notehub",
		"savvy_aircraft_id":        "9999",
		"report_zero_hour_flights": "true",
		"power_wifi_grace":         "15s",
		"min_hobbs":                "0.2",
		"no_such_setting":          "x",
	}, keys)
	assert.ElementsMatch(t, []string{"savvy_token", "report_zero_hour_flights", "power_wifi_grace", "min_hobbs"}, applied)

	assert.Equal(t, 30*time.Second, s.PollPeriod, "file value wins")
	assert.Equal(t, "1234", s.Savvy.AircraftID, "file value wins")
	assert.Equal(t, "from-notehub", s.Savvy.Token)
	assert.True(t, s.ReportZeroHourFlights)
	assert.Equal(t, 15*time.Second, s.Power.WiFiGrace)
	assert.InDelta(t, 0.2, s.MinHobbs, 1e-9)
}

func TestApplyEnvSkipsInvalidValues(t *testing.T) {
	s := models.NewSettings()
	applied := ApplyEnv(s, map[string]string{
		"force":         "maybe",
		"sdcard_type":   "floppy",
		"poll_period":   "-5",
		"min_hobbs":     "0.3",
		"notecard_port": "/dev/ttyACM0",
	}, nil)

	assert.ElementsMatch(t, []string{"min_hobbs", "notecard_port"}, applied)
	assert.False(t, s.Force)
	assert.Equal(t, models.SDCardEzShare, s.SDCard.Type, "invalid value is rolled back")
	assert.Equal(t, models.NewSettings().PollPeriod, s.PollPeriod)
	assert.InDelta(t, 0.3, s.MinHobbs, 1e-9)
	assert.Equal(t, "/dev/ttyACM0", s.Notecard.Port)
	assert.NoError(t, Validate(s))
}

func TestApplyEnvLegacyNames(t *testing.T) {
	s := models.NewSettings()
	applied := ApplyEnv(s, map[string]string{
		"savvy_aviation_token":       "tok",
		"savvy_aviation_aircraft_id": "42",
		"savvy_aviation_timeout":     "90",
		"enable_ups":                 "true",
		"product":                    "com.example:opensync",
	}, map[string]bool{"savvy_aircraft_id": true})

	assert.ElementsMatch(t, []string{"savvy_token", "savvy_timeout", "power_enable_ups", "notecard_product"}, applied)
	assert.Equal(t, "tok", s.Savvy.Token)
	assert.Empty(t, s.Savvy.AircraftID, "file key wins over its legacy name")
	assert.Equal(t, 90*time.Second, s.Savvy.Timeout)
	assert.True(t, s.Power.EnableUPS)
	assert.Equal(t, "com.example:opensync", s.Notecard.Product)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("10")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	d, err = parseDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/.opensync")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".opensync"), got)
}

func TestLogArchive(t *testing.T) {
	a := NewLogArchive(t.TempDir())

	path, err := a.Save("/card/data_log/log_220917_124302_KJYO.csv", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Dir, "log_220917_124302_KJYO.csv"), path)

	_, err = a.Save("log_220917_143703_KHGR.csv", []byte("two"))
	require.NoError(t, err)

	names, err := a.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"log_220917_143703_KHGR.csv", "log_220917_124302_KJYO.csv"}, names)

	data, err := a.Read("log_220917_124302_KJYO.csv")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestDaemonInfo(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	info, err := LoadDaemonInfo()
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, SaveDaemonInfo(models.NewDaemonInfo("localhost", 5051, os.Getpid(), models.ModeWiFi)))
	running, info, err := IsDaemonRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 5051, info.Port)

	require.NoError(t, RemoveDaemonInfo())
	require.NoError(t, RemoveDaemonInfo())
	running, _, err = IsDaemonRunning()
	require.NoError(t, err)
	assert.False(t, running)
}
