package models

import "time"

// Capture modes.
const (
	ModeWiFi       = "wifi"
	ModeStandalone = "standalone"
)

// SD card adapter types.
const (
	SDCardEzShare  = "ezshare"
	SDCardFlashAir = "flashair"
	SDCardLocal    = "local"
)

// SDCardConfig holds settings for the WiFi SD card adapter.
type SDCardConfig struct {
	Type        string        `yaml:"type"` // "ezshare" | "flashair" | "local"
	EzShareURL  string        `yaml:"ezshare_url"`
	FlashAirURL string        `yaml:"flashair_url"`
	LocalDir    string        `yaml:"local_dir"`
	StableAfter time.Duration `yaml:"stable_after"`
}

// PowerConfig holds settings for UPS power tracking.
type PowerConfig struct {
	EnableUPS       bool          `yaml:"enable_ups"`
	Simulate        bool          `yaml:"simulate"`
	WiFiGrace       time.Duration `yaml:"wifi_grace"`
	StandaloneGrace time.Duration `yaml:"standalone_grace"`
}

// NotecardConfig holds settings for the cellular bridge.
type NotecardConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           string        `yaml:"port"`
	Transport      string        `yaml:"transport"` // "i2c" | "serial"
	Product        string        `yaml:"product"`
	EnableTracking bool          `yaml:"enable_tracking"`
	SyncTimeout    time.Duration `yaml:"sync_timeout"`
	SetClock       bool          `yaml:"set_clock"`
}

// SavvyConfig holds settings for Savvy Aviation uploads.
type SavvyConfig struct {
	Token      string        `yaml:"token"`
	AircraftID string        `yaml:"aircraft_id"`
	FullLog    bool          `yaml:"full_log"`
	Direct     bool          `yaml:"direct"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Settings represents the daemon settings.
// This corresponds to ~/.opensync/settings.yaml.
type Settings struct {
	Version               int            `yaml:"version"`
	Mode                  string         `yaml:"mode"` // "wifi" | "standalone"
	DataPath              string         `yaml:"data_path"`
	PollPeriod            time.Duration  `yaml:"poll_period"`
	Force                 bool           `yaml:"force"`
	ReportZeroHourFlights bool           `yaml:"report_zero_hour_flights"`
	MinHobbs              float64        `yaml:"min_hobbs"`
	EnableShutdown        bool           `yaml:"enable_shutdown"`
	StatusAddr            string         `yaml:"status_addr"`
	Airports              string         `yaml:"airports"`
	SDCard                SDCardConfig   `yaml:"sdcard"`
	Power                 PowerConfig    `yaml:"power"`
	Notecard              NotecardConfig `yaml:"notecard"`
	Savvy                 SavvyConfig    `yaml:"savvy"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version:    1,
		Mode:       ModeWiFi,
		DataPath:   "~/.opensync",
		PollPeriod: 10 * time.Second,
		MinHobbs:   0.05,
		StatusAddr: "localhost:0",
		SDCard: SDCardConfig{
			Type:        SDCardEzShare,
			EzShareURL:  "http://ezshare.card",
			FlashAirURL: "http://flashair.local",
		},
		Power: PowerConfig{
			WiFiGrace:       10 * time.Second,
			StandaloneGrace: 60 * time.Second,
		},
		Notecard: NotecardConfig{
			Port:        "/dev/i2c-1",
			Transport:   "i2c",
			SyncTimeout: 60 * time.Second,
		},
		Savvy: SavvyConfig{
			Timeout: 120 * time.Second,
		},
	}
}

// Grace returns the power-loss grace period for the configured mode.
func (s *Settings) Grace() time.Duration {
	if s.Mode == ModeStandalone {
		return s.Power.StandaloneGrace
	}
	return s.Power.WiFiGrace
}

// SavvyEnabled reports whether Savvy Aviation uploads are configured.
func (s *Settings) SavvyEnabled() bool {
	return s.Savvy.Token != "" && s.Savvy.AircraftID != ""
}
