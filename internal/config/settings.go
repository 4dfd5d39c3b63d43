package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensync-io/opensync/internal/models"
)

// SettingsPath returns path, or ~/.opensync/settings.yaml when empty.
func SettingsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GlobalSettingsFile()
}

// LoadSettings loads settings from path (default ~/.opensync/settings.yaml).
// If the file doesn't exist, returns default settings. The data path is
// expanded to an absolute path.
func LoadSettings(path string) (*models.Settings, error) {
	path, err := SettingsPath(path)
	if err != nil {
		return nil, err
	}
	settings, err := LoadYAMLOrDefault(path, models.NewSettings)
	if err != nil {
		return nil, err
	}
	if err := Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	if settings.DataPath, err = ExpandPath(settings.DataPath); err != nil {
		return nil, fmt.Errorf("failed to expand data_path: %w", err)
	}
	return settings, nil
}

// SaveSettings saves settings to path (default ~/.opensync/settings.yaml).
func SaveSettings(path string, settings *models.Settings) error {
	path, err := SettingsPath(path)
	if err != nil {
		return err
	}
	return SaveYAML(path, settings)
}

// SettingsKeys returns the flattened names of the keys present in the
// settings file, e.g. "poll_period" or "savvy_token". A missing file has
// no keys.
func SettingsKeys(path string) (map[string]bool, error) {
	path, err := SettingsPath(path)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}
	flattenKeys("", raw, keys)
	return keys, nil
}

func flattenKeys(prefix string, m map[string]any, out map[string]bool) {
	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "_" + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenKeys(name, nested, out)
			continue
		}
		out[name] = true
	}
}

// Validate checks enumerated settings.
func Validate(s *models.Settings) error {
	switch s.Mode {
	case models.ModeWiFi, models.ModeStandalone:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	switch s.SDCard.Type {
	case models.SDCardEzShare, models.SDCardFlashAir, models.SDCardLocal:
	default:
		return fmt.Errorf("unknown sdcard type %q", s.SDCard.Type)
	}
	switch s.Notecard.Transport {
	case "i2c", "serial":
	default:
		return fmt.Errorf("unknown notecard transport %q", s.Notecard.Transport)
	}
	if s.PollPeriod <= 0 {
		return fmt.Errorf("poll_period must be positive")
	}
	return nil
}
