package config

import (
	"fmt"
	"log"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensync-io/opensync/internal/models"
)

var durationType = reflect.TypeOf(time.Duration(0))

// envAliases maps the names used by earlier opensync releases, which took
// their settings from command-line flags, to flattened YAML keys.
var envAliases = map[string]string{
	"product":                    "notecard_product",
	"ezshare_url":                "sdcard_ezshare_url",
	"flashair_url":               "sdcard_flashair_url",
	"enable_ups":                 "power_enable_ups",
	"enable_tracking":            "notecard_enable_tracking",
	"savvy_aviation_aircraft_id": "savvy_aircraft_id",
	"savvy_aviation_token":       "savvy_token",
	"savvy_aviation_timeout":     "savvy_timeout",
}

// ApplyEnv fills settings from Notehub environment variables. Names are
// flattened YAML keys ("poll_period", "savvy_token") or their older flag
// names ("savvy_aviation_token"); keys present in the settings file
// (fileKeys) take precedence and are left alone. A value that does not
// parse or leaves the settings invalid is logged and skipped. It returns
// the keys that were applied.
func ApplyEnv(s *models.Settings, env map[string]string, fileKeys map[string]bool) []string {
	fields := settingFields(reflect.ValueOf(s).Elem(), "")

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		raw := env[name]
		key := name
		if alias, ok := envAliases[name]; ok {
			key = alias
		}
		field, ok := fields[key]
		if !ok {
			log.Printf("[config] Ignoring unknown environment setting %s", name)
			continue
		}
		if fileKeys[key] || slices.Contains(applied, key) {
			continue
		}

		prev := reflect.New(field.Type()).Elem()
		prev.Set(field)
		if err := setField(field, raw); err != nil {
			log.Printf("[config] Ignoring environment setting %s=%q: %v", name, raw, err)
			continue
		}
		if err := Validate(s); err != nil {
			field.Set(prev)
			log.Printf("[config] Ignoring environment setting %s=%q: %v", name, raw, err)
			continue
		}
		log.Printf("[config] Setting %s = %s", key, raw)
		applied = append(applied, key)
	}
	return applied
}

// settingFields maps flattened YAML names to settable scalar fields.
func settingFields(v reflect.Value, prefix string) map[string]reflect.Value {
	out := make(map[string]reflect.Value)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		name := tag
		if prefix != "" {
			name = prefix + "_" + tag
		}
		f := v.Field(i)
		if f.Kind() == reflect.Struct && f.Type() != durationType {
			for k, sub := range settingFields(f, name) {
				out[k] = sub
			}
			continue
		}
		out[name] = f
	}
	return out
}

func setField(f reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)
	if f.Type() == durationType {
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float64:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}

// parseDuration accepts Go durations and bare numbers of seconds.
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}
