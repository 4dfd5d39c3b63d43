package g1000

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensync-io/opensync/internal/models"
)

// Rows lists the populated summary fields as label/value pairs, in display
// order.
func Rows(s *models.FlightSummary) [][2]string {
	var rows [][2]string
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, [2]string{label, value})
		}
	}
	add("Aircraft", s.AirframeInfo["airframe_name"])
	add("Tail", s.AirframeInfo["tail_number"])
	add("Start", formatTime(s.BegTime))
	add("End", formatTime(s.EndTime))
	add("Route", route(s))
	add("Hobbs", formatFloat(s.HobbsTime, "%.1f h"))
	add("Flight time", formatFloat(s.FlightTime, "%.1f h"))
	add("Fuel used", formatFloat(s.FuelConsumed, "%.1f gal"))
	add("Fuel remaining", formatFloat(s.FuelRemaining, "%.1f gal"))
	add("Max CHT", formatFloats(s.MaxCHT, "%.0f"))
	add("Max EGT", formatFloats(s.MaxEGT, "%.0f"))
	add("Max oil temp", formatFloat(s.MaxOilTemp, "%.0f"))
	add("Max RPM", formatFloat(s.MaxRPM, "%.0f"))
	add("Max IAS", formatFloat(s.MaxIAS, "%.0f kt"))
	add("Min bus 1", formatFloat(s.MinBat1Volts, "%.1f V"))
	return rows
}

func route(s *models.FlightSummary) string {
	if s.Origin == "" && s.Destination == "" {
		return ""
	}
	return orUnknown(s.Origin) + " -> " + orUnknown(s.Destination)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05Z")
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

func formatFloats(vs []*float64, format string) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, fmt.Sprintf(format, *v))
	}
	return strings.Join(parts, " ")
}
