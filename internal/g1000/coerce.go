package g1000

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the coerced type of a log column.
type Kind int

// Column kinds.
const (
	KindString Kind = iota
	KindFloat
	KindDate
	KindTimeOfDay
	KindOffset
	KindBool
)

// unitKinds maps the declared physical unit of a column to its coercion.
// Units not listed are kept as strings.
var unitKinds = map[string]Kind{
	"yyy-mm-dd": KindDate,
	"hh:mm:ss":  KindTimeOfDay,
	"hh:mm":     KindOffset,
	"degrees":   KindFloat,
	"ft Baro":   KindFloat,
	"inch":      KindFloat,
	"ft msl":    KindFloat,
	"deg C":     KindFloat,
	"kt":        KindFloat,
	"fpm":       KindFloat,
	"deg":       KindFloat,
	"G":         KindFloat,
	"volts":     KindFloat,
	"amps":      KindFloat,
	"gals":      KindFloat,
	"gph":       KindFloat,
	"deg F":     KindFloat,
	"psi":       KindFloat,
	"Hg":        KindFloat,
	"rpm":       KindFloat,
	"%":         KindFloat,
	"ft wgs":    KindString,
	"MHz":       KindFloat,
	"fsd":       KindString,
	"nm":        KindFloat,
	"bool":      KindBool,
	"mt":        KindString,
}

// KindOf returns the coercion kind for a unit.
func KindOf(unit string) Kind {
	if k, ok := unitKinds[unit]; ok {
		return k
	}
	return KindString
}

// coerceFloat parses a numeric cell. Invalid cells become NaN.
func coerceFloat(kind Kind, v string) float64 {
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case KindBool:
		if v != "" {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func parseDate(v string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", v)
	return t, err == nil
}

func parseTimeOfDay(v string) (time.Duration, bool) {
	t, err := time.Parse("15:04:05", v)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, true
}

// parseOffset parses a UTC offset such as "-05:00" or "+00:00".
func parseOffset(v string) (*time.Location, bool) {
	if v == "+00:00" {
		return time.UTC, true
	}
	sign := 1
	switch {
	case strings.HasPrefix(v, "-"):
		sign = -1
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	h, m, ok := strings.Cut(v, ":")
	if !ok {
		return nil, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil {
		return nil, false
	}
	secs := sign * (hours*3600 + minutes*60)
	return time.FixedZone("", secs), true
}

// localTimestamp combines the date, time-of-day and offset cells of a row.
func localTimestamp(date, clock, offset string, hasOffset bool) (time.Time, bool) {
	d, ok := parseDate(date)
	if !ok {
		return time.Time{}, false
	}
	tod, ok := parseTimeOfDay(clock)
	if !ok {
		return time.Time{}, false
	}
	loc := time.UTC
	if hasOffset {
		if loc, ok = parseOffset(offset); !ok {
			return time.Time{}, false
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).Add(tod), true
}
