// Package g1000 parses Garmin G1000 flight data logs and summarizes them.
package g1000

import (
	"strings"
	"time"
)

// HeaderSignature is the required prefix of the first line of a supported log.
const HeaderSignature = `#airframe_info, log_version="1.00"`

// Well-known column names.
const (
	ColDate      = "Lcl Date"
	ColTime      = "Lcl Time"
	ColOffset    = "UTCOfst"
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
)

// AirframeInfo is the key/value metadata from the log header line.
type AirframeInfo map[string]string

// TimeSeries is a parsed log: one coerced value per column per row plus a
// synthesized local timestamp per row.
type TimeSeries struct {
	Fields []string
	Units  []string

	index map[string]int
	raw   [][]string // row-major
	nums  [][]float64
	times []time.Time
}

// Len returns the number of rows.
func (ts *TimeSeries) Len() int {
	return len(ts.raw)
}

// Has reports whether the series has a column.
func (ts *TimeSeries) Has(name string) bool {
	_, ok := ts.index[name]
	return ok
}

// Float returns the numeric value of a cell, NaN if invalid.
func (ts *TimeSeries) Float(row int, name string) float64 {
	return ts.nums[row][ts.index[name]]
}

// Text returns the raw text of a cell.
func (ts *TimeSeries) Text(row int, name string) string {
	return ts.raw[row][ts.index[name]]
}

// Time returns the synthesized local timestamp of a row. It is the zero
// time when the row has no parseable date and time.
func (ts *TimeSeries) Time(row int) time.Time {
	return ts.times[row]
}

// Parse parses a raw flight log into its airframe info and time series.
func Parse(raw []byte) (AirframeInfo, *TimeSeries, error) {
	lines := strings.Split(string(raw), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	if !strings.HasPrefix(lines[0], HeaderSignature) {
		return nil, nil, &FormatError{Reason: "missing airframe_info header"}
	}
	if len(lines) < 3 {
		return nil, nil, &FormatError{Reason: "missing unit and field header lines"}
	}

	info := parseAirframeInfo(lines[0])

	units := splitTrim(lines[1], "# \t")
	fields := splitTrim(lines[2], " \t")
	if len(units) != len(fields) {
		return nil, nil, &SchemaError{Units: len(units), Fields: len(fields)}
	}

	ts := &TimeSeries{
		Fields: fields,
		Units:  units,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := ts.index[f]; !dup {
			ts.index[f] = i
		}
	}

	kinds := make([]Kind, len(units))
	for i, u := range units {
		kinds[i] = KindOf(u)
	}

	dateIdx, hasDate := ts.index[ColDate]
	timeIdx, hasTime := ts.index[ColTime]
	offIdx, hasOffset := ts.index[ColOffset]

	for _, line := range lines[3:] {
		if line == "" {
			continue
		}
		cells := splitTrim(line, " \t")
		// A truncated final line is expected after power loss.
		if len(cells) != len(fields) {
			continue
		}

		nums := make([]float64, len(cells))
		for i, c := range cells {
			nums[i] = coerceFloat(kinds[i], c)
		}

		var stamp time.Time
		if hasDate && hasTime {
			off := ""
			if hasOffset {
				off = cells[offIdx]
			}
			stamp, _ = localTimestamp(cells[dateIdx], cells[timeIdx], off, hasOffset)
		}

		ts.raw = append(ts.raw, cells)
		ts.nums = append(ts.nums, nums)
		ts.times = append(ts.times, stamp)
	}

	return info, ts, nil
}

func parseAirframeInfo(header string) AirframeInfo {
	info := AirframeInfo{}
	for _, field := range strings.Split(header, ",") {
		parts := strings.Split(field, "=")
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		info[key] = value
	}
	return info
}

func splitTrim(line, cutset string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(p, cutset)
	}
	return parts
}
