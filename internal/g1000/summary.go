package g1000

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/opensync-io/opensync/internal/models"
)

// AirportSearchRadiusKm is the radius used to resolve endpoints to airports.
const AirportSearchRadiusKm = 10

// FlightTimeAirspeed is the indicated airspeed, in knots, above which the
// aircraft is considered to be in flight.
const FlightTimeAirspeed = 35

const fuelSmoothingWindow = 15

// Geocoder resolves a coordinate to the nearest airport code.
type Geocoder interface {
	NearestAirport(lat, lon, radiusKm float64) (string, bool)
}

// Summarize computes a FlightSummary from a parsed time series. It never
// fails: fields that cannot be computed are left nil. geocoder may be nil.
func Summarize(ts *TimeSeries, geocoder Geocoder) *models.FlightSummary {
	summary := &models.FlightSummary{}
	if ts == nil || ts.Len() == 0 {
		return summary
	}

	// Endpoint timestamps are taken before the GPS filter.
	if t := ts.Time(0); !t.IsZero() {
		summary.BegTime = &t
	}
	if t := ts.Time(ts.Len() - 1); !t.IsZero() {
		summary.EndTime = &t
	}

	rows := gpsRows(ts)
	if len(rows) == 0 {
		return summary
	}

	summarizeFuel(ts, rows, summary)

	summary.MaxCHT = columnArray(ts, rows, "E1 CHT%d", 6)
	summary.MaxEGT = columnArray(ts, rows, "E1 EGT%d", 6)
	summary.MaxTIT = columnArray(ts, rows, "E1 TIT%d", 2)
	summary.MaxOilTemp = columnMax(ts, rows, "E1 OilT")
	summary.MaxOilPressure = columnMax(ts, rows, "E1 OilP")
	summary.MaxManifoldPressure = columnMax(ts, rows, "E1 MAP")
	summary.MaxRPM = columnMax(ts, rows, "E1 RPM")

	summary.MaxIAS = columnMax(ts, rows, "IAS")
	summary.MaxTAS = columnMax(ts, rows, "TAS")
	summary.MaxLatAccel = columnMax(ts, rows, "LatAc")
	summary.MaxNormAccel = columnMax(ts, rows, "NormAc")

	summary.MinBat1Volts = columnMin(ts, rows, "volt1")
	summary.MinBat2Volts = columnMin(ts, rows, "volt2")
	summary.MaxBat1Amps = columnMax(ts, rows, "amp1")

	if ts.Has("E1 RPM") {
		hobbs := RoundUpTenth(accumulate(ts, rows, "E1 RPM",
			func(v float64) bool { return v > 0 },
			func(v float64) bool { return v <= 0 }))
		summary.HobbsTime = &hobbs
	}
	if ts.Has("IAS") {
		// Exactly FlightTimeAirspeed neither starts nor ends a flight.
		flight := RoundUpTenth(accumulate(ts, rows, "IAS",
			func(v float64) bool { return v > FlightTimeAirspeed },
			func(v float64) bool { return v < FlightTimeAirspeed }))
		summary.FlightTime = &flight
	}

	summary.OriginPos, summary.DestinationPos = endpoints(ts, rows)
	if geocoder != nil {
		if p := summary.OriginPos; p != nil {
			if code, ok := geocoder.NearestAirport(p.Lat, p.Lon, AirportSearchRadiusKm); ok {
				summary.Origin = code
			}
		}
		if p := summary.DestinationPos; p != nil {
			if code, ok := geocoder.NearestAirport(p.Lat, p.Lon, AirportSearchRadiusKm); ok {
				summary.Destination = code
			}
		}
	}

	return summary
}

// RoundUpTenth converts a duration to hours, rounding the fractional hour
// up to the next tenth. Sub-second precision is discarded.
func RoundUpTenth(d time.Duration) float64 {
	secs := int64(d / time.Second)
	hours := secs / 3600
	rem := secs % 3600
	tenths := (rem + 359) / 360
	return float64(hours*10+tenths) / 10
}

// gpsRows returns the indices of rows with a GPS fix. Logs without
// position columns keep every row.
func gpsRows(ts *TimeSeries) []int {
	filter := ts.Has(ColLatitude) && ts.Has(ColLongitude)
	rows := make([]int, 0, ts.Len())
	for i := 0; i < ts.Len(); i++ {
		if filter && (math.IsNaN(ts.Float(i, ColLatitude)) || math.IsNaN(ts.Float(i, ColLongitude))) {
			continue
		}
		rows = append(rows, i)
	}
	return rows
}

// accumulate sums the intervals that run from a row where begin holds to
// the next row where end holds. Rows with an invalid value or timestamp
// neither open nor close an interval.
func accumulate(ts *TimeSeries, rows []int, col string, begin, end func(float64) bool) time.Duration {
	var total time.Duration
	var start time.Time
	var last time.Time
	open := false

	for _, r := range rows {
		t := ts.Time(r)
		if !t.IsZero() {
			last = t
		}
		v := ts.Float(r, col)
		if math.IsNaN(v) || t.IsZero() {
			continue
		}
		switch {
		case !open && begin(v):
			start = t
			open = true
		case open && end(v):
			total += t.Sub(start)
			open = false
		}
	}
	if open {
		total += last.Sub(start)
	}
	return total
}

func summarizeFuel(ts *TimeSeries, rows []int, summary *models.FlightSummary) {
	if !ts.Has("FQtyL") || !ts.Has("FQtyR") {
		summary.FuelConsumed = fuelConsumed(ts, rows, nil, nil)
		return
	}

	total := make([]float64, len(rows))
	for i, r := range rows {
		total[i] = ts.Float(r, "FQtyL") + ts.Float(r, "FQtyR")
	}
	smoothed := rollingMedian(total, fuelSmoothingWindow)

	summary.MaxFuel = maxOf(window(smoothed, 30, 60))
	summary.MinFuel = minOf(window(smoothed, len(smoothed)-fuelSmoothingWindow, len(smoothed)))
	if summary.MinFuel != nil {
		remaining := *summary.MinFuel
		summary.FuelRemaining = &remaining
	}
	summary.FuelConsumed = fuelConsumed(ts, rows, summary.MaxFuel, summary.MinFuel)
}

// fuelConsumed integrates fuel flow (gph) over time with the trapezoidal
// rule, falling back to the drop in smoothed quantity.
func fuelConsumed(ts *TimeSeries, rows []int, maxFuel, minFuel *float64) *float64 {
	if ts.Has("E1 FFlow") {
		var xs []int64
		var ys []float64
		for _, r := range rows {
			t := ts.Time(r)
			v := ts.Float(r, "E1 FFlow")
			if t.IsZero() || math.IsNaN(v) {
				continue
			}
			xs = append(xs, t.UnixNano())
			ys = append(ys, v)
		}
		if len(xs) >= 2 {
			var area float64
			for i := 1; i < len(xs); i++ {
				area += (ys[i] + ys[i-1]) / 2 * float64(xs[i]-xs[i-1])
			}
			consumed := area / float64(time.Hour)
			return &consumed
		}
	}
	if maxFuel != nil && minFuel != nil {
		consumed := *maxFuel - *minFuel
		return &consumed
	}
	return nil
}

// rollingMedian is a centered rolling median that ignores NaN and needs at
// least one valid value per window.
func rollingMedian(values []float64, size int) []float64 {
	out := make([]float64, len(values))
	half := size / 2
	buf := make([]float64, 0, size)
	for i := range values {
		buf = buf[:0]
		lo := max(0, i-half)
		hi := min(len(values)-1, i+size-1-half)
		for j := lo; j <= hi; j++ {
			if !math.IsNaN(values[j]) {
				buf = append(buf, values[j])
			}
		}
		out[i] = median(buf)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// window returns values[lo:hi] clamped to the slice bounds.
func window(values []float64, lo, hi int) []float64 {
	lo = max(0, min(lo, len(values)))
	hi = max(lo, min(hi, len(values)))
	return values[lo:hi]
}

func maxOf(values []float64) *float64 {
	var out *float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if out == nil || v > *out {
			out = &v
		}
	}
	return out
}

func minOf(values []float64) *float64 {
	var out *float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if out == nil || v < *out {
			out = &v
		}
	}
	return out
}

func column(ts *TimeSeries, rows []int, col string) []float64 {
	if !ts.Has(col) {
		return nil
	}
	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = ts.Float(r, col)
	}
	return values
}

func columnMax(ts *TimeSeries, rows []int, col string) *float64 {
	return maxOf(column(ts, rows, col))
}

func columnMin(ts *TimeSeries, rows []int, col string) *float64 {
	return minOf(column(ts, rows, col))
}

// columnArray collects the maxima of numbered columns such as "E1 CHT1".
func columnArray(ts *TimeSeries, rows []int, pattern string, n int) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = columnMax(ts, rows, fmt.Sprintf(pattern, i+1))
	}
	return out
}

func endpoints(ts *TimeSeries, rows []int) (*models.Position, *models.Position) {
	if !ts.Has(ColLatitude) || !ts.Has(ColLongitude) {
		return nil, nil
	}
	var first, last *models.Position
	for _, r := range rows {
		lat := ts.Float(r, ColLatitude)
		if math.IsNaN(lat) {
			continue
		}
		p := &models.Position{Lat: lat, Lon: ts.Float(r, ColLongitude)}
		if first == nil {
			first = p
		}
		last = p
	}
	return first, last
}
