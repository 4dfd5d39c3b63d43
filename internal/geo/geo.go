// Package geo resolves GPS positions to nearby airport codes using an
// OpenTravelData points-of-reference file.
package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

const earthRadiusKm = 6371.0

// Airport is a single point of reference with an ICAO code.
type Airport struct {
	Code string
	Lat  float64
	Lon  float64
}

// Index is an in-memory airport lookup table.
type Index struct {
	airports []Airport
}

// New creates an index from a list of airports.
func New(airports []Airport) *Index {
	sorted := append([]Airport(nil), airports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return &Index{airports: sorted}
}

// Load reads an OPTD POR file (optd_por_public_all.csv).
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airport database %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses '^'-delimited OPTD rows. Rows without an ICAO code or a
// valid position are skipped.
func Read(r io.Reader) (*Index, error) {
	reader := csv.NewReader(r)
	reader.Comma = '^'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read airport header: %w", err)
	}
	codeIdx, latIdx, lonIdx := -1, -1, -1
	for i, name := range header {
		switch name {
		case "icao_code":
			codeIdx = i
		case "latitude":
			latIdx = i
		case "longitude":
			lonIdx = i
		}
	}
	if codeIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, errors.New("airport database is missing icao_code, latitude or longitude columns")
	}
	need := max(codeIdx, latIdx, lonIdx)

	var airports []Airport
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read airport database: %w", err)
		}
		if len(rec) <= need || rec[codeIdx] == "" {
			continue
		}
		lat, err := strconv.ParseFloat(rec[latIdx], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(rec[lonIdx], 64)
		if err != nil {
			continue
		}
		airports = append(airports, Airport{Code: rec[codeIdx], Lat: lat, Lon: lon})
	}
	return New(airports), nil
}

// Len returns the number of airports in the index.
func (idx *Index) Len() int {
	return len(idx.airports)
}

// NearestAirport returns the code of the closest airport within radiusKm.
func (idx *Index) NearestAirport(lat, lon, radiusKm float64) (string, bool) {
	best := ""
	bestDist := math.Inf(1)
	for _, a := range idx.airports {
		d := Distance(lat, lon, a.Lat, a.Lon)
		if d <= radiusKm && d < bestDist {
			best, bestDist = a.Code, d
		}
	}
	return best, best != ""
}

// Distance returns the great-circle distance in kilometers.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
