package models

import "time"

// Position is a GPS coordinate pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FlightSummary is the structured record extracted from a single flight log.
// Numeric fields are nil when the source column had no valid samples.
type FlightSummary struct {
	BegTime *time.Time `json:"beg_time,omitempty"`
	EndTime *time.Time `json:"end_time,omitempty"`

	Origin         string    `json:"origin,omitempty"`
	Destination    string    `json:"destination,omitempty"`
	OriginPos      *Position `json:"origin_pos,omitempty"`
	DestinationPos *Position `json:"destination_pos,omitempty"`

	HobbsTime  *float64 `json:"hobbs_time,omitempty"`
	FlightTime *float64 `json:"flight_time,omitempty"`

	MaxFuel       *float64 `json:"max_fuel,omitempty"`
	MinFuel       *float64 `json:"min_fuel,omitempty"`
	FuelRemaining *float64 `json:"fuel_remaining,omitempty"`
	FuelConsumed  *float64 `json:"fuel_consumed,omitempty"`

	MaxCHT              []*float64 `json:"max_cht,omitempty"`
	MaxEGT              []*float64 `json:"max_egt,omitempty"`
	MaxTIT              []*float64 `json:"max_tit,omitempty"`
	MaxOilTemp          *float64   `json:"max_oil_temp,omitempty"`
	MaxOilPressure      *float64   `json:"max_oil_pressure,omitempty"`
	MaxManifoldPressure *float64   `json:"max_manifold_pressure,omitempty"`
	MaxRPM              *float64   `json:"max_rpm,omitempty"`

	MaxIAS       *float64 `json:"max_ias,omitempty"`
	MaxTAS       *float64 `json:"max_tas,omitempty"`
	MaxLatAccel  *float64 `json:"max_lat_accel,omitempty"`
	MaxNormAccel *float64 `json:"max_norm_accel,omitempty"`

	MinBat1Volts *float64 `json:"min_bat1_volts,omitempty"`
	MinBat2Volts *float64 `json:"min_bat2_volts,omitempty"`
	MaxBat1Amps  *float64 `json:"max_bat1_amps,omitempty"`

	AirframeInfo map[string]string `json:"airframe_info,omitempty"`
	FileName     string            `json:"fname,omitempty"`
}

// Hobbs returns the Hobbs time, or zero when it could not be computed.
func (s *FlightSummary) Hobbs() float64 {
	if s == nil || s.HobbsTime == nil {
		return 0
	}
	return *s.HobbsTime
}
