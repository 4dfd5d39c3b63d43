package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordTypeLog is the record type for processed flight logs.
const RecordTypeLog = "log"

// ProcessedRecord is the persisted metadata for one flight log,
// keyed uniquely by DisplayName.
type ProcessedRecord struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	DisplayName string         `json:"fname"`
	DataPath    string         `json:"datapath"`
	Origin      string         `json:"origin"`
	Summary     *FlightSummary `json:"flight_log_summary,omitempty"`
	Error       string         `json:"error,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// NewProcessedRecord creates a log record for the given display name.
func NewProcessedRecord(name string) *ProcessedRecord {
	return &ProcessedRecord{
		ID:          uuid.New().String(),
		Type:        RecordTypeLog,
		DisplayName: name,
		ProcessedAt: time.Now().UTC(),
	}
}
