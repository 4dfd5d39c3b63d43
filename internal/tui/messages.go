package tui

import (
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/opensync-io/opensync/internal/models"
)

// RecordsLoadedMsg carries the processed records from the database.
type RecordsLoadedMsg struct {
	Records []*models.ProcessedRecord
	Err     error
}

// DaemonStatusMsg carries the daemon's recorded info and capture health.
// Info is nil when the daemon is not running.
type DaemonStatusMsg struct {
	Info   *models.DaemonInfo
	Status healthpb.HealthCheckResponse_ServingStatus
	Err    error
}

// LogTailMsg carries the end of the daemon log.
type LogTailMsg struct {
	Content string
}

// TickMsg is a periodic tick for polling.
type TickMsg struct{}

// ErrorMsg carries an error to display.
type ErrorMsg struct {
	Err error
}
