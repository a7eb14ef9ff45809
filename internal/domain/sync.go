package domain

import "time"

// SyncCursor holds the incremental polling position and health counters for
// one remote source. LastSyncTime only advances on a successful poll;
// IsActive=false is the circuit-open state and blocks poll ticks until a
// health check clears it.
type SyncCursor struct {
	Source                 string
	LastSyncTime           time.Time
	LastSuccessfulSyncTime *time.Time
	TotalAttempts          int64
	SuccessCount           int64
	FailureCount           int64
	ConsecutiveFailures    int
	LastError              string
	IsActive               bool
	IsHealthy              bool
	UpdatedAt              time.Time
}

// BulkImportMarker records whether the one-time full import has run for a
// source, so restarts do not repeat the full scan.
type BulkImportMarker struct {
	Source          string
	Completed       bool
	LastCompletedAt *time.Time
	TotalImported   int64
}
