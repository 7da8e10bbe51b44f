package model

import "time"

// RunStatus tracks the lifecycle of one engine invocation.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// MatchRun records bookkeeping for one engine invocation.
type MatchRun struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	ID             string // uuid
	Tiers          string // comma-separated tier list, e.g. "1,2,3"
	Status         RunStatus
	RecordsScanned int64
	PairsInserted  int64
}
