package retail

import (
	"context"
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the audit record of one pipeline execution.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	RowsRead  int    `json:"rows_read"`
	Discarded int    `json:"discarded"`
	Skipped   int    `json:"skipped"`
	Counts    Counts `json:"counts"`

	Error string `json:"error,omitempty"`
}

// RunStore records pipeline runs. Runs survive Reset.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
