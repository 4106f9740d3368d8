// Package history records and queries past target runs.
package history

import (
	"database/sql"
	"time"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Run is one invocation of a requested target.
type Run struct {
	ID        int64
	Target    string
	Status    Status
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Dir       string
	Error     sql.NullString
}
