package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunKind names the operation a RunRecord describes.
type RunKind string

const (
	RunDaily    RunKind = "daily"
	RunBackfill RunKind = "backfill"
	RunArchive  RunKind = "archive"
	RunIngest   RunKind = "ingest"
	RunMerge    RunKind = "merge"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	Kind           RunKind   `json:"kind"`
	TargetDate     time.Time `json:"target_date"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	Status         RunStatus `json:"status"`
	Locations      int       `json:"locations"`
	WithCurrent    int       `json:"with_current"`
	WithStatistics int       `json:"with_statistics"`
	Backfilled     int       `json:"backfilled"`
	Error          string    `json:"error,omitempty"`
}

// NewRunRecord starts a record for kind with a fresh id.
func NewRunRecord(kind RunKind, target time.Time) RunRecord {
	return RunRecord{
		ID:         uuid.New(),
		Kind:       kind,
		TargetDate: CivilDate(target),
		StartedAt:  clock.Now().UTC(),
		Status:     RunRunning,
	}
}

// Finish stamps the end time and status. A non-nil err marks the run failed.
func (r *RunRecord) Finish(status RunStatus, err error) {
	r.FinishedAt = clock.Now().UTC()
	r.Status = status
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
	}
}

// Duration is the wall-clock time between start and finish.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
