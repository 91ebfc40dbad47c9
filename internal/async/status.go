// Package async runs crawls on a single background worker and exposes a
// thread-safe snapshot of the current job for polling consumers.
package async

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

// JobStatus is the lifecycle state of a job. It mirrors store.RunStatus.
type JobStatus string

const (
	// JobQueued indicates the run is prepared and the worker not yet running.
	JobQueued JobStatus = "queued"
	// JobRunning indicates the crawl is in progress.
	JobRunning JobStatus = "running"
	// JobCompleted indicates the crawl finished successfully.
	JobCompleted JobStatus = "completed"
	// JobFailed indicates the crawl failed.
	JobFailed JobStatus = "failed"
)

// IsActive reports whether the job is queued or running.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobRunning
}

// Progress messages shown to users.
const (
	msgQueued   = "Queued"
	msgIndexing = "Indexing…"
	msgComplete = "Scan complete."
)

func indexedMessage(files int) string {
	return fmt.Sprintf("Indexed %s files", humanize.Comma(int64(files)))
}

func failedMessage(err error) string {
	return "Scan failed: " + fserrors.Message(err)
}

// Job is an immutable snapshot of a crawl job. It is a UI-facing cache of the
// persisted run and is not kept across restarts.
type Job struct {
	ID              string     `json:"job_id"`
	RunID           int64      `json:"run_id"`
	RootPath        string     `json:"root_path"`
	Status          JobStatus  `json:"status"`
	Message         string     `json:"message"`
	ProcessedFiles  int        `json:"processed_files"`
	ErrorCount      int        `json:"error_count"`
	CurrentPath     string     `json:"current_path,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
}

// Duration returns the recorded duration of a finished job, or the time
// elapsed since start for a job still running. Zero before start.
func (j Job) Duration(now time.Time) time.Duration {
	if j.DurationSeconds != nil {
		return time.Duration(*j.DurationSeconds * float64(time.Second))
	}
	if j.StartedAt != nil {
		return max(now.Sub(*j.StartedAt), 0)
	}
	return 0
}

// clone returns a copy that shares no pointers with j.
func (j Job) clone() Job {
	c := j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.DurationSeconds != nil {
		d := *j.DurationSeconds
		c.DurationSeconds = &d
	}
	return c
}
