// Package crawler walks a directory tree and persists per-file metadata into
// the metadata store in fixed-size batches, reporting progress after each
// batch. A Crawler holds no state across calls.
package crawler

import (
	"context"
	"io/fs"
	"time"

	"github.com/Aman-CERP/fsaudit/internal/store"
)

// DefaultBatchSize is the number of records written per store transaction.
const DefaultBatchSize = 500

// Stats is the progress snapshot passed to a ProgressFunc.
type Stats struct {
	ProcessedFiles int
	ErrorCount     int
	CurrentPath    string
}

// ProgressFunc receives a snapshot after each flushed batch.
type ProgressFunc func(Stats)

// Result summarizes a finished crawl.
type Result struct {
	RunID      int64
	TotalFiles int
	ErrorCount int
	Duration   time.Duration
}

// DurationSeconds returns the duration as fractional seconds.
func (r *Result) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// RunWriter is the subset of store.Store the crawler writes through.
type RunWriter interface {
	MarkRunStarted(ctx context.Context, runID int64) error
	UpdateRunProgress(ctx context.Context, runID int64, totalFiles, totalErrors int) error
	FinalizeRun(ctx context.Context, runID int64, f store.Finalization) error
	InsertFileBatch(ctx context.Context, runID int64, rows []store.FileRecord) error
}

// Options configures a Crawler. Zero values select defaults.
type Options struct {
	// BatchSize is the number of records per insert (default 500).
	BatchSize int

	// Owner resolves file owners. Nil records every owner as absent.
	Owner OwnerLookup

	// Clock returns the current time (default time.Now).
	Clock func() time.Time

	// Stat reads file metadata (default os.Lstat).
	Stat func(path string) (fs.FileInfo, error)
}
