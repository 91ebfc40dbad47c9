// Package store provides the SQLite-backed metadata store for scan runs and
// the file records they index. It owns the schema and every read and write;
// it has no concurrency logic beyond the engine's transactions.
package store

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a scan run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsActive reports whether the run is queued or running.
func (s RunStatus) IsActive() bool {
	return s == RunStatusQueued || s == RunStatusRunning
}

// IsTerminal reports whether the run has completed or failed.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransitionTo reports whether next is a valid forward transition:
// queued -> running -> {completed, failed}.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusQueued:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// Run is one durable record per distinct root path ever scanned.
type Run struct {
	ID              int64      `json:"run_id"`
	RootPath        string     `json:"root_path"`
	QueuedAt        *time.Time `json:"queued_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          RunStatus  `json:"status"`
	TotalFiles      int        `json:"total_files"`
	TotalErrors     int        `json:"total_errors"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// LastActivity returns the most recent lifecycle timestamp of the run.
func (r *Run) LastActivity() *time.Time {
	switch {
	case r.CompletedAt != nil:
		return r.CompletedAt
	case r.StartedAt != nil:
		return r.StartedAt
	default:
		return r.QueuedAt
	}
}

// FileRecord is one indexed file within a run.
// Nil timestamps or owner mean the value was unavailable at crawl time.
type FileRecord struct {
	Path       string     `json:"path"`
	FileName   string     `json:"file_name"`
	Subfolder  string     `json:"subfolder"`
	Extension  string     `json:"extension"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	Owner      *string    `json:"modified_by,omitempty"`
}

// Finalization is the terminal write for a run.
type Finalization struct {
	TotalFiles      int
	TotalErrors     int
	DurationSeconds float64
	Status          RunStatus // completed or failed
	ErrorMessage    *string
}

// SortColumn names a sortable file column.
type SortColumn string

const (
	SortFileName   SortColumn = "file_name"
	SortSubfolder  SortColumn = "subfolder"
	SortCreatedAt  SortColumn = "created_at"
	SortModifiedAt SortColumn = "modified_at"
	SortOwner      SortColumn = "modified_by"
	SortExtension  SortColumn = "extension"
)

// sortableColumns maps allowed sort columns to their SQL column names.
var sortableColumns = map[SortColumn]string{
	SortFileName:   "file_name",
	SortSubfolder:  "subfolder",
	SortCreatedAt:  "created_at",
	SortModifiedAt: "modified_at",
	SortOwner:      "modified_by",
	SortExtension:  "extension",
}

// IsValid reports whether the column may be used for sorting.
func (c SortColumn) IsValid() bool {
	_, ok := sortableColumns[c]
	return ok
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortInstruction orders a page by one column.
type SortInstruction struct {
	Column    SortColumn    `json:"column_id"`
	Direction SortDirection `json:"direction"`
}

// MaxSortInstructions is the number of sort instructions honored per query.
const MaxSortInstructions = 3

// PageQuery selects one page of file rows of a run.
type PageQuery struct {
	RunID     int64             `json:"run_id"`
	PageIndex int               `json:"page_index"` // zero-based; negative clamps to 0
	PageSize  int               `json:"page_size"`
	Sort      []SortInstruction `json:"sort,omitempty"`

	// Extensions is an exact-match set, OR'd. Empty means no filter.
	Extensions []string `json:"extensions,omitempty"`

	// SubfolderContains is a case-preserving substring filter. Empty means no filter.
	SubfolderContains string `json:"subfolder_contains,omitempty"`
}

// Page is one page of matching rows plus the total number of matches.
type Page struct {
	Rows  []FileRecord `json:"rows"`
	Total int          `json:"total"`
}

// PageCount returns ceil(total/pageSize), which is 0 when total is 0.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// DefaultPageSize is used when a query does not name a positive page size.
const DefaultPageSize = 50

// Store persists runs and file records.
type Store interface {
	// Schema
	EnsureSchema(ctx context.Context) error

	// Run lifecycle
	PrepareRun(ctx context.Context, rootPath string) (int64, error)
	MarkRunStarted(ctx context.Context, runID int64) error
	UpdateRunProgress(ctx context.Context, runID int64, totalFiles, totalErrors int) error
	FinalizeRun(ctx context.Context, runID int64, f Finalization) error

	// File records
	InsertFileBatch(ctx context.Context, runID int64, rows []FileRecord) error

	// Queries
	GetRun(ctx context.Context, runID int64) (*Run, error)
	GetRunByRoot(ctx context.Context, rootPath string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	FetchExtensions(ctx context.Context, runID int64) ([]string, error)
	FetchPage(ctx context.Context, q PageQuery) (*Page, error)

	// Lifecycle
	Close() error
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1
