package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// Crawler indexes one directory tree per Index call.
type Crawler struct {
	store     RunWriter
	batchSize int
	owner     OwnerLookup
	clock     func() time.Time
	stat      func(string) (fs.FileInfo, error)
}

// New creates a Crawler writing through s.
func New(s RunWriter, opts Options) *Crawler {
	c := &Crawler{
		store:     s,
		batchSize: opts.BatchSize,
		owner:     opts.Owner,
		clock:     opts.Clock,
		stat:      opts.Stat,
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.stat == nil {
		c.stat = os.Lstat
	}
	return c
}

// walkState accumulates counters and the pending batch of one Index call.
type walkState struct {
	runID    int64
	root     string
	batch    []store.FileRecord
	total    int
	errors   int
	current  string
	progress ProgressFunc
}

// Index walks root and persists every regular file under runID.
//
// The root must exist and be a directory; otherwise Index fails before any
// store call. Per-file failures and unreadable directories are counted and
// skipped. Any store failure finalizes the run as failed and is returned.
// On failure the returned Result carries the counts up to the failure.
func (c *Crawler) Index(ctx context.Context, root string, runID int64, progress ProgressFunc) (*Result, error) {
	absRoot, err := store.CanonicalRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, fserrors.New(fserrors.ErrCodeFileNotFound,
				fmt.Sprintf("root path does not exist: %s", absRoot), err)
		}
		return nil, fserrors.New(fserrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot access root path: %s", absRoot), err)
	}
	if !info.IsDir() {
		return nil, fserrors.New(fserrors.ErrCodeNotADirectory,
			fmt.Sprintf("root path is not a directory: %s", absRoot), nil)
	}

	start := c.clock()
	w := &walkState{
		runID:    runID,
		root:     absRoot,
		batch:    make([]store.FileRecord, 0, c.batchSize),
		progress: progress,
	}

	slog.Info("scan_started",
		slog.Int64("run_id", runID),
		slog.String("root", absRoot),
		slog.Int("batch_size", c.batchSize))

	if err := c.store.MarkRunStarted(ctx, runID); err != nil {
		return c.fail(ctx, w, start, err)
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		return c.visit(ctx, w, path, d, walkErr)
	})
	if err == nil {
		err = c.flush(ctx, w)
	}
	if err != nil {
		return c.fail(ctx, w, start, err)
	}

	duration := max(c.clock().Sub(start), 0)
	if err := c.store.FinalizeRun(ctx, runID, store.Finalization{
		TotalFiles:      w.total,
		TotalErrors:     w.errors,
		DurationSeconds: duration.Seconds(),
		Status:          store.RunStatusCompleted,
	}); err != nil {
		return c.fail(ctx, w, start, err)
	}

	slog.Info("scan_completed",
		slog.Int64("run_id", runID),
		slog.Int("files", w.total),
		slog.Int("errors", w.errors),
		slog.Duration("duration", duration))

	return &Result{
		RunID:      runID,
		TotalFiles: w.total,
		ErrorCount: w.errors,
		Duration:   duration,
	}, nil
}

// visit handles one WalkDir entry. It returns an error only for store failures.
func (c *Crawler) visit(ctx context.Context, w *walkState, path string, d fs.DirEntry, walkErr error) error {
	if walkErr != nil {
		w.errors++
		if d != nil && d.IsDir() {
			slog.Warn("directory_unreadable",
				slog.String("path", path),
				slog.String("error", walkErr.Error()))
			return filepath.SkipDir
		}
		slog.Debug("entry_unreadable",
			slog.String("path", path),
			slog.String("error", walkErr.Error()))
		return nil
	}

	// Symlinks are never followed nor indexed; other non-regular files are ignored.
	if d.IsDir() || !d.Type().IsRegular() {
		return nil
	}

	info, err := c.stat(path)
	if err != nil {
		w.errors++
		slog.Debug("stat_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}

	created, modified := fileTimes(info)
	if created == nil && modified == nil {
		w.errors++
		slog.Debug("timestamps_unavailable", slog.String("path", path))
		return nil
	}

	rec := store.FileRecord{
		Path:       path,
		FileName:   d.Name(),
		Subfolder:  Subfolder(w.root, path),
		Extension:  Extension(d.Name()),
		CreatedAt:  created,
		ModifiedAt: modified,
	}
	if c.owner != nil {
		if name, ok := c.owner.Owner(info); ok {
			rec.Owner = &name
		}
	}

	w.batch = append(w.batch, rec)
	w.current = path
	if len(w.batch) >= c.batchSize {
		return c.flush(ctx, w)
	}
	return nil
}

// flush writes the pending batch, updates run counters and reports progress.
func (c *Crawler) flush(ctx context.Context, w *walkState) error {
	if len(w.batch) == 0 {
		return nil
	}
	if err := c.store.InsertFileBatch(ctx, w.runID, w.batch); err != nil {
		return err
	}
	w.total += len(w.batch)
	w.batch = make([]store.FileRecord, 0, c.batchSize)

	if err := c.store.UpdateRunProgress(ctx, w.runID, w.total, w.errors); err != nil {
		return err
	}

	slog.Debug("batch_flushed",
		slog.Int64("run_id", w.runID),
		slog.Int("files", w.total),
		slog.Int("errors", w.errors))

	if w.progress != nil {
		w.progress(Stats{
			ProcessedFiles: w.total,
			ErrorCount:     w.errors,
			CurrentPath:    w.current,
		})
	}
	return nil
}

// fail records the run as failed with one extra error and returns cause.
func (c *Crawler) fail(ctx context.Context, w *walkState, start time.Time, cause error) (*Result, error) {
	duration := max(c.clock().Sub(start), 0)
	w.errors++
	msg := fserrors.Message(cause)

	slog.Error("scan_failed",
		slog.Int64("run_id", w.runID),
		slog.Int("files", w.total),
		slog.Int("errors", w.errors),
		fserrors.LogAttr(cause))

	if err := c.store.FinalizeRun(ctx, w.runID, store.Finalization{
		TotalFiles:      w.total,
		TotalErrors:     w.errors,
		DurationSeconds: duration.Seconds(),
		Status:          store.RunStatusFailed,
		ErrorMessage:    &msg,
	}); err != nil {
		slog.Error("finalize_failed_run",
			slog.Int64("run_id", w.runID),
			slog.String("error", err.Error()))
	}

	return &Result{
		RunID:      w.runID,
		TotalFiles: w.total,
		ErrorCount: w.errors,
		Duration:   duration,
	}, cause
}
