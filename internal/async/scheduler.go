package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/fsaudit/internal/crawler"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// lockFileName marks a crawl in progress inside the lock directory. A lock
// left behind means the process exited mid-crawl.
const lockFileName = "scan.lock"

// Indexer runs one crawl. *crawler.Crawler implements it.
type Indexer interface {
	Index(ctx context.Context, root string, runID int64, progress crawler.ProgressFunc) (*crawler.Result, error)
}

// RunStore creates or resets the run row for a root, and settles a run that a
// failed crawl left queued or running. *store.SQLiteStore implements it.
type RunStore interface {
	PrepareRun(ctx context.Context, rootPath string) (int64, error)
	GetRun(ctx context.Context, runID int64) (*store.Run, error)
	MarkRunStarted(ctx context.Context, runID int64) error
	FinalizeRun(ctx context.Context, runID int64, f store.Finalization) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLockDir makes the worker hold a lock file in dir while crawling.
func WithLockDir(dir string) Option {
	return func(s *Scheduler) { s.lockDir = dir }
}

// Scheduler runs at most one crawl at a time on a background goroutine.
// All access to the current job happens under mu; the crawl itself runs
// outside the lock so status polling never waits on traversal.
type Scheduler struct {
	runs    RunStore
	indexer Indexer
	clock   func() time.Time
	lockDir string

	mu     sync.Mutex
	job    *Job
	doneCh chan struct{} // closed when the current worker exits; nil when idle
}

// NewScheduler creates a scheduler that keeps runs in runs and crawls with idx.
func NewScheduler(runs RunStore, idx Indexer, opts ...Option) *Scheduler {
	s := &Scheduler{
		runs:    runs,
		indexer: idx,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start prepares a run for root and launches the crawl in the background,
// returning the queued job immediately. It fails with ErrJobAlreadyRunning,
// and changes nothing, while another job is queued or running.
//
// The crawl outlives ctx: cancelling the request does not cancel the crawl.
func (s *Scheduler) Start(ctx context.Context, root string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && s.job.Status.IsActive() {
		return Job{}, fserrors.ContentionError(
			fmt.Sprintf("a crawl of %s is already in progress", s.job.RootPath)).
			WithDetail("job_id", s.job.ID)
	}

	root, err := store.CanonicalRoot(root)
	if err != nil {
		return Job{}, err
	}
	runID, err := s.runs.PrepareRun(ctx, root)
	if err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:       uuid.NewString(),
		RunID:    runID,
		RootPath: root,
		Status:   JobQueued,
		Message:  msgQueued,
	}
	s.job = job
	done := make(chan struct{})
	s.doneCh = done

	slog.Info("job_queued",
		slog.String("job_id", job.ID),
		slog.Int64("run_id", runID),
		slog.String("root", root))

	go s.run(context.WithoutCancel(ctx), job, done)

	return job.clone(), nil
}

// Status returns a snapshot of the current or most recently finished job.
// ok is false if no job has been started.
func (s *Scheduler) Status() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return Job{}, false
	}
	return s.job.clone(), true
}

// HasActiveJob reports whether a job is queued or running.
func (s *Scheduler) HasActiveJob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil && s.job.Status.IsActive()
}

// Wait blocks until the current worker, if any, exits.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.doneCh
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run is the worker body for job.
func (s *Scheduler) run(ctx context.Context, job *Job, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.doneCh == done {
			s.doneCh = nil
		}
		s.mu.Unlock()
	}()

	s.mu.Lock()
	started := s.clock()
	job.Status = JobRunning
	job.Message = msgIndexing
	job.StartedAt = &started
	s.mu.Unlock()

	release := s.acquireLock(job)
	res, err := s.index(ctx, job)
	release()

	if err != nil {
		finished := s.clock()
		s.settleRun(ctx, job, res, started, finished, err)
		s.finishFailed(job, res, started, finished, err)
		return
	}
	s.finishCompleted(job, res, started)
}

// index calls the Indexer, converting a panic into a run-fatal error.
func (s *Scheduler) index(ctx context.Context, job *Job) (res *crawler.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("indexer_panic",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res = nil
			err = fserrors.New(fserrors.ErrCodeScanFailed,
				fmt.Sprintf("indexer panicked: %v", r), nil)
		}
	}()
	return s.indexer.Index(ctx, job.RootPath, job.RunID, func(st crawler.Stats) {
		s.applyProgress(job, st)
	})
}

// applyProgress merges a crawler snapshot into job. Counts never decrease.
func (s *Scheduler) applyProgress(job *Job, st crawler.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ProcessedFiles = max(job.ProcessedFiles, st.ProcessedFiles)
	job.ErrorCount = max(job.ErrorCount, st.ErrorCount)
	if st.CurrentPath != "" {
		job.CurrentPath = st.CurrentPath
	}
	job.Message = indexedMessage(job.ProcessedFiles)
}

func (s *Scheduler) finishCompleted(job *Job, res *crawler.Result, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.clock()
	job.Status = JobCompleted
	job.Message = msgComplete
	job.FinishedAt = &finished
	if res != nil {
		job.ProcessedFiles = max(job.ProcessedFiles, res.TotalFiles)
		job.ErrorCount = max(job.ErrorCount, res.ErrorCount)
	}
	d := s.durationSeconds(res, started, finished)
	job.DurationSeconds = &d

	slog.Info("job_completed",
		slog.String("job_id", job.ID),
		slog.Int64("run_id", job.RunID),
		slog.Int("files", job.ProcessedFiles),
		slog.Int("errors", job.ErrorCount),
		slog.Float64("duration_seconds", d))
}

func (s *Scheduler) finishFailed(job *Job, res *crawler.Result, started, finished time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Status = JobFailed
	job.Message = failedMessage(err)
	job.FinishedAt = &finished
	job.ProcessedFiles, job.ErrorCount = failedCounts(job, res)
	d := s.durationSeconds(res, started, finished)
	job.DurationSeconds = &d

	slog.Error("job_failed",
		slog.String("job_id", job.ID),
		slog.Int64("run_id", job.RunID),
		slog.Int("files", job.ProcessedFiles),
		slog.Int("errors", job.ErrorCount),
		fserrors.LogAttr(err))
}

// settleRun finalizes the run as failed when the indexer returned without
// doing so, as after a panic or a root that vanished after PrepareRun. A
// queued run is started first so the row only ever moves forward. It runs
// while the job is still active, so no new Start can reset the row meanwhile.
func (s *Scheduler) settleRun(ctx context.Context, job *Job, res *crawler.Result, started, finished time.Time, cause error) {
	run, err := s.runs.GetRun(ctx, job.RunID)
	if err != nil {
		slog.Error("settle_run_failed", slog.Int64("run_id", job.RunID), fserrors.LogAttr(err))
		return
	}
	if run == nil || !run.Status.IsActive() {
		return
	}
	if run.Status == store.RunStatusQueued {
		if err := s.runs.MarkRunStarted(ctx, job.RunID); err != nil {
			slog.Error("settle_run_failed", slog.Int64("run_id", job.RunID), fserrors.LogAttr(err))
			return
		}
	}

	s.mu.Lock()
	files, errs := failedCounts(job, res)
	s.mu.Unlock()
	msg := fserrors.Message(cause)
	if err := s.runs.FinalizeRun(ctx, job.RunID, store.Finalization{
		TotalFiles:      files,
		TotalErrors:     errs,
		DurationSeconds: s.durationSeconds(res, started, finished),
		Status:          store.RunStatusFailed,
		ErrorMessage:    &msg,
	}); err != nil {
		slog.Error("settle_run_failed", slog.Int64("run_id", job.RunID), fserrors.LogAttr(err))
		return
	}

	slog.Warn("run_settled",
		slog.String("job_id", job.ID),
		slog.Int64("run_id", job.RunID),
		slog.String("was", string(run.Status)))
}

// failedCounts is the file and error count of a failed job: the run-fatal
// error adds one unless the indexer already counted it.
func failedCounts(job *Job, res *crawler.Result) (files, errs int) {
	files, errs = job.ProcessedFiles, job.ErrorCount+1
	if res != nil {
		files = max(files, res.TotalFiles)
		errs = max(errs, res.ErrorCount)
	}
	return files, errs
}

// durationSeconds prefers the indexer's own measurement and falls back to
// wall-clock time since the worker started.
func (s *Scheduler) durationSeconds(res *crawler.Result, started, finished time.Time) float64 {
	if res != nil && res.Duration > 0 {
		return res.DurationSeconds()
	}
	return max(finished.Sub(started), 0).Seconds()
}

// acquireLock writes the lock file when a lock dir is configured and returns
// a func that removes it. Lock file failures are logged, never fatal.
func (s *Scheduler) acquireLock(job *Job) func() {
	if s.lockDir == "" {
		return func() {}
	}
	if err := os.MkdirAll(s.lockDir, 0755); err != nil {
		slog.Warn("scan_lock_failed", slog.String("error", err.Error()))
		return func() {}
	}
	lockPath := filepath.Join(s.lockDir, lockFileName)
	content := fmt.Sprintf("%s\n%s\n", job.ID, s.clock().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		slog.Warn("scan_lock_failed", slog.String("error", err.Error()))
		return func() {}
	}
	return func() { _ = os.Remove(lockPath) }
}

// HasIncompleteLock reports whether a crawl lock was left behind in dir,
// meaning a previous process exited while crawling.
func HasIncompleteLock(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, lockFileName))
	return err == nil
}
