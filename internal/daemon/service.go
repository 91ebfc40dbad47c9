package daemon

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/fsaudit/internal/async"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// RunReader is the read side of the metadata store used by the service.
type RunReader interface {
	ListRuns(ctx context.Context) ([]store.Run, error)
	GetRun(ctx context.Context, runID int64) (*store.Run, error)
	GetRunByRoot(ctx context.Context, rootPath string) (*store.Run, error)
	FetchExtensions(ctx context.Context, runID int64) ([]string, error)
	FetchPage(ctx context.Context, q store.PageQuery) (*store.Page, error)
}

// JobScheduler is the scheduler surface used by the service.
type JobScheduler interface {
	Start(ctx context.Context, root string) (async.Job, error)
	Status() (async.Job, bool)
}

// Service implements RequestHandler over a scheduler and a store.
type Service struct {
	scheduler JobScheduler
	runs      RunReader
	storePath string
}

// NewService creates a Service. storePath is reported by the status method.
func NewService(scheduler JobScheduler, runs RunReader, storePath string) *Service {
	return &Service{
		scheduler: scheduler,
		runs:      runs,
		storePath: storePath,
	}
}

// StartScan validates root and starts a scan of it.
func (s *Service) StartScan(ctx context.Context, root string) (async.Job, error) {
	abs, err := ValidateRoot(root)
	if err != nil {
		return async.Job{}, err
	}
	return s.scheduler.Start(ctx, abs)
}

// ValidateRoot resolves root to an absolute path of an existing directory.
func ValidateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fserrors.New(fserrors.ErrCodeInvalidPath, "invalid path: "+root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fserrors.New(fserrors.ErrCodeInvalidPath, "path does not exist: "+abs, err).
			WithDetail("path", abs)
	}
	if !info.IsDir() {
		return "", fserrors.New(fserrors.ErrCodeNotADirectory, "path is not a directory: "+abs, nil).
			WithDetail("path", abs)
	}
	return abs, nil
}

// CurrentJob returns a snapshot of the latest job.
func (s *Service) CurrentJob() (async.Job, bool) {
	return s.scheduler.Status()
}

// ListRuns returns every run, active first.
func (s *Service) ListRuns(ctx context.Context) ([]store.Run, error) {
	return s.runs.ListRuns(ctx)
}

// GetRun returns a run or nil when it does not exist.
func (s *Service) GetRun(ctx context.Context, runID int64) (*store.Run, error) {
	return s.runs.GetRun(ctx, runID)
}

// RunByRoot returns the run of root, or nil when root was never scanned. The
// root need not exist any more.
func (s *Service) RunByRoot(ctx context.Context, root string) (*store.Run, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath, "invalid path: "+root, err)
	}
	return s.runs.GetRunByRoot(ctx, abs)
}

// Extensions returns the distinct extensions indexed in a run.
func (s *Service) Extensions(ctx context.Context, runID int64) ([]string, error) {
	return s.runs.FetchExtensions(ctx, runID)
}

// FilesPage fetches one page and derives the page count.
func (s *Service) FilesPage(ctx context.Context, q store.PageQuery) (*PageResult, error) {
	if q.PageSize <= 0 {
		q.PageSize = store.DefaultPageSize
	}
	if q.PageIndex < 0 {
		q.PageIndex = 0
	}
	page, err := s.runs.FetchPage(ctx, q)
	if err != nil {
		return nil, err
	}
	if page.Rows == nil {
		page.Rows = []store.FileRecord{}
	}
	return &PageResult{
		Page:      *page,
		PageIndex: q.PageIndex,
		PageSize:  q.PageSize,
		PageCount: store.PageCount(page.Total, q.PageSize),
	}, nil
}

// StorePath returns the database path.
func (s *Service) StorePath() string {
	return s.storePath
}
