package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/config"
	"github.com/Aman-CERP/fsaudit/internal/crawler"
	"github.com/Aman-CERP/fsaudit/internal/daemon"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
)

// shutdownGracePeriod bounds how long serve waits for an active scan.
const shutdownGracePeriod = 10 * time.Second

// backend is what the scan and browse commands talk to: the daemon when it
// is running, or an in-process store and scheduler otherwise.
type backend interface {
	StartScan(ctx context.Context, root string) (*async.Job, error)
	JobStatus(ctx context.Context) (*async.Job, error)
	ListRuns(ctx context.Context) ([]store.Run, error)
	GetRun(ctx context.Context, runID int64) (*store.Run, error)
	RunByRoot(ctx context.Context, root string) (*store.Run, error)
	Extensions(ctx context.Context, runID int64) ([]string, error)
	FilesPage(ctx context.Context, q store.PageQuery) (*daemon.PageResult, error)

	// Remote reports whether the backend is the daemon.
	Remote() bool
	Close() error
}

// daemonConfig maps the loaded configuration onto the daemon's.
func daemonConfig(cfg *config.Config) (daemon.Config, error) {
	timeout, err := cfg.DaemonTimeout()
	if err != nil {
		return daemon.Config{}, fserrors.ConfigError(err.Error(), err)
	}
	return daemon.Config{
		SocketPath:          cfg.Daemon.SocketPath,
		PIDPath:             cfg.Daemon.PIDPath,
		Timeout:             timeout,
		ShutdownGracePeriod: shutdownGracePeriod,
	}, nil
}

// openBackend connects to a running daemon unless --no-daemon is set, and
// falls back to an in-process backend.
func (a *app) openBackend() (backend, error) {
	if !a.noDaemon {
		dcfg, err := daemonConfig(a.cfg)
		if err != nil {
			return nil, err
		}
		client := daemon.NewClient(dcfg)
		if client.IsRunning() {
			slog.Debug("backend_selected", slog.String("backend", "daemon"), slog.String("socket", dcfg.SocketPath))
			return &remoteBackend{client: client}, nil
		}
	}
	slog.Debug("backend_selected", slog.String("backend", "local"), slog.String("store", a.cfg.Store.Path))
	return newLocalBackend(a.cfg)
}

// localBackend owns a store and a scheduler for the life of one command.
type localBackend struct {
	store     *store.SQLiteStore
	scheduler *async.Scheduler
	service   *daemon.Service
}

// newLocalBackend opens the configured store and wires the crawler and
// scheduler over it. serve builds its handler the same way.
func newLocalBackend(cfg *config.Config) (*localBackend, error) {
	st, err := store.NewSQLiteStore(cfg.Store.Path, store.Options{Driver: cfg.Store.Driver})
	if err != nil {
		return nil, err
	}

	opts := crawler.Options{BatchSize: cfg.Crawler.BatchSize}
	if !cfg.Crawler.SkipOwners {
		owner, err := crawler.NewSystemOwner()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		opts.Owner = owner
	}

	sched := async.NewScheduler(st, crawler.New(st, opts), async.WithLockDir(cfg.DataDir()))
	return &localBackend{
		store:     st,
		scheduler: sched,
		service:   daemon.NewService(sched, st, st.Path()),
	}, nil
}

func (b *localBackend) StartScan(ctx context.Context, root string) (*async.Job, error) {
	job, err := b.service.StartScan(ctx, root)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (b *localBackend) JobStatus(context.Context) (*async.Job, error) {
	job, ok := b.service.CurrentJob()
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (b *localBackend) ListRuns(ctx context.Context) ([]store.Run, error) {
	return b.service.ListRuns(ctx)
}

func (b *localBackend) GetRun(ctx context.Context, runID int64) (*store.Run, error) {
	return b.service.GetRun(ctx, runID)
}

func (b *localBackend) RunByRoot(ctx context.Context, root string) (*store.Run, error) {
	return b.service.RunByRoot(ctx, root)
}

func (b *localBackend) Extensions(ctx context.Context, runID int64) ([]string, error) {
	return b.service.Extensions(ctx, runID)
}

func (b *localBackend) FilesPage(ctx context.Context, q store.PageQuery) (*daemon.PageResult, error) {
	return b.service.FilesPage(ctx, q)
}

func (b *localBackend) Remote() bool { return false }

// Close closes the store. A scan still running is abandoned with the process;
// its lock file marks the run as interrupted.
func (b *localBackend) Close() error {
	if !b.scheduler.HasActiveJob() {
		// The worker of a finished job may still be releasing its lock.
		b.scheduler.Wait()
	}
	return b.store.Close()
}

// remoteBackend forwards to the daemon and converts RPC errors back into
// coded errors.
type remoteBackend struct {
	client *daemon.Client
}

func (b *remoteBackend) StartScan(ctx context.Context, root string) (*async.Job, error) {
	job, err := b.client.StartScan(ctx, root)
	return job, fromRPCError(err)
}

func (b *remoteBackend) JobStatus(ctx context.Context) (*async.Job, error) {
	job, err := b.client.JobStatus(ctx)
	return job, fromRPCError(err)
}

func (b *remoteBackend) ListRuns(ctx context.Context) ([]store.Run, error) {
	runs, err := b.client.ListRuns(ctx)
	return runs, fromRPCError(err)
}

// GetRun returns nil for an unknown run, matching the local backend.
func (b *remoteBackend) GetRun(ctx context.Context, runID int64) (*store.Run, error) {
	run, err := b.client.GetRun(ctx, runID)
	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) && rpcErr.Code == daemon.ErrCodeRunNotFound {
		return nil, nil
	}
	return run, fromRPCError(err)
}

// RunByRoot returns nil for a root that was never scanned.
func (b *remoteBackend) RunByRoot(ctx context.Context, root string) (*store.Run, error) {
	run, err := b.client.RunByRoot(ctx, root)
	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) && rpcErr.Code == daemon.ErrCodeRunNotFound {
		return nil, nil
	}
	return run, fromRPCError(err)
}

func (b *remoteBackend) Extensions(ctx context.Context, runID int64) ([]string, error) {
	exts, err := b.client.Extensions(ctx, runID)
	return exts, fromRPCError(err)
}

func (b *remoteBackend) FilesPage(ctx context.Context, q store.PageQuery) (*daemon.PageResult, error) {
	page, err := b.client.FilesPage(ctx, q)
	return page, fromRPCError(err)
}

func (b *remoteBackend) Remote() bool { return true }

func (b *remoteBackend) Close() error { return nil }

// fromRPCError restores the coded error the daemon reported in its error
// data. Other errors pass through.
func fromRPCError(err error) error {
	var rpcErr *daemon.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	code := ""
	if data, ok := rpcErr.Data.(map[string]any); ok {
		code, _ = data["code"].(string)
	}
	if code == "" {
		switch rpcErr.Code {
		case daemon.ErrCodeJobAlreadyRunning:
			code = fserrors.ErrCodeJobAlreadyRunning
		case daemon.ErrCodeInvalidPath:
			code = fserrors.ErrCodeInvalidPath
		case daemon.ErrCodeStoreFailed:
			code = fserrors.ErrCodeStoreFailed
		case daemon.ErrCodeRunNotFound:
			code = fserrors.ErrCodeFileNotFound
		case daemon.ErrCodeInvalidParams:
			code = fserrors.ErrCodeInvalidInput
		default:
			code = fserrors.ErrCodeDaemonProtocol
		}
	}
	return fserrors.New(code, rpcErr.Message, err)
}
