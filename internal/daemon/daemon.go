package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

// Drainer waits for in-flight background work; *async.Scheduler implements it.
type Drainer interface {
	Wait()
}

// Daemon owns the server and the single-instance claim on its PID path.
type Daemon struct {
	cfg     Config
	server  *Server
	drainer Drainer
	inst    *Instance
}

// NewDaemon creates a daemon serving h. drainer may be nil.
func NewDaemon(cfg Config, h RequestHandler, drainer Drainer) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fserrors.ConfigError("invalid daemon config: "+err.Error(), err)
	}
	return &Daemon{
		cfg:     cfg,
		server:  NewServer(cfg.SocketPath, h),
		drainer: drainer,
		inst:    NewInstance(cfg.PIDPath, cfg.LockPath()),
	}, nil
}

// Run serves until ctx is cancelled, then drains the active scan for up to
// the shutdown grace period. Returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	acquired, err := d.inst.Acquire()
	if err != nil {
		return err
	}
	if !acquired {
		return fserrors.New(fserrors.ErrCodeDaemonUnavailable, "another daemon is already running", nil).
			WithDetail("lock", d.inst.LockPath())
	}
	defer func() {
		if err := d.inst.Release(); err != nil {
			slog.Warn("instance_release_failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.cfg.SocketPath))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := d.server.ListenAndServe(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		d.drain()
		return nil
	})

	err = g.Wait()
	slog.Info("daemon_stopped")
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}

// drain waits for the drainer or the grace period, whichever ends first.
func (d *Daemon) drain() {
	if d.drainer == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		d.drainer.Wait()
		close(done)
	}()

	timer := time.NewTimer(d.cfg.ShutdownGracePeriod)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("shutdown_grace_expired",
			slog.Duration("grace", d.cfg.ShutdownGracePeriod))
	}
}
