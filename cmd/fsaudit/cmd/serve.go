package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/daemon"
	"github.com/Aman-CERP/fsaudit/internal/logging"
	"github.com/Aman-CERP/fsaudit/internal/output"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

// readyPollInterval and readyAttempts bound how long a background start
// waits for the socket.
const (
	readyPollInterval = 100 * time.Millisecond
	readyAttempts     = 30
)

func newServeCmd(a *app) *cobra.Command {
	var background bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fsaudit daemon",
		Long: `Serve the indexer over a Unix socket so scans outlive the command
that started them and several clients can browse the same store.

Runs in the foreground by default. Stop it with Ctrl+C, SIGTERM or
'fsaudit stop'; an active scan is given a short grace period to finish.`,
		Annotations: map[string]string{annotationLogging: loggingDaemon},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if background {
				return runServeBackground(cmd, a)
			}
			return runServe(cmd.Context(), cmd, a)
		},
	}

	cmd.Flags().BoolVarP(&background, "background", "b", false, "Start the daemon detached and return")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app) error {
	out := output.New(cmd.ErrOrStderr(), ui.DetectNoColor())

	dcfg, err := daemonConfig(a.cfg)
	if err != nil {
		return err
	}
	if daemon.NewClient(dcfg).IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	b, err := newLocalBackend(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	if async.HasIncompleteLock(a.cfg.DataDir()) {
		slog.Warn("previous_scan_interrupted", slog.String("dir", a.cfg.DataDir()))
	}

	d, err := daemon.NewDaemon(dcfg, b.service, b.scheduler)
	if err != nil {
		return err
	}

	out.Status("", "Serving fsaudit")
	out.KeyValue("Socket", dcfg.SocketPath)
	out.KeyValue("Store", b.store.Path())
	out.KeyValue("Logs", logging.DaemonLogPath())

	return d.Run(ctx)
}

// runServeBackground re-executes serve detached from the terminal and waits
// until the socket accepts connections.
func runServeBackground(cmd *cobra.Command, a *app) error {
	out := output.New(cmd.OutOrStdout(), ui.DetectNoColor())

	dcfg, err := daemonConfig(a.cfg)
	if err != nil {
		return err
	}
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	args := []string{"serve"}
	if a.cfgPath != "" {
		args = append(args, "--config", a.cfgPath)
	}
	if a.debug {
		args = append(args, "--debug")
	}

	bg := exec.Command(execPath, args...)
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bg.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice an early exit.
	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for range readyAttempts {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon exited unexpectedly; see %s", logging.DaemonLogPath())
		case <-time.After(readyPollInterval):
		}
		if client.IsRunning() {
			out.Successf("Daemon started (pid: %d)", bg.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("daemon did not start within %s", readyPollInterval*readyAttempts)
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon with SIGTERM.

An active scan gets the shutdown grace period to finish; a daemon that
does not exit after that is killed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStop(cmd, a)
		},
	}
}

func runStop(cmd *cobra.Command, a *app) error {
	out := output.New(cmd.OutOrStdout(), ui.DetectNoColor())

	dcfg, err := daemonConfig(a.cfg)
	if err != nil {
		return err
	}
	inst := daemon.NewInstance(dcfg.PIDPath, dcfg.LockPath())

	pid, err := inst.Owner()
	if errors.Is(err, daemon.ErrNotRunning) {
		out.Status("", "Daemon is not running")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := inst.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(dcfg.ShutdownGracePeriod + 2*time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(readyPollInterval)
		if _, err := inst.Owner(); errors.Is(err, daemon.ErrNotRunning) {
			out.Successf("Daemon stopped (was pid: %d)", pid)
			return nil
		}
	}

	out.Warning("Daemon not responding, sending SIGKILL")
	if err := inst.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	out.Success("Daemon killed")
	return nil
}
