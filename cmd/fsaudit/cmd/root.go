// Package cmd provides the CLI commands for fsaudit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/config"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/logging"
	"github.com/Aman-CERP/fsaudit/internal/profiling"
	"github.com/Aman-CERP/fsaudit/pkg/version"
)

// Command annotations read by the root hooks.
const (
	// annotationConfig set to configOptional lets a command run with defaults
	// when the config files fail to load.
	annotationConfig = "fsaudit/config"
	configOptional   = "optional"

	// annotationLogging set to loggingDaemon routes logs to the daemon log.
	annotationLogging = "fsaudit/logging"
	loggingDaemon     = "daemon"
)

// app holds state shared by every command of one invocation.
type app struct {
	cfgPath  string
	debug    bool
	noDaemon bool
	profile  profiling.Options

	cfg        *config.Config
	cfgErr     error
	session    *profiling.Session
	logCleanup func()
}

// NewRootCmd creates the root command for the fsaudit CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsaudit",
		Short: "Index directory trees and browse file metadata",
		Long: `fsaudit crawls a directory tree, records per-file metadata
(name, subfolder, extension, timestamps, owner) into a local SQLite
database, and lets you page through the results with sorting and filters.

Scans run on a single background worker. When 'fsaudit serve' is running,
commands talk to it over a Unix socket; otherwise they run in-process.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("fsaudit version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default: user config)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging to ~/.fsaudit/logs/")
	cmd.PersistentFlags().BoolVar(&a.noDaemon, "no-daemon", false, "Run in-process even if the daemon is running")

	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-heap", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = a.setup
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return a.teardown()
	}

	cmd.AddCommand(newScanCmd(a))
	cmd.AddCommand(newRunsCmd(a))
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newFilesCmd(a))
	cmd.AddCommand(newExtensionsCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newStopCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration, then starts logging and profiling.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		if cmd.Annotations[annotationConfig] != configOptional {
			return fserrors.ConfigError(err.Error(), err).
				WithSuggestion("Fix the file, or reset it with 'fsaudit config init --force'")
		}
		a.cfgErr = err
		cfg = config.NewConfig()
	}
	a.cfg = cfg

	if err := a.startLogging(cmd); err != nil {
		return err
	}

	if a.profile.Enabled() {
		session, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.session = session
	}
	return nil
}

func (a *app) startLogging(cmd *cobra.Command) error {
	var lc logging.Config
	switch {
	case cmd.Annotations[annotationLogging] == loggingDaemon:
		lc = logging.DaemonConfig(a.cfg.Logging.Level)
		if a.debug {
			lc.Level = "debug"
		}
	case a.debug:
		lc = logging.DebugConfig()
	default:
		lc = logging.DefaultConfig()
		lc.Level = a.cfg.Logging.Level
	}
	lc.MaxSizeMB = a.cfg.Logging.MaxSizeMB
	lc.MaxFiles = a.cfg.Logging.MaxFiles

	cleanup, err := logging.SetupDefault(lc)
	if err != nil {
		if a.debug {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		// An unwritable log directory must not block ordinary commands.
		logging.SetupStderr("warn")
		return nil
	}
	a.logCleanup = cleanup

	if a.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", lc.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

// teardown stops profiling and flushes logs. Safe to call more than once.
func (a *app) teardown() error {
	var err error
	if a.session != nil {
		if a.debug {
			slog.Debug("profiling_stopped", slog.String("mem", profiling.MemSummary()))
		}
		err = a.session.Stop()
		a.session = nil
	}
	if a.logCleanup != nil {
		a.logCleanup()
		a.logCleanup = nil
	}
	return err
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	_ = a.teardown()
	if err != nil && !errors.Is(err, errSilentExit) {
		_, _ = fmt.Fprint(root.ErrOrStderr(), fserrors.FormatForCLI(err))
	}
	return err
}

// errSilentExit makes the process exit non-zero after the command already
// reported the failure itself.
var errSilentExit = errors.New("exit status 1")
