package cmd

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/logging"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
	source  string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View fsaudit logs",
		Long: `View and tail the JSON logs written by fsaudit.

Log sources:
  cli     CLI runs (~/.fsaudit/logs/fsaudit.log)
  daemon  'fsaudit serve' (~/.fsaudit/logs/daemon.log)
  all     Both, merged by timestamp`,
		Example: `  fsaudit logs                    # Last 50 entries from all sources
  fsaudit logs --source daemon -f # Follow the daemon log
  fsaudit logs --level warn       # Warnings and errors only
  fsaudit logs --filter scan_     # Entries matching a pattern`,
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to a log file (overrides --source)")
	cmd.Flags().StringVar(&opts.source, "source", "all", "Log source: cli, daemon or all")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fserrors.ValidationError(fmt.Sprintf("unknown level %q", opts.level), nil)
	}

	source := logging.ParseLogSource(opts.source)
	paths, err := logging.FindLogFiles(source, opts.logFile)
	if err != nil {
		return fserrors.New(fserrors.ErrCodeFileNotFound, err.Error(), err)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fserrors.ValidationError("invalid filter pattern", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
		ShowSource: len(paths) > 1,
	}, cmd.OutOrStdout())

	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "Log files: %s\n", strings.Join(paths, ", "))

	if !opts.follow {
		entries, err := viewer.Tail(paths, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	_, _ = fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, paths, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}
