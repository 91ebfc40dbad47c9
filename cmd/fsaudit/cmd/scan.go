package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/async"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/output"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

// defaultPollInterval is how often scan polls the job while waiting.
const defaultPollInterval = 250 * time.Millisecond

type scanOptions struct {
	detach     bool
	jsonOutput bool
	batchSize  int
	interval   time.Duration
}

func newScanCmd(a *app) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Index a directory tree",
		Long: `Index every regular file under path (default: current directory).

A previous run of the same root is replaced. Only one scan runs at a time;
starting a second one while a scan is active fails.

Without a daemon the scan runs in this process and the command waits for
it. With 'fsaudit serve' running, the daemon owns the scan and --detach
returns as soon as it has started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if cmd.Flags().Changed("batch-size") {
				a.cfg.Crawler.BatchSize = opts.batchSize
			}
			return runScan(cmd.Context(), cmd, a, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.detach, "detach", false, "Return once the scan has started (daemon only)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the final job as JSON")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Records per store transaction (in-process scans)")
	cmd.Flags().DurationVar(&opts.interval, "interval", defaultPollInterval, "Progress polling interval")

	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, a *app, root string, opts scanOptions) error {
	if opts.batchSize < 0 {
		return fserrors.ValidationError("--batch-size must not be negative", nil)
	}
	if opts.interval <= 0 {
		opts.interval = defaultPollInterval
	}

	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	out := output.New(cmd.ErrOrStderr(), ui.DetectNoColor())

	if opts.detach && !b.Remote() {
		return fserrors.ValidationError("--detach requires a running daemon", nil).
			WithSuggestion("Start the daemon with 'fsaudit serve'")
	}
	if !b.Remote() && async.HasIncompleteLock(a.cfg.DataDir()) {
		out.Warning("A previous scan was interrupted before finishing; its run will be reset when that root is scanned again")
	}

	// The daemon resolves relative paths against its own working directory.
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	job, err := b.StartScan(ctx, root)
	if err != nil {
		return err
	}
	slog.Info("scan_requested",
		slog.String("job_id", job.ID),
		slog.Int64("run_id", job.RunID),
		slog.String("root", job.RootPath),
		slog.Bool("daemon", b.Remote()))

	if opts.detach {
		if opts.jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), job)
		}
		out.Successf("Scan started: run %d, job %s", job.RunID, job.ID)
		out.KeyValue("Root", job.RootPath)
		out.Status("", "Follow it with 'fsaudit status'")
		return nil
	}

	var renderer ui.JobRenderer
	if !opts.jsonOutput {
		renderer = ui.NewJobRenderer(ui.NewConfig(cmd.OutOrStdout()))
		renderer.Update(*job)
	}

	final, err := waitForJob(ctx, b, job.ID, opts.interval, renderer)
	if err != nil {
		if ctx.Err() != nil {
			if b.Remote() {
				out.Warning("Stopped watching; the scan continues in the daemon. Check it with 'fsaudit status'")
			} else {
				out.Warningf("Scan interrupted; run %d is left incomplete and will be reset by the next scan of %s", job.RunID, job.RootPath)
			}
			return errSilentExit
		}
		return err
	}

	if opts.jsonOutput {
		if err := ui.WriteJSON(cmd.OutOrStdout(), final); err != nil {
			return err
		}
	} else {
		renderer.Finish(*final)
	}

	if final.Status == async.JobFailed {
		return errSilentExit
	}
	return nil
}

// waitForJob polls until the job reaches a terminal state. renderer may be nil.
func waitForJob(ctx context.Context, b backend, jobID string, interval time.Duration, renderer ui.JobRenderer) (*async.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		job, err := b.JobStatus(ctx)
		if err != nil {
			return nil, err
		}
		if job == nil || job.ID != jobID {
			return nil, fserrors.New(fserrors.ErrCodeDaemonProtocol,
				fmt.Sprintf("job %s is no longer tracked", jobID), nil).
				WithSuggestion("Check 'fsaudit runs' for the run's final state")
		}
		if !job.Status.IsActive() {
			return job, nil
		}
		if renderer != nil {
			renderer.Update(*job)
		}
	}
}
