package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/async"
	"github.com/Aman-CERP/fsaudit/internal/daemon"
	"github.com/Aman-CERP/fsaudit/internal/output"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the current scan",
		Long: `Show whether the daemon is running, its process ID and uptime,
the store it serves, and a snapshot of its current or last scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, a, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, a *app, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout(), ui.DetectNoColor())

	dcfg, err := daemonConfig(a.cfg)
	if err != nil {
		return err
	}
	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), daemon.StatusResult{Running: false})
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'fsaudit serve' to start it")
		if async.HasIncompleteLock(a.cfg.DataDir()) {
			out.Warning("A previous scan was interrupted before finishing")
		}
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", fromRPCError(err))
	}

	if jsonOutput {
		return ui.WriteJSON(cmd.OutOrStdout(), status)
	}

	out.Success("Daemon is running")
	out.KeyValue("PID", fmt.Sprintf("%d", status.PID))
	out.KeyValue("Uptime", status.Uptime)
	out.KeyValue("Store", status.StorePath)
	out.KeyValue("Socket", dcfg.SocketPath)

	if status.Job == nil {
		out.KeyValue("Scan", "none since start")
		return nil
	}
	out.KeyValue("Scan", ui.FormatJobLine(*status.Job))
	if !status.Job.Status.IsActive() {
		out.Status("", ui.FormatJobSummary(*status.Job))
	}
	return nil
}
