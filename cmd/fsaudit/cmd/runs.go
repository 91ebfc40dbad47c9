package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

func newRunsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List indexed runs",
		Long: `List every run, active runs first, then by most recent activity.
There is at most one run per root directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd.Context(), cmd, a, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRuns(ctx context.Context, cmd *cobra.Command, a *app, jsonOutput bool) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	runs, err := b.ListRuns(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		if runs == nil {
			runs = []store.Run{}
		}
		return ui.WriteJSON(cmd.OutOrStdout(), runs)
	}
	ui.NewTableRenderer(ui.NewConfig(cmd.OutOrStdout())).Runs(runs)
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		root       string
	)

	cmd := &cobra.Command{
		Use:   "run <run-id> | run --root <path>",
		Short: "Show one run",
		Long: `Show one run, by id or by the root directory it scanned. The root
need not exist any more.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if root != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if root != "" {
				return runRunByRoot(cmd.Context(), cmd, a, root, jsonOutput)
			}
			runID, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return runRun(cmd.Context(), cmd, a, runID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&root, "root", "", "Look the run up by its root directory")

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, a *app, runID int64, jsonOutput bool) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	run, err := requireRun(ctx, b, runID)
	if err != nil {
		return err
	}
	return renderRun(cmd, run, jsonOutput)
}

func runRunByRoot(ctx context.Context, cmd *cobra.Command, a *app, root string, jsonOutput bool) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	run, err := b.RunByRoot(ctx, root)
	if err != nil {
		return err
	}
	if run == nil {
		return fserrors.New(fserrors.ErrCodeFileNotFound, fmt.Sprintf("%s has not been scanned", root), nil).
			WithSuggestion("Scan it with 'fsaudit scan " + root + "'")
	}
	return renderRun(cmd, run, jsonOutput)
}

func renderRun(cmd *cobra.Command, run *store.Run, jsonOutput bool) error {
	if jsonOutput {
		return ui.WriteJSON(cmd.OutOrStdout(), run)
	}
	ui.NewTableRenderer(ui.NewConfig(cmd.OutOrStdout())).Run(*run)
	return nil
}

// parseRunID parses a positive run id argument.
func parseRunID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fserrors.ValidationError(fmt.Sprintf("invalid run id %q", s), err).
			WithSuggestion("List run ids with 'fsaudit runs'")
	}
	return id, nil
}

// requireRun fetches a run and reports a missing one as not found.
func requireRun(ctx context.Context, b backend, runID int64) (*store.Run, error) {
	run, err := b.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fserrors.New(fserrors.ErrCodeFileNotFound, fmt.Sprintf("run %d not found", runID), nil).
			WithSuggestion("List run ids with 'fsaudit runs'")
	}
	return run, nil
}
