package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/config"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/store"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

type filesOptions struct {
	page       int
	pageSize   int
	sorts      []string
	extensions []string
	subfolder  string
	jsonOutput bool
}

func newFilesCmd(a *app) *cobra.Command {
	var opts filesOptions

	cmd := &cobra.Command{
		Use:   "files <run-id>",
		Short: "Page through the files of a run",
		Long: `Show one page of the files indexed by a run.

Sort with --sort column[:asc|desc], repeatable up to three times, in
priority order. Columns: file_name, subfolder, extension, created_at,
modified_at, modified_by. Without --sort files are ordered by name.

--ext keeps only the given extensions (lowercase, without the dot).
--subfolder keeps files whose subfolder contains the given text,
case-sensitively.`,
		Example: `  fsaudit files 3
  fsaudit files 3 --sort modified_at:desc --page 2
  fsaudit files 3 --ext pdf,docx --subfolder finance`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("page-size") {
				opts.pageSize = a.cfg.Query.PageSize
			}
			q, err := buildPageQuery(runID, opts)
			if err != nil {
				return err
			}
			return runFiles(cmd.Context(), cmd, a, q, opts.jsonOutput)
		},
	}

	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", store.DefaultPageSize, "Files per page")
	cmd.Flags().StringArrayVar(&opts.sorts, "sort", nil, "Sort as column[:asc|desc] (repeatable)")
	cmd.Flags().StringSliceVar(&opts.extensions, "ext", nil, "Only these extensions (comma-separated)")
	cmd.Flags().StringVar(&opts.subfolder, "subfolder", "", "Only subfolders containing this text")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// buildPageQuery validates the flags and converts them to a store query.
func buildPageQuery(runID int64, opts filesOptions) (store.PageQuery, error) {
	if opts.page < 1 {
		return store.PageQuery{}, fserrors.ValidationError("--page must be at least 1", nil)
	}
	if opts.pageSize < 1 || opts.pageSize > config.MaxPageSize {
		return store.PageQuery{}, fserrors.ValidationError(
			fmt.Sprintf("--page-size must be between 1 and %d", config.MaxPageSize), nil)
	}
	if len(opts.sorts) > store.MaxSortInstructions {
		return store.PageQuery{}, fserrors.ValidationError(
			fmt.Sprintf("at most %d --sort flags are allowed", store.MaxSortInstructions), nil)
	}

	q := store.PageQuery{
		RunID:             runID,
		PageIndex:         opts.page - 1,
		PageSize:          opts.pageSize,
		SubfolderContains: opts.subfolder,
	}
	for _, s := range opts.sorts {
		inst := store.ParseSortInstruction(s)
		if !inst.Column.IsValid() {
			return store.PageQuery{}, fserrors.ValidationError(
				fmt.Sprintf("unknown sort column %q", inst.Column), nil).
				WithSuggestion("Use one of: file_name, subfolder, extension, created_at, modified_at, modified_by")
		}
		q.Sort = append(q.Sort, inst)
	}
	for _, ext := range opts.extensions {
		q.Extensions = append(q.Extensions, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")))
	}
	return q, nil
}

func runFiles(ctx context.Context, cmd *cobra.Command, a *app, q store.PageQuery, jsonOutput bool) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	if _, err := requireRun(ctx, b, q.RunID); err != nil {
		return err
	}

	page, err := b.FilesPage(ctx, q)
	if err != nil {
		return err
	}

	if jsonOutput {
		return ui.WriteJSON(cmd.OutOrStdout(), page)
	}
	ui.NewTableRenderer(ui.NewConfig(cmd.OutOrStdout())).FilesPage(page.Page, page.PageIndex, page.PageSize)
	return nil
}

func newExtensionsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "extensions <run-id>",
		Short: "List the distinct file extensions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			return runExtensions(cmd.Context(), cmd, a, runID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runExtensions(ctx context.Context, cmd *cobra.Command, a *app, runID int64, jsonOutput bool) error {
	b, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	if _, err := requireRun(ctx, b, runID); err != nil {
		return err
	}

	exts, err := b.Extensions(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		if exts == nil {
			exts = []string{}
		}
		return ui.WriteJSON(cmd.OutOrStdout(), exts)
	}
	ui.NewTableRenderer(ui.NewConfig(cmd.OutOrStdout())).Extensions(exts)
	return nil
}
