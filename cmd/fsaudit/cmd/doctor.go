package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsaudit/internal/preflight"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

// doctorReport is the --json output of doctor.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that fsaudit can run on this machine",
		Long: `Check the configuration, the data directory, free disk space, the
open-file limit and the metadata store, and report a scan that was
interrupted before finishing.

Exits non-zero when a required check fails.`,
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := preflight.New(a.cfg.DataDir(),
				preflight.WithStore(a.cfg.Store.Path, a.cfg.Store.Driver),
				preflight.WithConfigError(a.cfgErr),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout(), ui.DetectNoColor()),
			)
			results := checker.RunAll(cmd.Context())

			if jsonOutput {
				if err := ui.WriteJSON(cmd.OutOrStdout(), doctorReport{
					Status: checker.SummaryStatus(results),
					Checks: results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errSilentExit
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for passing checks")

	return cmd
}
