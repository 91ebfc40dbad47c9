package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fsaudit/internal/config"
	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
	"github.com/Aman-CERP/fsaudit/internal/output"
	"github.com/Aman-CERP/fsaudit/internal/ui"
)

// optionalConfig lets config subcommands run, and repair, a broken config.
var optionalConfig = map[string]string{annotationConfig: configOptional}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/fsaudit/config.yaml)
  3. --config file
  4. Environment variables (FSAUDIT_*)`,
		Example: `  # Create user config with defaults
  fsaudit config init

  # Show effective configuration
  fsaudit config show

  # Print user config file path
  fsaudit config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Write the default configuration to the user config file at
~/.config/fsaudit/config.yaml (or $XDG_CONFIG_HOME/fsaudit/config.yaml).

With --force an existing file is backed up first and then replaced.`,
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and overwrite an existing configuration")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout(), ui.DetectNoColor())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.KeyValue("Location", configPath)
			out.Status("", "Use --force to back it up and write fresh defaults")
			return nil
		}
		backup, err := config.BackupUserConfig()
		if err != nil {
			return fserrors.ConfigError("failed to back up user configuration", err)
		}
		out.Successf("Backed up existing configuration to %s", backup)
	}

	if err := config.NewConfig().WriteYAML(configPath); err != nil {
		return fserrors.New(fserrors.ErrCodeConfigPermission, "failed to write user configuration", err)
	}
	out.Successf("Created %s", configPath)
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging every source, or only the
built-in defaults with --source defaults.`,
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config
			switch source {
			case "merged":
				cfg = a.cfg
			case "defaults":
				cfg = config.NewConfig()
			default:
				return fserrors.ValidationError(
					fmt.Sprintf("unknown source %q (use: merged, defaults)", source), nil)
			}

			if jsonOutput {
				return ui.WriteJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print user config file path",
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "backups",
		Short:       "List user config backups, newest first",
		Annotations: optionalConfig,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
				return err
			}
			for _, b := range backups {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), b); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore the user config from a backup",
		Long: `Restore the user config from a backup file, by default the newest.
The current config is backed up first.`,
		Annotations: optionalConfig,
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout(), ui.DetectNoColor())

			var backup string
			if len(args) == 1 {
				backup = args[0]
			} else {
				backups, err := config.ListUserConfigBackups()
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					return fserrors.New(fserrors.ErrCodeConfigNotFound, "no config backups to restore", nil)
				}
				backup = backups[0]
			}

			if err := config.RestoreUserConfig(backup); err != nil {
				return fserrors.ConfigError("failed to restore configuration", err)
			}
			out.Successf("Restored %s from %s", config.GetUserConfigPath(), backup)
			return nil
		},
	}
}
