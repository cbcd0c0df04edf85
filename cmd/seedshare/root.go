package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seedshare/internal/config"
	"seedshare/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logs       logSettings
	)

	cmd := &cobra.Command{
		Use:           "seedshare",
		Short:         "Seedshare shares files and text behind short seed codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logs, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if jsonOutput && yamlOutput {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			if yamlOutput {
				outputFormatter = format.YAMLFormatter{}
				jsonOutput = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logs.level, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logs.format, "log-format", "text", "log format (text, json)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, &jsonOutput),
		newResolveCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg, &jsonOutput),
		newViewCmd(cfg, &jsonOutput),
		newAdminCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
	)

	return cmd
}
