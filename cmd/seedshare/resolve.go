package main

import (
	"github.com/spf13/cobra"

	"seedshare/internal/api"
	"seedshare/internal/config"
)

func newResolveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <seed>",
		Short: "Show what a seed code points to",
		Args:  requireSeedArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if resp.File != "" {
					return writePlain("file: %s\n", resp.File)
				}
				return writePlain("text: %s\n", resp.Text)
			})
		},
	}
}
