package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"seedshare/internal/api"
	"seedshare/internal/config"
)

type downloadResult struct {
	SeedCode string `json:"seed_code"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
}

func newDownloadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <seed>",
		Short: "Download the file behind a seed code",
		Args:  requireSeedArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := args[0]
			return withClient(cfg, func(client *api.Client) error {
				if output == "-" {
					_, _, err := client.Download(cmd.Context(), seed, cmd.OutOrStdout())
					return err
				}

				dir := "."
				if output != "" {
					dir = filepath.Dir(output)
				}
				tmp, err := os.CreateTemp(dir, ".seedshare-download-*")
				if err != nil {
					return err
				}
				tmpPath := tmp.Name()
				defer os.Remove(tmpPath)

				name, n, err := client.Download(cmd.Context(), seed, tmp)
				if closeErr := tmp.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}

				target := downloadTarget(output, name, seed)
				if err := os.Rename(tmpPath, target); err != nil {
					return err
				}

				result := downloadResult{SeedCode: seed, Path: target, Bytes: n}
				if *jsonOutput {
					return writeJSON(result)
				}
				return writePlain("saved %s (%s)\n", result.Path, formatBytes(result.Bytes))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this path ('-' for stdout); defaults to the original filename")
	return cmd
}

// downloadTarget never lets a server supplied name escape the working
// directory.
func downloadTarget(output, serverName, seed string) string {
	if output != "" {
		return output
	}
	name := filepath.Base(filepath.Clean("/" + serverName))
	if name == "/" || name == "." || name == "" {
		name = seed
	}
	return name
}
