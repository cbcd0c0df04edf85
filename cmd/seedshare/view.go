package main

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/cobra"

	"seedshare/internal/api"
	"seedshare/internal/config"
)

func newViewCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "view <seed>",
		Short: "Preview the content behind a seed code",
		Long: `Preview the content behind a seed code.

Text and small text-like files are printed. Images, PDFs, audio and video are
written raw to --output (or stdout); anything else prints a download link.`,
		Args: requireSeedArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				var buf bytes.Buffer
				result, err := client.View(cmd.Context(), args[0], &buf)
				if err != nil {
					return err
				}

				if result.Preview == nil {
					return writeBinaryPreview(cmd.OutOrStdout(), output, &buf)
				}
				preview := result.Preview
				if *jsonOutput {
					return writeJSON(preview)
				}
				if preview.FileContent != nil {
					return writePlain("%s", *preview.FileContent)
				}
				if err := writePlain("file_name: %s\n", preview.FileName); err != nil {
					return err
				}
				if err := writePlain("file_type: %s\n", preview.FileType); err != nil {
					return err
				}
				return writePlain("download_url: %s\n", preview.DownloadURL)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write binary previews to this path instead of stdout")
	return cmd
}

func writeBinaryPreview(stdout io.Writer, output string, content io.Reader) error {
	if output == "" || output == "-" {
		_, err := io.Copy(stdout, content)
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
