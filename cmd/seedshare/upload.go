package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"seedshare/internal/api"
	"seedshare/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		seed         string
		filePath     string
		text         string
		meta         []string
		metadataFile string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a file or text under a seed code",
		Example: `  seedshare upload --seed abc123 --file a.png
  echo hello | seedshare upload --seed note1 --text -
  seedshare upload --seed r1 --file report.pdf --meta owner=ops --metadata-file meta.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (filePath == "") == (text == "") {
				return fmt.Errorf("exactly one of --file or --text is required")
			}

			metadata, err := buildMetadata(metadataFile, meta)
			if err != nil {
				return err
			}

			req := api.UploadRequest{SeedCode: seed, Metadata: metadata}
			if filePath != "" {
				f, err := os.Open(filePath)
				if err != nil {
					return err
				}
				defer f.Close()
				req.UploadType = "file"
				req.FileName = filepath.Base(filePath)
				req.File = f
			} else {
				req.UploadType = "text"
				req.Text = text
				if text == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
					req.Text = string(data)
				}
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("seed_code: %s\n", resp.SeedCode); err != nil {
					return err
				}
				if err := writePlain("download_link: %s\n", resp.DownloadLink); err != nil {
					return err
				}
				return writePlain("expires_at: %s\n", formatExpiry(resp.ExpiresAt, time.Now()))
			})
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "seed code to share under (required)")
	cmd.Flags().StringVar(&filePath, "file", "", "path of the file to upload")
	cmd.Flags().StringVar(&text, "text", "", "text to upload ('-' reads stdin)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "metadata key=value (repeatable)")
	cmd.Flags().StringVar(&metadataFile, "metadata-file", "", "YAML or JSON file with a metadata mapping")
	_ = cmd.MarkFlagRequired("seed")

	return cmd
}

// buildMetadata merges a metadata file with --meta pairs; pairs win.
func buildMetadata(path string, pairs []string) (map[string]any, error) {
	metadata := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &metadata); err != nil {
			return nil, fmt.Errorf("parse metadata file %s: %w", path, err)
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q (expected key=value)", pair)
		}
		metadata[key] = value
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}
