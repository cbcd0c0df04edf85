package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"seedshare/internal/api"
	"seedshare/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (send SEEDSHARE_ADMIN_TOKEN when the server sets one)",
	}
	cmd.AddCommand(
		newAdminCleanupCmd(cfg, jsonOutput),
		newAdminInfoCmd(cfg, jsonOutput),
	)
	return cmd
}

func newAdminCleanupCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun bool
		force  bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired seeds and their files",
		Long:  "Without --force the sweep only reports what it would remove.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			req := api.CleanupRequest{DryRun: dryRun || !force, Limit: limit}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminCleanup(cmd.Context(), req, force)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return printCleanup(os.Stdout, resp)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be removed without deleting")
	cmd.Flags().BoolVar(&force, "force", false, "actually delete expired seeds")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum seeds to remove in one pass (0 uses the server default)")
	return cmd
}

func newAdminInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show store, upload and rate limit details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AdminInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return printInfo(os.Stdout, resp)
			})
		},
	}
}

func printCleanup(w io.Writer, resp api.CleanupResponse) error {
	var b strings.Builder
	if resp.DryRun {
		fmt.Fprintf(&b, "dry run: %d expired seeds would be removed (%s)\n", resp.Count, formatBytes(resp.ReclaimedBytes))
	} else {
		fmt.Fprintf(&b, "removed %d expired seeds, %d files (%s)\n", resp.Count, resp.BlobsDeleted, formatBytes(resp.ReclaimedBytes))
		if resp.FailedCount > 0 {
			fmt.Fprintf(&b, "failed to remove %d seeds; see server logs\n", resp.FailedCount)
		}
	}
	for _, seed := range resp.SeedCodes {
		fmt.Fprintf(&b, "  %s\n", seed)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func printInfo(w io.Writer, resp api.InfoResponse) error {
	var b strings.Builder
	fmt.Fprintf(&b, "backend: %s (schema v%d)\n", resp.Backend, resp.SchemaVersion)
	fmt.Fprintf(&b, "records: %d total, %d expired\n", resp.TotalRecords, resp.ExpiredRecords)
	for _, kind := range slices.Sorted(maps.Keys(resp.ByKind)) {
		fmt.Fprintf(&b, "  %s: %d\n", kind, resp.ByKind[kind])
	}
	fmt.Fprintf(&b, "upload_dir: %s\n", resp.UploadDir)
	fmt.Fprintf(&b, "max_file_size: %s\n", formatBytes(resp.MaxFileBytes))
	fmt.Fprintf(&b, "retention: %s\n", resp.Retention)
	fmt.Fprintf(&b, "rate_limit: %d per %s (%d clients tracked)\n", resp.RateLimitMax, resp.RateLimitWin, resp.TrackedClients)
	_, err := io.WriteString(w, b.String())
	return err
}
