package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"seedshare/internal/config"
	"seedshare/internal/store"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database schema migrations for db_dsn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(cfg.DBDSN) == "" {
				return fmt.Errorf("db_dsn is required")
			}
			ctx := cmd.Context()

			if !inspect {
				// Opening a store migrates it, the same path `seedshare srv` takes.
				st, err := store.OpenDSN(ctx, cfg.DBDSN)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				if err := st.Close(); err != nil {
					return err
				}
			}

			plan, err := migrationPlan(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("inspect migrations: %w", err)
			}
			if *jsonOutput {
				return writeJSON(plan)
			}
			return printMigrationPlan(os.Stdout, plan, !inspect)
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying")
	cmd.Flags().BoolVar(&inspect, "dry-run", false, "alias for --inspect")
	return cmd
}

func migrationPlan(ctx context.Context, dsn string) (*store.MigrationStatus, error) {
	if store.IsPostgresDSN(dsn) {
		return store.PostgresMigrationPlan(dsn)
	}
	db, err := store.OpenRawDB(store.SQLitePath(dsn))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return store.MigrationPlan(db)
}

func printMigrationPlan(w io.Writer, plan *store.MigrationStatus, applied bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s schema: version %d of %d\n", plan.Backend, plan.CurrentVersion, plan.AvailableVersion)
	if plan.Dirty {
		b.WriteString("schema is marked dirty; a previous migration failed part way\n")
	}
	switch {
	case len(plan.Pending) > 0:
		fmt.Fprintf(&b, "pending migrations: %d\n", len(plan.Pending))
		for _, m := range plan.Pending {
			fmt.Fprintf(&b, "  %d: %s\n", m.Version, m.Description)
		}
	case applied:
		b.WriteString("migrations applied; schema is up to date\n")
	default:
		b.WriteString("no pending migrations\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
