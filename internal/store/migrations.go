package store

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Migration is one forward-only SQLite schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	Backend          string          `json:"backend"`
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Dirty            bool            `json:"dirty,omitempty"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations must stay in step with migrations/postgres.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: files table keyed by seed_code",
		SQL: `
CREATE TABLE IF NOT EXISTS files (
  seed_code TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('file', 'text')),
  payload_location TEXT NOT NULL,
  metadata TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_expires_at ON files(expires_at);
`,
	},
	{
		Version:     2,
		Description: "record blob size and checksum for file uploads",
		SQL: `
ALTER TABLE files ADD COLUMN size_bytes INTEGER NOT NULL DEFAULT 0;
ALTER TABLE files ADD COLUMN sha256 TEXT NOT NULL DEFAULT '';
`,
	},
	{
		Version:     3,
		Description: "store the content type sniffed at upload",
		SQL: `
ALTER TABLE files ADD COLUMN content_type TEXT NOT NULL DEFAULT '';
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  description TEXT NOT NULL DEFAULT '',
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied version, 0 on a fresh database.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// pendingMigrations returns the migrations above current in version order.
func pendingMigrations(current int) []Migration {
	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	slices.SortFunc(pending, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return pending
}

func latestMigrationVersion() int {
	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Version)
	}
	return latest
}

// applyMigration runs m and stamps it in one transaction.
func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}
	for _, m := range pendingMigrations(current) {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// MigrationPlan reports the SQLite schema state without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}
	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		Backend:          backendSQLite,
		CurrentVersion:   current,
		AvailableVersion: latestMigrationVersion(),
		Pending:          []MigrationInfo{},
	}
	for _, m := range pendingMigrations(current) {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}
