package store

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='files'").Scan(&count); err != nil {
		t.Fatalf("check files: %v", err)
	}
	if count != 1 {
		t.Fatal("files table not created")
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
}

func TestMigrationPlan(t *testing.T) {
	db := testRawDB(t)

	plan, err := MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Backend != backendSQLite {
		t.Fatalf("expected backend %q, got %q", backendSQLite, plan.Backend)
	}
	if plan.CurrentVersion != 0 {
		t.Fatalf("expected current 0, got %d", plan.CurrentVersion)
	}
	if plan.AvailableVersion != 3 {
		t.Fatalf("expected available 3, got %d", plan.AvailableVersion)
	}
	if len(plan.Pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(plan.Pending))
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	plan, err = MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan after migrate: %v", err)
	}
	if len(plan.Pending) != 0 {
		t.Fatalf("expected 0 pending, got %d", len(plan.Pending))
	}
}

func TestMigration002UpgradePath(t *testing.T) {
	db := testRawDB(t)

	if err := ensureMigrationsTable(db); err != nil {
		t.Fatalf("migrations table: %v", err)
	}
	if err := applyMigration(db, migrations[0]); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	_, err := db.Exec(`INSERT INTO files (seed_code, kind, payload_location, metadata, created_at, expires_at)
		VALUES ('old-1', 'text', 'hello', '{}', '2026-01-01T00:00:00.000000000Z', '2026-01-02T00:00:00.000000000Z')`)
	if err != nil {
		t.Fatalf("insert v1 row: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	var size int64
	var sum string
	if err := db.QueryRow("SELECT size_bytes, sha256 FROM files WHERE seed_code = 'old-1'").Scan(&size, &sum); err != nil {
		t.Fatalf("query new columns: %v", err)
	}
	if size != 0 || sum != "" {
		t.Fatalf("expected zero defaults for pre-existing row, got %d %q", size, sum)
	}
}

func TestMigrationsRecordDescription(t *testing.T) {
	db := testRawDB(t)
	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	var description string
	if err := db.QueryRow("SELECT description FROM schema_migrations WHERE version = 2").Scan(&description); err != nil {
		t.Fatalf("query description: %v", err)
	}
	if description != migrations[1].Description {
		t.Fatalf("expected %q, got %q", migrations[1].Description, description)
	}
}

func TestPendingMigrationsOrdered(t *testing.T) {
	pending := pendingMigrations(0)
	if len(pending) != len(migrations) {
		t.Fatalf("expected %d pending, got %d", len(migrations), len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i-1].Version >= pending[i].Version {
			t.Fatalf("expected ascending versions, got %d before %d", pending[i-1].Version, pending[i].Version)
		}
	}
	if got := pendingMigrations(latestMigrationVersion()); len(got) != 0 {
		t.Fatalf("expected nothing pending at latest, got %d", len(got))
	}
}
