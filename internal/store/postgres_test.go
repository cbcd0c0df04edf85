package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"seedshare/internal/models"
)

// testPostgresDSN starts a throwaway Postgres container. Set TEST_INTEGRATION
// to run these tests.
func testPostgresDSN(t *testing.T) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("seedshare_test"),
		postgres.WithUsername("seedshare"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

func TestPostgresStoreRecords(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	rs, err := OpenDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	if _, ok := rs.(*PostgresStore); !ok {
		t.Fatalf("expected *PostgresStore, got %T", rs)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &models.Record{
		SeedCode:        "abc123",
		Kind:            models.KindFile,
		PayloadLocation: "1700000000000deadbeef-a.png",
		Metadata:        models.Metadata{"content_type": "image/png"},
		SizeBytes:       3,
		CreatedAt:       now,
		ExpiresAt:       now.Add(-time.Second),
	}
	if err := rs.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rs.CreateRecord(ctx, &models.Record{SeedCode: "abc123", Kind: models.KindText, PayloadLocation: "x"}); !errors.Is(err, ErrDuplicateSeedCode) {
		t.Fatalf("expected ErrDuplicateSeedCode, got %v", err)
	}

	got, err := rs.GetRecord(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.PayloadLocation != rec.PayloadLocation || got.Metadata["content_type"] != "image/png" {
		t.Fatalf("unexpected record: %+v", got)
	}

	missing, err := rs.GetRecord(ctx, "zzz999")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %+v", missing)
	}

	expired, err := rs.ListExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired, got %d", len(expired))
	}

	stats, err := rs.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SchemaVersion != 3 {
		t.Fatalf("expected schema version 3, got %d", stats.SchemaVersion)
	}
	if stats.ByKind["file"] != 1 {
		t.Fatalf("expected 1 file record, got %d", stats.ByKind["file"])
	}

	deleted, err := rs.DeleteRecord(ctx, "abc123")
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v %v", deleted, err)
	}

	plan, err := PostgresMigrationPlan(dsn)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.CurrentVersion != 3 || len(plan.Pending) != 0 {
		t.Fatalf("expected fully migrated plan, got %+v", plan)
	}
}
