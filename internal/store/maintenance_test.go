package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"seedshare/internal/models"
)

func TestStats(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.SchemaVersion == 0 {
		t.Fatal("expected non-zero schema version")
	}
	if stats.TotalRecords != 0 {
		t.Fatalf("expected 0 total records, got %d", stats.TotalRecords)
	}

	for _, rec := range []*models.Record{
		{SeedCode: "f1", Kind: models.KindFile, PayloadLocation: "a", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
		{SeedCode: "f2", Kind: models.KindFile, PayloadLocation: "b", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)},
		{SeedCode: "t1", Kind: models.KindText, PayloadLocation: "c", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := st.CreateRecord(ctx, rec); err != nil {
			t.Fatalf("create %s: %v", rec.SeedCode, err)
		}
	}

	stats, err = st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Backend != backendSQLite {
		t.Fatalf("expected backend sqlite, got %q", stats.Backend)
	}
	if stats.TotalRecords != 3 {
		t.Fatalf("expected 3 total records, got %d", stats.TotalRecords)
	}
	if stats.ByKind["file"] != 2 {
		t.Fatalf("expected 2 file records, got %d", stats.ByKind["file"])
	}
	if stats.ByKind["text"] != 1 {
		t.Fatalf("expected 1 text record, got %d", stats.ByKind["text"])
	}
	if stats.ExpiredRecords != 1 {
		t.Fatalf("expected 1 expired record, got %d", stats.ExpiredRecords)
	}
}

func TestListExpired(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for _, rec := range []*models.Record{
		{SeedCode: "old2", Kind: models.KindText, PayloadLocation: "x", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-2 * time.Hour)},
		{SeedCode: "old1", Kind: models.KindText, PayloadLocation: "x", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-3 * time.Hour)},
		{SeedCode: "edge", Kind: models.KindText, PayloadLocation: "x", CreatedAt: now.Add(-24 * time.Hour), ExpiresAt: now},
		{SeedCode: "live", Kind: models.KindText, PayloadLocation: "x", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := st.CreateRecord(ctx, rec); err != nil {
			t.Fatalf("create %s: %v", rec.SeedCode, err)
		}
	}

	expired, err := st.ListExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 3 {
		t.Fatalf("expected 3 expired, got %d", len(expired))
	}
	want := []string{"old1", "old2", "edge"}
	for i, rec := range expired {
		if rec.SeedCode != want[i] {
			t.Fatalf("expected %s at %d, got %s", want[i], i, rec.SeedCode)
		}
	}

	limited, err := st.ListExpired(ctx, now, 1)
	if err != nil {
		t.Fatalf("list expired limited: %v", err)
	}
	if len(limited) != 1 || limited[0].SeedCode != "old1" {
		t.Fatalf("expected only old1, got %+v", limited)
	}
}

func TestListExpiredSkipsMetadataDecoding(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	good := &models.Record{SeedCode: "good", Kind: models.KindText, PayloadLocation: "hi", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	if err := st.CreateRecord(ctx, good); err != nil {
		t.Fatalf("create good: %v", err)
	}
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO files (`+recordColumns+`) VALUES ('bad', 'file', 'blob-x', '{not json', 12, '', '', ?, ?)`,
		formatTime(now.Add(-48*time.Hour)), formatTime(now.Add(-25*time.Hour)))
	if err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	if _, err := st.GetRecord(ctx, "bad"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected corrupt record on get, got %v", err)
	}

	expired, err := st.ListExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired, got %d", len(expired))
	}
	bad := expired[0]
	if bad.SeedCode != "bad" || bad.Kind != models.KindFile || bad.PayloadLocation != "blob-x" || bad.SizeBytes != 12 {
		t.Fatalf("expected removal fields for corrupt row, got %+v", bad)
	}
	if expired[1].SeedCode != "good" {
		t.Fatalf("expected good second, got %s", expired[1].SeedCode)
	}
}
