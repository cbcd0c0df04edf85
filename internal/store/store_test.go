package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seedshare/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := &models.Record{
		SeedCode:        "abc123",
		Kind:            models.KindFile,
		PayloadLocation: "1700000000000deadbeef-report.pdf",
		Metadata:        models.Metadata{"owner": "ana"},
		SizeBytes:       42,
		SHA256:          "abcd",
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
	}
	if err := st.CreateRecord(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetRecord(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Kind != models.KindFile {
		t.Fatalf("expected kind file, got %q", got.Kind)
	}
	if got.PayloadLocation != rec.PayloadLocation {
		t.Fatalf("expected location %q, got %q", rec.PayloadLocation, got.PayloadLocation)
	}
	if got.Metadata["owner"] != "ana" {
		t.Fatalf("expected owner metadata, got %v", got.Metadata)
	}
	if got.SizeBytes != 42 || got.SHA256 != "abcd" {
		t.Fatalf("expected size/checksum to round trip, got %d %q", got.SizeBytes, got.SHA256)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expires_at %v, got %v", now.Add(time.Hour), got.ExpiresAt)
	}
}

func TestTextRecordRoundTripsBytes(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	text := "line one\nline \"two\"\té漢\U0001F600 '; DROP TABLE files; --"

	if err := st.CreateRecord(ctx, &models.Record{SeedCode: "txt", Kind: models.KindText, PayloadLocation: text}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetRecord(ctx, "txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PayloadLocation != text {
		t.Fatalf("expected %q, got %q", text, got.PayloadLocation)
	}
	if len(got.Metadata) != 0 {
		t.Fatalf("expected empty metadata, got %v", got.Metadata)
	}
}

func TestCreateRecordDefaultsExpiry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := st.CreateRecord(ctx, &models.Record{SeedCode: "d", Kind: models.KindText, PayloadLocation: "x", CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetRecord(ctx, "d")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(DefaultRetention)) {
		t.Fatalf("expected expires_at %v, got %v", now.Add(DefaultRetention), got.ExpiresAt)
	}
}

func TestGetRecordMissing(t *testing.T) {
	st := testStore(t)

	got, err := st.GetRecord(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestCreateRecordDuplicateKeepsFirst(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.CreateRecord(ctx, &models.Record{SeedCode: "dup", Kind: models.KindText, PayloadLocation: "first"}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	err := st.CreateRecord(ctx, &models.Record{SeedCode: "dup", Kind: models.KindFile, PayloadLocation: "second"})
	if !errors.Is(err, ErrDuplicateSeedCode) {
		t.Fatalf("expected ErrDuplicateSeedCode, got %v", err)
	}

	got, err := st.GetRecord(ctx, "dup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != models.KindText || got.PayloadLocation != "first" {
		t.Fatalf("expected first record retained, got %+v", got)
	}
}

func TestCreateRecordConcurrentSameSeed(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	var wins, dups atomic.Int32
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := st.CreateRecord(ctx, &models.Record{SeedCode: "race", Kind: models.KindText, PayloadLocation: fmt.Sprintf("w%d", i)})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrDuplicateSeedCode):
				dups.Add(1)
			default:
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if dups.Load() != writers-1 {
		t.Fatalf("expected %d duplicates, got %d", writers-1, dups.Load())
	}
}

func TestGetRecordCorruptMetadata(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	_, err := st.db.Exec(`INSERT INTO files (seed_code, kind, payload_location, metadata, created_at, expires_at)
		VALUES ('bad', 'text', 'x', 'not-json', ?, ?)`, formatTime(time.Now()), formatTime(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = st.GetRecord(ctx, "bad")
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.CreateRecord(ctx, &models.Record{SeedCode: "gone", Kind: models.KindText, PayloadLocation: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := st.DeleteRecord(ctx, "gone")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to report a removed row")
	}

	deleted, err = st.DeleteRecord(ctx, "gone")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("expected second delete to report nothing removed")
	}
}

func TestOpenDSNSelectsBackend(t *testing.T) {
	rs, err := OpenDSN(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "dsn.db"))
	if err != nil {
		t.Fatalf("open dsn: %v", err)
	}
	defer rs.Close()
	if _, ok := rs.(*Store); !ok {
		t.Fatalf("expected *Store, got %T", rs)
	}
}
