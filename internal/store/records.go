package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"seedshare/internal/models"
)

const recordColumns = "seed_code, kind, payload_location, metadata, size_bytes, sha256, content_type, created_at, expires_at"

// expiredColumns is what removing an expired record needs. Metadata is left
// out so an undecodable row can still be swept.
const expiredColumns = "seed_code, kind, payload_location, size_bytes, expires_at"

// dbTimeLayout is fixed width so stored timestamps compare correctly as text.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

// CreateRecord inserts one record. The primary key on seed_code is the only
// uniqueness check.
func (s *Store) CreateRecord(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	normalizeRecordTimes(rec)

	metaJSON, err := metadataToJSON(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SeedCode,
		string(rec.Kind),
		rec.PayloadLocation,
		metaJSON,
		rec.SizeBytes,
		rec.SHA256,
		rec.ContentType,
		formatTime(rec.CreatedAt),
		formatTime(rec.ExpiresAt),
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrDuplicateSeedCode
		}
		return err
	}
	return nil
}

// GetRecord returns one record by seed code.
func (s *Store) GetRecord(ctx context.Context, seedCode string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM files WHERE seed_code = ?`, seedCode)
	return scanRecord(row)
}

// DeleteRecord removes one record and reports whether a row existed.
func (s *Store) DeleteRecord(ctx context.Context, seedCode string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE seed_code = ?", seedCode)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListExpired lists records whose expires_at is at or before now, oldest
// first. A non-positive limit lists all of them. Only the fields needed to
// remove a record are filled in; Metadata is nil.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Record, error) {
	query := `SELECT ` + expiredColumns + ` FROM files WHERE expires_at <= ? ORDER BY expires_at ASC`
	args := []any{formatTime(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var rec models.Record
		var kind, expiresAt string
		if err := rows.Scan(&rec.SeedCode, &kind, &rec.PayloadLocation, &rec.SizeBytes, &expiresAt); err != nil {
			return nil, err
		}
		rec.Kind = models.RecordKind(kind)
		// The row already matched expires_at <= now as text.
		rec.ExpiresAt, _ = parseTime(expiresAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Stats reports record counts and the applied schema version.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	stats := Stats{Backend: backendSQLite, ByKind: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM files GROUP BY kind")
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return stats, err
		}
		stats.ByKind[kind] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE expires_at <= ?", formatTime(now)).Scan(&stats.ExpiredRecords); err != nil {
		return stats, err
	}
	version, err := currentVersion(s.db)
	if err != nil {
		return stats, err
	}
	stats.SchemaVersion = version
	return stats, nil
}

func scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.Record, error) {
	var rec models.Record
	var kind, metaJSON, createdAt, expiresAt string

	err := scanner.Scan(
		&rec.SeedCode,
		&kind,
		&rec.PayloadLocation,
		&metaJSON,
		&rec.SizeBytes,
		&rec.SHA256,
		&rec.ContentType,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rec.Kind = models.RecordKind(kind)
	if rec.Kind != models.KindFile && rec.Kind != models.KindText {
		return nil, fmt.Errorf("%w: seed %q has kind %q", ErrCorruptRecord, rec.SeedCode, kind)
	}
	rec.Metadata, err = metadataFromJSON(metaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: seed %q metadata: %v", ErrCorruptRecord, rec.SeedCode, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("%w: seed %q created_at: %v", ErrCorruptRecord, rec.SeedCode, err)
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("%w: seed %q expires_at: %v", ErrCorruptRecord, rec.SeedCode, err)
	}
	return &rec, nil
}

func normalizeRecordTimes(rec *models.Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(DefaultRetention)
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	if rec.Metadata == nil {
		rec.Metadata = models.Metadata{}
	}
}

// DefaultRetention is applied when a record is created without expires_at.
const DefaultRetention = 24 * time.Hour

func metadataToJSON(meta models.Metadata) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

func metadataFromJSON(raw string) (models.Metadata, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Metadata{}, nil
	}
	var meta models.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = models.Metadata{}
	}
	return meta, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(dbTimeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
