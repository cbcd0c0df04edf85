package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seedshare/internal/models"
)

//go:embed migrations/postgres/*.sql
var postgresMigrationsFS embed.FS

const postgresMigrationsDir = "migrations/postgres"

// PostgresStore keeps records in Postgres via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates the Postgres database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := MigratePostgres(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// MigratePostgres applies all pending embedded migrations.
func MigratePostgres(dsn string) error {
	m, err := newPostgresMigrator(dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// PostgresMigrationPlan reports migration status without applying anything.
func PostgresMigrationPlan(dsn string) (*MigrationStatus, error) {
	m, err := newPostgresMigrator(dsn)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	status := &MigrationStatus{Backend: backendPostgres, Pending: []MigrationInfo{}}
	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return nil, fmt.Errorf("read migration version: %w", err)
	default:
		status.CurrentVersion = int(current)
		status.Dirty = dirty
	}

	src, err := iofs.New(postgresMigrationsFS, postgresMigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("load migration source: %w", err)
	}
	defer src.Close()

	for v, err := src.First(); err == nil; v, err = src.Next(v) {
		status.AvailableVersion = int(v)
		if int(v) <= status.CurrentVersion {
			continue
		}
		status.Pending = append(status.Pending, MigrationInfo{Version: int(v), Description: migrationIdentifier(src, v)})
	}
	return status, nil
}

func newPostgresMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(postgresMigrationsFS, postgresMigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("load migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func migrationIdentifier(src source.Driver, version uint) string {
	r, identifier, err := src.ReadUp(version)
	if err != nil {
		return ""
	}
	_ = r.Close()
	return strings.ReplaceAll(identifier, "_", " ")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// CreateRecord inserts one record; unique violations map to ErrDuplicateSeedCode.
func (s *PostgresStore) CreateRecord(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("record is required")
	}
	normalizeRecordTimes(rec)

	metaJSON, err := metadataToJSON(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO files (`+recordColumns+`) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)`,
		rec.SeedCode,
		string(rec.Kind),
		rec.PayloadLocation,
		metaJSON,
		rec.SizeBytes,
		rec.SHA256,
		rec.ContentType,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrDuplicateSeedCode
		}
		return err
	}
	return nil
}

// GetRecord returns one record or nil.
func (s *PostgresStore) GetRecord(ctx context.Context, seedCode string) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM files WHERE seed_code = $1`, seedCode)
	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// DeleteRecord removes one record and reports whether a row existed.
func (s *PostgresStore) DeleteRecord(ctx context.Context, seedCode string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM files WHERE seed_code = $1", seedCode)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListExpired lists records with expires_at at or before now, oldest first.
// Metadata is not decoded.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Record, error) {
	query := `SELECT ` + expiredColumns + ` FROM files WHERE expires_at <= $1 ORDER BY expires_at ASC`
	args := []any{now.UTC()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var rec models.Record
		var kind string
		if err := rows.Scan(&rec.SeedCode, &kind, &rec.PayloadLocation, &rec.SizeBytes, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		rec.Kind = models.RecordKind(kind)
		rec.ExpiresAt = rec.ExpiresAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Stats reports record counts and the applied schema version.
func (s *PostgresStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	stats := Stats{Backend: backendPostgres, ByKind: map[string]int{}}

	rows, err := s.pool.Query(ctx, "SELECT kind, COUNT(*) FROM files GROUP BY kind")
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.ByKind[kind] = count
		stats.TotalRecords += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM files WHERE expires_at <= $1", now.UTC()).Scan(&stats.ExpiredRecords); err != nil {
		return stats, err
	}
	var version int64
	err = s.pool.QueryRow(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return stats, err
	}
	stats.SchemaVersion = int(version)
	return stats, nil
}

func scanPostgresRecord(row pgx.Row) (*models.Record, error) {
	var rec models.Record
	var kind string
	var metaJSON []byte

	err := row.Scan(
		&rec.SeedCode,
		&kind,
		&rec.PayloadLocation,
		&metaJSON,
		&rec.SizeBytes,
		&rec.SHA256,
		&rec.ContentType,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.RecordKind(kind)
	if rec.Kind != models.KindFile && rec.Kind != models.KindText {
		return nil, fmt.Errorf("%w: seed %q has kind %q", ErrCorruptRecord, rec.SeedCode, kind)
	}
	var meta models.Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("%w: seed %q metadata: %v", ErrCorruptRecord, rec.SeedCode, err)
	}
	if meta == nil {
		meta = models.Metadata{}
	}
	rec.Metadata = meta
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}
