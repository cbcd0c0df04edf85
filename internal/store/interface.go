package store

import (
	"context"
	"time"

	"seedshare/internal/models"
)

// RecordStore abstracts seed record storage backends.
type RecordStore interface {
	// CreateRecord inserts rec. A seed code that already exists yields
	// ErrDuplicateSeedCode and leaves the stored row untouched.
	CreateRecord(ctx context.Context, rec *models.Record) error
	// GetRecord returns nil when no row exists for seedCode.
	GetRecord(ctx context.Context, seedCode string) (*models.Record, error)
	DeleteRecord(ctx context.Context, seedCode string) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Record, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
	Close() error
}

// Stats summarizes stored records.
type Stats struct {
	Backend        string         `json:"backend"`
	SchemaVersion  int            `json:"schema_version"`
	TotalRecords   int            `json:"total_records"`
	ExpiredRecords int            `json:"expired_records"`
	ByKind         map[string]int `json:"by_kind"`
}

var (
	_ RecordStore = (*Store)(nil)
	_ RecordStore = (*PostgresStore)(nil)
)
