package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

var (
	// ErrDuplicateSeedCode is returned when the seed code is already taken.
	ErrDuplicateSeedCode = errors.New("seed code already exists")
	// ErrCorruptRecord is returned when a stored row cannot be decoded.
	ErrCorruptRecord = errors.New("stored record is corrupt")
)

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: files.seed_code")
}
