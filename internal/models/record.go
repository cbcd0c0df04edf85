package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecordKind discriminates what payload_location holds.
type RecordKind string

const (
	KindFile RecordKind = "file"
	KindText RecordKind = "text"
)

var validRecordKinds = map[RecordKind]struct{}{
	KindFile: {},
	KindText: {},
}

// ParseRecordKind normalizes and validates an upload kind.
func ParseRecordKind(value string) (RecordKind, error) {
	normalized := RecordKind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := validRecordKinds[normalized]; !ok {
		return "", fmt.Errorf("invalid upload_type: %s", value)
	}
	return normalized, nil
}

// Metadata is opaque caller supplied key/value data.
type Metadata map[string]any

// ParseMetadata decodes caller supplied structured text. Empty input yields an
// empty mapping.
func ParseMetadata(raw string) (Metadata, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Metadata{}, nil
	}
	var out Metadata
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	if out == nil {
		out = Metadata{}
	}
	return out, nil
}

// Record is one stored seed.
type Record struct {
	SeedCode        string     `json:"seed_code"`
	Kind            RecordKind `json:"kind"`
	PayloadLocation string     `json:"payload_location"`
	Metadata        Metadata   `json:"metadata"`
	SizeBytes       int64      `json:"size_bytes,omitempty"`
	SHA256          string     `json:"sha256,omitempty"`
	ContentType     string     `json:"content_type,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// IsFile reports whether the record points at a blob.
func (r Record) IsFile() bool {
	return r.Kind == KindFile
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(r.ExpiresAt)
}
