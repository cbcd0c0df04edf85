package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a named blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrTooLarge is returned when a payload exceeds PutOptions.MaxBytes.
	ErrTooLarge = errors.New("blob exceeds size limit")
)

// BlobPutResult describes one persisted blob payload.
type BlobPutResult struct {
	Name      string
	SHA256    string
	SizeBytes int64
}

// PutOptions bounds a single Put.
type PutOptions struct {
	// MaxBytes rejects payloads larger than this many bytes. Zero means no limit.
	MaxBytes int64
}

// Object is an open blob.
type Object struct {
	io.ReadCloser
	Name      string
	SizeBytes int64
	ModTime   time.Time
}

// BlobStore is the byte-storage abstraction used by the ingest and retrieval services.
type BlobStore interface {
	Put(ctx context.Context, originalName string, r io.Reader, opts PutOptions) (BlobPutResult, error)
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}
