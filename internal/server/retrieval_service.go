package server

import (
	"context"
	"errors"
	"time"

	"seedshare/internal/blobstore"
	"seedshare/internal/models"
	"seedshare/internal/store"
)

const (
	defaultRecordCacheSize = 1024
	defaultRecordCacheTTL  = 5 * time.Minute
)

// RetrievalOptions configures a RetrievalService.
type RetrievalOptions struct {
	// CacheSize bounds the record cache. Negative disables caching.
	CacheSize int
	CacheTTL  time.Duration
	Now       func() time.Time
}

// RetrievalService resolves seed codes to records and opens their blobs.
type RetrievalService struct {
	records store.RecordStore
	blobs   blobstore.BlobStore
	cache   *recordCache
	now     func() time.Time
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(records store.RecordStore, blobs blobstore.BlobStore, opts RetrievalOptions) *RetrievalService {
	if opts.CacheSize == 0 {
		opts.CacheSize = defaultRecordCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultRecordCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RetrievalService{
		records: records,
		blobs:   blobs,
		cache:   newRecordCache(opts.CacheSize, opts.CacheTTL),
		now:     opts.Now,
	}
}

// Lookup returns the live record for seedCode. Missing and expired records
// both yield a not-found error.
func (s *RetrievalService) Lookup(ctx context.Context, seedCode string) (models.Record, error) {
	if rec, ok := s.cache.Get(seedCode); ok {
		if !rec.Expired(s.now()) {
			return rec, nil
		}
		s.cache.Remove(seedCode)
		return models.Record{}, seedNotFound(seedCode)
	}

	rec, err := s.records.GetRecord(ctx, seedCode)
	if err != nil {
		if errors.Is(err, store.ErrCorruptRecord) {
			return models.Record{}, corruptRecord(err)
		}
		return models.Record{}, storeFailure(err)
	}
	if rec == nil || rec.Expired(s.now()) {
		return models.Record{}, seedNotFound(seedCode)
	}
	s.cache.Add(*rec)
	return *rec, nil
}

// Resolution is what a seed code points at: a stored blob name or inline
// text.
type Resolution struct {
	Kind models.RecordKind
	File string
	Text string
}

// Resolve reports what seedCode points at without touching the blob.
func (s *RetrievalService) Resolve(ctx context.Context, seedCode string) (Resolution, error) {
	rec, err := s.Lookup(ctx, seedCode)
	if err != nil {
		return Resolution{}, err
	}
	if rec.IsFile() {
		return Resolution{Kind: rec.Kind, File: rec.PayloadLocation}, nil
	}
	return Resolution{Kind: rec.Kind, Text: rec.PayloadLocation}, nil
}

// OpenBlob opens the payload of a file record. The caller closes the object.
func (s *RetrievalService) OpenBlob(ctx context.Context, rec models.Record) (*blobstore.Object, error) {
	if !rec.IsFile() {
		return nil, notAFile(rec.SeedCode)
	}
	obj, err := s.blobs.Open(ctx, rec.PayloadLocation)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, blobMissing(rec.SeedCode)
		}
		return nil, blobFailure(err)
	}
	return obj, nil
}

// Invalidate drops cached records.
func (s *RetrievalService) Invalidate(seedCodes ...string) {
	for _, seedCode := range seedCodes {
		s.cache.Remove(seedCode)
	}
}
