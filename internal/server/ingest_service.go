package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"seedshare/internal/blobstore"
	"seedshare/internal/models"
	"seedshare/internal/store"
)

const sniffLen = 3072

// IngestOptions configures an IngestService.
type IngestOptions struct {
	MaxFileBytes int64
	Retention    time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// SubmitInput is one validated upload.
type SubmitInput struct {
	SeedCode string
	Kind     models.RecordKind
	FileName string
	File     io.Reader
	// FileSize is the declared size, or -1 when unknown.
	FileSize int64
	Text     string
	Metadata models.Metadata
}

// IngestService persists uploads: blob first, then the record, removing the
// blob again if the record cannot be inserted.
type IngestService struct {
	records store.RecordStore
	blobs   blobstore.BlobStore
	opts    IngestOptions
	// reclaim removes an expired record that still holds the requested seed.
	reclaim func(ctx context.Context, rec models.Record) error
}

// NewIngestService creates an ingest service.
func NewIngestService(records store.RecordStore, blobs blobstore.BlobStore, opts IngestOptions) *IngestService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Retention <= 0 {
		opts.Retention = store.DefaultRetention
	}
	return &IngestService{records: records, blobs: blobs, opts: opts}
}

// Submit validates payload constraints and stores the upload.
func (s *IngestService) Submit(ctx context.Context, in SubmitInput) (*models.Record, error) {
	switch in.Kind {
	case models.KindFile:
		if in.File == nil {
			return nil, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired)
		}
		if in.FileSize == 0 {
			return nil, badRequestCode(fmt.Errorf("file is empty"), ErrCodeEmptyPayload)
		}
		if s.opts.MaxFileBytes > 0 && in.FileSize > s.opts.MaxFileBytes {
			uploadsTotal.WithLabelValues(string(in.Kind), "oversized").Inc()
			return nil, oversizedPayload(s.opts.MaxFileBytes)
		}
	case models.KindText:
		if in.Text == "" {
			return nil, badRequestCode(fmt.Errorf("text_message is required"), ErrCodeMissingRequired)
		}
	default:
		return nil, badRequestCode(fmt.Errorf("invalid upload_type: %s", in.Kind), ErrCodeInvalidUploadType)
	}

	if err := s.ensureSeedAvailable(ctx, in.SeedCode); err != nil {
		uploadsTotal.WithLabelValues(string(in.Kind), "rejected").Inc()
		return nil, err
	}

	now := s.opts.Now().UTC()
	rec := &models.Record{
		SeedCode:  in.SeedCode,
		Kind:      in.Kind,
		Metadata:  in.Metadata,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.Retention),
	}
	if rec.Metadata == nil {
		rec.Metadata = models.Metadata{}
	}

	if in.Kind == models.KindText {
		rec.PayloadLocation = in.Text
		rec.SizeBytes = int64(len(in.Text))
		return rec, s.insert(ctx, rec, "")
	}

	buffered := bufio.NewReaderSize(in.File, sniffLen)
	head, _ := buffered.Peek(sniffLen)
	rec.ContentType = mimetype.Detect(head).String()

	put, err := s.blobs.Put(ctx, in.FileName, buffered, blobstore.PutOptions{MaxBytes: s.opts.MaxFileBytes})
	if err != nil {
		if errors.Is(err, blobstore.ErrTooLarge) {
			uploadsTotal.WithLabelValues(string(in.Kind), "oversized").Inc()
			return nil, oversizedPayload(s.opts.MaxFileBytes)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			uploadsTotal.WithLabelValues(string(in.Kind), "aborted").Inc()
			return nil, badRequestCode(fmt.Errorf("upload aborted: %w", ctxErr), ErrCodeInvalidArgument)
		}
		uploadsTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, blobFailure(fmt.Errorf("write blob: %w", err))
	}
	if put.SizeBytes == 0 {
		s.discardBlob(put.Name)
		return nil, badRequestCode(fmt.Errorf("file is empty"), ErrCodeEmptyPayload)
	}

	rec.PayloadLocation = put.Name
	rec.SizeBytes = put.SizeBytes
	rec.SHA256 = put.SHA256
	if err := s.insert(ctx, rec, put.Name); err != nil {
		return nil, err
	}
	uploadBytesTotal.Add(float64(put.SizeBytes))
	return rec, nil
}

// ensureSeedAvailable is an early, non-authoritative duplicate check that
// avoids writing a blob for a seed that is plainly taken. An expired record
// still holding the seed is reclaimed first.
func (s *IngestService) ensureSeedAvailable(ctx context.Context, seedCode string) error {
	existing, err := s.records.GetRecord(ctx, seedCode)
	if err != nil {
		if errors.Is(err, store.ErrCorruptRecord) {
			return duplicateSeedCode(seedCode)
		}
		return storeFailure(err)
	}
	if existing == nil {
		return nil
	}
	if !existing.Expired(s.opts.Now()) || s.reclaim == nil {
		return duplicateSeedCode(seedCode)
	}
	if err := s.reclaim(ctx, *existing); err != nil {
		return storeFailure(fmt.Errorf("reclaim expired seed %s: %w", seedCode, err))
	}
	s.opts.Logger.Info("reclaimed expired seed", "seed_code", seedCode)
	return nil
}

func (s *IngestService) insert(ctx context.Context, rec *models.Record, blobName string) error {
	err := s.records.CreateRecord(ctx, rec)
	if err == nil {
		uploadsTotal.WithLabelValues(string(rec.Kind), "ok").Inc()
		s.opts.Logger.Debug("record created", "seed_code", rec.SeedCode, "kind", rec.Kind, "size_bytes", rec.SizeBytes)
		return nil
	}

	if blobName != "" {
		s.discardBlob(blobName)
	}
	if errors.Is(err, store.ErrDuplicateSeedCode) {
		uploadsTotal.WithLabelValues(string(rec.Kind), "duplicate").Inc()
		return duplicateSeedCode(rec.SeedCode)
	}
	uploadsTotal.WithLabelValues(string(rec.Kind), "error").Inc()
	return storeFailure(err)
}

func (s *IngestService) discardBlob(name string) {
	if err := s.blobs.Delete(context.Background(), name); err != nil {
		s.opts.Logger.Error("remove orphaned blob", "blob", name, "error", err)
	}
}
