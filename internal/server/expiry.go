package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"seedshare/internal/blobstore"
	"seedshare/internal/models"
	"seedshare/internal/store"
)

const (
	defaultSweepInterval = 24 * time.Hour
	defaultSweepBatch    = 500
)

// ExpiryOptions configures an ExpiryService.
type ExpiryOptions struct {
	Interval   time.Duration
	BatchLimit int
	Now        func() time.Time
	Logger     *slog.Logger
	// OnRemoved is called after a record is deleted.
	OnRemoved func(seedCodes ...string)
}

// SweepResult reports one expiry pass.
type SweepResult struct {
	SeedCodes      []string
	Count          int
	BlobsDeleted   int
	ReclaimedBytes int64
	FailedCount    int
	DryRun         bool
}

// ExpiryService deletes records past their expiry, and their blobs.
type ExpiryService struct {
	records store.RecordStore
	blobs   blobstore.BlobStore
	opts    ExpiryOptions

	mu        sync.Mutex // serializes sweeps
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewExpiryService creates an expiry sweeper.
func NewExpiryService(records store.RecordStore, blobs blobstore.BlobStore, opts ExpiryOptions) *ExpiryService {
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultSweepBatch
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ExpiryService{
		records: records,
		blobs:   blobs,
		opts:    opts,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Sweep removes up to limit expired records (the batch limit when limit is
// not positive). A dry run only reports what would be removed.
func (e *ExpiryService) Sweep(ctx context.Context, dryRun bool, limit int) (SweepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		limit = e.opts.BatchLimit
	}
	result := SweepResult{SeedCodes: []string{}, DryRun: dryRun}

	expired, err := e.records.ListExpired(ctx, e.opts.Now(), limit)
	if err != nil {
		expirySweepFailures.Inc()
		return result, fmt.Errorf("list expired: %w", err)
	}

	removed := make([]string, 0, len(expired))
	for _, rec := range expired {
		if dryRun {
			result.SeedCodes = append(result.SeedCodes, rec.SeedCode)
			result.ReclaimedBytes += rec.SizeBytes
			if rec.IsFile() {
				result.BlobsDeleted++
			}
			continue
		}
		if err := e.removeRecord(ctx, rec); err != nil {
			result.FailedCount++
			e.opts.Logger.Warn("remove expired record", "seed_code", rec.SeedCode, "error", err)
			continue
		}
		removed = append(removed, rec.SeedCode)
		result.ReclaimedBytes += rec.SizeBytes
		if rec.IsFile() {
			result.BlobsDeleted++
		}
	}
	if !dryRun {
		result.SeedCodes = append(result.SeedCodes, removed...)
		expiredRecordsDeleted.Add(float64(len(removed)))
		if result.FailedCount > 0 {
			expirySweepFailures.Inc()
		}
	}
	result.Count = len(result.SeedCodes)
	return result, nil
}

// removeRecord deletes the blob first so a failed blob delete leaves the
// record in place for the next sweep.
func (e *ExpiryService) removeRecord(ctx context.Context, rec models.Record) error {
	if rec.IsFile() && rec.PayloadLocation != "" {
		if err := e.blobs.Delete(ctx, rec.PayloadLocation); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("delete blob %s: %w", rec.PayloadLocation, err)
		}
	}
	if _, err := e.records.DeleteRecord(ctx, rec.SeedCode); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if e.opts.OnRemoved != nil {
		e.opts.OnRemoved(rec.SeedCode)
	}
	return nil
}

// Start runs a sweep immediately and then every interval until Stop.
func (e *ExpiryService) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		go e.run(ctx)
	})
}

// Stop halts the background loop and waits for it to exit. Stop without a
// prior Start returns immediately.
func (e *ExpiryService) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	started := true
	e.startOnce.Do(func() {
		started = false
	})
	if started {
		<-e.done
	}
}

func (e *ExpiryService) run(ctx context.Context) {
	defer close(e.done)

	e.sweepOnce(ctx)
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweepOnce(ctx)
		}
	}
}

func (e *ExpiryService) sweepOnce(ctx context.Context) {
	result, err := e.Sweep(ctx, false, 0)
	if err != nil {
		if ctx.Err() == nil {
			e.opts.Logger.Error("expiry sweep failed", "error", err)
		}
		return
	}
	if result.Count > 0 || result.FailedCount > 0 {
		e.opts.Logger.Info("expiry sweep", "deleted", result.Count, "failed", result.FailedCount, "reclaimed_bytes", result.ReclaimedBytes)
	}
}
