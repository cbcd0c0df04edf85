package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"seedshare/internal/api"
)

func (s *Server) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	var req api.CleanupRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeServiceError(w, r, classifyDecodeJSONError(err))
		return
	}
	if req.Limit < 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("limit must be >= 0"), ErrCodeInvalidArgument))
		return
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	result, err := s.expiry.Sweep(r.Context(), req.DryRun, req.Limit)
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.CleanupResponse{
		SeedCodes:      result.SeedCodes,
		Count:          result.Count,
		BlobsDeleted:   result.BlobsDeleted,
		ReclaimedBytes: result.ReclaimedBytes,
		FailedCount:    result.FailedCount,
		DryRun:         result.DryRun,
	})
}

func (s *Server) handleAdminInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.Stats(r.Context(), s.now())
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		Backend:        stats.Backend,
		SchemaVersion:  stats.SchemaVersion,
		TotalRecords:   stats.TotalRecords,
		ExpiredRecords: stats.ExpiredRecords,
		ByKind:         stats.ByKind,
		UploadDir:      s.opts.UploadDir,
		MaxFileBytes:   s.opts.MaxFileBytes,
		Retention:      s.opts.Retention.String(),
		RateLimitMax:   s.limiter.Max(),
		RateLimitWin:   s.limiter.Window().String(),
		TrackedClients: s.limiter.Len(),
	})
}
