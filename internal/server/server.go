package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seedshare/internal/blobstore"
	"seedshare/internal/ratelimit"
	"seedshare/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 15 * time.Second

	defaultMaxFileBytes       int64 = 10 << 20 // 10 MiB
	defaultMultipartMaxMemory int64 = 8 << 20  // 8 MiB
)

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	PublicURL          string
	FrontendOrigin     string
	AdminToken         string
	TrustProxyHeaders  bool
	MaxFileBytes       int64
	MultipartMaxMemory int64
	Retention          time.Duration
	SweepInterval      time.Duration
	CacheSize          int
	CacheTTL           time.Duration
	UploadDir          string
	Limiter            *ratelimit.Limiter
	Logger             *slog.Logger
	Now                func() time.Time
}

// Server wraps HTTP handlers for the seedshare API.
type Server struct {
	addr      string
	opts      Options
	records   store.RecordStore
	blobs     blobstore.BlobStore
	limiter   *ratelimit.Limiter
	ingest    *IngestService
	retrieval *RetrievalService
	expiry    *ExpiryService
	logger    *slog.Logger
	now       func() time.Time
	handler   http.Handler
}

// New creates a new server instance.
func New(records store.RecordStore, blobs blobstore.BlobStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = defaultMaxFileBytes
	}
	if opts.MultipartMaxMemory <= 0 {
		opts.MultipartMaxMemory = defaultMultipartMaxMemory
	}
	if opts.Retention <= 0 {
		opts.Retention = store.DefaultRetention
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMaxRequests, ratelimit.DefaultWindow)
	}

	s := &Server{
		addr:    opts.Addr,
		opts:    opts,
		records: records,
		blobs:   blobs,
		limiter: limiter,
		logger:  logger,
		now:     now,
	}
	s.retrieval = NewRetrievalService(records, blobs, RetrievalOptions{
		CacheSize: opts.CacheSize,
		CacheTTL:  opts.CacheTTL,
		Now:       now,
	})
	s.ingest = NewIngestService(records, blobs, IngestOptions{
		MaxFileBytes: opts.MaxFileBytes,
		Retention:    opts.Retention,
		Now:          now,
		Logger:       logger.With("component", "ingest"),
	})
	s.expiry = NewExpiryService(records, blobs, ExpiryOptions{
		Interval:   opts.SweepInterval,
		Now:        now,
		Logger:     logger.With("component", "expiry"),
		OnRemoved:  s.retrieval.Invalidate,
		BatchLimit: defaultSweepBatch,
	})
	s.ingest.reclaim = s.expiry.removeRecord
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Expiry returns the expiry sweeper so callers can own its lifecycle.
func (s *Server) Expiry() *ExpiryService {
	return s.expiry
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("starting server", "addr", s.addr, "public_url", s.opts.PublicURL)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		if u.Port() == "" {
			return "", fmt.Errorf("api url %q has no port", apiURL)
		}
		return u.Host, nil
	}
	if _, _, err := net.SplitHostPort(apiURL); err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", apiURL, err)
	}
	return apiURL, nil
}

// downloadLink is the share link handed back to uploaders.
func (s *Server) downloadLink(seedCode string) string {
	return s.opts.PublicURL + "/download/" + url.PathEscape(seedCode)
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
