package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"seedshare/internal/blobstore"
	"seedshare/internal/config"
	"seedshare/internal/ratelimit"
	"seedshare/internal/server"
	"seedshare/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the seedshare API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBDSN == "" {
				return fmt.Errorf("db_dsn is required")
			}

			logger := slog.Default().With("component", "server")
			warnOpenAdmin(logger, cfg.AdminToken)

			addr := cfg.ListenAddr
			if addr == "" {
				var err error
				if addr, err = server.ListenAddr(cfg.APIURL); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("opening database", "dsn", redactDSN(cfg.DBDSN))
			st, err := store.OpenDSN(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("using upload dir", "path", cfg.UploadDir)
			bs, err := blobstore.NewLocalDir(cfg.UploadDir)
			if err != nil {
				return err
			}

			limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
			limiter.Start()
			defer limiter.Stop()

			// A configured cache size of zero turns the cache off.
			cacheSize := cfg.Cache.Size
			if cacheSize == 0 {
				cacheSize = -1
			}

			srv := server.New(st, bs, server.Options{
				Addr:               addr,
				PublicURL:          cfg.PublicURL,
				FrontendOrigin:     cfg.FrontendOrigin,
				AdminToken:         cfg.AdminToken,
				TrustProxyHeaders:  cfg.TrustProxyHeaders,
				MaxFileBytes:       cfg.Upload.MaxFileBytes,
				MultipartMaxMemory: cfg.Upload.MultipartMaxMemory,
				Retention:          cfg.Upload.Retention,
				SweepInterval:      cfg.Expiry.SweepInterval,
				CacheSize:          cacheSize,
				CacheTTL:           cfg.Cache.TTL,
				UploadDir:          bs.Root(),
				Limiter:            limiter,
				Logger:             logger,
			})

			expiry := srv.Expiry()
			expiry.Start(ctx)
			defer expiry.Stop()

			return srv.ListenAndServe(ctx)
		},
	}
}

// warnOpenAdmin reports whether the admin routes run without a token, and
// logs a warning when they do.
func warnOpenAdmin(logger *slog.Logger, token string) bool {
	if token != "" {
		return false
	}
	logger.Warn("admin_token is not set; /admin routes accept unauthenticated requests")
	return true
}

func redactDSN(dsn string) string {
	if !store.IsPostgresDSN(dsn) {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres://<unparseable>"
	}
	return u.Redacted()
}
