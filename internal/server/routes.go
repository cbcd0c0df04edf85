package server

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seedshare/internal/ratelimit"
)

const corsMaxAge = 300

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withRequestLogging)
	r.Use(s.withMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))

	// Health check and metrics.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public API, rate limited per client address.
	r.Group(func(r chi.Router) {
		r.Use(s.withRateLimit)

		r.Post("/upload", s.handleUpload)
		r.Post("/file-name", s.handleResolvePost)
		r.Get("/file-name/{seed_code}", s.handleResolveGet)
		r.Get("/download/{seed_code}", s.handleDownload)
		r.Get("/view-file/{seed_code}", s.handleViewFile)
	})

	// Admin.
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)

		r.Get("/info", s.handleAdminInfo)
		r.Post("/cleanup", s.handleAdminCleanup)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("no route for %s", r.URL.Path), ErrCodeInvalidArgument))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorReq(w, r, http.StatusMethodNotAllowed, makeAPIError(http.StatusMethodNotAllowed, "method_not_allowed", ErrCodeInvalidArgument, fmt.Errorf("method %s not allowed", r.Method)))
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(s.opts.FrontendOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.ClientIP(r, s.opts.TrustProxyHeaders)
		allowed, retryAfter := s.limiter.Allow(key, s.now())
		if !allowed {
			rateLimitedTotal.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter.Seconds())))
			err := makeAPIError(http.StatusTooManyRequests, "resource_exhausted", ErrCodeRateLimited, fmt.Errorf("too many requests, please try again later"))
			s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(seconds float64) int {
	if seconds < 1 {
		return 1
	}
	return int(math.Ceil(seconds))
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		provided := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.opts.AdminToken)) != 1 {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("admin token required")))
			return
		}
		next.ServeHTTP(w, r)
	})
}
