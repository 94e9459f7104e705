// Package server exposes the concatenation pipeline over HTTP: multipart
// uploads in, one xlsx download out.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/nconklindev/sheetstack/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	// multipartMemory is how much of a form is buffered in memory before
	// spilling file parts to disk.
	multipartMemory = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP front-end.
type Server struct {
	settings config.Settings
	defaults config.Options
	logger   zerolog.Logger
	metrics  *metrics
	router   *chi.Mux
}

// New builds a Server. Form fields override defaults per request; reg
// receives the run metrics and is served on /metrics.
func New(settings config.Settings, defaults config.Options, logger zerolog.Logger, reg *prometheus.Registry) *Server {
	s := &Server{
		settings: settings,
		defaults: defaults,
		logger:   logger,
		metrics:  newMetrics(reg),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes(reg)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes(reg *prometheus.Registry) {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/concat", s.handleConcat)
		r.Post("/preview", s.handlePreview)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Errorf("serving on %s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("shutting down")
		return errors.WithStack(srv.Shutdown(shutdownCtx))
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			l := logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
