package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/pkg/config"
)

// Server is the net/http-native API server. Requests flow through the
// middleware stack outermost to innermost: tracing, then access logging,
// then panic recovery, then CORS, then the router's own
// auth/gate/scope chain (internal/adapter/http.Chain).
type Server struct {
	server  *http.Server
	logger  *logging.Logger
	cfg     *config.Config
	address string
}

// NewServer wraps handler (the API mux) with the tracing, access-log, and
// recovery middleware, and configures h2c and the timeouts used by the
// standard library's graceful-shutdown-capable http.Server.
func NewServer(cfg *config.Config, logger *logging.Logger, handler http.Handler) *Server {
	wrapped := NewCORSHandler(handler, cfg.Server.AllowedOrigins)
	wrapped = recoverMiddleware(logger)(wrapped)
	wrapped = accessLogMiddleware(logger)(wrapped)
	wrapped = otelhttp.NewHandler(wrapped, "tunetrail-backend")

	address := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	p := new(http.Protocols)
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)

	srv := &http.Server{
		Addr:              address,
		Handler:           http.TimeoutHandler(wrapped, cfg.Server.HandlerTimeout, ""),
		Protocols:         p,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return &Server{server: srv, logger: logger, cfg: cfg, address: address}
}

// Start begins listening and serving. It blocks until Close is called,
// returning http.ErrServerClosed in that case.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), fmt.Sprintf("API server starting on %s", s.address))
	return s.server.ListenAndServe()
}

// Close gracefully stops the server. It implements io.Closer so it can be
// registered with the shutdown package's Drain phase.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "shutting down API server gracefully", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the status code written by the inner handler so
// accessLogMiddleware can log it; http.ResponseWriter itself exposes no
// getter for it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLogMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(r.Context(), "panic recovered in http handler", fmt.Errorf("panic: %v", rec),
						slog.String("path", r.URL.Path),
					)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
