// Package http serves the linking page and wires all routes behind request
// logging.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/redditlink/internal/oauth"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// Server wraps the HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewRouter registers every route on a new mux wrapped in request logging
func NewRouter(oauthHandlers *oauth.Handlers, linkHandlers *LinkHandlers, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", oauthHandlers.HealthHandler)

	mux.HandleFunc("GET /auth/{provider}", oauthHandlers.BeginHandler)
	mux.HandleFunc("GET /auth/{provider}/{$}", oauthHandlers.BeginHandler)
	mux.HandleFunc("GET /auth/{provider}/callback", oauthHandlers.CallbackHandler)
	mux.HandleFunc("POST /auth/{provider}/logout", oauthHandlers.LogoutHandler)

	mux.HandleFunc("GET /{$}", linkHandlers.PageHandler)
	mux.HandleFunc("POST /{$}", linkHandlers.LinkHandler)
	mux.HandleFunc("GET /verify", linkHandlers.PageHandler)
	mux.HandleFunc("POST /verify", linkHandlers.LinkHandler)
	mux.HandleFunc("POST /unlink", linkHandlers.UnlinkHandler)

	return loggingMiddleware(mux, logger)
}

// NewServer creates a new HTTP server
func NewServer(oauthHandlers *oauth.Handlers, linkHandlers *LinkHandlers, port string, logger *zap.Logger) *Server {
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(oauthHandlers, linkHandlers, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("HTTP server configured", zap.String("port", port))

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// Serve starts the HTTP server
func (s *Server) Serve() error {
	s.logger.Info("starting HTTP server", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}

// loggingMiddleware tags each request with an id and logs its outcome
func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		logger.Debug("HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(wrappedWriter, r)

		logger.Info("HTTP request completed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrappedWriter.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
