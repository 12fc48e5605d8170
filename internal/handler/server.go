package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/config"
	"github.com/driftsearch/snaprestore/internal/health"
)

// Server is the admin HTTP server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer creates the admin HTTP server and wires its routes
func NewServer(cfg config.ServerConfig, restores *RestoreHandler, checker *health.Checker, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/restores", restores.StartRestore).Methods(http.MethodPost)
	v1.HandleFunc("/restores/indices", restores.RestoringIndices).Methods(http.MethodGet)
	v1.HandleFunc("/restores/history", restores.ListHistory).Methods(http.MethodGet)
	v1.HandleFunc("/restores/history/{id}", restores.GetHistory).Methods(http.MethodGet)
	v1.HandleFunc("/restores/{id}", restores.GetRestore).Methods(http.MethodGet)

	router.HandleFunc("/health/live", checker.LivenessHandler).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.ReadinessHandler).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		router:     router,
		httpServer: httpServer,
		logger:     logger,
	}
}

// Router returns the configured router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start runs the server until it is shut down
func (s *Server) Start() error {
	s.logger.Info("Starting admin HTTP server", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}
