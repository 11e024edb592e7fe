package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kubev2v/document-extractor/internal/config"
	"github.com/kubev2v/document-extractor/internal/handlers"
	"github.com/kubev2v/document-extractor/pkg/metrics"
	"github.com/kubev2v/document-extractor/pkg/middleware"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

// RouteRegistrar mounts a set of handlers on a router.
type RouteRegistrar interface {
	RegisterRoutes(router chi.Router)
}

type Server struct {
	name     string
	cfg      *config.SvcConfig
	routes   RouteRegistrar
	listener net.Listener
}

// New returns the text extraction server.
func New(cfg *config.SvcConfig, extractor handlers.Extractor, listener net.Listener) *Server {
	return &Server{
		name:     "api_server",
		cfg:      cfg,
		routes:   handlers.NewHandler(extractor, cfg.UploadDir, cfg.MaxUploadSize),
		listener: listener,
	}
}

// NewHello returns the greeting server.
func NewHello(cfg *config.SvcConfig, hostname string, listener net.Listener) *Server {
	return &Server{
		name:     "hello_server",
		cfg:      cfg,
		routes:   handlers.NewHelloHandler(hostname),
		listener: listener,
	}
}

func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware(s.name)
	if err := metricMiddleware.Register(); err != nil {
		zap.S().Named(s.name).Warnw("failed to register http metrics", "error", err)
	}

	middlewares := []func(http.Handler) http.Handler{metricMiddleware.Handler}
	if len(s.cfg.AllowedOrigins) > 0 {
		middlewares = append(middlewares, cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}))
	}
	middlewares = append(middlewares,
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)
	router.Use(middlewares...)

	s.routes.RegisterRoutes(router)
	return router
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named(s.name).Info("Initializing server")

	// No WriteTimeout: an extraction may legitimately take minutes.
	srv := http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		zap.S().Named(s.name).Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named(s.name).Info("server terminated")
	}()

	zap.S().Named(s.name).Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
