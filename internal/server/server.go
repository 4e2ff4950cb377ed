package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/handler"
	"github.com/kindfund/kindfund/internal/mcp"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/policy"
	"github.com/kindfund/kindfund/internal/server/middleware"
	"github.com/kindfund/kindfund/internal/service"
	"github.com/kindfund/kindfund/internal/ui"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableUI        bool
	EnableMCP       bool
	MaxBodySize     int64 // bytes
	LoginRateLimit  int   // login attempts per minute per client IP; 0 disables
	PublicURL       string
	Version         string
	Policy          policy.Table
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		EnableUI:        true,
		EnableMCP:       true,
		MaxBodySize:     1 << 20, // 1MB
		LoginRateLimit:  10,
		Version:         "dev",
		Policy:          policy.Default(),
	}
}

// baseURL is the server URL advertised in the API description.
func (c Config) baseURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// Server is the top-level HTTP server for kindfund. It owns the Chi router,
// the store and the authentication service.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	metrics    *metrics.Manager
	gate       *middleware.Gate
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
// m may be nil to disable metrics.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, m *metrics.Manager, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		authSvc: authSvc,
		metrics: m,
		gate:    middleware.NewGate(authSvc, logger, m),
		logger:  logger,
	}
	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRouter() error {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		r.Use(middleware.RequestMetrics(s.metrics))
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	sysHandler := handler.NewSystemHandler(s.store, s.cfg.Version, s.logger)

	// --- Health checks and metrics (no auth required) ---
	r.Get("/healthz", sysHandler.Healthz)
	r.Get("/readyz", sysHandler.Readyz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// --- OpenAPI description (no auth required) ---
	openAPIHandler, err := handler.NewOpenAPIHandler(s.cfg.Policy, s.cfg.baseURL(), s.cfg.Version)
	if err != nil {
		return fmt.Errorf("build openapi document: %w", err)
	}
	r.Get("/openapi.json", openAPIHandler.ServeSpec)

	// --- MCP catalogue (public collections only) ---
	if s.cfg.EnableMCP {
		r.Handle("/mcp", mcp.NewMCPServer(s.store, s.cfg.Policy, s.cfg.Version, s.logger).HTTPHandler())
	}

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		authHandler := handler.NewAuthHandler(s.authSvc, s.metrics, s.logger)

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.cfg.LoginRateLimit > 0 {
					r.Use(middleware.RateLimit(s.cfg.LoginRateLimit))
				}
				r.Post("/login", authHandler.Login)
			})
			r.Post("/logout", authHandler.Logout)
			r.With(s.gate.Require).Get("/me", authHandler.Me)

			if h := s.guard(policy.ResourceAdmins, policy.Create, http.HandlerFunc(authHandler.Register)); h != nil {
				r.Method(http.MethodPost, "/register", h)
			}
		})

		r.With(s.gate.Require).Get("/system/info", sysHandler.Info)

		// Content collections, routed from the access policy.
		for _, res := range handler.Resources(s.store, s.logger, s.metrics) {
			s.mountResource(r, res)
		}
	})

	// --- Embedded admin UI ---
	if s.cfg.EnableUI {
		if err := s.mountUI(r); err != nil {
			s.logger.Error("failed to mount admin UI", "error", err)
		}
	}

	s.router = r
	return nil
}

// routeFor returns the HTTP method and sub-path serving op.
func routeFor(op policy.Operation) (method, pattern string) {
	switch op {
	case policy.List:
		return http.MethodGet, "/"
	case policy.Create:
		return http.MethodPost, "/"
	case policy.Get:
		return http.MethodGet, "/{id}"
	case policy.Update:
		return http.MethodPut, "/{id}"
	case policy.Delete:
		return http.MethodDelete, "/{id}"
	}
	return "", ""
}

// guard applies the access policy for resource/op to h. It returns nil for
// operations that are not exposed; those are never routed.
func (s *Server) guard(resource string, op policy.Operation, h http.Handler) http.Handler {
	switch s.cfg.Policy.Lookup(resource, op) {
	case policy.Open:
		return h
	case policy.AdminOnly:
		return s.gate.Require(h)
	default:
		return nil
	}
}

// mountResource routes every exposed operation of res under /{name}.
func (s *Server) mountResource(r chi.Router, res handler.Resource) {
	r.Route("/"+res.Name(), func(r chi.Router) {
		for _, op := range policy.Operations {
			hf := res.Handler(op)
			if hf == nil {
				continue
			}
			h := s.guard(res.Name(), op, hf)
			if h == nil {
				continue
			}
			method, pattern := routeFor(op)
			r.Method(method, pattern, h)
		}
	})
}

// mountUI serves the embedded single-page admin app under /admin.
func (s *Server) mountUI(r chi.Router) error {
	distFS, err := fs.Sub(ui.Dist, "dist")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(distFS))

	// SPA fallback: serve index.html for all UI routes
	spaHandler := func(w http.ResponseWriter, r *http.Request) {
		f, err := distFS.Open("index.html")
		if err != nil {
			http.Error(w, "UI not available", http.StatusNotFound)
			return
		}
		defer f.Close()
		stat, _ := f.Stat()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", stat.ModTime(), f.(io.ReadSeeker))
	}

	r.Handle("/assets/*", fileServer)
	r.Get("/admin", spaHandler)
	r.Get("/admin/*", spaHandler)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})
	return nil
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "version", s.cfg.Version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
