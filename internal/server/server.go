// Package server runs the paflow HTTP API. The server owns the Postgres
// container lifecycle when no external database is configured, starting it
// on boot and stopping it on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/payerops/paflow/internal/api"
	"github.com/payerops/paflow/internal/blob"
	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/config"
	"github.com/payerops/paflow/internal/determine"
	"github.com/payerops/paflow/internal/docintel"
	"github.com/payerops/paflow/internal/extract"
	"github.com/payerops/paflow/internal/home"
	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/pipeline"
	"github.com/payerops/paflow/internal/policy"
	"github.com/payerops/paflow/internal/prompts"
	"github.com/payerops/paflow/internal/search"
	"github.com/payerops/paflow/internal/server/endpoints"
	"github.com/payerops/paflow/internal/svcctx"
)

const pgReadyTimeout = 60 * time.Second

// Server is the main paflow HTTP server.
type Server struct {
	httpServer *http.Server
	pgManager  *casestore.DockerManager
	store      casestore.Store
	proc       *pipeline.Pipeline
	configMgr  *config.Manager
	homeDir    *home.Dir
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Listen is the address to bind to (default: 127.0.0.1:8170)
	Listen string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the paflow home directory (postgres data lives under it)
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := cfg.ConfigManager.Get()
	if cfg.Listen == "" {
		cfg.Listen = appCfg.Server.Listen
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		homeDir:   cfg.Home,
		logger:    cfg.Logger,
	}

	// Only manage a container when no external database is configured.
	if appCfg.PostgresDSN() == "" {
		manager, err := casestore.NewDockerManager(appCfg.ToDockerConfig(cfg.Home.PostgresDataPath()))
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres manager: %w", err)
		}
		s.pgManager = manager
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{PostgresManager: s.pgManager}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and its Postgres backend.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	dsn := appCfg.PostgresDSN()
	if s.pgManager != nil {
		if err := s.pgManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing postgres container incompatible: %w", err)
		}

		s.logger.Info("starting postgres")
		if err := s.pgManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start postgres: %w", err)
		}
		if err := s.pgManager.WaitReady(ctx, pgReadyTimeout); err != nil {
			_ = s.shutdown()
			return fmt.Errorf("postgres not ready: %w", err)
		}
		dsn = s.pgManager.DSN()
		s.logger.Info("postgres is ready")
	}

	store, err := casestore.NewPostgresStore(ctx, dsn)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to open case store: %w", err)
	}
	s.store = store

	proc, err := BuildPipeline(appCfg, store, s.logger)
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.proc = proc

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Logger:        s.logger,
		ConfigManager: s.configMgr,
		Home:          s.homeDir,
		CaseStore:     s.store,
		Pipeline:      s.proc,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// BuildPipeline wires the processing stages from configuration. The process
// CLI command shares this wiring to run cases without a server.
func BuildPipeline(appCfg *config.Config, store casestore.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	promptStore, err := prompts.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	chat := llm.NewAzureClient(appCfg.ToAzureConfig())
	searcher := search.NewClient(appCfg.ToSearchConfig())
	blobs := blob.NewClient(appCfg.ToBlobConfig())
	analyzer := docintel.NewClient(appCfg.ToDocIntelConfig())

	maxTokens := appCfg.LLM.MaxTokens
	sampling := appCfg.Sampling()

	return pipeline.New(pipeline.Config{
		Extractor:    extract.New(chat, promptStore, logger, maxTokens, sampling),
		Locator:      policy.NewLocator(chat, promptStore, searcher, logger, maxTokens, sampling),
		Resolver:     policy.NewResolver(blobs, analyzer, logger),
		Generator:    determine.NewGenerator(chat, promptStore, logger, maxTokens, sampling),
		Store:        store,
		Uploader:     blobs,
		Logger:       logger,
		UseReasoning: appCfg.Pipeline.UseReasoning,
	}), nil
}

// shutdown performs graceful shutdown of the HTTP server and Postgres.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.store != nil {
		s.store.Close()
	}

	if s.pgManager != nil {
		s.logger.Info("stopping postgres")
		if err := s.pgManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("postgres stop error", "error", err)
		}
		if err := s.pgManager.Close(); err != nil {
			s.logger.Error("postgres manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the case store or pipeline aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.proc == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
