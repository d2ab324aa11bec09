package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/newsletterlab/pulse/internal/config"
	httpcontroller "github.com/newsletterlab/pulse/internal/controller/http"
	"github.com/newsletterlab/pulse/internal/database"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/dao"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/ingest"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/policy"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/scheduler"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/service"
	"github.com/newsletterlab/pulse/internal/httpx/upstream/beehiiv"
	"github.com/newsletterlab/pulse/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	// Infrastructure, nil when the configured backend does not use them
	pg      *pgxpool.Pool
	redis   *redis.Client
	repo    dao.DatasetRepository
	archive *storage.S3Storage

	beehiiv          *beehiiv.Client
	newsletterPolicy *policy.Policy

	// Scheduler for periodic API syncs
	scheduler *scheduler.Scheduler
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := newLogger(cfg.Log)

	// Initialize router with middleware
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	// Initialize infrastructure
	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	// Initialize domain layers
	if err := app.initDomains(ctx); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	// Register routes
	app.registerRoutes()

	// Initialize HTTP server
	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

func newLogger(cfg config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// initInfrastructure initializes infrastructure components (DB, Redis, S3)
func (a *App) initInfrastructure(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, a.cfg.Database.PostgresDSN, database.DefaultPoolOptions)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.pg = pool

		repo := dao.NewDatasetPostgres(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ensuring schema: %w", err)
		}
		a.repo = repo

	case config.BackendRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		a.redis = client
		a.repo = dao.NewDatasetRedis(client, a.cfg.Redis.KeyPrefix, a.cfg.Redis.TTL)

	default:
		a.repo = dao.NewDatasetMemory()
	}

	if a.cfg.S3.Enabled {
		a.archive = storage.NewS3Storage(storage.S3Config{
			Endpoint:        a.cfg.S3.Endpoint,
			AccessKeyID:     a.cfg.S3.AccessKeyID,
			SecretAccessKey: a.cfg.S3.SecretAccessKey,
			Bucket:          a.cfg.S3.Bucket,
			Region:          a.cfg.S3.Region,
		})
	}

	a.logger.Info("infrastructure ready",
		"storage", a.cfg.Storage.Backend,
		"archive", a.cfg.S3.Enabled,
	)
	return nil
}

// initDomains initializes domain layers (DAO, Service, Policy)
func (a *App) initDomains(_ context.Context) error {
	opts := []beehiiv.ClientOption{
		beehiiv.WithBaseURL(a.cfg.Beehiiv.BaseURL),
		beehiiv.WithAPIKey(a.cfg.Beehiiv.APIKey),
		beehiiv.WithHTTPClient(&http.Client{Timeout: a.cfg.Beehiiv.Timeout}),
	}
	if a.cfg.Beehiiv.RateLimit > 0 {
		opts = append(opts, beehiiv.WithRateLimit(a.cfg.Beehiiv.RateLimit, a.cfg.Beehiiv.RateBurst))
	}
	a.beehiiv = beehiiv.New(opts...)

	syncer := ingest.NewSyncer(&beehiivPlatformAdapter{client: a.beehiiv}, ingest.SyncerConfig{
		PageSize:  a.cfg.Beehiiv.PageSize,
		BatchSize: a.cfg.Sync.BatchSize,
		Logger:    a.logger,
	})

	targets, err := a.cfg.Sync.Targets()
	if err != nil {
		return fmt.Errorf("parsing sync targets: %w", err)
	}
	policyTargets := make([]policy.SyncTarget, 0, len(targets))
	for _, t := range targets {
		policyTargets = append(policyTargets, policy.SyncTarget{
			NewsletterID:  t.NewsletterID,
			PublicationID: t.PublicationID,
		})
	}

	// A nil *S3Storage must not reach the policy as a non-nil interface
	var archiver policy.Archiver
	if a.archive != nil {
		archiver = a.archive
	}

	svc := service.New(a.repo)
	a.newsletterPolicy = policy.New(svc, syncer, archiver, policy.Config{
		RecentStats: a.cfg.Sync.RecentStats,
		Targets:     policyTargets,
	}, a.logger)

	if a.cfg.Sync.Enabled {
		if len(policyTargets) == 0 {
			a.logger.Warn("sync scheduler enabled without tracked newsletters")
		}
		a.scheduler = scheduler.New(a.newsletterPolicy, a.cfg.Sync.Interval, a.cfg.Sync.RunTimeout, a.logger)
	}

	return nil
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() {
	// Health check
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	// Swagger UI documentation
	swaggerHandler := httpcontroller.NewSwaggerHandler("Pulse Newsletter Analytics API", OpenAPISpec)
	swaggerHandler.RegisterRoutes(a.router)

	// API v1
	a.router.Route("/api/v1", func(r chi.Router) {
		newsletterHandler := httpcontroller.NewNewsletterHandler(a.newsletterPolicy)
		newsletterHandler.RegisterRoutes(r)

		proxyHandler := httpcontroller.NewProxyHandler(a.beehiiv)
		proxyHandler.RegisterRoutes(r)
	})
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler reports whether the configured dataset store is reachable
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	var reason string
	switch {
	case a.pg != nil:
		if err := a.pg.Ping(ctx); err != nil {
			reason = err.Error()
		}
	case a.redis != nil:
		if err := a.redis.Ping(ctx).Err(); err != nil {
			reason = err.Error()
		}
	}
	if reason != "" {
		status, code = "unavailable", http.StatusServiceUnavailable
		a.logger.Warn("readiness check failed", "storage", a.cfg.Storage.Backend, "error", reason)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"storage": a.cfg.Storage.Backend,
	})
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	// Start scheduler if enabled
	if a.scheduler != nil {
		go a.scheduler.Start(ctx)
	}

	// Channel to receive errors from server
	errCh := make(chan error, 1)

	// Start HTTP server in goroutine
	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	// Graceful shutdown
	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	// Stop scheduler
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	a.closeInfrastructure()

	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
}
