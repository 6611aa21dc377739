// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/flashfusion/relay/internal/config"
	"github.com/flashfusion/relay/internal/history"
	historypostgres "github.com/flashfusion/relay/internal/history/postgres"
	"github.com/flashfusion/relay/internal/ingress"
	"github.com/flashfusion/relay/internal/pkg/httputil"
	"github.com/flashfusion/relay/internal/pkg/metrics"
	"github.com/flashfusion/relay/internal/pkg/postgres"
	"github.com/flashfusion/relay/internal/registry"
	"github.com/flashfusion/relay/internal/relay"
	"github.com/flashfusion/relay/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	registry      *registry.Registry
	queue         *relay.Queue
	server        *http.Server
	metricsServer *http.Server
	bgCancel      context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	reg := registry.New(cfg.BuildPlatforms())

	enabled := reg.EnabledPlatforms()
	slog.Info("platform registry built",
		"platforms", len(reg.Status()),
		"enabled", len(enabled),
	)

	bgCtx, bgCancel := context.WithCancel(context.Background())

	app := &App{
		config:   cfg,
		logger:   logger,
		registry: reg,
		bgCancel: bgCancel,
	}

	notifier := relay.NewNotifier()
	notifier.Subscribe(relay.LogObserver{})

	var deadLetter ingress.DeadLetterLister

	if cfg.Database.URL != "" {
		connectCtx, connectCancel := context.WithTimeout(bgCtx, cfg.Database.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			bgCancel()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.db = db

		if err := historypostgres.Migrate(cfg.Database.URL); err != nil {
			db.Close()
			bgCancel()
			return nil, fmt.Errorf("migrate history schema: %w", err)
		}

		recorder := history.NewRecorder(historypostgres.NewRepository(db))
		notifier.Subscribe(recorder)
		deadLetter = recorder

		go app.collectDBMetrics(bgCtx)
	} else {
		slog.Info("delivery history disabled, no database configured")
	}

	dispatcher := relay.NewDispatcher(reg)

	app.queue = relay.NewQueue(relay.QueueConfig{
		MaxRetries:   cfg.Queue.MaxRetries,
		DispatchRate: rate.Limit(cfg.Queue.DispatchRate),
		KickInterval: cfg.Queue.KickInterval,
	}, dispatcher, notifier)
	app.queue.Start(bgCtx)

	ingressHandler := ingress.NewHandler(app.queue, dispatcher, reg, ingress.DefaultRoutes(), cfg.Webhook.Secret, deadLetter)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(ingressHandler),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. Events still queued
// are lost: the queue is memory-only by design.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Stop ingress first so nothing new is queued, then the queue.
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.bgCancel()
	a.queue.Stop()

	if a.db != nil {
		a.db.Close()
	}

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Queue returns the event queue instance. Used in tests.
func (a *App) Queue() *relay.Queue {
	return a.queue
}

func (a *App) setupRouter(ingressHandler *ingress.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	ingressHandler.RegisterRoutes(r)

	return r
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.ObserveHistoryPool(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.ObserveHistoryPool(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	// The queue is in-memory, so readiness only depends on the optional
	// history datastore.
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := a.db.Ping(ctx); err != nil {
			httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
