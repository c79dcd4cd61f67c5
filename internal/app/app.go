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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bqworks/paygrid/internal/aggregation"
	aggregationpostgres "github.com/bqworks/paygrid/internal/aggregation/postgres"
	"github.com/bqworks/paygrid/internal/ai"
	"github.com/bqworks/paygrid/internal/channel"
	"github.com/bqworks/paygrid/internal/channel/mattermost"
	"github.com/bqworks/paygrid/internal/channel/telegram"
	"github.com/bqworks/paygrid/internal/config"
	"github.com/bqworks/paygrid/internal/pkg/ctxlog"
	"github.com/bqworks/paygrid/internal/pkg/httputil"
	"github.com/bqworks/paygrid/internal/pkg/metrics"
	"github.com/bqworks/paygrid/internal/pkg/postgres"
	recordspostgres "github.com/bqworks/paygrid/internal/records/postgres"
	"github.com/bqworks/paygrid/internal/report"
	"github.com/bqworks/paygrid/internal/scheduler"
	"github.com/bqworks/paygrid/internal/segments"
	segmentspostgres "github.com/bqworks/paygrid/internal/segments/postgres"
	"github.com/bqworks/paygrid/internal/version"
	"github.com/bqworks/paygrid/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	scheduler     *scheduler.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(migrations.FS, ".", cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, sched, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.scheduler = sched

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
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

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the scheduler first so no new batch starts mid-shutdown
	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	// Shutdown both servers in parallel
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

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.CollectPoolStats(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.CollectPoolStats(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, *scheduler.Scheduler, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	recordRepo := recordspostgres.NewRepository(a.db)
	segmentRepo := segmentspostgres.NewRepository(a.db)
	catalog := segments.NewCatalog(segmentRepo, a.config.Aggregation.SegmentCacheTTL)

	registry, err := a.buildChannelRegistry()
	if err != nil {
		return nil, nil, err
	}

	var analyzer ai.Analyzer
	if a.config.Ai.Enabled {
		httpAnalyzer, err := ai.NewHTTPAnalyzer(ai.Config{
			BaseURL: a.config.Ai.BaseURL,
			APIKey:  a.config.Ai.APIKey,
			Model:   a.config.Ai.Model,
			Timeout: a.config.Ai.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create ai analyzer: %w", err)
		}
		analyzer = httpAnalyzer
	} else {
		slog.Warn("ai analysis is disabled: reports with analysis enabled will degrade to numbers only")
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("create report renderer: %w", err)
	}

	assembler := aggregation.NewAssembler(recordRepo, catalog, aggregation.AssemblerConfig{
		BandLowerPct:     a.config.Aggregation.BandLowerPct,
		BandUpperPct:     a.config.Aggregation.BandUpperPct,
		HistogramBuckets: a.config.Aggregation.HistogramBuckets,
	})
	formatter := aggregation.NewFormatter(assembler, analyzer, aggregation.FormatterConfig{
		AiTimeout: a.config.Ai.Timeout,
	})
	gate := aggregation.NewChangeGate(aggregation.ChangeGateConfig{
		RelativeThreshold: a.config.Aggregation.RelativeThreshold,
	})
	dispatcher := aggregation.NewDispatcher(renderer, registry, aggregation.DispatcherConfig{
		SendTimeout: a.config.Aggregation.SendTimeout,
	})

	aggregationRepo := aggregationpostgres.NewRepository(a.db)
	runner := aggregation.NewRunner(
		aggregationRepo,
		aggregationRepo,
		aggregationRepo,
		assembler,
		formatter,
		gate,
		dispatcher,
	)

	service := aggregation.NewService(aggregationRepo, aggregationRepo, catalog, runner)
	handler := aggregation.NewHandler(service)

	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	var sched *scheduler.Scheduler
	if a.config.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			TickInterval: a.config.Scheduler.TickInterval,
			BatchHourUTC: a.config.Scheduler.BatchHourUTC,
		}, runner)
		sched.Start(ctx)
	} else {
		slog.Warn("scheduler is disabled: batches run only via the trigger endpoints")
	}

	return r, sched, nil
}

func (a *App) buildChannelRegistry() (*channel.Registry, error) {
	clients := make([]channel.Client, 0, 2)

	if a.config.Channels.Telegram.Enabled {
		telegramClient, err := telegram.NewClient(telegram.Config{
			BotToken:  a.config.Channels.Telegram.BotToken,
			APIBase:   a.config.Channels.Telegram.APIBase,
			RateLimit: a.config.Channels.Telegram.RateLimit,
			Timeout:   a.config.Channels.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram client: %w", err)
		}
		clients = append(clients, telegramClient)
	} else {
		slog.Warn("telegram channel is disabled: telegram subscriptions will not be delivered")
	}

	if a.config.Channels.Mattermost.Enabled {
		clients = append(clients, mattermost.NewClient(mattermost.Config{
			Timeout: a.config.Channels.Mattermost.Timeout,
		}))
	} else {
		slog.Warn("mattermost channel is disabled: mattermost subscriptions will not be delivered")
	}

	return channel.NewRegistry(clients...), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
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
