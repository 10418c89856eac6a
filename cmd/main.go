package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/http/api"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/http/site"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/http/swagger"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/repository"
	app "github.com/SBCM-Alliance/G-Cart/internal/app"
	"github.com/SBCM-Alliance/G-Cart/internal/config"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/matching"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the service and the HTTP server and blocks until ctx is done
// or the server fails.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get().Named("main")

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	handler, err := buildHandler(ctx, cfg, svc)
	if err != nil {
		return err
	}

	// Streams stay open for the session lifetime, so there is no write timeout.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// buildService assembles the service from configuration. cleanup releases
// resources the service does not own.
func buildService(ctx context.Context, cfg *config.Config) (*app.Service, func(), error) {
	log := logger.Get().Named("main")
	cleanup := func() {}

	opts := []app.Option{
		app.WithLogger(logger.Get().Named("service")),
		app.WithOwner(cfg.Owner),
		app.WithWorkerCount(cfg.Notify.Workers),
		app.WithQueueSize(cfg.Notify.QueueSize),
		app.WithSessionTTL(cfg.SessionTTL),
		app.WithPartnerFormURL(cfg.PartnerFormURL),
		app.WithMatcher(matching.New(
			matching.WithLocalFirst(cfg.Matching.LocalFirst),
			matching.WithRegionSeparator(cfg.Matching.RegionSeparator),
		)),
	}

	switch {
	case cfg.Catalog.DatabaseURL != "":
		pg, err := catalog.NewPostgres(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open catalog database: %w", err)
		}
		cleanup = pg.Close
		opts = append(opts, app.WithCatalog(pg))
		log.Info(ctx, "using postgres catalog")
	case cfg.Catalog.File != "":
		static, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, cleanup, fmt.Errorf("load catalog file: %w", err)
		}
		opts = append(opts, app.WithCatalog(static))
		log.Info(ctx, "using catalog file", logger.String("file", cfg.Catalog.File))
	}

	var source directory.Source
	if cfg.Directory.SheetURL != "" {
		source = directory.NewSheetSource(cfg.Directory.SheetURL)
	}
	opts = append(opts, app.WithDirectory(directory.New(source,
		directory.WithTTL(cfg.Directory.TTL),
		directory.WithFetchTimeout(cfg.Directory.FetchTimeout),
	)))

	if cfg.SessionStore == config.StoreRedis {
		store, err := repository.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			repository.WithRedisTTL(cfg.SessionTTL))
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect session store: %w", err)
		}
		opts = append(opts, app.WithSessionStore(store))
		log.Info(ctx, "using redis session store", logger.String("addr", cfg.Redis.Addr))
	}

	return app.New(opts...), cleanup, nil
}

// buildHandler wires the router, middleware, docs and UI.
func buildHandler(ctx context.Context, cfg *config.Config, svc *app.Service) (http.Handler, error) {
	limit, err := api.RateLimit(cfg.HTTP.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return api.NewRouter(api.RouterConfig{
		Server:    api.NewServer(svc, svc),
		Secure:    api.SecurityHeaders(cfg.HTTP.Development),
		RateLimit: limit,
		Routes: []func(chi.Router){
			func(r chi.Router) { swagger.Register(ctx, r) },
			func(r chi.Router) { site.Register(ctx, r) },
		},
	}), nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue and session gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
