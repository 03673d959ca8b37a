package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"retail-dashboard/internal/config"
	"retail-dashboard/internal/errors"
	"retail-dashboard/internal/loader"
	"retail-dashboard/internal/middleware"
	"retail-dashboard/internal/observability"
	"retail-dashboard/internal/server"
	"retail-dashboard/internal/services"
	"retail-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

// dashboardHandler renders the page shell with the selector options taken
// from the loaded master tables.
func dashboardHandler(a *services.Analytics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		stores, err := a.Stores(ctx)
		if err != nil {
			errors.WriteError(w, r, logger, err)
			return
		}
		categories, err := a.Categories(ctx)
		if err != nil {
			errors.WriteError(w, r, logger, err)
			return
		}
		products, err := a.Products(ctx, services.All)
		if err != nil {
			errors.WriteError(w, r, logger, err)
			return
		}

		stats := a.Stats()
		page := templates.PageData{
			Stores:     stores,
			Categories: categories,
			Products:   products,
			Horizon:    stats.HorizonDays,
			MaxHorizon: stats.MaxHorizonDays,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := templates.Dashboard(page).Render(ctx, w); err != nil {
			logger.ErrorContext(ctx, "render dashboard", "error", err)
		}
	}
}

func newAnalytics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*services.Analytics, *loader.Cache) {
	cache := loader.NewCache(loader.New(loader.Options{
		DateLayout:  cfg.Data.DateLayout,
		LoadTimeout: cfg.Data.LoadTimeout,
		Logger:      logger,
		Metrics:     metrics,
	}))

	a := services.NewAnalytics(cache, services.Options{
		Locators: loader.Locators{
			Products:  cfg.Data.Products,
			Stores:    cfg.Data.Stores,
			Calendar:  cfg.Data.Calendar,
			Inventory: cfg.Data.Inventory,
			Sales:     cfg.Data.Sales,
		},
		MinObservations: cfg.Forecast.MinObservations,
		Horizon:         cfg.Forecast.Horizon,
		MaxHorizon:      cfg.Forecast.MaxHorizon,
		Logger:          logger,
		Metrics:         metrics,
	})
	return a, cache
}

const limiterSweepInterval = time.Minute

func newHandler(ctx context.Context, cfg *config.Config, a *services.Analytics, logger *slog.Logger, metrics *observability.Metrics) http.Handler {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardHandler(a, logger),
	}
	srv := server.NewServer(a, logger, metrics, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Cleanup(ctx, limiterSweepInterval)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"sales", cfg.Data.Sales,
	)

	shutdownTracing, err := observability.SetupTracing(cfg.Telemetry, os.Stderr)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	analytics, cache := newAnalytics(cfg, logger, metrics)

	// Failed loads are not cached, so a bad warm load is retried per request.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Data.LoadTimeout)
	start := time.Now()
	if _, err := analytics.Tables(ctx); err != nil {
		logger.Error("failed to load source tables", "error", err)
	} else {
		logger.Info("source tables loaded", "duration", time.Since(start))
	}
	cancel()

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(appCtx, cfg, analytics, logger, metrics),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("purging table cache", "loads", cache.Loads(), "entries", cache.Len())
		cache.Purge()
		return nil
	})
	gracefulServer.RegisterShutdownHook(shutdownTracing)

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(appCtx); err != nil {
		logger.Error("server failed", "error", err)
		stopApp()
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
