package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/fx"
	apphttp "finboard/internal/http"
	applog "finboard/internal/log"
	"finboard/internal/market"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	be := cli.InitBackend(context.Background(), logger, cfg)

	series := cache.NewLRUCache[decimal.Decimal](cfg.SeriesCacheSize, cfg.SeriesCacheTTL)
	caches := cache.NewManager()
	caches.Register(series)
	caches.StartCleanup(10 * time.Minute)

	resolver := fx.NewResolver(be.Store, be.Provider, logger.Slog(applog.ComponentFX))
	lookup := market.NewLookup(be.Store, be.Provider, market.WithLogger(logger.Slog(applog.ComponentMarket)))
	summaries := services.NewSummaryService(be.Store, resolver, lookup, series, services.SummaryConfig{
		Concurrency: cfg.SummaryConcurrency,
	})
	ledger := services.NewLedgerService(be.Store, resolver, summaries)
	refresher := fx.NewRefresher(be.Store, be.Provider, cfg.FxRefreshConcurrency, logger.Slog(applog.ComponentFX))
	snapshots := services.NewSnapshotService(summaries, be.Snapshots)

	var publisher services.JobPublisher
	if be.AMQP != nil {
		publisher = be.AMQP
	}
	jobs := services.NewJobService(refresher, snapshots, publisher).OnRatesChanged(summaries.InvalidateAll)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:      ":" + cfg.Port,
		DevUserID: cfg.DevUserID,
		RateLimit: ratelimit.DefaultConfig(),
		Logger:    logger.WithComponent(applog.ComponentHTTP),
	}, apphttp.Services{
		Summaries: summaries,
		Ledger:    ledger,
		Jobs:      jobs,
		Rates:     resolver,
		Prices:    lookup,
		Ready:     be.Store.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"provider", cfg.Provider,
		"jobs_queued", jobs.CanQueue(),
		"sheets_export", cfg.SheetsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
