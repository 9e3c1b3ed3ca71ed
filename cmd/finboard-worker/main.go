package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finboard/internal/cli"
	"finboard/internal/fx"
	applog "finboard/internal/log"
	"finboard/internal/market"
	"finboard/internal/services"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting finboard-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	be := cli.InitBackend(context.Background(), logger, cfg)

	resolver := fx.NewResolver(be.Store, be.Provider, logger.Slog(applog.ComponentFX))
	lookup := market.NewLookup(be.Store, be.Provider, market.WithLogger(logger.Slog(applog.ComponentMarket)))
	// Exports run once per job; past series points are not worth caching here.
	summaries := services.NewSummaryService(be.Store, resolver, lookup, nil, services.SummaryConfig{
		Concurrency: cfg.SummaryConcurrency,
	})
	refresher := fx.NewRefresher(be.Store, be.Provider, cfg.FxRefreshConcurrency, logger.Slog(applog.ComponentFX))
	snapshots := services.NewSnapshotService(summaries, be.Snapshots)
	jobWorker := worker.NewJobWorker(refresher, snapshots)

	processor := services.NewFxProcessor(refresher, services.FxProcessorConfig{
		Interval: cfg.FxRefreshInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("FX processor stop error", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start FX processor", "error", err)
		os.Exit(1)
	}

	if be.AMQP != nil {
		go func() {
			if err := be.AMQP.Consume(ctx, jobWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming jobs", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP not configured, running scheduled FX refresh only")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
