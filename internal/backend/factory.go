package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finboard/internal/amqp"
	"finboard/internal/providers"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	snapmemory "finboard/internal/sheets/memory"
	"finboard/internal/storage"
	"finboard/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the store and wires the provider and the optional broker and
// snapshot sink. Optional parts that fail to start are logged and left out.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{}
	var closers []func() error

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store = repo
		closers = append(closers, repo.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		res.Store = memory.New()
		f.logger.Info("Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	res.Provider = f.createProvider(config)
	res.Snapshots = f.createSnapshotWriter(ctx, config)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, jobs will run inline", "error", err)
		} else {
			res.AMQP = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createProvider(config Config) providers.Provider {
	var p providers.Provider
	switch config.Provider {
	case EODHDProvider:
		opts := []providers.ClientOption{providers.WithLogger(f.logger)}
		if config.EODHDBaseURL != "" {
			opts = append(opts, providers.WithBaseURL(config.EODHDBaseURL))
		}
		p = providers.NewEODHDClient(config.EODHDAPIKey, opts...)
	default:
		p = providers.NewStaticProvider()
	}

	retries := config.ProviderRetries
	if retries < 1 {
		retries = 1
	}
	f.logger.Info("Initialized market data provider", "provider", config.Provider, "retries", retries)
	return providers.NewRetrying(p, retries, config.RetryBaseDelay)
}

func (f *DefaultFactory) createSnapshotWriter(ctx context.Context, config Config) sheets.SnapshotWriter {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, snapshots kept in memory")
		return snapmemory.New()
	}
	client, err := gsheet.Open(ctx, config.GoogleSpreadsheetID, config.SnapshotSheetName)
	if err != nil {
		f.logger.Warn("Failed to initialize Google Sheets client, snapshots kept in memory", "error", err)
		return snapmemory.New()
	}
	f.logger.Info("Initialized Google Sheets snapshot export")
	return client
}
