package backend

import (
	"context"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/ports"
	"finboard/internal/providers"
	"finboard/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the infrastructure a binary runs on.
type BackendResult struct {
	Store    ports.Store
	Provider providers.Provider
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP      *amqp.Client
	Snapshots sheets.SnapshotWriter
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Market data
	Provider        ProviderType
	EODHDAPIKey     string
	EODHDBaseURL    string
	ProviderRetries int
	RetryBaseDelay  time.Duration

	// Optional AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional Google Sheets export
	GoogleSpreadsheetID string
	SnapshotSheetName   string
}

// BackendType represents the type of store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ProviderType selects the market data provider.
type ProviderType string

const (
	StaticProvider ProviderType = "static"
	EODHDProvider  ProviderType = "eodhd"
)

func (pt ProviderType) IsValid() bool {
	return pt == StaticProvider || pt == EODHDProvider
}
