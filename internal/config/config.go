package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// DevUserID is the caller identity when a request carries no X-User-ID header.
	DevUserID string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// Market data
	Provider        string
	EODHDAPIKey     string
	EODHDBaseURL    string
	ProviderRetries int

	// AMQP; an empty URL disables background jobs
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets snapshot export; an empty spreadsheet id disables it
	GoogleSpreadsheetID string
	SnapshotSheetName   string

	// Valuation
	SummaryConcurrency int
	SeriesCacheSize    int
	SeriesCacheTTL     time.Duration

	// Worker
	FxRefreshInterval    time.Duration
	FxRefreshConcurrency int

	LogLevel string
}

var (
	validBackends  = []string{"memory", "sqlite"}
	validProviders = []string{"static", "eodhd"}
)

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		DevUserID: getEnv("DEV_USER_ID", "dev-user"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finboard.db"),

		Provider:        getEnv("PROVIDER", "static"),
		EODHDAPIKey:     getEnv("EODHD_API_KEY", ""),
		EODHDBaseURL:    getEnv("EODHD_BASE_URL", ""),
		ProviderRetries: getEnvInt("PROVIDER_RETRIES", 3),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "finboard_jobs"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SnapshotSheetName:   getEnv("SNAPSHOT_SHEET_NAME", "Net Worth"),

		SummaryConcurrency: getEnvInt("SUMMARY_CONCURRENCY", 8),
		SeriesCacheSize:    getEnvInt("SERIES_CACHE_SIZE", 10000),
		SeriesCacheTTL:     getEnvDuration("SERIES_CACHE_TTL", 6*time.Hour),

		FxRefreshInterval:    getEnvDuration("FX_REFRESH_INTERVAL", 6*time.Hour),
		FxRefreshConcurrency: getEnvInt("FX_REFRESH_CONCURRENCY", 4),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// AMQPEnabled reports whether background jobs go through the broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether snapshots can be exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DevUserID) == "" {
		errors = append(errors, "DEV_USER_ID cannot be empty")
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if !slices.Contains(validProviders, c.Provider) {
		errors = append(errors, fmt.Sprintf("invalid provider '%s': must be one of %v", c.Provider, validProviders))
	}
	if c.Provider == "eodhd" && c.EODHDAPIKey == "" {
		errors = append(errors, "EODHD_API_KEY is required when using the eodhd provider")
	}
	if c.ProviderRetries < 1 || c.ProviderRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid provider retries %d: must be between 1 and 10", c.ProviderRetries))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() && strings.TrimSpace(c.SnapshotSheetName) == "" {
		errors = append(errors, "snapshot sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if c.SummaryConcurrency < 1 || c.SummaryConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid summary concurrency %d: must be between 1 and 64", c.SummaryConcurrency))
	}
	if c.SeriesCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid series cache size %d: must be at least 1", c.SeriesCacheSize))
	}
	if c.SeriesCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid series cache TTL %v: must be at least 1 minute", c.SeriesCacheTTL))
	}

	if c.FxRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fx refresh interval %v: must be at least 1 minute", c.FxRefreshInterval))
	} else if c.FxRefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid fx refresh interval %v: must be at most 24 hours", c.FxRefreshInterval))
	}
	if c.FxRefreshConcurrency < 1 || c.FxRefreshConcurrency > 32 {
		errors = append(errors, fmt.Sprintf("invalid fx refresh concurrency %d: must be between 1 and 32", c.FxRefreshConcurrency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
