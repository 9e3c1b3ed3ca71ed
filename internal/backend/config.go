package backend

import (
	"fmt"
	"time"

	"finboard/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Provider:        ProviderType(appConfig.Provider),
		EODHDAPIKey:     appConfig.EODHDAPIKey,
		EODHDBaseURL:    appConfig.EODHDBaseURL,
		ProviderRetries: appConfig.ProviderRetries,
		RetryBaseDelay:  200 * time.Millisecond,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		SnapshotSheetName:   appConfig.SnapshotSheetName,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if !c.Provider.IsValid() {
		return fmt.Errorf("invalid provider: %s", c.Provider)
	}
	if c.Provider == EODHDProvider && c.EODHDAPIKey == "" {
		return fmt.Errorf("EODHD API key is required for eodhd provider")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}
