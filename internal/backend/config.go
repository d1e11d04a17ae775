package backend

import (
	"fmt"

	"moneyguard/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storageType := StorageType(appConfig.StorageBackend)
	if !storageType.IsValid() {
		return Config{}, fmt.Errorf("invalid storage backend in config: %s", appConfig.StorageBackend)
	}

	return Config{
		Storage:      storageType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		APIBaseURL:     appConfig.APIBaseURL,
		CurrencyAPIURL: appConfig.CurrencyAPIURL,
		RequestTimeout: appConfig.RequestTimeout,

		CacheMaxEntries: appConfig.CacheMaxEntries,
		CacheIdleTTL:    appConfig.CacheIdleTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Storage.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", c.Storage)
	}
	if c.Storage == SQLiteStorage && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite storage")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.CurrencyAPIURL == "" {
		return fmt.Errorf("currency API URL is required")
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets export")
	}
	return nil
}

// GetStorageTypes returns all valid storage types
func GetStorageTypes() []StorageType {
	return []StorageType{SQLiteStorage, MemoryStorage}
}
