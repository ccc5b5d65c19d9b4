package backend

import (
	"fmt"

	"scadenze/internal/config"
	"scadenze/internal/services"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	engine := services.DefaultEngineConfig()
	engine.Detector.MaxLookbackPeriods = appConfig.MaxLookbackPeriods
	engine.LookupConcurrency = appConfig.LookupConcurrency

	cfg := Config{
		Store:  BackendType(appConfig.StoreBackend),
		Ledger: BackendType(appConfig.LedgerBackend),

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDirectory,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
		SheetsCacheTTL:      appConfig.SheetsCacheTTL,

		Engine: engine,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() || !c.Store.CanStoreObligations() {
		return fmt.Errorf("invalid store backend: %s", c.Store)
	}
	if !c.Ledger.IsValid() {
		return fmt.Errorf("invalid ledger backend: %s", c.Ledger)
	}

	if (c.Store == SQLiteBackend || c.Ledger == SQLiteBackend) && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.Ledger == SheetsBackend && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets ledger")
	}
	// AMQP is optional, so we don't validate it

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend}
}
