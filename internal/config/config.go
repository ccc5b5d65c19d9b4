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

	"gopkg.in/yaml.v3"
)

var (
	validStoreBackends  = []string{"memory", "sqlite"}
	validLedgerBackends = []string{"memory", "sqlite", "sheets"}
	validLogLevels      = []string{"debug", "info", "warn", "error"}
	validLogFormats     = []string{"text", "json"}
)

type Config struct {
	// HTTP Server
	Port               string   `yaml:"port"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	AllowedOrigins     []string `yaml:"cors_allowed_origins"`

	// Backend selection
	StoreBackend  string `yaml:"store_backend"`
	LedgerBackend string `yaml:"ledger_backend"`

	// Database
	SQLiteDBPath  string `yaml:"sqlite_db_path"`
	DataDirectory string `yaml:"data_directory"`

	// AMQP (optional; empty URL disables events)
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets ledger
	GoogleSpreadsheetID string        `yaml:"google_spreadsheet_id"`
	GoogleSheetName     string        `yaml:"google_sheet_name"`
	SheetsCacheTTL      time.Duration `yaml:"sheets_cache_ttl"`

	// Reconciliation
	MaxLookbackPeriods int    `yaml:"max_lookback_periods"`
	LookupConcurrency  int    `yaml:"lookup_concurrency"`
	ReconcileCron      string `yaml:"reconcile_cron"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,
		AllowedOrigins:     []string{"http://localhost:5173"},

		StoreBackend:  "sqlite",
		LedgerBackend: "sqlite",

		SQLiteDBPath:  "./data/scadenze.db",
		DataDirectory: "data",

		AMQPExchange: "scadenze",
		AMQPQueue:    "occurrence_events",

		GoogleSheetName: "Scadenze",
		SheetsCacheTTL:  2 * time.Minute,

		MaxLookbackPeriods: 24,
		LookupConcurrency:  4,
		ReconcileCron:      "0 0 8 * * *",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.StoreBackend = getEnv("STORE_BACKEND", cfg.StoreBackend)
	cfg.LedgerBackend = getEnv("LEDGER_BACKEND", cfg.LedgerBackend)

	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DataDirectory = getEnv("DATA_DIRECTORY", cfg.DataDirectory)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.SheetsCacheTTL = getEnvDuration("SHEETS_CACHE_TTL", cfg.SheetsCacheTTL)

	cfg.MaxLookbackPeriods = getEnvInt("MAX_LOOKBACK_PERIODS", cfg.MaxLookbackPeriods)
	cfg.LookupConcurrency = getEnvInt("LOOKUP_CONCURRENCY", cfg.LookupConcurrency)
	cfg.ReconcileCron = getEnv("RECONCILE_CRON", cfg.ReconcileCron)

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// UsesSQLite reports whether any backend needs the SQLite database.
func (c *Config) UsesSQLite() bool {
	return c.StoreBackend == "sqlite" || c.LedgerBackend == "sqlite"
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate backends
	if !slices.Contains(validStoreBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validStoreBackends))
	}
	if !slices.Contains(validLedgerBackends, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validLedgerBackends))
	}

	// Validate SQLite configuration if any backend is sqlite
	if c.UsesSQLite() {
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

	// Validate AMQP URL if provided
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

	// Validate Google Sheets configuration if the ledger lives there
	if c.LedgerBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets ledger")
		}
	}
	if c.SheetsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid sheets cache TTL %v: must not be negative", c.SheetsCacheTTL))
	}

	// Validate reconciliation settings
	if c.MaxLookbackPeriods < 1 || c.MaxLookbackPeriods > 120 {
		errors = append(errors, fmt.Sprintf("invalid max lookback periods %d: must be between 1 and 120", c.MaxLookbackPeriods))
	}
	if c.LookupConcurrency < 1 || c.LookupConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid lookup concurrency %d: must be between 1 and 64", c.LookupConcurrency))
	}
	if strings.TrimSpace(c.ReconcileCron) == "" {
		errors = append(errors, "reconcile cron expression cannot be empty")
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
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

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
