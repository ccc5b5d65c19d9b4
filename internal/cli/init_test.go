package cli

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scadenze/internal/config"
	"scadenze/internal/log"
)

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("STORE_BACKEND", "sheets")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "invalid store backend")
}

func TestSetupLoggerInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.Defaults()
	cfg.LogLevel = "warn"
	logger := SetupLogger(cfg, log.ComponentWorker)

	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestCreateBackendMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = "memory"
	cfg.LedgerBackend = "memory"
	cfg.DataDirectory = t.TempDir()

	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})

	result, err := CreateBackend(context.Background(), logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })

	obligations, err := result.Engine.ListObligations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, obligations)
	assert.Contains(t, buf.String(), "Initialized memory backend")
}

func TestCreateBackendSQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "scadenze.db")

	result, err := CreateBackend(context.Background(), log.New(log.DefaultConfig()), cfg)
	require.NoError(t, err)
	require.NoError(t, result.Cleanup())
}
