package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scadenze/internal/config"
	"scadenze/internal/core"
	"scadenze/internal/services"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Store: MemoryBackend, Ledger: MemoryBackend}, false},
		{"sqlite", Config{Store: SQLiteBackend, Ledger: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Store: SQLiteBackend, Ledger: MemoryBackend}, true},
		{"sheets cannot store obligations", Config{Store: SheetsBackend, Ledger: MemoryBackend}, true},
		{"sheets ledger without spreadsheet", Config{Store: MemoryBackend, Ledger: SheetsBackend}, true},
		{"unknown ledger", Config{Store: MemoryBackend, Ledger: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.StoreBackend = "memory"
	app.LedgerBackend = "memory"
	app.MaxLookbackPeriods = 6
	app.LookupConcurrency = 2

	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Store)
	assert.Equal(t, 6, cfg.Engine.Detector.MaxLookbackPeriods)
	assert.Equal(t, 2, cfg.Engine.LookupConcurrency)
	assert.NotNil(t, cfg.Engine.Clock)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := "obligations:\n  - label: Rent\n    amount: \"750\"\n    frequency: monthly\n    dayOfMonth: 1\n    createdAt: \"2024-01-01\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_obligations.yaml"), []byte(seed), 0o644))

	engine := services.DefaultEngineConfig()
	engine.Clock = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }

	result, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Store:         MemoryBackend,
		Ledger:        MemoryBackend,
		DataDirectory: dir,
		Engine:        engine,
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, result.Cleanup()) }()

	assert.Nil(t, result.Events)
	obligations, err := result.Engine.ListObligations(context.Background())
	require.NoError(t, err)
	require.Len(t, obligations, 1)
	assert.Equal(t, "Rent", obligations[0].Label)

	// Store and ledger share the same memory instance.
	ref, err := result.Engine.AcceptOccurrence(context.Background(), "Rent", core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	movements, err := result.Ledger.ListMovements(context.Background(), "Rent")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, ref, movements[0].Ref)
}

func TestCreateBackend_SQLiteSharedByStoreAndLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scadenze.db")

	result, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Store:        SQLiteBackend,
		Ledger:       SQLiteBackend,
		SQLiteDBPath: dbPath,
		Engine:       services.DefaultEngineConfig(),
	})
	require.NoError(t, err)

	assert.Same(t, result.Store, result.Ledger)
	require.NoError(t, result.Cleanup())
	// A second cleanup has nothing left to close.
	assert.NoError(t, result.Cleanup())
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Store: "bogus", Ledger: MemoryBackend})
	assert.Error(t, err)
}
