package backend

import (
	"context"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/ledger"
	"scadenze/internal/services"
)

// Store is the obligation and rejection persistence the engine needs.
type Store interface {
	services.ObligationStore
	services.RejectionLedger
}

// Ledger is a ledger collaborator that can also list movement history.
type Ledger interface {
	ledger.Ledger
	ledger.MovementLister
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired engine, the stores behind it and a
// cleanup function releasing every opened resource.
type BackendResult struct {
	Engine *services.Engine
	Store  Store
	Ledger Ledger

	// Events is nil when AMQP is not configured or unreachable.
	Events *amqp.Client

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Where obligations and rejections live
	Store BackendType
	// Where movements live
	Ledger BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
	SheetsCacheTTL      time.Duration

	Engine services.EngineConfig
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CanStoreObligations reports whether the backend can hold obligations and
// rejections. Sheets only ever holds movements.
func (bt BackendType) CanStoreObligations() bool {
	return bt == SQLiteBackend || bt == MemoryBackend
}
