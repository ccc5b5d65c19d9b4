package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/cache"
	"scadenze/internal/ledger/google"
	"scadenze/internal/ledger/memory"
	"scadenze/internal/services"
	"scadenze/internal/storage"
)

// sheetsCleanupInterval is how often expired Sheets index entries are swept.
const sheetsCleanupInterval = 5 * time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// build collects the resources opened while wiring a backend so that a
// failure halfway releases what was already opened.
type build struct {
	ctx     context.Context
	config  Config
	logger  *slog.Logger
	sqlite  *storage.SQLiteRepository
	memory  *memory.Store
	closers []CleanupFunc
}

func (b *build) cleanup() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &build{ctx: ctx, config: config, logger: f.logger}
	result, err := b.wire()
	if err != nil {
		if cerr := b.cleanup(); cerr != nil {
			f.logger.Warn("Cleanup after failed backend creation", "error", cerr)
		}
		return nil, err
	}
	result.Cleanup = b.cleanup
	return result, nil
}

func (b *build) wire() (*BackendResult, error) {
	store, err := b.store()
	if err != nil {
		return nil, err
	}
	l, err := b.ledger()
	if err != nil {
		return nil, err
	}

	events := b.events()
	// A nil *amqp.Client must not end up inside a non-nil interface.
	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}

	engine := services.NewEngine(store, store, l, publisher, b.config.Engine)

	b.logger.Info("Initialized backend",
		"store", b.config.Store,
		"ledger", b.config.Ledger,
		"amqp_enabled", events != nil)

	return &BackendResult{
		Engine: engine,
		Store:  store,
		Ledger: l,
		Events: events,
	}, nil
}

func (b *build) store() (Store, error) {
	switch b.config.Store {
	case SQLiteBackend:
		return b.openSQLite()
	case MemoryBackend:
		return b.openMemory()
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", b.config.Store)
	}
}

func (b *build) ledger() (Ledger, error) {
	switch b.config.Ledger {
	case SQLiteBackend:
		return b.openSQLite()
	case MemoryBackend:
		return b.openMemory()
	case SheetsBackend:
		return b.openSheets()
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", b.config.Ledger)
	}
}

// openSQLite opens the database once; store and ledger share it.
func (b *build) openSQLite() (*storage.SQLiteRepository, error) {
	if b.sqlite != nil {
		return b.sqlite, nil
	}
	repo, err := storage.NewSQLiteRepository(b.config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	b.sqlite = repo
	b.closers = append(b.closers, repo.Close)
	b.logger.Info("Initialized SQLite backend", "db_path", b.config.SQLiteDBPath)
	return repo, nil
}

func (b *build) openMemory() (*memory.Store, error) {
	if b.memory != nil {
		return b.memory, nil
	}
	dataDir := b.config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	b.memory = store
	b.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store, nil
}

func (b *build) openSheets() (*google.Client, error) {
	cli, err := google.New(b.ctx, google.Config{
		SpreadsheetID: b.config.GoogleSpreadsheetID,
		SheetName:     b.config.GoogleSheetName,
		CacheTTL:      b.config.SheetsCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	manager := cache.NewManager(b.logger)
	manager.Register(cli)
	manager.StartCleanup(context.Background(), sheetsCleanupInterval)
	b.closers = append(b.closers, func() error {
		manager.Stop()
		return nil
	})

	b.logger.Info("Initialized Google Sheets ledger", "sheet", b.config.GoogleSheetName)
	return cli, nil
}

// events connects to the broker when configured. Failure is logged and the
// backend runs without events.
func (b *build) events() *amqp.Client {
	if b.config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(b.config.AMQPURL, b.config.AMQPExchange, b.config.AMQPQueue)
	if err != nil {
		b.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	b.closers = append(b.closers, client.Close)
	b.logger.Info("Initialized AMQP client",
		"exchange", b.config.AMQPExchange,
		"queue", b.config.AMQPQueue)
	return client
}
