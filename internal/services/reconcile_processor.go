package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
)

// DefaultReconcileSchedule runs the pass every day at 08:00 (seconds field first).
const DefaultReconcileSchedule = "0 0 8 * * *"

// ReconcileProcessorConfig holds configuration for the reconcile processor
type ReconcileProcessorConfig struct {
	// Schedule is a cron expression with a leading seconds field.
	Schedule string

	// RunOnStart triggers one pass as soon as the processor starts.
	RunOnStart bool
}

// DefaultReconcileProcessorConfig returns sensible defaults
func DefaultReconcileProcessorConfig() ReconcileProcessorConfig {
	return ReconcileProcessorConfig{
		Schedule:   DefaultReconcileSchedule,
		RunOnStart: true,
	}
}

// ReconcileProcessor runs scheduled reconciliation passes and publishes a
// pending event for every occurrence that still needs a decision. It never
// accepts or rejects anything on the user's behalf.
type ReconcileProcessor struct {
	engine    *Engine
	publisher EventPublisher
	config    ReconcileProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	// startup tracks the RunOnStart pass, which runs outside the cron.
	startup sync.WaitGroup
}

// NewReconcileProcessor creates a new reconcile processor
func NewReconcileProcessor(engine *Engine, publisher EventPublisher, config ReconcileProcessorConfig) *ReconcileProcessor {
	if config.Schedule == "" {
		config.Schedule = DefaultReconcileSchedule
	}
	return &ReconcileProcessor{
		engine:    engine,
		publisher: publisher,
		config:    config,
	}
}

// ProcessPending runs one pass as of today and returns how many reminders
// were published. A failed publish is logged and the pass continues.
func (p *ReconcileProcessor) ProcessPending(ctx context.Context, today core.Date) (int, error) {
	if p.engine == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	pending, err := p.engine.ListPending(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list pending occurrences: %w", err)
	}

	slog.InfoContext(ctx, "Processing pending occurrences",
		"pending", len(pending),
		"processing_date", today.String())

	published := 0
	for _, occ := range pending {
		slog.InfoContext(ctx, "Occurrence pending",
			"label", occ.Obligation.Label,
			"expected_date", occ.ExpectedDate.String(),
			"amount", core.FormatEUR(occ.Obligation.Amount),
			"days_overdue", occ.DaysOverdue)

		if p.publisher == nil {
			continue
		}
		if err := p.publisher.PublishOccurrenceEvent(ctx, amqp.NewOccurrenceEvent(amqp.EventPending, occ, "")); err != nil {
			slog.ErrorContext(ctx, "Failed to publish pending reminder",
				"label", occ.Obligation.Label,
				"expected_date", occ.ExpectedDate.String(),
				"error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Reconciliation pass complete",
		"published", published,
		"total_pending", len(pending))

	return published, nil
}

// Start schedules the pass. Returns an error if already running or if the
// schedule does not parse.
func (p *ReconcileProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("reconcile processor is already running")
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(p.config.Schedule, func() { p.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", p.config.Schedule, err)
	}
	c.Start()
	p.cron = c
	p.running = true

	if p.config.RunOnStart {
		p.startup.Add(1)
		go func() {
			defer p.startup.Done()
			p.runOnce(ctx)
		}()
	}

	slog.InfoContext(ctx, "Reconcile processor started", "schedule", p.config.Schedule)
	return nil
}

// Stop stops scheduling and waits for running passes to finish, the startup
// pass included.
func (p *ReconcileProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c := p.cron
	p.running = false
	p.cron = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		p.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Reconcile processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconcile processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ReconcileProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReconcileProcessor) runOnce(ctx context.Context) {
	if _, err := p.ProcessPending(ctx, p.engine.Today()); err != nil {
		slog.ErrorContext(ctx, "Reconciliation pass failed", "error", err)
	}
}
