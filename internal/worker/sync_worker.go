// Package worker consumes occurrence events outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

// ErrSourceMissing is returned when an event names a movement the primary
// ledger does not hold (yet).
var ErrSourceMissing = errors.New("movement not found in primary ledger")

// ObligationLister lists obligations for the startup catch-up.
type ObligationLister interface {
	ListObligations(ctx context.Context) ([]core.Obligation, error)
}

// Source is the primary ledger the engine writes to.
type Source interface {
	ledger.MovementFinder
	ledger.MovementLister
}

// SyncWorker mirrors materialized movements from the primary ledger into a
// second ledger (typically Google Sheets) and logs reminders. A nil mirror
// turns the worker into a reminder logger only.
type SyncWorker struct {
	source      Source
	mirror      ledger.Ledger
	obligations ObligationLister
	batchSize   int
}

func NewSyncWorker(source Source, mirror ledger.Ledger, obligations ObligationLister, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		source:      source,
		mirror:      mirror,
		obligations: obligations,
		batchSize:   batchSize,
	}
}

// HandleOccurrenceEvent processes a single event from AMQP. Returning an
// error requeues the message.
func (w *SyncWorker) HandleOccurrenceEvent(ctx context.Context, ev *amqp.OccurrenceEvent) error {
	if err := ev.Validate(); err != nil {
		// Malformed events would loop forever if requeued.
		slog.WarnContext(ctx, "Dropping invalid occurrence event", "error", err)
		return nil
	}

	switch ev.Type {
	case amqp.EventPending:
		slog.InfoContext(ctx, "Occurrence pending",
			"label", ev.Label,
			"expected_date", ev.ExpectedDate,
			"days_overdue", ev.DaysOverdue,
			"amount", ev.Amount)
		return nil
	case amqp.EventRejected:
		slog.InfoContext(ctx, "Occurrence rejected",
			"label", ev.Label,
			"expected_date", ev.ExpectedDate)
		return nil
	case amqp.EventMaterialized:
		key, _ := ev.Key()
		return w.mirrorOccurrence(ctx, key)
	default:
		return nil
	}
}

func (w *SyncWorker) mirrorOccurrence(ctx context.Context, key core.PeriodKey) error {
	if w.mirror == nil {
		slog.DebugContext(ctx, "No mirror ledger configured, skipping", "label", key.Label)
		return nil
	}

	m, err := w.source.FindMovement(ctx, key.Label, key.ExpectedDate, core.OriginRecurring)
	if err != nil {
		return fmt.Errorf("find movement in primary ledger: %w", err)
	}
	if m == nil {
		return fmt.Errorf("%w: %s", ErrSourceMissing, key)
	}
	_, err = w.copyMovement(ctx, *m)
	return err
}

// copyMovement writes m to the mirror unless it is already there. It reports
// whether a row was written.
func (w *SyncWorker) copyMovement(ctx context.Context, m core.Movement) (bool, error) {
	existing, err := w.mirror.FindMovement(ctx, m.Label, m.Date, m.Origin)
	if err != nil {
		return false, fmt.Errorf("find movement in mirror: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	ref, err := w.mirror.CreateMovement(ctx, core.Movement{
		Date:   m.Date,
		Amount: m.Amount,
		Label:  m.Label,
		Origin: m.Origin,
	})
	if errors.Is(err, ledger.ErrDuplicateMovement) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored movement",
		"label", m.Label,
		"date", m.Date.String(),
		"amount", core.FormatEUR(m.Amount),
		"source_ref", m.Ref,
		"mirror_ref", ref)
	return true, nil
}

// StartupSyncCheck copies every recurring movement the mirror is missing.
// It recovers from events lost while the worker was down. At most batchSize
// movements are written per call.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (int, error) {
	if w.mirror == nil {
		return 0, nil
	}
	obligations, err := w.obligations.ListObligations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list obligations for startup check: %w", err)
	}

	synced, failed := 0, 0
	for _, o := range obligations {
		movements, err := w.source.ListMovements(ctx, o.Label)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list movements", "label", o.Label, "error", err)
			failed++
			continue
		}
		for _, m := range movements {
			if m.Origin != core.OriginRecurring {
				continue
			}
			if synced >= w.batchSize {
				slog.InfoContext(ctx, "Startup sync batch limit reached", "synced", synced)
				return synced, nil
			}
			written, err := w.copyMovement(ctx, m)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to mirror movement during startup",
					"label", m.Label, "date", m.Date.String(), "error", err)
				failed++
				continue
			}
			if written {
				synced++
			}
		}
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"obligations", len(obligations),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
