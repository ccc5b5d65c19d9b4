package services

import (
	"context"
	"errors"
	"log/slog"

	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

// Materializer turns a pending occurrence into exactly one ledger movement.
type Materializer struct {
	ledger ledger.Ledger
	locks  keyedMutex
}

func NewMaterializer(l ledger.Ledger) *Materializer {
	return &Materializer{ledger: l}
}

// Materialize creates the movement for p. A second call for the same period
// returns the existing reference together with ErrAlreadyMaterialized.
// Ledger failures are returned as *PersistenceError and leave p pending.
func (m *Materializer) Materialize(ctx context.Context, p core.PendingOccurrence) (core.MovementRef, error) {
	unlock := m.Lock(p.Key())
	defer unlock()
	return m.materializeLocked(ctx, p)
}

// Lock serializes decisions on one period. Materialize takes it itself.
func (m *Materializer) Lock(key core.PeriodKey) func() {
	return m.locks.Lock(key.ID())
}

// materializeLocked is Materialize for callers already holding Lock(p.Key()).
func (m *Materializer) materializeLocked(ctx context.Context, p core.PendingOccurrence) (core.MovementRef, error) {
	key := p.Key()
	existing, err := m.ledger.FindMovement(ctx, key.Label, key.ExpectedDate, core.OriginRecurring)
	if err != nil {
		return "", &PersistenceError{Op: "find movement", Err: err}
	}
	if existing != nil {
		slog.DebugContext(ctx, "Occurrence already materialized",
			"label", key.Label,
			"expected_date", key.ExpectedDate.String(),
			"movement_ref", existing.Ref)
		return existing.Ref, ErrAlreadyMaterialized
	}

	ref, err := m.ledger.CreateMovement(ctx, core.Movement{
		Date:   p.ExpectedDate,
		Amount: p.Obligation.Amount,
		Label:  p.Obligation.Label,
		Origin: core.OriginRecurring,
	})
	if errors.Is(err, ledger.ErrDuplicateMovement) {
		// Another process won the race; the ledger constraint kept one copy.
		return m.existingRef(ctx, key), ErrAlreadyMaterialized
	}
	if err != nil {
		return "", &PersistenceError{Op: "create movement", Err: err}
	}

	slog.InfoContext(ctx, "Occurrence materialized",
		"label", key.Label,
		"expected_date", key.ExpectedDate.String(),
		"amount", p.Obligation.Amount.StringFixed(2),
		"movement_ref", ref)
	return ref, nil
}

// IsMaterialized reports whether the ledger already holds the period's movement.
func (m *Materializer) IsMaterialized(ctx context.Context, key core.PeriodKey) (bool, error) {
	existing, err := m.ledger.FindMovement(ctx, key.Label, key.ExpectedDate, core.OriginRecurring)
	if err != nil {
		return false, &PersistenceError{Op: "find movement", Err: err}
	}
	return existing != nil, nil
}

func (m *Materializer) existingRef(ctx context.Context, key core.PeriodKey) core.MovementRef {
	existing, err := m.ledger.FindMovement(ctx, key.Label, key.ExpectedDate, core.OriginRecurring)
	if err != nil || existing == nil {
		return ""
	}
	return existing.Ref
}
