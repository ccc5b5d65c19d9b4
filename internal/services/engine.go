package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"scadenze/internal/amqp"
	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

type (
	// ObligationStore persists obligations keyed by label.
	ObligationStore interface {
		// CreateObligation returns core.ErrDuplicateObligation if the label exists.
		CreateObligation(ctx context.Context, o core.Obligation) error
		// UpdateObligation returns core.ErrObligationNotFound if the label is unknown.
		UpdateObligation(ctx context.Context, o core.Obligation) error
		GetObligation(ctx context.Context, label string) (core.Obligation, error)
		ListObligations(ctx context.Context) ([]core.Obligation, error)
		DeleteObligation(ctx context.Context, label string) error
	}

	// RejectionLedger records periods the user chose not to materialize.
	// Rejecting an already rejected period is a no-op.
	RejectionLedger interface {
		Reject(ctx context.Context, r core.RejectionRecord) error
		IsRejected(ctx context.Context, label string, expectedDate core.Date) (bool, error)
		ClearFor(ctx context.Context, label string) error
		ListRejections(ctx context.Context) ([]core.RejectionRecord, error)
	}

	// EventPublisher publishes occurrence events. *amqp.Client implements it.
	EventPublisher interface {
		PublishOccurrenceEvent(ctx context.Context, ev *amqp.OccurrenceEvent) error
	}
)

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	Detector DetectorConfig
	// LookupConcurrency bounds parallel ledger lookups during ListPending.
	LookupConcurrency int
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Detector:          DefaultDetectorConfig(),
		LookupConcurrency: 4,
		Clock:             time.Now,
	}
}

// Engine orchestrates obligations, rejections and the ledger.
type Engine struct {
	obligations  ObligationStore
	rejections   RejectionLedger
	ledger       ledger.Ledger
	publisher    EventPublisher
	detector     *Detector
	materializer *Materializer
	concurrency  int
	clock        func() time.Time
}

// NewEngine wires the engine. publisher may be nil.
func NewEngine(obligations ObligationStore, rejections RejectionLedger, l ledger.Ledger, publisher EventPublisher, config EngineConfig) *Engine {
	if config.LookupConcurrency <= 0 {
		config.LookupConcurrency = 1
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Engine{
		obligations:  obligations,
		rejections:   rejections,
		ledger:       l,
		publisher:    publisher,
		detector:     NewDetector(config.Detector),
		materializer: NewMaterializer(l),
		concurrency:  config.LookupConcurrency,
		clock:        config.Clock,
	}
}

// Today returns the engine's current calendar date.
func (e *Engine) Today() core.Date {
	return core.DateOf(e.clock())
}

// CreateResult is returned by CreateObligation. FirstOccurrence is set when
// the current period's date already passed at creation time.
type CreateResult struct {
	Obligation      core.Obligation        `json:"obligation"`
	FirstOccurrence *FirstOccurrencePrompt `json:"firstOccurrence,omitempty"`
}

// CreateObligation validates and stores o. A zero CreatedAt means today.
func (e *Engine) CreateObligation(ctx context.Context, o core.Obligation) (CreateResult, error) {
	o.Label = strings.TrimSpace(o.Label)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = e.Today()
	}
	if err := o.Validate(); err != nil {
		return CreateResult{}, err
	}

	if err := e.obligations.CreateObligation(ctx, o); err != nil {
		if errors.Is(err, core.ErrDuplicateObligation) {
			return CreateResult{}, err
		}
		return CreateResult{}, &PersistenceError{Op: "create obligation", Err: err}
	}

	result := CreateResult{Obligation: o}
	if prompt, ok := e.firstOccurrence(o); ok {
		result.FirstOccurrence = prompt
	}

	slog.InfoContext(ctx, "Obligation created",
		"label", o.Label,
		"amount", o.Amount.StringFixed(2),
		"rule", o.Rule.String(),
		"created_at", o.CreatedAt.String(),
		"first_occurrence_prompt", result.FirstOccurrence != nil)

	return result, nil
}

// UpdateObligation changes amount and rule. Label and CreatedAt are immutable.
// Already materialized movements keep the amount they were created with.
func (e *Engine) UpdateObligation(ctx context.Context, label string, amount decimal.Decimal, rule core.Rule) (core.Obligation, error) {
	o, err := e.GetObligation(ctx, label)
	if err != nil {
		return core.Obligation{}, err
	}
	o.Amount = amount
	o.Rule = rule
	if err := o.Validate(); err != nil {
		return core.Obligation{}, err
	}

	if err := e.obligations.UpdateObligation(ctx, o); err != nil {
		if errors.Is(err, core.ErrObligationNotFound) {
			return core.Obligation{}, err
		}
		return core.Obligation{}, &PersistenceError{Op: "update obligation", Err: err}
	}

	slog.InfoContext(ctx, "Obligation updated",
		"label", o.Label,
		"amount", o.Amount.StringFixed(2),
		"rule", o.Rule.String())
	return o, nil
}

// DeleteObligation removes the obligation and clears its rejections.
// Ledger movements are left untouched.
func (e *Engine) DeleteObligation(ctx context.Context, label string) error {
	if err := e.obligations.DeleteObligation(ctx, label); err != nil {
		if errors.Is(err, core.ErrObligationNotFound) {
			return err
		}
		return &PersistenceError{Op: "delete obligation", Err: err}
	}
	if err := e.rejections.ClearFor(ctx, label); err != nil {
		return &PersistenceError{Op: "clear rejections", Err: err}
	}

	slog.InfoContext(ctx, "Obligation deleted", "label", label)
	return nil
}

func (e *Engine) GetObligation(ctx context.Context, label string) (core.Obligation, error) {
	o, err := e.obligations.GetObligation(ctx, strings.TrimSpace(label))
	if err != nil {
		if errors.Is(err, core.ErrObligationNotFound) {
			return core.Obligation{}, err
		}
		return core.Obligation{}, &PersistenceError{Op: "get obligation", Err: err}
	}
	return o, nil
}

func (e *Engine) ListObligations(ctx context.Context) ([]core.Obligation, error) {
	obligations, err := e.obligations.ListObligations(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list obligations", Err: err}
	}
	return obligations, nil
}

// PendingAsOf returns the date a pass for asOf actually runs at. A zero or
// future asOf means today, since only elapsed occurrences can be decided.
func (e *Engine) PendingAsOf(asOf core.Date) core.Date {
	today := e.Today()
	if asOf.IsZero() || asOf.After(today) {
		return today
	}
	return asOf
}

// ListPending runs a reconciliation pass as of PendingAsOf(asOf). It reads
// the stores and the ledger but writes nothing.
func (e *Engine) ListPending(ctx context.Context, asOf core.Date) ([]core.PendingOccurrence, error) {
	asOf = e.PendingAsOf(asOf)
	obligations, err := e.ListObligations(ctx)
	if err != nil {
		return nil, err
	}
	records, err := e.rejections.ListRejections(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list rejections", Err: err}
	}
	rejections := core.RejectionSet(records)

	var candidates []core.PeriodKey
	for _, p := range e.detector.Elapsed(obligations, asOf) {
		if !rejections.Contains(p.Key()) {
			candidates = append(candidates, p.Key())
		}
	}

	materialized, err := e.materializedAmong(ctx, candidates)
	if err != nil {
		return nil, err
	}

	pending := e.detector.FindPending(obligations, rejections, materialized, asOf)

	slog.DebugContext(ctx, "Reconciliation pass complete",
		"as_of", asOf.String(),
		"obligations", len(obligations),
		"candidates", len(candidates),
		"pending", len(pending))
	return pending, nil
}

// materializedAmong checks the ledger for each key with bounded parallelism.
func (e *Engine) materializedAmong(ctx context.Context, keys []core.PeriodKey) (core.PeriodSet, error) {
	set := core.NewPeriodSet()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			ok, err := e.materializer.IsMaterialized(gctx, k)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				set.Add(k)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// AcceptOccurrence materializes one elapsed period. Accepting a period twice
// returns the existing reference with ErrAlreadyMaterialized.
func (e *Engine) AcceptOccurrence(ctx context.Context, label string, expectedDate core.Date) (core.MovementRef, error) {
	p, err := e.elapsedOccurrence(ctx, label, expectedDate)
	if err != nil {
		return "", err
	}

	var ref core.MovementRef
	err = e.withPeriodLock(p.Key(), func() error {
		rejected, err := e.rejections.IsRejected(ctx, p.Obligation.Label, expectedDate)
		if err != nil {
			return &PersistenceError{Op: "check rejection", Err: err}
		}
		if rejected {
			return ErrAlreadyRejected
		}
		ref, err = e.materializer.materializeLocked(ctx, p)
		return err
	})
	if err != nil {
		return ref, err
	}
	e.publish(ctx, amqp.NewOccurrenceEvent(amqp.EventMaterialized, p, ref))
	return ref, nil
}

// RejectOccurrence suppresses one elapsed period. It only affects that period.
func (e *Engine) RejectOccurrence(ctx context.Context, label string, expectedDate core.Date) error {
	p, err := e.elapsedOccurrence(ctx, label, expectedDate)
	if err != nil {
		return err
	}

	record := core.RejectionRecord{
		Label:       p.Obligation.Label,
		RejectedFor: expectedDate,
		RejectedAt:  e.Today(),
	}
	err = e.withPeriodLock(p.Key(), func() error {
		done, err := e.materializer.IsMaterialized(ctx, p.Key())
		if err != nil {
			return err
		}
		if done {
			return ErrAlreadyMaterialized
		}
		if err := e.rejections.Reject(ctx, record); err != nil {
			return &PersistenceError{Op: "reject occurrence", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Occurrence rejected",
		"label", record.Label,
		"expected_date", record.RejectedFor.String())
	e.publish(ctx, amqp.NewOccurrenceEvent(amqp.EventRejected, p, ""))
	return nil
}

// withPeriodLock runs fn while no other decision on key is in flight.
func (e *Engine) withPeriodLock(key core.PeriodKey, fn func() error) error {
	unlock := e.materializer.Lock(key)
	defer unlock()
	return fn()
}

// firstOccurrence returns the creation-time prompt for o. It exists only
// while today is still in the period o was created in; once that period
// is over the decision is final.
func (e *Engine) firstOccurrence(o core.Obligation) (*FirstOccurrencePrompt, bool) {
	prompt, ok := DetectFirstOccurrenceInPast(o)
	if !ok || !CurrentOccurrence(o.Rule, e.Today()).Equal(prompt.ExpectedDate) {
		return nil, false
	}
	return prompt, true
}

// ResolveFirstOccurrence answers the creation-time prompt. Materialize
// records the past occurrence once; Skip persists nothing. Both are only
// accepted during the creation period.
func (e *Engine) ResolveFirstOccurrence(ctx context.Context, cmd ResolveFirstOccurrence) (Outcome, error) {
	outcome := Outcome{Command: cmd.CommandName(), Label: cmd.Label, ExpectedDate: cmd.ExpectedDate}

	o, err := e.GetObligation(ctx, cmd.Label)
	if err != nil {
		return outcome, err
	}
	prompt, ok := e.firstOccurrence(o)
	if !ok || (!cmd.ExpectedDate.IsZero() && !prompt.ExpectedDate.Equal(cmd.ExpectedDate)) {
		return outcome, ErrNoFirstOccurrence
	}
	outcome.Label = o.Label
	outcome.ExpectedDate = prompt.ExpectedDate

	switch cmd.Decision {
	case DecisionSkip:
		slog.InfoContext(ctx, "First occurrence skipped",
			"label", o.Label,
			"expected_date", prompt.ExpectedDate.String())
		outcome.Skipped = true
		return outcome, nil
	case DecisionMaterialize:
		p := core.PendingOccurrence{
			Obligation:   o,
			ExpectedDate: prompt.ExpectedDate,
			DaysOverdue:  max(0, e.Today().DaysSince(prompt.ExpectedDate)),
		}
		ref, err := e.materialize(ctx, p)
		outcome.MovementRef = ref
		if errors.Is(err, ErrAlreadyMaterialized) {
			outcome.AlreadyResolved = true
			return outcome, nil
		}
		return outcome, err
	default:
		return outcome, ErrUnknownDecision
	}
}

// Execute runs a command and reports its outcome. ErrAlreadyMaterialized is
// folded into the outcome since it is benign for callers.
func (e *Engine) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	switch c := cmd.(type) {
	case AcceptOccurrence:
		outcome := Outcome{Command: c.CommandName(), Label: c.Label, ExpectedDate: c.ExpectedDate}
		ref, err := e.AcceptOccurrence(ctx, c.Label, c.ExpectedDate)
		outcome.MovementRef = ref
		if errors.Is(err, ErrAlreadyMaterialized) {
			outcome.AlreadyResolved = true
			return outcome, nil
		}
		return outcome, err
	case RejectOccurrence:
		outcome := Outcome{Command: c.CommandName(), Label: c.Label, ExpectedDate: c.ExpectedDate}
		if err := e.RejectOccurrence(ctx, c.Label, c.ExpectedDate); err != nil {
			return outcome, err
		}
		outcome.Rejected = true
		return outcome, nil
	case ResolveFirstOccurrence:
		return e.ResolveFirstOccurrence(ctx, c)
	default:
		return Outcome{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

func (e *Engine) materialize(ctx context.Context, p core.PendingOccurrence) (core.MovementRef, error) {
	ref, err := e.materializer.Materialize(ctx, p)
	if err != nil {
		return ref, err
	}
	e.publish(ctx, amqp.NewOccurrenceEvent(amqp.EventMaterialized, p, ref))
	return ref, nil
}

// elapsedOccurrence loads the obligation and checks that expectedDate is one
// of its scheduled dates in [createdAt, today].
func (e *Engine) elapsedOccurrence(ctx context.Context, label string, expectedDate core.Date) (core.PendingOccurrence, error) {
	o, err := e.GetObligation(ctx, label)
	if err != nil {
		return core.PendingOccurrence{}, err
	}
	today := e.Today()
	if expectedDate.IsZero() ||
		expectedDate.Before(o.CreatedAt) ||
		expectedDate.After(today) ||
		!IsOccurrence(o.Rule, expectedDate) {
		return core.PendingOccurrence{}, fmt.Errorf("%w: %s on %s", ErrNotAnOccurrence, o.Label, expectedDate)
	}
	return core.PendingOccurrence{
		Obligation:   o,
		ExpectedDate: expectedDate,
		DaysOverdue:  today.DaysSince(expectedDate),
	}, nil
}

func (e *Engine) publish(ctx context.Context, ev *amqp.OccurrenceEvent) {
	if e.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping occurrence event", "type", ev.Type)
		return
	}
	if err := e.publisher.PublishOccurrenceEvent(ctx, ev); err != nil {
		// The movement or rejection is already stored.
		slog.WarnContext(ctx, "Failed to publish occurrence event",
			"type", ev.Type,
			"label", ev.Label,
			"expected_date", ev.ExpectedDate,
			"error", err)
	}
}
