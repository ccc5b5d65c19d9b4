package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Monthly Frequency = "monthly"
	Weekly  Frequency = "weekly"
	Annual  Frequency = "annual"
)

// OriginRecurring marks ledger movements generated from an obligation.
const OriginRecurring Origin = "recurring"

const maxLabelLength = 200

// MaxAmount is the largest amount a single obligation may carry.
var MaxAmount = decimal.NewFromInt(10000)

type (
	Frequency string

	// Origin tells who produced a ledger movement.
	Origin string

	// MovementRef identifies a movement inside the ledger collaborator.
	MovementRef string

	// Obligation is a recurring financial commitment. Label is the natural key.
	Obligation struct {
		Label     string
		Amount    decimal.Decimal
		Rule      Rule
		CreatedAt Date
	}

	// PeriodKey identifies one scheduled instance of an obligation.
	PeriodKey struct {
		Label        string
		ExpectedDate Date
	}

	RejectionRecord struct {
		Label       string
		RejectedFor Date
		RejectedAt  Date
	}

	// PendingOccurrence is an elapsed period that still needs a user decision.
	// It is recomputed on every reconciliation pass and never persisted.
	PendingOccurrence struct {
		Obligation   Obligation
		ExpectedDate Date
		DaysOverdue  int
	}

	// Movement is a ledger entry as seen by the engine.
	Movement struct {
		Ref    MovementRef
		Date   Date
		Amount decimal.Decimal
		Label  string
		Origin Origin
	}
)

var (
	ErrEmptyLabel          = errors.New("empty label")
	ErrLabelTooLong        = fmt.Errorf("label too long (max %d characters)", maxLabelLength)
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountOutOfRange    = fmt.Errorf("%w: must be greater than 0 and at most 10000", ErrInvalidAmount)
	ErrMissingCreatedAt    = errors.New("missing creation date")
	ErrObligationNotFound  = errors.New("obligation not found")
	ErrDuplicateObligation = errors.New("obligation with this label already exists")
)

// ValidationError reports which field of an obligation failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes every validation failure match ErrInvalidRule, the single error
// class callers check at obligation creation or edit time.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRule
}

// Key returns the period identity of this occurrence.
func (p PendingOccurrence) Key() PeriodKey {
	return PeriodKey{Label: p.Obligation.Label, ExpectedDate: p.ExpectedDate}
}

// ID is a stable string form of the key, usable as a map key or idempotency key.
func (k PeriodKey) ID() string {
	return k.Label + "|" + k.ExpectedDate.String()
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%s@%s", k.Label, k.ExpectedDate)
}

// ValidateAmount enforces 0 < amount <= MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return ErrAmountOutOfRange
	}
	return nil
}

func (o Obligation) Validate() error {
	label := strings.TrimSpace(o.Label)
	if label == "" {
		return &ValidationError{Field: "label", Err: ErrEmptyLabel}
	}
	if len(label) > maxLabelLength {
		return &ValidationError{Field: "label", Err: ErrLabelTooLong}
	}

	if err := ValidateAmount(o.Amount); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}

	if o.Rule == nil {
		return &ValidationError{Field: "frequency", Err: ErrMissingRule}
	}
	if err := o.Rule.Validate(); err != nil {
		return err
	}

	if o.CreatedAt.IsZero() {
		return &ValidationError{Field: "createdAt", Err: ErrMissingCreatedAt}
	}
	return nil
}

// Frequency returns the frequency of the obligation's rule.
func (o Obligation) Frequency() Frequency {
	if o.Rule == nil {
		return ""
	}
	return o.Rule.Frequency()
}
