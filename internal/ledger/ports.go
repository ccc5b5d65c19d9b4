package ledger

import (
	"context"
	"errors"

	"scadenze/internal/core"
)

// ErrDuplicateMovement is returned by CreateMovement when a movement with the
// same (label, date, origin) already exists.
var ErrDuplicateMovement = errors.New("movement already exists")

// Ports for the ledger collaborator.
type (
	MovementWriter interface {
		// CreateMovement stores m and returns its reference. Implementations
		// must reject a second movement for the same (label, date, origin)
		// with ErrDuplicateMovement.
		CreateMovement(ctx context.Context, m core.Movement) (core.MovementRef, error)
	}

	MovementFinder interface {
		// FindMovement returns nil and no error when no movement matches.
		FindMovement(ctx context.Context, label string, date core.Date, origin core.Origin) (*core.Movement, error)
	}

	// Ledger is the full collaborator consumed by the materialization service.
	Ledger interface {
		MovementWriter
		MovementFinder
	}

	// MovementLister returns the movements recorded for a label, used by the
	// CLI and the API to show history.
	MovementLister interface {
		ListMovements(ctx context.Context, label string) ([]core.Movement, error)
	}
)
