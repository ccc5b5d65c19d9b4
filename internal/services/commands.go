package services

import "scadenze/internal/core"

// Command is a user decision the engine can execute.
type Command interface {
	CommandName() string
}

type (
	// AcceptOccurrence materializes one period.
	AcceptOccurrence struct {
		Label        string
		ExpectedDate core.Date
	}

	// RejectOccurrence suppresses one period.
	RejectOccurrence struct {
		Label        string
		ExpectedDate core.Date
	}

	// ResolveFirstOccurrence answers a FirstOccurrencePrompt.
	ResolveFirstOccurrence struct {
		Label        string
		ExpectedDate core.Date
		Decision     Decision
	}
)

func (AcceptOccurrence) CommandName() string       { return "accept_occurrence" }
func (RejectOccurrence) CommandName() string       { return "reject_occurrence" }
func (ResolveFirstOccurrence) CommandName() string { return "resolve_first_occurrence" }

// Outcome reports what executing a command did.
type Outcome struct {
	Command      string           `json:"command"`
	Label        string           `json:"label"`
	ExpectedDate core.Date        `json:"expectedDate"`
	MovementRef  core.MovementRef `json:"movementRef,omitempty"`
	// AlreadyResolved is set when the period had already been materialized.
	AlreadyResolved bool `json:"alreadyResolved,omitempty"`
	Skipped         bool `json:"skipped,omitempty"`
	Rejected        bool `json:"rejected,omitempty"`
}

// AcceptCommand returns the command that materializes this pending occurrence.
func AcceptCommand(p core.PendingOccurrence) AcceptOccurrence {
	return AcceptOccurrence{Label: p.Obligation.Label, ExpectedDate: p.ExpectedDate}
}

// RejectCommand returns the command that suppresses this pending occurrence.
func RejectCommand(p core.PendingOccurrence) RejectOccurrence {
	return RejectOccurrence{Label: p.Obligation.Label, ExpectedDate: p.ExpectedDate}
}
