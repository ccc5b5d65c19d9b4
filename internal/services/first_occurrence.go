package services

import "scadenze/internal/core"

// Decision is the user's answer to a first-occurrence prompt.
type Decision string

const (
	DecisionMaterialize Decision = "materialize"
	DecisionSkip        Decision = "skip"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionMaterialize, DecisionSkip:
		return d, nil
	default:
		return "", ErrUnknownDecision
	}
}

// FirstOccurrencePrompt is raised once, when an obligation is created after
// its own period's scheduled date. The detector never reports that date
// because it precedes createdAt, so the prompt is the only way to record it.
type FirstOccurrencePrompt struct {
	Obligation   core.Obligation `json:"-"`
	Label        string          `json:"label"`
	ExpectedDate core.Date       `json:"expectedDate"`
}

// DetectFirstOccurrenceInPast returns the prompt for o, if any.
func DetectFirstOccurrenceInPast(o core.Obligation) (*FirstOccurrencePrompt, bool) {
	if o.Rule == nil || o.CreatedAt.IsZero() {
		return nil, false
	}
	current := CurrentOccurrence(o.Rule, o.CreatedAt)
	if !current.Before(o.CreatedAt) {
		return nil, false
	}
	return &FirstOccurrencePrompt{
		Obligation:   o,
		Label:        o.Label,
		ExpectedDate: current,
	}, true
}

// Materialize returns the command that records the past occurrence.
func (p *FirstOccurrencePrompt) Materialize() ResolveFirstOccurrence {
	return ResolveFirstOccurrence{Label: p.Label, ExpectedDate: p.ExpectedDate, Decision: DecisionMaterialize}
}

// Skip returns the command that leaves the past occurrence unrecorded.
// Skipping persists nothing and does not affect later periods.
func (p *FirstOccurrencePrompt) Skip() ResolveFirstOccurrence {
	return ResolveFirstOccurrence{Label: p.Label, ExpectedDate: p.ExpectedDate, Decision: DecisionSkip}
}
