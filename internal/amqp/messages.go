package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"scadenze/internal/core"
)

// EventType tells consumers what happened to an occurrence.
type EventType string

const (
	// EventPending is a reminder produced by a reconciliation pass.
	EventPending EventType = "pending"
	// EventMaterialized follows a successful acceptance.
	EventMaterialized EventType = "materialized"
	// EventRejected follows a rejection.
	EventRejected EventType = "rejected"
)

// OccurrenceEvent describes a state change of one occurrence period.
// Amount is a decimal string so consumers never see float rounding.
type OccurrenceEvent struct {
	Type         EventType `json:"type"`
	Label        string    `json:"label"`
	ExpectedDate string    `json:"expected_date"`
	Amount       string    `json:"amount"`
	DaysOverdue  int       `json:"days_overdue,omitempty"`
	MovementRef  string    `json:"movement_ref,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewOccurrenceEvent builds an event for p.
func NewOccurrenceEvent(t EventType, p core.PendingOccurrence, ref core.MovementRef) *OccurrenceEvent {
	return &OccurrenceEvent{
		Type:         t,
		Label:        p.Obligation.Label,
		ExpectedDate: p.ExpectedDate.String(),
		Amount:       p.Obligation.Amount.StringFixed(2),
		DaysOverdue:  p.DaysOverdue,
		MovementRef:  string(ref),
		Timestamp:    time.Now(),
	}
}

// Key returns the period the event refers to.
func (e *OccurrenceEvent) Key() (core.PeriodKey, error) {
	date, err := core.ParseDate(e.ExpectedDate)
	if err != nil {
		return core.PeriodKey{}, err
	}
	return core.PeriodKey{Label: e.Label, ExpectedDate: date}, nil
}

// Validate checks the fields every consumer relies on.
func (e *OccurrenceEvent) Validate() error {
	switch e.Type {
	case EventPending, EventMaterialized, EventRejected:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Label == "" {
		return fmt.Errorf("event without label")
	}
	if _, err := e.Key(); err != nil {
		return fmt.Errorf("event expected date: %w", err)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *OccurrenceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// OccurrenceEventFromJSON creates an event from JSON bytes
func OccurrenceEventFromJSON(data []byte) (*OccurrenceEvent, error) {
	var ev OccurrenceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
