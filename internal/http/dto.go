package http

import (
	"bytes"
	"encoding/json"
	"strings"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

// Amount accepts either a JSON string ("45,00") or a JSON number (45).
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// RuleDTO is the flat wire form of a recurrence rule.
type RuleDTO struct {
	Frequency  string `json:"frequency"`
	DayOfMonth int    `json:"dayOfMonth,omitempty"`
	Weekday    string `json:"weekday,omitempty"`
	Month      int    `json:"month,omitempty"`
	Day        int    `json:"day,omitempty"`
}

func (r RuleDTO) spec() core.RuleSpec {
	return core.RuleSpec{
		Frequency:  core.Frequency(strings.ToLower(strings.TrimSpace(r.Frequency))),
		DayOfMonth: r.DayOfMonth,
		Weekday:    r.Weekday,
		Month:      r.Month,
		Day:        r.Day,
	}
}

func toRuleDTO(rule core.Rule) RuleDTO {
	s := core.SpecOf(rule)
	return RuleDTO{
		Frequency:  string(s.Frequency),
		DayOfMonth: s.DayOfMonth,
		Weekday:    s.Weekday,
		Month:      s.Month,
		Day:        s.Day,
	}
}

type ObligationDTO struct {
	Label     string    `json:"label"`
	Amount    string    `json:"amount"`
	Display   string    `json:"display"`
	Rule      RuleDTO   `json:"rule"`
	Schedule  string    `json:"schedule"`
	CreatedAt core.Date `json:"createdAt"`
}

func toObligationDTO(o core.Obligation) ObligationDTO {
	dto := ObligationDTO{
		Label:     o.Label,
		Amount:    o.Amount.StringFixed(2),
		Display:   core.FormatEUR(o.Amount),
		CreatedAt: o.CreatedAt,
	}
	if o.Rule != nil {
		dto.Rule = toRuleDTO(o.Rule)
		dto.Schedule = o.Rule.String()
	}
	return dto
}

type CreateObligationRequest struct {
	Label  string  `json:"label"`
	Amount Amount  `json:"amount"`
	Rule   RuleDTO `json:"rule"`
	// CreatedAt defaults to today.
	CreatedAt string `json:"createdAt,omitempty"`
}

type UpdateObligationRequest struct {
	Amount Amount  `json:"amount"`
	Rule   RuleDTO `json:"rule"`
}

type CreateObligationResponse struct {
	Obligation      ObligationDTO                   `json:"obligation"`
	FirstOccurrence *services.FirstOccurrencePrompt `json:"firstOccurrence,omitempty"`
}

type PendingDTO struct {
	Label        string    `json:"label"`
	Amount       string    `json:"amount"`
	Display      string    `json:"display"`
	ExpectedDate core.Date `json:"expectedDate"`
	DaysOverdue  int       `json:"daysOverdue"`
}

func toPendingDTO(p core.PendingOccurrence) PendingDTO {
	return PendingDTO{
		Label:        p.Obligation.Label,
		Amount:       p.Obligation.Amount.StringFixed(2),
		Display:      core.FormatEUR(p.Obligation.Amount),
		ExpectedDate: p.ExpectedDate,
		DaysOverdue:  p.DaysOverdue,
	}
}

type PendingResponse struct {
	AsOf    core.Date    `json:"asOf"`
	Pending []PendingDTO `json:"pending"`
}

// OccurrenceRequest names one period of one obligation.
type OccurrenceRequest struct {
	Label        string `json:"label"`
	ExpectedDate string `json:"expectedDate"`
}

type FirstOccurrenceRequest struct {
	Decision string `json:"decision"`
	// ExpectedDate is optional; when set it must match the prompt's date.
	ExpectedDate string `json:"expectedDate,omitempty"`
}

type MovementDTO struct {
	Ref     string    `json:"ref"`
	Date    core.Date `json:"date"`
	Amount  string    `json:"amount"`
	Display string    `json:"display"`
	Label   string    `json:"label"`
	Origin  string    `json:"origin"`
}

func toMovementDTO(m core.Movement) MovementDTO {
	return MovementDTO{
		Ref:     string(m.Ref),
		Date:    m.Date,
		Amount:  m.Amount.StringFixed(2),
		Display: core.FormatEUR(m.Amount),
		Label:   m.Label,
		Origin:  string(m.Origin),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
