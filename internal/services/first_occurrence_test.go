package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

func TestDetectFirstOccurrenceInPast(t *testing.T) {
	tests := []struct {
		name     string
		rule     core.Rule
		created  core.Date
		wantDate string
	}{
		{"monthly day already passed", core.MonthlyRule{DayOfMonth: 5}, core.NewDate(2024, time.March, 20), "2024-03-05"},
		{"monthly day still ahead", core.MonthlyRule{DayOfMonth: 25}, core.NewDate(2024, time.March, 20), ""},
		{"monthly on creation day", core.MonthlyRule{DayOfMonth: 20}, core.NewDate(2024, time.March, 20), ""},
		{"weekly monday seen on thursday", core.WeeklyRule{Weekday: time.Monday}, core.NewDate(2024, time.March, 21), "2024-03-18"},
		{"weekly sunday seen on thursday", core.WeeklyRule{Weekday: time.Sunday}, core.NewDate(2024, time.March, 21), ""},
		{"annual earlier in year", core.AnnualRule{Month: time.January, Day: 31}, core.NewDate(2024, time.March, 20), "2024-01-31"},
		{"annual later in year", core.AnnualRule{Month: time.December, Day: 1}, core.NewDate(2024, time.March, 20), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := core.Obligation{Label: "x", Amount: decimal.NewFromInt(1), Rule: tt.rule, CreatedAt: tt.created}
			prompt, ok := DetectFirstOccurrenceInPast(o)
			if tt.wantDate == "" {
				if ok {
					t.Errorf("unexpected prompt for %s", prompt.ExpectedDate)
				}
				return
			}
			if !ok {
				t.Fatal("expected a prompt")
			}
			if prompt.ExpectedDate.String() != tt.wantDate {
				t.Errorf("ExpectedDate = %s, want %s", prompt.ExpectedDate, tt.wantDate)
			}
		})
	}
}

func TestFirstOccurrencePromptCommands(t *testing.T) {
	o := core.Obligation{
		Label:     "Gym",
		Amount:    decimal.NewFromInt(30),
		Rule:      core.MonthlyRule{DayOfMonth: 5},
		CreatedAt: core.NewDate(2024, time.March, 20),
	}
	prompt, ok := DetectFirstOccurrenceInPast(o)
	if !ok {
		t.Fatal("expected a prompt")
	}

	if cmd := prompt.Materialize(); cmd.Decision != DecisionMaterialize || cmd.Label != "Gym" {
		t.Errorf("Materialize() = %+v", cmd)
	}
	if cmd := prompt.Skip(); cmd.Decision != DecisionSkip || !cmd.ExpectedDate.Equal(prompt.ExpectedDate) {
		t.Errorf("Skip() = %+v", cmd)
	}
}

func TestParseDecision(t *testing.T) {
	for _, s := range []string{"materialize", "skip"} {
		if _, err := ParseDecision(s); err != nil {
			t.Errorf("ParseDecision(%q) error = %v", s, err)
		}
	}
	if _, err := ParseDecision("reject"); err != ErrUnknownDecision {
		t.Errorf("ParseDecision(reject) error = %v, want ErrUnknownDecision", err)
	}
}
