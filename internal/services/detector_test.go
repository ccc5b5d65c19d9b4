package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

func alquiler() core.Obligation {
	return core.Obligation{
		Label:     "Alquiler",
		Amount:    decimal.NewFromInt(650),
		Rule:      core.MonthlyRule{DayOfMonth: 1},
		CreatedAt: core.NewDate(2024, time.January, 1),
	}
}

func key(label string, y int, m time.Month, d int) core.PeriodKey {
	return core.PeriodKey{Label: label, ExpectedDate: core.NewDate(y, m, d)}
}

func TestFindPending_AlquilerMarch(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	today := core.NewDate(2024, time.March, 5)

	materialized := core.NewPeriodSet(key("Alquiler", 2024, time.January, 1))
	rejections := core.NewPeriodSet(key("Alquiler", 2024, time.February, 1))

	got := d.FindPending([]core.Obligation{alquiler()}, rejections, materialized, today)
	if len(got) != 1 {
		t.Fatalf("FindPending() returned %d items, want 1: %+v", len(got), got)
	}
	if !got[0].ExpectedDate.Equal(core.NewDate(2024, time.March, 1)) {
		t.Errorf("ExpectedDate = %s, want 2024-03-01", got[0].ExpectedDate)
	}
	if got[0].DaysOverdue != 4 {
		t.Errorf("DaysOverdue = %d, want 4", got[0].DaysOverdue)
	}
}

func TestFindPending_EveryElapsedPeriodReportedIndependently(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	today := core.NewDate(2024, time.March, 5)

	got := d.FindPending([]core.Obligation{alquiler()}, nil, nil, today)
	if len(got) != 3 {
		t.Fatalf("FindPending() returned %d items, want 3", len(got))
	}
	want := []int{4, 33, 64}
	for i, p := range got {
		if p.DaysOverdue != want[i] {
			t.Errorf("item %d DaysOverdue = %d, want %d", i, p.DaysOverdue, want[i])
		}
	}
}

func TestFindPending_Idempotent(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	today := core.NewDate(2024, time.March, 5)
	obligations := []core.Obligation{alquiler()}
	rejections := core.NewPeriodSet(key("Alquiler", 2024, time.February, 1))

	first := d.FindPending(obligations, rejections, nil, today)
	second := d.FindPending(obligations, rejections, nil, today)
	if len(first) != len(second) {
		t.Fatalf("passes differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() || first[i].DaysOverdue != second[i].DaysOverdue {
			t.Errorf("item %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestFindPending_RejectionIsScopedToOnePeriod(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	today := core.NewDate(2024, time.March, 5)
	rejections := core.NewPeriodSet(key("Alquiler", 2024, time.February, 1))

	got := d.FindPending([]core.Obligation{alquiler()}, rejections, nil, today)
	for _, p := range got {
		if p.ExpectedDate.Equal(core.NewDate(2024, time.February, 1)) {
			t.Fatal("rejected February period should not be pending")
		}
	}
	if len(got) != 2 {
		t.Errorf("FindPending() returned %d items, want 2 (January and March)", len(got))
	}
}

func TestFindPending_NothingBeforeCreation(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	o := core.Obligation{
		Label:     "Gym",
		Amount:    decimal.NewFromInt(30),
		Rule:      core.MonthlyRule{DayOfMonth: 5},
		CreatedAt: core.NewDate(2024, time.March, 20),
	}

	if got := d.FindPending([]core.Obligation{o}, nil, nil, core.NewDate(2024, time.April, 4)); len(got) != 0 {
		t.Errorf("FindPending() before first scheduled date = %+v, want none", got)
	}

	got := d.FindPending([]core.Obligation{o}, nil, nil, core.NewDate(2024, time.April, 5))
	if len(got) != 1 || !got[0].ExpectedDate.Equal(core.NewDate(2024, time.April, 5)) {
		t.Fatalf("FindPending() on April 5 = %+v, want only 2024-04-05", got)
	}
	if got[0].DaysOverdue != 0 {
		t.Errorf("DaysOverdue = %d, want 0", got[0].DaysOverdue)
	}
}

func TestFindPending_OccurrenceOnCreationDayIsPending(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	o := core.Obligation{
		Label:     "Internet",
		Amount:    decimal.NewFromInt(25),
		Rule:      core.MonthlyRule{DayOfMonth: 10},
		CreatedAt: core.NewDate(2024, time.May, 10),
	}
	got := d.FindPending([]core.Obligation{o}, nil, nil, core.NewDate(2024, time.May, 10))
	if len(got) != 1 {
		t.Fatalf("FindPending() returned %d items, want 1", len(got))
	}
}

func TestFindPending_FutureCreationIgnored(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	o := alquiler()
	o.CreatedAt = core.NewDate(2030, time.January, 1)
	if got := d.FindPending([]core.Obligation{o}, nil, nil, core.NewDate(2024, time.March, 5)); len(got) != 0 {
		t.Errorf("FindPending() = %+v, want none", got)
	}
}

func TestFindPending_LookbackBound(t *testing.T) {
	tests := []struct {
		name    string
		rule    core.Rule
		periods int
		want    int
	}{
		{"monthly", core.MonthlyRule{DayOfMonth: 1}, 6, 6},
		{"weekly", core.WeeklyRule{Weekday: time.Monday}, 4, 4},
		{"annual", core.AnnualRule{Month: time.January, Day: 1}, 3, 3},
		{"default", core.MonthlyRule{DayOfMonth: 1}, 0, DefaultMaxLookbackPeriods},
	}
	today := core.NewDate(2024, time.March, 5)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(DetectorConfig{MaxLookbackPeriods: tt.periods})
			o := core.Obligation{
				Label:     "Old",
				Amount:    decimal.NewFromInt(10),
				Rule:      tt.rule,
				CreatedAt: core.NewDate(2000, time.January, 1),
			}
			got := d.FindPending([]core.Obligation{o}, nil, nil, today)
			if len(got) != tt.want {
				t.Errorf("FindPending() returned %d items, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFindPending_SortedByOverdueThenLabel(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	created := core.NewDate(2024, time.March, 1)
	obligations := []core.Obligation{
		{Label: "Zeta", Amount: decimal.NewFromInt(1), Rule: core.MonthlyRule{DayOfMonth: 3}, CreatedAt: created},
		{Label: "Alpha", Amount: decimal.NewFromInt(1), Rule: core.MonthlyRule{DayOfMonth: 3}, CreatedAt: created},
		{Label: "Beta", Amount: decimal.NewFromInt(1), Rule: core.MonthlyRule{DayOfMonth: 1}, CreatedAt: created},
	}

	got := d.FindPending(obligations, nil, nil, core.NewDate(2024, time.March, 5))
	wantLabels := []string{"Alpha", "Zeta", "Beta"}
	if len(got) != len(wantLabels) {
		t.Fatalf("FindPending() returned %d items, want %d", len(got), len(wantLabels))
	}
	for i, label := range wantLabels {
		if got[i].Obligation.Label != label {
			t.Errorf("item %d label = %s, want %s", i, got[i].Obligation.Label, label)
		}
	}
}
