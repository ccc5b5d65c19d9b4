// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for occurrence calculation.
// Each frequency (monthly, weekly, annual) has its own calculator that knows
// how to step from a reference date to the next scheduled date.

package services

import (
	"fmt"
	"time"

	"scadenze/internal/core"
)

// OccurrenceCalculator is the strategy interface for computing scheduled dates.
// Implementations assume the rule's frequency matches the calculator.
type OccurrenceCalculator interface {
	// Next returns the first scheduled date strictly after ref.
	Next(rule core.Rule, ref core.Date) core.Date
	// Current returns the scheduled date that falls in ref's own period.
	Current(rule core.Rule, ref core.Date) core.Date
	// PeriodsBack returns the last day before the window of n periods ending
	// with ref's period. Occurrences strictly after it are at most n.
	PeriodsBack(ref core.Date, n int) core.Date
}

// MonthlyCalculator implements OccurrenceCalculator for monthly rules.
type MonthlyCalculator struct{}

// Next clamps the day to the month's length and moves to the following
// month when the candidate is not after ref.
func (MonthlyCalculator) Next(rule core.Rule, ref core.Date) core.Date {
	day := rule.(core.MonthlyRule).DayOfMonth
	candidate := core.ClampedDate(ref.Year(), ref.Month(), day)
	if candidate.After(ref) {
		return candidate
	}
	y, m := addMonths(ref.Year(), ref.Month(), 1)
	return core.ClampedDate(y, m, day)
}

func (MonthlyCalculator) Current(rule core.Rule, ref core.Date) core.Date {
	return core.ClampedDate(ref.Year(), ref.Month(), rule.(core.MonthlyRule).DayOfMonth)
}

func (MonthlyCalculator) PeriodsBack(ref core.Date, n int) core.Date {
	y, m := addMonths(ref.Year(), ref.Month(), -(n - 1))
	return core.NewDate(y, m, 1).AddDays(-1)
}

// WeeklyCalculator implements OccurrenceCalculator for weekly rules.
// Periods are ISO weeks, Monday to Sunday.
type WeeklyCalculator struct{}

// Next returns the next matching weekday; ref's own weekday yields ref+7.
func (WeeklyCalculator) Next(rule core.Rule, ref core.Date) core.Date {
	target := rule.(core.WeeklyRule).Weekday
	delta := (int(target) - int(ref.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return ref.AddDays(delta)
}

func (WeeklyCalculator) Current(rule core.Rule, ref core.Date) core.Date {
	target := isoWeekdayIndex(rule.(core.WeeklyRule).Weekday)
	return ref.AddDays(target - isoWeekdayIndex(ref.Weekday()))
}

func (WeeklyCalculator) PeriodsBack(ref core.Date, n int) core.Date {
	return ref.AddDays(-7 * n)
}

// AnnualCalculator implements OccurrenceCalculator for annual rules.
type AnnualCalculator struct{}

// Next clamps Feb 29 to Feb 28 in common years and moves to the following
// year when the candidate is not after ref.
func (AnnualCalculator) Next(rule core.Rule, ref core.Date) core.Date {
	r := rule.(core.AnnualRule)
	candidate := core.ClampedDate(ref.Year(), r.Month, r.Day)
	if candidate.After(ref) {
		return candidate
	}
	return core.ClampedDate(ref.Year()+1, r.Month, r.Day)
}

func (AnnualCalculator) Current(rule core.Rule, ref core.Date) core.Date {
	r := rule.(core.AnnualRule)
	return core.ClampedDate(ref.Year(), r.Month, r.Day)
}

func (AnnualCalculator) PeriodsBack(ref core.Date, n int) core.Date {
	return core.NewDate(ref.Year()-n+1, time.January, 1).AddDays(-1)
}

// occurrenceStrategies maps frequencies to their calculators.
var occurrenceStrategies = map[core.Frequency]OccurrenceCalculator{
	core.Monthly: MonthlyCalculator{},
	core.Weekly:  WeeklyCalculator{},
	core.Annual:  AnnualCalculator{},
}

// GetOccurrenceCalculator returns the calculator for a frequency.
// Returns an error if the frequency is not supported.
func GetOccurrenceCalculator(frequency core.Frequency) (OccurrenceCalculator, error) {
	calc, ok := occurrenceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownFrequency, frequency)
	}
	return calc, nil
}

// mustCalculator is used by the pure helpers below. Rule is a closed set, so
// every value reaching it has a registered calculator.
func mustCalculator(rule core.Rule) OccurrenceCalculator {
	calc, err := GetOccurrenceCalculator(rule.Frequency())
	if err != nil {
		panic(err)
	}
	return calc
}

// NextOccurrence returns the first date strictly after ref on which rule is scheduled.
func NextOccurrence(rule core.Rule, ref core.Date) core.Date {
	return mustCalculator(rule).Next(rule, ref)
}

// CurrentOccurrence returns the scheduled date in ref's own period
// (same month, same ISO week or same year). It may be before, on or after ref.
func CurrentOccurrence(rule core.Rule, ref core.Date) core.Date {
	return mustCalculator(rule).Current(rule, ref)
}

// IsOccurrence reports whether date is a scheduled date of rule.
func IsOccurrence(rule core.Rule, date core.Date) bool {
	return NextOccurrence(rule, date.AddDays(-1)).Equal(date)
}

// OccurrencesBetween lists the scheduled dates in (after, through], ascending.
func OccurrencesBetween(rule core.Rule, after, through core.Date) []core.Date {
	calc := mustCalculator(rule)
	var dates []core.Date
	for next := calc.Next(rule, after); !next.After(through); next = calc.Next(rule, next) {
		dates = append(dates, next)
	}
	return dates
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month-1) + n
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// isoWeekdayIndex maps Monday..Sunday to 0..6.
func isoWeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
