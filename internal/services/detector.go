package services

import (
	"sort"

	"scadenze/internal/core"
)

// DefaultMaxLookbackPeriods bounds how far back the detector walks for
// obligations created long ago.
const DefaultMaxLookbackPeriods = 24

// DetectorConfig holds configuration for the pending occurrence detector.
type DetectorConfig struct {
	// MaxLookbackPeriods is the number of periods, ending with today's, that a
	// single pass may report per obligation. Zero or less means the default.
	MaxLookbackPeriods int
}

// DefaultDetectorConfig returns sensible defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{MaxLookbackPeriods: DefaultMaxLookbackPeriods}
}

// Detector computes pending occurrences. It holds no state besides its
// configuration; the stores are passed to each call.
type Detector struct {
	config DetectorConfig
}

func NewDetector(config DetectorConfig) *Detector {
	if config.MaxLookbackPeriods <= 0 {
		config.MaxLookbackPeriods = DefaultMaxLookbackPeriods
	}
	return &Detector{config: config}
}

// Elapsed returns every occurrence with createdAt <= expectedDate <= today,
// limited to the look-back window, without filtering resolved periods.
func (d *Detector) Elapsed(obligations []core.Obligation, today core.Date) []core.PendingOccurrence {
	var out []core.PendingOccurrence
	for _, o := range obligations {
		if o.Rule == nil || o.CreatedAt.After(today) {
			continue
		}
		calc := mustCalculator(o.Rule)

		// Walking from the day before creation makes a scheduled date equal to
		// createdAt count as elapsed.
		start := o.CreatedAt.AddDays(-1)
		if bound := calc.PeriodsBack(today, d.config.MaxLookbackPeriods); bound.After(start) {
			start = bound
		}

		for _, date := range OccurrencesBetween(o.Rule, start, today) {
			out = append(out, core.PendingOccurrence{
				Obligation:   o,
				ExpectedDate: date,
				DaysOverdue:  today.DaysSince(date),
			})
		}
	}
	return out
}

// FindPending returns the elapsed occurrences that are neither rejected nor
// materialized, sorted by DaysOverdue ascending and then by label.
// Running it twice on the same inputs yields the same output.
func (d *Detector) FindPending(obligations []core.Obligation, rejections, materialized core.PeriodLookup, today core.Date) []core.PendingOccurrence {
	pending := make([]core.PendingOccurrence, 0)
	for _, p := range d.Elapsed(obligations, today) {
		key := p.Key()
		if rejections != nil && rejections.Contains(key) {
			continue
		}
		if materialized != nil && materialized.Contains(key) {
			continue
		}
		pending = append(pending, p)
	}
	SortPending(pending)
	return pending
}

// SortPending orders by DaysOverdue ascending, then label, then date.
func SortPending(pending []core.PendingOccurrence) {
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue < b.DaysOverdue
		}
		if a.Obligation.Label != b.Obligation.Label {
			return a.Obligation.Label < b.Obligation.Label
		}
		return a.ExpectedDate.Before(b.ExpectedDate)
	})
}
