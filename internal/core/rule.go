package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRule is the class of every creation/edit validation failure.
	ErrInvalidRule = errors.New("invalid rule")

	ErrMissingRule       = errors.New("missing recurrence rule")
	ErrUnknownFrequency  = errors.New("unknown frequency")
	ErrParameterMismatch = errors.New("rule parameters do not match frequency")
	ErrInvalidDayOfMonth = errors.New("day of month must be between 1 and 31")
	ErrInvalidWeekday    = errors.New("invalid weekday")
	ErrInvalidMonth      = errors.New("month must be between 1 and 12")
	ErrInvalidDay        = errors.New("day does not exist in month")
)

// Rule is a recurrence rule. The concrete variants are MonthlyRule, WeeklyRule
// and AnnualRule; the unexported method closes the set.
type Rule interface {
	Frequency() Frequency
	Validate() error
	String() string
	isRule()
}

// MonthlyRule recurs on DayOfMonth, clamped to the last day of shorter months.
type MonthlyRule struct {
	DayOfMonth int
}

// WeeklyRule recurs every week on Weekday.
type WeeklyRule struct {
	Weekday time.Weekday
}

// AnnualRule recurs every year on Month/Day; Feb 29 falls on Feb 28 in common years.
type AnnualRule struct {
	Month time.Month
	Day   int
}

func (MonthlyRule) Frequency() Frequency { return Monthly }
func (WeeklyRule) Frequency() Frequency  { return Weekly }
func (AnnualRule) Frequency() Frequency  { return Annual }

func (MonthlyRule) isRule() {}
func (WeeklyRule) isRule()  {}
func (AnnualRule) isRule()  {}

func (r MonthlyRule) Validate() error {
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return &ValidationError{Field: "dayOfMonth", Err: ErrInvalidDayOfMonth}
	}
	return nil
}

func (r WeeklyRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return &ValidationError{Field: "weekday", Err: ErrInvalidWeekday}
	}
	return nil
}

func (r AnnualRule) Validate() error {
	if r.Month < time.January || r.Month > time.December {
		return &ValidationError{Field: "monthDay", Err: ErrInvalidMonth}
	}
	// 2000 is a leap year, so Feb 29 is accepted here and clamped later.
	if r.Day < 1 || r.Day > DaysInMonth(2000, r.Month) {
		return &ValidationError{Field: "monthDay", Err: ErrInvalidDay}
	}
	return nil
}

func (r MonthlyRule) String() string {
	return fmt.Sprintf("monthly on day %d", r.DayOfMonth)
}

func (r WeeklyRule) String() string {
	return "weekly on " + WeekdayName(r.Weekday)
}

func (r AnnualRule) String() string {
	return fmt.Sprintf("annual on %02d-%02d", int(r.Month), r.Day)
}

// RuleSpec is the flat form of a rule used at the storage, wire and CLI
// boundaries. Only the fields belonging to Frequency may be set.
type RuleSpec struct {
	Frequency  Frequency
	DayOfMonth int
	Weekday    string
	Month      int
	Day        int
}

// Rule converts the flat form into a validated tagged rule.
func (s RuleSpec) Rule() (Rule, error) {
	var r Rule
	switch s.Frequency {
	case Monthly:
		if s.Weekday != "" || s.Month != 0 || s.Day != 0 {
			return nil, &ValidationError{Field: "frequency", Err: ErrParameterMismatch}
		}
		r = MonthlyRule{DayOfMonth: s.DayOfMonth}
	case Weekly:
		if s.DayOfMonth != 0 || s.Month != 0 || s.Day != 0 {
			return nil, &ValidationError{Field: "frequency", Err: ErrParameterMismatch}
		}
		wd, err := ParseWeekday(s.Weekday)
		if err != nil {
			return nil, &ValidationError{Field: "weekday", Err: err}
		}
		r = WeeklyRule{Weekday: wd}
	case Annual:
		if s.DayOfMonth != 0 || s.Weekday != "" {
			return nil, &ValidationError{Field: "frequency", Err: ErrParameterMismatch}
		}
		r = AnnualRule{Month: time.Month(s.Month), Day: s.Day}
	case "":
		return nil, &ValidationError{Field: "frequency", Err: ErrMissingRule}
	default:
		return nil, &ValidationError{Field: "frequency", Err: fmt.Errorf("%w: %s", ErrUnknownFrequency, s.Frequency)}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// SpecOf flattens a rule.
func SpecOf(r Rule) RuleSpec {
	switch v := r.(type) {
	case MonthlyRule:
		return RuleSpec{Frequency: Monthly, DayOfMonth: v.DayOfMonth}
	case WeeklyRule:
		return RuleSpec{Frequency: Weekly, Weekday: WeekdayName(v.Weekday)}
	case AnnualRule:
		return RuleSpec{Frequency: Annual, Month: int(v.Month), Day: v.Day}
	default:
		return RuleSpec{}
	}
}

// ParseWeekday accepts full English names or three-letter abbreviations, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalidWeekday
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// WeekdayName returns the lowercase English weekday name.
func WeekdayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}
