package core

// PeriodLookup answers whether a period has already been resolved.
type PeriodLookup interface {
	Contains(key PeriodKey) bool
}

// PeriodSet is an in-memory PeriodLookup keyed by PeriodKey.ID.
type PeriodSet map[string]struct{}

func NewPeriodSet(keys ...PeriodKey) PeriodSet {
	s := make(PeriodSet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s PeriodSet) Add(key PeriodKey) {
	s[key.ID()] = struct{}{}
}

func (s PeriodSet) Contains(key PeriodKey) bool {
	_, ok := s[key.ID()]
	return ok
}

// RejectionSet builds the lookup of rejected periods from ledger records.
func RejectionSet(records []RejectionRecord) PeriodSet {
	s := make(PeriodSet, len(records))
	for _, r := range records {
		s.Add(PeriodKey{Label: r.Label, ExpectedDate: r.RejectedFor})
	}
	return s
}
