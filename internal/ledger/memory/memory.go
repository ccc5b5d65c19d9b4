package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

// SeedFile is the optional file NewFromFiles reads obligations from.
const SeedFile = "seed_obligations.yaml"

// Store keeps obligations, rejections and ledger movements in process memory.
// It implements every store port and is used for development and tests.
type Store struct {
	mu          sync.Mutex
	obligations map[string]core.Obligation
	rejections  map[string]core.RejectionRecord
	movements   []core.Movement
}

func New(obligations ...core.Obligation) *Store {
	s := &Store{
		obligations: make(map[string]core.Obligation),
		rejections:  make(map[string]core.RejectionRecord),
	}
	for _, o := range obligations {
		s.obligations[o.Label] = o
	}
	return s
}

type seedObligation struct {
	Label      string `yaml:"label"`
	Amount     string `yaml:"amount"`
	Frequency  string `yaml:"frequency"`
	DayOfMonth int    `yaml:"dayOfMonth"`
	Weekday    string `yaml:"weekday"`
	Month      int    `yaml:"month"`
	Day        int    `yaml:"day"`
	CreatedAt  string `yaml:"createdAt"`
}

// NewFromFiles seeds the store from base/seed_obligations.yaml. A missing
// file yields an empty store; invalid entries are an error.
func NewFromFiles(base string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var doc struct {
		Obligations []seedObligation `yaml:"obligations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	s := New()
	for i, so := range doc.Obligations {
		o, err := so.obligation()
		if err != nil {
			return nil, fmt.Errorf("seed obligation %d: %w", i, err)
		}
		if err := s.CreateObligation(context.Background(), o); err != nil {
			return nil, fmt.Errorf("seed obligation %q: %w", o.Label, err)
		}
	}
	return s, nil
}

func (so seedObligation) obligation() (core.Obligation, error) {
	amount, err := core.ParseAmount(so.Amount)
	if err != nil {
		return core.Obligation{}, err
	}
	rule, err := core.RuleSpec{
		Frequency:  core.Frequency(strings.ToLower(so.Frequency)),
		DayOfMonth: so.DayOfMonth,
		Weekday:    so.Weekday,
		Month:      so.Month,
		Day:        so.Day,
	}.Rule()
	if err != nil {
		return core.Obligation{}, err
	}
	created, err := core.ParseDate(so.CreatedAt)
	if err != nil {
		return core.Obligation{}, err
	}
	o := core.Obligation{Label: strings.TrimSpace(so.Label), Amount: amount, Rule: rule, CreatedAt: created}
	return o, o.Validate()
}

// CreateObligation stores o if its label is new.
func (s *Store) CreateObligation(_ context.Context, o core.Obligation) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[o.Label]; ok {
		return core.ErrDuplicateObligation
	}
	s.obligations[o.Label] = o
	return nil
}

func (s *Store) UpdateObligation(_ context.Context, o core.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[o.Label]; !ok {
		return core.ErrObligationNotFound
	}
	s.obligations[o.Label] = o
	return nil
}

func (s *Store) GetObligation(_ context.Context, label string) (core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obligations[label]
	if !ok {
		return core.Obligation{}, core.ErrObligationNotFound
	}
	return o, nil
}

// ListObligations returns obligations sorted by label.
func (s *Store) ListObligations(_ context.Context) ([]core.Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Obligation, 0, len(s.obligations))
	for _, o := range s.obligations {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) DeleteObligation(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[label]; !ok {
		return core.ErrObligationNotFound
	}
	delete(s.obligations, label)
	return nil
}

// Reject records r unless the period is already rejected.
func (s *Store) Reject(_ context.Context, r core.RejectionRecord) error {
	id := core.PeriodKey{Label: r.Label, ExpectedDate: r.RejectedFor}.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rejections[id]; !ok {
		s.rejections[id] = r
	}
	return nil
}

func (s *Store) IsRejected(_ context.Context, label string, expectedDate core.Date) (bool, error) {
	id := core.PeriodKey{Label: label, ExpectedDate: expectedDate}.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rejections[id]
	return ok, nil
}

func (s *Store) ClearFor(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rejections {
		if r.Label == label {
			delete(s.rejections, id)
		}
	}
	return nil
}

// ListRejections returns all records ordered by label and date.
func (s *Store) ListRejections(_ context.Context) ([]core.RejectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RejectionRecord, 0, len(s.rejections))
	for _, r := range s.rejections {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].RejectedFor.Before(out[j].RejectedFor)
	})
	return out, nil
}

// CreateMovement stores the movement and returns a synthetic reference.
// (label, date, origin) is unique.
func (s *Store) CreateMovement(_ context.Context, m core.Movement) (core.MovementRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(m.Label, m.Date, m.Origin) != nil {
		return "", ledger.ErrDuplicateMovement
	}
	m.Ref = core.MovementRef(fmt.Sprintf("mem:%d", len(s.movements)+1))
	s.movements = append(s.movements, m)
	return m.Ref, nil
}

func (s *Store) FindMovement(_ context.Context, label string, date core.Date, origin core.Origin) (*core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.findLocked(label, date, origin); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

// ListMovements returns the movements for label in insertion order.
func (s *Store) ListMovements(_ context.Context, label string) ([]core.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Movement
	for _, m := range s.movements {
		if m.Label == label {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) findLocked(label string, date core.Date, origin core.Origin) *core.Movement {
	for i := range s.movements {
		m := &s.movements[i]
		if m.Label == label && m.Date.Equal(date) && m.Origin == origin {
			return m
		}
	}
	return nil
}
