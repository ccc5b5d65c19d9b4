package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

func obligation(label string) core.Obligation {
	return core.Obligation{
		Label:     label,
		Amount:    decimal.NewFromInt(45),
		Rule:      core.MonthlyRule{DayOfMonth: 15},
		CreatedAt: core.NewDate(2024, time.January, 1),
	}
}

func TestMemoryStoreObligations(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateObligation(ctx, obligation("Gym")); err != nil {
		t.Fatalf("CreateObligation() error = %v", err)
	}
	if err := s.CreateObligation(ctx, obligation("Gym")); !errors.Is(err, core.ErrDuplicateObligation) {
		t.Fatalf("duplicate CreateObligation() error = %v, want ErrDuplicateObligation", err)
	}

	updated := obligation("Gym")
	updated.Amount = decimal.NewFromInt(50)
	if err := s.UpdateObligation(ctx, updated); err != nil {
		t.Fatalf("UpdateObligation() error = %v", err)
	}
	got, err := s.GetObligation(ctx, "Gym")
	if err != nil || !got.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("GetObligation() = %+v, %v", got, err)
	}

	if err := s.DeleteObligation(ctx, "Gym"); err != nil {
		t.Fatalf("DeleteObligation() error = %v", err)
	}
	if _, err := s.GetObligation(ctx, "Gym"); !errors.Is(err, core.ErrObligationNotFound) {
		t.Fatalf("GetObligation() after delete error = %v", err)
	}
	if err := s.UpdateObligation(ctx, updated); !errors.Is(err, core.ErrObligationNotFound) {
		t.Fatalf("UpdateObligation() on missing error = %v", err)
	}
}

func TestMemoryStoreRejections(t *testing.T) {
	ctx := context.Background()
	s := New()
	feb := core.NewDate(2024, time.February, 15)
	rec := core.RejectionRecord{Label: "Gym", RejectedFor: feb, RejectedAt: core.NewDate(2024, time.March, 1)}

	for i := 0; i < 2; i++ {
		if err := s.Reject(ctx, rec); err != nil {
			t.Fatalf("Reject() error = %v", err)
		}
	}
	all, _ := s.ListRejections(ctx)
	if len(all) != 1 {
		t.Fatalf("rejecting twice should keep one record, got %d", len(all))
	}

	if ok, _ := s.IsRejected(ctx, "Gym", feb); !ok {
		t.Error("IsRejected() = false, want true")
	}
	if ok, _ := s.IsRejected(ctx, "Gym", feb.AddDays(1)); ok {
		t.Error("rejection should be scoped to one date")
	}

	if err := s.ClearFor(ctx, "Gym"); err != nil {
		t.Fatalf("ClearFor() error = %v", err)
	}
	if ok, _ := s.IsRejected(ctx, "Gym", feb); ok {
		t.Error("IsRejected() after ClearFor = true, want false")
	}
}

func TestMemoryStoreMovements(t *testing.T) {
	ctx := context.Background()
	s := New()
	date := core.NewDate(2024, time.March, 15)
	m := core.Movement{Date: date, Amount: decimal.NewFromInt(45), Label: "Gym", Origin: core.OriginRecurring}

	ref, err := s.CreateMovement(ctx, m)
	if err != nil || ref != "mem:1" {
		t.Fatalf("CreateMovement() = %q, %v", ref, err)
	}
	if _, err := s.CreateMovement(ctx, m); !errors.Is(err, ledger.ErrDuplicateMovement) {
		t.Fatalf("duplicate CreateMovement() error = %v, want ErrDuplicateMovement", err)
	}

	found, err := s.FindMovement(ctx, "Gym", date, core.OriginRecurring)
	if err != nil || found == nil || found.Ref != ref {
		t.Fatalf("FindMovement() = %+v, %v", found, err)
	}
	if found, _ := s.FindMovement(ctx, "Gym", date.AddDays(1), core.OriginRecurring); found != nil {
		t.Errorf("FindMovement() on other date = %+v, want nil", found)
	}

	list, _ := s.ListMovements(ctx, "Gym")
	if len(list) != 1 {
		t.Errorf("ListMovements() returned %d, want 1", len(list))
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles() without seed error = %v", err)
	}
	if list, _ := s.ListObligations(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty store when seed file is missing, got %d", len(list))
	}

	seed := `obligations:
  - label: Alquiler
    amount: "650"
    frequency: monthly
    dayOfMonth: 1
    createdAt: "2024-01-01"
  - label: Calcetto
    amount: "8,50"
    frequency: weekly
    weekday: friday
    createdAt: "2024-01-05"
`
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles() error = %v", err)
	}
	list, _ := s.ListObligations(context.Background())
	if len(list) != 2 || list[0].Label != "Alquiler" || list[1].Label != "Calcetto" {
		t.Fatalf("unexpected seeded obligations: %+v", list)
	}
	if list[1].Rule != (core.WeeklyRule{Weekday: time.Friday}) {
		t.Errorf("Calcetto rule = %v, want weekly on friday", list[1].Rule)
	}

	bad := "obligations:\n  - label: X\n    amount: \"1\"\n    frequency: hourly\n    createdAt: \"2024-01-01\"\n"
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(bad), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFiles(dir); !errors.Is(err, core.ErrInvalidRule) {
		t.Errorf("NewFromFiles() with bad frequency error = %v, want ErrInvalidRule", err)
	}
}
