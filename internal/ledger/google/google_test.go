package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/ledger"
)

// fakeValues is an in-memory sheet addressed with A1 ranges of a single tab.
type fakeValues struct {
	mu      sync.Mutex
	rows    [][]interface{}
	gets    int
	updates int
	failGet bool
}

func (f *fakeValues) Get(_ context.Context, _ string, _ string) ([][]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet {
		return nil, errors.New("quota exceeded")
	}
	out := make([][]interface{}, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeValues) Update(_ context.Context, _ string, rng string, values [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	// rng looks like "Sheet!A12:E12"
	cell := rng[strings.Index(rng, "!")+2:]
	row, err := strconv.Atoi(cell[:strings.Index(cell, ":")])
	if err != nil {
		return fmt.Errorf("bad range %s", rng)
	}
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	f.rows[row-1] = values[0]
	return nil
}

func movement(label string, d core.Date) core.Movement {
	return core.Movement{Date: d, Amount: decimal.RequireFromString("45"), Label: label, Origin: core.OriginRecurring}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_CreateAndFindMovement(t *testing.T) {
	ctx := context.Background()
	fv := &fakeValues{}
	c := newClient(fv, Config{SpreadsheetID: "sheet-id", SheetName: "Scadenze"})
	d := core.NewDate(2024, time.March, 15)

	ref, err := c.CreateMovement(ctx, movement("Gym", d))
	if err != nil {
		t.Fatalf("CreateMovement() error = %v", err)
	}
	if ref != "Scadenze!A2:E2" {
		t.Errorf("ref = %q, want Scadenze!A2:E2", ref)
	}
	if fmt.Sprint(fv.rows[0][0]) != "Date" {
		t.Errorf("expected header row, got %v", fv.rows[0])
	}
	if got := fmt.Sprint(fv.rows[1][2]); got != "45.00" {
		t.Errorf("amount cell = %q, want 45.00", got)
	}

	ref2, err := c.CreateMovement(ctx, movement("Gym", d.AddDays(7)))
	if err != nil || ref2 != "Scadenze!A3:E3" {
		t.Fatalf("second CreateMovement() = %q, %v", ref2, err)
	}

	if _, err := c.CreateMovement(ctx, movement("Gym", d)); !errors.Is(err, ledger.ErrDuplicateMovement) {
		t.Fatalf("duplicate CreateMovement() error = %v, want ErrDuplicateMovement", err)
	}

	found, err := c.FindMovement(ctx, "Gym", d, core.OriginRecurring)
	if err != nil || found == nil || found.Ref != ref {
		t.Fatalf("FindMovement() = %+v, %v", found, err)
	}
	if missing, err := c.FindMovement(ctx, "Gym", d.AddDays(1), core.OriginRecurring); err != nil || missing != nil {
		t.Errorf("FindMovement() on other date = %+v, %v", missing, err)
	}

	list, err := c.ListMovements(ctx, "Gym")
	if err != nil || len(list) != 2 {
		t.Errorf("ListMovements() = %d items, %v", len(list), err)
	}
}

func TestClient_SeesRowsWrittenElsewhere(t *testing.T) {
	ctx := context.Background()
	d := core.NewDate(2024, time.March, 15)
	fv := &fakeValues{rows: [][]interface{}{
		{"Date", "Label", "Amount", "Origin", "Display"},
		{"2024-03-15", "Gym", "45", "recurring", "€45.00"},
	}}
	c := newClient(fv, Config{SpreadsheetID: "sheet-id"})

	found, err := c.FindMovement(ctx, "Gym", d, core.OriginRecurring)
	if err != nil || found == nil {
		t.Fatalf("FindMovement() = %+v, %v", found, err)
	}
	if found.Ref != "Scadenze!A2:E2" {
		t.Errorf("Ref = %q, want Scadenze!A2:E2", found.Ref)
	}
	if _, err := c.CreateMovement(ctx, movement("Gym", d)); !errors.Is(err, ledger.ErrDuplicateMovement) {
		t.Errorf("CreateMovement() error = %v, want ErrDuplicateMovement", err)
	}
}

func TestClient_RowCacheAvoidsRepeatedReads(t *testing.T) {
	ctx := context.Background()
	fv := &fakeValues{}
	c := newClient(fv, Config{SpreadsheetID: "sheet-id", CacheTTL: time.Minute})

	for i := 0; i < 5; i++ {
		if _, err := c.FindMovement(ctx, "Gym", core.NewDate(2024, time.March, i+1), core.OriginRecurring); err != nil {
			t.Fatalf("FindMovement() error = %v", err)
		}
	}
	if fv.gets != 1 {
		t.Errorf("sheet read %d times, want 1", fv.gets)
	}

	c.InvalidateRowCache()
	if _, err := c.FindMovement(ctx, "Gym", core.NewDate(2024, time.March, 1), core.OriginRecurring); err != nil {
		t.Fatalf("FindMovement() error = %v", err)
	}
	if fv.gets != 2 {
		t.Errorf("sheet read %d times after invalidation, want 2", fv.gets)
	}
}

func TestClient_ReadFailure(t *testing.T) {
	fv := &fakeValues{failGet: true}
	c := newClient(fv, Config{SpreadsheetID: "sheet-id"})
	if _, err := c.FindMovement(context.Background(), "Gym", core.NewDate(2024, time.March, 1), core.OriginRecurring); err == nil {
		t.Error("expected error when the sheet cannot be read")
	}
	if _, err := c.CreateMovement(context.Background(), movement("Gym", core.NewDate(2024, time.March, 1))); err == nil {
		t.Error("expected error when the sheet cannot be read")
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.CreateMovement(context.Background(), movement("Gym", core.NewDate(2024, time.March, 1))); err == nil {
		t.Error("expected error with nil service")
	}
}
