package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestClampedDate(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  Date
	}{
		{"april 31", 2024, time.April, 31, NewDate(2024, time.April, 30)},
		{"feb 29 common year", 2023, time.February, 29, NewDate(2023, time.February, 28)},
		{"feb 29 leap year", 2024, time.February, 29, NewDate(2024, time.February, 29)},
		{"feb 31 leap year", 2024, time.February, 31, NewDate(2024, time.February, 29)},
		{"existing day", 2024, time.March, 15, NewDate(2024, time.March, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampedDate(tt.year, tt.month, tt.day); !got.Equal(tt.want) {
				t.Errorf("ClampedDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.March, 1)
	if got := NewDate(2024, time.March, 5).DaysSince(d); got != 4 {
		t.Fatalf("DaysSince = %d, want 4", got)
	}
	if got := d.AddDays(-1); !got.Equal(NewDate(2024, time.February, 29)) {
		t.Fatalf("AddDays(-1) = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.After(d) {
		t.Fatalf("comparison helpers are wrong")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, time.March, 15))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-03-15"` {
		t.Fatalf("unexpected json %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-02-28"`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(NewDate(2025, time.February, 28)) {
		t.Fatalf("unexpected date %s", d)
	}
	if err := json.Unmarshal([]byte(`"28/02/2025"`), &d); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestDateOfDropsClock(t *testing.T) {
	got := DateOf(time.Date(2024, time.March, 5, 23, 59, 0, 0, time.UTC))
	if !got.Equal(NewDate(2024, time.March, 5)) {
		t.Fatalf("DateOf = %s", got)
	}
}
