package core

import (
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03", true},
		{"2024-12", true},
		{"2024-01", true},
		{"2024-13", false},
		{"2024-00", false},
		{"2024-3", false},
		{"24-03", false},
		{"2024/03", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseMonthKey(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMonthKeyOf(t *testing.T) {
	d := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.Local)
	if got := MonthKeyOf(d); got != "2024-03" {
		t.Fatalf("expected 2024-03, got %s", got)
	}
}

func TestMonthKeyNext(t *testing.T) {
	cases := []struct {
		in   MonthKey
		want MonthKey
	}{
		{"2024-01", "2024-02"},
		{"2024-11", "2024-12"},
		{"2024-12", "2025-01"},
	}
	for _, tc := range cases {
		if got := tc.in.Next(); got != tc.want {
			t.Fatalf("%s.Next() = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestMonthKeyDueDateClamping(t *testing.T) {
	cases := []struct {
		key     MonthKey
		dueDay  int
		wantDay int
	}{
		{"2024-03", 5, 5},
		{"2024-04", 31, 30},  // April has 30 days
		{"2024-02", 31, 29},  // leap February
		{"2023-02", 31, 28},  // non-leap February
		{"2024-03", 0, 1},    // floor at 1
	}
	for _, tc := range cases {
		got := tc.key.DueDate(tc.dueDay)
		year, month := tc.key.YearMonth()
		if got.Year() != year || int(got.Month()) != month {
			t.Fatalf("%s due day %d rolled into %s", tc.key, tc.dueDay, got.Format("2006-01-02"))
		}
		if got.Day() != tc.wantDay {
			t.Fatalf("%s due day %d: expected day %d, got %d", tc.key, tc.dueDay, tc.wantDay, got.Day())
		}
	}
}
