package core

import (
	"fmt"
	"regexp"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM". It is the partition key
// for transactions, bill statuses, and monthly summaries.
type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonthKey validates a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	if !monthKeyPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// MonthKeyOf derives the month key from a date in the local calendar. The key
// must be computed before the date is serialized; an ISO round-trip through
// UTC can shift the month for dates near midnight.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// Validate reports whether the key is well formed.
func (k MonthKey) Validate() error {
	if !monthKeyPattern.MatchString(string(k)) {
		return fmt.Errorf("%w: %q", ErrInvalidMonthKey, string(k))
	}
	return nil
}

func (k MonthKey) String() string { return string(k) }

// YearMonth returns the calendar year and month of the key. The key must be
// valid; a malformed key yields zero values.
func (k MonthKey) YearMonth() (year, month int) {
	fmt.Sscanf(string(k), "%4d-%2d", &year, &month)
	return year, month
}

// Next returns the key of the following calendar month.
func (k MonthKey) Next() MonthKey {
	year, month := k.YearMonth()
	month++
	if month > 12 {
		month = 1
		year++
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// LastDay returns the number of days in the month.
func (k MonthKey) LastDay() int {
	year, month := k.YearMonth()
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DueDate resolves a template's due day within this month. Days past the end
// of the month are clamped to the last valid day (dueDay 31 in February
// yields Feb 28/29), never rolled into the next month.
func (k MonthKey) DueDate(dueDay int) time.Time {
	year, month := k.YearMonth()
	if dueDay < 1 {
		dueDay = 1
	}
	if last := k.LastDay(); dueDay > last {
		dueDay = last
	}
	return time.Date(year, time.Month(month), dueDay, 0, 0, 0, 0, time.Local)
}
