// Package period holds the calendar helpers shared by the ledger: every
// stored date is a UTC midnight and every month is keyed by its first day.
package period

import "time"

// Day truncates t to UTC midnight of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// Month returns the inclusive [first, last] day range of t's month.
func Month(t time.Time) (time.Time, time.Time) {
	return MonthStart(t), MonthEnd(t)
}

// DaysIn returns the number of days in t's month.
func DaysIn(t time.Time) int {
	return MonthEnd(t).Day()
}

// AddMonths moves t by n months keeping the anchor day, clamped to the
// target month's last day (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n, anchorDay int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if last := DaysIn(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// ParseMonth parses "2006-01" into the first day of that month.
func ParseMonth(s string) (time.Time, error) {
	return time.Parse("2006-01", s)
}

// ParseDay parses "2006-01-02" into a UTC midnight.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
