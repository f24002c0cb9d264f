// Package dates provides calendar-date helpers. A date is represented as a
// time.Time at midnight UTC so that dates compare and subtract exactly.
package dates

import (
	"fmt"
	"time"
	_ "time/tzdata" // Zone database for minimal containers.
)

// Layout is the ISO calendar date layout used by upstream APIs.
const Layout = "2006-01-02"

// Of returns the calendar date of t as observed in loc.
func Of(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse parses an ISO calendar date.
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// AddMonths adds n calendar months to d, clamping the day to the last day of
// the target month (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// Week returns the Monday and Sunday of the ISO week containing d.
func Week(d time.Time) (time.Time, time.Time) {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// Within reports whether from <= d <= to.
func Within(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

var germanWeekdays = [...]string{"So.", "Mo.", "Di.", "Mi.", "Do.", "Fr.", "Sa."}

// GermanShort formats d like "Do., 5.11.2026".
func GermanShort(d time.Time) string {
	return fmt.Sprintf("%s, %d.%d.%d", germanWeekdays[d.Weekday()], d.Day(), int(d.Month()), d.Year())
}
