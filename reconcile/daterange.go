// Package reconcile turns a project's calendar, weekly labor plans and raw
// time entries into one per-day grid and derives planned-versus-actual cost
// figures from it. Everything here is pure; storage lives in the timesheet
// package.
package reconcile

import (
	"time"

	"timeledger/errs"
)

// DateLayout is the key format of every per-day map produced by this package.
const DateLayout = "2006-01-02"

// Midnight drops the time of day from t and pins it to UTC.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange returns every calendar day from start to end inclusive.
func DateRange(start, end time.Time) ([]time.Time, error) {
	start, end = Midnight(start), Midnight(end)
	if start.After(end) {
		return nil, errs.ErrInvalidRange
	}

	days := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// DateKeys formats days with DateLayout, preserving order.
func DateKeys(days []time.Time) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = d.Format(DateLayout)
	}
	return keys
}

// DaysBetween counts whole days from a to b. Both are truncated to midnight
// first, so the result is never skewed by a time-of-day component.
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)).Hours() / 24)
}

// ParseDate accepts either a bare date or an RFC 3339 timestamp and returns
// the calendar day it names.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return Midnight(t), nil
}
