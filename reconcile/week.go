package reconcile

import "time"

// WeekNumber returns the 1-based project week of date. Week 1 covers the
// first seven days starting at projectStart; days before the start map to
// week 0 and below.
func WeekNumber(date, projectStart time.Time) int {
	days := DaysBetween(projectStart, date)
	week := days / 7
	if days < 0 && days%7 != 0 {
		week--
	}
	return week + 1
}

// IsWeekday reports whether date falls Monday through Friday.
func IsWeekday(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}
