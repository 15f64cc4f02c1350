package tracker

import (
	"fmt"
	"time"
)

const businessStartHour = 8

// AdjustToBusinessStart shifts a timestamp to the next business start
// (Mon-Fri 08:00) so SLA timers never start ticking outside office hours:
// Saturday and Sunday move to Monday 08:00, Friday at or after 17:00 moves
// to Monday 08:00, any weekday before 08:00 snaps to 08:00 the same day, and
// Monday-Thursday at or after 17:00 moves to 08:00 the next day.
func AdjustToBusinessStart(t time.Time) time.Time {
	day := t.Weekday()
	hour := t.Hour()

	startOfDay := func(t time.Time, plusDays int) time.Time {
		t = t.AddDate(0, 0, plusDays)
		return time.Date(t.Year(), t.Month(), t.Day(), businessStartHour, 0, 0, 0, t.Location())
	}

	switch {
	case day == time.Saturday:
		return startOfDay(t, 2)
	case day == time.Sunday:
		return startOfDay(t, 1)
	case day == time.Friday && hour >= 17:
		return startOfDay(t, 3)
	case hour < businessStartHour:
		return startOfDay(t, 0)
	case hour >= 17:
		return startOfDay(t, 1)
	}
	return t
}

// WeekKey renders a reporting key like "Y26W35" from the calendar year and
// the ISO week number.
func WeekKey(t time.Time) string {
	_, week := t.ISOWeek()
	return fmt.Sprintf("Y%02dW%02d", t.Year()-2000, week)
}

// MonthKey renders a reporting key like "Y26M08".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("Y%02dM%02d", t.Year()-2000, int(t.Month()))
}
