package quota

import "time"

// DayStart returns the UTC midnight that opens the daily window containing t.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first UTC midnight of the month containing t.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// effective returns the count that applies inside the window opened at current.
// A stored window older than current has expired and reads as zero.
func effective(count int64, stored, current time.Time) int64 {
	if stored.Before(current) {
		return 0
	}
	return count
}
