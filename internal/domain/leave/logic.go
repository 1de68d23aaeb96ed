package leave

import (
	"errors"
	"time"
)

// CivilDate drops the clock and zone from t, keeping the calendar date as it
// reads in t's own location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current civil date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CivilDate(now.In(loc))
}

// CalculateDays returns the inclusive calendar-day count between two civil dates.
func CalculateDays(start, end time.Time) (int, error) {
	start, end = CivilDate(start), CivilDate(end)
	if end.Before(start) {
		return 0, errors.New("end date before start date")
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

// Overlaps reports whether the inclusive ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDeclined, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the approval state
// machine. Declined and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DaysWithin counts the days of [start, end] that fall inside [from, to].
func DaysWithin(start, end, from, to time.Time) int {
	if !Overlaps(start, end, from, to) {
		return 0
	}
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	days, err := CalculateDays(start, end)
	if err != nil {
		return 0
	}
	return days
}

// YearBounds returns the first and last civil dates of year.
func YearBounds(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Remaining floors quota minus used at zero.
func Remaining(quota, used int) int {
	if used >= quota {
		return 0
	}
	return quota - used
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 || total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
