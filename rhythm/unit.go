/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package rhythm

import "time"

// Unit is a calendar unit an instant can be truncated to.
type Unit uint8

const (
	Second Unit = iota + 1
	Minute
	Hour
	Day
	Week
	Month
)

// roundingUnits is ordered from the coarsest to the finest unit.
var roundingUnits = []Unit{Month, Week, Day, Hour, Minute, Second}

func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// Approx returns the approximate length of the unit. A month counts as 30
// days.
func (u Unit) Approx() time.Duration {
	switch u {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return approxDay
	case Week:
		return approxWeek
	case Month:
		return approxMonth
	default:
		return 0
	}
}

// RoundingUnit returns the coarsest unit whose approximate length still fits
// in the approximate length of d. Returns false if d is shorter than a
// second.
func RoundingUnit(d Duration) (Unit, bool) {
	approx := d.Approx()
	for _, u := range roundingUnits {
		if approx >= u.Approx() {
			return u, true
		}
	}
	return 0, false
}

// StartOf truncates t to the start of the given unit, in the location of t.
// Weeks start on Sunday.
func StartOf(t time.Time, u Unit) time.Time {
	y, m, d := t.Date()
	loc := t.Location()

	switch u {
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Week:
		return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case Minute:
		return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
	case Second:
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	default:
		return t
	}
}
