/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package rhythm

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	kittime "github.com/dapr/kit/time"
)

const (
	approxDay   = 24 * time.Hour
	approxWeek  = 7 * approxDay
	approxMonth = 30 * approxDay
	approxYear  = 365 * approxDay
)

// Duration is a span of time decomposed into calendar units, e.g. "Every 3
// months and 2 hours". The date part (years, months, weeks, days) is applied
// with calendar arithmetic, so adding one month advances the calendar month
// rather than a fixed 30 days. The clock part is applied as absolute time.
type Duration struct {
	Years        int `json:"years,omitempty" yaml:"years,omitempty"`
	Months       int `json:"months,omitempty" yaml:"months,omitempty"`
	Weeks        int `json:"weeks,omitempty" yaml:"weeks,omitempty"`
	Days         int `json:"days,omitempty" yaml:"days,omitempty"`
	Hours        int `json:"hours,omitempty" yaml:"hours,omitempty"`
	Minutes      int `json:"minutes,omitempty" yaml:"minutes,omitempty"`
	Seconds      int `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Milliseconds int `json:"milliseconds,omitempty" yaml:"milliseconds,omitempty"`
}

// weeksPart matches the weeks designator of an ISO 8601 date part.
var weeksPart = regexp.MustCompile(`^(P(?:\d+Y)?(?:\d+M)?)(\d+)W`)

// ParseDuration parses an ISO 8601 duration such as "P1D", "PT2H30M" or
// "P1Y2M3W4DT5H6M7S". Repeating intervals ("R3/PT1H") are not supported.
func ParseDuration(s string) (Duration, error) {
	var weeks int
	if m := weeksPart.FindStringSubmatch(s); m != nil {
		weeks, _ = strconv.Atoi(m[2])
		s = m[1] + s[len(m[0]):]
		if s == "P" {
			return Duration{Weeks: weeks}, nil
		}
	}

	years, months, days, clock, repeats, err := kittime.ParseISO8601Duration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
	}

	if repeats > 0 {
		return Duration{}, fmt.Errorf("repeats not supported for duration %q", s)
	}

	d := FromDuration(clock)
	d.Years = years
	d.Months = months
	d.Weeks = weeks
	d.Days = days

	return d, nil
}

// FromMilliseconds returns a Duration made of the given number of
// milliseconds, decomposed into its clock units.
func FromMilliseconds(ms int64) Duration {
	return FromDuration(time.Duration(ms) * time.Millisecond)
}

// FromDuration decomposes an absolute duration into hours, minutes, seconds
// and milliseconds. Anything below a millisecond is truncated.
func FromDuration(dur time.Duration) Duration {
	var d Duration
	d.Hours = int(dur / time.Hour)
	dur -= time.Duration(d.Hours) * time.Hour
	d.Minutes = int(dur / time.Minute)
	dur -= time.Duration(d.Minutes) * time.Minute
	d.Seconds = int(dur / time.Second)
	dur -= time.Duration(d.Seconds) * time.Second
	d.Milliseconds = int(dur / time.Millisecond)
	return d
}

// FromFields builds a Duration from a structured field set, as found in
// decoded JSON or YAML documents.
func FromFields(fields map[string]any) (Duration, error) {
	if len(fields) == 0 {
		return Duration{}, errors.New("duration field set is empty")
	}

	var d Duration
	for k, v := range fields {
		n, err := toInt(v)
		if err != nil {
			return Duration{}, fmt.Errorf("duration field %q: %w", k, err)
		}

		switch strings.ToLower(k) {
		case "years":
			d.Years = n
		case "months":
			d.Months = n
		case "weeks":
			d.Weeks = n
		case "days":
			d.Days = n
		case "hours":
			d.Hours = n
		case "minutes":
			d.Minutes = n
		case "seconds":
			d.Seconds = n
		case "milliseconds":
			d.Milliseconds = n
		default:
			return Duration{}, fmt.Errorf("unknown duration field %q", k)
		}
	}

	return d, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("value of type %T is not a number", v)
	}
}

// clock returns the absolute part of the duration.
func (d Duration) clock() time.Duration {
	return time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second +
		time.Duration(d.Milliseconds)*time.Millisecond
}

// Approx returns the approximate length of the duration. Years count as 365
// days and months as 30 days. Only meant for comparisons.
func (d Duration) Approx() time.Duration {
	return time.Duration(d.Years)*approxYear +
		time.Duration(d.Months)*approxMonth +
		time.Duration(d.Weeks)*approxWeek +
		time.Duration(d.Days)*approxDay +
		d.clock()
}

// IsZero returns true if every unit of the duration is zero.
func (d Duration) IsZero() bool {
	return d == Duration{}
}

// AddTo returns t advanced by the duration. The date part is applied with
// AddDate in the location of t, then the clock part is added.
func (d Duration) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, 7*d.Weeks+d.Days).Add(d.clock())
}

// String returns the ISO 8601 representation of the duration.
func (d Duration) String() string {
	if d.IsZero() {
		return "PT0S"
	}

	var b strings.Builder
	b.WriteByte('P')
	for _, u := range []struct {
		n int
		s byte
	}{{d.Years, 'Y'}, {d.Months, 'M'}, {d.Weeks, 'W'}, {d.Days, 'D'}} {
		if u.n != 0 {
			fmt.Fprintf(&b, "%d%c", u.n, u.s)
		}
	}

	if d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0 && d.Milliseconds == 0 {
		return b.String()
	}

	b.WriteByte('T')
	if d.Hours != 0 {
		fmt.Fprintf(&b, "%dH", d.Hours)
	}
	if d.Minutes != 0 {
		fmt.Fprintf(&b, "%dM", d.Minutes)
	}
	switch {
	case d.Milliseconds != 0:
		fmt.Fprintf(&b, "%d.%03dS", d.Seconds, d.Milliseconds)
	case d.Seconds != 0:
		fmt.Fprintf(&b, "%dS", d.Seconds)
	}

	return b.String()
}
