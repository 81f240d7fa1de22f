/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/diagridio/go-rhythm/api"
	apierrors "github.com/diagridio/go-rhythm/api/errors"
	"github.com/diagridio/go-rhythm/rhythm"
)

// Classify returns the TimeSpec of a raw time specification. Times are fixed
// instants. Durations, numbers of milliseconds, duration field maps and
// strings starting with "P" are intervals. RFC 3339 strings are fixed
// instants and any other string is a cron expression.
func Classify(v any) (api.TimeSpec, error) {
	var spec api.TimeSpec

	switch t := v.(type) {
	case api.TimeSpec:
		spec = t
	case *api.TimeSpec:
		if t == nil {
			return spec, apierrors.NewInvalidTimeSpec(v, nil)
		}
		spec = *t
	case time.Time:
		spec = api.Fixed(t)
	case *time.Time:
		if t == nil {
			return spec, apierrors.NewInvalidTimeSpec(v, nil)
		}
		spec = api.Fixed(*t)
	case rhythm.Duration:
		spec = api.Interval(t)
	case *rhythm.Duration:
		if t == nil {
			return spec, apierrors.NewInvalidTimeSpec(v, nil)
		}
		spec = api.Interval(*t)
	case time.Duration:
		spec = api.Interval(rhythm.FromDuration(t))
	case int:
		spec = api.Interval(rhythm.FromMilliseconds(int64(t)))
	case int32:
		spec = api.Interval(rhythm.FromMilliseconds(int64(t)))
	case int64:
		spec = api.Interval(rhythm.FromMilliseconds(t))
	case uint32:
		spec = api.Interval(rhythm.FromMilliseconds(int64(t)))
	case uint64:
		if t > math.MaxInt64 {
			return spec, apierrors.NewInvalidTimeSpec(v, errors.New("milliseconds out of range"))
		}
		spec = api.Interval(rhythm.FromMilliseconds(int64(t)))
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt64 || t < math.MinInt64 {
			return spec, apierrors.NewInvalidTimeSpec(v, errors.New("milliseconds must be an integer"))
		}
		spec = api.Interval(rhythm.FromMilliseconds(int64(t)))
	case map[string]any:
		d, err := rhythm.FromFields(t)
		if err != nil {
			return spec, apierrors.NewInvalidTimeSpec(v, err)
		}
		spec = api.Interval(d)
	case string:
		var err error
		if spec, err = classifyString(t); err != nil {
			return spec, apierrors.NewInvalidTimeSpec(v, err)
		}
	default:
		return spec, apierrors.NewInvalidTimeSpec(v, nil)
	}

	if err := validate(spec); err != nil {
		return api.TimeSpec{}, apierrors.NewInvalidTimeSpec(v, err)
	}

	return spec, nil
}

func classifyString(s string) (api.TimeSpec, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return api.TimeSpec{}, errors.New("time specification cannot be empty")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return api.Fixed(t), nil
	}

	if strings.HasPrefix(s, "P") {
		d, err := rhythm.ParseDuration(s)
		if err != nil {
			return api.TimeSpec{}, err
		}
		return api.Interval(d), nil
	}

	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return api.TimeSpec{}, err
		}
		return api.Interval(rhythm.FromMilliseconds(ms)), nil
	}

	return api.Cron(s), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validate(spec api.TimeSpec) error {
	switch spec.Kind {
	case api.KindFixed:
		if spec.Instant.IsZero() {
			return errors.New("fixed instant cannot be the zero time")
		}
	case api.KindInterval:
		return validateStep(spec.Interval)
	case api.KindCron:
		_, err := rhythm.ParseCron(spec.Cron)
		return err
	default:
		return errors.New("unknown kind")
	}

	return nil
}

// validateStep ensures every step of an interval moves forward.
func validateStep(d rhythm.Duration) error {
	for _, n := range []int{d.Years, d.Months, d.Weeks, d.Days, d.Hours, d.Minutes, d.Seconds, d.Milliseconds} {
		if n < 0 {
			return errors.New("interval cannot have negative units")
		}
	}

	if d.Approx() <= 0 {
		return errors.New("interval must be greater than zero")
	}

	return nil
}
