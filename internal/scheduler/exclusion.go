/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"time"

	"github.com/diagridio/go-rhythm/api/errors"
)

// maxExcludedRun is the number of consecutive excluded trigger times after
// which Next gives up.
const maxExcludedRun = 1 << 20

// exclusion triggers at the trigger times of include which are not trigger
// times of exclude.
type exclusion struct {
	include Interface
	exclude Interface

	// excluded is the next excluded time, nil once exclude is exhausted.
	excluded *time.Time
	primed   bool

	budget budget
	done   bool
}

func newExclusion(include, exclude Interface, limit *uint32) *exclusion {
	return &exclusion{
		include: include,
		exclude: exclude,
		budget:  newBudget(limit),
	}
}

func (e *exclusion) Next(seek *time.Time) (*time.Time, error) {
	if e.done || e.budget.exhausted() {
		return nil, nil
	}

	next, err := e.include.Next(seek)
	if err != nil {
		return nil, err
	}

	if !e.primed {
		e.primed = true
		if e.excluded, err = e.exclude.Next(seek); err != nil {
			return nil, err
		}
	} else if seek != nil && e.excluded != nil && !e.excluded.After(*seek) {
		if e.excluded, err = e.exclude.Next(seek); err != nil {
			return nil, err
		}
	}

	for skipped := 0; ; skipped++ {
		if next == nil {
			e.done = true
			return nil, nil
		}

		// The exclude stream may lag far behind, catch it up lazily.
		for e.excluded != nil && e.excluded.Before(*next) {
			if e.excluded, err = e.exclude.Next(nil); err != nil {
				return nil, err
			}
		}

		if e.excluded == nil || !e.excluded.Equal(*next) {
			break
		}

		if skipped >= maxExcludedRun {
			return nil, errors.NewExclusionOverflow(maxExcludedRun)
		}

		if next, err = e.include.Next(nil); err != nil {
			return nil, err
		}
	}

	e.budget.spend()

	return next, nil
}
