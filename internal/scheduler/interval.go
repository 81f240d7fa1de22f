/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"time"

	"github.com/dapr/kit/ptr"

	"github.com/diagridio/go-rhythm/rhythm"
)

// interval is a schedule which repeats every calendar duration from its
// start.
type interval struct {
	step rhythm.Duration

	// unit is the calendar unit anchors are truncated to when round is set.
	unit  rhythm.Unit
	round bool

	// loc is the location calendar operations are done in.
	loc *time.Location

	// anchor is the last returned time, or the time the schedule was
	// (re)positioned at. When inclusive is set, the anchor itself is the next
	// trigger time.
	anchor    time.Time
	inclusive bool

	// exp is the optional time at which the schedule ends.
	exp *time.Time

	budget budget
	done   bool
}

func newInterval(step rhythm.Duration, start time.Time, exp *time.Time, round bool, limit *uint32) *interval {
	i := &interval{
		step:   step,
		loc:    start.Location(),
		exp:    exp,
		budget: newBudget(limit),
	}

	if round {
		i.unit, i.round = rhythm.RoundingUnit(step)
	}

	i.position(start)
	for i.candidate().Before(start) {
		i.advance()
	}

	return i
}

// position anchors the schedule at t, truncated to the rounding unit.
func (i *interval) position(t time.Time) {
	t = t.In(i.loc)
	i.anchor = t
	if i.round {
		i.anchor = rhythm.StartOf(t, i.unit)
	}
	i.inclusive = i.anchor.Equal(t)
}

func (i *interval) candidate() time.Time {
	if i.inclusive {
		return i.anchor
	}
	return i.step.AddTo(i.anchor)
}

func (i *interval) advance() {
	i.anchor = i.candidate()
	i.inclusive = false
}

func (i *interval) Next(seek *time.Time) (*time.Time, error) {
	if i.done || i.budget.exhausted() {
		return nil, nil
	}

	// A seek later than the anchor re-anchors the schedule from the seek.
	if seek != nil && (seek.After(i.anchor) || !i.candidate().After(*seek)) {
		i.position(*seek)
		for !i.candidate().After(*seek) {
			i.advance()
		}
	}

	next := i.candidate()
	if i.exp != nil && next.After(*i.exp) {
		i.done = true
		return nil, nil
	}

	i.advance()
	i.budget.spend()

	return ptr.Of(next), nil
}
