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

// repeats is a schedule which repeats at the times matched by a cron
// expression.
type repeats struct {
	// cron is the parsed cron expression.
	cron rhythm.Schedule

	// cursor is the time the next match is searched from, which is the last
	// returned time once the schedule has triggered.
	cursor time.Time

	// exp is the optional time at which the schedule ends. A match equal to
	// exp still triggers.
	exp *time.Time

	// loc is the location the expression is evaluated in.
	loc *time.Location

	budget budget
	done   bool
}

func newRepeats(cron rhythm.Schedule, start time.Time, exp *time.Time, limit *uint32) *repeats {
	r := &repeats{
		cron:   cron,
		exp:    exp,
		loc:    start.Location(),
		budget: newBudget(limit),
	}
	r.anchor(start)
	return r
}

// anchor moves the cursor to t, clamped to the expiration.
func (r *repeats) anchor(t time.Time) {
	if r.exp != nil && t.After(*r.exp) {
		t = *r.exp
	}
	r.cursor = t.In(r.loc)
}

func (r *repeats) Next(seek *time.Time) (*time.Time, error) {
	if r.done || r.budget.exhausted() {
		return nil, nil
	}

	if seek != nil && seek.After(r.cursor) {
		r.anchor(*seek)
	}

	next := r.cron.Next(r.cursor)
	if next.IsZero() || (r.exp != nil && next.After(*r.exp)) {
		r.done = true
		return nil, nil
	}

	r.cursor = next
	r.budget.spend()

	return ptr.Of(next), nil
}
