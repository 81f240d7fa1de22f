/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"slices"
	"sort"
	"time"

	"github.com/dapr/kit/ptr"
)

// oneshot is a scheduler that triggers once at each of a fixed list of
// times.
type oneshot struct {
	// times is sorted ascending. Duplicates are kept.
	times []time.Time

	// idx is the index of the next time to return.
	idx int

	budget budget
}

func newOneshot(times []time.Time, limit *uint32) *oneshot {
	sorted := slices.Clone(times)
	slices.SortStableFunc(sorted, func(a, b time.Time) int {
		return a.Compare(b)
	})

	return &oneshot{
		times:  sorted,
		budget: newBudget(limit),
	}
}

func (o *oneshot) Next(seek *time.Time) (*time.Time, error) {
	if o.budget.exhausted() || o.idx >= len(o.times) {
		return nil, nil
	}

	if seek != nil && !o.times[o.idx].After(*seek) {
		o.idx = sort.Search(len(o.times), func(i int) bool {
			return o.times[i].After(*seek)
		})
		if o.idx >= len(o.times) {
			return nil, nil
		}
	}

	next := o.times[o.idx]
	o.idx++
	o.budget.spend()

	return ptr.Of(next), nil
}
