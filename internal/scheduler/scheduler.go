/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"time"

	"github.com/dapr/kit/ptr"
)

// Interface is an interface which returns the next trigger time of a parsed
// schedule.
type Interface interface {
	// Next returns the next trigger time, strictly after the last returned
	// one. If seek is given and the next trigger time would not be after it,
	// the schedule is repositioned so that the returned time is the first one
	// strictly after seek.
	// Returns nil if the schedule will never trigger again. Once nil has been
	// returned, every following call returns nil.
	Next(seek *time.Time) (*time.Time, error)
}

// budget is the number of times a schedule may still trigger. A nil budget
// is unbounded.
type budget struct {
	remaining *uint32
}

func newBudget(limit *uint32) budget {
	if limit == nil {
		return budget{}
	}
	return budget{remaining: ptr.Of(*limit)}
}

func (b budget) exhausted() bool {
	return b.remaining != nil && *b.remaining == 0
}

func (b *budget) spend() {
	if b.remaining != nil && *b.remaining > 0 {
		*b.remaining--
	}
}
