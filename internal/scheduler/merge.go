/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"fmt"
	"time"

	"github.com/dapr/kit/ptr"

	"github.com/diagridio/go-rhythm/api/errors"
)

// merge triggers at the union of the trigger times of its children. Children
// triggering at the same time trigger once.
type merge struct {
	children []Interface

	// pending holds the next trigger time of each child, nil once the child
	// is exhausted.
	pending []*time.Time
	primed  bool

	budget budget
	done   bool
}

func newMerge(children []Interface, limit *uint32) *merge {
	return &merge{
		children: children,
		pending:  make([]*time.Time, len(children)),
		budget:   newBudget(limit),
	}
}

func (m *merge) Next(seek *time.Time) (*time.Time, error) {
	if m.done || m.budget.exhausted() {
		return nil, nil
	}

	if !m.primed {
		m.primed = true
		for idx := range m.children {
			if err := m.pull(idx, seek); err != nil {
				return nil, err
			}
		}
	} else if seek != nil {
		for idx, next := range m.pending {
			if next != nil && !next.After(*seek) {
				if err := m.pull(idx, seek); err != nil {
					return nil, err
				}
			}
		}
	}

	earliest := -1
	for idx, next := range m.pending {
		if next == nil {
			continue
		}
		if next.IsZero() {
			return nil, errors.NewInvalidInstant(idx)
		}
		if earliest == -1 || next.Before(*m.pending[earliest]) {
			earliest = idx
		}
	}

	if earliest == -1 {
		m.done = true
		return nil, nil
	}

	result := *m.pending[earliest]
	for idx, next := range m.pending {
		if next != nil && next.Equal(result) {
			if err := m.pull(idx, nil); err != nil {
				return nil, err
			}
		}
	}

	m.budget.spend()

	return ptr.Of(result), nil
}

func (m *merge) pull(idx int, seek *time.Time) error {
	next, err := m.children[idx].Next(seek)
	if err != nil {
		return fmt.Errorf("schedule %d: %w", idx, err)
	}
	m.pending[idx] = next
	return nil
}
