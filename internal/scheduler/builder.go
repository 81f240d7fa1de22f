/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/rhythm"
)

// Builder is a builder for creating a new scheduler.
type Builder struct {
	// clock is the clock used to get the current time. Used for manipulating
	// time in tests.
	clock clock.Clock
}

// NewBuilder creates a new scheduler builder. A nil clock uses the real
// clock.
func NewBuilder(clk clock.Clock) *Builder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Builder{
		clock: clk,
	}
}

// groups holds classified time specifications by kind, in order of first
// appearance.
type groups struct {
	kinds     []api.Kind
	fixed     []time.Time
	intervals []rhythm.Duration
	crons     []string
}

func group(specs []api.TimeSpec) *groups {
	g := new(groups)
	for _, spec := range specs {
		if !slices.Contains(g.kinds, spec.Kind) {
			g.kinds = append(g.kinds, spec.Kind)
		}

		switch spec.Kind {
		case api.KindFixed:
			if !slices.ContainsFunc(g.fixed, spec.Instant.Equal) {
				g.fixed = append(g.fixed, spec.Instant)
			}
		case api.KindInterval:
			if !slices.Contains(g.intervals, spec.Interval) {
				g.intervals = append(g.intervals, spec.Interval)
			}
		case api.KindCron:
			if !slices.Contains(g.crons, spec.Cron) {
				g.crons = append(g.crons, spec.Cron)
			}
		}
	}
	return g
}

// needsMerge returns true if more than one schedule is built from the
// groups.
func (g *groups) needsMerge() bool {
	return len(g.kinds) > 1 || len(g.intervals) > 1 || len(g.crons) > 1
}

// Scheduler returns the scheduler described by the given options. A single
// schedule is returned as is, anything else is merged and filtered by the
// excluded times.
func (b *Builder) Scheduler(opts *api.IteratorOptions) (Interface, error) {
	if opts == nil || len(opts.Times) == 0 {
		return nil, errors.New("at least one time must be given")
	}

	times, err := classifyAll(opts.Times)
	if err != nil {
		return nil, err
	}

	excluded, err := classifyAll(opts.ExcludedTimes)
	if err != nil {
		return nil, err
	}

	start, exp := b.window(opts)

	included := group(times)
	if !included.needsMerge() && len(excluded) == 0 {
		scheds, err := b.build(included, opts, start, exp, opts.Limit)
		if err != nil {
			return nil, err
		}
		return scheds[0], nil
	}

	scheds, err := b.build(included, opts, start, exp, nil)
	if err != nil {
		return nil, err
	}

	exclScheds, err := b.build(group(excluded), opts, start, exp, nil)
	if err != nil {
		return nil, err
	}

	return newExclusion(newMerge(scheds, nil), newMerge(exclScheds, nil), opts.Limit), nil
}

// window returns the start and the optional expiration of the options, in
// the configured location.
func (b *Builder) window(opts *api.IteratorOptions) (time.Time, *time.Time) {
	start := b.clock.Now()
	if opts.StartDate != nil {
		start = *opts.StartDate
	}
	if opts.Location != nil {
		start = start.In(opts.Location)
	}

	if opts.EndDate == nil {
		return start, nil
	}

	exp := *opts.EndDate
	if opts.Location != nil {
		exp = exp.In(opts.Location)
	}

	return start, &exp
}

func (b *Builder) build(g *groups, opts *api.IteratorOptions, start time.Time, exp *time.Time, limit *uint32) ([]Interface, error) {
	scheds := make([]Interface, 0, len(g.kinds))

	for _, kind := range g.kinds {
		switch kind {
		case api.KindFixed:
			fixed := g.fixed
			if opts.Location != nil {
				fixed = make([]time.Time, len(g.fixed))
				for i, t := range g.fixed {
					fixed[i] = t.In(opts.Location)
				}
			}
			scheds = append(scheds, newOneshot(fixed, limit))

		case api.KindInterval:
			for _, step := range g.intervals {
				scheds = append(scheds, newInterval(step, start, exp, opts.RoundInterval, limit))
			}

		case api.KindCron:
			for _, expr := range g.crons {
				cron, err := rhythm.ParseCron(expr)
				if err != nil {
					return nil, err
				}
				scheds = append(scheds, newRepeats(cron, start, exp, limit))
			}
		}
	}

	return scheds, nil
}

func classifyAll(raw []any) ([]api.TimeSpec, error) {
	specs := make([]api.TimeSpec, 0, len(raw))
	for i, v := range raw {
		spec, err := Classify(v)
		if err != nil {
			return nil, fmt.Errorf("time %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
