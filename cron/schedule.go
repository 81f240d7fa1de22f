/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/internal/consumer"
	"github.com/diagridio/go-rhythm/internal/metrics"
	"github.com/diagridio/go-rhythm/internal/runner"
	"github.com/diagridio/go-rhythm/internal/scheduler"
)

// NewIterator returns the iterator described by opts. Interval and cron
// times start from now if no start date is given.
func NewIterator(opts *api.IteratorOptions) (api.Iterator, error) {
	return scheduler.NewBuilder(nil).Scheduler(opts)
}

// ParseTimeSpec classifies a raw time specification, as accepted in
// IteratorOptions.Times.
func ParseTimeSpec(v any) (api.TimeSpec, error) {
	return scheduler.Classify(v)
}

// ScheduleOptions are the options for creating a standalone schedule.
type ScheduleOptions struct {
	// Log is the logger to use for logging.
	Log logr.Logger

	// Name is reported in trigger requests, events and metrics.
	Name string

	// Schedule describes the trigger times and the trigger metadata. Ignored
	// if Iterator is set.
	Schedule *api.ScheduleOptions

	// Iterator produces the trigger times. It is owned by the schedule and
	// must not be used by the caller once given.
	Iterator api.Iterator

	// TriggerFn is the function to call at every trigger time.
	TriggerFn api.TriggerFunction

	// Clock defaults to the real clock.
	Clock clock.Clock

	// EventSink optionally receives the lifecycle events of the schedule.
	EventSink chan<- *api.Event

	// Registerer optionally registers the schedule metrics.
	Registerer prometheus.Registerer
}

// Schedule triggers a function at every time produced by an iterator. A
// Schedule can be started once: once stopped, a new one must be created.
type Schedule struct {
	runner *runner.Runner
}

// NewSchedule creates a standalone schedule. It does not start it.
func NewSchedule(opts ScheduleOptions) (*Schedule, error) {
	if opts.TriggerFn == nil {
		return nil, errors.New("trigger function is required")
	}

	log, err := defaultLog(opts.Log)
	if err != nil {
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	iter := opts.Iterator
	var metadata map[string]string
	if opts.Schedule != nil {
		metadata = opts.Schedule.Metadata
	}

	if iter == nil {
		if opts.Schedule == nil {
			return nil, errors.New("either schedule or iterator is required")
		}
		iter, err = scheduler.NewBuilder(clk).Scheduler(&opts.Schedule.IteratorOptions)
		if err != nil {
			return nil, err
		}
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m, err = metrics.New(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return &Schedule{
		runner: runner.New(runner.Options{
			Log:       log,
			Name:      opts.Name,
			Iterator:  iter,
			TriggerFn: opts.TriggerFn,
			Metadata:  metadata,
			Clock:     clk,
			Consumer:  consumer.New(consumer.Options{Sink: opts.EventSink}),
			Metrics:   m,
		}),
	}, nil
}

// Start starts triggering in the background, until Stop is called or ctx is
// cancelled. Returns an error if the schedule was already started.
func (s *Schedule) Start(ctx context.Context) error {
	return s.runner.Start(ctx)
}

// Stop stops the schedule and waits for it to shut down.
func (s *Schedule) Stop() {
	s.runner.Stop()
}

// Wait blocks until the schedule has stopped, returning the error which
// stopped it.
func (s *Schedule) Wait() error {
	return s.runner.Wait()
}

func (s *Schedule) IsRunning() bool {
	return s.runner.IsRunning()
}

// NextTrigger returns the pending trigger time, nil if there is none.
func (s *Schedule) NextTrigger() *time.Time {
	return s.runner.NextScheduled()
}
