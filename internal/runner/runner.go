/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dapr/kit/ptr"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/api/errors"
	"github.com/diagridio/go-rhythm/internal/consumer"
	"github.com/diagridio/go-rhythm/internal/metrics"
)

// Options is the configuration for a Runner.
type Options struct {
	// Log is the logger for the runner to use.
	Log logr.Logger

	// Name is the name of the schedule, reported in events and metrics.
	Name string

	// Iterator produces the trigger times. It is owned by the runner.
	Iterator api.Iterator

	// TriggerFn is called in its own goroutine at every trigger time.
	TriggerFn api.TriggerFunction

	// Metadata is passed to TriggerFn.
	Metadata map[string]string

	// Clock is the clock used for timers. Defaults to the real clock.
	Clock clock.Clock

	// Consumer optionally receives lifecycle events.
	Consumer *consumer.Consumer

	// Metrics optionally records triggers.
	Metrics *metrics.Metrics
}

type state uint8

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Runner triggers a function at every time produced by an iterator, using a
// single timer. A Runner runs at most once: once stopped it cannot be
// restarted.
type Runner struct {
	log       logr.Logger
	name      string
	iter      api.Iterator
	triggerFn api.TriggerFunction
	metadata  map[string]string
	clock     clock.Clock
	consumer  *consumer.Consumer
	metrics   *metrics.Metrics

	lock   sync.Mutex
	state  state
	next   *time.Time
	cancel context.CancelFunc
	doneCh chan struct{}
	err    error
}

func New(opts Options) *Runner {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Runner{
		log:       opts.Log.WithName("runner"),
		name:      opts.Name,
		iter:      opts.Iterator,
		triggerFn: opts.TriggerFn,
		metadata:  opts.Metadata,
		clock:     clk,
		consumer:  opts.Consumer,
		metrics:   opts.Metrics,
		doneCh:    make(chan struct{}),
	}
}

// Start starts triggering in the background. Cancelling ctx stops the
// runner. Start is a no-op if ctx is already done.
func (r *Runner) Start(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	switch r.state {
	case stateRunning:
		return errors.ErrAlreadyStarted
	case stateStopped:
		return errors.ErrStopped
	}

	if ctx.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = stateRunning

	go r.run(ctx)

	return nil
}

// Stop stops the runner, cancelling the pending trigger, and waits for it to
// shut down. Triggers already dispatched are not waited for.
func (r *Runner) Stop() {
	r.lock.Lock()
	if r.state != stateRunning {
		r.lock.Unlock()
		return
	}
	cancel := r.cancel
	r.lock.Unlock()

	cancel()
	<-r.doneCh
}

// Wait blocks until the runner has stopped, returning the error which stopped
// it, if any. Returns immediately if the runner was never started.
func (r *Runner) Wait() error {
	r.lock.Lock()
	if r.state == stateIdle {
		r.lock.Unlock()
		return nil
	}
	r.lock.Unlock()

	<-r.doneCh

	r.lock.Lock()
	defer r.lock.Unlock()
	return r.err
}

// IsRunning returns true if the runner is started and not yet stopped.
func (r *Runner) IsRunning() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state == stateRunning
}

// NextScheduled returns the time of the pending trigger, or nil if there is
// none.
func (r *Runner) NextScheduled() *time.Time {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.next == nil {
		return nil
	}
	return ptr.Of(*r.next)
}

func (r *Runner) run(ctx context.Context) {
	r.consumer.Started(r.name)
	r.log.V(3).Info("Schedule started", "schedule", r.name)

	err := r.loop(ctx)
	if err != nil {
		r.log.Error(err, "Schedule failed", "schedule", r.name)
	}

	r.lock.Lock()
	r.cancel()
	r.state = stateStopped
	r.next = nil
	r.err = err
	r.lock.Unlock()

	r.metrics.Forget(r.name)
	r.consumer.Stopped(r.name)
	r.log.V(3).Info("Schedule stopped", "schedule", r.name)

	close(r.doneCh)
}

func (r *Runner) loop(ctx context.Context) error {
	// Catch up, skipping times which have already passed.
	now := r.clock.Now()
	next, err := r.iter.Next(&now)

	var fired *time.Time
	for {
		var timer clock.Timer
		switch {
		case err != nil:
		case next == nil:
			r.setNext(nil)
			r.metrics.Exhausted(r.name)
			r.consumer.Exhausted(r.name)
		default:
			timer = r.clock.NewTimer(next.Sub(r.clock.Now()))
			r.setNext(next)
			r.metrics.Scheduled(r.name, *next)
			r.consumer.Scheduled(r.name, *next)
		}

		// The next timer is armed before the fired time is triggered.
		if fired != nil {
			r.trigger(ctx, *fired)
		}

		if err != nil {
			return fmt.Errorf("failed to compute next trigger time: %w", err)
		}

		if timer == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C():
		}

		fired = next
		next, err = r.iter.Next(nil)
	}
}

func (r *Runner) setNext(next *time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.next = next
}

func (r *Runner) trigger(ctx context.Context, at time.Time) {
	req := &api.TriggerRequest{
		Name:     r.name,
		ID:       uuid.NewString(),
		Instant:  at,
		Metadata: r.metadata,
	}

	r.log.V(3).Info("Triggering schedule", "schedule", r.name, "id", req.ID, "instant", at)
	go r.triggerFn(ctx, req)

	r.metrics.Triggered(r.name)
	r.consumer.Triggered(r.name, at)
}
