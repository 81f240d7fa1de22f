/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dapr/kit/concurrency"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/etcd/client/pkg/v3/logutil"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/diagridio/go-rhythm/api"
	"github.com/diagridio/go-rhythm/internal/api/validator"
	"github.com/diagridio/go-rhythm/internal/consumer"
	"github.com/diagridio/go-rhythm/internal/metrics"
	"github.com/diagridio/go-rhythm/internal/queue"
	"github.com/diagridio/go-rhythm/internal/scheduler"
)

// Options are the options for creating a new cron instance.
type Options struct {
	// Log is the logger to use for logging.
	Log logr.Logger

	// TriggerFn is the function to call when a schedule is triggered.
	TriggerFn api.TriggerFunction

	// Clock is the clock used for computing and waiting for trigger times.
	// Defaults to the real clock.
	Clock clock.Clock

	// EventSink optionally receives the lifecycle events of every schedule.
	// Sends are blocking so the channel must be read.
	EventSink chan<- *api.Event

	// Registerer optionally registers the schedule metrics.
	Registerer prometheus.Registerer

	// NameSanitizer is a replacer that sanitizes schedule names before name
	// validation. Defaults to removing "_", ":", "-" and " ".
	NameSanitizer *strings.Replacer
}

// cron is the implementation of the cron interface.
type cron struct {
	log       logr.Logger
	queue     *queue.Queue
	validator *validator.Validator

	running atomic.Bool
	readyCh chan struct{}
}

// New creates a new cron instance.
func New(opts Options) (api.Interface, error) {
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

	var m *metrics.Metrics
	if opts.Registerer != nil {
		m, err = metrics.New(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return &cron{
		log: log,
		queue: queue.New(queue.Options{
			Log:              log,
			Clock:            clk,
			SchedulerBuilder: scheduler.NewBuilder(clk),
			TriggerFn:        opts.TriggerFn,
			Consumer:         consumer.New(consumer.Options{Sink: opts.EventSink}),
			Metrics:          m,
		}),
		validator: validator.New(validator.Options{
			NameSanitizer: opts.NameSanitizer,
		}),
		readyCh: make(chan struct{}),
	}, nil
}

// Run is a blocking function that runs the cron instance.
func (c *cron) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("cron already running")
	}

	c.log.Info("Starting cron")
	defer c.log.Info("Cron stopped")

	return concurrency.NewRunnerManager(
		c.queue.Run,
		func(ctx context.Context) error {
			close(c.readyCh)
			<-ctx.Done()
			return nil
		},
	).Run(ctx)
}

// Add validates and adds a named schedule.
func (c *cron) Add(ctx context.Context, name string, opts *api.ScheduleOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.validator.ScheduleName(name); err != nil {
		return err
	}

	if err := c.validator.ScheduleOptions(opts); err != nil {
		return err
	}

	if err := c.queue.Add(name, opts); err != nil {
		return fmt.Errorf("failed to add schedule %q: %w", name, err)
	}

	c.log.V(3).Info("Added schedule", "schedule", name)

	return nil
}

// Delete removes a named schedule.
func (c *cron) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.queue.Delete(name); err != nil {
		return err
	}

	c.log.V(3).Info("Deleted schedule", "schedule", name)

	return nil
}

func (c *cron) List() []string {
	return c.queue.List()
}

func (c *cron) NextTrigger(name string) (*time.Time, error) {
	return c.queue.NextTrigger(name)
}

// defaultLog returns log, or a zap logger at info level if log has no sink.
func defaultLog(log logr.Logger) (logr.Logger, error) {
	if log.GetSink() != nil {
		return log, nil
	}

	sink, err := logutil.CreateDefaultZapLogger(zap.InfoLevel)
	if err != nil {
		return logr.Logger{}, err
	}

	return zapr.NewLogger(sink).WithName("rhythm"), nil
}
