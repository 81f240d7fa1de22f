/*
Copyright (c) 2025 Diagrid Inc.
Licensed under the MIT License.
*/

package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	eventsqueue "github.com/dapr/kit/events/queue"
	"github.com/dapr/kit/ptr"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/diagridio/go-rhythm/api"
	apierrors "github.com/diagridio/go-rhythm/api/errors"
	"github.com/diagridio/go-rhythm/internal/consumer"
	"github.com/diagridio/go-rhythm/internal/metrics"
	"github.com/diagridio/go-rhythm/internal/scheduler"
)

// Options are the options for the Queue.
type Options struct {
	// Log is the logger to use for Queue logging.
	Log logr.Logger

	// Clock is the clock to use for Queue operations.
	Clock clock.Clock

	// SchedulerBuilder is the scheduler builder to use for Queue operations.
	SchedulerBuilder *scheduler.Builder

	// TriggerFn is the trigger function to use for Queue operations.
	TriggerFn api.TriggerFunction

	// Consumer optionally receives schedule lifecycle events.
	Consumer *consumer.Consumer

	// Metrics optionally records schedule triggers.
	Metrics *metrics.Metrics
}

// Queue triggers named schedules. Every schedule has at most one pending
// trigger in the underlying processor, keyed by its name.
type Queue struct {
	log              logr.Logger
	clock            clock.Clock
	schedulerBuilder *scheduler.Builder
	triggerFn        api.TriggerFunction
	consumer         *consumer.Consumer
	metrics          *metrics.Metrics

	lock      sync.Mutex
	schedules map[string]*schedule
	running   bool
	ran       bool
	ctx       context.Context

	queue *eventsqueue.Processor[string, *item]
}

// schedule is a named schedule. Its iterator is only advanced while holding
// the queue lock.
type schedule struct {
	iter     scheduler.Interface
	metadata map[string]string
	next     *time.Time
	started  bool
}

// item is a pending trigger of a schedule.
type item struct {
	name string
	at   time.Time
}

func (i *item) Key() string {
	return i.name
}

func (i *item) ScheduledTime() time.Time {
	return i.at
}

func New(opts Options) *Queue {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	q := &Queue{
		log:              opts.Log.WithName("queue"),
		clock:            clk,
		schedulerBuilder: opts.SchedulerBuilder,
		triggerFn:        opts.TriggerFn,
		consumer:         opts.Consumer,
		metrics:          opts.Metrics,
		schedules:        make(map[string]*schedule),
	}

	q.queue = eventsqueue.NewProcessor[string, *item](
		eventsqueue.Options[string, *item]{
			Clock:     clk,
			ExecuteFn: q.execute,
		},
	)

	return q
}

// Run starts every added schedule and triggers them until ctx is cancelled.
// A Queue can only be run once.
func (q *Queue) Run(ctx context.Context) error {
	q.lock.Lock()
	if q.ran {
		q.lock.Unlock()
		return errors.New("queue already running")
	}
	q.ran = true
	q.running = true
	q.ctx = ctx

	for _, name := range q.names() {
		q.start(name, q.schedules[name])
	}
	q.lock.Unlock()

	q.log.Info("Queue started", "schedules", len(q.schedules))
	<-ctx.Done()

	q.lock.Lock()
	q.running = false
	for _, name := range q.names() {
		q.stop(name, q.schedules[name])
	}
	q.lock.Unlock()

	q.queue.Close()
	q.log.Info("Queue stopped")

	return nil
}

// Add adds a named schedule. It is started straight away if the queue is
// running.
func (q *Queue) Add(name string, opts *api.ScheduleOptions) error {
	if opts == nil {
		return errors.New("schedule options are required")
	}

	iter, err := q.schedulerBuilder.Scheduler(&opts.IteratorOptions)
	if err != nil {
		return err
	}

	q.lock.Lock()
	defer q.lock.Unlock()

	if _, ok := q.schedules[name]; ok {
		return apierrors.NewScheduleAlreadyExists(name)
	}

	s := &schedule{
		iter:     iter,
		metadata: opts.Metadata,
	}
	q.schedules[name] = s

	if q.running {
		q.start(name, s)
	}

	return nil
}

// Delete removes a schedule and its pending trigger.
func (q *Queue) Delete(name string) error {
	q.lock.Lock()
	defer q.lock.Unlock()

	s, ok := q.schedules[name]
	if !ok {
		return apierrors.NewScheduleNotFound(name)
	}

	delete(q.schedules, name)
	q.queue.Dequeue(name)
	q.stop(name, s)

	return nil
}

// List returns the sorted names of every schedule.
func (q *Queue) List() []string {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.names()
}

// NextTrigger returns the pending trigger time of a schedule, nil if it is
// not running or exhausted.
func (q *Queue) NextTrigger(name string) (*time.Time, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	s, ok := q.schedules[name]
	if !ok {
		return nil, apierrors.NewScheduleNotFound(name)
	}

	if s.next == nil {
		return nil, nil
	}

	return ptr.Of(*s.next), nil
}

func (q *Queue) names() []string {
	names := make([]string, 0, len(q.schedules))
	for name := range q.schedules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// start catches the schedule up to now and queues its first trigger.
func (q *Queue) start(name string, s *schedule) {
	s.started = true
	q.consumer.Started(name)

	now := q.clock.Now()
	next, err := s.iter.Next(&now)
	q.advance(name, s, next, err)
}

func (q *Queue) stop(name string, s *schedule) {
	s.next = nil
	q.metrics.Forget(name)
	if s.started {
		s.started = false
		q.consumer.Stopped(name)
	}
}

// advance records the next trigger time of the schedule and queues it.
func (q *Queue) advance(name string, s *schedule, next *time.Time, err error) {
	switch {
	case err != nil:
		q.log.Error(err, "Failed to compute next trigger time, removing schedule", "schedule", name)
		delete(q.schedules, name)
		q.stop(name, s)

	case next == nil:
		q.log.V(3).Info("Schedule exhausted", "schedule", name)
		s.next = nil
		q.metrics.Exhausted(name)
		q.consumer.Exhausted(name)

	default:
		s.next = next
		q.metrics.Scheduled(name, *next)
		q.consumer.Scheduled(name, *next)
		q.queue.Enqueue(&item{name: name, at: *next})
	}
}

func (q *Queue) execute(it *item) {
	q.lock.Lock()
	defer q.lock.Unlock()

	s, ok := q.schedules[it.name]
	if !ok || !q.running || s.next == nil || !s.next.Equal(it.at) {
		// Deleted, stopped or re-added since queued.
		return
	}

	next, err := s.iter.Next(nil)
	q.advance(it.name, s, next, err)

	req := &api.TriggerRequest{
		Name:     it.name,
		ID:       uuid.NewString(),
		Instant:  it.at,
		Metadata: s.metadata,
	}

	q.log.V(3).Info("Triggering schedule", "schedule", it.name, "id", req.ID, "instant", it.at)
	go q.triggerFn(q.ctx, req)

	q.metrics.Triggered(it.name)
	q.consumer.Triggered(it.name, it.at)
}
