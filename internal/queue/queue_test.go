/*
Copyright (c) 2025 Diagrid Inc.
Licensed under the MIT License.
*/

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dapr/kit/ptr"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/diagridio/go-rhythm/api"
	apierrors "github.com/diagridio/go-rhythm/api/errors"
	"github.com/diagridio/go-rhythm/internal/scheduler"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	lock     sync.Mutex
	requests []*api.TriggerRequest
}

func (r *recorder) trigger(_ context.Context, req *api.TriggerRequest) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	names := make([]string, 0, len(r.requests))
	for _, req := range r.requests {
		names = append(names, req.Name)
	}
	return names
}

func newQueue(t *testing.T) (*Queue, *clocktesting.FakeClock, *recorder) {
	t.Helper()

	clock := clocktesting.NewFakeClock(start)
	rec := new(recorder)

	q := New(Options{
		Log:              logr.Discard(),
		Clock:            clock,
		SchedulerBuilder: scheduler.NewBuilder(clock),
		TriggerFn:        rec.trigger,
	})

	return q, clock, rec
}

func run(t *testing.T, q *Queue) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Run(ctx) }()

	assert.Eventually(t, func() bool {
		q.lock.Lock()
		defer q.lock.Unlock()
		return q.running
	}, time.Second*5, time.Millisecond*10)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(time.Second * 5):
			assert.Fail(t, "timeout waiting for queue to stop")
		}
	})
}

func minutely(limit *uint32) *api.ScheduleOptions {
	return &api.ScheduleOptions{
		IteratorOptions: api.IteratorOptions{
			Times:     []any{"PT1M"},
			StartDate: ptr.Of(start),
			Limit:     limit,
		},
		Metadata: map[string]string{"foo": "bar"},
	}
}

func Test_Queue(t *testing.T) {
	t.Parallel()

	t.Run("triggers added schedule", func(t *testing.T) {
		t.Parallel()

		q, clock, rec := newQueue(t)
		require.NoError(t, q.Add("abc", minutely(ptr.Of(uint32(2)))))

		next, err := q.NextTrigger("abc")
		require.NoError(t, err)
		assert.Nil(t, next, "not running")

		run(t, q)

		next, err = q.NextTrigger("abc")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.True(t, start.Add(time.Minute).Equal(*next))

		assert.Eventually(t, clock.HasWaiters, time.Second*5, time.Millisecond*10)
		clock.Step(time.Minute)

		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			assert.Equal(c, []string{"abc"}, rec.names())
		}, time.Second*5, time.Millisecond*10)

		rec.lock.Lock()
		req := rec.requests[0]
		rec.lock.Unlock()
		assert.True(t, start.Add(time.Minute).Equal(req.Instant))
		assert.Equal(t, map[string]string{"foo": "bar"}, req.Metadata)
		assert.NotEmpty(t, req.ID)

		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			next, err := q.NextTrigger("abc")
			assert.NoError(c, err)
			if assert.NotNil(c, next) {
				assert.True(c, start.Add(2*time.Minute).Equal(*next))
			}
		}, time.Second*5, time.Millisecond*10)

		clock.Step(time.Minute)
		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			assert.Equal(c, []string{"abc", "abc"}, rec.names())
		}, time.Second*5, time.Millisecond*10)

		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			next, err := q.NextTrigger("abc")
			assert.NoError(c, err)
			assert.Nil(c, next)
		}, time.Second*5, time.Millisecond*10)

		assert.Equal(t, []string{"abc"}, q.List(), "exhausted schedules stay registered")
	})

	t.Run("add while running", func(t *testing.T) {
		t.Parallel()

		q, clock, rec := newQueue(t)
		run(t, q)

		require.NoError(t, q.Add("def", minutely(nil)))
		next, err := q.NextTrigger("def")
		require.NoError(t, err)
		require.NotNil(t, next)

		assert.Eventually(t, clock.HasWaiters, time.Second*5, time.Millisecond*10)
		clock.Step(time.Minute)
		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			assert.Equal(c, []string{"def"}, rec.names())
		}, time.Second*5, time.Millisecond*10)
	})

	t.Run("deleted schedule is not triggered", func(t *testing.T) {
		t.Parallel()

		q, clock, rec := newQueue(t)
		require.NoError(t, q.Add("abc", minutely(nil)))
		require.NoError(t, q.Add("def", minutely(nil)))
		run(t, q)

		require.NoError(t, q.Delete("abc"))
		assert.Equal(t, []string{"def"}, q.List())

		assert.Eventually(t, clock.HasWaiters, time.Second*5, time.Millisecond*10)
		clock.Step(time.Minute)
		assert.EventuallyWithT(t, func(c *assert.CollectT) {
			assert.Equal(c, []string{"def"}, rec.names())
		}, time.Second*5, time.Millisecond*10)
	})

	t.Run("already exists and not found", func(t *testing.T) {
		t.Parallel()

		q, _, _ := newQueue(t)
		require.NoError(t, q.Add("abc", minutely(nil)))

		err := q.Add("abc", minutely(nil))
		require.Error(t, err)
		assert.True(t, apierrors.IsScheduleAlreadyExists(err))

		err = q.Delete("def")
		require.Error(t, err)
		assert.True(t, apierrors.IsScheduleNotFound(err))

		_, err = q.NextTrigger("def")
		require.Error(t, err)
		assert.True(t, apierrors.IsScheduleNotFound(err))
	})

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()

		q, _, _ := newQueue(t)
		err := q.Add("abc", &api.ScheduleOptions{
			IteratorOptions: api.IteratorOptions{Times: []any{"not a cron"}},
		})
		require.Error(t, err)
		assert.True(t, apierrors.IsInvalidTimeSpec(err))
		assert.Empty(t, q.List())

		require.Error(t, q.Add("abc", nil))
	})

	t.Run("list is sorted", func(t *testing.T) {
		t.Parallel()

		q, _, _ := newQueue(t)
		for _, name := range []string{"c", "a", "b"} {
			require.NoError(t, q.Add(name, minutely(nil)))
		}
		assert.Equal(t, []string{"a", "b", "c"}, q.List())
	})

	t.Run("run twice", func(t *testing.T) {
		t.Parallel()

		q, _, _ := newQueue(t)
		run(t, q)
		require.Error(t, q.Run(context.Background()))
	})
}
