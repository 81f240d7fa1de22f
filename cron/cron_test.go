/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cron

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dapr/kit/ptr"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/diagridio/go-rhythm/api"
	apierrors "github.com/diagridio/go-rhythm/api/errors"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func everyMinute() *api.ScheduleOptions {
	return &api.ScheduleOptions{
		IteratorOptions: api.IteratorOptions{
			Times:     []any{"PT1M"},
			StartDate: ptr.Of(start),
		},
	}
}

func Test_New(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Log: logr.Discard()})
	require.Error(t, err)

	_, err = New(Options{TriggerFn: func(context.Context, *api.TriggerRequest) {}})
	require.NoError(t, err, "default logger")
}

func Test_Run(t *testing.T) {
	t.Parallel()

	t.Run("Running multiple times should error", func(t *testing.T) {
		t.Parallel()

		cronI, err := New(Options{
			Log:       logr.Discard(),
			TriggerFn: func(context.Context, *api.TriggerRequest) {},
		})
		require.NoError(t, err)
		cron := cronI.(*cron)

		ctx, cancel := context.WithCancel(context.Background())
		errCh1 := make(chan error)
		errCh2 := make(chan error)

		go func() {
			errCh1 <- cronI.Run(ctx)
		}()

		select {
		case <-cron.readyCh:
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting for cron to be ready")
		}

		go func() {
			errCh2 <- cronI.Run(ctx)
		}()

		select {
		case err := <-errCh2:
			require.Error(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting Run response")
		}

		cancel()
		select {
		case err := <-errCh1:
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting Run response")
		}
	})

	t.Run("triggers schedules and reports events and metrics", func(t *testing.T) {
		t.Parallel()

		clock := clocktesting.NewFakeClock(start)
		events := make(chan *api.Event, 100)
		reg := prometheus.NewRegistry()
		triggered := make(chan *api.TriggerRequest, 10)

		cronI, err := New(Options{
			Log:   logr.Discard(),
			Clock: clock,
			TriggerFn: func(_ context.Context, req *api.TriggerRequest) {
				triggered <- req
			},
			EventSink:  events,
			Registerer: reg,
		})
		require.NoError(t, err)

		opts := everyMinute()
		opts.Limit = ptr.Of(uint32(1))
		opts.Metadata = map[string]string{"foo": "bar"}
		require.NoError(t, cronI.Add(context.Background(), "reports/daily", opts))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error)
		go func() { errCh <- cronI.Run(ctx) }()

		expectEvent(t, events, api.EventStarted)
		expectEvent(t, events, api.EventScheduled)

		next, err := cronI.NextTrigger("reports/daily")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.True(t, start.Add(time.Minute).Equal(*next))

		assert.Eventually(t, clock.HasWaiters, time.Second*5, time.Millisecond*10)
		clock.Step(time.Minute)

		expectEvent(t, events, api.EventExhausted)
		expectEvent(t, events, api.EventTriggered)

		select {
		case req := <-triggered:
			assert.Equal(t, "reports/daily", req.Name)
			assert.Equal(t, map[string]string{"foo": "bar"}, req.Metadata)
			assert.True(t, start.Add(time.Minute).Equal(req.Instant))
		case <-time.After(time.Second * 5):
			t.Fatal("timed out waiting for trigger")
		}

		count, err := testutil.GatherAndCount(reg, "rhythm_schedule_triggers_total", "rhythm_schedule_exhausted_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		require.NoError(t, cronI.Delete(context.Background(), "reports/daily"))
		expectEvent(t, events, api.EventStopped)
		assert.Empty(t, cronI.List())

		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(time.Second * 5):
			t.Fatal("timed out waiting Run response")
		}
	})
}

func Test_API(t *testing.T) {
	t.Parallel()

	newCron := func(t *testing.T) api.Interface {
		t.Helper()
		cronI, err := New(Options{
			Log:       logr.Discard(),
			TriggerFn: func(context.Context, *api.TriggerRequest) {},
		})
		require.NoError(t, err)
		return cronI
	}

	t.Run("add, list and delete", func(t *testing.T) {
		t.Parallel()

		c := newCron(t)
		ctx := context.Background()
		require.NoError(t, c.Add(ctx, "b", everyMinute()))
		require.NoError(t, c.Add(ctx, "a", everyMinute()))
		assert.Equal(t, []string{"a", "b"}, c.List())

		err := c.Add(ctx, "a", everyMinute())
		require.Error(t, err)
		assert.True(t, apierrors.IsScheduleAlreadyExists(err))

		require.NoError(t, c.Delete(ctx, "a"))
		err = c.Delete(ctx, "a")
		require.Error(t, err)
		assert.True(t, apierrors.IsScheduleNotFound(err))
		assert.Equal(t, []string{"b"}, c.List())
	})

	t.Run("invalid requests", func(t *testing.T) {
		t.Parallel()

		c := newCron(t)
		ctx := context.Background()

		require.Error(t, c.Add(ctx, "", everyMinute()))
		require.Error(t, c.Add(ctx, "foo/", everyMinute()))
		require.Error(t, c.Add(ctx, "a", nil))

		err := c.Add(ctx, "a", &api.ScheduleOptions{
			IteratorOptions: api.IteratorOptions{Times: []any{"every tuesday"}},
		})
		require.Error(t, err)
		assert.True(t, apierrors.IsInvalidTimeSpec(err))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		require.ErrorIs(t, c.Add(cctx, "a", everyMinute()), context.Canceled)
		require.ErrorIs(t, c.Delete(cctx, "a"), context.Canceled)

		assert.Empty(t, c.List())
	})

	t.Run("custom name sanitizer", func(t *testing.T) {
		t.Parallel()

		cronI, err := New(Options{
			Log:           logr.Discard(),
			TriggerFn:     func(context.Context, *api.TriggerRequest) {},
			NameSanitizer: strings.NewReplacer("@", ""),
		})
		require.NoError(t, err)
		require.NoError(t, cronI.Add(context.Background(), "team@report", everyMinute()))
	})
}

func Test_RunTriggersConcurrently(t *testing.T) {
	t.Parallel()

	clock := clocktesting.NewFakeClock(start)
	var triggered atomic.Int64
	release := make(chan struct{})

	cronI, err := New(Options{
		Log:   logr.Discard(),
		Clock: clock,
		TriggerFn: func(context.Context, *api.TriggerRequest) {
			triggered.Add(1)
			<-release
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { close(release) })

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, cronI.Add(context.Background(), name, everyMinute()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cronI.Run(ctx)

	assert.Eventually(t, clock.HasWaiters, time.Second*5, time.Millisecond*10)
	clock.Step(time.Minute)

	// Blocked trigger functions do not block other schedules.
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		assert.Equal(c, int64(3), triggered.Load())
	}, time.Second*5, time.Millisecond*10)
}

func expectEvent(t *testing.T, events <-chan *api.Event, typ api.EventType) {
	t.Helper()

	select {
	case ev := <-events:
		assert.Equal(t, typ.String(), ev.Type.String())
	case <-time.After(time.Second * 5):
		t.Fatalf("timed out waiting for %s event", typ)
	}
}
