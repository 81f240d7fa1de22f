/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Scheduled("a", time.Unix(1700000000, 500*int64(time.Millisecond)))
	m.Triggered("a")
	m.Triggered("a")
	m.Triggered("b")

	assert.InDelta(t, 2, testutil.ToFloat64(m.triggers.WithLabelValues("a")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.triggers.WithLabelValues("b")), 0)
	assert.InDelta(t, 1700000000.5, testutil.ToFloat64(m.next.WithLabelValues("a")), 0.001)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP rhythm_schedule_triggers_total Total number of schedule triggers
# TYPE rhythm_schedule_triggers_total counter
rhythm_schedule_triggers_total{schedule="a"} 2
rhythm_schedule_triggers_total{schedule="b"} 1
`), "rhythm_schedule_triggers_total"))

	m.Exhausted("a")
	assert.InDelta(t, 1, testutil.ToFloat64(m.exhausted.WithLabelValues("a")), 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.next))
}

func Test_MetricsNil(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Scheduled("a", time.Now())
	m.Triggered("a")
	m.Exhausted("a")
	m.Forget("a")
}

func Test_MetricsUnregistered(t *testing.T) {
	t.Parallel()

	m, err := New(nil)
	require.NoError(t, err)
	m.Triggered("a")
	assert.InDelta(t, 1, testutil.ToFloat64(m.triggers.WithLabelValues("a")), 0)
}

func Test_MetricsShared(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m1, err := New(reg)
	require.NoError(t, err)
	m2, err := New(reg)
	require.NoError(t, err)

	m1.Triggered("a")
	m2.Triggered("a")
	assert.InDelta(t, 2, testutil.ToFloat64(m1.triggers.WithLabelValues("a")), 0)

	_, err = reg.Gather()
	require.NoError(t, err)
}

func Test_MetricsConflict(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rhythm",
		Subsystem: "schedule",
		Name:      "triggers_total",
		Help:      "Something else",
	})))

	_, err := New(reg)
	require.Error(t, err)
}
