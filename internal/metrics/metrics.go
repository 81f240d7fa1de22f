/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments schedules. A nil Metrics records nothing.
type Metrics struct {
	triggers  *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	next      *prometheus.GaugeVec
}

// New creates the schedule metrics, registered on reg. A nil reg creates
// unregistered metrics. Metrics already registered on reg by a previous call
// are shared.
func New(reg prometheus.Registerer) (*Metrics, error) {
	triggers, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rhythm",
			Subsystem: "schedule",
			Name:      "triggers_total",
			Help:      "Total number of schedule triggers",
		},
		[]string{"schedule"},
	))
	if err != nil {
		return nil, err
	}

	exhausted, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rhythm",
			Subsystem: "schedule",
			Name:      "exhausted_total",
			Help:      "Total number of schedules which will never trigger again",
		},
		[]string{"schedule"},
	))
	if err != nil {
		return nil, err
	}

	next, err := register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rhythm",
			Subsystem: "schedule",
			Name:      "next_trigger_timestamp_seconds",
			Help:      "Unix time of the next trigger of the schedule",
		},
		[]string{"schedule"},
	))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		triggers:  triggers,
		exhausted: exhausted,
		next:      next,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		return c, nil
	}

	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}

	return c, nil
}

func (m *Metrics) Triggered(name string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(name).Inc()
}

func (m *Metrics) Scheduled(name string, at time.Time) {
	if m == nil {
		return
	}
	m.next.WithLabelValues(name).Set(float64(at.UnixMilli()) / 1000)
}

func (m *Metrics) Exhausted(name string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(name).Inc()
	m.next.DeleteLabelValues(name)
}

// Forget drops the pending trigger gauge of a schedule which is no longer
// scheduled.
func (m *Metrics) Forget(name string) {
	if m == nil {
		return
	}
	m.next.DeleteLabelValues(name)
}
