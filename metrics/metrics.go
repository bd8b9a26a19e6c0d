// Package metrics exports Application lifecycle events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jacoelho/partstore"
)

// Observer is a partstore.Observer recording state and hook timings.
type Observer struct {
	state        *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	hookDuration *prometheus.HistogramVec
	hookFailures *prometheus.CounterVec
}

var _ partstore.Observer = (*Observer)(nil)

var states = []partstore.State{
	partstore.StateNone,
	partstore.StateStarting,
	partstore.StateRunning,
	partstore.StateStopping,
	partstore.StateStopped,
}

// NewObserver creates an Observer with its metrics registered on reg.
// Returns nil if reg is nil; a nil Observer discards events.
func NewObserver(reg prometheus.Registerer) *Observer {
	if reg == nil {
		return nil
	}

	o := &Observer{
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "partstore_application_state",
				Help: "Current application state, 1 for the active state",
			},
			[]string{"state"},
		),
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "partstore_state_transitions_total",
				Help: "Total number of application state transitions",
			},
			[]string{"from", "to"},
		),
		hookDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "partstore_part_hook_duration_seconds",
				Help:    "Duration of part start and stop hooks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"part", "hook"}, // "start", "stop"
		),
		hookFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "partstore_part_hook_failures_total",
				Help: "Total number of failed part start and stop hooks",
			},
			[]string{"part", "hook"},
		),
	}
	o.setState(partstore.StateNone)
	return o
}

// OnStateChange records a state transition.
func (o *Observer) OnStateChange(previous, current partstore.State) {
	if o == nil {
		return
	}
	o.transitions.WithLabelValues(previous.String(), current.String()).Inc()
	o.setState(current)
}

// OnPartStart records a start hook.
func (o *Observer) OnPartStart(part string, elapsed time.Duration, err error) {
	o.recordHook(part, "start", elapsed, err)
}

// OnPartStop records a stop hook.
func (o *Observer) OnPartStop(part string, elapsed time.Duration, err error) {
	o.recordHook(part, "stop", elapsed, err)
}

func (o *Observer) recordHook(part, hook string, elapsed time.Duration, err error) {
	if o == nil {
		return
	}
	o.hookDuration.WithLabelValues(part, hook).Observe(elapsed.Seconds())
	if err != nil {
		o.hookFailures.WithLabelValues(part, hook).Inc()
	}
}

func (o *Observer) setState(current partstore.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		o.state.WithLabelValues(s.String()).Set(v)
	}
}
