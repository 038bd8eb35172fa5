// Package metrics instruments the numerical propagation with Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the propagation collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stepsTotal          *prometheus.CounterVec
	rootIterations      prometheus.Histogram
	rootNotConverged    prometheus.Counter
	segmentsTotal       *prometheus.CounterVec
	segmentDurationSecs *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trajectory_integrator_steps_total",
				Help: "Total number of integration steps.",
			},
			[]string{"stepper", "outcome"},
		),
		rootIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trajectory_root_solver_iterations",
				Help:    "Number of root solver iterations per located event.",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		rootNotConverged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trajectory_root_solver_not_converged_total",
				Help: "Total number of event locations which did not converge.",
			},
		),
		segmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trajectory_segments_total",
				Help: "Total number of solved segments.",
			},
			[]string{"type", "satisfied"},
		),
		segmentDurationSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trajectory_segment_propagation_seconds",
				Help:    "Propagated duration of solved segments, in seconds of simulated time.",
				Buckets: prometheus.ExponentialBuckets(60, 4, 10),
			},
			[]string{"type"},
		),
	}
	for _, c := range []prometheus.Collector{m.stepsTotal, m.rootIterations, m.rootNotConverged, m.segmentsTotal, m.segmentDurationSecs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveStep records an accepted or rejected step.
func (m *Metrics) ObserveStep(stepper string, accepted bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.stepsTotal.WithLabelValues(stepper, outcome).Inc()
}

// ObserveRootSolve records an event location.
func (m *Metrics) ObserveRootSolve(iterations int, converged bool) {
	if m == nil {
		return
	}
	m.rootIterations.Observe(float64(iterations))
	if !converged {
		m.rootNotConverged.Inc()
	}
}

// ObserveSegment records a solved segment and its propagated duration.
func (m *Metrics) ObserveSegment(kind string, satisfied bool, seconds float64) {
	if m == nil {
		return
	}
	m.segmentsTotal.WithLabelValues(kind, strconv.FormatBool(satisfied)).Inc()
	if seconds < 0 {
		seconds = -seconds
	}
	m.segmentDurationSecs.WithLabelValues(kind).Observe(seconds)
}
