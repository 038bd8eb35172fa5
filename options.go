package trajectory

import (
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/go-kit/log"
)

type settings struct {
	logger      log.Logger
	metrics     *metrics.Metrics
	constraints ManeuverConstraints
	repetitions int
}

func newSettings(subsys string, opts []Option) settings {
	s := settings{logger: log.NewNopLogger(), repetitions: 1}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = log.With(s.logger, "subsys", subsys)
	return s
}

// Option configures segments and sequences.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithManeuverConstraints sets the constraints of a maneuver segment.
func WithManeuverConstraints(c ManeuverConstraints) Option {
	return func(s *settings) {
		s.constraints = c
	}
}

// WithRepetitions sets how many times a sequence runs through its segments.
func WithRepetitions(n int) Option {
	return func(s *settings) {
		s.repetitions = n
	}
}
