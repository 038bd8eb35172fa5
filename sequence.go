package trajectory

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/trajectory/condition"
	"github.com/ChristopherRabotin/trajectory/dynamics"
	"github.com/ChristopherRabotin/trajectory/integrator"
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Sequence chains segments, each one starting from the final state of the previous one.
type Sequence struct {
	segments                   []*Segment
	dynamics                   []dynamics.Dynamics
	solver                     *integrator.NumericalSolver
	maximumPropagationDuration time.Duration
	repetitions                int
	logger                     log.Logger
	segmentLogger              log.Logger
	metrics                    *metrics.Metrics
}

// NewSequence returns an empty sequence. The dynamics and the solver are those of the segments added with
// AddCoastSegment and AddManeuverSegment. The maximum propagation duration bounds the whole sequence.
func NewSequence(dyns []dynamics.Dynamics, solver *integrator.NumericalSolver, maximumPropagationDuration time.Duration, opts ...Option) (*Sequence, error) {
	if solver == nil {
		return nil, fmt.Errorf("sequence: nil numerical solver")
	}
	if maximumPropagationDuration <= 0 {
		return nil, fmt.Errorf("sequence: maximum propagation duration must be positive, got %s", maximumPropagationDuration)
	}
	s := newSettings("sequence", opts)
	if s.repetitions < 1 {
		return nil, fmt.Errorf("sequence: repetition count must be at least one, got %d", s.repetitions)
	}
	return &Sequence{
		dynamics:                   append([]dynamics.Dynamics(nil), dyns...),
		solver:                     solver,
		maximumPropagationDuration: maximumPropagationDuration,
		repetitions:                s.repetitions,
		logger:                     s.logger,
		segmentLogger:              baseLogger(opts),
		metrics:                    s.metrics,
	}, nil
}

func baseLogger(opts []Option) log.Logger {
	s := settings{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&s)
	}
	return s.logger
}

// AddSegment appends a segment.
func (s *Sequence) AddSegment(segment *Segment) error {
	if segment == nil {
		return fmt.Errorf("sequence: nil segment")
	}
	s.segments = append(s.segments, segment)
	return nil
}

// AddCoastSegment appends a coast with the dynamics and the solver of the sequence.
func (s *Sequence) AddCoastSegment(name string, event condition.EventCondition) error {
	segment, err := NewCoast(name, event, s.dynamics, s.solver, WithLogger(s.segmentLogger), WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	return s.AddSegment(segment)
}

// AddManeuverSegment appends a maneuver with the dynamics and the solver of the sequence.
func (s *Sequence) AddManeuverSegment(name string, event condition.EventCondition, thruster *dynamics.Thruster, constraints ManeuverConstraints) error {
	segment, err := NewManeuver(name, event, thruster, s.dynamics, s.solver, WithLogger(s.segmentLogger), WithMetrics(s.metrics), WithManeuverConstraints(constraints))
	if err != nil {
		return err
	}
	return s.AddSegment(segment)
}

// Segments returns the segments of the sequence.
func (s *Sequence) Segments() []*Segment {
	return append([]*Segment(nil), s.segments...)
}

// Repetitions returns how many times the sequence runs through its segments.
func (s *Sequence) Repetitions() int {
	return s.repetitions
}

// MaximumPropagationDuration returns the bound of the propagated duration.
func (s *Sequence) MaximumPropagationDuration() time.Duration {
	return s.maximumPropagationDuration
}

// run is the progress of a sequence solve.
type run struct {
	current             state.State
	remaining           time.Duration
	previousManeuverEnd time.Time
	solution            SequenceSolution
}

// solveSegment solves the segment from the current state and returns false when the sequence must stop.
func (s *Sequence) solveSegment(r *run, segment *Segment) (bool, error) {
	if r.remaining <= 0 {
		level.Info(s.logger).Log("status", "maximum propagation duration reached", "next", segment.Name())
		return false, nil
	}
	sol, err := segment.SolveAfterManeuver(r.current, r.remaining, r.previousManeuverEnd)
	if len(sol.States) > 0 {
		r.solution.SegmentSolutions = append(r.solution.SegmentSolutions, sol)
	}
	if err != nil {
		return false, err
	}
	if maneuvers := sol.ManeuverIntervals(); len(maneuvers) > 0 {
		r.previousManeuverEnd = maneuvers[len(maneuvers)-1].End
	}
	final, err := sol.FinalState()
	if err != nil {
		return false, fmt.Errorf("segment %s: %w", segment.Name(), err)
	}
	r.current = final
	r.remaining -= sol.PropagationDuration()
	if !sol.ConditionIsSatisfied {
		level.Info(s.logger).Log("status", "maximum propagation duration reached", "segment", segment.Name(), "instant", r.current.Instant())
		return false, nil
	}
	return true, nil
}

// Solve runs the segments in order, for the configured number of repetitions. Reaching the maximum
// propagation duration is not an error: the partial solution is returned with ExecutionIsComplete unset.
// On error, the solution holds the segments solved so far.
func (s *Sequence) Solve(initial state.State) (SequenceSolution, error) {
	if !initial.IsDefined() {
		return SequenceSolution{}, state.ErrUndefinedState
	}
	if len(s.segments) == 0 {
		return SequenceSolution{}, fmt.Errorf("sequence: no segments")
	}
	r := &run{current: initial, remaining: s.maximumPropagationDuration}
	level.Debug(s.logger).Log("status", "start", "segments", len(s.segments), "repetitions", s.repetitions, "instant", initial.Instant())
	for rep := 0; rep < s.repetitions; rep++ {
		for _, segment := range s.segments {
			ok, err := s.solveSegment(r, segment)
			if err != nil {
				level.Error(s.logger).Log("status", "failed", "segment", segment.Name(), "repetition", rep, "err", err)
				return r.solution, fmt.Errorf("sequence repetition %d: %w", rep, err)
			}
			if !ok {
				return r.solution, nil
			}
		}
	}
	r.solution.ExecutionIsComplete = true
	level.Info(s.logger).Log("status", "done", "duration", r.solution.PropagationDuration(), "segments", len(r.solution.SegmentSolutions))
	return r.solution, nil
}

// SolveToCondition runs through the segments repeatedly, ignoring the repetition count, until the event
// condition is satisfied between the start and the end of a pass, for at most the maximum duration.
// Relative targets of the condition are resolved against the initial state.
func (s *Sequence) SolveToCondition(initial state.State, event condition.EventCondition, maximumPropagationDuration time.Duration) (SequenceSolution, error) {
	if !initial.IsDefined() {
		return SequenceSolution{}, state.ErrUndefinedState
	}
	if len(s.segments) == 0 {
		return SequenceSolution{}, fmt.Errorf("sequence: no segments")
	}
	if event == nil {
		return SequenceSolution{}, fmt.Errorf("sequence: nil event condition")
	}
	resolved, err := event.Resolve(initial)
	if err != nil {
		return SequenceSolution{}, err
	}
	remaining := s.maximumPropagationDuration
	if maximumPropagationDuration < remaining {
		remaining = maximumPropagationDuration
	}
	r := &run{current: initial, remaining: remaining}
	for pass := 0; ; pass++ {
		start := r.current
		for _, segment := range s.segments {
			ok, err := s.solveSegment(r, segment)
			if err != nil {
				return r.solution, fmt.Errorf("sequence pass %d: %w", pass, err)
			}
			if !ok {
				return r.solution, nil
			}
		}
		satisfied, err := resolved.IsSatisfied(start, r.current)
		if err != nil {
			return r.solution, err
		}
		if satisfied {
			r.solution.ExecutionIsComplete = true
			level.Info(s.logger).Log("status", "done", "condition", resolved.Name(), "passes", pass+1)
			return r.solution, nil
		}
		if !r.current.Instant().After(start.Instant()) {
			return r.solution, fmt.Errorf("sequence pass %d did not propagate, cannot reach %s", pass, resolved.Name())
		}
	}
}

// SequenceSolution is the propagation of a sequence.
type SequenceSolution struct {
	SegmentSolutions    []SegmentSolution
	ExecutionIsComplete bool
}

// InitialState returns the first state of the solution.
func (s SequenceSolution) InitialState() (state.State, error) {
	if len(s.SegmentSolutions) == 0 {
		return state.Undefined(), ErrEmptySolution
	}
	return s.SegmentSolutions[0].InitialState()
}

// FinalState returns the last state of the solution.
func (s SequenceSolution) FinalState() (state.State, error) {
	if len(s.SegmentSolutions) == 0 {
		return state.Undefined(), ErrEmptySolution
	}
	return s.SegmentSolutions[len(s.SegmentSolutions)-1].FinalState()
}

// States returns the chronological states of all segments, without duplicating the segment boundaries.
func (s SequenceSolution) States() []state.State {
	var states []state.State
	for i, sol := range s.SegmentSolutions {
		if i > 0 && len(sol.States) > 0 {
			states = append(states, sol.States[1:]...)
			continue
		}
		states = append(states, sol.States...)
	}
	return states
}

// PropagationDuration returns the propagated duration.
func (s SequenceSolution) PropagationDuration() time.Duration {
	var d time.Duration
	for _, sol := range s.SegmentSolutions {
		d += sol.PropagationDuration()
	}
	return d
}

// DeltaMass returns the consumed propellant mass.
func (s SequenceSolution) DeltaMass() (float64, error) {
	initial, err := s.InitialState()
	if err != nil {
		return 0, err
	}
	final, err := s.FinalState()
	if err != nil {
		return 0, err
	}
	m0, err := massOf(initial)
	if err != nil {
		return 0, err
	}
	mf, err := massOf(final)
	if err != nil {
		return 0, err
	}
	return m0 - mf, nil
}

// DeltaV returns the velocity change of the consumed propellant, for this specific impulse (s).
func (s SequenceSolution) DeltaV(isp float64) (float64, error) {
	total := 0.0
	for _, sol := range s.SegmentSolutions {
		if sol.Type != Maneuver {
			continue
		}
		dv, err := sol.DeltaV(isp)
		if err != nil {
			return 0, err
		}
		total += dv
	}
	return total, nil
}

// CalculateStatesAt returns the states at these sorted instants.
func (s SequenceSolution) CalculateStatesAt(instants []time.Time, solver *integrator.NumericalSolver) ([]state.State, error) {
	states := make([]state.State, 0, len(instants))
	i := 0
	for k, sol := range s.SegmentSolutions {
		final, err := sol.FinalState()
		if err != nil {
			return states, err
		}
		j := i
		for j < len(instants) && (!instants[j].After(final.Instant()) || k == len(s.SegmentSolutions)-1) {
			j++
		}
		if j == i {
			continue
		}
		computed, err := sol.CalculateStatesAt(instants[i:j], solver)
		states = append(states, computed...)
		if err != nil {
			return states, err
		}
		i = j
	}
	if i < len(instants) {
		return states, fmt.Errorf("%s: %w", instants[i], ErrInstantOutOfRange)
	}
	return states, nil
}
