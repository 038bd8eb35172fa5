package trajectory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ChristopherRabotin/trajectory/condition"
	"github.com/ChristopherRabotin/trajectory/dynamics"
	"github.com/ChristopherRabotin/trajectory/integrator"
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	// ErrInstantOutOfRange is returned when states are requested outside of a solution.
	ErrInstantOutOfRange = errors.New("trajectory: instant out of the solution range")
	// ErrEmptySolution is returned when a solution holds no states.
	ErrEmptySolution = errors.New("trajectory: empty solution")
)

// SegmentType is the type of a segment.
type SegmentType uint8

const (
	// Coast segments only propagate the ambient dynamics.
	Coast SegmentType = iota + 1
	// Maneuver segments also fire a thruster.
	Maneuver
)

func (t SegmentType) String() string {
	switch t {
	case Coast:
		return "Coast"
	case Maneuver:
		return "Maneuver"
	}
	panic("cannot stringify unknown segment type")
}

// Segment is one phase of a trajectory, propagated until its event condition is satisfied.
type Segment struct {
	name        string
	kind        SegmentType
	condition   condition.EventCondition
	dynamics    []dynamics.Dynamics
	thruster    *dynamics.Thruster
	solver      *integrator.NumericalSolver
	constraints ManeuverConstraints
	logger      log.Logger
	metrics     *metrics.Metrics
}

// NewCoast returns a coast segment.
func NewCoast(name string, event condition.EventCondition, dyns []dynamics.Dynamics, solver *integrator.NumericalSolver, opts ...Option) (*Segment, error) {
	s := newSettings("segment", opts)
	if s.constraints.IsDefined() {
		return nil, fmt.Errorf("coast segment %s: maneuver constraints on a coast", name)
	}
	return newSegment(name, Coast, event, dyns, nil, solver, s)
}

// NewManeuver returns a maneuver segment, which fires the thruster in addition to the ambient dynamics.
func NewManeuver(name string, event condition.EventCondition, thruster *dynamics.Thruster, dyns []dynamics.Dynamics, solver *integrator.NumericalSolver, opts ...Option) (*Segment, error) {
	if thruster == nil {
		return nil, fmt.Errorf("maneuver segment %s: nil thruster", name)
	}
	s := newSettings("segment", opts)
	if err := s.constraints.Validate(); err != nil {
		return nil, fmt.Errorf("maneuver segment %s: %w", name, err)
	}
	return newSegment(name, Maneuver, event, dyns, thruster, solver, s)
}

func newSegment(name string, kind SegmentType, event condition.EventCondition, dyns []dynamics.Dynamics, thruster *dynamics.Thruster, solver *integrator.NumericalSolver, s settings) (*Segment, error) {
	if event == nil {
		return nil, fmt.Errorf("segment %s: nil event condition", name)
	}
	if solver == nil {
		return nil, fmt.Errorf("segment %s: nil numerical solver", name)
	}
	for _, d := range dyns {
		if d == nil {
			return nil, fmt.Errorf("segment %s: nil dynamics", name)
		}
	}
	logger := log.With(s.logger, "segment", name)
	return &Segment{name, kind, event, append([]dynamics.Dynamics(nil), dyns...), thruster, solver, s.constraints, logger, s.metrics}, nil
}

// Name returns the name of the segment.
func (s *Segment) Name() string { return s.name }

// Type returns the type of the segment.
func (s *Segment) Type() SegmentType { return s.kind }

// EventCondition returns the event condition ending the segment.
func (s *Segment) EventCondition() condition.EventCondition { return s.condition }

// Dynamics returns the ambient dynamics of the segment.
func (s *Segment) Dynamics() []dynamics.Dynamics {
	return append([]dynamics.Dynamics(nil), s.dynamics...)
}

// Thruster returns the thruster of a maneuver segment, nil for a coast.
func (s *Segment) Thruster() *dynamics.Thruster { return s.thruster }

// NumericalSolver returns the solver of the segment.
func (s *Segment) NumericalSolver() *integrator.NumericalSolver { return s.solver }

// ManeuverConstraints returns the constraints of the segment.
func (s *Segment) ManeuverConstraints() ManeuverConstraints { return s.constraints }

func (s *Segment) String() string {
	return fmt.Sprintf("%s %s (until %s)", s.kind, s.name, s.condition.Name())
}

// piece is a part of a segment propagated with or without the thruster.
type piece struct {
	Interval
	thrust bool
}

// Solve propagates the initial state until the event condition is satisfied, for at most the maximum duration.
func (s *Segment) Solve(initial state.State, maximumPropagationDuration time.Duration) (SegmentSolution, error) {
	return s.SolveAfterManeuver(initial, maximumPropagationDuration, time.Time{})
}

// SolveAfterManeuver is Solve for a segment following a maneuver which ended at previousManeuverEnd, which
// the minimum separation constraint is checked against. A zero instant means there was no previous maneuver.
func (s *Segment) SolveAfterManeuver(initial state.State, maximumPropagationDuration time.Duration, previousManeuverEnd time.Time) (SegmentSolution, error) {
	if !initial.IsDefined() {
		return SegmentSolution{}, state.ErrUndefinedState
	}
	if maximumPropagationDuration <= 0 {
		return SegmentSolution{}, fmt.Errorf("segment %s: maximum propagation duration must be positive, got %s", s.name, maximumPropagationDuration)
	}
	// Relative targets are resolved once against the segment initial state, so that all pieces share them.
	event, err := s.condition.Resolve(initial)
	if err != nil {
		return SegmentSolution{}, fmt.Errorf("segment %s: %w", s.name, err)
	}
	end := initial.Instant().Add(maximumPropagationDuration)
	level.Debug(s.logger).Log("status", "start", "type", s.kind, "instant", initial.Instant(), "max", maximumPropagationDuration)

	sol := SegmentSolution{Name: s.name, Type: s.kind, coast: s.dynamics, thruster: s.thruster}
	sol.Dynamics = s.allDynamics()
	states, satisfied, err := s.propagate(initial, end, event, s.kind == Maneuver)
	sol.States, sol.ConditionIsSatisfied = states, satisfied
	sol.pieces = []piece{{Interval{initial.Instant(), lastInstant(states, initial)}, s.kind == Maneuver}}
	if err != nil {
		return sol, fmt.Errorf("segment %s: %w", s.name, err)
	}
	if s.kind == Maneuver {
		if sol, err = s.constrain(sol, initial, end, event, previousManeuverEnd); err != nil {
			return sol, fmt.Errorf("segment %s: %w", s.name, err)
		}
	}
	duration := sol.PropagationDuration()
	s.metrics.ObserveSegment(s.kind.String(), sol.ConditionIsSatisfied, duration.Seconds())
	level.Info(s.logger).Log("status", "done", "satisfied", sol.ConditionIsSatisfied, "duration", duration, "states", len(sol.States), "maneuvers", len(sol.maneuvers))
	return sol, nil
}

func lastInstant(states []state.State, fallback state.State) time.Time {
	if len(states) == 0 {
		return fallback.Instant()
	}
	return states[len(states)-1].Instant()
}

func (s *Segment) allDynamics() []dynamics.Dynamics {
	dyns := append([]dynamics.Dynamics(nil), s.dynamics...)
	if s.thruster != nil {
		dyns = append(dyns, s.thruster)
	}
	return dyns
}

func (s *Segment) system(initial state.State, thrust bool) (integrator.SystemOfEquations, error) {
	dyns := s.dynamics
	if thrust {
		dyns = s.allDynamics()
	}
	sys, err := dynamics.NewSystemOfEquations(dyns, initial.Broker(), initial.Frame(), initial.Instant())
	if err != nil {
		return nil, err
	}
	return sys.Derivative, nil
}

// propagate integrates from the initial state up to the target or the event, and returns the observed states.
func (s *Segment) propagate(initial state.State, target time.Time, event condition.EventCondition, thrust bool) ([]state.State, bool, error) {
	sys, err := s.system(initial, thrust)
	if err != nil {
		return []state.State{initial}, false, err
	}
	solution, err := s.solver.IntegrateTimeWithCondition(initial, target, sys, event)
	states := solution.ObservedStates
	if len(states) == 0 {
		states = []state.State{initial}
	}
	if err != nil {
		return states, false, err
	}
	if !solution.RootSolverHasConverged {
		level.Warn(s.logger).Log("status", "event location did not converge", "instant", solution.State.Instant(), "iterations", solution.IterationCount)
	}
	return states, solution.ConditionIsSatisfied, nil
}

// maneuverRuns returns the intervals of the states where the thruster accelerates.
func maneuverRuns(states []state.State, thruster *dynamics.Thruster) ([]Interval, error) {
	var runs []Interval
	var current *Interval
	for _, st := range states {
		x, err := st.ExtractMany(thruster.ReadSubsets())
		if err != nil {
			return nil, err
		}
		contribution, err := thruster.ComputeContribution(st.Instant(), x, st.Frame())
		thrusting := err == nil && (contribution[0] != 0 || contribution[1] != 0 || contribution[2] != 0)
		if err != nil && !errors.Is(err, dynamics.ErrOutOfFuel) {
			return nil, err
		}
		switch {
		case thrusting && current == nil:
			current = &Interval{st.Instant(), st.Instant()}
		case current != nil:
			current.End = st.Instant()
			if !thrusting {
				runs = appendRun(runs, *current)
				current = nil
			}
		}
	}
	if current != nil {
		runs = appendRun(runs, *current)
	}
	return runs, nil
}

func appendRun(runs []Interval, run Interval) []Interval {
	if run.Duration() <= 0 {
		return runs
	}
	return append(runs, run)
}

// constrain applies the maneuver constraints to the realized maneuvers and re-propagates the segment if any
// maneuver is adjusted.
func (s *Segment) constrain(sol SegmentSolution, initial state.State, end time.Time, event condition.EventCondition, previousManeuverEnd time.Time) (SegmentSolution, error) {
	runs, err := maneuverRuns(sol.States, s.thruster)
	if err != nil {
		return sol, err
	}
	allowed := make([]Interval, 0, len(runs))
	changed := false
	previous := previousManeuverEnd
	for _, run := range runs {
		adjusted, keep, err := ApplyManeuverConstraints(run, previous, s.constraints)
		if err != nil {
			return sol, err
		}
		if !keep {
			level.Info(s.logger).Log("status", "maneuver skipped", "maneuver", run, "strategy", s.constraints.Strategy)
			changed = true
			continue
		}
		if adjusted != run {
			level.Info(s.logger).Log("status", "maneuver adjusted", "maneuver", run, "adjusted", adjusted, "strategy", s.constraints.Strategy)
			changed = true
		}
		allowed = append(allowed, adjusted)
		previous = adjusted.End
	}
	if !changed {
		sol.maneuvers = runs
		return sol, nil
	}
	return s.repropagate(sol, initial, end, event, allowed)
}

// repropagate integrates the segment again, firing the thruster only within the allowed windows.
func (s *Segment) repropagate(sol SegmentSolution, initial state.State, end time.Time, event condition.EventCondition, windows []Interval) (SegmentSolution, error) {
	var pieces []piece
	cursor := initial.Instant()
	for _, w := range windows {
		if w.Start.After(cursor) {
			pieces = append(pieces, piece{Interval{cursor, w.Start}, false})
		}
		pieces = append(pieces, piece{w, true})
		cursor = w.End
	}
	if end.After(cursor) {
		pieces = append(pieces, piece{Interval{cursor, end}, false})
	}
	sol.States = []state.State{initial}
	sol.ConditionIsSatisfied = false
	sol.pieces = nil
	sol.maneuvers = nil
	current := initial
	for _, p := range pieces {
		states, satisfied, err := s.propagate(current, p.End, event, p.thrust)
		sol.States = append(sol.States, states[1:]...)
		last := states[len(states)-1]
		sol.pieces = append(sol.pieces, piece{Interval{current.Instant(), last.Instant()}, p.thrust})
		if p.thrust && last.Instant().After(current.Instant()) {
			sol.maneuvers = append(sol.maneuvers, Interval{current.Instant(), last.Instant()})
		}
		if err != nil {
			return sol, err
		}
		current = last
		if satisfied {
			sol.ConditionIsSatisfied = true
			break
		}
	}
	return sol, nil
}

// SegmentSolution is the propagation of a segment.
type SegmentSolution struct {
	Name                 string
	Type                 SegmentType
	Dynamics             []dynamics.Dynamics
	States               []state.State // Chronological
	ConditionIsSatisfied bool

	coast     []dynamics.Dynamics
	thruster  *dynamics.Thruster
	pieces    []piece
	maneuvers []Interval
}

// InitialState returns the first state of the solution.
func (s SegmentSolution) InitialState() (state.State, error) {
	if len(s.States) == 0 {
		return state.Undefined(), ErrEmptySolution
	}
	return s.States[0], nil
}

// FinalState returns the last state of the solution.
func (s SegmentSolution) FinalState() (state.State, error) {
	if len(s.States) == 0 {
		return state.Undefined(), ErrEmptySolution
	}
	return s.States[len(s.States)-1], nil
}

// PropagationDuration returns the propagated duration.
func (s SegmentSolution) PropagationDuration() time.Duration {
	if len(s.States) == 0 {
		return 0
	}
	return s.States[len(s.States)-1].Instant().Sub(s.States[0].Instant())
}

// ThrusterDynamics returns the thruster of a maneuver solution, nil for a coast.
func (s SegmentSolution) ThrusterDynamics() *dynamics.Thruster {
	return s.thruster
}

// ManeuverIntervals returns the intervals during which the thruster accelerated.
func (s SegmentSolution) ManeuverIntervals() []Interval {
	return append([]Interval(nil), s.maneuvers...)
}

func massOf(st state.State) (float64, error) {
	m, err := st.Extract(state.Mass)
	if err != nil {
		return 0, err
	}
	return m[0], nil
}

// InitialMass returns the mass of the initial state.
func (s SegmentSolution) InitialMass() (float64, error) {
	st, err := s.InitialState()
	if err != nil {
		return 0, err
	}
	return massOf(st)
}

// FinalMass returns the mass of the final state.
func (s SegmentSolution) FinalMass() (float64, error) {
	st, err := s.FinalState()
	if err != nil {
		return 0, err
	}
	return massOf(st)
}

// DeltaMass returns the consumed propellant mass.
func (s SegmentSolution) DeltaMass() (float64, error) {
	m0, err := s.InitialMass()
	if err != nil {
		return 0, err
	}
	mf, err := s.FinalMass()
	if err != nil {
		return 0, err
	}
	return m0 - mf, nil
}

// DeltaV returns the velocity change of the consumed propellant from the rocket equation, for this specific impulse (s).
func (s SegmentSolution) DeltaV(isp float64) (float64, error) {
	if isp <= 0 {
		return 0, fmt.Errorf("specific impulse must be positive, got %f", isp)
	}
	m0, err := s.InitialMass()
	if err != nil {
		return 0, err
	}
	mf, err := s.FinalMass()
	if err != nil {
		return 0, err
	}
	return isp * dynamics.StandardGravity * math.Log(m0/mf), nil
}

// Contributions returns the contribution of these dynamics at every state of the solution.
func (s SegmentSolution) Contributions(d dynamics.Dynamics) ([][]float64, error) {
	contributions := make([][]float64, len(s.States))
	for i, st := range s.States {
		x, err := st.ExtractMany(d.ReadSubsets())
		if err != nil {
			return nil, err
		}
		if contributions[i], err = d.ComputeContribution(st.Instant(), x, st.Frame()); err != nil {
			return nil, fmt.Errorf("%s at %s: %w", d.Name(), st.Instant(), err)
		}
	}
	return contributions, nil
}

// CalculateStatesAt returns the states at these sorted instants, integrated with the solver from the closest
// preceding state of the solution under the dynamics which were active then.
func (s SegmentSolution) CalculateStatesAt(instants []time.Time, solver *integrator.NumericalSolver) ([]state.State, error) {
	if len(s.States) == 0 {
		return nil, ErrEmptySolution
	}
	if solver == nil {
		return nil, fmt.Errorf("calculate states: nil numerical solver")
	}
	first, last := s.States[0].Instant(), s.States[len(s.States)-1].Instant()
	states := make([]state.State, 0, len(instants))
	for i, dt := range instants {
		if dt.Before(first) || dt.After(last) {
			return states, fmt.Errorf("%s not within [%s, %s]: %w", dt, first, last, ErrInstantOutOfRange)
		}
		if i > 0 && dt.Before(instants[i-1]) {
			return states, fmt.Errorf("instant %d (%s): %w", i, dt, integrator.ErrNonMonotonicInstants)
		}
		idx := sort.Search(len(s.States), func(j int) bool { return s.States[j].Instant().After(dt) }) - 1
		anchor := s.States[idx]
		if anchor.Instant().Equal(dt) {
			states = append(states, anchor)
			continue
		}
		dyns := s.coast
		if s.thrustingAt(anchor.Instant()) {
			dyns = append(append([]dynamics.Dynamics(nil), s.coast...), s.thruster)
		}
		sys, err := dynamics.NewSystemOfEquations(dyns, anchor.Broker(), anchor.Frame(), anchor.Instant())
		if err != nil {
			return states, err
		}
		solution, err := solver.IntegrateTime(anchor, dt, sys.Derivative)
		if err != nil {
			return states, err
		}
		states = append(states, solution.State)
	}
	return states, nil
}

func (s SegmentSolution) thrustingAt(dt time.Time) bool {
	for _, p := range s.pieces {
		if p.thrust && !dt.Before(p.Start) && dt.Before(p.End) {
			return true
		}
	}
	return false
}
