// Package integrator propagates states by numerically integrating a system of ordinary differential
// equations with Runge-Kutta schemes, optionally until an event condition is met.
package integrator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/condition"
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	safety        = 0.9
	minScale      = 0.2
	maxScale      = 5.0
	minStepFactor = 1e-14
)

var (
	// ErrNonMonotonicInstants is returned when the requested instants are not sorted in the propagation direction.
	ErrNonMonotonicInstants = errors.New("integrator: instants are not monotonic")
	// ErrStepTooSmall is returned when the adaptive step size underflows.
	ErrStepTooSmall = errors.New("integrator: step size too small")
	// ErrNonFinite is returned when the integration produces NaN or infinite values.
	ErrNonFinite = errors.New("integrator: non finite state")
	// ErrInvalidSolver is returned for an invalid solver configuration.
	ErrInvalidSolver = errors.New("integrator: invalid solver configuration")
)

// StepError is an error which occurred during the integration, at Time seconds from the initial instant.
type StepError struct {
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("integration step at %+.6f s: %s", e.Time, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// SystemOfEquations computes dxdt at t seconds from the initial instant of the integration.
type SystemOfEquations func(t float64, x, dxdt []float64) error

// LogType defines how much of the integration is logged.
type LogType uint8

const (
	// NoLog logs nothing.
	NoLog LogType = iota + 1
	// LogConstant logs every accepted step.
	LogConstant
	// LogAdaptive logs every accepted and rejected step, with its error.
	LogAdaptive
)

func (l LogType) String() string {
	switch l {
	case NoLog:
		return "NoLog"
	case LogConstant:
		return "LogConstant"
	case LogAdaptive:
		return "LogAdaptive"
	}
	panic("cannot stringify unknown log type")
}

// ParseLogType returns the log type of this name.
func ParseLogType(name string) (LogType, error) {
	for _, l := range []LogType{NoLog, LogConstant, LogAdaptive} {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown log type %q", name)
}

// Solution is the result of an integration.
type Solution struct {
	State                  state.State
	ConditionIsSatisfied   bool
	IterationCount         int // Root solver iterations to locate the event
	RootSolverHasConverged bool
	ObservedStates         []state.State // States at the accepted steps, from the initial state
}

// NumericalSolver integrates states. It holds no state across calls and is safe for concurrent use.
type NumericalSolver struct {
	logType           LogType
	stepperType       StepperType
	timeStep          float64
	relativeTolerance float64
	absoluteTolerance float64
	rootSolver        RootSolver
	logger            log.Logger
	metrics           *metrics.Metrics
}

// Option configures a NumericalSolver.
type Option func(*NumericalSolver)

// WithLogger sets the logger of the solver.
func WithLogger(logger log.Logger) Option {
	return func(s *NumericalSolver) {
		s.logger = log.With(logger, "subsys", "integrator")
	}
}

// WithMetrics sets the metrics of the solver.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *NumericalSolver) {
		s.metrics = m
	}
}

// NewNumericalSolver returns a new solver. The time step (seconds) bounds the adaptive steps and is the
// step of the fixed step scheme.
func NewNumericalSolver(logType LogType, stepperType StepperType, timeStep, relativeTolerance, absoluteTolerance float64, rootSolver RootSolver, opts ...Option) (*NumericalSolver, error) {
	if stepperType < RungeKutta4 || stepperType > RungeKuttaDopri5 {
		return nil, fmt.Errorf("stepper %d: %w", stepperType, ErrInvalidSolver)
	}
	if logType < NoLog || logType > LogAdaptive {
		return nil, fmt.Errorf("log type %d: %w", logType, ErrInvalidSolver)
	}
	if !(timeStep > 0) || math.IsInf(timeStep, 0) {
		return nil, fmt.Errorf("time step %g: %w", timeStep, ErrInvalidSolver)
	}
	if relativeTolerance < 0 || absoluteTolerance < 0 || relativeTolerance+absoluteTolerance == 0 {
		return nil, fmt.Errorf("tolerances %g and %g: %w", relativeTolerance, absoluteTolerance, ErrInvalidSolver)
	}
	if rootSolver.MaximumIterationCount <= 0 || rootSolver.Digits <= 0 {
		return nil, fmt.Errorf("root solver %+v: %w", rootSolver, ErrInvalidSolver)
	}
	s := &NumericalSolver{logType, stepperType, timeStep, relativeTolerance, absoluteTolerance, rootSolver, log.NewNopLogger(), nil}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultNumericalSolver returns a Dormand-Prince solver with 5 s steps and 1e-12 tolerances.
func DefaultNumericalSolver(opts ...Option) *NumericalSolver {
	s, _ := NewNumericalSolver(NoLog, RungeKuttaDopri5, 5, 1e-12, 1e-12, DefaultRootSolver(), opts...)
	return s
}

// LogType returns the log type.
func (s *NumericalSolver) LogType() LogType { return s.logType }

// StepperType returns the stepper type.
func (s *NumericalSolver) StepperType() StepperType { return s.stepperType }

// TimeStep returns the (maximum) time step in seconds.
func (s *NumericalSolver) TimeStep() float64 { return s.timeStep }

// RelativeTolerance returns the relative tolerance.
func (s *NumericalSolver) RelativeTolerance() float64 { return s.relativeTolerance }

// AbsoluteTolerance returns the absolute tolerance.
func (s *NumericalSolver) AbsoluteTolerance() float64 { return s.absoluteTolerance }

// RootSolver returns the root solver.
func (s *NumericalSolver) RootSolver() RootSolver { return s.rootSolver }

func (s *NumericalSolver) String() string {
	return fmt.Sprintf("NumericalSolver{%s h=%gs rel=%g abs=%g}", s.stepperType, s.timeStep, s.relativeTolerance, s.absoluteTolerance)
}

// IntegrateTime integrates the state up to the target instant.
func (s *NumericalSolver) IntegrateTime(initial state.State, target time.Time, system SystemOfEquations) (Solution, error) {
	return s.integrate(initial, target, system, nil)
}

// IntegrateTimes integrates the state through the instants, which must be sorted in a single direction from
// the initial instant, and returns the state at each of them.
func (s *NumericalSolver) IntegrateTimes(initial state.State, instants []time.Time, system SystemOfEquations) ([]state.State, error) {
	if !initial.IsDefined() {
		return nil, state.ErrUndefinedState
	}
	direction := 0
	for i, dt := range instants {
		reference := initial.Instant()
		if i > 0 {
			reference = instants[i-1]
		}
		d := dt.Compare(reference)
		if d == 0 && i == 0 {
			continue
		}
		if d == 0 || (direction != 0 && d != direction) {
			return nil, fmt.Errorf("instant %d (%s): %w", i, dt, ErrNonMonotonicInstants)
		}
		direction = d
	}
	states := make([]state.State, 0, len(instants))
	current := initial
	for _, dt := range instants {
		solution, err := s.integrate(current, dt, system, nil)
		if err != nil {
			return states, err
		}
		current = solution.State
		states = append(states, current)
	}
	return states, nil
}

// IntegrateTimeWithCondition integrates the state up to the target instant, stopping as soon as the event
// condition is satisfied. Relative targets of the condition are resolved against the initial state.
func (s *NumericalSolver) IntegrateTimeWithCondition(initial state.State, target time.Time, system SystemOfEquations, event condition.EventCondition) (Solution, error) {
	if event == nil {
		return Solution{}, fmt.Errorf("integrate with condition: nil condition")
	}
	return s.integrate(initial, target, system, event)
}

// propagation is the working memory of one integration.
type propagation struct {
	solver  *NumericalSolver
	initial state.State
	system  SystemOfEquations
	stepper *stepper
}

func (p *propagation) stateAt(t float64, x []float64) (state.State, error) {
	return state.New(state.InstantAt(p.initial.Instant(), t), x, p.initial.Frame(), p.initial.Broker())
}

func finite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s *NumericalSolver) integrate(initial state.State, target time.Time, system SystemOfEquations, event condition.EventCondition) (Solution, error) {
	if !initial.IsDefined() {
		return Solution{}, state.ErrUndefinedState
	}
	if system == nil {
		return Solution{}, fmt.Errorf("integrate: nil system of equations")
	}
	if event != nil {
		resolved, err := event.Resolve(initial)
		if err != nil {
			return Solution{}, err
		}
		event = resolved
		satisfied, err := event.IsSatisfied(initial, initial)
		if err != nil {
			return Solution{}, err
		}
		if satisfied {
			return Solution{State: initial, ConditionIsSatisfied: true, RootSolverHasConverged: true, ObservedStates: []state.State{initial}}, nil
		}
	}
	p := &propagation{s, initial, system, newStepper(s.stepperType, initial.Size())}
	tEnd := state.SecondsSince(initial.Instant(), target)
	direction := 1.0
	if tEnd < 0 {
		direction = -1
	}
	logger := log.With(s.logger, "stepper", s.stepperType.String())
	if s.logType != NoLog {
		level.Debug(logger).Log("status", "start", "from", initial.Instant(), "to", target, "event", conditionName(event))
	}

	t := 0.0
	x := initial.Coordinates()
	xNew := make([]float64, len(x))
	previous := initial
	observed := []state.State{initial}
	h := direction * math.Min(s.timeStep, math.Abs(tEnd))
	for direction*(tEnd-t) > 0 {
		last := false
		if math.Abs(h) >= math.Abs(tEnd-t) {
			h = tEnd - t
			last = true
		}
		errs, err := p.stepper.step(system, t, x, h, xNew)
		if err != nil {
			return Solution{State: previous, ObservedStates: observed}, &StepError{t, err}
		}
		var nextScale float64
		if p.stepper.adaptive() {
			norm := errorNorm(errs, x, xNew, s.relativeTolerance, s.absoluteTolerance)
			if math.IsNaN(norm) {
				return Solution{State: previous, ObservedStates: observed}, &StepError{t, ErrNonFinite}
			}
			if norm > 1 {
				s.metrics.ObserveStep(s.stepperType.String(), false)
				if s.logType == LogAdaptive {
					level.Debug(logger).Log("status", "rejected", "t", t, "h", h, "error", norm)
				}
				h *= math.Max(minScale, safety*math.Pow(norm, -1/p.stepper.q))
				if math.Abs(h) < minStepFactor*math.Max(1, math.Abs(t)) {
					return Solution{State: previous, ObservedStates: observed}, &StepError{t, ErrStepTooSmall}
				}
				continue
			}
			nextScale = maxScale
			if norm > 0 {
				nextScale = math.Min(maxScale, safety*math.Pow(norm, -1/p.stepper.q))
			}
			if s.logType == LogAdaptive {
				level.Debug(logger).Log("status", "accepted", "t", t, "h", h, "error", norm)
			}
		}
		if !finite(xNew) {
			return Solution{State: previous, ObservedStates: observed}, &StepError{t, ErrNonFinite}
		}
		s.metrics.ObserveStep(s.stepperType.String(), true)
		tNew := t + h
		if last {
			tNew = tEnd
		}
		current, err := p.stateAt(tNew, xNew)
		if err != nil {
			return Solution{State: previous, ObservedStates: observed}, err
		}
		if s.logType == LogConstant {
			level.Debug(logger).Log("status", "step", "t", tNew, "h", h)
		}
		if event != nil {
			satisfied, err := event.IsSatisfied(previous, current)
			if err != nil {
				return Solution{State: previous, ObservedStates: observed}, &StepError{tNew, err}
			}
			if satisfied {
				solution, err := p.locate(event, t, x, previous, tNew, current)
				solution.ObservedStates = append(observed, solution.State)
				return solution, err
			}
		}
		observed = append(observed, current)
		previous = current
		t = tNew
		x, xNew = xNew, x
		if p.stepper.adaptive() {
			h *= nextScale
		}
		if math.Abs(h) > s.timeStep {
			h = direction * s.timeStep
		}
	}
	if s.logType != NoLog {
		level.Debug(logger).Log("status", "done", "t", t, "satisfied", false)
	}
	return Solution{State: previous, ObservedStates: observed}, nil
}

// locate finds the earliest instant of the step [t0, t1] at which the condition is satisfied with respect to
// the state at the start of the step. States within the step are computed with a single sub-step from t0.
func (p *propagation) locate(event condition.EventCondition, t0 float64, x0 []float64, previous state.State, t1 float64, current state.State) (Solution, error) {
	s := p.solver
	atStart, err := event.IsSatisfied(previous, previous)
	if err != nil {
		return Solution{State: previous}, &StepError{t0, err}
	}
	if atStart {
		return Solution{State: previous, ConditionIsSatisfied: true, RootSolverHasConverged: true}, nil
	}
	sub := newStepper(s.stepperType, len(x0))
	buffer := make([]float64, len(x0))
	stateAt := func(τ float64) (state.State, error) {
		if τ == t1 {
			return current, nil
		}
		if _, err := sub.step(p.system, t0, x0, τ-t0, buffer); err != nil {
			return state.Undefined(), err
		}
		return p.stateAt(τ, buffer)
	}
	g := func(τ float64) (float64, error) {
		candidate, err := stateAt(τ)
		if err != nil {
			return 0, err
		}
		ok, err := event.IsSatisfied(previous, candidate)
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return -1, nil
	}
	root, err := s.rootSolver.Bisection(g, t0, t1)
	if err != nil {
		return Solution{State: previous}, &StepError{t0, err}
	}
	// Upper is the end of the final bracket on the side of t1, where the condition holds.
	τ := root.Upper
	located, err := stateAt(τ)
	if err != nil {
		return Solution{State: previous}, &StepError{τ, err}
	}
	s.metrics.ObserveRootSolve(root.IterationCount, root.HasConverged)
	if s.logType != NoLog {
		level.Debug(s.logger).Log("status", "event", "condition", event.Name(), "instant", located.Instant(), "iterations", root.IterationCount, "converged", root.HasConverged)
	}
	return Solution{State: located, ConditionIsSatisfied: true, IterationCount: root.IterationCount, RootSolverHasConverged: root.HasConverged}, nil
}

func conditionName(event condition.EventCondition) string {
	if event == nil {
		return "none"
	}
	return event.Name()
}
