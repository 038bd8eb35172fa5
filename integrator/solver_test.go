package integrator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ChristopherRabotin/trajectory/condition"
	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats"
)

var epoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

// harmonic is x” = -x, with x(0) = 0 and x'(0) = 1 so that x(t) = sin(t).
func harmonic(_ float64, x, dxdt []float64) error {
	dxdt[0] = x[1]
	dxdt[1] = -x[0]
	return nil
}

func oscillatorState(t *testing.T) state.State {
	subset, err := state.NewCoordinateSubset("oscillator", 2)
	if err != nil {
		t.Fatal(err)
	}
	s, err := state.NewFromSubsets(epoch, []float64{0, 1}, frame.NewInertial("GCRF"), subset)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func at(seconds float64) time.Time {
	return state.InstantAt(epoch, seconds)
}

func expectOscillator(t *testing.T, s state.State, seconds, tol float64) {
	t.Helper()
	got := s.Coordinates()
	want := []float64{math.Sin(seconds), math.Cos(seconds)}
	if !floats.EqualApprox(got, want, tol) {
		t.Fatalf("at %f s: got %v want %v (Δ=%e)", seconds, got, want, math.Abs(got[0]-want[0]))
	}
}

func TestIntegrateTimeAdaptive(t *testing.T) {
	for _, stepper := range []StepperType{RungeKuttaCashKarp54, RungeKuttaDopri5, RungeKuttaFehlberg78} {
		solver, err := NewNumericalSolver(LogAdaptive, stepper, 5, 1e-12, 1e-12, DefaultRootSolver(), WithLogger(log.NewNopLogger()))
		if err != nil {
			t.Fatal(err)
		}
		sol, err := solver.IntegrateTime(oscillatorState(t), at(100), harmonic)
		if err != nil {
			t.Fatalf("%s: %s", stepper, err)
		}
		if !sol.State.Instant().Equal(at(100)) {
			t.Fatalf("%s: final instant %s", stepper, sol.State.Instant())
		}
		expectOscillator(t, sol.State, 100, 1e-7)
		if sol.ConditionIsSatisfied {
			t.Fatalf("%s: no condition to satisfy", stepper)
		}
		if len(sol.ObservedStates) < 21 {
			t.Fatalf("%s: steps are bounded by 5 s, got %d states", stepper, len(sol.ObservedStates))
		}
		if !sol.ObservedStates[0].Equal(oscillatorState(t)) {
			t.Fatalf("%s: first observed state is not the initial state", stepper)
		}
	}
}

func TestIntegrateTimeHighPrecision(t *testing.T) {
	for _, stepper := range []StepperType{RungeKuttaDopri5, RungeKuttaFehlberg78} {
		solver, err := NewNumericalSolver(NoLog, stepper, 5, 1e-15, 1e-15, DefaultRootSolver())
		if err != nil {
			t.Fatal(err)
		}
		sol, err := solver.IntegrateTime(oscillatorState(t), at(100), harmonic)
		if err != nil {
			t.Fatalf("%s: %s", stepper, err)
		}
		expectOscillator(t, sol.State, 100, 5e-9)
	}
}

func TestIntegrateTimeFixedStep(t *testing.T) {
	solver, err := NewNumericalSolver(LogConstant, RungeKutta4, 0.01, 1, 1, DefaultRootSolver())
	if err != nil {
		t.Fatal(err)
	}
	sol, err := solver.IntegrateTime(oscillatorState(t), at(10.005), harmonic)
	if err != nil {
		t.Fatal(err)
	}
	expectOscillator(t, sol.State, 10.005, 1e-8)
	// 1000 full steps and a shortened last one.
	if len(sol.ObservedStates) != 1002 {
		t.Fatalf("invalid number of steps %d", len(sol.ObservedStates))
	}
}

func TestIntegrateTimeBackward(t *testing.T) {
	solver := DefaultNumericalSolver()
	sol, err := solver.IntegrateTime(oscillatorState(t), at(-50), harmonic)
	if err != nil {
		t.Fatal(err)
	}
	expectOscillator(t, sol.State, -50, 1e-7)
	same, err := solver.IntegrateTime(oscillatorState(t), epoch, harmonic)
	if err != nil || !same.State.Equal(oscillatorState(t)) {
		t.Fatalf("null propagation should return the initial state (%v)", err)
	}
}

func TestIntegrateTimes(t *testing.T) {
	solver := DefaultNumericalSolver()
	instants := []time.Time{at(1), at(2), at(30)}
	states, err := solver.IntegrateTimes(oscillatorState(t), instants, harmonic)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != len(instants) {
		t.Fatalf("expected %d states, got %d", len(instants), len(states))
	}
	for i, s := range states {
		if !s.Instant().Equal(instants[i]) {
			t.Fatalf("state %d at %s", i, s.Instant())
		}
		expectOscillator(t, s, state.SecondsSince(epoch, instants[i]), 1e-8)
	}
	backward, err := solver.IntegrateTimes(oscillatorState(t), []time.Time{at(-1), at(-3)}, harmonic)
	if err != nil || len(backward) != 2 {
		t.Fatalf("backward: %v", err)
	}
	expectOscillator(t, backward[1], -3, 1e-8)
	for _, invalid := range [][]time.Time{
		{at(2), at(1)},
		{at(1), at(1)},
		{at(1), at(-1)},
		{at(-1), at(2)},
	} {
		if _, err := solver.IntegrateTimes(oscillatorState(t), invalid, harmonic); !errors.Is(err, ErrNonMonotonicInstants) {
			t.Fatalf("%v: expected ErrNonMonotonicInstants, got %v", invalid, err)
		}
	}
}

func positionCondition(t *testing.T, criterion condition.Criterion, target float64) condition.EventCondition {
	c, err := condition.NewRealCondition("x", criterion, func(s state.State) (float64, error) {
		return s.Coordinates()[0], nil
	}, condition.NewAbsoluteTarget(target))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIntegrateTimeWithCondition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}
	solver := DefaultNumericalSolver(WithMetrics(m))
	sol, err := solver.IntegrateTimeWithCondition(oscillatorState(t), at(100), harmonic, positionCondition(t, condition.PositiveCrossing, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if !sol.ConditionIsSatisfied || !sol.RootSolverHasConverged || sol.IterationCount == 0 {
		t.Fatalf("invalid solution flags %+v", sol)
	}
	seconds := state.SecondsSince(epoch, sol.State.Instant())
	if math.Abs(seconds-math.Pi/6) > 1e-6 {
		t.Fatalf("event located at %f s instead of %f s", seconds, math.Pi/6)
	}
	expectOscillator(t, sol.State, seconds, 1e-8)
	if x := sol.State.Coordinates()[0]; x < 0.5 || x > 0.5+1e-8 {
		t.Fatalf("located state should be just past the target: %f", x)
	}
	last := sol.ObservedStates[len(sol.ObservedStates)-1]
	if !last.Equal(sol.State) {
		t.Fatal("the located state should be the last observed state")
	}
	if n, err := testutil.GatherAndCount(reg, "trajectory_integrator_steps_total"); err != nil || n == 0 {
		t.Fatalf("steps were not recorded (%v)", err)
	}
	if n, err := testutil.GatherAndCount(reg, "trajectory_root_solver_iterations"); err != nil || n != 1 {
		t.Fatalf("root solve was not recorded (%v)", err)
	}

	// Negative crossing, backward.
	sol, err = solver.IntegrateTimeWithCondition(oscillatorState(t), at(-100), harmonic, positionCondition(t, condition.NegativeCrossing, -0.5))
	if err != nil {
		t.Fatal(err)
	}
	seconds = state.SecondsSince(epoch, sol.State.Instant())
	if !sol.ConditionIsSatisfied || math.Abs(seconds+math.Pi/6) > 1e-6 {
		t.Fatalf("backward event located at %f s", seconds)
	}
}

func TestIntegrateTimeWithConditionEdgeCases(t *testing.T) {
	solver := DefaultNumericalSolver()
	initial := oscillatorState(t)
	sol, err := solver.IntegrateTimeWithCondition(initial, at(100), harmonic, positionCondition(t, condition.StrictlyPositive, -1))
	if err != nil {
		t.Fatal(err)
	}
	if !sol.ConditionIsSatisfied || !sol.State.Equal(initial) {
		t.Fatalf("condition holds initially, expected the initial state: %+v", sol)
	}
	sol, err = solver.IntegrateTimeWithCondition(initial, at(10), harmonic, positionCondition(t, condition.PositiveCrossing, 2))
	if err != nil {
		t.Fatal(err)
	}
	if sol.ConditionIsSatisfied || !sol.State.Instant().Equal(at(10)) {
		t.Fatalf("unreachable target: %+v", sol)
	}
	if _, err := solver.IntegrateTimeWithCondition(initial, at(10), harmonic, nil); err == nil {
		t.Fatal("expected an error for a nil condition")
	}
}

func TestIntegrateTimeWithDurationCondition(t *testing.T) {
	solver := DefaultNumericalSolver()
	c, err := condition.NewDurationCondition(condition.PositiveCrossing, 12*time.Second+250*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := solver.IntegrateTimeWithCondition(oscillatorState(t), at(100), harmonic, c)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.ConditionIsSatisfied {
		t.Fatal("duration condition not satisfied")
	}
	if d := sol.State.Instant().Sub(at(12.25)); d < -time.Nanosecond || d > time.Nanosecond {
		t.Fatalf("duration condition missed by %s", d)
	}
	expectOscillator(t, sol.State, 12.25, 1e-8)
}

func TestIntegrationErrors(t *testing.T) {
	solver := DefaultNumericalSolver()
	failing := errors.New("boom")
	_, err := solver.IntegrateTime(oscillatorState(t), at(10), func(float64, []float64, []float64) error { return failing })
	var stepErr *StepError
	if !errors.As(err, &stepErr) || !errors.Is(err, failing) {
		t.Fatalf("expected a step error wrapping the system error, got %v", err)
	}
	nan := func(_ float64, _, dxdt []float64) error {
		dxdt[0] = math.NaN()
		return nil
	}
	if _, err := solver.IntegrateTime(oscillatorState(t), at(10), nan); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	rk4, _ := NewNumericalSolver(NoLog, RungeKutta4, 1, 1, 1, DefaultRootSolver())
	if _, err := rk4.IntegrateTime(oscillatorState(t), at(10), nan); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if _, err := solver.IntegrateTime(state.Undefined(), at(10), harmonic); !errors.Is(err, state.ErrUndefinedState) {
		t.Fatalf("expected ErrUndefinedState, got %v", err)
	}
}

func TestNewNumericalSolver(t *testing.T) {
	for _, args := range []struct {
		log      LogType
		stepper  StepperType
		h        float64
		rel, abs float64
	}{
		{NoLog, 0, 1, 1e-9, 1e-9},
		{0, RungeKutta4, 1, 1e-9, 1e-9},
		{NoLog, RungeKutta4, 0, 1e-9, 1e-9},
		{NoLog, RungeKutta4, math.Inf(1), 1e-9, 1e-9},
		{NoLog, RungeKutta4, 1, -1, 1e-9},
		{NoLog, RungeKutta4, 1, 0, 0},
	} {
		if _, err := NewNumericalSolver(args.log, args.stepper, args.h, args.rel, args.abs, DefaultRootSolver()); !errors.Is(err, ErrInvalidSolver) {
			t.Fatalf("%+v: expected ErrInvalidSolver, got %v", args, err)
		}
	}
	s := DefaultNumericalSolver()
	if s.StepperType() != RungeKuttaDopri5 || s.TimeStep() != 5 || s.RelativeTolerance() != 1e-12 || s.AbsoluteTolerance() != 1e-12 || s.LogType() != NoLog {
		t.Fatalf("invalid default solver %s", s)
	}
	if s.RootSolver() != DefaultRootSolver() {
		t.Fatal("invalid default root solver")
	}
}

func TestParsing(t *testing.T) {
	for _, s := range []StepperType{RungeKutta4, RungeKuttaCashKarp54, RungeKuttaFehlberg78, RungeKuttaDopri5} {
		parsed, err := ParseStepperType(s.String())
		if err != nil || parsed != s {
			t.Fatalf("%s parsed as %d (%v)", s, parsed, err)
		}
	}
	if _, err := ParseStepperType("Euler"); err == nil {
		t.Fatal("expected an error for an unknown stepper")
	}
	for _, l := range []LogType{NoLog, LogConstant, LogAdaptive} {
		parsed, err := ParseLogType(l.String())
		if err != nil || parsed != l {
			t.Fatalf("%s parsed as %d (%v)", l, parsed, err)
		}
	}
	if _, err := ParseLogType("Verbose"); err == nil {
		t.Fatal("expected an error for an unknown log type")
	}
}
