package trajectory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ChristopherRabotin/trajectory/condition"
	"github.com/ChristopherRabotin/trajectory/dynamics"
	"github.com/ChristopherRabotin/trajectory/environment"
	"github.com/ChristopherRabotin/trajectory/integrator"
	"github.com/ChristopherRabotin/trajectory/metrics"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats/scalar"
)

// coastBurnSequence coasts then burns for ten minutes each.
func coastBurnSequence(t *testing.T, maximum time.Duration, opts ...Option) *Sequence {
	seq, err := NewSequence(twoBody(t, environment.Earth, 0), integrator.DefaultNumericalSolver(), maximum, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := seq.AddCoastSegment("coast", duration(t, 10*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := seq.AddManeuverSegment("burn", duration(t, 10*time.Minute), tangentialThruster(t), ManeuverConstraints{}); err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestSequenceSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}
	seq := coastBurnSequence(t, 24*time.Hour, WithRepetitions(2), WithMetrics(m))
	if seq.Repetitions() != 2 || len(seq.Segments()) != 2 || seq.MaximumPropagationDuration() != 24*time.Hour {
		t.Fatal("invalid sequence accessors")
	}
	sol, err := seq.Solve(leoState(t, 500))
	if err != nil {
		t.Fatal(err)
	}
	if !sol.ExecutionIsComplete || len(sol.SegmentSolutions) != 4 {
		t.Fatalf("expected 4 complete segments, got %d (complete=%v)", len(sol.SegmentSolutions), sol.ExecutionIsComplete)
	}
	if sol.PropagationDuration() != 40*time.Minute {
		t.Fatalf("invalid duration %s", sol.PropagationDuration())
	}
	for i := 1; i < len(sol.SegmentSolutions); i++ {
		prev, _ := sol.SegmentSolutions[i-1].FinalState()
		next, _ := sol.SegmentSolutions[i].InitialState()
		if !prev.Equal(next) {
			t.Fatalf("segment %d does not start from the final state of segment %d", i, i-1)
		}
	}
	expected := 0
	for _, s := range sol.SegmentSolutions {
		expected += len(s.States)
	}
	if states := sol.States(); len(states) != expected-3 {
		t.Fatalf("expected %d states, got %d", expected-3, len(states))
	}
	mDot := dynamics.HERMeS.MassFlowRate()
	dm, err := sol.DeltaMass()
	if err != nil || !scalar.EqualWithinAbs(dm, 2*mDot*600, 1e-9) {
		t.Fatalf("consumed %f kg instead of %f kg (%v)", dm, 2*mDot*600, err)
	}
	if dv, err := sol.DeltaV(dynamics.HERMeS.SpecificImpulse); err != nil || dv <= 0 {
		t.Fatalf("invalid Δv %f (%v)", dv, err)
	}
	if n := counterSum(t, reg, "trajectory_segments_total"); n != 4 {
		t.Fatalf("%f segments recorded instead of 4", n)
	}
	instants := []time.Time{after(5 * time.Minute), after(15 * time.Minute), after(40 * time.Minute)}
	states, err := sol.CalculateStatesAt(instants, integrator.DefaultNumericalSolver())
	if err != nil || len(states) != 3 {
		t.Fatalf("calculate states: %v", err)
	}
	if m, _ := states[1].Extract(state.Mass); !scalar.EqualWithinAbs(m[0], 500-mDot*300, 1e-9) {
		t.Fatalf("invalid mass halfway through the first burn: %f", m[0])
	}
}

// counterSum sums the values of the counter family of this name.
func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestSequenceMaximumDuration(t *testing.T) {
	seq := coastBurnSequence(t, 25*time.Minute, WithRepetitions(2))
	sol, err := seq.Solve(leoState(t, 500))
	if err != nil {
		t.Fatal(err)
	}
	if sol.ExecutionIsComplete {
		t.Fatal("the sequence should not complete")
	}
	if len(sol.SegmentSolutions) != 3 || sol.SegmentSolutions[2].ConditionIsSatisfied {
		t.Fatalf("expected a partial solution of 3 segments, got %d", len(sol.SegmentSolutions))
	}
	final, _ := sol.FinalState()
	if !final.Instant().Equal(after(25 * time.Minute)) {
		t.Fatalf("partial solution ends at %s", final.Instant())
	}
}

func TestSequenceFailure(t *testing.T) {
	seq := coastBurnSequence(t, 24*time.Hour)
	sol, err := seq.Solve(leoState(t, 100.001))
	if !errors.Is(err, dynamics.ErrOutOfFuel) {
		t.Fatalf("expected ErrOutOfFuel, got %v", err)
	}
	if len(sol.SegmentSolutions) != 2 || !sol.SegmentSolutions[0].ConditionIsSatisfied || sol.ExecutionIsComplete {
		t.Fatalf("expected the coast and the partial burn, got %d segments", len(sol.SegmentSolutions))
	}
	empty, _ := NewSequence(nil, integrator.DefaultNumericalSolver(), time.Hour)
	if _, err := empty.Solve(leoState(t, 500)); err == nil {
		t.Fatal("expected an error for an empty sequence")
	}
	if _, err := NewSequence(nil, integrator.DefaultNumericalSolver(), time.Hour, WithRepetitions(0)); err == nil {
		t.Fatal("expected an error for no repetitions")
	}
	if _, err := NewSequence(nil, nil, time.Hour); err == nil {
		t.Fatal("expected an error for a nil solver")
	}
	if _, err := NewSequence(nil, integrator.DefaultNumericalSolver(), 0); err == nil {
		t.Fatal("expected an error for a null maximum duration")
	}
	if err := empty.AddSegment(nil); err == nil {
		t.Fatal("expected an error for a nil segment")
	}
}

func TestEmptySolutions(t *testing.T) {
	var segment SegmentSolution
	if s, err := segment.FinalState(); !errors.Is(err, ErrEmptySolution) || s.IsDefined() {
		t.Fatalf("expected ErrEmptySolution, got %v", err)
	}
	if _, err := segment.InitialState(); !errors.Is(err, ErrEmptySolution) {
		t.Fatalf("expected ErrEmptySolution, got %v", err)
	}
	var sequence SequenceSolution
	if _, err := sequence.FinalState(); !errors.Is(err, ErrEmptySolution) {
		t.Fatalf("expected ErrEmptySolution, got %v", err)
	}
	// Each segment starts from a defined state, the final state of the previous one.
	sol, err := coastBurnSequence(t, 24*time.Hour, WithRepetitions(2)).Solve(leoState(t, 500))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(sol.SegmentSolutions); i++ {
		previous, err := sol.SegmentSolutions[i-1].FinalState()
		if err != nil {
			t.Fatal(err)
		}
		initial, err := sol.SegmentSolutions[i].InitialState()
		if err != nil || !initial.IsDefined() || !initial.Equal(previous) {
			t.Fatalf("segment %d does not start from the previous final state (%v)", i, err)
		}
	}
}

func TestSequenceManeuverSeparation(t *testing.T) {
	seq, err := NewSequence(twoBody(t, environment.Earth, 0), integrator.DefaultNumericalSolver(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	thruster := tangentialThruster(t)
	separation := ManeuverConstraints{MinimumSeparation: 5 * time.Minute, Strategy: Slice}
	if err := seq.AddManeuverSegment("first", duration(t, 10*time.Minute), thruster, separation); err != nil {
		t.Fatal(err)
	}
	if err := seq.AddCoastSegment("gap", duration(t, time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := seq.AddManeuverSegment("second", duration(t, 10*time.Minute), thruster, separation); err != nil {
		t.Fatal(err)
	}
	sol, err := seq.Solve(leoState(t, 500))
	if err != nil {
		t.Fatal(err)
	}
	first := sol.SegmentSolutions[0].ManeuverIntervals()
	second := sol.SegmentSolutions[2].ManeuverIntervals()
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one maneuver per burn, got %v and %v", first, second)
	}
	if !second[0].Start.Equal(first[0].End.Add(5*time.Minute)) || !second[0].End.Equal(after(21*time.Minute)) {
		t.Fatalf("second maneuver %s does not respect the separation from %s", second[0], first[0])
	}
}

func TestSequenceSolveToCondition(t *testing.T) {
	seq := coastBurnSequence(t, 24*time.Hour)
	target, err := condition.NewInstantCondition(condition.PositiveCrossing, after(50*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	sol, err := seq.SolveToCondition(leoState(t, 500), target, 12*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.ExecutionIsComplete || len(sol.SegmentSolutions) != 6 || sol.PropagationDuration() != time.Hour {
		t.Fatalf("expected three passes, got %d segments over %s", len(sol.SegmentSolutions), sol.PropagationDuration())
	}
	capped, err := seq.SolveToCondition(leoState(t, 500), target, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if capped.ExecutionIsComplete || capped.PropagationDuration() != 30*time.Minute {
		t.Fatalf("expected a partial solution of 30 min, got %s", capped.PropagationDuration())
	}
	if _, err := seq.SolveToCondition(leoState(t, 500), nil, time.Hour); err == nil {
		t.Fatal("expected an error for a nil condition")
	}
}

func TestSolveBatch(t *testing.T) {
	seq := coastBurnSequence(t, 24*time.Hour)
	masses := []float64{500, 400, 300, 200}
	initials := make([]state.State, len(masses))
	for i, m := range masses {
		initials[i] = leoState(t, m)
	}
	solutions, err := seq.SolveBatch(context.Background(), initials, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, sol := range solutions {
		m0, err := sol.SegmentSolutions[0].InitialMass()
		if err != nil || m0 != masses[i] {
			t.Fatalf("solution %d starts with %f kg instead of %f kg (%v)", i, m0, masses[i], err)
		}
		if !sol.ExecutionIsComplete {
			t.Fatalf("solution %d is incomplete", i)
		}
	}
	initials[2] = leoState(t, 100.001)
	if _, err := seq.SolveBatch(context.Background(), initials, 0); !errors.Is(err, dynamics.ErrOutOfFuel) {
		t.Fatalf("expected ErrOutOfFuel, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := seq.SolveBatch(ctx, initials, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
