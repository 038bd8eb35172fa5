// Package dynamics defines the contributions to the equations of motion and how they are
// assembled into a system of ordinary differential equations.
package dynamics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/state"
)

var (
	// ErrOutOfFuel is returned when a thruster fires with no propellant left.
	ErrOutOfFuel = errors.New("dynamics: out of fuel")
	// ErrContributionSize is returned when a contribution does not match its write subsets.
	ErrContributionSize = errors.New("dynamics: contribution size does not match the write subsets")
	// ErrNonFinite is returned when a contribution holds NaN or infinite values.
	ErrNonFinite = errors.New("dynamics: non finite contribution")
)

// Dynamics is a contribution to the time derivative of some coordinate subsets.
// ComputeContribution receives the concatenated coordinates of the read subsets and returns the
// concatenated derivatives of the write subsets. Implementations must be side-effect free.
type Dynamics interface {
	Name() string
	ReadSubsets() []state.CoordinateSubset
	WriteSubsets() []state.CoordinateSubset
	ComputeContribution(dt time.Time, x []float64, f *frame.Frame) ([]float64, error)
}

// subsetsSize returns the total size of the provided subsets.
func subsetsSize(subsets []state.CoordinateSubset) int {
	size := 0
	for _, s := range subsets {
		size += s.Size()
	}
	return size
}

// checkReads returns an error unless x holds exactly the coordinates of the read subsets of d.
func checkReads(d Dynamics, x []float64) error {
	if expected := subsetsSize(d.ReadSubsets()); len(x) != expected {
		return fmt.Errorf("%s reads %d coordinates, got %d: %w", d.Name(), expected, len(x), state.ErrSizeMismatch)
	}
	return nil
}

type writeTarget struct {
	offset, size int
}

type boundDynamics struct {
	dynamics  Dynamics
	writes    []writeTarget
	writeSize int
}

// SystemOfEquations sums the contributions of several dynamics into the derivative of a full coordinate vector.
type SystemOfEquations struct {
	dynamics []boundDynamics
	broker   *state.CoordinateBroker
	frame    *frame.Frame
	epoch    time.Time
}

// NewSystemOfEquations returns the system of equations for these dynamics, where the time is counted in seconds from epoch.
// Every read and write subset must be part of the broker.
func NewSystemOfEquations(dynamics []Dynamics, broker *state.CoordinateBroker, f *frame.Frame, epoch time.Time) (*SystemOfEquations, error) {
	if f == nil {
		return nil, frame.ErrUndefinedFrame
	}
	if broker == nil {
		return nil, fmt.Errorf("system of equations: nil coordinate broker")
	}
	sys := &SystemOfEquations{broker: broker, frame: f, epoch: epoch}
	for _, dyn := range dynamics {
		bound := boundDynamics{dynamics: dyn}
		for _, s := range dyn.ReadSubsets() {
			if !broker.HasSubset(s) {
				return nil, fmt.Errorf("%s reads %s: %w", dyn.Name(), s, state.ErrSubsetNotFound)
			}
		}
		for _, s := range dyn.WriteSubsets() {
			offset, err := broker.Offset(s)
			if err != nil {
				return nil, fmt.Errorf("%s writes %s: %w", dyn.Name(), s, err)
			}
			bound.writes = append(bound.writes, writeTarget{offset, s.Size()})
			bound.writeSize += s.Size()
		}
		sys.dynamics = append(sys.dynamics, bound)
	}
	return sys, nil
}

// Epoch returns the reference instant of the system time.
func (s *SystemOfEquations) Epoch() time.Time {
	return s.epoch
}

// Frame returns the frame the dynamics are evaluated in.
func (s *SystemOfEquations) Frame() *frame.Frame {
	return s.frame
}

// Broker returns the broker of the coordinate vector.
func (s *SystemOfEquations) Broker() *state.CoordinateBroker {
	return s.broker
}

// Dynamics returns the dynamics of this system.
func (s *SystemOfEquations) Dynamics() []Dynamics {
	dyns := make([]Dynamics, len(s.dynamics))
	for i, b := range s.dynamics {
		dyns[i] = b.dynamics
	}
	return dyns
}

// Derivative computes dxdt at t seconds from the epoch. Subsets no dynamics write to have a null derivative.
func (s *SystemOfEquations) Derivative(t float64, x, dxdt []float64) error {
	if len(x) != s.broker.NumberOfCoordinates() || len(dxdt) != len(x) {
		return fmt.Errorf("derivative of %d coordinates into %d (expected %d): %w", len(x), len(dxdt), s.broker.NumberOfCoordinates(), state.ErrSizeMismatch)
	}
	for i := range dxdt {
		dxdt[i] = 0
	}
	dt := state.InstantAt(s.epoch, t)
	for _, b := range s.dynamics {
		read, err := s.broker.ExtractCoordinates(x, b.dynamics.ReadSubsets())
		if err != nil {
			return err
		}
		contribution, err := b.dynamics.ComputeContribution(dt, read, s.frame)
		if err != nil {
			return fmt.Errorf("%s: %w", b.dynamics.Name(), err)
		}
		if len(contribution) != b.writeSize {
			return fmt.Errorf("%s returned %d values for %d: %w", b.dynamics.Name(), len(contribution), b.writeSize, ErrContributionSize)
		}
		pos := 0
		for _, w := range b.writes {
			for i := 0; i < w.size; i++ {
				val := contribution[pos+i]
				if math.IsNaN(val) || math.IsInf(val, 0) {
					return fmt.Errorf("%s at %s: %w", b.dynamics.Name(), dt, ErrNonFinite)
				}
				dxdt[w.offset+i] += val
			}
			pos += w.size
		}
	}
	return nil
}
