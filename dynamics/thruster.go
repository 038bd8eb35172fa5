package dynamics

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/guidance"
	"github.com/ChristopherRabotin/trajectory/state"
)

var (
	thrusterReads  = []state.CoordinateSubset{state.CartesianPosition, state.CartesianVelocity, state.Mass}
	thrusterWrites = []state.CoordinateSubset{state.CartesianVelocity, state.Mass}
)

// Thruster is the acceleration and propellant consumption of a propulsion system steered by a guidance law.
type Thruster struct {
	name      string
	satellite SatelliteSystem
	law       guidance.Law
}

// NewThruster returns a new thruster.
func NewThruster(satellite SatelliteSystem, law guidance.Law) (*Thruster, error) {
	if law == nil {
		return nil, fmt.Errorf("thruster: nil guidance law")
	}
	if err := satellite.Propulsion.Validate(); err != nil {
		return nil, err
	}
	return &Thruster{fmt.Sprintf("Thruster[%s %s]", satellite.Propulsion.Name, law.Name()), satellite, law}, nil
}

// SatelliteSystem returns the satellite system of this thruster.
func (t *Thruster) SatelliteSystem() SatelliteSystem {
	return t.satellite
}

// GuidanceLaw returns the guidance law of this thruster.
func (t *Thruster) GuidanceLaw() guidance.Law {
	return t.law
}

// Name implements the Dynamics interface.
func (t *Thruster) Name() string {
	return t.name
}

// ReadSubsets implements the Dynamics interface.
func (t *Thruster) ReadSubsets() []state.CoordinateSubset {
	return thrusterReads
}

// WriteSubsets implements the Dynamics interface.
func (t *Thruster) WriteSubsets() []state.CoordinateSubset {
	return thrusterWrites
}

// ComputeContribution implements the Dynamics interface.
func (t *Thruster) ComputeContribution(dt time.Time, x []float64, f *frame.Frame) ([]float64, error) {
	if err := checkReads(t, x); err != nil {
		return nil, err
	}
	R, V, mass := x[0:3], x[3:6], x[6]
	if mass <= t.satellite.DryMass {
		return nil, fmt.Errorf("mass %f kg with a dry mass of %f kg at %s: %w", mass, t.satellite.DryMass, dt, ErrOutOfFuel)
	}
	acc, err := t.law.ThrustAccelerationAt(dt, R, V, t.satellite.Propulsion.Acceleration(mass), f)
	if err != nil {
		return nil, err
	}
	mDot := 0.0
	if acc[0] != 0 || acc[1] != 0 || acc[2] != 0 {
		mDot = -t.satellite.Propulsion.MassFlowRate()
	}
	return []float64{acc[0], acc[1], acc[2], mDot}, nil
}
