package dynamics

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/trajectory/environment"
	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/ChristopherRabotin/trajectory/vector"
)

var dragReads = []state.CoordinateSubset{state.CartesianPosition, state.CartesianVelocity, state.Mass, state.SurfaceArea, state.DragCoefficient}

// AtmosphericDrag is the drag of an atmosphere co-rotating with its body.
type AtmosphericDrag struct {
	body       environment.Celestial
	atmosphere environment.Atmosphere
}

// NewAtmosphericDrag returns the drag dynamics of this body's atmosphere.
func NewAtmosphericDrag(body environment.Celestial, atmosphere environment.Atmosphere) AtmosphericDrag {
	return AtmosphericDrag{body, atmosphere}
}

// Name implements the Dynamics interface.
func (d AtmosphericDrag) Name() string {
	return fmt.Sprintf("AtmosphericDrag[%s]", d.body.Name)
}

// ReadSubsets implements the Dynamics interface.
func (AtmosphericDrag) ReadSubsets() []state.CoordinateSubset {
	return dragReads
}

// WriteSubsets implements the Dynamics interface.
func (AtmosphericDrag) WriteSubsets() []state.CoordinateSubset {
	return velocityOnly
}

// ComputeContribution implements the Dynamics interface.
func (d AtmosphericDrag) ComputeContribution(_ time.Time, x []float64, f *frame.Frame) ([]float64, error) {
	if err := checkReads(d, x); err != nil {
		return nil, err
	}
	if err := requireInertial(f); err != nil {
		return nil, err
	}
	R, V := x[0:3], x[3:6]
	mass, area, cd := x[6], x[7], x[8]
	if mass <= 0 {
		return nil, fmt.Errorf("drag on a mass of %f kg", mass)
	}
	ρ, err := d.atmosphere.Density(vector.Norm(R) - d.body.Radius)
	if err != nil {
		return nil, err
	}
	vRel := vector.Sub(V, vector.Cross([]float64{0, 0, d.body.RotationRate}, R))
	return vector.Scale(-0.5*ρ*cd*area/mass*vector.Norm(vRel), vRel), nil
}
