package dynamics

import (
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/environment"
	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/ChristopherRabotin/trajectory/vector"
)

var (
	positionOnly = []state.CoordinateSubset{state.CartesianPosition}
	velocityOnly = []state.CoordinateSubset{state.CartesianVelocity}
)

func requireInertial(f *frame.Frame) error {
	if f == nil {
		return frame.ErrUndefinedFrame
	}
	if !f.IsQuasiInertial() {
		return fmt.Errorf("dynamics evaluated in %s: frame is not quasi-inertial", f)
	}
	return nil
}

// PositionDerivative is the kinematic relation dr/dt = v.
type PositionDerivative struct{}

// Name implements the Dynamics interface.
func (PositionDerivative) Name() string {
	return "PositionDerivative"
}

// ReadSubsets implements the Dynamics interface.
func (PositionDerivative) ReadSubsets() []state.CoordinateSubset {
	return velocityOnly
}

// WriteSubsets implements the Dynamics interface.
func (PositionDerivative) WriteSubsets() []state.CoordinateSubset {
	return positionOnly
}

// ComputeContribution implements the Dynamics interface.
func (p PositionDerivative) ComputeContribution(_ time.Time, x []float64, _ *frame.Frame) ([]float64, error) {
	if err := checkReads(p, x); err != nil {
		return nil, err
	}
	return append([]float64(nil), x...), nil
}

// CentralBodyGravity is the gravity of the body at the origin of the frame, with optional zonal terms.
type CentralBodyGravity struct {
	model environment.GravityModel
}

// NewCentralBodyGravity returns the central body gravity of this model.
func NewCentralBodyGravity(model environment.GravityModel) CentralBodyGravity {
	return CentralBodyGravity{model}
}

// Body returns the central body.
func (g CentralBodyGravity) Body() environment.Celestial {
	return g.model.Body
}

// Name implements the Dynamics interface.
func (g CentralBodyGravity) Name() string {
	return fmt.Sprintf("CentralBodyGravity[%s J%d]", g.model.Body.Name, g.model.Jn)
}

// ReadSubsets implements the Dynamics interface.
func (CentralBodyGravity) ReadSubsets() []state.CoordinateSubset {
	return positionOnly
}

// WriteSubsets implements the Dynamics interface.
func (CentralBodyGravity) WriteSubsets() []state.CoordinateSubset {
	return velocityOnly
}

// ComputeContribution implements the Dynamics interface.
func (g CentralBodyGravity) ComputeContribution(_ time.Time, x []float64, f *frame.Frame) ([]float64, error) {
	if err := checkReads(g, x); err != nil {
		return nil, err
	}
	if err := requireInertial(f); err != nil {
		return nil, err
	}
	if vector.Norm(x) == 0 {
		return nil, fmt.Errorf("gravity of %s at its center", g.model.Body.Name)
	}
	return g.model.Acceleration(x), nil
}

// ThirdBodyGravity is the differential gravitational acceleration of a perturbing body.
type ThirdBodyGravity struct {
	ephemeris environment.Ephemeris
}

// NewThirdBodyGravity returns the third body gravity of the body described by this ephemeris.
func NewThirdBodyGravity(ephemeris environment.Ephemeris) (ThirdBodyGravity, error) {
	if err := ephemeris.Body().Validate(); err != nil {
		return ThirdBodyGravity{}, err
	}
	return ThirdBodyGravity{ephemeris}, nil
}

// Name implements the Dynamics interface.
func (g ThirdBodyGravity) Name() string {
	return fmt.Sprintf("ThirdBodyGravity[%s]", g.ephemeris.Body().Name)
}

// ReadSubsets implements the Dynamics interface.
func (ThirdBodyGravity) ReadSubsets() []state.CoordinateSubset {
	return positionOnly
}

// WriteSubsets implements the Dynamics interface.
func (ThirdBodyGravity) WriteSubsets() []state.CoordinateSubset {
	return velocityOnly
}

// ComputeContribution implements the Dynamics interface.
func (g ThirdBodyGravity) ComputeContribution(dt time.Time, x []float64, f *frame.Frame) ([]float64, error) {
	if err := checkReads(g, x); err != nil {
		return nil, err
	}
	if err := requireInertial(f); err != nil {
		return nil, err
	}
	bodyR, err := g.ephemeris.PositionAt(dt)
	if err != nil {
		return nil, err
	}
	scPert := vector.Sub(bodyR, x) // spacecraft to perturbing body
	scPertNorm3 := math.Pow(vector.Norm(scPert), 3)
	bodyNorm3 := math.Pow(vector.Norm(bodyR), 3)
	μ := g.ephemeris.Body().GM
	acc := make([]float64, 3)
	for i := 0; i < 3; i++ {
		acc[i] = μ * (scPert[i]/scPertNorm3 - bodyR[i]/bodyNorm3)
	}
	return acc, nil
}
