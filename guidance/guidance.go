// Package guidance defines the thrust guidance laws which steer a thruster.
package guidance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/orbit"
	"github.com/ChristopherRabotin/trajectory/vector"
	"gonum.org/v1/gonum/floats"
)

// ErrNonInertialFrame is returned when a guidance law is evaluated in a frame which is not quasi-inertial.
var ErrNonInertialFrame = errors.New("guidance: frame is not quasi-inertial")

// Law returns the thrust acceleration vector at a given instant from the position, velocity and the
// magnitude of the available thrust acceleration. The frame must be quasi-inertial.
// Implementations must be safe for concurrent use.
type Law interface {
	Name() string
	ThrustAccelerationAt(dt time.Time, R, V []float64, thrustAcceleration float64, f *frame.Frame) ([]float64, error)
}

func checkFrame(f *frame.Frame) error {
	if f == nil {
		return frame.ErrUndefinedFrame
	}
	if !f.IsQuasiInertial() {
		return fmt.Errorf("%s: %w", f, ErrNonInertialFrame)
	}
	return nil
}

// Coast never thrusts.
type Coast struct{}

// Name implements the Law interface.
func (Coast) Name() string {
	return "Coast"
}

// ThrustAccelerationAt implements the Law interface.
func (Coast) ThrustAccelerationAt(_ time.Time, _, _ []float64, _ float64, f *frame.Frame) ([]float64, error) {
	if err := checkFrame(f); err != nil {
		return nil, err
	}
	return []float64{0, 0, 0}, nil
}

// ConstantThrust thrusts along a fixed direction of a local orbital frame.
type ConstantThrust struct {
	direction []float64
	lof       LocalOrbitalFrame
}

// NewConstantThrust returns a new constant thrust law. The direction is normalized.
func NewConstantThrust(direction []float64, lof LocalOrbitalFrame) (ConstantThrust, error) {
	if len(direction) != 3 || vector.Norm(direction) == 0 {
		return ConstantThrust{}, fmt.Errorf("constant thrust: invalid direction %v", direction)
	}
	return ConstantThrust{vector.Unit(direction), lof}, nil
}

// Tangential thrusts along the velocity.
func Tangential() ConstantThrust {
	return ConstantThrust{[]float64{1, 0, 0}, VNC}
}

// AntiTangential thrusts against the velocity.
func AntiTangential() ConstantThrust {
	return ConstantThrust{[]float64{-1, 0, 0}, VNC}
}

// Direction returns a copy of the thrust direction in the local orbital frame.
func (c ConstantThrust) Direction() []float64 {
	return append([]float64(nil), c.direction...)
}

// LocalOrbitalFrame returns the local orbital frame of the thrust direction.
func (c ConstantThrust) LocalOrbitalFrame() LocalOrbitalFrame {
	return c.lof
}

// Name implements the Law interface.
func (c ConstantThrust) Name() string {
	return fmt.Sprintf("ConstantThrust[%s %v]", c.lof, c.direction)
}

// ThrustAccelerationAt implements the Law interface.
func (c ConstantThrust) ThrustAccelerationAt(_ time.Time, R, V []float64, thrustAcceleration float64, f *frame.Frame) ([]float64, error) {
	if err := checkFrame(f); err != nil {
		return nil, err
	}
	dir, err := c.lof.ToInertial(c.direction, R, V)
	if err != nil {
		return nil, err
	}
	return vector.Scale(thrustAcceleration, dir), nil
}

// Inversion keeps the thrust as tangential but inverts its direction within an angle from the orbit apoapsis.
// This leads to collisions with main body if the orbit isn't circular enough.
// cf. Izzo et al. (https://arxiv.org/pdf/1602.00849v2.pdf)
type Inversion struct {
	ν float64
	μ float64
}

// NewInversion returns a new inversion control law for a body of gravitational parameter μ.
func NewInversion(ν, μ float64) Inversion {
	return Inversion{ν, μ}
}

// Name implements the Law interface.
func (cl Inversion) Name() string {
	return "Inversion"
}

// ThrustAccelerationAt implements the Law interface.
func (cl Inversion) ThrustAccelerationAt(dt time.Time, R, V []float64, thrustAcceleration float64, f *frame.Frame) ([]float64, error) {
	o, err := orbit.NewCOEFromRV(R, V, cl.μ)
	if err != nil {
		return nil, err
	}
	ν := o.TrueAnomaly
	if o.E > 0.01 || (ν > cl.ν-math.Pi && ν < math.Pi-cl.ν) {
		return Tangential().ThrustAccelerationAt(dt, R, V, thrustAcceleration, f)
	}
	return AntiTangential().ThrustAccelerationAt(dt, R, V, thrustAcceleration, f)
}

// Interval is a guidance law applied over [Start, End).
type Interval struct {
	Start, End time.Time
	Law        Law
}

// Heterogeneous switches between guidance laws on disjoint intervals and coasts outside of them.
type Heterogeneous struct {
	intervals []Interval
}

// NewHeterogeneous returns a new heterogeneous guidance law. Intervals must not overlap.
func NewHeterogeneous(intervals ...Interval) (*Heterogeneous, error) {
	sorted := append([]Interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i, interval := range sorted {
		if interval.Law == nil {
			return nil, fmt.Errorf("heterogeneous guidance: interval %d has no law", i)
		}
		if !interval.End.After(interval.Start) {
			return nil, fmt.Errorf("heterogeneous guidance: empty interval [%s, %s)", interval.Start, interval.End)
		}
		if i > 0 && interval.Start.Before(sorted[i-1].End) {
			return nil, fmt.Errorf("heterogeneous guidance: interval starting %s overlaps the previous one", interval.Start)
		}
	}
	return &Heterogeneous{sorted}, nil
}

// Intervals returns a copy of the intervals, sorted by start.
func (h *Heterogeneous) Intervals() []Interval {
	return append([]Interval(nil), h.intervals...)
}

// Name implements the Law interface.
func (h *Heterogeneous) Name() string {
	return "Heterogeneous"
}

// ThrustAccelerationAt implements the Law interface.
func (h *Heterogeneous) ThrustAccelerationAt(dt time.Time, R, V []float64, thrustAcceleration float64, f *frame.Frame) ([]float64, error) {
	for _, interval := range h.intervals {
		if !dt.Before(interval.Start) && dt.Before(interval.End) {
			return interval.Law.ThrustAccelerationAt(dt, R, V, thrustAcceleration, f)
		}
	}
	return Coast{}.ThrustAccelerationAt(dt, R, V, thrustAcceleration, f)
}

// unit returns the unit vector of a, or zero if a is too small.
func unit(a []float64) []float64 {
	if floats.Norm(a, 2) < 1e-12 {
		return []float64{0, 0, 0}
	}
	return vector.Unit(a)
}
