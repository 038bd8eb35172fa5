// Package frame defines the reference frames states are expressed in and the transforms between them.
//
// Frames form a tree: a root frame is quasi-inertial, and every other frame is
// defined relative to its parent by a Provider. Nothing here is global, callers
// build the frames they need and pass them around.
package frame

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/vector"
	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

var (
	// ErrUndefinedFrame is returned when a nil frame is used.
	ErrUndefinedFrame = errors.New("frame: undefined frame")
	// ErrDisconnected is returned when two frames do not share a root.
	ErrDisconnected = errors.New("frame: frames do not share a common root")
)

// Provider returns the transform from the parent frame to the child frame at a given instant.
type Provider func(dt time.Time) (Transform, error)

// Frame is a named reference frame.
type Frame struct {
	name          string
	parent        *Frame
	provider      Provider
	quasiInertial bool
}

// NewInertial returns a new root frame, e.g. a GCRF-like inertial frame.
func NewInertial(name string) *Frame {
	return &Frame{name: name, quasiInertial: true}
}

// NewFrame returns a frame defined with respect to its parent.
func NewFrame(name string, parent *Frame, quasiInertial bool, provider Provider) (*Frame, error) {
	if parent == nil {
		return nil, fmt.Errorf("creating frame %s: %w", name, ErrUndefinedFrame)
	}
	if provider == nil {
		return nil, fmt.Errorf("creating frame %s: nil provider", name)
	}
	return &Frame{name: name, parent: parent, provider: provider, quasiInertial: quasiInertial}, nil
}

// NewRotating returns a frame which rotates about the Z axis of its parent at a constant rate (rad/s).
// The rotation angle is angleAtEpoch at the provided epoch. This is how an Earth-fixed frame is
// approximated from an inertial one.
func NewRotating(name string, parent *Frame, rate float64, epoch time.Time, angleAtEpoch float64) (*Frame, error) {
	return NewFrame(name, parent, false, func(dt time.Time) (Transform, error) {
		θ := angleAtEpoch + rate*dt.Sub(epoch).Seconds()
		return Transform{
			Translation:     []float64{0, 0, 0},
			Velocity:        []float64{0, 0, 0},
			Rotation:        R3(θ),
			AngularVelocity: []float64{0, 0, rate},
		}, nil
	})
}

// Name returns the name of this frame.
func (f *Frame) Name() string {
	if f == nil {
		return "Undefined"
	}
	return f.name
}

// IsQuasiInertial returns whether this frame is quasi-inertial.
func (f *Frame) IsQuasiInertial() bool {
	return f != nil && f.quasiInertial
}

// Equal returns whether both frames are the same frame.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return false
	}
	if f == o {
		return true
	}
	if f.name != o.name {
		return false
	}
	if f.parent == nil || o.parent == nil {
		return f.parent == nil && o.parent == nil
	}
	return f.parent.Equal(o.parent)
}

func (f *Frame) String() string {
	return f.Name()
}

// ancestors returns the chain from f (included) up to its root.
func (f *Frame) ancestors() []*Frame {
	chain := []*Frame{}
	for c := f; c != nil; c = c.parent {
		chain = append(chain, c)
	}
	return chain
}

// TransformTo transforms the position and velocity from this frame into the target frame at dt.
func (f *Frame) TransformTo(target *Frame, dt time.Time, position, velocity []float64) ([]float64, []float64, error) {
	if f == nil || target == nil {
		return nil, nil, ErrUndefinedFrame
	}
	p := append([]float64(nil), position...)
	v := append([]float64(nil), velocity...)
	if f.Equal(target) {
		return p, v, nil
	}
	up := f.ancestors()
	down := target.ancestors()
	if !up[len(up)-1].Equal(down[len(down)-1]) {
		return nil, nil, fmt.Errorf("%s to %s: %w", f.name, target.name, ErrDisconnected)
	}
	// Trim the shared part of the chains.
	for len(up) > 0 && len(down) > 0 && up[len(up)-1].Equal(down[len(down)-1]) {
		up = up[:len(up)-1]
		down = down[:len(down)-1]
	}
	for _, c := range up {
		t, err := c.provider(dt)
		if err != nil {
			return nil, nil, fmt.Errorf("%s to %s: %w", c.name, c.parent.name, err)
		}
		p, v = t.ApplyInverse(p, v)
	}
	for i := len(down) - 1; i >= 0; i-- {
		c := down[i]
		t, err := c.provider(dt)
		if err != nil {
			return nil, nil, fmt.Errorf("%s to %s: %w", c.parent.name, c.name, err)
		}
		p, v = t.Apply(p, v)
	}
	return p, v, nil
}

// Transform is the transform from a parent frame to a child frame.
type Transform struct {
	Translation     []float64  // Origin of the child expressed in the parent frame.
	Velocity        []float64  // Velocity of the child origin expressed in the parent frame.
	Rotation        *mat.Dense // Parent axes to child axes.
	AngularVelocity []float64  // Of the child with respect to the parent, in child axes.
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{[]float64{0, 0, 0}, []float64{0, 0, 0}, identity3(), []float64{0, 0, 0}}
}

// Apply maps a parent position and velocity into the child frame.
func (t Transform) Apply(position, velocity []float64) ([]float64, []float64) {
	p := mxv(t.Rotation, false, vector.Sub(position, t.Translation))
	v := mxv(t.Rotation, false, vector.Sub(velocity, t.Velocity))
	ωxp := vector.Cross(t.AngularVelocity, p)
	for i := 0; i < 3; i++ {
		v[i] -= ωxp[i]
	}
	return p, v
}

// ApplyInverse maps a child position and velocity into the parent frame.
func (t Transform) ApplyInverse(position, velocity []float64) ([]float64, []float64) {
	ωxp := vector.Cross(t.AngularVelocity, position)
	p := mxv(t.Rotation, true, position)
	vc := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vc[i] = velocity[i] + ωxp[i]
		p[i] += t.Translation[i]
	}
	v := mxv(t.Rotation, true, vc)
	for i := 0; i < 3; i++ {
		v[i] += t.Velocity[i]
	}
	return p, v
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func mxv(m *mat.Dense, transpose bool, v []float64) []float64 {
	var a mat.Matrix = m
	if transpose {
		a = m.T()
	}
	var r mat.VecDense
	r.MulVec(a, mat.NewVecDense(3, append([]float64(nil), v...)))
	return []float64{r.AtVec(0), r.AtVec(1), r.AtVec(2)}
}
