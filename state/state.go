// Package state holds the immutable propagation state: an instant, a coordinate vector,
// the frame it is expressed in and the broker describing which subsets the coordinates hold.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrUndefinedState is returned by any operation on the Undefined state.
	ErrUndefinedState = errors.New("state: undefined state")
	// ErrSubsetNotFound is returned when a coordinate subset is not part of a broker.
	ErrSubsetNotFound = errors.New("state: coordinate subset not found")
	// ErrSizeMismatch is returned when a coordinate vector does not match its broker.
	ErrSizeMismatch = errors.New("state: coordinate size mismatch")
	// ErrInvalidSubset is returned when building an invalid coordinate subset.
	ErrInvalidSubset = errors.New("state: invalid coordinate subset")
	// ErrIncompatible is returned for arithmetic between states which do not match.
	ErrIncompatible = errors.New("state: incompatible states")
)

// State is a snapshot of coordinates at an instant in a given frame. It is never mutated.
type State struct {
	instant     time.Time
	coordinates []float64
	frame       *frame.Frame
	broker      *CoordinateBroker
	defined     bool
}

// Undefined returns the undefined state. It is not equal to any state, itself included.
func Undefined() State {
	return State{}
}

// New returns a new state. The coordinates are copied, and the state keeps a frozen copy of the
// broker so that subsets added to it later do not affect the state.
func New(instant time.Time, coordinates []float64, f *frame.Frame, broker *CoordinateBroker) (State, error) {
	if f == nil {
		return Undefined(), fmt.Errorf("new state: %w", frame.ErrUndefinedFrame)
	}
	if broker == nil {
		return Undefined(), fmt.Errorf("new state: nil coordinate broker")
	}
	if len(coordinates) != broker.NumberOfCoordinates() {
		return Undefined(), fmt.Errorf("new state with %d coordinates for %d expected: %w", len(coordinates), broker.NumberOfCoordinates(), ErrSizeMismatch)
	}
	return State{instant.UTC(), append([]float64(nil), coordinates...), f, broker.freeze(), true}, nil
}

// NewFromSubsets returns a new state whose broker is built from the provided subsets.
func NewFromSubsets(instant time.Time, coordinates []float64, f *frame.Frame, subsets ...CoordinateSubset) (State, error) {
	return New(instant, coordinates, f, NewCoordinateBroker(subsets...))
}

// NewCartesian returns a new state with only the position and velocity subsets.
func NewCartesian(instant time.Time, position, velocity []float64, f *frame.Frame) (State, error) {
	if len(position) != 3 || len(velocity) != 3 {
		return Undefined(), fmt.Errorf("new cartesian state: %w", ErrSizeMismatch)
	}
	return NewFromSubsets(instant, append(append([]float64{}, position...), velocity...), f, CartesianPosition, CartesianVelocity)
}

// IsDefined returns whether this state is defined.
func (s State) IsDefined() bool {
	return s.defined
}

// Instant returns the instant of this state.
func (s State) Instant() time.Time {
	return s.instant
}

// Coordinates returns a copy of the coordinate vector.
func (s State) Coordinates() []float64 {
	return append([]float64(nil), s.coordinates...)
}

// Size returns the number of coordinates.
func (s State) Size() int {
	return len(s.coordinates)
}

// Frame returns the frame of this state.
func (s State) Frame() *frame.Frame {
	return s.frame
}

// Broker returns the frozen coordinate broker of this state.
func (s State) Broker() *CoordinateBroker {
	return s.broker
}

// Subsets returns the coordinate subsets of this state.
func (s State) Subsets() []CoordinateSubset {
	if !s.defined {
		return nil
	}
	return s.broker.Subsets()
}

// HasSubset returns whether this state holds the subset.
func (s State) HasSubset(subset CoordinateSubset) bool {
	return s.defined && s.broker.HasSubset(subset)
}

// Extract returns the coordinates of the provided subset.
func (s State) Extract(subset CoordinateSubset) ([]float64, error) {
	if !s.defined {
		return nil, ErrUndefinedState
	}
	return s.broker.ExtractCoordinate(s.coordinates, subset)
}

// ExtractMany returns the concatenated coordinates of the provided subsets.
func (s State) ExtractMany(subsets []CoordinateSubset) ([]float64, error) {
	if !s.defined {
		return nil, ErrUndefinedState
	}
	return s.broker.ExtractCoordinates(s.coordinates, subsets)
}

// Position returns the Cartesian position.
func (s State) Position() ([]float64, error) {
	return s.Extract(CartesianPosition)
}

// Velocity returns the Cartesian velocity.
func (s State) Velocity() ([]float64, error) {
	return s.Extract(CartesianVelocity)
}

// InFrame returns this state expressed in the target frame. The position and velocity
// subsets are transformed, all other subsets are carried over unchanged.
func (s State) InFrame(target *frame.Frame) (State, error) {
	if !s.defined {
		return Undefined(), ErrUndefinedState
	}
	if target == nil {
		return Undefined(), frame.ErrUndefinedFrame
	}
	if s.frame.Equal(target) {
		return s, nil
	}
	r, err := s.Position()
	if err != nil {
		return Undefined(), fmt.Errorf("state in %s: %w", target, err)
	}
	v, err := s.Velocity()
	if err != nil {
		return Undefined(), fmt.Errorf("state in %s: %w", target, err)
	}
	r, v, err = s.frame.TransformTo(target, s.instant, r, v)
	if err != nil {
		return Undefined(), err
	}
	coordinates := s.Coordinates()
	pOffset, _ := s.broker.Offset(CartesianPosition)
	vOffset, _ := s.broker.Offset(CartesianVelocity)
	copy(coordinates[pOffset:pOffset+3], r)
	copy(coordinates[vOffset:vOffset+3], v)
	return State{s.instant, coordinates, target, s.broker, true}, nil
}

// Sub returns the relative state s - o. Both states must share the instant, frame and subsets.
func (s State) Sub(o State) (State, error) {
	if !s.defined || !o.defined {
		return Undefined(), ErrUndefinedState
	}
	if !s.instant.Equal(o.instant) {
		return Undefined(), fmt.Errorf("instants %s and %s differ: %w", s.instant, o.instant, ErrIncompatible)
	}
	if !s.frame.Equal(o.frame) {
		return Undefined(), fmt.Errorf("frames %s and %s differ: %w", s.frame, o.frame, ErrIncompatible)
	}
	if !s.broker.Equal(o.broker) {
		return Undefined(), fmt.Errorf("coordinate subsets differ: %w", ErrIncompatible)
	}
	coordinates := make([]float64, len(s.coordinates))
	floats.SubTo(coordinates, s.coordinates, o.coordinates)
	return State{s.instant, coordinates, s.frame, s.broker, true}, nil
}

// Equal returns whether both states are defined and identical.
func (s State) Equal(o State) bool {
	if !s.defined || !o.defined {
		return false
	}
	return s.instant.Equal(o.instant) && s.frame.Equal(o.frame) && s.broker.Equal(o.broker) && floats.Equal(s.coordinates, o.coordinates)
}

func (s State) String() string {
	if !s.defined {
		return "State{Undefined}"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "State{instant=%s jd=%.6f frame=%s", s.instant.Format(time.RFC3339Nano), julian.TimeToJD(s.instant), s.frame)
	for _, subset := range s.broker.subsets {
		c, _ := s.Extract(subset)
		fmt.Fprintf(&b, " %s=%v", strings.ToLower(subset.name), c)
	}
	b.WriteString("}")
	return b.String()
}
