package state

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
)

// Builder builds states sharing a frame and a set of coordinate subsets.
type Builder struct {
	frame  *frame.Frame
	broker *CoordinateBroker
}

// NewBuilder returns a new state builder.
func NewBuilder(f *frame.Frame, subsets ...CoordinateSubset) (*Builder, error) {
	if f == nil {
		return nil, fmt.Errorf("new state builder: %w", frame.ErrUndefinedFrame)
	}
	if len(subsets) == 0 {
		return nil, fmt.Errorf("new state builder: no coordinate subsets: %w", ErrInvalidSubset)
	}
	return &Builder{f, NewCoordinateBroker(subsets...).freeze()}, nil
}

// Frame returns the frame of the built states.
func (b *Builder) Frame() *frame.Frame {
	return b.frame
}

// Broker returns the broker of the built states.
func (b *Builder) Broker() *CoordinateBroker {
	return b.broker
}

// Build returns a new state from these coordinates.
func (b *Builder) Build(instant time.Time, coordinates []float64) (State, error) {
	return New(instant, coordinates, b.frame, b.broker)
}

// Reduce returns the provided state restricted to this builder's subsets.
func (b *Builder) Reduce(s State) (State, error) {
	if !s.defined {
		return Undefined(), ErrUndefinedState
	}
	if !s.frame.Equal(b.frame) {
		return Undefined(), fmt.Errorf("reducing state in %s with builder in %s: %w", s.frame, b.frame, ErrIncompatible)
	}
	coordinates, err := s.ExtractMany(b.broker.subsets)
	if err != nil {
		return Undefined(), fmt.Errorf("reducing state: %w", err)
	}
	return New(s.instant, coordinates, b.frame, b.broker)
}

// Expand returns the provided state extended to this builder's subsets, where missing subsets
// are read from the defaults state.
func (b *Builder) Expand(s, defaults State) (State, error) {
	if !s.defined || !defaults.defined {
		return Undefined(), ErrUndefinedState
	}
	if !s.frame.Equal(b.frame) || !defaults.frame.Equal(b.frame) {
		return Undefined(), fmt.Errorf("expanding state in %s with builder in %s: %w", s.frame, b.frame, ErrIncompatible)
	}
	coordinates := make([]float64, 0, b.broker.NumberOfCoordinates())
	for _, subset := range b.broker.subsets {
		src := s
		if !s.HasSubset(subset) {
			src = defaults
		}
		c, err := src.Extract(subset)
		if err != nil {
			return Undefined(), fmt.Errorf("expanding state: %w", err)
		}
		coordinates = append(coordinates, c...)
	}
	return New(s.instant, coordinates, b.frame, b.broker)
}
