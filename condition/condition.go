// Package condition defines the event conditions which stop a propagation.
//
// A condition compares a scalar evaluated on two consecutive states against a target,
// following a Criterion. Conditions are immutable: targets relative to the initial state
// of a propagation are resolved by Resolve, which returns a resolved copy.
package condition

import (
	"errors"
	"fmt"

	"github.com/ChristopherRabotin/trajectory/state"
)

var (
	// ErrUnresolvedTarget is returned when a relative target is used before being resolved.
	ErrUnresolvedTarget = errors.New("condition: relative target is not resolved")
	// ErrInvalidCriterion is returned when a criterion is not supported by a condition.
	ErrInvalidCriterion = errors.New("condition: invalid criterion")
	// ErrNoTargetAngle is returned when the target angle of a range condition is requested.
	ErrNoTargetAngle = errors.New("condition: angular condition has a target range, not a target angle")
	// ErrNoTargetRange is returned when the target range of a single target condition is requested.
	ErrNoTargetRange = errors.New("condition: angular condition has a target angle, not a target range")
)

// EventCondition is satisfied by a pair of consecutive states.
// Implementations must be safe for concurrent use.
type EventCondition interface {
	Name() string
	// IsSatisfied returns whether the condition is met when going from previous to current.
	IsSatisfied(previous, current state.State) (bool, error)
	// Resolve returns a copy of this condition where relative targets are resolved against the initial state.
	Resolve(initial state.State) (EventCondition, error)
}

// Criterion defines how the evaluated values are compared to the target.
type Criterion uint8

const (
	// PositiveCrossing is satisfied when the value crosses the target upwards.
	PositiveCrossing Criterion = iota + 1
	// NegativeCrossing is satisfied when the value crosses the target downwards.
	NegativeCrossing
	// AnyCrossing is satisfied when the value crosses the target either way.
	AnyCrossing
	// StrictlyPositive is satisfied when the current value is above the target.
	StrictlyPositive
	// StrictlyNegative is satisfied when the current value is below the target.
	StrictlyNegative
	// PositiveOnly is satisfied when both values are above the target.
	PositiveOnly
	// NegativeOnly is satisfied when both values are below the target.
	NegativeOnly
	// WithinRange is satisfied when the current angle is within the target range (angular conditions only).
	WithinRange
)

func (c Criterion) String() string {
	switch c {
	case PositiveCrossing:
		return "PositiveCrossing"
	case NegativeCrossing:
		return "NegativeCrossing"
	case AnyCrossing:
		return "AnyCrossing"
	case StrictlyPositive:
		return "StrictlyPositive"
	case StrictlyNegative:
		return "StrictlyNegative"
	case PositiveOnly:
		return "PositiveOnly"
	case NegativeOnly:
		return "NegativeOnly"
	case WithinRange:
		return "WithinRange"
	}
	panic("cannot stringify unknown criterion")
}

// IsCrossing returns whether this criterion requires a crossing of the target.
func (c Criterion) IsCrossing() bool {
	return c == PositiveCrossing || c == NegativeCrossing || c == AnyCrossing
}

// compare applies the criterion to the previous and current values.
func (c Criterion) compare(previous, current, target float64) bool {
	switch c {
	case PositiveCrossing:
		return previous <= target && target < current
	case NegativeCrossing:
		return previous >= target && target > current
	case AnyCrossing:
		return (previous <= target && target < current) || (previous >= target && target > current)
	case StrictlyPositive:
		return current > target
	case StrictlyNegative:
		return current < target
	case PositiveOnly:
		return previous > target && current > target
	case NegativeOnly:
		return previous < target && current < target
	}
	return false
}

func (c Criterion) validScalar() error {
	if c < PositiveCrossing || c > NegativeOnly {
		return fmt.Errorf("%d: %w", c, ErrInvalidCriterion)
	}
	return nil
}

// TargetType defines whether a target is absolute or relative to the initial state.
type TargetType uint8

const (
	// Absolute targets are used as is.
	Absolute TargetType = iota + 1
	// Relative targets are offsets from the value evaluated on the initial state.
	Relative
)

// Target is the value a condition compares against.
type Target struct {
	Value float64
	Type  TargetType
}

// NewAbsoluteTarget returns an absolute target.
func NewAbsoluteTarget(value float64) Target {
	return Target{value, Absolute}
}

// NewRelativeTarget returns a target relative to the initial state.
func NewRelativeTarget(offset float64) Target {
	return Target{offset, Relative}
}

func (t Target) String() string {
	if t.Type == Relative {
		return fmt.Sprintf("%+g (relative)", t.Value)
	}
	return fmt.Sprintf("%g", t.Value)
}

// Evaluator returns the scalar value of a state.
type Evaluator func(s state.State) (float64, error)

// evaluatePair evaluates both states.
func evaluatePair(evaluator Evaluator, previous, current state.State) (float64, float64, error) {
	vp, err := evaluator(previous)
	if err != nil {
		return 0, 0, err
	}
	vc, err := evaluator(current)
	if err != nil {
		return 0, 0, err
	}
	return vp, vc, nil
}
