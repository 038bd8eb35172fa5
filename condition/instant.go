package condition

import (
	"fmt"
	"time"

	"github.com/ChristopherRabotin/trajectory/state"
)

const halfNanosecond = 0.5

// InstantCondition is satisfied when the propagation reaches an instant. It evaluates the
// time elapsed since the target instant, in nanoseconds to keep full precision.
type InstantCondition struct {
	criterion Criterion
	target    time.Time
	duration  time.Duration
	relative  bool
}

// NewInstantCondition returns a condition on the target instant. Use PositiveCrossing for forward
// propagations, NegativeCrossing for backward ones, or AnyCrossing.
func NewInstantCondition(criterion Criterion, target time.Time) (*InstantCondition, error) {
	if err := criterion.validScalar(); err != nil {
		return nil, err
	}
	return &InstantCondition{criterion: criterion, target: target}, nil
}

// NewDurationCondition returns a condition satisfied once the propagation lasted the provided
// duration, which is negative for backward propagations. It must be resolved before use.
func NewDurationCondition(criterion Criterion, duration time.Duration) (*InstantCondition, error) {
	if err := criterion.validScalar(); err != nil {
		return nil, err
	}
	return &InstantCondition{criterion: criterion, duration: duration, relative: true}, nil
}

// Name implements the EventCondition interface.
func (c *InstantCondition) Name() string {
	if c.relative {
		return fmt.Sprintf("Duration[%s]", c.duration)
	}
	return fmt.Sprintf("Instant[%s]", c.target.Format(time.RFC3339Nano))
}

// Target returns the target instant, or an error for an unresolved duration condition.
func (c *InstantCondition) Target() (time.Time, error) {
	if c.relative {
		return time.Time{}, ErrUnresolvedTarget
	}
	return c.target, nil
}

func (c *InstantCondition) value(s state.State) (float64, error) {
	if !s.IsDefined() {
		return 0, state.ErrUndefinedState
	}
	return float64(s.Instant().Sub(c.target)), nil
}

// IsSatisfied implements the EventCondition interface.
func (c *InstantCondition) IsSatisfied(previous, current state.State) (bool, error) {
	if c.relative {
		return false, fmt.Errorf("%s: %w", c.Name(), ErrUnresolvedTarget)
	}
	vp, vc, err := evaluatePair(c.value, previous, current)
	if err != nil {
		return false, err
	}
	// Reaching the target instant exactly counts as crossing it.
	switch c.criterion {
	case PositiveCrossing:
		return PositiveCrossing.compare(vp, vc, -halfNanosecond), nil
	case NegativeCrossing:
		return NegativeCrossing.compare(vp, vc, halfNanosecond), nil
	case AnyCrossing:
		return PositiveCrossing.compare(vp, vc, -halfNanosecond) || NegativeCrossing.compare(vp, vc, halfNanosecond), nil
	}
	return c.criterion.compare(vp, vc, 0), nil
}

// Resolve implements the EventCondition interface.
func (c *InstantCondition) Resolve(initial state.State) (EventCondition, error) {
	if !c.relative {
		return c, nil
	}
	if !initial.IsDefined() {
		return nil, state.ErrUndefinedState
	}
	return &InstantCondition{criterion: c.criterion, target: initial.Instant().Add(c.duration)}, nil
}
