package condition

import (
	"fmt"

	"github.com/ChristopherRabotin/trajectory/state"
	"github.com/ChristopherRabotin/trajectory/vector"
)

// AngularCondition compares an angle (radians) to a target angle or a target range.
// Crossings are detected on the wrapped difference to the target, and the jump of the
// angle through its own wrap around is never taken as a crossing.
type AngularCondition struct {
	name      string
	criterion Criterion
	evaluator Evaluator
	target    Target
	low, high float64
}

// NewAngularCondition returns a new angular condition with a single target angle.
// Only the crossing criteria are supported.
func NewAngularCondition(name string, criterion Criterion, evaluator Evaluator, target Target) (*AngularCondition, error) {
	if !criterion.IsCrossing() {
		return nil, fmt.Errorf("angular condition %s with %s: %w", name, criterion, ErrInvalidCriterion)
	}
	if evaluator == nil {
		return nil, fmt.Errorf("angular condition %s: nil evaluator", name)
	}
	if target.Type == Absolute {
		target.Value = vector.Wrap2Pi(target.Value)
	}
	return &AngularCondition{name: name, criterion: criterion, evaluator: evaluator, target: target}, nil
}

// NewAngularRangeCondition returns a condition satisfied when the angle is within [low, high], going
// counter clockwise from low to high.
func NewAngularRangeCondition(name string, evaluator Evaluator, low, high float64) (*AngularCondition, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("angular condition %s: nil evaluator", name)
	}
	return &AngularCondition{name: name, criterion: WithinRange, evaluator: evaluator, low: vector.Wrap2Pi(low), high: vector.Wrap2Pi(high)}, nil
}

// Name implements the EventCondition interface.
func (c *AngularCondition) Name() string {
	return c.name
}

// Criterion returns the criterion of this condition.
func (c *AngularCondition) Criterion() Criterion {
	return c.criterion
}

// TargetAngle returns the target angle, or an error for a range condition.
func (c *AngularCondition) TargetAngle() (float64, error) {
	if c.criterion == WithinRange {
		return 0, ErrNoTargetAngle
	}
	if c.target.Type == Relative {
		return 0, ErrUnresolvedTarget
	}
	return c.target.Value, nil
}

// TargetRange returns the target range, or an error for a single target condition.
func (c *AngularCondition) TargetRange() (float64, float64, error) {
	if c.criterion != WithinRange {
		return 0, 0, ErrNoTargetRange
	}
	return c.low, c.high, nil
}

// IsSatisfied implements the EventCondition interface.
func (c *AngularCondition) IsSatisfied(previous, current state.State) (bool, error) {
	if c.criterion == WithinRange {
		vc, err := c.evaluator(current)
		if err != nil {
			return false, fmt.Errorf("%s: %w", c.name, err)
		}
		return vector.Wrap2Pi(vc-c.low) <= vector.Wrap2Pi(c.high-c.low), nil
	}
	if c.target.Type == Relative {
		return false, fmt.Errorf("%s: %w", c.name, ErrUnresolvedTarget)
	}
	vp, vc, err := evaluatePair(c.evaluator, previous, current)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c.name, err)
	}
	dp := vector.WrapPi(vp - c.target.Value)
	dc := vector.WrapPi(vc - c.target.Value)
	jump := vector.WrapPi(vc - vp)
	positive := dp <= 0 && 0 < dc && jump > 0
	negative := dp >= 0 && 0 > dc && jump < 0
	switch c.criterion {
	case PositiveCrossing:
		return positive, nil
	case NegativeCrossing:
		return negative, nil
	default:
		return positive || negative, nil
	}
}

// Resolve implements the EventCondition interface.
func (c *AngularCondition) Resolve(initial state.State) (EventCondition, error) {
	if c.criterion == WithinRange || c.target.Type != Relative {
		return c, nil
	}
	v, err := c.evaluator(initial)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", c.name, err)
	}
	resolved := *c
	resolved.target = NewAbsoluteTarget(vector.Wrap2Pi(v + c.target.Value))
	return &resolved, nil
}
