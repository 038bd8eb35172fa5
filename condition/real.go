package condition

import (
	"fmt"

	"github.com/ChristopherRabotin/trajectory/state"
)

// RealCondition compares a real valued evaluator to a target.
type RealCondition struct {
	name      string
	criterion Criterion
	evaluator Evaluator
	target    Target
}

// NewRealCondition returns a new real condition.
func NewRealCondition(name string, criterion Criterion, evaluator Evaluator, target Target) (*RealCondition, error) {
	if err := criterion.validScalar(); err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, fmt.Errorf("real condition %s: nil evaluator", name)
	}
	return &RealCondition{name, criterion, evaluator, target}, nil
}

// Name implements the EventCondition interface.
func (c *RealCondition) Name() string {
	return c.name
}

// Criterion returns the criterion of this condition.
func (c *RealCondition) Criterion() Criterion {
	return c.criterion
}

// Target returns the target of this condition.
func (c *RealCondition) Target() Target {
	return c.target
}

// Evaluate returns the value of the evaluator minus the target for this state.
func (c *RealCondition) Evaluate(s state.State) (float64, error) {
	if c.target.Type == Relative {
		return 0, fmt.Errorf("%s: %w", c.name, ErrUnresolvedTarget)
	}
	v, err := c.evaluator(s)
	if err != nil {
		return 0, err
	}
	return v - c.target.Value, nil
}

// IsSatisfied implements the EventCondition interface.
func (c *RealCondition) IsSatisfied(previous, current state.State) (bool, error) {
	if c.target.Type == Relative {
		return false, fmt.Errorf("%s: %w", c.name, ErrUnresolvedTarget)
	}
	vp, vc, err := evaluatePair(c.evaluator, previous, current)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c.name, err)
	}
	return c.criterion.compare(vp, vc, c.target.Value), nil
}

// Resolve implements the EventCondition interface.
func (c *RealCondition) Resolve(initial state.State) (EventCondition, error) {
	if c.target.Type != Relative {
		return c, nil
	}
	v, err := c.evaluator(initial)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", c.name, err)
	}
	resolved := *c
	resolved.target = NewAbsoluteTarget(v + c.target.Value)
	return &resolved, nil
}

func (c *RealCondition) String() string {
	return fmt.Sprintf("%s %s %s", c.name, c.criterion, c.target)
}

// BoolEvaluator returns a boolean value of a state.
type BoolEvaluator func(s state.State) (bool, error)

// BooleanCondition is a condition on a boolean evaluator, where true maps to +1 and false to -1 and
// the target is zero. When inversed, the boolean is negated before the comparison.
type BooleanCondition struct {
	name       string
	criterion  Criterion
	evaluator  BoolEvaluator
	isInversed bool
}

// NewBooleanCondition returns a new boolean condition.
func NewBooleanCondition(name string, criterion Criterion, evaluator BoolEvaluator, isInversed bool) (*BooleanCondition, error) {
	if err := criterion.validScalar(); err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, fmt.Errorf("boolean condition %s: nil evaluator", name)
	}
	return &BooleanCondition{name, criterion, evaluator, isInversed}, nil
}

// Name implements the EventCondition interface.
func (c *BooleanCondition) Name() string {
	return c.name
}

// IsInversed returns whether the boolean is negated.
func (c *BooleanCondition) IsInversed() bool {
	return c.isInversed
}

func (c *BooleanCondition) value(s state.State) (float64, error) {
	b, err := c.evaluator(s)
	if err != nil {
		return 0, err
	}
	if b != c.isInversed {
		return 1, nil
	}
	return -1, nil
}

// IsSatisfied implements the EventCondition interface.
func (c *BooleanCondition) IsSatisfied(previous, current state.State) (bool, error) {
	vp, vc, err := evaluatePair(c.value, previous, current)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c.name, err)
	}
	return c.criterion.compare(vp, vc, 0), nil
}

// Resolve implements the EventCondition interface.
func (c *BooleanCondition) Resolve(state.State) (EventCondition, error) {
	return c, nil
}
