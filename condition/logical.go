package condition

import (
	"fmt"
	"strings"

	"github.com/ChristopherRabotin/trajectory/state"
)

// LogicalType defines how the sub conditions of a logical condition are combined.
type LogicalType uint8

const (
	// Conjunctive (AND) requires all sub conditions.
	Conjunctive LogicalType = iota + 1
	// Disjunctive (OR) requires any sub condition.
	Disjunctive
)

func (l LogicalType) String() string {
	switch l {
	case Conjunctive:
		return "And"
	case Disjunctive:
		return "Or"
	}
	panic("cannot stringify unknown logical type")
}

// LogicalCondition combines several conditions.
type LogicalCondition struct {
	kind       LogicalType
	conditions []EventCondition
}

// NewLogicalCondition returns a new logical condition.
func NewLogicalCondition(kind LogicalType, conditions ...EventCondition) (*LogicalCondition, error) {
	if kind != Conjunctive && kind != Disjunctive {
		return nil, fmt.Errorf("logical condition of type %d: %w", kind, ErrInvalidCriterion)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("%s condition without sub conditions", kind)
	}
	for i, c := range conditions {
		if c == nil {
			return nil, fmt.Errorf("%s condition: sub condition %d is nil", kind, i)
		}
	}
	return &LogicalCondition{kind, append([]EventCondition(nil), conditions...)}, nil
}

// NewConjunctive returns a condition satisfied when all the conditions are.
func NewConjunctive(conditions ...EventCondition) (*LogicalCondition, error) {
	return NewLogicalCondition(Conjunctive, conditions...)
}

// NewDisjunctive returns a condition satisfied when any of the conditions is.
func NewDisjunctive(conditions ...EventCondition) (*LogicalCondition, error) {
	return NewLogicalCondition(Disjunctive, conditions...)
}

// Type returns the type of this logical condition.
func (c *LogicalCondition) Type() LogicalType {
	return c.kind
}

// Conditions returns the sub conditions.
func (c *LogicalCondition) Conditions() []EventCondition {
	return append([]EventCondition(nil), c.conditions...)
}

// Name implements the EventCondition interface.
func (c *LogicalCondition) Name() string {
	names := make([]string, len(c.conditions))
	for i, sub := range c.conditions {
		names[i] = sub.Name()
	}
	return fmt.Sprintf("%s(%s)", c.kind, strings.Join(names, ", "))
}

// IsSatisfied implements the EventCondition interface.
func (c *LogicalCondition) IsSatisfied(previous, current state.State) (bool, error) {
	for _, sub := range c.conditions {
		ok, err := sub.IsSatisfied(previous, current)
		if err != nil {
			return false, err
		}
		if c.kind == Disjunctive && ok {
			return true, nil
		}
		if c.kind == Conjunctive && !ok {
			return false, nil
		}
	}
	return c.kind == Conjunctive, nil
}

// Resolve implements the EventCondition interface.
func (c *LogicalCondition) Resolve(initial state.State) (EventCondition, error) {
	resolved := make([]EventCondition, len(c.conditions))
	for i, sub := range c.conditions {
		r, err := sub.Resolve(initial)
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}
	return &LogicalCondition{c.kind, resolved}, nil
}
