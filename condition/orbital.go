package condition

import (
	"fmt"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/orbit"
	"github.com/ChristopherRabotin/trajectory/state"
)

// coeOf returns the osculating elements of the state expressed in f.
func coeOf(s state.State, μ float64, f *frame.Frame) (orbit.COE, error) {
	inFrame, err := s.InFrame(f)
	if err != nil {
		return orbit.COE{}, err
	}
	R, err := inFrame.Position()
	if err != nil {
		return orbit.COE{}, err
	}
	V, err := inFrame.Velocity()
	if err != nil {
		return orbit.COE{}, err
	}
	return orbit.NewCOEFromRV(R, V, μ)
}

// NewCOECondition returns a condition on an osculating classical orbital element computed in the
// provided frame. Angular elements yield an AngularCondition, others a RealCondition.
func NewCOECondition(element orbit.Element, criterion Criterion, target Target, μ float64, f *frame.Frame) (EventCondition, error) {
	if μ <= 0 {
		return nil, orbit.ErrInvalidGM
	}
	if f == nil {
		return nil, frame.ErrUndefinedFrame
	}
	evaluator := func(s state.State) (float64, error) {
		coe, err := coeOf(s, μ, f)
		if err != nil {
			return 0, err
		}
		return coe.Element(element)
	}
	return newElementCondition(fmt.Sprintf("COE[%s]", element), element, criterion, target, evaluator)
}

// NewBrouwerLyddaneMeanLongCondition returns a condition on a Brouwer-Lyddane mean (long) element.
// J2 and rEq describe the central body.
func NewBrouwerLyddaneMeanLongCondition(element orbit.Element, criterion Criterion, target Target, μ, J2, rEq float64, f *frame.Frame) (EventCondition, error) {
	if μ <= 0 {
		return nil, orbit.ErrInvalidGM
	}
	if f == nil {
		return nil, frame.ErrUndefinedFrame
	}
	evaluator := func(s state.State) (float64, error) {
		coe, err := coeOf(s, μ, f)
		if err != nil {
			return 0, err
		}
		mean, err := orbit.BrouwerLyddaneMeanLong(coe, J2, rEq)
		if err != nil {
			return 0, err
		}
		return mean.Element(element)
	}
	return newElementCondition(fmt.Sprintf("BrouwerLyddaneMeanLong[%s]", element), element, criterion, target, evaluator)
}

func newElementCondition(name string, element orbit.Element, criterion Criterion, target Target, evaluator Evaluator) (EventCondition, error) {
	if element.IsAngular() {
		return NewAngularCondition(name, criterion, evaluator, target)
	}
	return NewRealCondition(name, criterion, evaluator, target)
}
