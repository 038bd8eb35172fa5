package guidance

import (
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/orbit"
	"github.com/ChristopherRabotin/trajectory/vector"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	distanceε     = 2e3
	eccentricityε = 5e-5
	angleε        = 1e-3
)

// CombinationMethod defines how the Lyapunov optimal control laws are summed.
type CombinationMethod uint8

const (
	// Ruggiero uses the eponym method of combining the control laws.
	Ruggiero CombinationMethod = iota + 1
	// Naasz is another type of combination of control law.
	Naasz
)

func (m CombinationMethod) String() string {
	switch m {
	case Ruggiero:
		return "Ruggiero"
	case Naasz:
		return "Naasz"
	}
	panic("cannot stringify unknown combination method")
}

/* Following optimal thrust change are from IEPC 2011's paper:
Low-Thrust Maneuvers for the Efficient Correction of Orbital Elements
A. Ruggiero, S. Marcuccio and M. Andrenucci */

func unitΔvFromAngles(α, β float64) []float64 {
	sinα, cosα := math.Sincos(α)
	sinβ, cosβ := math.Sincos(β)
	return []float64{sinα * cosβ, cosα * cosβ, sinβ}
}

// optimalDirection returns the optimal thrust direction, in the QSW frame, to change the provided element.
func optimalDirection(element orbit.Element, o orbit.COE) []float64 {
	switch element {
	case orbit.SemiMajorAxis:
		sinν, cosν := math.Sincos(o.TrueAnomaly)
		return unitΔvFromAngles(math.Atan2(o.E*sinν, 1+o.E*cosν), 0.0)
	case orbit.Eccentricity:
		E, _ := o.EccentricAnomaly()
		sinν, cosν := math.Sincos(o.TrueAnomaly)
		return unitΔvFromAngles(math.Atan2(sinν, cosν+math.Cos(E)), 0.0)
	case orbit.Inclination:
		return unitΔvFromAngles(0.0, vector.Sign(math.Cos(o.AoP+o.TrueAnomaly))*math.Pi/2)
	case orbit.RAAN:
		return unitΔvFromAngles(0.0, vector.Sign(math.Sin(o.AoP+o.TrueAnomaly))*math.Pi/2)
	case orbit.AoP:
		// In plane from Petropoulos, out of plane otherwise, whichever is closest to its optimal true anomaly.
		oe2 := 1 - o.E*o.E
		e3 := o.E * o.E * o.E
		νOptiα := math.Acos(math.Cbrt(oe2/(2*e3)+math.Sqrt(0.25*math.Pow(oe2/e3, 2)+1/27.)) - math.Cbrt(-oe2/(2*e3)+math.Sqrt(0.25*math.Pow(oe2/e3, 2)+1/27.)) - 1/o.E)
		νOptiβ := math.Acos(-o.E*math.Cos(o.AoP)) - o.AoP
		if math.Abs(o.TrueAnomaly-νOptiα) < math.Abs(o.TrueAnomaly-νOptiβ) {
			p := o.SemiParameter()
			r := p / (1 + o.E*math.Cos(o.TrueAnomaly))
			sinν, cosν := math.Sincos(o.TrueAnomaly)
			return unitΔvFromAngles(math.Atan2(-p*cosν, (p+r)*sinν), 0.0)
		}
		return unitΔvFromAngles(0.0, vector.Sign(-math.Sin(o.AoP+o.TrueAnomaly))*math.Cos(o.I)*math.Pi/2)
	}
	panic(fmt.Errorf("optimal thrust for %s not implemented", element))
}

func tolerance(element orbit.Element) float64 {
	switch element {
	case orbit.SemiMajorAxis:
		return distanceε
	case orbit.Eccentricity:
		return eccentricityε
	default:
		return angleε
	}
}

// OptimalΔOrbit combines the Lyapunov optimal control laws of several orbital elements to reach a target orbit.
// The initial orbit is fixed at construction, so the law holds no mutable state.
type OptimalΔOrbit struct {
	initial, target orbit.COE
	μ               float64
	method          CombinationMethod
	elements        []orbit.Element
}

// NewOptimalΔOrbit returns a new law steering from the initial to the target orbit. When no element is
// provided, all the elements which differ between both orbits are corrected.
func NewOptimalΔOrbit(initial, target orbit.COE, μ float64, method CombinationMethod, elements ...orbit.Element) (*OptimalΔOrbit, error) {
	if μ <= 0 {
		return nil, orbit.ErrInvalidGM
	}
	if method != Ruggiero && method != Naasz {
		return nil, fmt.Errorf("control law summation %d not supported", method)
	}
	if len(elements) == 0 {
		for _, el := range []orbit.Element{orbit.SemiMajorAxis, orbit.Eccentricity, orbit.Inclination, orbit.RAAN, orbit.AoP} {
			init, _ := initial.Element(el)
			tgt, _ := target.Element(el)
			if !scalar.EqualWithinAbs(init, tgt, tolerance(el)) {
				elements = append(elements, el)
			}
		}
	}
	for _, el := range elements {
		switch el {
		case orbit.SemiMajorAxis, orbit.Eccentricity, orbit.Inclination, orbit.RAAN, orbit.AoP:
		default:
			return nil, fmt.Errorf("optimal thrust for %s not implemented", el)
		}
	}
	return &OptimalΔOrbit{initial, target, μ, method, elements}, nil
}

// Name implements the Law interface.
func (cl *OptimalΔOrbit) Name() string {
	return fmt.Sprintf("OptimalΔOrbit[%s %v]", cl.method, cl.elements)
}

// Direction returns the unit thrust direction in the QSW frame for the osculating orbit o, and whether
// the target has been reached (in which case the direction is null).
func (cl *OptimalΔOrbit) Direction(o orbit.COE) ([]float64, bool) {
	thrust := []float64{0, 0, 0}
	cleared := true
	switch cl.method {
	case Ruggiero:
		for _, el := range cl.elements {
			oscul, _ := o.Element(el)
			init, _ := cl.initial.Element(el)
			target, _ := cl.target.Element(el)
			tol := tolerance(el)
			if scalar.EqualWithinAbs(init, target, tol) || scalar.EqualWithinAbs(oscul, target, tol) {
				continue
			}
			cleared = false
			fact := (target - oscul) / math.Abs(target-init)
			floats.AddScaled(thrust, fact, optimalDirection(el, o))
		}
	case Naasz:
		p := o.SemiParameter()
		h := math.Sqrt(cl.μ * p)
		sinω, cosω := math.Sincos(o.AoP)
		for _, el := range cl.elements {
			oscul, _ := o.Element(el)
			target, _ := cl.target.Element(el)
			δO := oscul - target
			if el == orbit.RAAN || el == orbit.AoP {
				if δO > math.Pi {
					// Enforce short path to correct angle.
					δO *= -1
				}
			}
			if math.Abs(δO) < tolerance(el) {
				continue
			}
			var weight float64
			switch el {
			case orbit.SemiMajorAxis:
				weight = vector.Sign(-δO) * h * h / (4 * math.Pow(o.A, 4) * math.Pow(1+o.E, 2))
			case orbit.Eccentricity:
				weight = vector.Sign(-δO) * h * h / (4 * p * p)
			case orbit.Inclination:
				weight = vector.Sign(-δO) * math.Pow((h+o.E*h*math.Cos(o.AoP+math.Asin(o.E*sinω)))/(p*(math.Pow(o.E*sinω, 2)-1)), 2)
			case orbit.RAAN:
				weight = vector.Sign(-δO) * math.Pow((h*math.Sin(o.I)*(o.E*math.Sin(o.AoP+math.Asin(o.E*cosω))-1))/(p*(1-math.Pow(o.E*cosω, 2))), 2)
			case orbit.AoP:
				weight = vector.Sign(-δO) * (math.Pow(o.E*h, 2) / (4 * p * p)) * (1 - o.E*o.E/4)
			}
			cleared = false
			floats.AddScaled(thrust, 0.5*weight*δO*δO, optimalDirection(el, o))
		}
	}
	return unit(thrust), cleared
}

// ThrustAccelerationAt implements the Law interface.
func (cl *OptimalΔOrbit) ThrustAccelerationAt(_ time.Time, R, V []float64, thrustAcceleration float64, f *frame.Frame) ([]float64, error) {
	if err := checkFrame(f); err != nil {
		return nil, err
	}
	o, err := orbit.NewCOEFromRV(R, V, cl.μ)
	if err != nil {
		return nil, err
	}
	dir, _ := cl.Direction(o)
	acc, err := QSW.ToInertial(dir, R, V)
	if err != nil {
		return nil, err
	}
	return vector.Scale(thrustAcceleration, acc), nil
}
