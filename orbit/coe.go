// Package orbit converts between Cartesian states and classical orbital elements.
package orbit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ChristopherRabotin/trajectory/vector"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	eccentricityε = 1e-11
	angleε        = 1e-11
	keplerTol     = 1e-14
	keplerMaxIter = 100
)

var (
	// ErrZeroRadius is returned for a null position vector.
	ErrZeroRadius = errors.New("orbit: zero orbital radius")
	// ErrDegenerate is returned for rectilinear orbits (null angular momentum).
	ErrDegenerate = errors.New("orbit: degenerate orbit (zero angular momentum)")
	// ErrNotElliptical is returned when an operation is only defined for elliptical orbits.
	ErrNotElliptical = errors.New("orbit: orbit is not elliptical")
	// ErrZeroMeanMotion is returned when the mean motion is zero or undefined.
	ErrZeroMeanMotion = errors.New("orbit: zero mean motion")
	// ErrKeplerNoConvergence is returned when Kepler's equation could not be solved.
	ErrKeplerNoConvergence = errors.New("orbit: Kepler's equation did not converge")
	// ErrInvalidGM is returned for a non positive gravitational parameter.
	ErrInvalidGM = errors.New("orbit: gravitational parameter must be positive")
)

// Element identifies one classical orbital element.
type Element uint8

const (
	// SemiMajorAxis in meters.
	SemiMajorAxis Element = iota + 1
	// Eccentricity (unitless).
	Eccentricity
	// Inclination in radians.
	Inclination
	// AoP is the argument of periapsis in radians.
	AoP
	// RAAN is the right ascension of the ascending node in radians.
	RAAN
	// TrueAnomaly in radians.
	TrueAnomaly
	// MeanAnomaly in radians.
	MeanAnomaly
	// EccentricAnomaly in radians.
	EccentricAnomaly
	// ArgumentOfLatitude in radians.
	ArgumentOfLatitude
)

func (e Element) String() string {
	switch e {
	case SemiMajorAxis:
		return "SemiMajorAxis"
	case Eccentricity:
		return "Eccentricity"
	case Inclination:
		return "Inclination"
	case AoP:
		return "AoP"
	case RAAN:
		return "RAAN"
	case TrueAnomaly:
		return "TrueAnomaly"
	case MeanAnomaly:
		return "MeanAnomaly"
	case EccentricAnomaly:
		return "EccentricAnomaly"
	case ArgumentOfLatitude:
		return "ArgumentOfLatitude"
	}
	panic("cannot stringify unknown orbital element")
}

// IsAngular returns whether this element is an angle.
func (e Element) IsAngular() bool {
	return e != SemiMajorAxis && e != Eccentricity
}

// COE holds the classical orbital elements. Angles are in radians, distances in meters.
type COE struct {
	A, E, I, RAAN, AoP, TrueAnomaly float64
}

// NewCOEFromRV returns the orbital elements from the R and V vectors (Vallado's RV2COE, page 113).
// Circular orbits have a zero argument of periapsis and equatorial orbits a zero RAAN; the true
// anomaly is then measured from the node, or from the X axis for circular equatorial orbits.
func NewCOEFromRV(R, V []float64, μ float64) (COE, error) {
	if μ <= 0 {
		return COE{}, ErrInvalidGM
	}
	r := vector.Norm(R)
	if r == 0 {
		return COE{}, ErrZeroRadius
	}
	hVec := vector.Cross(R, V)
	h := vector.Norm(hVec)
	if scalar.EqualWithinAbs(h, 0, 1e-12*math.Max(1, r*vector.Norm(V))) {
		return COE{}, ErrDegenerate
	}
	n := vector.Cross([]float64{0, 0, 1}, hVec)
	nNorm := vector.Norm(n)
	v := vector.Norm(V)
	ξ := (v*v)/2 - μ/r
	a := -μ / (2 * ξ)
	eVec := make([]float64, 3)
	rDotV := vector.Dot(R, V)
	for i := 0; i < 3; i++ {
		eVec[i] = ((v*v-μ/r)*R[i] - rDotV*V[i]) / μ
	}
	e := vector.Norm(eVec)
	i := math.Acos(clamp(hVec[2] / h))

	equatorial := nNorm < angleε*h
	circular := e < eccentricityε

	var Ω, ω, ν float64
	if !equatorial {
		Ω = math.Acos(clamp(n[0] / nNorm))
		if n[1] < 0 {
			Ω = 2*math.Pi - Ω
		}
	}
	switch {
	case !circular && !equatorial:
		ω = math.Acos(clamp(vector.Dot(n, eVec) / (nNorm * e)))
		if eVec[2] < 0 {
			ω = 2*math.Pi - ω
		}
	case !circular && equatorial:
		// Longitude of periapsis.
		ω = math.Atan2(eVec[1], eVec[0])
		if hVec[2] < 0 {
			ω = -ω
		}
	}
	switch {
	case !circular:
		ν = math.Acos(clamp(vector.Dot(eVec, R) / (e * r)))
		if rDotV < 0 {
			ν = 2*math.Pi - ν
		}
	case !equatorial:
		// Argument of latitude.
		ν = math.Acos(clamp(vector.Dot(n, R) / (nNorm * r)))
		if R[2] < 0 {
			ν = 2*math.Pi - ν
		}
	default:
		// True longitude.
		ν = math.Atan2(R[1], R[0])
		if hVec[2] < 0 {
			ν = -ν
		}
	}
	return COE{a, e, vector.Wrap2Pi(i), vector.Wrap2Pi(Ω), vector.Wrap2Pi(ω), vector.Wrap2Pi(ν)}, nil
}

// RV returns the position and velocity vectors of these elements.
func (c COE) RV(μ float64) ([]float64, []float64, error) {
	if μ <= 0 {
		return nil, nil, ErrInvalidGM
	}
	p := c.SemiParameter()
	if p <= 0 {
		return nil, nil, ErrDegenerate
	}
	sinν, cosν := math.Sincos(c.TrueAnomaly)
	denom := 1 + c.E*cosν
	if denom <= 0 {
		return nil, nil, fmt.Errorf("true anomaly %f beyond the asymptote: %w", c.TrueAnomaly, ErrDegenerate)
	}
	R := []float64{p * cosν / denom, p * sinν / denom, 0}
	sqrtμp := math.Sqrt(μ / p)
	V := []float64{-sqrtμp * sinν, sqrtμp * (c.E + cosν), 0}
	return PQW2ECI(c.I, c.AoP, c.RAAN, R), PQW2ECI(c.I, c.AoP, c.RAAN, V), nil
}

// SemiParameter returns the semi parameter p.
func (c COE) SemiParameter() float64 {
	return c.A * (1 - c.E*c.E)
}

// Periapsis returns the periapsis radius.
func (c COE) Periapsis() float64 {
	return c.A * (1 - c.E)
}

// Apoapsis returns the apoapsis radius.
func (c COE) Apoapsis() float64 {
	return c.A * (1 + c.E)
}

// ArgumentOfLatitude returns ω+ν in [0, 2π).
func (c COE) ArgumentOfLatitude() float64 {
	return vector.Wrap2Pi(c.AoP + c.TrueAnomaly)
}

// EccentricAnomaly returns the eccentric anomaly in [0, 2π).
func (c COE) EccentricAnomaly() (float64, error) {
	if c.E >= 1 {
		return 0, ErrNotElliptical
	}
	return EccentricAnomalyFromTrue(c.TrueAnomaly, c.E), nil
}

// MeanAnomaly returns the mean anomaly in [0, 2π).
func (c COE) MeanAnomaly() (float64, error) {
	E, err := c.EccentricAnomaly()
	if err != nil {
		return 0, err
	}
	return vector.Wrap2Pi(E - c.E*math.Sin(E)), nil
}

// MeanMotion returns the mean motion in radians per second.
func (c COE) MeanMotion(μ float64) (float64, error) {
	if c.E >= 1 || c.A <= 0 {
		return 0, ErrNotElliptical
	}
	n := math.Sqrt(μ / math.Pow(c.A, 3))
	if n == 0 || math.IsNaN(n) {
		return 0, ErrZeroMeanMotion
	}
	return n, nil
}

// Period returns the orbital period.
func (c COE) Period(μ float64) (time.Duration, error) {
	n, err := c.MeanMotion(μ)
	if err != nil {
		return 0, err
	}
	return time.Duration(2 * math.Pi / n * float64(time.Second)), nil
}

// Element returns the requested element.
func (c COE) Element(e Element) (float64, error) {
	switch e {
	case SemiMajorAxis:
		return c.A, nil
	case Eccentricity:
		return c.E, nil
	case Inclination:
		return c.I, nil
	case AoP:
		return c.AoP, nil
	case RAAN:
		return c.RAAN, nil
	case TrueAnomaly:
		return c.TrueAnomaly, nil
	case MeanAnomaly:
		return c.MeanAnomaly()
	case EccentricAnomaly:
		return c.EccentricAnomaly()
	case ArgumentOfLatitude:
		return c.ArgumentOfLatitude(), nil
	}
	return 0, fmt.Errorf("unknown orbital element %d", e)
}

func (c COE) String() string {
	return fmt.Sprintf("a=%.1f e=%.6f i=%.3f Ω=%.3f ω=%.3f ν=%.3f", c.A, c.E, vector.Rad2deg(c.I), vector.Rad2deg(c.RAAN), vector.Rad2deg(c.AoP), vector.Rad2deg(c.TrueAnomaly))
}

// EccentricAnomalyFromTrue converts a true anomaly into an eccentric anomaly (elliptical orbits).
func EccentricAnomalyFromTrue(ν, e float64) float64 {
	sinν, cosν := math.Sincos(ν)
	denom := 1 + e*cosν
	sinE := math.Sqrt(1-e*e) * sinν / denom
	cosE := (e + cosν) / denom
	return vector.Wrap2Pi(math.Atan2(sinE, cosE))
}

// TrueAnomalyFromMean solves Kepler's equation with Newton iterations and returns the true anomaly.
func TrueAnomalyFromMean(M, e float64) (float64, error) {
	if e < 0 || e >= 1 {
		return 0, ErrNotElliptical
	}
	M = vector.Wrap2Pi(M)
	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for iter := 0; iter < keplerMaxIter; iter++ {
		sinE, cosE := math.Sincos(E)
		δE := (E - e*sinE - M) / (1 - e*cosE)
		E -= δE
		if math.Abs(δE) < keplerTol {
			sinE, cosE = math.Sincos(E)
			return vector.Wrap2Pi(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)), nil
		}
	}
	return 0, ErrKeplerNoConvergence
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
