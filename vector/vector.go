// Package vector provides the small 3-vector helpers shared by the propagation packages.
package vector

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	deg2rad = math.Pi / 180
	zeroε   = 1e-12
)

// Norm returns the norm of a given vector which is supposed to be 3x1.
func Norm(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Unit returns the unit vector of a given vector, or the zero vector if its norm is zero.
func Unit(a []float64) (b []float64) {
	n := Norm(a)
	if scalar.EqualWithinAbs(n, 0, zeroε) {
		return []float64{0, 0, 0}
	}
	b = make([]float64, len(a))
	for i, val := range a {
		b[i] = val / n
	}
	return
}

// Sign returns the sign of a given number, where zero is positive.
func Sign(v float64) float64 {
	if scalar.EqualWithinAbs(v, 0, zeroε) {
		return 1
	}
	return v / math.Abs(v)
}

// Dot performs the inner product.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Cross performs the cross product.
func Cross(a, b []float64) []float64 {
	return []float64{a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0]}
}

// Add returns a + b in a new slice.
func Add(a, b []float64) []float64 {
	c := make([]float64, len(a))
	floats.AddTo(c, a, b)
	return c
}

// Sub returns a - b in a new slice.
func Sub(a, b []float64) []float64 {
	c := make([]float64, len(a))
	floats.SubTo(c, a, b)
	return c
}

// Scale returns s*a in a new slice.
func Scale(s float64, a []float64) []float64 {
	c := make([]float64, len(a))
	floats.ScaleTo(c, s, a)
	return c
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// WrapPi wraps an angle into [-π, π).
func WrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Wrap2Pi wraps an angle into [0, 2π).
func Wrap2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
