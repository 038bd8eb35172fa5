package environment

import (
	"math"

	"github.com/ChristopherRabotin/trajectory/vector"
)

// GravityModel computes the gravitational acceleration of a celestial body.
type GravityModel struct {
	Body Celestial
	Jn   uint8 // Highest zonal term accounted for (0 or 1 for point mass only, up to 3)
}

// NewGravityModel returns a gravity model of this body including zonal terms up to jn.
func NewGravityModel(body Celestial, jn uint8) (GravityModel, error) {
	if err := body.Validate(); err != nil {
		return GravityModel{}, err
	}
	return GravityModel{body, jn}, nil
}

// Acceleration returns the gravitational acceleration at position R (m) in a body centered frame.
func (g GravityModel) Acceleration(R []float64) []float64 {
	r := vector.Norm(R)
	acc := vector.Scale(-g.Body.GM/(r*r*r), R)
	if g.Jn >= 2 {
		acc = vector.Add(acc, g.zonal(R))
	}
	return acc
}

// zonal returns the J2 (and J3) accelerations, computed from the partials of the zonal potential.
func (g GravityModel) zonal(R []float64) []float64 {
	pert := make([]float64, 3)
	x, y, z := R[0], R[1], R[2]
	z2 := z * z
	z3 := z2 * z
	r2 := x*x + y*y + z2
	r252 := math.Pow(r2, 5/2.)
	r272 := math.Pow(r2, 7/2.)
	accJ2 := (3 / 2.) * g.Body.J(2) * math.Pow(g.Body.Radius, 2) * g.Body.GM
	pert[0] += accJ2 * (5*x*z2/r272 - x/r252)
	pert[1] += accJ2 * (5*y*z2/r272 - y/r252)
	pert[2] += accJ2 * (5*z3/r272 - 3*z/r252)
	if g.Jn >= 3 {
		r292 := math.Pow(r2, 9/2.)
		z4 := z2 * z2
		accJ3 := g.Body.J(3) * math.Pow(g.Body.Radius, 3) * g.Body.GM
		pert[0] += (5 / 2.) * accJ3 * (7*x*z3/r292 - 3*x*z/r272)
		pert[1] += (5 / 2.) * accJ3 * (7*y*z3/r292 - 3*y*z/r272)
		pert[2] += 0.5 * accJ3 * (35*z4/r292 - 30*z2/r272 + 3/r252)
	}
	return pert
}
