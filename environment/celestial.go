// Package environment provides the models of the space environment a spacecraft evolves in:
// celestial bodies and their gravity fields, an atmosphere and analytic ephemerides.
package environment

import (
	"fmt"
	"math"
)

const (
	// AU is one astronomical unit in meters.
	AU = 1.495978707e11
)

// Celestial defines a celestial body. All values are in SI units.
type Celestial struct {
	Name         string
	Radius       float64 // Equatorial radius (m)
	GM           float64 // Gravitational parameter (m^3/s^2)
	J2           float64
	J3           float64
	RotationRate float64 // Rotation rate about the body Z axis (rad/s)
}

// J returns the zonal coefficient J_n for the provided n.
// Currently only J2 and J3 are supported.
func (c Celestial) J(n uint8) float64 {
	switch n {
	case 2:
		return c.J2
	case 3:
		return c.J3
	default:
		return 0.0
	}
}

// String implements the Stringer interface.
func (c Celestial) String() string {
	return c.Name + " body"
}

// Equal returns whether the provided celestial object is the same.
func (c Celestial) Equal(b Celestial) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.GM == b.GM && c.J2 == b.J2 && c.J3 == b.J3
}

// Validate returns an error if this body cannot be used to compute a gravity field.
func (c Celestial) Validate() error {
	if c.GM <= 0 || math.IsNaN(c.GM) {
		return fmt.Errorf("%s: invalid gravitational parameter %f", c, c.GM)
	}
	if (c.J2 != 0 || c.J3 != 0) && c.Radius <= 0 {
		return fmt.Errorf("%s: zonal terms need a positive radius", c)
	}
	return nil
}

/* Definitions */

// Sun is our closest star.
var Sun = Celestial{"Sun", 695700e3, 1.32712440017987e20, 0, 0, 0}

// Earth is home.
var Earth = Celestial{"Earth", 6378.1363e3, 3.98600433e14, 1082.6269e-6, -2.5324e-6, 7.2921158553e-5}

// Moon is Earth's natural satellite.
var Moon = Celestial{"Moon", 1738.1e3, 4.9028e12, 202.7e-6, 0, 2.6617e-6}

// Mars is the vacation place.
var Mars = Celestial{"Mars", 3396.19e3, 4.28283100e13, 1964e-6, 36e-6, 7.088218e-5}
