package environment

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"
)

// Ephemeris returns the position (m) of a body with respect to the origin of the propagation frame.
type Ephemeris interface {
	Body() Celestial
	PositionAt(dt time.Time) ([]float64, error)
}

// SunFromEarth is the low precision analytic ephemeris of the Sun as seen from the Earth, in equatorial coordinates.
type SunFromEarth struct{}

// Body implements the Ephemeris interface.
func (SunFromEarth) Body() Celestial {
	return Sun
}

// PositionAt implements the Ephemeris interface.
func (SunFromEarth) PositionAt(dt time.Time) ([]float64, error) {
	jde := julian.TimeToJD(dt)
	α, δ := solar.ApparentEquatorial(jde)
	r := solar.Radius(base.J2000Century(jde)) * AU
	sα, cα := math.Sincos(α.Rad())
	sδ, cδ := math.Sincos(δ.Rad())
	return []float64{r * cδ * cα, r * cδ * sα, r * sδ}, nil
}

// FixedEphemeris is a body which does not move in the propagation frame.
type FixedEphemeris struct {
	Celestial Celestial
	Position  []float64
}

// Body implements the Ephemeris interface.
func (f FixedEphemeris) Body() Celestial {
	return f.Celestial
}

// PositionAt implements the Ephemeris interface.
func (f FixedEphemeris) PositionAt(time.Time) ([]float64, error) {
	return append([]float64(nil), f.Position...), nil
}
