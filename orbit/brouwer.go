package orbit

import (
	"errors"
	"math"

	"github.com/ChristopherRabotin/trajectory/vector"
)

// ErrCriticalInclination is returned when the Brouwer-Lyddane theory is singular.
var ErrCriticalInclination = errors.New("orbit: Brouwer-Lyddane theory is singular at the critical inclination")

// BrouwerLyddaneMeanLong returns the Brouwer-Lyddane mean elements (short periodic J2 terms removed,
// long periodic terms kept) of the provided osculating elements.
// J2 is the unnormalized zonal coefficient and rEq the equatorial radius in meters.
// Formulation from Schaub and Junkins, Analytical Mechanics of Space Systems, appendix F.
func BrouwerLyddaneMeanLong(osc COE, J2, rEq float64) (COE, error) {
	return brouwerLyddane(osc, -J2/2*math.Pow(rEq/osc.A, 2))
}

// BrouwerLyddaneOsculating maps Brouwer-Lyddane mean long elements back to osculating elements.
func BrouwerLyddaneOsculating(mean COE, J2, rEq float64) (COE, error) {
	return brouwerLyddane(mean, J2/2*math.Pow(rEq/mean.A, 2))
}

func brouwerLyddane(c COE, γ2 float64) (COE, error) {
	if c.E >= 1 || c.A <= 0 {
		return COE{}, ErrNotElliptical
	}
	a, e, i, Ω, ω, f := c.A, c.E, c.I, c.RAAN, c.AoP, c.TrueAnomaly
	cosi := math.Cos(i)
	c2 := cosi * cosi
	c4 := c2 * c2
	c6 := c4 * c2
	den := 1 - 5*c2
	if math.Abs(den) < 1e-9 {
		return COE{}, ErrCriticalInclination
	}
	η := math.Sqrt(1 - e*e)
	η2 := η * η
	η3 := η2 * η
	η6 := η3 * η3
	γ2p := γ2 / (η2 * η2)

	E := EccentricAnomalyFromTrue(f, e)
	M := vector.Wrap2Pi(E - e*math.Sin(E))
	sinf, cosf := math.Sincos(f)
	ar := (1 + e*cosf) / η2 // a/r
	ar3 := ar * ar * ar
	fMinusM := vector.WrapPi(f - M)
	cos2ω2f := math.Cos(2*ω + 2*f)
	cos2ωf := math.Cos(2*ω + f)
	cos2ω3f := math.Cos(2*ω + 3*f)
	sin2ω2f := math.Sin(2*ω + 2*f)
	sin2ωf := math.Sin(2*ω + f)
	sin2ω3f := math.Sin(2*ω + 3*f)

	aP := a + a*γ2*((3*c2-1)*(ar3-1/η3)+3*(1-c2)*ar3*cos2ω2f)

	δe1 := γ2p / 8 * e * η2 * (1 - 11*c2 - 40*c4/den) * math.Cos(2*ω)
	δe := δe1 + η2/2*(γ2*((3*c2-1)/η6*(e*η+e/(1+η)+3*cosf+3*e*cosf*cosf+e*e*cosf*cosf*cosf)+
		3*(1-c2)/η6*(e+3*cosf+3*e*cosf*cosf+e*e*cosf*cosf*cosf)*cos2ω2f)-
		γ2p*(1-c2)*(3*cos2ωf+cos2ω3f))

	var δi float64
	if sini := math.Sin(i); math.Abs(sini) > angleε {
		δi = -e * δe1 / (η2 * math.Tan(i))
	}
	δi += γ2p / 2 * cosi * math.Sqrt(1-c2) * (3*cos2ω2f + 3*e*cos2ωf + e*cos2ω3f)

	shortTerms := 6*(fMinusM+e*sinf) - 3*sin2ω2f - 3*e*sin2ωf - e*sin2ω3f
	nodal := γ2p/8*e*e*cosi*(11+80*c2/den+200*c4/(den*den)) + γ2p/2*cosi*shortTerms

	sumMωΩ := M + ω + Ω + γ2p/8*η3*(1-11*c2-40*c4/den) -
		γ2p/16*(2+e*e-11*(2+3*e*e)*c2-40*(2+5*e*e)*c4/den-400*e*e*c6/(den*den)) +
		γ2p/4*(-6*(1-5*c2)*(fMinusM+e*sinf)+(3-5*c2)*(3*sin2ω2f+3*e*sin2ωf+e*sin2ω3f)) -
		nodal

	arη2 := ar * ar * η2
	eδM := γ2p/8*e*η3*(1-11*c2-40*c4/den) -
		γ2p/4*η3*(2*(3*c2-1)*(arη2+ar+1)*sinf+
			3*(1-c2)*((-arη2-ar+1)*sin2ωf+(arη2+ar+1/3.)*sin2ω3f))

	δΩ := -nodal

	sinM, cosM := math.Sincos(M)
	d1 := (e+δe)*sinM + eδM*cosM
	d2 := (e+δe)*cosM - eδM*sinM
	MP := math.Atan2(d1, d2)
	eP := math.Hypot(d1, d2)

	sinΩ, cosΩ := math.Sincos(Ω)
	si2, ci2 := math.Sincos(i / 2)
	d3 := (si2+ci2*δi/2)*sinΩ + si2*δΩ*cosΩ
	d4 := (si2+ci2*δi/2)*cosΩ - si2*δΩ*sinΩ
	ΩP := math.Atan2(d3, d4)
	iP := 2 * math.Asin(clamp(math.Hypot(d3, d4)))
	ωP := sumMωΩ - MP - ΩP

	if eP >= 1 {
		return COE{}, ErrNotElliptical
	}
	νP, err := TrueAnomalyFromMean(MP, eP)
	if err != nil {
		return COE{}, err
	}
	return COE{aP, eP, vector.Wrap2Pi(iP), vector.Wrap2Pi(ΩP), vector.Wrap2Pi(ωP), νP}, nil
}
