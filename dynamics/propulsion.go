package dynamics

import (
	"fmt"
	"math"
)

// StandardGravity is the standard acceleration of gravity used in the rocket equation (m/s^2).
const StandardGravity = 9.80665

// PropulsionSystem is a thruster of constant thrust (N) and specific impulse (s).
type PropulsionSystem struct {
	Name            string
	Thrust          float64
	SpecificImpulse float64
}

/* Available thrusters */

// PPS1350 is the Snecma thruster used on SMART-1.
var PPS1350 = PropulsionSystem{"PPS1350", 89e-3, 1650}

// HERMeS is based on the NASA & Rocketdyne 12.5kW demo.
var HERMeS = PropulsionSystem{"HERMeS", 0.680, 2960}

// NewGenericEP returns a generic electric propulsion system.
func NewGenericEP(thrust, isp float64) (PropulsionSystem, error) {
	p := PropulsionSystem{"GenericEP", thrust, isp}
	return p, p.Validate()
}

// Validate returns an error if this system cannot thrust.
func (p PropulsionSystem) Validate() error {
	if p.Thrust <= 0 || p.SpecificImpulse <= 0 || math.IsNaN(p.Thrust) || math.IsNaN(p.SpecificImpulse) {
		return fmt.Errorf("propulsion system %s: thrust (%f N) and isp (%f s) must be positive", p.Name, p.Thrust, p.SpecificImpulse)
	}
	return nil
}

// MassFlowRate returns the propellant consumption in kg/s.
func (p PropulsionSystem) MassFlowRate() float64 {
	return p.Thrust / (p.SpecificImpulse * StandardGravity)
}

// Acceleration returns the thrust acceleration magnitude for this mass.
func (p PropulsionSystem) Acceleration(mass float64) float64 {
	return p.Thrust / mass
}

func (p PropulsionSystem) String() string {
	return fmt.Sprintf("%s (%.3f N, %.0f s)", p.Name, p.Thrust, p.SpecificImpulse)
}

// SatelliteSystem describes the spacecraft the thruster is mounted on.
type SatelliteSystem struct {
	DryMass    float64
	Propulsion PropulsionSystem
}

// NewSatelliteSystem returns a new satellite system.
func NewSatelliteSystem(dryMass float64, propulsion PropulsionSystem) (SatelliteSystem, error) {
	if dryMass <= 0 {
		return SatelliteSystem{}, fmt.Errorf("satellite system: dry mass must be positive, got %f", dryMass)
	}
	if err := propulsion.Validate(); err != nil {
		return SatelliteSystem{}, err
	}
	return SatelliteSystem{dryMass, propulsion}, nil
}
