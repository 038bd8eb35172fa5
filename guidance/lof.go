package guidance

import (
	"errors"

	"github.com/ChristopherRabotin/trajectory/vector"
)

// ErrDegenerateLOF is returned when the local orbital frame cannot be built (colinear position and velocity).
var ErrDegenerateLOF = errors.New("guidance: degenerate local orbital frame")

// LocalOrbitalFrame defines how a thrust direction is expressed relative to the orbit.
type LocalOrbitalFrame uint8

const (
	// VNC is velocity, normal, co-normal.
	VNC LocalOrbitalFrame = iota + 1
	// QSW is radial, along-track, cross-track (also known as RIC or RCN).
	QSW
	// TNW is tangential, in-plane normal, orbit normal.
	TNW
	// LVLH is local vertical, local horizontal (Z towards the center, Y opposite to the orbit normal).
	LVLH
)

func (l LocalOrbitalFrame) String() string {
	switch l {
	case VNC:
		return "VNC"
	case QSW:
		return "QSW"
	case TNW:
		return "TNW"
	case LVLH:
		return "LVLH"
	}
	panic("cannot stringify unknown local orbital frame")
}

// Basis returns the three unit axes of this local orbital frame, expressed in the frame of R and V.
func (l LocalOrbitalFrame) Basis(R, V []float64) ([3][]float64, error) {
	var basis [3][]float64
	w := vector.Cross(R, V)
	if vector.Norm(w) == 0 || vector.Norm(R) == 0 {
		return basis, ErrDegenerateLOF
	}
	w = vector.Unit(w)
	switch l {
	case VNC:
		basis[0] = vector.Unit(V)
		basis[1] = w
		basis[2] = vector.Cross(basis[0], w)
	case QSW:
		basis[0] = vector.Unit(R)
		basis[2] = w
		basis[1] = vector.Cross(w, basis[0])
	case TNW:
		basis[0] = vector.Unit(V)
		basis[2] = w
		basis[1] = vector.Cross(w, basis[0])
	case LVLH:
		basis[2] = vector.Scale(-1, vector.Unit(R))
		basis[1] = vector.Scale(-1, w)
		basis[0] = vector.Cross(basis[1], basis[2])
	default:
		panic("unknown local orbital frame")
	}
	return basis, nil
}

// ToInertial converts a direction expressed in this local orbital frame into the frame of R and V.
func (l LocalOrbitalFrame) ToInertial(direction, R, V []float64) ([]float64, error) {
	basis, err := l.Basis(R, V)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j] += direction[i] * basis[i][j]
		}
	}
	return out, nil
}
