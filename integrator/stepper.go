package integrator

import (
	"fmt"
	"math"
)

// StepperType selects the Runge-Kutta scheme.
type StepperType uint8

const (
	// RungeKutta4 is the classical fixed step fourth order scheme.
	RungeKutta4 StepperType = iota + 1
	// RungeKuttaCashKarp54 is the adaptive Cash-Karp 5(4) scheme.
	RungeKuttaCashKarp54
	// RungeKuttaFehlberg78 is the adaptive Fehlberg 7(8) scheme.
	RungeKuttaFehlberg78
	// RungeKuttaDopri5 is the adaptive Dormand-Prince 5(4) scheme.
	RungeKuttaDopri5
)

func (s StepperType) String() string {
	switch s {
	case RungeKutta4:
		return "RungeKutta4"
	case RungeKuttaCashKarp54:
		return "RungeKuttaCashKarp54"
	case RungeKuttaFehlberg78:
		return "RungeKuttaFehlberg78"
	case RungeKuttaDopri5:
		return "RungeKuttaDopri5"
	}
	panic("cannot stringify unknown stepper")
}

// ParseStepperType returns the stepper type of this name.
func ParseStepperType(name string) (StepperType, error) {
	for _, s := range []StepperType{RungeKutta4, RungeKuttaCashKarp54, RungeKuttaFehlberg78, RungeKuttaDopri5} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stepper %q", name)
}

// tableau is an explicit Runge-Kutta Butcher tableau, with the weights of the error estimate if embedded.
type tableau struct {
	c []float64
	a [][]float64
	b []float64 // propagated solution
	e []float64 // b - b̂, nil for fixed step schemes
	q float64   // exponent of the step size control (lowest order + 1)
}

func (t tableau) adaptive() bool {
	return t.e != nil
}

var rk4Tableau = tableau{
	c: []float64{0, 1 / 2., 1 / 2., 1},
	a: [][]float64{
		{},
		{1 / 2.},
		{0, 1 / 2.},
		{0, 0, 1},
	},
	b: []float64{1 / 6., 1 / 3., 1 / 3., 1 / 6.},
	q: 4,
}

var cashKarpTableau = func() tableau {
	b := []float64{37 / 378., 0, 250 / 621., 125 / 594., 0, 512 / 1771.}
	bHat := []float64{2825 / 27648., 0, 18575 / 48384., 13525 / 55296., 277 / 14336., 1 / 4.}
	return tableau{
		c: []float64{0, 1 / 5., 3 / 10., 3 / 5., 1, 7 / 8.},
		a: [][]float64{
			{},
			{1 / 5.},
			{3 / 40., 9 / 40.},
			{3 / 10., -9 / 10., 6 / 5.},
			{-11 / 54., 5 / 2., -70 / 27., 35 / 27.},
			{1631 / 55296., 175 / 512., 575 / 13824., 44275 / 110592., 253 / 4096.},
		},
		b: b,
		e: difference(b, bHat),
		q: 5,
	}
}()

var dopri5Tableau = func() tableau {
	b := []float64{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84., 0}
	bHat := []float64{5179 / 57600., 0, 7571 / 16695., 393 / 640., -92097 / 339200., 187 / 2100., 1 / 40.}
	return tableau{
		c: []float64{0, 1 / 5., 3 / 10., 4 / 5., 8 / 9., 1, 1},
		a: [][]float64{
			{},
			{1 / 5.},
			{3 / 40., 9 / 40.},
			{44 / 45., -56 / 15., 32 / 9.},
			{19372 / 6561., -25360 / 2187., 64448 / 6561., -212 / 729.},
			{9017 / 3168., -355 / 33., 46732 / 5247., 49 / 176., -5103 / 18656.},
			{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84.},
		},
		b: b,
		e: difference(b, bHat),
		q: 5,
	}
}()

var fehlberg78Tableau = func() tableau {
	b := []float64{41 / 840., 0, 0, 0, 0, 34 / 105., 9 / 35., 9 / 35., 9 / 280., 9 / 280., 41 / 840., 0, 0}
	bHat := []float64{0, 0, 0, 0, 0, 34 / 105., 9 / 35., 9 / 35., 9 / 280., 9 / 280., 0, 41 / 840., 41 / 840.}
	return tableau{
		c: []float64{0, 2 / 27., 1 / 9., 1 / 6., 5 / 12., 1 / 2., 5 / 6., 1 / 6., 2 / 3., 1 / 3., 1, 0, 1},
		a: [][]float64{
			{},
			{2 / 27.},
			{1 / 36., 1 / 12.},
			{1 / 24., 0, 1 / 8.},
			{5 / 12., 0, -25 / 16., 25 / 16.},
			{1 / 20., 0, 0, 1 / 4., 1 / 5.},
			{-25 / 108., 0, 0, 125 / 108., -65 / 27., 125 / 54.},
			{31 / 300., 0, 0, 0, 61 / 225., -2 / 9., 13 / 900.},
			{2, 0, 0, -53 / 6., 704 / 45., -107 / 9., 67 / 90., 3},
			{-91 / 108., 0, 0, 23 / 108., -976 / 135., 311 / 54., -19 / 60., 17 / 6., -1 / 12.},
			{2383 / 4100., 0, 0, -341 / 164., 4496 / 1025., -301 / 82., 2133 / 4100., 45 / 82., 45 / 164., 18 / 41.},
			{3 / 205., 0, 0, 0, 0, -6 / 41., -3 / 205., -3 / 41., 3 / 41., 6 / 41., 0},
			{-1777 / 4100., 0, 0, -341 / 164., 4496 / 1025., -289 / 82., 2193 / 4100., 51 / 82., 33 / 164., 12 / 41., 0, 1},
		},
		b: b,
		e: difference(b, bHat),
		q: 8,
	}
}()

func difference(a, b []float64) []float64 {
	d := make([]float64, len(a))
	for i := range a {
		d[i] = a[i] - b[i]
	}
	return d
}

func (s StepperType) tableau() tableau {
	switch s {
	case RungeKutta4:
		return rk4Tableau
	case RungeKuttaCashKarp54:
		return cashKarpTableau
	case RungeKuttaFehlberg78:
		return fehlberg78Tableau
	case RungeKuttaDopri5:
		return dopri5Tableau
	}
	panic("unknown stepper")
}

// stepper performs single Runge-Kutta steps, reusing its stage buffers. It is not safe for concurrent use.
type stepper struct {
	tableau
	k   [][]float64
	tmp []float64
}

func newStepper(s StepperType, size int) *stepper {
	t := s.tableau()
	k := make([][]float64, len(t.c))
	for i := range k {
		k[i] = make([]float64, size)
	}
	return &stepper{t, k, make([]float64, size)}
}

// step advances x from t by h into xNew and returns the error estimate of each coordinate (nil for fixed step schemes).
func (st *stepper) step(sys SystemOfEquations, t float64, x []float64, h float64, xNew []float64) ([]float64, error) {
	for stage := range st.c {
		copy(st.tmp, x)
		for j, aij := range st.a[stage] {
			if aij == 0 {
				continue
			}
			for i := range st.tmp {
				st.tmp[i] += h * aij * st.k[j][i]
			}
		}
		if err := sys(t+st.c[stage]*h, st.tmp, st.k[stage]); err != nil {
			return nil, err
		}
	}
	copy(xNew, x)
	for stage, bj := range st.b {
		if bj == 0 {
			continue
		}
		for i := range xNew {
			xNew[i] += h * bj * st.k[stage][i]
		}
	}
	if !st.adaptive() {
		return nil, nil
	}
	errs := make([]float64, len(x))
	for stage, ej := range st.e {
		if ej == 0 {
			continue
		}
		for i := range errs {
			errs[i] += h * ej * st.k[stage][i]
		}
	}
	return errs, nil
}

// errorNorm returns the maximum scaled error, which is below one for an acceptable step.
func errorNorm(errs, x, xNew []float64, relTol, absTol float64) float64 {
	norm := 0.0
	for i, e := range errs {
		scale := absTol + relTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		norm = math.Max(norm, math.Abs(e)/scale)
	}
	return norm
}
