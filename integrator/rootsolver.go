package integrator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoSignChange is returned when the function does not change sign over the bracket.
	ErrNoSignChange = errors.New("integrator: function does not change sign over the bracket")
	// ErrInvalidBracket is returned for non finite or empty brackets.
	ErrInvalidBracket = errors.New("integrator: invalid bracket")
)

// RootSolver finds the roots of scalar functions with a bisection and secant hybrid.
// Non convergence within the maximum number of iterations is reported in the solution, not as an error.
type RootSolver struct {
	MaximumIterationCount int
	Digits                int // Relative precision of 2^-Digits
}

// RootSolution is the result of a root search.
type RootSolution struct {
	Root           float64
	Lower, Upper   float64 // Final bracket, on the sides of the lower and upper arguments
	IterationCount int
	HasConverged   bool
}

// DefaultRootSolver returns a root solver of 100 iterations and 50 binary digits.
func DefaultRootSolver() RootSolver {
	return RootSolver{100, 50}
}

// NewRootSolver returns a new root solver.
func NewRootSolver(maximumIterationCount, digits int) (RootSolver, error) {
	if maximumIterationCount <= 0 || digits <= 0 {
		return RootSolver{}, fmt.Errorf("root solver: iterations (%d) and digits (%d) must be positive", maximumIterationCount, digits)
	}
	return RootSolver{maximumIterationCount, digits}, nil
}

func (r RootSolver) tolerance(lower, upper float64) float64 {
	return math.Ldexp(math.Max(1, math.Max(math.Abs(lower), math.Abs(upper))), -r.Digits)
}

// Bisection finds a root of f within [lower, upper], where f must change sign.
func (r RootSolver) Bisection(f func(float64) (float64, error), lower, upper float64) (RootSolution, error) {
	return r.bisection(f, lower, upper, 0)
}

func (r RootSolver) bisection(f func(float64) (float64, error), lower, upper float64, iterations int) (RootSolution, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(lower, 0) || math.IsInf(upper, 0) {
		return RootSolution{}, fmt.Errorf("[%g, %g]: %w", lower, upper, ErrInvalidBracket)
	}
	fLower, err := f(lower)
	if err != nil {
		return RootSolution{}, err
	}
	if fLower == 0 {
		return RootSolution{lower, lower, lower, iterations, true}, nil
	}
	fUpper, err := f(upper)
	if err != nil {
		return RootSolution{}, err
	}
	if fUpper == 0 {
		return RootSolution{upper, upper, upper, iterations, true}, nil
	}
	if math.Signbit(fLower) == math.Signbit(fUpper) {
		return RootSolution{}, fmt.Errorf("f(%g)=%g and f(%g)=%g: %w", lower, fLower, upper, fUpper, ErrNoSignChange)
	}
	a, b, fa, fb := lower, upper, fLower, fUpper
	previousWidth := 2 * math.Abs(b-a)
	for ; iterations < r.MaximumIterationCount; iterations++ {
		width := math.Abs(b - a)
		if width <= r.tolerance(a, b) {
			break
		}
		x := a + (b-a)/2
		// Secant only while it keeps halving the bracket.
		if width <= previousWidth/2 {
			if s := b - fb*(b-a)/(fb-fa); s > math.Min(a, b) && s < math.Max(a, b) {
				x = s
			}
		}
		previousWidth = width
		if x == a || x == b {
			// No representable point left in the bracket.
			break
		}
		fx, err := f(x)
		if err != nil {
			return RootSolution{}, err
		}
		if fx == 0 {
			return RootSolution{x, x, x, iterations + 1, true}, nil
		}
		if math.Signbit(fx) == math.Signbit(fa) {
			a, fa = x, fx
		} else {
			b, fb = x, fx
		}
	}
	converged := math.Abs(b-a) <= r.tolerance(a, b) || math.Nextafter(a, b) == b
	root := a
	if math.Abs(fb) < math.Abs(fa) {
		root = b
	}
	return RootSolution{root, a, b, iterations, converged}, nil
}

// Solve finds a root of f near the initial guess, by expanding a bracket around it until f changes sign.
func (r RootSolver) Solve(f func(float64) (float64, error), initialGuess float64) (RootSolution, error) {
	if math.IsNaN(initialGuess) || math.IsInf(initialGuess, 0) {
		return RootSolution{}, fmt.Errorf("initial guess %g: %w", initialGuess, ErrInvalidBracket)
	}
	fGuess, err := f(initialGuess)
	if err != nil {
		return RootSolution{}, err
	}
	if fGuess == 0 {
		return RootSolution{initialGuess, initialGuess, initialGuess, 0, true}, nil
	}
	scale := math.Max(1, math.Abs(initialGuess))
	for k := 0; k < r.MaximumIterationCount; k++ {
		d := math.Ldexp(scale, k-4)
		for _, candidate := range []float64{initialGuess + d, initialGuess - d} {
			fc, err := f(candidate)
			if err != nil {
				return RootSolution{}, err
			}
			if fc == 0 {
				return RootSolution{candidate, candidate, candidate, k + 1, true}, nil
			}
			if math.Signbit(fc) != math.Signbit(fGuess) {
				return r.bisection(f, math.Min(initialGuess, candidate), math.Max(initialGuess, candidate), k+1)
			}
		}
	}
	return RootSolution{}, fmt.Errorf("no bracket found around %g: %w", initialGuess, ErrNoSignChange)
}
