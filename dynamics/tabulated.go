package dynamics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"github.com/ChristopherRabotin/trajectory/state"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tabulated replays contributions sampled at given instants. It is exact at the samples, linearly
// interpolated between them and held constant outside of the table.
type Tabulated struct {
	name                      string
	instants                  []time.Time
	contributions             *mat.Dense
	readSubsets, writeSubsets []state.CoordinateSubset
}

// NewTabulated returns a new tabulated dynamics. Each row of contributions is the contribution at the
// instant of the same index, and instants must be strictly increasing.
func NewTabulated(name string, instants []time.Time, contributions mat.Matrix, readSubsets, writeSubsets []state.CoordinateSubset) (*Tabulated, error) {
	rows, cols := contributions.Dims()
	if len(instants) == 0 || rows != len(instants) {
		return nil, fmt.Errorf("tabulated %s: %d instants for %d rows", name, len(instants), rows)
	}
	if size := subsetsSize(writeSubsets); cols != size {
		return nil, fmt.Errorf("tabulated %s: %d columns for %d write coordinates: %w", name, cols, size, ErrContributionSize)
	}
	for i := 1; i < len(instants); i++ {
		if !instants[i].After(instants[i-1]) {
			return nil, fmt.Errorf("tabulated %s: instants must be strictly increasing (%s after %s)", name, instants[i], instants[i-1])
		}
	}
	return &Tabulated{name, append([]time.Time(nil), instants...), mat.DenseCopyOf(contributions), readSubsets, writeSubsets}, nil
}

// Name implements the Dynamics interface.
func (t *Tabulated) Name() string {
	return t.name
}

// ReadSubsets implements the Dynamics interface.
func (t *Tabulated) ReadSubsets() []state.CoordinateSubset {
	return t.readSubsets
}

// WriteSubsets implements the Dynamics interface.
func (t *Tabulated) WriteSubsets() []state.CoordinateSubset {
	return t.writeSubsets
}

// ComputeContribution implements the Dynamics interface.
func (t *Tabulated) ComputeContribution(dt time.Time, _ []float64, _ *frame.Frame) ([]float64, error) {
	last := len(t.instants) - 1
	if !dt.After(t.instants[0]) {
		return mat.Row(nil, 0, t.contributions), nil
	}
	if !dt.Before(t.instants[last]) {
		return mat.Row(nil, last, t.contributions), nil
	}
	// First sample strictly after dt, so that i-1 is the sample at or before dt.
	i := sort.Search(len(t.instants), func(i int) bool { return t.instants[i].After(dt) })
	lower := mat.Row(nil, i-1, t.contributions)
	if dt.Equal(t.instants[i-1]) {
		return lower, nil
	}
	upper := mat.Row(nil, i, t.contributions)
	ratio := dt.Sub(t.instants[i-1]).Seconds() / t.instants[i].Sub(t.instants[i-1]).Seconds()
	// lower + ratio * (upper - lower)
	floats.Sub(upper, lower)
	floats.AddScaled(lower, ratio, upper)
	return lower, nil
}
