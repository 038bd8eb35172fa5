package state

import (
	"fmt"
)

// CoordinateSubset is a named, fixed size slice of a state's coordinate vector.
// Two subsets are the same subset if they have the same name and size.
type CoordinateSubset struct {
	name string
	size int
}

// NewCoordinateSubset returns a new coordinate subset.
func NewCoordinateSubset(name string, size int) (CoordinateSubset, error) {
	if name == "" {
		return CoordinateSubset{}, fmt.Errorf("coordinate subset: %w", ErrInvalidSubset)
	}
	if size <= 0 {
		return CoordinateSubset{}, fmt.Errorf("coordinate subset %s of size %d: %w", name, size, ErrInvalidSubset)
	}
	return CoordinateSubset{name, size}, nil
}

// Name returns the name of the subset.
func (s CoordinateSubset) Name() string {
	return s.name
}

// Size returns the number of coordinates of the subset.
func (s CoordinateSubset) Size() int {
	return s.size
}

func (s CoordinateSubset) String() string {
	return fmt.Sprintf("%s[%d]", s.name, s.size)
}

// Built-in subsets.
var (
	CartesianPosition = CoordinateSubset{"CARTESIAN_POSITION", 3}
	CartesianVelocity = CoordinateSubset{"CARTESIAN_VELOCITY", 3}
	Mass              = CoordinateSubset{"MASS", 1}
	SurfaceArea       = CoordinateSubset{"SURFACE_AREA", 1}
	DragCoefficient   = CoordinateSubset{"DRAG_COEFFICIENT", 1}
)

// CoordinateBroker maps coordinate subsets to contiguous offset ranges, in insertion order.
// A broker is append-only; callers sharing a broker must serialize AddSubset.
// States hold a frozen copy of their broker, on which AddSubset panics.
type CoordinateBroker struct {
	subsets []CoordinateSubset
	offsets map[CoordinateSubset]int
	size    int
	frozen  bool
}

// NewCoordinateBroker returns a broker with the provided subsets. Duplicates are ignored.
func NewCoordinateBroker(subsets ...CoordinateSubset) *CoordinateBroker {
	b := &CoordinateBroker{offsets: make(map[CoordinateSubset]int)}
	for _, s := range subsets {
		b.AddSubset(s)
	}
	return b
}

// AddSubset appends a subset and returns the new number of coordinates.
// Adding a subset which is already present does nothing.
func (b *CoordinateBroker) AddSubset(s CoordinateSubset) int {
	if _, exists := b.offsets[s]; exists {
		return b.size
	}
	if b.frozen {
		panic("cannot add a subset to a frozen coordinate broker")
	}
	b.offsets[s] = b.size
	b.subsets = append(b.subsets, s)
	b.size += s.size
	return b.size
}

// freeze returns a read-only copy of this broker, or the broker itself if it is already frozen.
func (b *CoordinateBroker) freeze() *CoordinateBroker {
	if b.frozen {
		return b
	}
	f := NewCoordinateBroker(b.subsets...)
	f.frozen = true
	return f
}

// IsFrozen returns whether this broker is read-only.
func (b *CoordinateBroker) IsFrozen() bool {
	return b.frozen
}

// NumberOfCoordinates returns the total size of all subsets.
func (b *CoordinateBroker) NumberOfCoordinates() int {
	return b.size
}

// NumberOfSubsets returns the number of subsets.
func (b *CoordinateBroker) NumberOfSubsets() int {
	return len(b.subsets)
}

// Subsets returns a copy of the ordered subsets.
func (b *CoordinateBroker) Subsets() []CoordinateSubset {
	return append([]CoordinateSubset(nil), b.subsets...)
}

// HasSubset returns whether the subset is known to this broker.
func (b *CoordinateBroker) HasSubset(s CoordinateSubset) bool {
	_, ok := b.offsets[s]
	return ok
}

// Offset returns the offset of the subset in the coordinate vector.
func (b *CoordinateBroker) Offset(s CoordinateSubset) (int, error) {
	offset, ok := b.offsets[s]
	if !ok {
		return 0, fmt.Errorf("%s: %w", s, ErrSubsetNotFound)
	}
	return offset, nil
}

// ExtractCoordinate returns a copy of the subset's coordinates out of the full coordinate vector.
func (b *CoordinateBroker) ExtractCoordinate(coordinates []float64, s CoordinateSubset) ([]float64, error) {
	if len(coordinates) != b.size {
		return nil, fmt.Errorf("extracting %s from %d coordinates (expected %d): %w", s, len(coordinates), b.size, ErrSizeMismatch)
	}
	offset, err := b.Offset(s)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), coordinates[offset:offset+s.size]...), nil
}

// ExtractCoordinates returns the concatenation of the subsets' coordinates, in the order requested.
func (b *CoordinateBroker) ExtractCoordinates(coordinates []float64, subsets []CoordinateSubset) ([]float64, error) {
	rtn := make([]float64, 0, b.size)
	for _, s := range subsets {
		c, err := b.ExtractCoordinate(coordinates, s)
		if err != nil {
			return nil, err
		}
		rtn = append(rtn, c...)
	}
	return rtn, nil
}

// Equal returns whether both brokers hold the same subsets in the same order.
func (b *CoordinateBroker) Equal(o *CoordinateBroker) bool {
	if b == nil || o == nil {
		return false
	}
	if len(b.subsets) != len(o.subsets) {
		return false
	}
	for i, s := range b.subsets {
		if o.subsets[i] != s {
			return false
		}
	}
	return true
}
