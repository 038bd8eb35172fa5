package state

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ChristopherRabotin/trajectory/frame"
	"gonum.org/v1/gonum/floats"
)

var epoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func fullState(t *testing.T, f *frame.Frame) State {
	s, err := NewFromSubsets(epoch, []float64{7000e3, 0, 0, 0, 7.5e3, 0, 100}, f, CartesianPosition, CartesianVelocity, Mass)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBroker(t *testing.T) {
	b := NewCoordinateBroker(CartesianPosition, CartesianVelocity)
	if b.NumberOfCoordinates() != 6 || b.NumberOfSubsets() != 2 {
		t.Fatalf("invalid broker sizes %d %d", b.NumberOfCoordinates(), b.NumberOfSubsets())
	}
	if size := b.AddSubset(Mass); size != 7 {
		t.Fatalf("AddSubset returned %d", size)
	}
	if size := b.AddSubset(CartesianPosition); size != 7 {
		t.Fatalf("adding an existing subset should be a no-op, got %d", size)
	}
	if offset, err := b.Offset(Mass); err != nil || offset != 6 {
		t.Fatalf("invalid mass offset %d (%v)", offset, err)
	}
	if offset, err := b.Offset(CartesianVelocity); err != nil || offset != 3 {
		t.Fatalf("invalid velocity offset %d (%v)", offset, err)
	}
	if _, err := b.Offset(SurfaceArea); !errors.Is(err, ErrSubsetNotFound) {
		t.Fatalf("expected ErrSubsetNotFound, got %v", err)
	}
	coords := []float64{1, 2, 3, 4, 5, 6, 7}
	v, err := b.ExtractCoordinate(coords, CartesianVelocity)
	if err != nil || !floats.Equal(v, []float64{4, 5, 6}) {
		t.Fatalf("invalid extraction %v (%v)", v, err)
	}
	mv, err := b.ExtractCoordinates(coords, []CoordinateSubset{Mass, CartesianPosition})
	if err != nil || !floats.Equal(mv, []float64{7, 1, 2, 3}) {
		t.Fatalf("invalid extraction %v (%v)", mv, err)
	}
	if _, err := b.ExtractCoordinate(coords[:3], Mass); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, err := NewCoordinateSubset("x", 0); !errors.Is(err, ErrInvalidSubset) {
		t.Fatalf("expected ErrInvalidSubset, got %v", err)
	}
}

func TestStateBrokerIsolation(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	b := NewCoordinateBroker(CartesianPosition, CartesianVelocity)
	s, err := New(epoch, []float64{7000e3, 0, 0, 0, 7.5e3, 0}, gcrf, b)
	if err != nil {
		t.Fatal(err)
	}
	if b.IsFrozen() || !s.Broker().IsFrozen() {
		t.Fatal("the state should hold a frozen copy of the broker")
	}
	if size := b.AddSubset(Mass); size != 7 {
		t.Fatalf("AddSubset returned %d", size)
	}
	if s.Broker().NumberOfCoordinates() != s.Size() || s.HasSubset(Mass) {
		t.Fatalf("state changed with its broker: %s", s)
	}
	if v, err := s.Velocity(); err != nil || !floats.Equal(v, []float64{0, 7.5e3, 0}) {
		t.Fatalf("invalid velocity %v (%v)", v, err)
	}
	later, err := New(epoch.Add(time.Second), s.Coordinates(), gcrf, s.Broker())
	if err != nil {
		t.Fatal(err)
	}
	if later.Broker() != s.Broker() {
		t.Fatal("a frozen broker should be shared, not copied")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("adding a subset to a frozen broker should panic")
		}
	}()
	s.Broker().AddSubset(SurfaceArea)
}

func TestStateConstruction(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	if _, err := NewFromSubsets(epoch, []float64{1, 2}, gcrf, CartesianPosition); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if _, err := NewFromSubsets(epoch, []float64{1, 2, 3}, nil, CartesianPosition); !errors.Is(err, frame.ErrUndefinedFrame) {
		t.Fatalf("expected ErrUndefinedFrame, got %v", err)
	}
	coords := []float64{7000e3, 0, 0, 0, 7.5e3, 0, 100}
	s, err := NewFromSubsets(epoch, coords, gcrf, CartesianPosition, CartesianVelocity, Mass)
	if err != nil {
		t.Fatal(err)
	}
	coords[0] = 0
	if c := s.Coordinates(); c[0] != 7000e3 {
		t.Fatal("state shares its coordinates with the caller")
	}
	c := s.Coordinates()
	c[1] = 42
	if s.Coordinates()[1] != 0 {
		t.Fatal("state coordinates are mutable")
	}
	m, err := s.Extract(Mass)
	if err != nil || m[0] != 100 {
		t.Fatalf("invalid mass %v (%v)", m, err)
	}
	if !s.HasSubset(CartesianPosition) || s.HasSubset(SurfaceArea) {
		t.Fatal("invalid HasSubset")
	}
	if !strings.Contains(s.String(), "mass=[100]") {
		t.Fatalf("unexpected string %s", s)
	}
}

func TestStateEquality(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	s0 := fullState(t, gcrf)
	s1 := fullState(t, gcrf)
	if !s0.Equal(s1) {
		t.Fatal("identical states should be equal")
	}
	later, _ := New(epoch.Add(time.Second), s0.Coordinates(), gcrf, s0.Broker())
	if s0.Equal(later) {
		t.Fatal("states at different instants should differ")
	}
	other, _ := New(epoch, s0.Coordinates(), frame.NewInertial("EME2000"), s0.Broker())
	if s0.Equal(other) {
		t.Fatal("states in different frames should differ")
	}
	if Undefined().Equal(Undefined()) {
		t.Fatal("undefined == undefined must be false")
	}
	if s0.Equal(Undefined()) || Undefined().Equal(s0) {
		t.Fatal("undefined is not equal to anything")
	}
	if Undefined().IsDefined() {
		t.Fatal("undefined state is defined")
	}
	if _, err := Undefined().Extract(Mass); !errors.Is(err, ErrUndefinedState) {
		t.Fatalf("expected ErrUndefinedState, got %v", err)
	}
	if _, err := Undefined().InFrame(gcrf); !errors.Is(err, ErrUndefinedState) {
		t.Fatalf("expected ErrUndefinedState, got %v", err)
	}
}

func TestStateSub(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	s0 := fullState(t, gcrf)
	s1, _ := NewFromSubsets(epoch, []float64{7001e3, 1, 2, 3, 7.5e3, 5, 90}, gcrf, CartesianPosition, CartesianVelocity, Mass)
	rel, err := s1.Sub(s0)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(rel.Coordinates(), []float64{1e3, 1, 2, 3, 0, 5, -10}) {
		t.Fatalf("invalid relative state %v", rel.Coordinates())
	}
	later, _ := New(epoch.Add(time.Second), s0.Coordinates(), gcrf, s0.Broker())
	if _, err := later.Sub(s0); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
	pos, _ := NewFromSubsets(epoch, []float64{1, 2, 3}, gcrf, CartesianPosition)
	if _, err := pos.Sub(s0); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected ErrIncompatible, got %v", err)
	}
	if _, err := s0.Sub(Undefined()); !errors.Is(err, ErrUndefinedState) {
		t.Fatalf("expected ErrUndefinedState, got %v", err)
	}
}

func TestStateInFrame(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	itrf, err := frame.NewRotating("ITRF", gcrf, frame.EarthRotationRate, epoch, 0)
	if err != nil {
		t.Fatal(err)
	}
	s := fullState(t, gcrf)
	same, err := s.InFrame(gcrf)
	if err != nil || !same.Equal(s) {
		t.Fatalf("transform into the same frame should be a no-op (%v)", err)
	}
	rotating, err := s.InFrame(itrf)
	if err != nil {
		t.Fatal(err)
	}
	if rotating.Frame() != itrf {
		t.Fatal("invalid frame")
	}
	m, _ := rotating.Extract(Mass)
	if m[0] != 100 {
		t.Fatal("mass should be carried over")
	}
	back, err := rotating.InFrame(gcrf)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(back.Coordinates(), s.Coordinates(), 1e-6) {
		t.Fatalf("round trip failed\n%v\n%v", back.Coordinates(), s.Coordinates())
	}
	massOnly, _ := NewFromSubsets(epoch, []float64{1}, gcrf, Mass)
	if _, err := massOnly.InFrame(itrf); !errors.Is(err, ErrSubsetNotFound) {
		t.Fatalf("expected ErrSubsetNotFound, got %v", err)
	}
}

func TestBuilder(t *testing.T) {
	gcrf := frame.NewInertial("GCRF")
	if _, err := NewBuilder(nil, Mass); !errors.Is(err, frame.ErrUndefinedFrame) {
		t.Fatalf("expected ErrUndefinedFrame, got %v", err)
	}
	b, err := NewBuilder(gcrf, CartesianPosition, CartesianVelocity)
	if err != nil {
		t.Fatal(err)
	}
	s := fullState(t, gcrf)
	reduced, err := b.Reduce(s)
	if err != nil {
		t.Fatal(err)
	}
	if reduced.Size() != 6 || reduced.HasSubset(Mass) {
		t.Fatal("reduce did not drop the mass")
	}
	wide, _ := NewBuilder(gcrf, CartesianPosition, CartesianVelocity, Mass, SurfaceArea)
	defaults, _ := NewFromSubsets(epoch, []float64{50, 2.5}, gcrf, Mass, SurfaceArea)
	expanded, err := wide.Expand(reduced, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(expanded.Coordinates(), []float64{7000e3, 0, 0, 0, 7.5e3, 0, 50, 2.5}) {
		t.Fatalf("invalid expansion %v", expanded.Coordinates())
	}
	built, err := b.Build(epoch, []float64{1, 2, 3, 4, 5, 6})
	if err != nil || !built.Frame().Equal(gcrf) {
		t.Fatalf("invalid build (%v)", err)
	}
}

func TestInstants(t *testing.T) {
	later := InstantAt(epoch, 2.4e-9)
	if later.Sub(epoch) != 2*time.Nanosecond {
		t.Fatalf("should round to the nearest nanosecond: %s", later.Sub(epoch))
	}
	before := InstantAt(epoch, -3600.25)
	if SecondsSince(epoch, before) != -3600.25 {
		t.Fatalf("invalid round trip %f", SecondsSince(epoch, before))
	}
}
