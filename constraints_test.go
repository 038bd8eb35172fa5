package trajectory

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func after(d time.Duration) time.Time {
	return epoch.Add(d)
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("code did not panic")
		}
	}()
	f()
}

func TestApplyManeuverConstraints(t *testing.T) {
	maneuver := Interval{after(100 * time.Second), after(700 * time.Second)}
	for _, tc := range []struct {
		name     string
		c        ManeuverConstraints
		previous time.Time
		keep     bool
		want     Interval
		fails    bool
	}{
		{"unconstrained", ManeuverConstraints{}, time.Time{}, true, maneuver, false},
		{"within bounds", ManeuverConstraints{MinimumDuration: time.Minute, MaximumDuration: time.Hour, Strategy: Fail}, time.Time{}, true, maneuver, false},
		{"max fail", ManeuverConstraints{MaximumDuration: 300 * time.Second, Strategy: Fail}, time.Time{}, false, Interval{}, true},
		{"max skip", ManeuverConstraints{MaximumDuration: 300 * time.Second, Strategy: Skip}, time.Time{}, false, Interval{}, false},
		{"max slice", ManeuverConstraints{MaximumDuration: 300 * time.Second, Strategy: Slice}, time.Time{}, true, Interval{after(100 * time.Second), after(400 * time.Second)}, false},
		{"max center", ManeuverConstraints{MaximumDuration: 300 * time.Second, Strategy: Center}, time.Time{}, true, Interval{after(250 * time.Second), after(550 * time.Second)}, false},
		{"min fail", ManeuverConstraints{MinimumDuration: 900 * time.Second, Strategy: Fail}, time.Time{}, false, Interval{}, true},
		{"min skip", ManeuverConstraints{MinimumDuration: 900 * time.Second, Strategy: Skip}, time.Time{}, false, Interval{}, false},
		{"min slice", ManeuverConstraints{MinimumDuration: 900 * time.Second, Strategy: Slice}, time.Time{}, false, Interval{}, false},
		{"separation fail", ManeuverConstraints{MinimumSeparation: 200 * time.Second, Strategy: Fail}, epoch, false, Interval{}, true},
		{"separation skip", ManeuverConstraints{MinimumSeparation: 200 * time.Second, Strategy: Skip}, epoch, false, Interval{}, false},
		{"separation slice", ManeuverConstraints{MinimumSeparation: 200 * time.Second, Strategy: Slice}, epoch, true, Interval{after(200 * time.Second), after(700 * time.Second)}, false},
		{"separation then center", ManeuverConstraints{MaximumDuration: 300 * time.Second, MinimumSeparation: 200 * time.Second, Strategy: Center}, epoch, true, Interval{after(300 * time.Second), after(600 * time.Second)}, false},
		{"separation then minimum", ManeuverConstraints{MinimumDuration: 550 * time.Second, MinimumSeparation: 200 * time.Second, Strategy: Slice}, epoch, false, Interval{}, false},
		{"separation beyond the end", ManeuverConstraints{MinimumSeparation: 800 * time.Second, Strategy: Center}, epoch, false, Interval{}, false},
		{"separation satisfied", ManeuverConstraints{MinimumSeparation: 100 * time.Second, Strategy: Fail}, epoch, true, maneuver, false},
		{"no previous maneuver", ManeuverConstraints{MinimumSeparation: time.Hour, Strategy: Fail}, time.Time{}, true, maneuver, false},
	} {
		got, keep, err := ApplyManeuverConstraints(maneuver, tc.previous, tc.c)
		if tc.fails {
			if !errors.Is(err, ErrManeuverConstraintViolated) {
				t.Fatalf("%s: expected ErrManeuverConstraintViolated, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %s", tc.name, err)
		}
		if keep != tc.keep {
			t.Fatalf("%s: keep=%v", tc.name, keep)
		}
		if keep && (!got.Start.Equal(tc.want.Start) || !got.End.Equal(tc.want.End)) {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestManeuverConstraintsValidation(t *testing.T) {
	maneuver := Interval{after(100 * time.Second), after(700 * time.Second)}
	for _, c := range []ManeuverConstraints{
		{MinimumDuration: time.Hour, MaximumDuration: time.Minute, Strategy: Fail},
		{MinimumDuration: -time.Second, Strategy: Fail},
		{MaximumDuration: time.Minute},
	} {
		if _, _, err := ApplyManeuverConstraints(maneuver, time.Time{}, c); err == nil || errors.Is(err, ErrManeuverConstraintViolated) {
			t.Fatalf("%s: expected a validation error, got %v", c, err)
		}
	}
	reversed := Interval{maneuver.End, maneuver.Start}
	if _, _, err := ApplyManeuverConstraints(reversed, time.Time{}, ManeuverConstraints{}); err == nil {
		t.Fatal("expected an error for a reversed interval")
	}
	for _, s := range []MaximumDurationStrategy{Fail, Skip, Slice, Center} {
		parsed, err := ParseMaximumDurationStrategy(s.String())
		if err != nil || parsed != s {
			t.Fatalf("%s parsed as %d (%v)", s, parsed, err)
		}
	}
	if _, err := ParseMaximumDurationStrategy("Stretch"); err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
	assertPanic(t, func() {
		_ = MaximumDurationStrategy(0).String()
	})
	if !maneuver.Contains(maneuver.Start) || !maneuver.Contains(maneuver.End) || maneuver.Contains(epoch) {
		t.Fatal("invalid Contains")
	}
}
