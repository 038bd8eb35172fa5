// Package trajectory orchestrates the propagation of coast and maneuver segments, and of sequences of them.
package trajectory

import (
	"errors"
	"fmt"
	"time"
)

// ErrManeuverConstraintViolated is returned when a maneuver violates its constraints under the Fail strategy.
var ErrManeuverConstraintViolated = errors.New("trajectory: maneuver constraint violated")

// Interval is a closed time interval.
type Interval struct {
	Start, End time.Time
}

// Duration returns the duration of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains returns whether the instant is within the interval, bounds included.
func (i Interval) Contains(dt time.Time) bool {
	return !dt.Before(i.Start) && !dt.After(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s]", i.Start.Format(time.RFC3339Nano), i.End.Format(time.RFC3339Nano))
}

// MaximumDurationStrategy defines how a maneuver which violates its constraints is handled.
type MaximumDurationStrategy uint8

const (
	// Fail returns an error.
	Fail MaximumDurationStrategy = iota + 1
	// Skip replaces the maneuver with a coast.
	Skip
	// Slice keeps the start of the maneuver, up to the maximum duration.
	Slice
	// Center keeps the window of maximum duration centered on the maneuver.
	Center
)

func (s MaximumDurationStrategy) String() string {
	switch s {
	case Fail:
		return "Fail"
	case Skip:
		return "Skip"
	case Slice:
		return "Slice"
	case Center:
		return "Center"
	}
	panic("cannot stringify unknown strategy")
}

// ParseMaximumDurationStrategy returns the strategy of this name.
func ParseMaximumDurationStrategy(name string) (MaximumDurationStrategy, error) {
	for _, s := range []MaximumDurationStrategy{Fail, Skip, Slice, Center} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown maximum duration strategy %q", name)
}

// ManeuverConstraints bound the realized maneuvers. Zero durations are unconstrained.
type ManeuverConstraints struct {
	MinimumDuration   time.Duration
	MaximumDuration   time.Duration
	MinimumSeparation time.Duration // From the end of the previous maneuver
	Strategy          MaximumDurationStrategy
}

// IsDefined returns whether any constraint is set.
func (c ManeuverConstraints) IsDefined() bool {
	return c.MinimumDuration > 0 || c.MaximumDuration > 0 || c.MinimumSeparation > 0
}

// Validate returns an error if the constraints are inconsistent.
func (c ManeuverConstraints) Validate() error {
	if c.MinimumDuration < 0 || c.MaximumDuration < 0 || c.MinimumSeparation < 0 {
		return fmt.Errorf("maneuver constraints %s: negative duration", c)
	}
	if c.MaximumDuration > 0 && c.MinimumDuration > c.MaximumDuration {
		return fmt.Errorf("maneuver constraints %s: minimum duration above maximum duration", c)
	}
	if c.IsDefined() && (c.Strategy < Fail || c.Strategy > Center) {
		return fmt.Errorf("maneuver constraints: unknown strategy %d", c.Strategy)
	}
	return nil
}

func (c ManeuverConstraints) String() string {
	strategy := "none"
	if c.Strategy >= Fail && c.Strategy <= Center {
		strategy = c.Strategy.String()
	}
	return fmt.Sprintf("{min=%s max=%s separation=%s strategy=%s}", c.MinimumDuration, c.MaximumDuration, c.MinimumSeparation, strategy)
}

// ApplyManeuverConstraints returns the maneuver interval allowed by the constraints, given the end of the
// previous maneuver (zero if none). The returned boolean is false when the maneuver must be skipped.
// The separation is checked first, then the maximum and the minimum durations.
func ApplyManeuverConstraints(maneuver Interval, previousManeuverEnd time.Time, c ManeuverConstraints) (Interval, bool, error) {
	if err := c.Validate(); err != nil {
		return Interval{}, false, err
	}
	if maneuver.End.Before(maneuver.Start) {
		return Interval{}, false, fmt.Errorf("maneuver %s ends before it starts", maneuver)
	}
	if !c.IsDefined() {
		return maneuver, true, nil
	}
	adjusted := maneuver
	if !previousManeuverEnd.IsZero() && c.MinimumSeparation > 0 {
		if earliest := previousManeuverEnd.Add(c.MinimumSeparation); adjusted.Start.Before(earliest) {
			switch c.Strategy {
			case Fail:
				return Interval{}, false, fmt.Errorf("maneuver %s starts %s after the previous maneuver, minimum is %s: %w", maneuver, adjusted.Start.Sub(previousManeuverEnd), c.MinimumSeparation, ErrManeuverConstraintViolated)
			case Skip:
				return Interval{}, false, nil
			default:
				if !adjusted.End.After(earliest) {
					return Interval{}, false, nil
				}
				adjusted.Start = earliest
			}
		}
	}
	if c.MaximumDuration > 0 && adjusted.Duration() > c.MaximumDuration {
		switch c.Strategy {
		case Fail:
			return Interval{}, false, fmt.Errorf("maneuver %s lasts %s, maximum is %s: %w", adjusted, adjusted.Duration(), c.MaximumDuration, ErrManeuverConstraintViolated)
		case Skip:
			return Interval{}, false, nil
		case Slice:
			adjusted.End = adjusted.Start.Add(c.MaximumDuration)
		case Center:
			adjusted.Start = adjusted.Start.Add((adjusted.Duration() - c.MaximumDuration) / 2)
			adjusted.End = adjusted.Start.Add(c.MaximumDuration)
		}
	}
	if adjusted.Duration() < c.MinimumDuration {
		if c.Strategy == Fail {
			return Interval{}, false, fmt.Errorf("maneuver %s lasts %s, minimum is %s: %w", adjusted, adjusted.Duration(), c.MinimumDuration, ErrManeuverConstraintViolated)
		}
		return Interval{}, false, nil
	}
	return adjusted, true, nil
}
