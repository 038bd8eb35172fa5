package state

import (
	"math"
	"time"
)

// InstantAt returns the instant which is the provided number of seconds after the reference, rounded to the nanosecond.
func InstantAt(reference time.Time, seconds float64) time.Time {
	return reference.Add(time.Duration(math.Round(seconds * 1e9)))
}

// SecondsSince returns the number of seconds elapsed from the reference to t.
func SecondsSince(reference, t time.Time) float64 {
	return t.Sub(reference).Seconds()
}
