package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps report provenance. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current UTC time from the package clock.
func Now() time.Time {
	return clock.Now().UTC()
}
