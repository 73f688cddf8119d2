package blink

import (
	"math"
	"time"
)

const (
	// BaselineRate is the typical resting blink rate a session starts from.
	BaselineRate = 16.0
	MaxRate      = 30.0

	smoothingAlpha = 0.3
	decayAfter     = 10 * time.Second
	decayFactor    = 0.9
)

// RateSmoother keeps an exponential moving average of blinks per minute.
// LastBlink is on the frame clock and spaces blinks apart. LastSeen is the
// local instant the blink was confirmed and is what Decay measures against, so
// a skewed capture clock cannot trigger or suppress decay.
type RateSmoother struct {
	Rate      float64
	LastBlink time.Time
	LastSeen  time.Time
}

func NewRateSmoother() RateSmoother {
	return RateSmoother{Rate: BaselineRate}
}

// Observe folds a blink captured at at and confirmed locally at seen into the
// rate. The first blink only records the instants, since no interval exists yet.
func (s *RateSmoother) Observe(at, seen time.Time) {
	if !s.LastBlink.IsZero() {
		if gap := at.Sub(s.LastBlink); gap > 0 {
			instant := clampRate(float64(time.Minute) / float64(gap))
			s.Rate = smoothingAlpha*instant + (1-smoothingAlpha)*s.Rate
		}
	}
	s.LastBlink = at
	s.LastSeen = seen
}

// Decay is called once per second with the local time. After more than ten
// seconds without a blink the rate shrinks by ten percent per call. Nothing
// decays until the first blink has been seen.
func (s *RateSmoother) Decay(now time.Time) bool {
	if s.LastSeen.IsZero() || now.Sub(s.LastSeen) <= decayAfter {
		return false
	}
	s.Rate = math.Max(0, s.Rate*decayFactor)
	return true
}

func clampRate(r float64) float64 {
	return math.Max(0, math.Min(MaxRate, r))
}
