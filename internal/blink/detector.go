// Package blink turns per-frame eye openness into confirmed blink events and a
// smoothed blinks-per-minute rate.
package blink

import "time"

// Params control blink confirmation.
type Params struct {
	// Threshold is the average openness below which the eyes count as closed.
	Threshold float64
	// ConfirmFrames is the minimum run of closed frames for a blink.
	ConfirmFrames int
	MinDuration   time.Duration
	MaxDuration   time.Duration
}

func DefaultParams() Params {
	return Params{
		Threshold:     0.25,
		ConfirmFrames: 3,
		MinDuration:   50 * time.Millisecond,
		MaxDuration:   500 * time.Millisecond,
	}
}

type Phase int

const (
	Open Phase = iota
	Closing
)

func (p Phase) String() string {
	if p == Closing {
		return "closing"
	}
	return "open"
}

// State is the detector's memory between frames. The zero value is the initial
// state; zero times mean "not set".
type State struct {
	ClosedFrames int       `json:"closed_frames"`
	StartedAt    time.Time `json:"started_at"`
	LastBlinkAt  time.Time `json:"last_blink_at"`
	// Confirmed is set on the step that produced a blink event.
	Confirmed bool `json:"confirmed"`
}

func (s State) Phase() Phase {
	if s.ClosedFrames > 0 {
		return Closing
	}
	return Open
}

// Event is a confirmed blink.
type Event struct {
	At       time.Time
	Duration time.Duration
}

// Step advances the detector by one frame. It never mutates s; the returned
// state replaces it. An event is returned only on the frame where the eyes
// reopen after a valid closure.
func Step(p Params, s State, openness float64, now time.Time) (State, *Event) {
	s.Confirmed = false

	if openness < p.Threshold {
		if s.ClosedFrames == 0 {
			s.StartedAt = now
		}
		s.ClosedFrames++
		return s, nil
	}

	if s.ClosedFrames == 0 {
		return s, nil
	}

	run, started := s.ClosedFrames, s.StartedAt
	s.ClosedFrames = 0
	s.StartedAt = time.Time{}

	if run < p.ConfirmFrames {
		return s, nil
	}
	d := now.Sub(started)
	if d < p.MinDuration || d > p.MaxDuration {
		return s, nil
	}

	s.LastBlinkAt = now
	s.Confirmed = true
	return s, &Event{At: now, Duration: d}
}
