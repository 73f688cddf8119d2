package blink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_700_000_000_000)

// replay feeds openness values spaced by interval and collects emitted events.
func replay(p Params, values []float64, interval time.Duration) (State, []Event) {
	var s State
	var events []Event
	for i, v := range values {
		var ev *Event
		s, ev = Step(p, s, v, epoch.Add(time.Duration(i)*interval))
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return s, events
}

func TestStepConfirmsBlink(t *testing.T) {
	s, events := replay(DefaultParams(), []float64{0.5, 0.5, 0.1, 0.1, 0.1, 0.5}, 100*time.Millisecond)

	require.Len(t, events, 1)
	assert.Equal(t, 300*time.Millisecond, events[0].Duration)
	assert.Equal(t, epoch.Add(500*time.Millisecond), events[0].At)
	assert.Equal(t, events[0].At, s.LastBlinkAt)
	assert.True(t, s.Confirmed)
	assert.Equal(t, Open, s.Phase())
}

func TestStepAbortsShortRun(t *testing.T) {
	s, events := replay(DefaultParams(), []float64{0.5, 0.1, 0.5}, 100*time.Millisecond)

	assert.Empty(t, events)
	assert.Zero(t, s.ClosedFrames)
	assert.True(t, s.LastBlinkAt.IsZero())
}

func TestStepRejectsLongClosure(t *testing.T) {
	values := []float64{0.5, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.5}
	s, events := replay(DefaultParams(), values, 100*time.Millisecond)

	assert.Empty(t, events, "a 600ms closure must not count")
	assert.Zero(t, s.ClosedFrames)
}

func TestStepRejectsTooFastClosure(t *testing.T) {
	_, events := replay(DefaultParams(), []float64{0.1, 0.1, 0.1, 0.5}, 10*time.Millisecond)
	assert.Empty(t, events)
}

func TestStepNoEventWhileClosing(t *testing.T) {
	p := DefaultParams()
	var s State
	for i := 0; i < 5; i++ {
		var ev *Event
		s, ev = Step(p, s, 0.0, epoch.Add(time.Duration(i)*100*time.Millisecond))
		assert.Nil(t, ev)
	}
	assert.Equal(t, Closing, s.Phase())
	assert.Equal(t, 5, s.ClosedFrames)
	assert.Equal(t, epoch, s.StartedAt)
}

func TestStepBoundaryDurations(t *testing.T) {
	p := DefaultParams()
	for _, tc := range []struct {
		reopen time.Duration
		want   bool
	}{
		{reopen: 49 * time.Millisecond, want: false},
		{reopen: 50 * time.Millisecond, want: true},
		{reopen: 500 * time.Millisecond, want: true},
		{reopen: 501 * time.Millisecond, want: false},
	} {
		var s State
		for i := 0; i < 3; i++ {
			s, _ = Step(p, s, 0.1, epoch.Add(time.Duration(i)*10*time.Millisecond))
		}
		_, ev := Step(p, s, 0.9, epoch.Add(tc.reopen))
		assert.Equal(t, tc.want, ev != nil, "reopen after %v", tc.reopen)
	}
}

func TestRateSmootherObserve(t *testing.T) {
	s := NewRateSmoother()
	s.Observe(epoch, epoch)
	assert.Equal(t, BaselineRate, s.Rate, "first blink has no interval")

	// 3s apart -> 20/min instantaneous.
	s.Observe(epoch.Add(3*time.Second), epoch)
	assert.InDelta(t, 0.3*20+0.7*16, s.Rate, 1e-9)

	// 1s apart -> 60/min, clamped to 30.
	prev := s.Rate
	s.Observe(epoch.Add(4*time.Second), epoch)
	assert.InDelta(t, 0.3*MaxRate+0.7*prev, s.Rate, 1e-9)
	assert.LessOrEqual(t, s.Rate, MaxRate)
}

func TestRateSmootherDecay(t *testing.T) {
	s := NewRateSmoother()

	assert.False(t, s.Decay(epoch.Add(time.Hour)), "no decay before the first blink")
	assert.Equal(t, BaselineRate, s.Rate)

	s.Observe(epoch, epoch)
	assert.False(t, s.Decay(epoch.Add(10*time.Second)))
	require.True(t, s.Decay(epoch.Add(11*time.Second)))
	assert.InDelta(t, BaselineRate*0.9, s.Rate, 1e-9)

	s.Observe(epoch.Add(12*time.Second), epoch.Add(12*time.Second))
	assert.False(t, s.Decay(epoch.Add(20*time.Second)))

	for i := 0; i < 500; i++ {
		s.Decay(epoch.Add(time.Hour))
	}
	assert.GreaterOrEqual(t, s.Rate, 0.0)
}

func TestRateSmootherDecayUsesLocalClock(t *testing.T) {
	s := NewRateSmoother()
	capture := epoch.Add(-time.Minute)

	// Capture clock a minute behind the local clock, blinking every 3s.
	for i := 0; i < 10; i++ {
		local := epoch.Add(time.Duration(i) * 3 * time.Second)
		s.Observe(capture.Add(time.Duration(i)*3*time.Second), local)
		assert.False(t, s.Decay(local.Add(time.Second)), "blink %d", i)
	}
	assert.Greater(t, s.Rate, BaselineRate)
}
