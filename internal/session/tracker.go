// Package session owns the per-session analysis state: blink tracking, rate
// smoothing, sample history and screen-time accrual.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"eyemonitor/go-backend/internal/blink"
	"eyemonitor/go-backend/internal/config"
	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/vision"
)

type State struct {
	ID                string    `json:"id,omitempty"`
	Active            bool      `json:"active"`
	ScreenTimeMinutes int       `json:"screen_time_minutes"`
	TotalBlinkEvents  int       `json:"total_blink_events"`
	StartedAt         time.Time `json:"started_at"`
}

// Snapshot is the record handed to persistence.
type Snapshot struct {
	SessionID         string             `json:"session_id,omitempty"`
	TakenAt           time.Time          `json:"taken_at"`
	Stats             metrics.DailyStats `json:"daily_stats"`
	ScreenTimeMinutes int                `json:"screen_time_minutes"`
	TotalBlinkEvents  int                `json:"total_blink_events"`
}

type Option func(*Tracker)

// WithClock replaces time.Now for the session lifecycle and tickers. Frame
// analysis always uses the frame timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is safe for concurrent use. One mutex guards the blink state, the
// rate smoother, the history and the session counters so derived values always
// come from one consistent view.
type Tracker struct {
	log     *slog.Logger
	now     func() time.Time
	locator vision.Locator
	params  blink.Params

	mu       sync.Mutex
	state    State
	blink    blink.State
	smoother blink.RateSmoother
	agg      *metrics.Aggregator
	seq      uint64
}

// NewTracker validates p before building anything.
func NewTracker(p config.Pipeline, log *slog.Logger, opts ...Option) (*Tracker, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("could not create tracker: %w", err)
	}
	t := &Tracker{
		log:     log,
		now:     time.Now,
		locator: p.Locator(),
		params:  p.BlinkParams(),
		agg:     metrics.NewAggregator(p.Thresholds()),
	}
	for _, o := range opts {
		o(t)
	}
	t.smoother = blink.NewRateSmoother()
	return t, nil
}

// Result is one analyzed frame. Alerts, SessionID and Seq are read in the
// same critical section that added Sample, so they always belong together.
// Seq increases with every sample the tracker accepts.
type Result struct {
	Sample    metrics.Sample
	Alerts    metrics.Alerts
	SessionID string
	Seq       uint64
}

// Analyze runs one frame through the pipeline. It returns a nil sample when
// tracking is stopped or no face is found. An invalid frame is rejected before
// any state changes.
func (t *Tracker) Analyze(f *vision.Frame) (*metrics.Sample, error) {
	r, err := t.Evaluate(f)
	if r == nil {
		return nil, err
	}
	return &r.Sample, nil
}

// Evaluate is Analyze returning the full Result.
func (t *Tracker) Evaluate(f *vision.Frame) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	active, id := t.state.Active, t.state.ID
	t.mu.Unlock()
	if !active {
		return nil, nil
	}

	face, ok := t.locator.Locate(f)
	if !ok {
		return nil, nil
	}
	left, right := vision.EyeRegions(face)
	openness := (vision.Openness(f, left) + vision.Openness(f, right)) / 2
	distance := vision.EstimateDistance(float64(face.Width), float64(f.Width))
	lc, rc := left.Center(), right.Center()
	center := vision.Point{X: (lc.X + rc.X) / 2, Y: (lc.Y + rc.Y) / 2}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Tracking may have stopped, or a new session started, while the frame
	// was being scored.
	if !t.state.Active || t.state.ID != id {
		return nil, nil
	}

	var ev *blink.Event
	t.blink, ev = blink.Step(t.params, t.blink, openness, f.Timestamp)
	if ev != nil {
		t.smoother.Observe(ev.At, t.now())
		t.state.TotalBlinkEvents++
		t.log.Debug("blink", "duration", ev.Duration, "rate", t.smoother.Rate)
	}

	s := metrics.Sample{
		Timestamp:  f.Timestamp,
		BlinkRate:  t.smoother.Rate,
		DistanceCm: distance,
		EyeCenter:  center,
	}
	t.agg.Add(s)
	t.seq++
	return &Result{Sample: s, Alerts: t.agg.Alerts(), SessionID: id, Seq: t.seq}, nil
}

// Start begins a new tracking session. Starting an active session is a no-op.
func (t *Tracker) Start() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Active {
		return t.state
	}
	now := t.now()
	t.state.Active = true
	t.state.StartedAt = now
	t.state.ID = uuid.NewString()
	t.blink = blink.State{}
	t.smoother = blink.NewRateSmoother()
	t.log.Info("tracking started", "session", t.state.ID)
	return t.state
}

func (t *Tracker) Stop() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Active {
		t.log.Info("tracking stopped", "session", t.state.ID, "screen_minutes", t.state.ScreenTimeMinutes)
	}
	t.state.Active = false
	t.blink = blink.State{}
	return t.state
}

// Reset clears the history and the daily counters. The active flag and the
// session id are kept.
func (t *Tracker) Reset() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agg.Reset()
	t.blink = blink.State{}
	t.smoother = blink.NewRateSmoother()
	t.state.ScreenTimeMinutes = 0
	t.state.TotalBlinkEvents = 0
	return t.state
}

// Restore carries counters over from a persisted snapshot.
func (t *Tracker) Restore(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ScreenTimeMinutes = s.ScreenTimeMinutes
	t.state.TotalBlinkEvents = s.TotalBlinkEvents
}

// RestoreSameDay restores s only when it was taken on the current calendar
// day, so daily counters start from zero after midnight.
func (t *Tracker) RestoreSameDay(s Snapshot) bool {
	now := t.now()
	taken := s.TakenAt.In(now.Location())
	if taken.Year() != now.Year() || taken.YearDay() != now.YearDay() {
		return false
	}
	t.Restore(s)
	return true
}

// TickMinute accrues one minute of screen time while active.
func (t *Tracker) TickMinute() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Active {
		return false
	}
	t.state.ScreenTimeMinutes++
	return true
}

// TickDecay lets the blink rate drift down when no blink has been seen for a
// while.
func (t *Tracker) TickDecay() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Active {
		return false
	}
	return t.smoother.Decay(t.now())
}

func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Active
}

func (t *Tracker) Session() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) BlinkRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.smoother.Rate
}

func (t *Tracker) Stats() metrics.DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.Stats(t.state.ScreenTimeMinutes)
}

func (t *Tracker) Alerts() metrics.Alerts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.Alerts()
}

func (t *Tracker) History() []metrics.Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agg.History()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		SessionID:         t.state.ID,
		TakenAt:           t.now(),
		Stats:             t.agg.Stats(t.state.ScreenTimeMinutes),
		ScreenTimeMinutes: t.state.ScreenTimeMinutes,
		TotalBlinkEvents:  t.state.TotalBlinkEvents,
	}
}
