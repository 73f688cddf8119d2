package session

import (
	"context"
	"log/slog"
	"time"
)

// Persister stores session snapshots.
type Persister interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

// Scheduler drives the periodic session work: screen-time accrual, blink-rate
// decay and snapshot flushes.
type Scheduler struct {
	Tracker   *Tracker
	Persister Persister
	Log       *slog.Logger

	Minute time.Duration
	Decay  time.Duration
	Flush  time.Duration

	// OnFlush is called with every snapshot taken on the flush tick.
	OnFlush func(Snapshot)
}

func NewScheduler(t *Tracker, p Persister, flush time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		Tracker:   t,
		Persister: p,
		Log:       log,
		Minute:    time.Minute,
		Decay:     time.Second,
		Flush:     flush,
	}
}

// Run blocks until ctx is cancelled. A final snapshot is flushed on the way out
// if tracking is still active.
func (s *Scheduler) Run(ctx context.Context) error {
	minute := time.NewTicker(s.Minute)
	decay := time.NewTicker(s.Decay)
	flush := time.NewTicker(s.Flush)
	defer func() {
		minute.Stop()
		decay.Stop()
		flush.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			if s.Tracker.Active() {
				fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				s.FlushNow(fctx)
				cancel()
			}
			return ctx.Err()
		case <-minute.C:
			s.Tracker.TickMinute()
		case <-decay.C:
			s.Tracker.TickDecay()
		case <-flush.C:
			if s.Tracker.Active() {
				s.FlushNow(ctx)
			}
		}
	}
}

// FlushNow takes a snapshot and hands it to the persister.
func (s *Scheduler) FlushNow(ctx context.Context) {
	snap := s.Tracker.Snapshot()
	if s.OnFlush != nil {
		s.OnFlush(snap)
	}
	if s.Persister == nil {
		return
	}
	if err := s.Persister.SaveSnapshot(ctx, snap); err != nil {
		s.Log.Error("snapshot flush failed", "session", snap.SessionID, "err", err)
		return
	}
	s.Log.Debug("snapshot flushed", "session", snap.SessionID, "score", snap.Stats.EyeStrainScore)
}
