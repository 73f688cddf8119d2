package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/session"
	"eyemonitor/go-backend/internal/vision"
)

// SampleSink receives every emitted sample together with the alert set derived
// after it was added.
type SampleSink interface {
	PublishSample(s metrics.Sample, alerts metrics.Alerts)
}

// AlertSink receives alert set changes.
type AlertSink interface {
	PublishAlerts(ctx context.Context, c metrics.AlertChange) error
}

// Analyzer runs frames through the session tracker and fans results out to
// the sinks. Frames arrive either synchronously through Process or through the
// mailbox drained by Run.
type Analyzer struct {
	tracker *session.Tracker
	mailbox *FrameMailbox
	metrics *Metrics
	log     *slog.Logger

	samples []SampleSink
	alerts  []AlertSink

	// mu serializes alert comparison and publication so sinks see changes in
	// sample order.
	mu      sync.Mutex
	last    metrics.Alerts
	lastSeq uint64
}

func NewAnalyzer(t *session.Tracker, mb *FrameMailbox, m *Metrics, log *slog.Logger) *Analyzer {
	return &Analyzer{tracker: t, mailbox: mb, metrics: m, log: log}
}

func (a *Analyzer) AddSampleSink(s SampleSink) { a.samples = append(a.samples, s) }

func (a *Analyzer) AddAlertSink(s AlertSink) { a.alerts = append(a.alerts, s) }

// Submit hands f to the mailbox. It never blocks.
func (a *Analyzer) Submit(f *vision.Frame) {
	a.metrics.IncrementReceived()
	if a.mailbox.Put(f) {
		a.metrics.IncrementDrops()
	}
}

// Detect analyzes f synchronously, bypassing the mailbox.
func (a *Analyzer) Detect(ctx context.Context, f *vision.Frame) (*session.Result, error) {
	a.metrics.IncrementReceived()
	return a.Process(ctx, f)
}

// Run drains the mailbox until ctx is done.
func (a *Analyzer) Run(ctx context.Context) error {
	for {
		f, err := a.mailbox.Next(ctx)
		if err != nil {
			return err
		}
		if _, err := a.Process(ctx, f); err != nil && !errors.Is(err, vision.ErrInvalidFrame) {
			a.log.Error("frame analysis failed", "err", err)
		}
	}
}

// Process analyzes one frame. A nil result means tracking is stopped or no
// face was found.
func (a *Analyzer) Process(ctx context.Context, f *vision.Frame) (*session.Result, error) {
	start := time.Now()
	r, err := a.tracker.Evaluate(f)
	if err != nil {
		a.metrics.IncrementRejected()
		a.log.Warn("frame rejected", "err", err)
		return nil, err
	}
	a.metrics.IncrementAnalyzed()
	a.metrics.RecordLatency(time.Since(start))
	if r == nil {
		if a.tracker.Active() {
			a.metrics.IncrementMisses()
		}
		return nil, nil
	}

	a.metrics.IncrementSamples()
	for _, sink := range a.samples {
		sink.PublishSample(r.Sample, r.Alerts)
	}
	a.checkAlerts(ctx, r)
	return r, nil
}

func (a *Analyzer) checkAlerts(ctx context.Context, r *session.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// A result overtaken by a newer one carries a stale alert set.
	if r.Seq <= a.lastSeq {
		return
	}
	a.lastSeq = r.Seq
	prev := a.last
	a.last = r.Alerts
	if prev == r.Alerts {
		return
	}

	a.metrics.IncrementAlertChanges()
	change := metrics.AlertChange{
		At:        r.Sample.Timestamp,
		SessionID: r.SessionID,
		Previous:  prev,
		Current:   r.Alerts,
	}
	a.log.Info("alerts changed", "raised", change.Raised(), "cleared", change.Cleared())
	for _, sink := range a.alerts {
		if err := sink.PublishAlerts(ctx, change); err != nil {
			a.log.Error("alert sink failed", "err", err)
		}
	}
}

// ResetAlerts forgets the last alert set, e.g. after a session reset.
func (a *Analyzer) ResetAlerts() {
	a.mu.Lock()
	a.last = metrics.Alerts{}
	a.mu.Unlock()
}
