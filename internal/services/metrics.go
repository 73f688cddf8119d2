package services

import (
	"sync/atomic"
	"time"
)

// Metrics are process-wide service counters exposed on /api/metrics.
type Metrics struct {
	startedAt time.Time

	framesReceived  atomic.Int64
	framesAnalyzed  atomic.Int64
	framesRejected  atomic.Int64
	detectionMisses atomic.Int64
	mailboxDrops    atomic.Int64
	samplesEmitted  atomic.Int64
	alertChanges    atomic.Int64
	totalLatency    atomic.Int64
	lastFrameTime   atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) IncrementReceived() {
	m.framesReceived.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementAnalyzed() {
	m.framesAnalyzed.Add(1)
}

func (m *Metrics) IncrementRejected() {
	m.framesRejected.Add(1)
}

func (m *Metrics) IncrementMisses() {
	m.detectionMisses.Add(1)
}

func (m *Metrics) IncrementDrops() {
	m.mailboxDrops.Add(1)
}

func (m *Metrics) IncrementSamples() {
	m.samplesEmitted.Add(1)
}

func (m *Metrics) IncrementAlertChanges() {
	m.alertChanges.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Microseconds())
}

func (m *Metrics) GetFramesReceived() int64 { return m.framesReceived.Load() }
func (m *Metrics) GetFramesAnalyzed() int64 { return m.framesAnalyzed.Load() }
func (m *Metrics) GetFramesRejected() int64 { return m.framesRejected.Load() }
func (m *Metrics) GetMisses() int64         { return m.detectionMisses.Load() }
func (m *Metrics) GetDrops() int64          { return m.mailboxDrops.Load() }
func (m *Metrics) GetSamples() int64        { return m.samplesEmitted.Load() }

// GetAvgLatency is the mean analysis time per analyzed frame, in milliseconds.
func (m *Metrics) GetAvgLatency() float64 {
	frames := m.framesAnalyzed.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames) / 1000
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

// GetWebSocketMetrics returns WebSocket-specific metrics
func (m *Metrics) GetWebSocketMetrics() map[string]interface{} {
	return map[string]interface{}{
		"connections": m.wsConnections.Load(),
		"messages":    m.wsMessages.Load(),
		"errors":      m.wsErrors.Load(),
	}
}

// Snapshot returns every counter keyed by its wire name.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"frames_received":   m.framesReceived.Load(),
		"frames_analyzed":   m.framesAnalyzed.Load(),
		"frames_rejected":   m.framesRejected.Load(),
		"detection_misses":  m.detectionMisses.Load(),
		"mailbox_drops":     m.mailboxDrops.Load(),
		"samples_emitted":   m.samplesEmitted.Load(),
		"alert_changes":     m.alertChanges.Load(),
		"avg_latency_ms":    m.GetAvgLatency(),
		"last_frame_time":   m.lastFrameTime.Load(),
		"system_uptime_sec": int(m.Uptime().Seconds()),
		"websocket":         m.GetWebSocketMetrics(),
	}
}
