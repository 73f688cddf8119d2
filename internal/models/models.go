package models

import (
	"time"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/session"
)

type Session struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`
}

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// SnapshotRecord is a persisted session snapshot.
type SnapshotRecord struct {
	ID int64 `json:"id"`
	session.Snapshot
}

type AlertEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Alert     string    `json:"alert"`
	Raised    bool      `json:"raised"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertEvents flattens a change into one event per alert that flipped.
func AlertEvents(c metrics.AlertChange) []AlertEvent {
	var out []AlertEvent
	for _, a := range c.Raised() {
		out = append(out, AlertEvent{SessionID: c.SessionID, Alert: a, Raised: true, Timestamp: c.At})
	}
	for _, a := range c.Cleared() {
		out = append(out, AlertEvent{SessionID: c.SessionID, Alert: a, Raised: false, Timestamp: c.At})
	}
	return out
}
