package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/vision"
)

func TestFrameMessage(t *testing.T) {
	f := &vision.Frame{Width: 2, Height: 1, Pix: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Timestamp: time.UnixMilli(1_700_000_000_123)}

	s, err := ToStruct(NewFrameMessage(f))
	require.NoError(t, err)
	assert.Equal(t, "AQIDBAUGBwg=", s.Fields["data"].GetStringValue())

	var back FrameMessage
	require.NoError(t, FromStruct(s, &back))
	assert.Equal(t, f, back.Frame())
	assert.NoError(t, back.Frame().Validate())
}

func TestFrameMessageMissingTimestamp(t *testing.T) {
	f := FrameMessage{Width: 1, Height: 1, Data: []byte{1, 2, 3, 4}}.Frame()
	assert.True(t, f.Timestamp.IsZero())
	assert.ErrorIs(t, f.Validate(), vision.ErrInvalidFrame)
}

func TestNewSampleEvent(t *testing.T) {
	ev := NewSampleEvent(metrics.Sample{BlinkRate: 13, DistanceCm: 55}, metrics.Alerts{})
	assert.Equal(t, metrics.StatusLow, ev.BlinkStatus)
	assert.Equal(t, metrics.StatusGood, ev.DistanceStatus)
}

func TestAlertEvents(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	events := AlertEvents(metrics.AlertChange{
		At:        at,
		SessionID: "s1",
		Previous:  metrics.Alerts{PoorPosture: true},
		Current:   metrics.Alerts{LowBlinkRate: true},
	})

	require.Len(t, events, 2)
	assert.Equal(t, AlertEvent{SessionID: "s1", Alert: metrics.AlertLowBlinkRate, Raised: true, Timestamp: at}, events[0])
	assert.Equal(t, AlertEvent{SessionID: "s1", Alert: metrics.AlertPoorPosture, Raised: false, Timestamp: at}, events[1])
}
