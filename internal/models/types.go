package models

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/session"
	"eyemonitor/go-backend/internal/vision"
)

// WebSocket message types.
const (
	MsgWelcome  = "WELCOME"
	MsgPing     = "PING"
	MsgPong     = "PONG"
	MsgFrame    = "FRAME"
	MsgSample   = "SAMPLE"
	MsgAlerts   = "ALERTS"
	MsgStats    = "STATS"
	MsgError    = "ERROR"
	MsgReceived = "FRAME_RECEIVED"
)

type WebSocketMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ClientID  string          `json:"client_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FrameMessage carries one RGBA frame. Data is base64 in JSON.
type FrameMessage struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Data      []byte `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Frame converts the message. A missing timestamp stays the zero time so
// validation rejects the frame.
func (m FrameMessage) Frame() *vision.Frame {
	f := &vision.Frame{Width: m.Width, Height: m.Height, Pix: m.Data}
	if m.Timestamp != 0 {
		f.Timestamp = time.UnixMilli(m.Timestamp)
	}
	return f
}

func NewFrameMessage(f *vision.Frame) FrameMessage {
	return FrameMessage{Width: f.Width, Height: f.Height, Data: f.Pix, Timestamp: f.Timestamp.UnixMilli()}
}

// SampleEvent is pushed to display subscribers for every analyzed frame.
type SampleEvent struct {
	Sample         metrics.Sample `json:"sample"`
	Alerts         metrics.Alerts `json:"alerts"`
	BlinkStatus    metrics.Status `json:"blink_status"`
	DistanceStatus metrics.Status `json:"distance_status"`
}

func NewSampleEvent(s metrics.Sample, a metrics.Alerts) SampleEvent {
	return SampleEvent{
		Sample:         s,
		Alerts:         a,
		BlinkStatus:    metrics.BlinkRateStatus(s.BlinkRate),
		DistanceStatus: metrics.DistanceStatus(s.DistanceCm),
	}
}

type DetectResponse struct {
	Detected bool         `json:"detected"`
	Event    *SampleEvent `json:"event,omitempty"`
}

type StatsResponse struct {
	Stats          metrics.DailyStats `json:"daily_stats"`
	Alerts         metrics.Alerts     `json:"alerts"`
	Session        session.State      `json:"session"`
	BlinkRate      float64            `json:"blink_rate"`
	BlinkStatus    metrics.Status     `json:"blink_status"`
	DistanceStatus metrics.Status     `json:"distance_status"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status        string `json:"status"`
	GRPCStatus    string `json:"grpc_status"`
	HTTPStatus    string `json:"http_status"`
	Database      string `json:"database"`
	Tracking      bool   `json:"tracking"`
	ActiveClients int    `json:"active_clients"`
	UptimeSec     int    `json:"uptime_sec"`
	Version       string `json:"version,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// ToStruct converts a JSON-serialisable value to a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("could not encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a protobuf Struct into v using the JSON field names.
func FromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("could not decode struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("could not decode struct: %w", err)
	}
	return nil
}
