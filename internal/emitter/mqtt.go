// Package emitter publishes alert changes to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
)

var ErrNotConnected = errors.New("mqtt not connected")

const (
	qos            = 1
	publishTimeout = 2 * time.Second
)

// publisher is the subset of mqtt.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

type statePayload struct {
	SessionID string         `json:"session_id,omitempty"`
	Alerts    metrics.Alerts `json:"alerts"`
	Timestamp time.Time      `json:"timestamp"`
}

// Messages renders a change as one event per flipped alert on
// {prefix}/{alert}, plus the full alert set retained on {prefix}/state.
func Messages(prefix string, c metrics.AlertChange) ([]Message, error) {
	var out []Message
	for _, ev := range models.AlertEvents(c) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert event: %w", err)
		}
		out = append(out, Message{Topic: prefix + "/" + ev.Alert, Payload: payload})
	}
	state, err := json.Marshal(statePayload{SessionID: c.SessionID, Alerts: c.Current, Timestamp: c.At})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert state: %w", err)
	}
	return append(out, Message{Topic: prefix + "/state", Payload: state, Retained: true}), nil
}

// MQTTEmitter publishes alert changes. It implements services.AlertSink.
type MQTTEmitter struct {
	broker   string
	clientID string
	prefix   string
	log      *slog.Logger

	client publisher

	mu        sync.Mutex
	published uint64
	errors    uint64
}

func NewMQTTEmitter(broker, clientID, prefix string, log *slog.Logger) *MQTTEmitter {
	return &MQTTEmitter{broker: broker, clientID: clientID, prefix: prefix, log: log}
}

// Connect dials the broker with automatic reconnection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.broker))
	opts.SetClientID(e.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.log.Info("mqtt connection established", "broker", e.broker, "client_id", e.clientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.log.Warn("mqtt connection lost, will auto-reconnect", "broker", e.broker, "err", err)
	}

	client := mqtt.NewClient(opts)
	e.client = client

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (e *MQTTEmitter) PublishAlerts(_ context.Context, c metrics.AlertChange) error {
	if e.client == nil || !e.client.IsConnected() {
		e.countError()
		return ErrNotConnected
	}
	msgs, err := Messages(e.prefix, c)
	if err != nil {
		e.countError()
		return err
	}
	for _, m := range msgs {
		token := e.client.Publish(m.Topic, qos, m.Retained, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			e.countError()
			return fmt.Errorf("publish to %s timed out", m.Topic)
		}
		if err := token.Error(); err != nil {
			e.countError()
			return fmt.Errorf("publish to %s failed: %w", m.Topic, err)
		}
		e.mu.Lock()
		e.published++
		e.mu.Unlock()
		e.log.Debug("alert published", "topic", m.Topic, "size", len(m.Payload))
	}
	return nil
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats returns the number of published messages and failures.
func (e *MQTTEmitter) Stats() (published, failed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published, e.errors
}

func (e *MQTTEmitter) Disconnect() {
	if c, ok := e.client.(mqtt.Client); ok && c.IsConnected() {
		c.Disconnect(250)
		e.log.Info("mqtt disconnected")
	}
}
