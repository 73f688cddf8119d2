package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/vision"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// FrameSubmitter accepts frames for asynchronous analysis.
type FrameSubmitter interface {
	Submit(f *vision.Frame)
}

type WebSocketClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan models.WebSocketMessage
}

// Hub tracks WebSocket display clients. It broadcasts samples and alert
// changes and routes FRAME messages into analysis.
type Hub struct {
	frames          FrameSubmitter
	metrics         *services.Metrics
	log             *slog.Logger
	maxClients      int
	maxMessageBytes int64
	upgrader        websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*WebSocketClient
}

func NewHub(frames FrameSubmitter, m *services.Metrics, log *slog.Logger, maxClients int, maxMessageBytes int64) *Hub {
	return &Hub{
		frames:          frames,
		metrics:         m,
		log:             log,
		maxClients:      maxClients,
		maxMessageBytes: maxMessageBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*WebSocketClient),
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.maxClients > 0 && h.Count() >= h.maxClients {
		writeError(w, http.StatusServiceUnavailable, "too many connections")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	client := &WebSocketClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan models.WebSocketMessage, sendBuffer),
	}

	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		close(old.send)
		h.metrics.DecrementWebSocketConnections()
	}
	h.clients[clientID] = client
	h.mu.Unlock()
	h.metrics.IncrementWebSocketConnections()
	h.log.Info("websocket client connected", "client", clientID)

	welcome, _ := newMessage(models.MsgWelcome, clientID, map[string]interface{}{
		"message": "Connected to eye monitor",
		"version": "1.0",
	})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) remove(c *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.clientID]; ok && cur == c {
		delete(h.clients, c.clientID)
		close(c.send)
		h.metrics.DecrementWebSocketConnections()
	}
}

func (h *Hub) readPump(c *WebSocketClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.log.Info("websocket client disconnected", "client", c.clientID)
	}()

	if h.maxMessageBytes > 0 {
		c.conn.SetReadLimit(h.maxMessageBytes)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg models.WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.metrics.IncrementWebSocketErrors()
				h.log.Warn("websocket read failed", "client", c.clientID, "err", err)
			}
			return
		}
		h.metrics.IncrementWebSocketMessages()

		switch msg.Type {
		case models.MsgPing:
			pong, _ := newMessage(models.MsgPong, c.clientID, nil)
			h.trySend(c, pong)

		case models.MsgFrame:
			var fm models.FrameMessage
			if err := json.Unmarshal(msg.Payload, &fm); err != nil {
				h.replyError(c, fmt.Sprintf("bad frame payload: %v", err))
				continue
			}
			f := fm.Frame()
			if err := f.Validate(); err != nil {
				h.metrics.IncrementRejected()
				h.replyError(c, err.Error())
				continue
			}
			h.frames.Submit(f)

		default:
			h.log.Debug("unknown websocket message", "client", c.clientID, "type", msg.Type)
		}
	}
}

func (h *Hub) writePump(c *WebSocketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.metrics.IncrementWebSocketErrors()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) replyError(c *WebSocketClient, text string) {
	msg, _ := newMessage(models.MsgError, c.clientID, map[string]string{"error": text})
	h.trySend(c, msg)
}

// trySend drops the message when the client is not keeping up.
func (h *Hub) trySend(c *WebSocketClient, msg models.WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cur, ok := h.clients[c.clientID]; !ok || cur != c {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.metrics.IncrementWebSocketErrors()
	}
}

// Broadcast sends a message to every connected client.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg, err := newMessage(msgType, "", payload)
	if err != nil {
		h.log.Error("could not encode broadcast", "type", msgType, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.metrics.IncrementWebSocketErrors()
		}
	}
}

func (h *Hub) PublishSample(s metrics.Sample, a metrics.Alerts) {
	h.Broadcast(models.MsgSample, models.NewSampleEvent(s, a))
}

func (h *Hub) PublishAlerts(_ context.Context, c metrics.AlertChange) error {
	h.Broadcast(models.MsgAlerts, c)
	return nil
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
		h.metrics.DecrementWebSocketConnections()
		h.log.Debug("closed websocket client", "client", id)
	}
}

func newMessage(msgType, clientID string, payload interface{}) (models.WebSocketMessage, error) {
	msg := models.WebSocketMessage{Type: msgType, ClientID: clientID, Timestamp: time.Now().UnixMilli()}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, err
	}
	msg.Payload = raw
	return msg, nil
}
