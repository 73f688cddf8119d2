package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyemonitor/go-backend/internal/models"
)

func dialWS(t *testing.T, e *testEnv, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of type msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) models.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg models.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	msg, err := newMessage(msgType, "", payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketWelcomeAndPing(t *testing.T) {
	e := newTestEnv(t, "")
	conn := dialWS(t, e, "?clientId=display-1")

	welcome := readUntil(t, conn, models.MsgWelcome)
	assert.Equal(t, "display-1", welcome.ClientID)
	assert.Eventually(t, func() bool { return e.api.Hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	send(t, conn, models.MsgPing, nil)
	readUntil(t, conn, models.MsgPong)
}

func TestWebSocketFrameProducesSample(t *testing.T) {
	e := newTestEnv(t, "")
	e.api.Tracker.Start()
	conn := dialWS(t, e, "")
	readUntil(t, conn, models.MsgWelcome)

	send(t, conn, models.MsgFrame, models.NewFrameMessage(faceFrame(0)))

	msg := readUntil(t, conn, models.MsgSample)
	var ev models.SampleEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.InDelta(t, 36.2, ev.Sample.DistanceCm, 0.01)

	alerts := readUntil(t, conn, models.MsgAlerts)
	assert.Contains(t, string(alerts.Payload), "too_close_to_screen")
}

func TestWebSocketRejectsBadFrame(t *testing.T) {
	e := newTestEnv(t, "")
	conn := dialWS(t, e, "")
	readUntil(t, conn, models.MsgWelcome)

	bad := models.NewFrameMessage(faceFrame(0))
	bad.Data = bad.Data[:8]
	send(t, conn, models.MsgFrame, bad)

	msg := readUntil(t, conn, models.MsgError)
	assert.Contains(t, string(msg.Payload), "error")
	assert.Equal(t, int64(1), e.api.Metrics.GetFramesRejected())
}

func TestWebSocketClientLimit(t *testing.T) {
	e := newTestEnv(t, "")
	e.api.Hub.maxClients = 1
	conn := dialWS(t, e, "")
	readUntil(t, conn, models.MsgWelcome)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocketRequiresToken(t *testing.T) {
	hash, err := HashToken("tok")
	require.NoError(t, err)
	e := newTestEnv(t, hash)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialWS(t, e, "?token=tok")
	readUntil(t, conn, models.MsgWelcome)
}
