package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"eyemonitor/go-backend/internal/config"
	"eyemonitor/go-backend/internal/database"
	"eyemonitor/go-backend/internal/logging"
	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/session"
	"eyemonitor/go-backend/internal/synth"
	"eyemonitor/go-backend/internal/vision"
)

var epoch = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	api   *API
	store *database.Store
	grpc  *GRPCHandler
	srv   *httptest.Server
}

func newTestEnv(t *testing.T, tokenHash string) *testEnv {
	t.Helper()
	log := logging.Discard()
	ctx, cancel := context.WithCancel(context.Background())

	db, err := database.Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, "sqlite3"))
	store := database.NewStore(db)

	tr, err := session.NewTracker(config.DefaultPipeline(), log)
	require.NoError(t, err)
	m := services.NewMetrics()
	analyzer := services.NewAnalyzer(tr, services.NewFrameMailbox(), m, log)
	hub := NewHub(analyzer, m, log, 10, 4<<20)
	gh := NewGRPCHandler(tr, analyzer, log)
	analyzer.AddSampleSink(hub)
	analyzer.AddSampleSink(gh)
	analyzer.AddAlertSink(hub)
	analyzer.AddAlertSink(store)

	api := &API{
		Tracker:         tr,
		Analyzer:        analyzer,
		Hub:             hub,
		Metrics:         m,
		Store:           store,
		Scheduler:       session.NewScheduler(tr, store, time.Minute, log),
		Auth:            NewTokenAuth(tokenHash),
		Log:             log,
		CORSOrigins:     "*",
		MaxMessageBytes: 4 << 20,
	}
	mux := http.NewServeMux()
	api.Routes(mux)
	srv := httptest.NewServer(mux)

	go analyzer.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.CloseAll()
		srv.Close()
		store.Close()
	})
	return &testEnv{api: api, store: store, grpc: gh, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func frameBody(t *testing.T, f *vision.Frame) []byte {
	t.Helper()
	raw, err := json.Marshal(models.NewFrameMessage(f))
	require.NoError(t, err)
	return raw
}

func faceFrame(i int) *vision.Frame {
	return synth.Frame(320, 240, synth.DefaultFace, true, epoch.Add(time.Duration(i)*33*time.Millisecond))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, "")

	resp := e.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[models.HealthStatus](t, resp)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "ok", h.Database)
	assert.False(t, h.Tracking)

	resp = e.do(t, http.MethodPost, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t, "")
	resp := e.do(t, http.MethodOptions, "/api/session/start", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionLifecycle(t *testing.T) {
	e := newTestEnv(t, "")
	ctx := context.Background()

	resp := e.do(t, http.MethodPost, "/api/session/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[session.State](t, resp)
	assert.True(t, started.Active)
	require.NotEmpty(t, started.ID)

	again := decode[session.State](t, e.do(t, http.MethodPost, "/api/session/start", nil))
	assert.Equal(t, started.ID, again.ID)

	e.do(t, http.MethodPost, "/api/detect", frameBody(t, faceFrame(0)))

	resp = e.do(t, http.MethodPost, "/api/session/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[session.State](t, resp).Active)

	sessions, err := e.store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, started.ID, sessions[0].ID)
	assert.Equal(t, models.SessionCompleted, sessions[0].Status)

	snaps := decode[[]models.SnapshotRecord](t, e.do(t, http.MethodGet, "/api/snapshots?limit=5", nil))
	require.Len(t, snaps, 1)
	assert.Equal(t, started.ID, snaps[0].SessionID)

	list := decode[[]models.Session](t, e.do(t, http.MethodGet, "/api/sessions", nil))
	assert.Len(t, list, 1)

	resp = e.do(t, http.MethodGet, "/api/session/start", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDetect(t *testing.T) {
	e := newTestEnv(t, "")

	resp := e.do(t, http.MethodPost, "/api/detect", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad := faceFrame(0)
	bad.Pix = bad.Pix[:10]
	resp = e.do(t, http.MethodPost, "/api/detect", frameBody(t, bad))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	untimed := models.NewFrameMessage(faceFrame(0))
	untimed.Timestamp = 0
	raw, err := json.Marshal(untimed)
	require.NoError(t, err)
	resp = e.do(t, http.MethodPost, "/api/detect", raw)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing capture timestamp")

	resp = e.do(t, http.MethodPost, "/api/detect", frameBody(t, faceFrame(1)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.DetectResponse](t, resp).Detected, "not tracking")

	e.do(t, http.MethodPost, "/api/session/start", nil)
	resp = e.do(t, http.MethodPost, "/api/detect", frameBody(t, faceFrame(2)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[models.DetectResponse](t, resp)
	require.True(t, out.Detected)
	require.NotNil(t, out.Event)
	assert.InDelta(t, 36.2, out.Event.Sample.DistanceCm, 0.01)
	assert.Equal(t, metrics.StatusTooClose, out.Event.DistanceStatus)
	assert.True(t, out.Event.Alerts.TooCloseToScreen)

	alerts := decode[map[string]json.RawMessage](t, e.do(t, http.MethodGet, "/api/alerts", nil))
	var events []models.AlertEvent
	require.NoError(t, json.Unmarshal(alerts["events"], &events))
	require.Len(t, events, 1)
	assert.Equal(t, metrics.AlertTooCloseToScreen, events[0].Alert)
}

func TestStatsHistoryAndReset(t *testing.T) {
	e := newTestEnv(t, "")
	e.do(t, http.MethodPost, "/api/session/start", nil)
	for i := 0; i < 3; i++ {
		e.do(t, http.MethodPost, "/api/detect", frameBody(t, faceFrame(i)))
	}
	e.api.Tracker.TickMinute()

	stats := decode[models.StatsResponse](t, e.do(t, http.MethodGet, "/api/stats", nil))
	assert.Equal(t, 1, stats.Stats.TotalScreenTimeMinutes)
	assert.Equal(t, 75, stats.Stats.EyeStrainScore)
	assert.Equal(t, metrics.StatusGood, stats.BlinkStatus)
	assert.True(t, stats.Session.Active)

	history := decode[[]metrics.Sample](t, e.do(t, http.MethodGet, "/api/history", nil))
	assert.Len(t, history, 3)
	history = decode[[]metrics.Sample](t, e.do(t, http.MethodGet, "/api/history?limit=2", nil))
	assert.Len(t, history, 2)

	hourly := decode[[]metrics.HourlyRate](t, e.do(t, http.MethodGet, "/api/history/hourly", nil))
	require.Len(t, hourly, 1)
	assert.Equal(t, 3, hourly[0].Samples)

	st := decode[session.State](t, e.do(t, http.MethodPost, "/api/session/reset", nil))
	assert.True(t, st.Active)
	assert.Zero(t, st.ScreenTimeMinutes)
	assert.Empty(t, decode[[]metrics.Sample](t, e.do(t, http.MethodGet, "/api/history", nil)))

	sess := decode[session.State](t, e.do(t, http.MethodGet, "/api/session", nil))
	assert.Equal(t, st, sess)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, "")
	e.do(t, http.MethodPost, "/api/detect", frameBody(t, faceFrame(0)))

	m := decode[map[string]interface{}](t, e.do(t, http.MethodGet, "/api/metrics", nil))
	assert.Equal(t, 1.0, m["frames_received"])
	assert.Equal(t, 0.0, m["active_clients"])
}

func TestTokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	e := newTestEnv(t, string(hash))

	resp := e.do(t, http.MethodPost, "/api/session/start", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/session/start", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/session/start", nil, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/session/stop?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "read endpoints stay open")
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("abc")
	require.NoError(t, err)
	a := NewTokenAuth(hash)
	assert.True(t, a.Valid("abc"))
	assert.True(t, a.Valid("abc"))
	assert.False(t, a.Valid("abd"))
	assert.False(t, a.Valid(""))
	assert.Nil(t, NewTokenAuth(""))
}
