package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"eyemonitor/go-backend/internal/database"
	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/services"
	"eyemonitor/go-backend/internal/session"
	"eyemonitor/go-backend/internal/vision"
)

// Store is the persistence the REST API reads from. Nil disables the
// persistence endpoints.
type Store interface {
	Ping(ctx context.Context) error
	CreateSession(ctx context.Context, id string, start time.Time) error
	EndSession(ctx context.Context, id string, end time.Time) error
	ListSessions(ctx context.Context, limit int) ([]models.Session, error)
	ListSnapshots(ctx context.Context, limit int) ([]models.SnapshotRecord, error)
	ListAlertEvents(ctx context.Context, limit int) ([]models.AlertEvent, error)
}

type API struct {
	Tracker   *session.Tracker
	Analyzer  *services.Analyzer
	Hub       *Hub
	Metrics   *services.Metrics
	Store     Store
	Scheduler *session.Scheduler
	Auth      *TokenAuth
	Log       *slog.Logger

	CORSOrigins     string
	MaxMessageBytes int64
}

// Routes registers every endpoint on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", a.Auth.Require(a.Hub.ServeWS))

	mux.HandleFunc("/api/health", a.cors(a.handleHealth))
	mux.HandleFunc("/api/metrics", a.cors(a.handleMetrics))
	mux.HandleFunc("/api/stats", a.cors(a.handleStats))
	mux.HandleFunc("/api/alerts", a.cors(a.handleAlerts))
	mux.HandleFunc("/api/history", a.cors(a.handleHistory))
	mux.HandleFunc("/api/history/hourly", a.cors(a.handleHourly))
	mux.HandleFunc("/api/session", a.cors(a.handleSession))
	mux.HandleFunc("/api/sessions", a.cors(a.handleSessions))
	mux.HandleFunc("/api/snapshots", a.cors(a.handleSnapshots))

	mux.HandleFunc("/api/session/start", a.cors(a.Auth.Require(a.handleStart)))
	mux.HandleFunc("/api/session/stop", a.cors(a.Auth.Require(a.handleStop)))
	mux.HandleFunc("/api/session/reset", a.cors(a.Auth.Require(a.handleReset)))
	mux.HandleFunc("/api/detect", a.cors(a.Auth.Require(a.handleDetect)))
}

func (a *API) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.CORSOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg, Timestamp: time.Now().Unix()})
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// statsResponse is shared by the REST and gRPC surfaces.
func statsResponse(t *session.Tracker) models.StatsResponse {
	stats := t.Stats()
	return models.StatsResponse{
		Stats:          stats,
		Alerts:         t.Alerts(),
		Session:        t.Session(),
		BlinkRate:      t.BlinkRate(),
		BlinkStatus:    metrics.BlinkRateStatus(stats.AverageBlinkRate),
		DistanceStatus: metrics.DistanceStatus(stats.AverageDistance),
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	dbStatus := "disabled"
	if a.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus = "ok"
		if err := a.Store.Ping(ctx); err != nil {
			dbStatus = "unavailable"
		}
	}

	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:        "healthy",
		GRPCStatus:    "running",
		HTTPStatus:    "running",
		Database:      dbStatus,
		Tracking:      a.Tracker.Active(),
		ActiveClients: a.Hub.Count(),
		UptimeSec:     int(a.Metrics.Uptime().Seconds()),
		Version:       "1.0",
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	m := a.Metrics.Snapshot()
	m["active_clients"] = a.Hub.Count()
	m["timestamp"] = time.Now().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(a.Tracker))
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp := map[string]interface{}{"alerts": a.Tracker.Alerts()}
	if a.Store != nil {
		events, err := a.Store.ListAlertEvents(r.Context(), queryLimit(r))
		if err != nil {
			a.Log.Error("list alert events failed", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch alert events")
			return
		}
		resp["events"] = events
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	h := a.Tracker.History()
	if n := queryLimit(r); n > 0 && n < len(h) {
		h = h[len(h)-n:]
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) handleHourly(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, metrics.HourlyBlinkRates(a.Tracker.History(), time.Local))
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, a.Tracker.Session())
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if a.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}
	list, err := a.Store.ListSessions(r.Context(), queryLimit(r))
	if err != nil {
		a.Log.Error("list sessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch sessions")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if a.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}
	list, err := a.Store.ListSnapshots(r.Context(), queryLimit(r))
	if err != nil {
		a.Log.Error("list snapshots failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch snapshots")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	wasActive := a.Tracker.Active()
	st := a.Tracker.Start()
	if !wasActive && a.Store != nil {
		if err := a.Store.CreateSession(r.Context(), st.ID, st.StartedAt); err != nil {
			a.Log.Error("could not record session start", "session", st.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if a.Tracker.Active() && a.Scheduler != nil {
		a.Scheduler.FlushNow(r.Context())
	}
	wasActive := a.Tracker.Active()
	st := a.Tracker.Stop()
	if wasActive && a.Store != nil {
		if err := a.Store.EndSession(r.Context(), st.ID, time.Now()); err != nil && !errors.Is(err, database.ErrNotFound) {
			a.Log.Error("could not record session end", "session", st.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	st := a.Tracker.Reset()
	a.Analyzer.ResetAlerts()
	a.Hub.Broadcast(models.MsgStats, statsResponse(a.Tracker))
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if a.MaxMessageBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxMessageBytes)
	}

	var fm models.FrameMessage
	if err := json.NewDecoder(r.Body).Decode(&fm); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := a.Analyzer.Detect(r.Context(), fm.Frame())
	if errors.Is(err, vision.ErrInvalidFrame) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.Log.Error("detect failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := models.DetectResponse{Detected: res != nil}
	if res != nil {
		ev := models.NewSampleEvent(res.Sample, res.Alerts)
		resp.Event = &ev
	}
	writeJSON(w, http.StatusOK, resp)
}
