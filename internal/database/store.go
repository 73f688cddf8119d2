package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eyemonitor/go-backend/internal/metrics"
	"eyemonitor/go-backend/internal/models"
	"eyemonitor/go-backend/internal/session"
)

var (
	ErrNoSnapshot = errors.New("no snapshot stored")
	ErrNotFound   = errors.New("not found")
)

const defaultListLimit = 50

// Store persists sessions, snapshots and alert events. Queries use $n
// placeholders, each used once and in order, which both drivers accept.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context, id string, start time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, start_time, status) VALUES ($1, $2, $3)",
		id, start.UTC(), models.SessionActive,
	)
	if err != nil {
		return fmt.Errorf("could not create session %s: %w", id, err)
	}
	return nil
}

func (s *Store) EndSession(ctx context.Context, id string, end time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET end_time = $1, status = $2 WHERE id = $3",
		end.UTC(), models.SessionCompleted, id,
	)
	if err != nil {
		return fmt.Errorf("could not end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, start_time, end_time, status FROM sessions ORDER BY start_time DESC LIMIT $1",
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var m models.Session
		var end sql.NullTime
		if err := rows.Scan(&m.ID, &m.StartTime, &end, &m.Status); err != nil {
			return nil, fmt.Errorf("could not scan session: %w", err)
		}
		if end.Valid {
			m.EndTime = &end.Time
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveSnapshot implements session.Persister.
func (s *Store) SaveSnapshot(ctx context.Context, snap session.Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (session_id, taken_at, average_blink_rate, average_distance,
			screen_time_minutes, eye_strain_score, total_blink_events)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.SessionID, snap.TakenAt.UTC(), snap.Stats.AverageBlinkRate, snap.Stats.AverageDistance,
		snap.ScreenTimeMinutes, snap.Stats.EyeStrainScore, snap.TotalBlinkEvents,
	)
	if err != nil {
		return fmt.Errorf("could not save snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `id, session_id, taken_at, average_blink_rate, average_distance,
	screen_time_minutes, eye_strain_score, total_blink_events`

func scanSnapshot(sc interface{ Scan(...any) error }) (models.SnapshotRecord, error) {
	var r models.SnapshotRecord
	err := sc.Scan(&r.ID, &r.SessionID, &r.TakenAt, &r.Stats.AverageBlinkRate, &r.Stats.AverageDistance,
		&r.ScreenTimeMinutes, &r.Stats.EyeStrainScore, &r.TotalBlinkEvents)
	r.Stats.TotalScreenTimeMinutes = r.ScreenTimeMinutes
	return r, err
}

// LatestSnapshot returns the most recent snapshot or ErrNoSnapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (session.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+snapshotColumns+" FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1")
	r, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("could not load latest snapshot: %w", err)
	}
	return r.Snapshot, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]models.SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+snapshotColumns+" FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT $1",
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("could not list snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.SnapshotRecord
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PublishAlerts records one alert event per flipped alert.
func (s *Store) PublishAlerts(ctx context.Context, c metrics.AlertChange) error {
	events := models.AlertEvents(c)
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin alert tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO alert_events (session_id, alert, raised, timestamp) VALUES ($1, $2, $3, $4)",
			e.SessionID, e.Alert, e.Raised, e.Timestamp.UTC(),
		); err != nil {
			return fmt.Errorf("could not save alert event: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListAlertEvents(ctx context.Context, limit int) ([]models.AlertEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, alert, raised, timestamp FROM alert_events ORDER BY timestamp DESC, id DESC LIMIT $1",
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("could not list alert events: %w", err)
	}
	defer rows.Close()

	var out []models.AlertEvent
	for rows.Next() {
		var e models.AlertEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Alert, &e.Raised, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("could not scan alert event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return min(n, 1000)
}
