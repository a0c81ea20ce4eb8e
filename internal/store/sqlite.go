package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tdewey/xhrsim/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    status         TEXT NOT NULL,
    mode           TEXT NOT NULL,
    registration   TEXT NOT NULL,
    profile        TEXT NOT NULL,
    outcome        TEXT NOT NULL,
    terminal_event TEXT,
    final_status   INTEGER,
    error          TEXT,
    timeout_ms     INTEGER,
    progress_ticks INTEGER,
    status_code    INTEGER,
    event_count    INTEGER,
    duration_ms    INTEGER,
    created_at     DATETIME NOT NULL,
    started_at     DATETIME,
    finished_at    DATETIME
)`

const createTraceEventsTable = `
CREATE TABLE IF NOT EXISTS trace_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    event       TEXT NOT NULL,
    ready_state INTEGER NOT NULL,
    status      INTEGER NOT NULL,
    created_at  DATETIME NOT NULL
)`

const createTraceEventsIndex = `
CREATE INDEX IF NOT EXISTS idx_trace_events_run_seq ON trace_events (run_id, seq)`

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRunsTable, createTraceEventsTable, createTraceEventsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migration: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
			id, status, mode, registration, profile, outcome,
			terminal_event, final_status, error, timeout_ms, progress_ticks,
			status_code, event_count, duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.Mode, r.Registration, r.Profile, r.Outcome,
		r.TerminalEvent, r.FinalStatus, r.Error, r.TimeoutMS, r.ProgressTicks,
		r.StatusCode, r.EventCount, r.DurationMS, r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r := &model.Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, mode, registration, profile, outcome,
			terminal_event, final_status, error, timeout_ms, progress_ticks,
			status_code, event_count, duration_ms, created_at, started_at, finished_at
		FROM runs WHERE id = ?`, id,
	).Scan(
		&r.ID, &r.Status, &r.Mode, &r.Registration, &r.Profile, &r.Outcome,
		&r.TerminalEvent, &r.FinalStatus, &r.Error, &r.TimeoutMS, &r.ProgressTicks,
		&r.StatusCode, &r.EventCount, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns a paginated list of runs ordered by created_at DESC,
// along with the total count of all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, status, mode, registration, profile, outcome,
			terminal_event, final_status, error, timeout_ms, progress_ticks,
			status_code, event_count, duration_ms, created_at, started_at, finished_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r := &model.Run{}
		if err := rows.Scan(
			&r.ID, &r.Status, &r.Mode, &r.Registration, &r.Profile, &r.Outcome,
			&r.TerminalEvent, &r.FinalStatus, &r.Error, &r.TimeoutMS, &r.ProgressTicks,
			&r.StatusCode, &r.EventCount, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// UpdateRunStatus updates the status of a run after validating the
// transition. For terminal statuses it also sets finished_at.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM runs WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read run status: %w", err)
	}

	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%s -> %s: %w", current, status, ErrInvalidTransition)
	}

	if status == model.RunCompleted || status == model.RunFailed {
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE runs SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// UpdateRun updates the result fields of a run.
func (s *SQLiteStore) UpdateRun(ctx context.Context, r *model.Run) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			status = ?, terminal_event = ?, final_status = ?, error = ?,
			event_count = ?, duration_ms = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		r.Status, r.TerminalEvent, r.FinalStatus, r.Error,
		r.EventCount, r.DurationMS, r.StartedAt, r.FinishedAt,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetRunStats aggregates run statistics.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		CountByStatus:   make(map[string]int),
		CountByTerminal: make(map[string]int),
		CountByProfile:  make(map[string]int),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM runs",
	).Scan(&stats.Total, &stats.AvgDurationMS); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	groups := []struct {
		query string
		into  map[string]int
	}{
		{"SELECT status, COUNT(*) FROM runs GROUP BY status", stats.CountByStatus},
		{"SELECT terminal_event, COUNT(*) FROM runs WHERE terminal_event != '' GROUP BY terminal_event", stats.CountByTerminal},
		{"SELECT profile, COUNT(*) FROM runs GROUP BY profile", stats.CountByProfile},
	}
	for _, g := range groups {
		rows, err := tx.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("group runs: %w", err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan group: %w", err)
			}
			g.into[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate group: %w", err)
		}
		rows.Close()
	}

	return stats, nil
}

// InsertTraceEvent appends one fired event to a run's trace.
func (s *SQLiteStore) InsertTraceEvent(ctx context.Context, ev *model.TraceEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trace_events (run_id, seq, event, ready_state, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Seq, ev.Event, ev.ReadyState, ev.Status, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trace event: %w", err)
	}
	return nil
}

// GetTraceEvents returns a run's trace ordered by sequence number.
func (s *SQLiteStore) GetTraceEvents(ctx context.Context, runID string) ([]model.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seq, event, ready_state, status, created_at
		FROM trace_events WHERE run_id = ? ORDER BY seq ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get trace events: %w", err)
	}
	defer rows.Close()

	var events []model.TraceEvent
	for rows.Next() {
		var ev model.TraceEvent
		if err := rows.Scan(
			&ev.ID, &ev.RunID, &ev.Seq, &ev.Event, &ev.ReadyState, &ev.Status, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}

	return events, nil
}
