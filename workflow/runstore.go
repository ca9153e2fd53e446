package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acclab/go-sdl-utils/store"
)

// ErrRunNotFound indicates that no persisted state exists for the run ID.
var ErrRunNotFound = errors.New("flow run not found")

// RunStore persists flow run states across process restarts.
type RunStore interface {
	// Save inserts or updates the state of one run.
	Save(ctx context.Context, state *RunState) error
	// Load returns the persisted state of one run.
	Load(ctx context.Context, id string) (*RunState, error)
}

const runSchema = `
CREATE TABLE IF NOT EXISTS flow_runs (
	id          TEXT PRIMARY KEY,
	flow        TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	error       TEXT
)`

// SQLRunStore persists run states into the local SQLite database.
type SQLRunStore struct {
	db *store.DB
}

var _ RunStore = (*SQLRunStore)(nil)

// NewSQLRunStore creates a run store backed by db, creating the flow_runs
// table if it does not exist.
func NewSQLRunStore(ctx context.Context, db *store.DB) (*SQLRunStore, error) {
	if db == nil {
		return nil, errors.New("store db is nil")
	}

	if _, err := db.Execute(ctx, runSchema); err != nil {
		return nil, fmt.Errorf("create flow_runs table: %w", err)
	}

	return &SQLRunStore{db: db}, nil
}

// Save inserts or updates the state of one run.
func (s *SQLRunStore) Save(ctx context.Context, state *RunState) error {
	finishedAt := ""
	if !state.FinishedAt.IsZero() {
		finishedAt = state.FinishedAt.Format(time.RFC3339Nano)
	}

	_, err := s.db.Execute(ctx, `
		INSERT INTO flow_runs (id, flow, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			error = excluded.error`,
		state.ID, state.Flow, string(state.Status),
		state.StartedAt.Format(time.RFC3339Nano), finishedAt, state.Error,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.ID, err)
	}

	return nil
}

// Load returns the persisted state of one run.
func (s *SQLRunStore) Load(ctx context.Context, id string) (*RunState, error) {
	var (
		state      RunState
		status     string
		startedAt  string
		finishedAt sql.NullString
		runErr     sql.NullString
	)

	row := s.db.QueryRow(ctx,
		`SELECT id, flow, status, started_at, finished_at, error FROM flow_runs WHERE id = ?`, id)

	err := row.Scan(&state.ID, &state.Flow, &status, &startedAt, &finishedAt, &runErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	state.Status = RunStatus(status)

	if state.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at of run %s: %w", id, err)
	}

	if finishedAt.Valid && finishedAt.String != "" {
		if state.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt.String); err != nil {
			return nil, fmt.Errorf("parse finished_at of run %s: %w", id, err)
		}
	}

	if runErr.Valid {
		state.Error = runErr.String
	}

	return &state, nil
}
