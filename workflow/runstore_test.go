package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acclab/go-sdl-utils/store"
)

func newTestRunStore(t *testing.T) *SQLRunStore {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rs, err := NewSQLRunStore(context.Background(), db)
	require.NoError(t, err)

	return rs
}

func TestSQLRunStoreSaveAndLoad(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rs := newTestRunStore(t)

	started := time.Now().UTC().Truncate(time.Millisecond)
	state := &RunState{
		ID:        "run-abc",
		Flow:      "calibration",
		Status:    StatusRunning,
		StartedAt: started,
	}
	require.NoError(rs.Save(ctx, state))

	loaded, err := rs.Load(ctx, "run-abc")
	require.NoError(err)
	require.Equal("run-abc", loaded.ID)
	require.Equal("calibration", loaded.Flow)
	require.Equal(StatusRunning, loaded.Status)
	require.True(loaded.StartedAt.Equal(started))
	require.True(loaded.FinishedAt.IsZero())
	require.Empty(loaded.Error)
}

func TestSQLRunStoreUpsert(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rs := newTestRunStore(t)

	state := &RunState{
		ID:        "run-xyz",
		Flow:      "sampling",
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(rs.Save(ctx, state))

	state.Status = StatusFailed
	state.FinishedAt = time.Now().UTC()
	state.Error = "task read-sensor: sensor offline"
	require.NoError(rs.Save(ctx, state))

	loaded, err := rs.Load(ctx, "run-xyz")
	require.NoError(err)
	require.Equal(StatusFailed, loaded.Status)
	require.False(loaded.FinishedAt.IsZero())
	require.Equal("task read-sensor: sensor offline", loaded.Error)
}

func TestSQLRunStoreLoadMissing(t *testing.T) {
	require := require.New(t)
	rs := newTestRunStore(t)

	_, err := rs.Load(context.Background(), "no-such-run")
	require.ErrorIs(err, ErrRunNotFound)
}

func TestNewSQLRunStoreNilDB(t *testing.T) {
	_, err := NewSQLRunStore(context.Background(), nil)
	require.Error(t, err)
}

func TestRunnerPersistsThroughStore(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	rs := newTestRunStore(t)

	runner := NewRunner(rs, nil)

	flow := NewFlow("persisted",
		Task{Name: "fail", Run: func(ctx context.Context) (any, error) {
			return nil, errors.New("broken")
		}},
	)

	state, err := runner.Run(ctx, flow)
	require.Error(err)

	loaded, err := rs.Load(ctx, state.ID)
	require.NoError(err)
	require.Equal(StatusFailed, loaded.Status)
	require.Contains(loaded.Error, "broken")
}
