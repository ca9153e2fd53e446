package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "sdl.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestExecuteAndQuery(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Execute(ctx, `CREATE TABLE runs (id TEXT PRIMARY KEY, status TEXT NOT NULL)`)
	require.NoError(err)

	affected, err := db.Execute(ctx, `INSERT INTO runs (id, status) VALUES (?, ?)`, "run-1", "completed")
	require.NoError(err)
	require.Equal(int64(1), affected)

	affected, err = db.Execute(ctx, `INSERT INTO runs (id, status) VALUES (?, ?)`, "run-2", "failed")
	require.NoError(err)
	require.Equal(int64(1), affected)

	var ids []string
	err = db.Query(ctx, func(rows *sql.Rows) error {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}, `SELECT id, status FROM runs ORDER BY id`)
	require.NoError(err)
	require.Equal([]string{"run-1", "run-2"}, ids)

	var status string
	err = db.QueryRow(ctx, `SELECT status FROM runs WHERE id = ?`, "run-2").Scan(&status)
	require.NoError(err)
	require.Equal("failed", status)
}

func TestQueryRowNoRows(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Execute(ctx, `CREATE TABLE runs (id TEXT PRIMARY KEY)`)
	require.NoError(err)

	var id string
	err = db.QueryRow(ctx, `SELECT id FROM runs WHERE id = ?`, "missing").Scan(&id)
	require.ErrorIs(err, sql.ErrNoRows)
}

func TestCloseIdempotent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(db.Close())
	require.NoError(db.Close())

	_, err := db.Execute(ctx, `CREATE TABLE runs (id TEXT PRIMARY KEY)`)
	require.ErrorIs(err, ErrClosed)

	err = db.Query(ctx, func(rows *sql.Rows) error { return nil }, `SELECT 1`)
	require.ErrorIs(err, ErrClosed)
}

func TestOpenReopensExistingFile(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sdl.db")

	db, err := Open(path, nil)
	require.NoError(err)

	_, err = db.Execute(ctx, `CREATE TABLE readings (ts INTEGER, value REAL)`)
	require.NoError(err)
	_, err = db.Execute(ctx, `INSERT INTO readings (ts, value) VALUES (1, 20.5)`)
	require.NoError(err)
	require.NoError(db.Close())

	db, err = Open(path, nil)
	require.NoError(err)
	defer func() { _ = db.Close() }()

	var value float64
	err = db.QueryRow(ctx, `SELECT value FROM readings WHERE ts = 1`).Scan(&value)
	require.NoError(err)
	require.Equal(20.5, value)
}
