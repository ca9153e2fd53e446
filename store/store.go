// Package store wraps a local SQLite database behind the execute/query
// contract the SDL utilities use for on-device persistence.
//
// The driver is modernc.org/sqlite, a pure-Go build that keeps the toolchain
// cgo-free on constrained devices such as a Raspberry Pi Zero.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/acclab/go-sdl-utils/logger"
)

// ErrClosed indicates that the database handle has been closed.
var ErrClosed = errors.New("store is closed")

// DB is a thin handle over one SQLite database file.
type DB struct {
	db     *sql.DB
	path   string
	logger logger.Logger
	closed bool
}

// Open opens (creating if necessary) the SQLite database at path.
//
// WAL journaling and a busy timeout are enabled so a reader and the single
// writer can coexist.
func Open(path string, l logger.Logger) (*DB, error) {
	if l == nil {
		l = logger.GetLogger()
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	// SQLite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY on concurrent task state updates.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database %s: %w", path, err)
	}

	l.Debug("sqlite database opened", "path", path)

	return &DB{db: db, path: path, logger: l}, nil
}

// Execute runs a statement that does not return rows and reports the number
// of rows affected.
func (d *DB) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	if d.closed {
		return 0, ErrClosed
	}

	res, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("execute statement: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}

// Query runs a statement that returns rows and invokes scan once per row.
// Iteration stops at the first scan error.
func (d *DB) Query(ctx context.Context, scan func(rows *sql.Rows) error, stmt string, args ...any) error {
	if d.closed {
		return ErrClosed
	}

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("query statement: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	return nil
}

// QueryRow runs a statement expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, stmt string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, stmt, args...)
}

// Close releases the database handle. It is safe to call multiple times.
func (d *DB) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	d.logger.Debug("sqlite database closed", "path", d.path)

	return d.db.Close()
}
