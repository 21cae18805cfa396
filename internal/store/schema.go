// Package store persists note records in SQLite and applies outline mutations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	workspace  TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	parent_id  TEXT,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_workspace ON notes(workspace);
CREATE INDEX IF NOT EXISTS idx_notes_group ON notes(workspace, parent_id, position);
`

// DB wraps a sql.DB with note-record operations.
type DB struct {
	conn *sql.DB
	path string

	// lastWrite is the UnixNano of the most recent commit made through this handle.
	lastWrite atomic.Int64
}

// Open opens (or creates) the SQLite database at path and applies the schema.
// parent_id has no foreign key; a record whose parent is gone renders at the root.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) touch() {
	db.lastWrite.Store(time.Now().UnixNano())
}

// wroteWithin reports whether this handle committed within d.
func (db *DB) wroteWithin(d time.Duration) bool {
	last := db.lastWrite.Load()
	return last != 0 && time.Since(time.Unix(0, last)) < d
}
