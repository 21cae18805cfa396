//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			workspace UNINDEXED,
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, ws, title, content string) error {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO notes_fts (id, workspace, title, content) VALUES (?, ?, ?, ?)`,
		id, ws, title, content)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

// Search performs an FTS5 full-text search within one workspace.
func (db *DB) Search(ctx context.Context, ws, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id,
		       title,
		       snippet(notes_fts, 3, '<b>', '</b>', '...', 64)
		FROM notes_fts
		WHERE notes_fts MATCH ? AND workspace = ?
		ORDER BY rank
		LIMIT ?
	`, query, ws, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
