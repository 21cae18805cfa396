package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/checksum"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

const noteColumns = `id, title, content, parent_id, position, created_at, updated_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (models.Note, error) {
	var (
		n      models.Note
		parent sql.NullString
	)
	if err := r.Scan(&n.ID, &n.Title, &n.Content, &parent, &n.Position, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return models.Note{}, err
	}
	if parent.Valid {
		n.ParentID = models.Ref(parent.String)
	}
	return n, nil
}

// nullable maps a parent reference to a SQL value; nil and "" both become NULL.
func nullable(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func listNotes(ctx context.Context, q queryer, ws string) ([]models.Note, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE workspace = ?
		ORDER BY position, created_at, id
	`, ws)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func getNote(ctx context.Context, q queryer, ws, id string) (*models.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE workspace = ? AND id = ?`, ws, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return &n, nil
}

// List returns every record in the workspace ordered by position, then
// creation time, then id.
func (db *DB) List(ctx context.Context, ws string) ([]models.Note, error) {
	return listNotes(ctx, db.conn, ws)
}

// Get returns a single record.
func (db *DB) Get(ctx context.Context, ws, id string) (*models.Note, error) {
	return getNote(ctx, db.conn, ws, id)
}

// NextPosition returns one past the highest position in the sibling group.
func (db *DB) NextPosition(ctx context.Context, ws string, parentID *string) (int, error) {
	var next int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0)
		FROM notes
		WHERE workspace = ? AND parent_id IS ?
	`, ws, nullable(parentID)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("store: next position: %w", err)
	}
	return next, nil
}

// Create inserts a record. An empty ID is filled with a random UUID.
// Siblings at or after the new position shift up by one.
func (db *DB) Create(ctx context.Context, ws string, n models.Note) (*models.Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	n.ParentID = models.Ref(n.ParentKey())

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Open a gap so the new note never ties with a sibling.
	if _, err := tx.ExecContext(ctx, `
		UPDATE notes SET position = position + 1
		WHERE workspace = ? AND parent_id IS ? AND position >= ?
	`, ws, nullable(n.ParentID), n.Position); err != nil {
		return nil, fmt.Errorf("store: shift siblings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, workspace, title, content, parent_id, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, ws, n.Title, n.Content, nullable(n.ParentID), n.Position, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("store: note %s: %w", n.ID, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: insert note: %w", err)
	}
	if err := ftsUpsert(tx, n.ID, ws, n.Title, n.Content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	db.touch()
	return &n, nil
}

// UpdateContent replaces title and content. A non-empty ifMatch must equal the
// record's current ContentChecksum, otherwise apperr.ErrConflict is returned.
func (db *DB) UpdateContent(ctx context.Context, ws, id, title, content, ifMatch string) (*models.Note, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	cur, err := getNote(ctx, tx, ws, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ContentChecksum(*cur) != ifMatch {
		return nil, fmt.Errorf("store: note %s: checksum mismatch: %w", id, apperr.ErrConflict)
	}

	cur.Title, cur.Content, cur.UpdatedAt = title, content, time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE workspace = ? AND id = ?`,
		cur.Title, cur.Content, cur.UpdatedAt, ws, id); err != nil {
		return nil, fmt.Errorf("store: update note: %w", err)
	}
	if err := ftsUpsert(tx, id, ws, title, content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	db.touch()
	return cur, nil
}

// Apply persists a reorder intent atomically.
//
// A non-empty revision must match Revision of the workspace as it is when the
// transaction starts; otherwise apperr.ErrStaleSnapshot is returned and nothing is
// written. A swap writes both halves. Any other intent opens a gap in the
// target group by shifting siblings at or after Position up by one.
func (db *DB) Apply(ctx context.Context, ws string, m outline.Mutation, revision string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	notes, err := listNotes(ctx, tx, ws)
	if err != nil {
		return err
	}
	if revision != "" && Revision(notes) != revision {
		return fmt.Errorf("store: apply %s: %w", m.ID, apperr.ErrStaleSnapshot)
	}
	if !slices.ContainsFunc(notes, func(n models.Note) bool { return n.ID == m.ID }) {
		return fmt.Errorf("store: note %s: %w", m.ID, apperr.ErrNotFound)
	}

	if d := m.Displaced; d != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET position = ? WHERE workspace = ? AND id = ?`, d.Position, ws, d.ID)
		if err != nil {
			return fmt.Errorf("store: displace %s: %w", d.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("store: note %s: %w", d.ID, apperr.ErrNotFound)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE notes SET position = position + 1
			WHERE workspace = ? AND parent_id IS ? AND position >= ? AND id <> ?
		`, ws, nullable(m.ParentID), m.Position, m.ID); err != nil {
			return fmt.Errorf("store: shift siblings: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE notes SET parent_id = ?, position = ? WHERE workspace = ? AND id = ?`,
		nullable(m.ParentID), m.Position, ws, m.ID); err != nil {
		return fmt.Errorf("store: move %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	db.touch()
	return nil
}

// Delete removes a record together with all of its descendants and returns
// how many records were removed.
func (db *DB) Delete(ctx context.Context, ws, id string) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	notes, err := listNotes(ctx, tx, ws)
	if err != nil {
		return 0, err
	}
	if !slices.ContainsFunc(notes, func(n models.Note) bool { return n.ID == id }) {
		return 0, fmt.Errorf("store: note %s: %w", id, apperr.ErrNotFound)
	}

	ids := append([]string{id}, outline.Descendants(notes, id)...)
	args := make([]any, 0, len(ids)+1)
	args = append(args, ws)
	for _, x := range ids {
		args = append(args, x)
		ftsDelete(tx, x)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE workspace = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete: %w", err)
	}
	removed, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	db.touch()
	return int(removed), nil
}

// Revision fingerprints the tree shape of a record list: every id with its
// parent and position. Content edits do not change it.
func Revision(notes []models.Note) string {
	sorted := slices.Clone(notes)
	slices.SortFunc(sorted, func(a, b models.Note) int { return strings.Compare(a.ID, b.ID) })
	fields := make([]string, 0, 3*len(sorted))
	for _, n := range sorted {
		fields = append(fields, n.ID, n.ParentKey(), strconv.Itoa(n.Position))
	}
	return checksum.Fields(fields...)
}

// ContentChecksum is the If-Match token for a record's editable content.
func ContentChecksum(n models.Note) string {
	return checksum.Fields(n.Title, n.Content)
}
