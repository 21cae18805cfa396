package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "dagaz-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB, ws string, notes ...models.Note) {
	t.Helper()
	for _, n := range notes {
		if _, err := db.Create(context.Background(), ws, n); err != nil {
			t.Fatalf("Create %s: %v", n.ID, err)
		}
	}
}

func note(id, parent string, pos int) models.Note {
	return models.Note{ID: id, Title: "Note " + id, ParentID: models.Ref(parent), Position: pos}
}

// order returns the ids of a sibling group in listing order.
func order(t *testing.T, db *DB, ws, parent string) []string {
	t.Helper()
	notes, err := db.List(context.Background(), ws)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []string
	for _, n := range notes {
		if n.ParentKey() == parent {
			out = append(out, n.ID)
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	created, err := db.Create(ctx, "ws", models.Note{Title: "Hello", Content: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := db.Get(ctx, "ws", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Hello" || got.Content != "body" || got.ParentID != nil {
		t.Errorf("unexpected note: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not persisted")
	}

	if _, err := db.Get(ctx, "other", created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("notes are scoped by workspace, got %v", err)
	}
	if _, err := db.Create(ctx, "ws", models.Note{ID: created.ID}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_EmptyParentIsRoot(t *testing.T) {
	db := testDB(t)
	empty := ""
	seed(t, db, "ws", models.Note{ID: "a", ParentID: &empty})

	got, err := db.Get(context.Background(), "ws", "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.ParentID != nil {
		t.Errorf("empty parent should be stored as NULL, got %q", *got.ParentID)
	}
}

func TestList_TieBreak(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Ties can only come from rows written outside Create.
	for i, r := range []struct {
		id  string
		pos int
	}{{"b", 0}, {"a", 0}, {"c", -1}} {
		at := base.Add(time.Duration(i) * time.Second)
		if _, err := db.conn.Exec(`
			INSERT INTO notes (id, workspace, title, content, parent_id, position, created_at, updated_at)
			VALUES (?, 'ws', '', '', NULL, ?, ?, ?)
		`, r.id, r.pos, at, at); err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}

	// Equal positions fall back to creation order.
	if got := order(t, db, "ws", ""); !equal(got, []string{"c", "b", "a"}) {
		t.Errorf("order = %v", got)
	}
}

func TestCreate_ShiftsSiblingsAtPosition(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws", note("a", "", 0), note("b", "", 0), note("c", "a", 0))

	if got := order(t, db, "ws", ""); !equal(got, []string{"b", "a"}) {
		t.Fatalf("order = %v", got)
	}
	a, _ := db.Get(ctx, "ws", "a")
	if a.Position != 1 {
		t.Errorf("a.Position = %d, want 1", a.Position)
	}
	// Other groups are untouched.
	if c, _ := db.Get(ctx, "ws", "c"); c.Position != 0 {
		t.Errorf("c.Position = %d, want 0", c.Position)
	}

	notes, _ := db.List(ctx, "ws")
	plan, err := outline.PlanMove(notes, "a", outline.OpMoveUp)
	if err != nil {
		t.Fatalf("PlanMove: %v", err)
	}
	if err := db.Apply(ctx, "ws", plan.Mutation, Revision(notes)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := order(t, db, "ws", ""); !equal(got, []string{"a", "b"}) {
		t.Errorf("order after move up = %v", got)
	}
}

func TestNextPosition(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if pos, _ := db.NextPosition(ctx, "ws", nil); pos != 0 {
		t.Errorf("empty group: got %d", pos)
	}
	seed(t, db, "ws", note("a", "", 0), note("b", "", 4), note("c", "a", 7))

	if pos, _ := db.NextPosition(ctx, "ws", nil); pos != 5 {
		t.Errorf("root group: got %d, want 5", pos)
	}
	if pos, _ := db.NextPosition(ctx, "ws", models.Ref("a")); pos != 8 {
		t.Errorf("child group: got %d, want 8", pos)
	}
}

func TestUpdateContent_IfMatch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws", note("a", "", 0))

	cur, _ := db.Get(ctx, "ws", "a")
	if _, err := db.UpdateContent(ctx, "ws", "a", "T", "C", "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	updated, err := db.UpdateContent(ctx, "ws", "a", "T", "C", ContentChecksum(*cur))
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if updated.Title != "T" || updated.Content != "C" {
		t.Errorf("unexpected update: %+v", updated)
	}
	if _, err := db.UpdateContent(ctx, "ws", "missing", "", "", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApply_Swap(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws", note("1", "", 0), note("2", "", 1), note("3", "", 2))

	m := outline.Mutation{ID: "3", Position: 1, Displaced: &outline.Displacement{ID: "2", Position: 2}}
	if err := db.Apply(ctx, "ws", m, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := order(t, db, "ws", ""); !equal(got, []string{"1", "3", "2"}) {
		t.Errorf("order = %v", got)
	}
}

func TestApply_InsertShiftsTargetGroup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws",
		note("1", "", 0), note("2", "", 1),
		note("3", "1", 0), note("4", "1", 1))

	// Promote 3 to sit right after its parent.
	m := outline.Mutation{ID: "3", ParentID: nil, Position: 1}
	if err := db.Apply(ctx, "ws", m, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := order(t, db, "ws", ""); !equal(got, []string{"1", "3", "2"}) {
		t.Errorf("root order = %v", got)
	}
	if got := order(t, db, "ws", "1"); !equal(got, []string{"4"}) {
		t.Errorf("child order = %v", got)
	}

	// Demote 2 under 3 as first child.
	m = outline.Mutation{ID: "2", ParentID: models.Ref("3"), Position: 0}
	if err := db.Apply(ctx, "ws", m, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := db.Get(ctx, "ws", "2")
	if got.ParentKey() != "3" || got.Position != 0 {
		t.Errorf("demoted note = %+v", got)
	}
}

func TestApply_StaleRevision(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws", note("1", "", 0), note("2", "", 1))

	notes, _ := db.List(ctx, "ws")
	rev := Revision(notes)

	// Another writer reorders first.
	if err := db.Apply(ctx, "ws", outline.Mutation{ID: "2", Position: 0}, ""); err != nil {
		t.Fatal(err)
	}
	err := db.Apply(ctx, "ws", outline.Mutation{ID: "1", Position: 5}, rev)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got, _ := db.Get(ctx, "ws", "1"); got.Position == 5 {
		t.Error("stale intent must not be written")
	}
}

func TestApply_Missing(t *testing.T) {
	db := testDB(t)
	err := db.Apply(context.Background(), "ws", outline.Mutation{ID: "ghost"}, "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevision_IgnoresContent(t *testing.T) {
	a := []models.Note{note("1", "", 0), note("2", "1", 0)}
	b := []models.Note{note("2", "1", 0), note("1", "", 0)}
	b[0].Content = "edited"
	if Revision(a) != Revision(b) {
		t.Error("revision should depend on shape only")
	}
	b[0].Position = 1
	if Revision(a) == Revision(b) {
		t.Error("position change must change the revision")
	}
}

func TestDelete_Cascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws",
		note("1", "", 0), note("2", "1", 0), note("3", "2", 0),
		note("4", "", 1))

	n, err := db.Delete(ctx, "ws", "1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
	notes, _ := db.List(ctx, "ws")
	if len(notes) != 1 || notes[0].ID != "4" {
		t.Errorf("remaining = %+v", notes)
	}
	if _, err := db.Delete(ctx, "ws", "1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seed(t, db, "ws",
		models.Note{ID: "a", Title: "Groceries", Content: "buy apples"},
		models.Note{ID: "b", Title: "Work", Content: "ship release"})
	seed(t, db, "other", models.Note{ID: "c", Title: "Apples elsewhere"})

	res, err := db.Search(ctx, "ws", "apples", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].ID != "a" {
		t.Errorf("results = %+v", res)
	}
}
