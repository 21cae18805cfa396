// Package testutil provides shared test helpers for setting up stores and outlines.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/store"
)

// TestDB creates a temporary SQLite store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "dagaz-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Note builds a record; an empty parent makes it a root.
func Note(id, parent string, pos int) models.Note {
	return models.Note{ID: id, Title: "Note " + id, ParentID: models.Ref(parent), Position: pos}
}

// Seed inserts notes into ws in the given order.
func Seed(t *testing.T, db *store.DB, ws string, notes ...models.Note) {
	t.Helper()
	for _, n := range notes {
		if _, err := db.Create(context.Background(), ws, n); err != nil {
			t.Fatalf("seed %s: %v", n.ID, err)
		}
	}
}

// SampleTree seeds the outline
//
//	1
//	  2
//	    3
//	  4
//	5
//
// and returns the store.
func SampleTree(t *testing.T, ws string) *store.DB {
	t.Helper()
	db := TestDB(t)
	Seed(t, db, ws,
		Note("1", "", 0),
		Note("2", "1", 0),
		Note("3", "2", 0),
		Note("4", "1", 1),
		Note("5", "", 1),
	)
	return db
}
