package store

import (
	"context"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
)

// NoteStore is the record store consumed by the note service.
type NoteStore interface {
	List(ctx context.Context, ws string) ([]models.Note, error)
	Get(ctx context.Context, ws, id string) (*models.Note, error)
	Create(ctx context.Context, ws string, n models.Note) (*models.Note, error)
	NextPosition(ctx context.Context, ws string, parentID *string) (int, error)
	UpdateContent(ctx context.Context, ws, id, title, content, ifMatch string) (*models.Note, error)
	Apply(ctx context.Context, ws string, m outline.Mutation, revision string) error
	Delete(ctx context.Context, ws, id string) (int, error)
	Search(ctx context.Context, ws, query string, limit int) ([]SearchResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies NoteStore at compile time.
var _ NoteStore = (*DB)(nil)
