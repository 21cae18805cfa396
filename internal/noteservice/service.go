// Package noteservice coordinates the record store, the outline engine and
// the reorder gate for both the HTTP API and the MCP server.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/inflight"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
	"github.com/starford/dagaz/internal/parser"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/store"
)

// Notifier receives change notifications. *sse.Broker implements it.
type Notifier interface {
	Publish(event sse.Event)
	PublishNoteEvent(kind, ws, id string)
}

type nopNotifier struct{}

func (nopNotifier) Publish(sse.Event) {}

func (nopNotifier) PublishNoteEvent(_, _, _ string) {}

// Service is the application layer over a NoteStore.
type Service struct {
	store  store.NoteStore
	gate   *inflight.Gate
	notify Notifier
}

// NewService creates a note service. A nil gate falls back to an in-process
// slot that rejects concurrent reorders; a nil notifier discards events.
func NewService(st store.NoteStore, gate *inflight.Gate, notify Notifier) *Service {
	if gate == nil {
		gate = inflight.NewGate(inflight.NewLocal(30*time.Second), inflight.PolicyReject, 0)
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Service{store: st, gate: gate, notify: notify}
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	models.Note
	Checksum   string `json:"checksum"`
	ChildCount int    `json:"child_count"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ParentID  *string   `json:"parent_id"`
	Position  int       `json:"position"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated"`
}

// CreateInput describes a note to create. A nil Position appends to the end
// of the sibling group; an empty Title is derived from Content.
type CreateInput struct {
	ID       string
	Title    string
	Content  string
	ParentID *string
	Position *int
}

// DeletePreview is shown before a delete is confirmed.
type DeletePreview struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ChildCount int    `json:"child_count"`
}

// GetNote returns a note with its checksum and descendant count.
func (s *Service) GetNote(ctx context.Context, ws, id string) (*NoteDetail, error) {
	notes, err := s.store.List(ctx, ws)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		if n.ID == id {
			return &NoteDetail{
				Note:       n,
				Checksum:   store.ContentChecksum(n),
				ChildCount: outline.CountDescendants(notes, id),
			}, nil
		}
	}
	return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrNotFound)
}

// ListNotes returns every note in the workspace in store order.
func (s *Service) ListNotes(ctx context.Context, ws string) ([]NoteListItem, error) {
	notes, err := s.store.List(ctx, ws)
	if err != nil {
		return nil, err
	}
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = NoteListItem{
			ID:        n.ID,
			Title:     n.Title,
			ParentID:  n.ParentID,
			Position:  n.Position,
			Checksum:  store.ContentChecksum(n),
			UpdatedAt: n.UpdatedAt,
		}
	}
	return items, nil
}

// CreateNote inserts a note. The parent, when given, must exist.
func (s *Service) CreateNote(ctx context.Context, ws string, in CreateInput) (*NoteDetail, error) {
	parent := models.Ref(strings.TrimSpace(deref(in.ParentID)))
	if parent != nil {
		if _, err := s.store.Get(ctx, ws, *parent); err != nil {
			return nil, fmt.Errorf("noteservice: parent: %w", err)
		}
	}

	pos := 0
	if in.Position != nil {
		pos = *in.Position
	} else {
		next, err := s.store.NextPosition(ctx, ws, parent)
		if err != nil {
			return nil, err
		}
		pos = next
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = parser.Title(in.Content)
	}

	n, err := s.store.Create(ctx, ws, models.Note{
		ID:       in.ID,
		Title:    title,
		Content:  in.Content,
		ParentID: parent,
		Position: pos,
	})
	if err != nil {
		return nil, err
	}
	s.notify.PublishNoteEvent("created", ws, n.ID)
	return &NoteDetail{Note: *n, Checksum: store.ContentChecksum(*n)}, nil
}

// UpdateNote replaces title and content with optimistic concurrency on ifMatch.
func (s *Service) UpdateNote(ctx context.Context, ws, id, title, content, ifMatch string) (*NoteDetail, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = parser.Title(content)
	}
	n, err := s.store.UpdateContent(ctx, ws, id, title, content, ifMatch)
	if err != nil {
		return nil, err
	}
	s.notify.PublishNoteEvent("updated", ws, id)
	return &NoteDetail{Note: *n, Checksum: store.ContentChecksum(*n)}, nil
}

// PreviewDelete reports how many descendants a delete of id would remove.
func (s *Service) PreviewDelete(ctx context.Context, ws, id string) (*DeletePreview, error) {
	d, err := s.GetNote(ctx, ws, id)
	if err != nil {
		return nil, err
	}
	return &DeletePreview{ID: d.ID, Title: d.Title, ChildCount: d.ChildCount}, nil
}

// DeleteNote removes id and its subtree. It shares the reorder slot so a
// delete never lands between the snapshot and the apply of a move.
func (s *Service) DeleteNote(ctx context.Context, ws, id string) (int, error) {
	release, err := s.gate.Enter(ctx, ws, uuid.NewString())
	if err != nil {
		return 0, err
	}
	defer release()

	removed, err := s.store.Delete(ctx, ws, id)
	if err != nil {
		return 0, err
	}
	slog.Info("note deleted",
		slog.String("workspace", ws),
		slog.String("id", id),
		slog.Int("removed", removed))
	s.notify.PublishNoteEvent("deleted", ws, id)
	return removed, nil
}

// Search delegates full-text search to the store.
func (s *Service) Search(ctx context.Context, ws, query string, limit int) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("noteservice: empty query: %w", apperr.ErrInvalidInput)
	}
	return s.store.Search(ctx, ws, query, limit)
}

// Ready reports whether the store and the reorder slot backend are reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.gate.Ping(ctx)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
