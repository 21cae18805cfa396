package api

import (
	"github.com/starford/dagaz/internal/noteservice"
	"github.com/starford/dagaz/internal/store"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	ID       string  `json:"id,omitempty" example:"7f9c..."`
	Title    string  `json:"title,omitempty" example:"Groceries"`
	Content  string  `json:"content" example:"# Groceries\n- milk"`
	ParentID *string `json:"parent_id,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content" validate:"required"`
}

// MoveRequest is the request body for a discrete reorder.
type MoveRequest struct {
	Op       string   `json:"op" example:"up" validate:"required"`
	Revision string   `json:"revision,omitempty"`
	Expanded []string `json:"expanded,omitempty"`
}

// DropRequest is the request body for a pointer drop.
type DropRequest struct {
	Over     string   `json:"over" validate:"required"`
	Revision string   `json:"revision,omitempty"`
	Expanded []string `json:"expanded,omitempty"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// OutlineResponse is the flattened outline (aliased from the domain layer).
type OutlineResponse = noteservice.OutlineView

// MoveResponse is returned by move and drop.
type MoveResponse = noteservice.MoveResult

// DeletePreviewResponse is returned by the delete preview endpoint.
type DeletePreviewResponse = noteservice.DeletePreview

// DeleteResponse reports how many records a delete removed.
type DeleteResponse struct {
	Removed int `json:"removed" example:"3"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}
