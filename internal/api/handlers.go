package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/noteservice"
	"github.com/starford/dagaz/internal/outline"
	"github.com/starford/dagaz/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func workspace(r *http.Request) string {
	return chi.URLParam(r, "ws")
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListNotes handles GET /api/workspaces/{ws}/notes.
//
//	@Summary		List every note in a workspace
//	@Tags			notes
//	@Produce		json
//	@Param			ws	path		string	true	"Workspace"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListNotes(r.Context(), workspace(r))
	if err != nil {
		writeError(w, err, "list notes", slog.String("workspace", workspace(r)))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/workspaces/{ws}/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			ws	path		string	true	"Workspace"
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), workspace(r), noteID(r))
	if err != nil {
		writeError(w, err, "get note", slog.String("id", noteID(r)))
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/workspaces/{ws}/notes.
//
//	@Summary		Create a note, appended to its sibling group unless a position is given
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			ws		path		string				true	"Workspace"
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title or content is required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), workspace(r), noteservice.CreateInput{
		ID:       req.ID,
		Title:    req.Title,
		Content:  req.Content,
		ParentID: req.ParentID,
		Position: req.Position,
	})
	if err != nil {
		writeError(w, err, "create note", slog.String("workspace", workspace(r)))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/workspaces/{ws}/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			ws			path		string				true	"Workspace"
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Checksum for optimistic concurrency"
//	@Param			body		body		UpdateNoteRequest	true	"Updated content"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), workspace(r), noteID(r), req.Title, req.Content, ifMatch)
	if err != nil {
		writeError(w, err, "update note", slog.String("id", noteID(r)))
		return
	}
	w.Header().Set("ETag", `"`+note.Checksum+`"`)
	writeJSON(w, http.StatusOK, note)
}

// DeletePreview handles GET /api/workspaces/{ws}/notes/{id}/delete-preview.
//
//	@Summary		Count the descendants a delete would remove
//	@Tags			notes
//	@Produce		json
//	@Param			ws	path		string	true	"Workspace"
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	DeletePreviewResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id}/delete-preview [get]
func (h *Handler) DeletePreview(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.PreviewDelete(r.Context(), workspace(r), noteID(r))
	if err != nil {
		writeError(w, err, "delete preview", slog.String("id", noteID(r)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteNote handles DELETE /api/workspaces/{ws}/notes/{id}.
//
//	@Summary		Delete a note and its subtree
//	@Tags			notes
//	@Produce		json
//	@Param			ws	path		string	true	"Workspace"
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	DeleteResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.DeleteNote(r.Context(), workspace(r), noteID(r))
	if err != nil {
		writeError(w, err, "delete note", slog.String("id", noteID(r)))
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed})
}

// Outline handles GET /api/workspaces/{ws}/outline.
//
//	@Summary		Flattened outline with per-row legal operations
//	@Tags			outline
//	@Produce		json
//	@Param			ws			path		string	true	"Workspace"
//	@Param			expanded	query		string	false	"Comma-separated expanded note ids, or * for all"
//	@Success		200			{object}	OutlineResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/outline [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	expanded := outline.ParseExpandSet(r.URL.Query().Get("expanded"))
	view, err := h.svc.Outline(r.Context(), workspace(r), expanded)
	if err != nil {
		writeError(w, err, "outline", slog.String("workspace", workspace(r)))
		return
	}
	w.Header().Set("ETag", `"`+view.Revision+`"`)
	writeJSON(w, http.StatusOK, view)
}

// Move handles POST /api/workspaces/{ws}/notes/{id}/move.
//
//	@Summary		Move a note up, down, or change its depth
//	@Tags			outline
//	@Accept			json
//	@Produce		json
//	@Param			ws		path		string		true	"Workspace"
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		MoveRequest	true	"Operation"
//	@Success		200		{object}	MoveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id}/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	op, err := outline.ParseOp(req.Op)
	if err != nil {
		writeError(w, err, "move")
		return
	}
	res, err := h.svc.Move(r.Context(), workspace(r), noteID(r), op, req.Revision, outline.NewExpandSet(req.Expanded...))
	if err != nil {
		writeError(w, err, "move",
			slog.String("id", noteID(r)),
			slog.String("op", string(op)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Drop handles POST /api/workspaces/{ws}/notes/{id}/drop.
//
//	@Summary		Drop a dragged note over another visible row
//	@Tags			outline
//	@Accept			json
//	@Produce		json
//	@Param			ws		path		string		true	"Workspace"
//	@Param			id		path		string		true	"Dragged note id"
//	@Param			body	body		DropRequest	true	"Drop target and view state"
//	@Success		200		{object}	MoveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/notes/{id}/drop [post]
func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Over == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("over is required"))
		return
	}
	res, err := h.svc.Drop(r.Context(), workspace(r), noteID(r), req.Over, req.Revision, outline.NewExpandSet(req.Expanded...))
	if err != nil {
		writeError(w, err, "drop",
			slog.String("id", noteID(r)),
			slog.String("over", req.Over))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/workspaces/{ws}/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			ws		path		string	true	"Workspace"
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{ws}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), workspace(r), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
