package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/workspaces/{ws}", func(r chi.Router) {
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Put("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Get("/notes/{id}/delete-preview", h.DeletePreview)

		// Reordering.
		r.Get("/outline", h.Outline)
		r.Post("/notes/{id}/move", h.Move)
		r.Post("/notes/{id}/drop", h.Drop)

		r.Get("/search", h.Search)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
