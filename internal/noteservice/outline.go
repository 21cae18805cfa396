package noteservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/outline"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/store"
)

// OutlineRow is one visible row of the outline with its legal operations.
type OutlineRow struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	ParentID    *string `json:"parent_id"`
	Position    int     `json:"position"`
	Depth       int     `json:"depth"`
	HasChildren bool    `json:"has_children"`
	Expanded    bool    `json:"expanded"`
	outline.Flags
}

// OutlineView is the flattened outline of a workspace for a given expand set.
type OutlineView struct {
	Workspace string       `json:"workspace"`
	Revision  string       `json:"revision"`
	Expanded  []string     `json:"expanded"`
	Total     int          `json:"total"`
	Rows      []OutlineRow `json:"rows"`
}

// MoveResult is returned by Move and Drop. Plan is nil when the gesture
// changed nothing.
type MoveResult struct {
	Plan     *outline.Plan `json:"plan"`
	Revision string        `json:"revision"`
	Expanded []string      `json:"expanded"`
}

// Outline builds the visible outline for expanded.
func (s *Service) Outline(ctx context.Context, ws string, expanded outline.ExpandSet) (*OutlineView, error) {
	notes, err := s.store.List(ctx, ws)
	if err != nil {
		return nil, err
	}
	return buildView(ws, notes, expanded), nil
}

func buildView(ws string, notes []models.Note, expanded outline.ExpandSet) *OutlineView {
	forest := outline.Build(notes)
	expanded = resolveExpand(forest, expanded)
	view := outline.Flatten(forest, expanded)
	flags := outline.LegalityAll(notes)

	rows := make([]OutlineRow, len(view))
	for i, fn := range view {
		rows[i] = OutlineRow{
			ID:          fn.Note.ID,
			Title:       fn.Note.Title,
			ParentID:    fn.Note.ParentID,
			Position:    fn.Note.Position,
			Depth:       fn.Depth,
			HasChildren: fn.HasChildren,
			Expanded:    fn.Expanded,
			Flags:       flags[fn.Note.ID],
		}
	}
	return &OutlineView{
		Workspace: ws,
		Revision:  store.Revision(notes),
		Expanded:  expanded.IDs(),
		Total:     len(notes),
		Rows:      rows,
	}
}

// resolveExpand replaces the outline.ExpandEverything wildcard with every note
// in forest.
func resolveExpand(forest []*outline.Node, expanded outline.ExpandSet) outline.ExpandSet {
	if expanded.Has(outline.ExpandEverything) {
		return outline.ExpandAll(forest)
	}
	return expanded
}

// Move applies a discrete reorder operation to id.
//
// revision, when set, is the outline revision the caller acted on; a
// mismatch fails with apperr.ErrStaleSnapshot before anything is planned.
func (s *Service) Move(ctx context.Context, ws, id string, op outline.Op, revision string, expanded outline.ExpandSet) (*MoveResult, error) {
	return s.reorder(ctx, ws, revision, expanded, func(notes []models.Note) (*outline.Plan, error) {
		return outline.PlanMove(notes, id, op)
	})
}

// Drop applies a pointer drop of id over another visible row. The visible
// rows are derived from expanded.
func (s *Service) Drop(ctx context.Context, ws, id, over, revision string, expanded outline.ExpandSet) (*MoveResult, error) {
	return s.reorder(ctx, ws, revision, expanded, func(notes []models.Note) (*outline.Plan, error) {
		forest := outline.Build(notes)
		view := outline.Flatten(forest, resolveExpand(forest, expanded))
		return outline.PlanDrop(notes, view, id, over)
	})
}

func (s *Service) reorder(ctx context.Context, ws, revision string, expanded outline.ExpandSet, plan func([]models.Note) (*outline.Plan, error)) (*MoveResult, error) {
	release, err := s.gate.Enter(ctx, ws, uuid.NewString())
	if err != nil {
		return nil, err
	}
	defer release()

	notes, err := s.store.List(ctx, ws)
	if err != nil {
		return nil, err
	}
	current := store.Revision(notes)
	if revision != "" && revision != current {
		slog.Warn("reorder rejected",
			slog.String("workspace", ws),
			slog.String("revision", revision),
			slog.String("error", apperr.ErrStaleSnapshot.Error()))
		return nil, fmt.Errorf("noteservice: revision %s: %w", revision, apperr.ErrStaleSnapshot)
	}

	p, err := plan(notes)
	if err != nil {
		return nil, err
	}
	if expanded == nil {
		expanded = outline.NewExpandSet()
	}
	if p == nil {
		return &MoveResult{Revision: current, Expanded: expanded.IDs()}, nil
	}

	if err := s.store.Apply(ctx, ws, p.Mutation, current); err != nil {
		slog.Warn("reorder not applied",
			slog.String("workspace", ws),
			slog.String("id", p.Mutation.ID),
			slog.String("error", err.Error()))
		return nil, err
	}
	if p.Expand != "" {
		expanded.Add(p.Expand)
	}

	after, err := s.store.List(ctx, ws)
	if err != nil {
		return nil, err
	}
	next := store.Revision(after)

	slog.Info("reorder applied",
		slog.String("workspace", ws),
		slog.String("id", p.Mutation.ID),
		slog.String("parent", p.Mutation.ParentKey()),
		slog.Int("position", p.Mutation.Position))
	s.notify.Publish(sse.Event{
		Type:      sse.OutlineReorder,
		Workspace: ws,
		Data: map[string]any{
			"workspace": ws,
			"mutation":  p.Mutation,
			"revision":  next,
		},
	})
	return &MoveResult{Plan: p, Revision: next, Expanded: expanded.IDs()}, nil
}
