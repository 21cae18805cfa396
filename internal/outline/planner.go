package outline

import (
	"fmt"
	"slices"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Op names a discrete reorder operation.
type Op string

const (
	OpMoveUp   Op = "up"
	OpMoveDown Op = "down"
	OpPromote  Op = "promote"
	OpDemote   Op = "demote"
)

// ParseOp validates s as an Op.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpMoveUp, OpMoveDown, OpPromote, OpDemote:
		return op, nil
	}
	return "", fmt.Errorf("outline: unknown operation %q: %w", s, apperr.ErrInvalidInput)
}

// Mutation is the reorder intent handed to the persistence layer:
// note ID moves under ParentID at Position.
type Mutation struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Position int     `json:"position"`

	// Displaced is set for swaps. The named sibling takes over the position the
	// note held before, within the same intent.
	Displaced *Displacement `json:"displaced,omitempty"`
}

// ParentKey returns the target parent id, or "" for the root group.
func (m Mutation) ParentKey() string {
	if m.ParentID == nil {
		return ""
	}
	return *m.ParentID
}

// Displacement is the other half of a sibling swap.
type Displacement struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// Plan is the outcome of planning one gesture.
type Plan struct {
	Mutation Mutation `json:"mutation"`
	// Expand, when non-empty, must be added to the caller's expand set so the
	// moved note stays visible.
	Expand string `json:"expand,omitempty"`
}

// PlanMove computes the intent for a discrete operation on id. The request is
// rejected with apperr.ErrIllegalOperation when the matching legality flag is false.
func PlanMove(notes []models.Note, id string, op Op) (*Plan, error) {
	s, err := siblingsOf(notes, id)
	if err != nil {
		return nil, err
	}
	if !s.flags().Allows(op) {
		return nil, fmt.Errorf("outline: %s %s: %w", op, id, apperr.ErrIllegalOperation)
	}

	note := s.note
	switch op {
	case OpMoveUp:
		return swapWith(note, s.prev()), nil

	case OpMoveDown:
		return swapWith(note, s.next()), nil

	case OpPromote:
		var (
			newParent *string
			pos       int
		)
		if parent, ok := find(notes, note.ParentKey()); ok {
			newParent = models.Ref(parent.ParentKey())
			group := groupOf(notes, parent.ParentKey())
			if i := slices.IndexFunc(group, func(n models.Note) bool { return n.ID == parent.ID }); i >= 0 {
				pos = group[i].Position + 1
			}
		}
		if err := CheckAcyclic(notes, note.ID, newParent); err != nil {
			return nil, err
		}
		return &Plan{Mutation: Mutation{ID: note.ID, ParentID: newParent, Position: pos}}, nil

	case OpDemote:
		prev := s.prev()
		newParent := models.Ref(prev.ID)
		if err := CheckAcyclic(notes, note.ID, newParent); err != nil {
			return nil, err
		}
		return &Plan{
			Mutation: Mutation{ID: note.ID, ParentID: newParent, Position: 0},
			Expand:   prev.ID,
		}, nil
	}
	return nil, fmt.Errorf("outline: unknown operation %q", op)
}

func swapWith(note, other models.Note) *Plan {
	return &Plan{Mutation: Mutation{
		ID:        note.ID,
		ParentID:  models.Ref(note.ParentKey()),
		Position:  other.Position,
		Displaced: &Displacement{ID: other.ID, Position: note.Position},
	}}
}

// PlanDrop computes the intent for dropping sourceID onto overID in the
// flattened view. It returns a nil plan when the drop changes nothing.
func PlanDrop(notes []models.Note, view []FlatNode, sourceID, overID string) (*Plan, error) {
	if sourceID == overID {
		return nil, nil
	}
	si, oi := IndexOf(view, sourceID), IndexOf(view, overID)
	if si < 0 {
		return nil, fmt.Errorf("outline: drop source %s not visible: %w", sourceID, apperr.ErrNotFound)
	}
	if oi < 0 {
		return nil, fmt.Errorf("outline: drop target %s not visible: %w", overID, apperr.ErrNotFound)
	}

	src, over := view[si].Note, view[oi]

	var (
		parent *string
		pos    int
	)
	switch {
	case over.HasChildren && over.Expanded && si > oi:
		// Dragged up onto an open parent: becomes its first child.
		parent = models.Ref(over.Note.ID)
	case si < oi:
		parent, pos = models.Ref(over.Note.ParentKey()), over.Note.Position+1
	default:
		parent, pos = models.Ref(over.Note.ParentKey()), over.Note.Position
	}

	if models.SameParent(parent, src.ParentID) && pos == src.Position {
		return nil, nil
	}
	if err := CheckAcyclic(notes, sourceID, parent); err != nil {
		return nil, err
	}
	return &Plan{Mutation: Mutation{ID: sourceID, ParentID: parent, Position: pos}}, nil
}

func find(notes []models.Note, id string) (models.Note, bool) {
	if id == "" {
		return models.Note{}, false
	}
	for _, n := range notes {
		if n.ID == id {
			return n, true
		}
	}
	return models.Note{}, false
}
