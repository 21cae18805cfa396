package outline

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Flags tells which discrete reorder operations are legal for a note.
type Flags struct {
	CanMoveUp   bool `json:"can_move_up"`
	CanMoveDown bool `json:"can_move_down"`
	CanPromote  bool `json:"can_promote"`
	CanDemote   bool `json:"can_demote"`
}

// Allows reports whether op is permitted by f.
func (f Flags) Allows(op Op) bool {
	switch op {
	case OpMoveUp:
		return f.CanMoveUp
	case OpMoveDown:
		return f.CanMoveDown
	case OpPromote:
		return f.CanPromote
	case OpDemote:
		return f.CanDemote
	}
	return false
}

// siblings is the sibling group of one note: every record sharing its raw
// parent_id, sorted by position, plus the note's index in it.
type siblings struct {
	note  models.Note
	group []models.Note
	index int
}

func (s siblings) prev() models.Note { return s.group[s.index-1] }
func (s siblings) next() models.Note { return s.group[s.index+1] }

func siblingsOf(notes []models.Note, id string) (siblings, error) {
	var (
		note  models.Note
		found bool
	)
	for _, n := range notes {
		if n.ID == id {
			note, found = n, true
		}
	}
	if !found {
		return siblings{}, fmt.Errorf("outline: note %s: %w", id, apperr.ErrNotFound)
	}

	group := groupOf(notes, note.ParentKey())
	idx := slices.IndexFunc(group, func(n models.Note) bool { return n.ID == id })
	return siblings{note: note, group: group, index: idx}, nil
}

// groupOf returns the records whose parent key equals parent, stably sorted by position.
func groupOf(notes []models.Note, parent string) []models.Note {
	var group []models.Note
	for _, n := range notes {
		if n.ParentKey() == parent {
			group = append(group, n)
		}
	}
	slices.SortStableFunc(group, func(a, b models.Note) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return group
}

// Legality computes the operation flags for id against the record snapshot.
func Legality(notes []models.Note, id string) (Flags, error) {
	s, err := siblingsOf(notes, id)
	if err != nil {
		return Flags{}, err
	}
	return s.flags(), nil
}

func (s siblings) flags() Flags {
	return Flags{
		CanMoveUp:   s.index > 0,
		CanMoveDown: s.index < len(s.group)-1,
		CanPromote:  !s.note.IsRoot(),
		CanDemote:   s.index > 0,
	}
}

// LegalityAll computes flags for every note in one pass over the sibling groups.
func LegalityAll(notes []models.Note) map[string]Flags {
	byParent := make(map[string][]models.Note)
	for _, n := range notes {
		byParent[n.ParentKey()] = append(byParent[n.ParentKey()], n)
	}

	out := make(map[string]Flags, len(notes))
	for _, group := range byParent {
		slices.SortStableFunc(group, func(a, b models.Note) int {
			return cmp.Compare(a.Position, b.Position)
		})
		for i, n := range group {
			out[n.ID] = siblings{note: n, group: group, index: i}.flags()
		}
	}
	return out
}
