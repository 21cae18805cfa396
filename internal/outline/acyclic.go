package outline

import (
	"errors"
	"fmt"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// ErrCycle marks a move that would make a note its own ancestor.
var ErrCycle = errors.New("move would create a cycle")

// CheckAcyclic walks the ancestor chain of newParent and fails if id is on it.
// The returned error matches both ErrCycle and apperr.ErrIllegalOperation.
func CheckAcyclic(notes []models.Note, id string, newParent *string) error {
	parents := make(map[string]string, len(notes))
	for _, n := range notes {
		parents[n.ID] = n.ParentKey()
	}

	target := ""
	if newParent != nil {
		target = *newParent
	}

	visited := map[string]struct{}{}
	for cur := target; cur != ""; {
		if cur == id {
			return fmt.Errorf("outline: move %s under %s: %w: %w", id, target, ErrCycle, apperr.ErrIllegalOperation)
		}
		if _, loop := visited[cur]; loop {
			return nil
		}
		visited[cur] = struct{}{}

		next, ok := parents[cur]
		if !ok {
			// Dangling reference; the chain ends at an orphan root.
			return nil
		}
		cur = next
	}
	return nil
}
