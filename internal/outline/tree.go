// Package outline is the note-ordering engine behind the outliner.
//
// It turns the flat, parent-referencing record list of a workspace into a tree,
// flattens that tree for display according to an expand set, and computes the
// single reorder intent that realizes a user edit (move up/down, promote,
// demote, pointer drop). Nothing in this package performs I/O: callers hand in
// a snapshot of records and get back values describing what to persist.
package outline

import (
	"cmp"
	"slices"

	"github.com/starford/dagaz/internal/models"
)

// Node is a note together with its ordered children.
type Node struct {
	Note     models.Note
	Children []*Node
}

// Build converts a flat record list into a forest sorted by position.
//
// Records whose parent is missing, or that sit on a parent cycle, become roots,
// so every input record appears exactly once. Ties on position keep input order.
func Build(notes []models.Note) []*Node {
	index := make(map[string]*Node, len(notes))
	for _, n := range notes {
		index[n.ID] = &Node{Note: n}
	}

	var roots []*Node
	seen := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}

		node := index[n.ID]
		parent, ok := index[n.ParentKey()]
		if n.IsRoot() || !ok || onCycle(index, n.ID) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, node := range index {
		sortNodes(node.Children)
	}
	return roots
}

func sortNodes(nodes []*Node) {
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		return cmp.Compare(a.Note.Position, b.Note.Position)
	})
}

// onCycle reports whether following parent pointers from id leads back to id.
func onCycle(index map[string]*Node, id string) bool {
	visited := map[string]struct{}{}
	cur, ok := index[id]
	for ok {
		next := cur.Note.ParentKey()
		if next == "" {
			return false
		}
		if next == id {
			return true
		}
		if _, loop := visited[next]; loop {
			// A cycle further up that does not include id.
			return false
		}
		visited[next] = struct{}{}
		cur, ok = index[next]
	}
	return false
}
