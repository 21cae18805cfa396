package outline

import "github.com/starford/dagaz/internal/models"

// FlatNode is one row of the flattened outline.
type FlatNode struct {
	Note        models.Note
	Depth       int
	HasChildren bool
	Expanded    bool
}

// Flatten walks the forest depth-first in pre-order. Children of a node are
// emitted only when its id is in expanded; collapsed subtrees are absent from
// the result, not merely hidden.
func Flatten(forest []*Node, expanded ExpandSet) []FlatNode {
	var out []FlatNode
	var walk func(level []*Node, depth int)
	walk = func(level []*Node, depth int) {
		for _, n := range level {
			open := expanded.Has(n.Note.ID)
			out = append(out, FlatNode{
				Note:        n.Note,
				Depth:       depth,
				HasChildren: len(n.Children) > 0,
				Expanded:    open,
			})
			if open {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(forest, 0)
	return out
}

// IndexOf returns the position of id in view, or -1.
func IndexOf(view []FlatNode, id string) int {
	for i, fn := range view {
		if fn.Note.ID == id {
			return i
		}
	}
	return -1
}
