package outline

import (
	"slices"
	"strings"
)

// ExpandEverything in an expand set stands for every note of the workspace.
const ExpandEverything = "*"

// ExpandSet is the set of note ids whose children are shown in the flattened view.
// It is plain view state owned by whoever renders the outline.
type ExpandSet map[string]struct{}

// NewExpandSet returns a set holding ids.
func NewExpandSet(ids ...string) ExpandSet {
	s := make(ExpandSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// ParseExpandSet reads a comma separated id list, ignoring blanks.
func ParseExpandSet(raw string) ExpandSet {
	s := ExpandSet{}
	for _, part := range strings.Split(raw, ",") {
		s.Add(strings.TrimSpace(part))
	}
	return s
}

// ExpandAll returns a set containing every note in the forest.
func ExpandAll(nodes []*Node) ExpandSet {
	s := ExpandSet{}
	var walk func([]*Node)
	walk = func(level []*Node) {
		for _, n := range level {
			s.Add(n.Note.ID)
			walk(n.Children)
		}
	}
	walk(nodes)
	return s
}

// Has reports whether id is expanded. A nil set has nothing expanded.
func (s ExpandSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add marks id as expanded.
func (s ExpandSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Remove collapses id.
func (s ExpandSet) Remove(id string) {
	delete(s, id)
}

// IDs returns the expanded ids in sorted order.
func (s ExpandSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// String renders the set in the form accepted by ParseExpandSet.
func (s ExpandSet) String() string {
	return strings.Join(s.IDs(), ",")
}
