package outline

import "github.com/starford/dagaz/internal/models"

// CountDescendants returns how many records have id somewhere on their parent
// chain, i.e. how many extra notes a delete of id takes with it.
func CountDescendants(notes []models.Note, id string) int {
	return len(Descendants(notes, id))
}

// Descendants lists the ids below id in breadth-first order.
func Descendants(notes []models.Note, id string) []string {
	children := make(map[string][]string)
	for _, n := range notes {
		if p := n.ParentKey(); p != "" {
			children[p] = append(children[p], n.ID)
		}
	}

	visited := map[string]struct{}{id: {}}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
