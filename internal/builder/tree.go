package builder

import (
	"fmt"

	"smartclass/internal/domain"
)

func indexByID(elements []domain.Element) map[string]int {
	idx := make(map[string]int, len(elements))
	for i, el := range elements {
		idx[el.ID] = i
	}
	return idx
}

// Descendants returns the ids of every element whose parent chain reaches id.
// The result does not include id itself.
func Descendants(elements []domain.Element, id string) []string {
	children := make(map[string][]string)
	for _, el := range elements {
		if el.ParentID != "" {
			children[el.ParentID] = append(children[el.ParentID], el.ID)
		}
	}
	var out []string
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range children[cur] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Ancestors returns the parent chain of id, nearest first. Missing parents
// and cycles end the walk.
func Ancestors(elements []domain.Element, id string) []string {
	idx := indexByID(elements)
	var out []string
	seen := map[string]bool{id: true}
	i, ok := idx[id]
	for ok {
		pid := elements[i].ParentID
		if pid == "" || seen[pid] {
			break
		}
		if i, ok = idx[pid]; !ok {
			break
		}
		seen[pid] = true
		out = append(out, pid)
	}
	return out
}

// AbsolutePosition adds up x/y along the parent chain.
func AbsolutePosition(elements []domain.Element, id string) (float64, float64) {
	idx := indexByID(elements)
	i, ok := idx[id]
	if !ok {
		return 0, 0
	}
	g := elements[i].Geometry()
	x, y := g.X, g.Y
	for _, pid := range Ancestors(elements, id) {
		pg := elements[idx[pid]].Geometry()
		x += pg.X
		y += pg.Y
	}
	return x, y
}

// checkParent verifies that parentID may own child.
func checkParent(elements []domain.Element, idx map[string]int, childID, parentID string) error {
	if parentID == "" {
		return nil
	}
	i, ok := idx[parentID]
	if !ok || !elements[i].Type.CanContain() {
		return fmt.Errorf("%w: %q", ErrInvalidParent, parentID)
	}
	if parentID == childID {
		return ErrCycle
	}
	for _, a := range Ancestors(elements, parentID) {
		if a == childID {
			return ErrCycle
		}
	}
	return nil
}

// ValidateElements checks a complete element list: ids unique and non-empty,
// types known, every parent an existing container, no cycles.
func ValidateElements(elements []domain.Element) error {
	idx := make(map[string]int, len(elements))
	for i, el := range elements {
		if el.ID == "" {
			return fmt.Errorf("%w: element %d has no id", ErrInvalidContent, i)
		}
		if _, dup := idx[el.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, el.ID)
		}
		if !el.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownType, el.Type)
		}
		idx[el.ID] = i
	}
	for _, el := range elements {
		if el.ParentID == "" {
			continue
		}
		p, ok := idx[el.ParentID]
		if !ok || !elements[p].Type.CanContain() {
			return fmt.Errorf("%w: %q -> %q", ErrInvalidParent, el.ID, el.ParentID)
		}
	}
	// Walk each chain; revisiting the start means a cycle.
	for _, el := range elements {
		seen := map[string]bool{el.ID: true}
		for pid := el.ParentID; pid != ""; pid = elements[idx[pid]].ParentID {
			if seen[pid] {
				return fmt.Errorf("%w: %q", ErrCycle, el.ID)
			}
			seen[pid] = true
		}
	}
	return nil
}
