package builder

import (
	"strings"

	"smartclass/internal/domain"
)

// HierarchyNode is one row of the layers tree. It is derived from the flat
// element list on demand and never persisted.
type HierarchyNode struct {
	Element    domain.Element   `json:"element"`
	Children   []*HierarchyNode `json:"children"`
	Depth      int              `json:"depth"`
	IsExpanded bool             `json:"isExpanded"`
}

// BuildHierarchy turns the flat list into a forest. Roots are elements with
// no parent or a parent that does not exist. Elements stuck in a parent cycle
// are surfaced as extra roots so every element appears exactly once.
// Sibling order follows the order of the input list.
func BuildHierarchy(elements []domain.Element, expanded map[string]bool) []*HierarchyNode {
	idx := indexByID(elements)
	children := make(map[string][]int)
	var roots []int
	for i, el := range elements {
		if _, ok := idx[el.ParentID]; el.ParentID == "" || !ok {
			roots = append(roots, i)
			continue
		}
		children[el.ParentID] = append(children[el.ParentID], i)
	}

	visited := make(map[string]bool, len(elements))
	var build func(i, depth int) *HierarchyNode
	build = func(i, depth int) *HierarchyNode {
		el := elements[i]
		visited[el.ID] = true
		node := &HierarchyNode{
			Element:    el.Clone(),
			Depth:      depth,
			IsExpanded: expanded[el.ID],
			Children:   []*HierarchyNode{},
		}
		for _, c := range children[el.ID] {
			if visited[elements[c].ID] {
				continue
			}
			node.Children = append(node.Children, build(c, depth+1))
		}
		return node
	}

	out := make([]*HierarchyNode, 0, len(roots))
	for _, i := range roots {
		out = append(out, build(i, 0))
	}
	for i, el := range elements {
		if !visited[el.ID] {
			out = append(out, build(i, 0))
		}
	}
	return out
}

// FilterNodes keeps nodes whose name or type contains term (case-insensitive)
// plus every ancestor of a match. Kept ancestors are expanded so matches are
// visible. An empty term returns nodes unchanged.
func FilterNodes(nodes []*HierarchyNode, term string) []*HierarchyNode {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nodes
	}
	var out []*HierarchyNode
	for _, n := range nodes {
		kids := FilterNodes(n.Children, term)
		matches := strings.Contains(strings.ToLower(n.Element.Name), term) ||
			strings.Contains(strings.ToLower(string(n.Element.Type)), term)
		if !matches && len(kids) == 0 {
			continue
		}
		cp := *n
		cp.Children = kids
		if cp.Children == nil {
			cp.Children = []*HierarchyNode{}
		}
		if len(kids) > 0 {
			cp.IsExpanded = true
		}
		out = append(out, &cp)
	}
	return out
}

// VisibleNodes flattens the forest pre-order, descending only into expanded
// nodes.
func VisibleNodes(nodes []*HierarchyNode) []*HierarchyNode {
	var out []*HierarchyNode
	var walk func([]*HierarchyNode)
	walk = func(ns []*HierarchyNode) {
		for _, n := range ns {
			out = append(out, n)
			if n.IsExpanded {
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return out
}

// CountNodes counts every node in the forest regardless of expansion.
func CountNodes(nodes []*HierarchyNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}

// ExpandAncestors marks the parent chain of every selected id as expanded.
// It returns true when the set changed.
func ExpandAncestors(elements []domain.Element, selected []string, expanded map[string]bool) bool {
	changed := false
	for _, id := range selected {
		for _, a := range Ancestors(elements, id) {
			if !expanded[a] {
				expanded[a] = true
				changed = true
			}
		}
	}
	return changed
}
