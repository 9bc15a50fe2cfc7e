package builder

import (
	"sync"

	"smartclass/internal/domain"
)

// LayerRow is a flattened, render-ready line of the layers panel.
type LayerRow struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Type        domain.ElementType `json:"type"`
	Depth       int                `json:"depth"`
	HasChildren bool               `json:"hasChildren"`
	IsExpanded  bool               `json:"isExpanded"`
	IsSelected  bool               `json:"isSelected"`
}

// LayersPanel holds the view state of the layers tree: which containers are
// expanded and the current search term.
type LayersPanel struct {
	mu       sync.Mutex
	expanded map[string]bool
	search   string
	store    *Store
	detach   func()
}

func NewLayersPanel() *LayersPanel {
	return &LayersPanel{expanded: make(map[string]bool)}
}

// Attach binds the panel to store. Whenever the selection changes, the
// ancestors of the selected elements are expanded.
func (p *LayersPanel) Attach(store *Store) {
	p.Close()
	p.mu.Lock()
	p.store = store
	p.mu.Unlock()
	detach := store.OnChange(func(c Change) {
		if c.Kind != ChangeSelection {
			return
		}
		st := store.State()
		p.mu.Lock()
		ExpandAncestors(st.Elements, st.SelectedElementIDs, p.expanded)
		p.mu.Unlock()
	})
	p.mu.Lock()
	p.detach = detach
	p.mu.Unlock()
}

func (p *LayersPanel) Close() {
	p.mu.Lock()
	detach := p.detach
	p.detach = nil
	p.mu.Unlock()
	if detach != nil {
		detach()
	}
}

func (p *LayersPanel) Toggle(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.expanded[id] {
		delete(p.expanded, id)
	} else {
		p.expanded[id] = true
	}
}

func (p *LayersPanel) Expand(id string) {
	p.mu.Lock()
	p.expanded[id] = true
	p.mu.Unlock()
}

func (p *LayersPanel) Collapse(id string) {
	p.mu.Lock()
	delete(p.expanded, id)
	p.mu.Unlock()
}

func (p *LayersPanel) SetSearch(term string) {
	p.mu.Lock()
	p.search = term
	p.mu.Unlock()
}

func (p *LayersPanel) Search() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.search
}

// Tree returns the filtered hierarchy for the attached store.
func (p *LayersPanel) Tree() []*HierarchyNode {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return nil
	}
	elements := store.Elements()
	p.mu.Lock()
	expanded := make(map[string]bool, len(p.expanded))
	for k, v := range p.expanded {
		expanded[k] = v
	}
	term := p.search
	p.mu.Unlock()
	return FilterNodes(BuildHierarchy(elements, expanded), term)
}

// Rows returns the visible rows of the panel in display order.
func (p *LayersPanel) Rows() []LayerRow {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return nil
	}
	selected := make(map[string]bool)
	for _, id := range store.SelectedIDs() {
		selected[id] = true
	}
	nodes := VisibleNodes(p.Tree())
	rows := make([]LayerRow, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, LayerRow{
			ID:          n.Element.ID,
			Name:        n.Element.Name,
			Type:        n.Element.Type,
			Depth:       n.Depth,
			HasChildren: len(n.Children) > 0,
			IsExpanded:  n.IsExpanded,
			IsSelected:  selected[n.Element.ID],
		})
	}
	return rows
}
