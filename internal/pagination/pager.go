package pagination

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrLastPage     = errors.New("cannot delete the last page")
)

// PageInfo is the page list entry shown in the page switcher.
type PageInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Order        int    `json:"order"`
	ElementCount int    `json:"elementCount"`
	Current      bool   `json:"current"`
}

// Pager binds a Document to the builder store: the store always holds the
// elements of the current page. mu is always taken before the store's lock.
type Pager struct {
	mu    sync.Mutex
	doc   *Document
	store *builder.Store
}

func NewPager(store *builder.Store, doc *Document) *Pager {
	if doc == nil || len(doc.Pages) == 0 {
		doc = NewDocument()
	}
	doc.reindex()
	p := &Pager{doc: doc, store: store}
	cur, _ := doc.Page(doc.CurrentPageID)
	store.LoadElements(cur.Elements)
	return p
}

// Replace swaps in a new document, discarding the live page.
func (p *Pager) Replace(doc *Document) {
	if doc == nil || len(doc.Pages) == 0 {
		doc = NewDocument()
	}
	doc.reindex()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	cur, _ := doc.Page(doc.CurrentPageID)
	p.store.LoadElements(cur.Elements)
}

// flushLocked writes the live store content back into the current page.
func (p *Pager) flushLocked() {
	cur, _ := p.doc.Page(p.doc.CurrentPageID)
	if cur == nil {
		return
	}
	cur.Elements = p.store.Elements()
	if cur.Elements == nil {
		cur.Elements = []domain.Element{}
	}
	cur.UpdatedAt = time.Now().UTC()
}

func (p *Pager) CurrentPageID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.CurrentPageID
}

func (p *Pager) Pages() []PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PageInfo, len(p.doc.Pages))
	for i, pg := range p.doc.Pages {
		count := len(pg.Elements)
		if pg.ID == p.doc.CurrentPageID {
			count = len(p.store.Elements())
		}
		out[i] = PageInfo{ID: pg.ID, Title: pg.Title, Order: pg.Order, ElementCount: count, Current: pg.ID == p.doc.CurrentPageID}
	}
	return out
}

// SwitchPage saves the live elements into the outgoing page, then loads the
// page at index.
func (p *Pager) SwitchPage(index int) error {
	p.mu.Lock()
	if index < 0 || index >= len(p.doc.Pages) {
		p.mu.Unlock()
		return fmt.Errorf("%w: index %d", ErrPageNotFound, index)
	}
	id := p.doc.Pages[index].ID
	p.mu.Unlock()
	return p.SwitchPageByID(id)
}

func (p *Pager) SwitchPageByID(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, _ := p.doc.Page(id)
	if next == nil {
		return fmt.Errorf("%w: %q", ErrPageNotFound, id)
	}
	if id == p.doc.CurrentPageID {
		return nil
	}
	p.flushLocked()
	p.doc.CurrentPageID = id
	// The store is loaded under p.mu so a concurrent flush never sees the
	// new page id paired with the old page's elements.
	p.store.LoadElements(domain.CloneElements(next.Elements))
	return nil
}

// CreatePage appends an empty page. The current page does not change.
func (p *Pager) CreatePage(title string) domain.ModulePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Page %d", len(p.doc.Pages)+1)
	}
	pg := newPage(title, len(p.doc.Pages), nil)
	p.doc.Pages = append(p.doc.Pages, pg)
	return *pg
}

// DeletePage removes a page and renumbers the rest. Deleting the current
// page moves to its neighbour; the last remaining page cannot be deleted.
func (p *Pager) DeletePage(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, i := p.doc.Page(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrPageNotFound, id)
	}
	if len(p.doc.Pages) == 1 {
		return ErrLastPage
	}
	wasCurrent := id == p.doc.CurrentPageID
	p.doc.Pages = append(p.doc.Pages[:i], p.doc.Pages[i+1:]...)
	if wasCurrent {
		if i >= len(p.doc.Pages) {
			i = len(p.doc.Pages) - 1
		}
		p.doc.CurrentPageID = p.doc.Pages[i].ID
		p.store.LoadElements(domain.CloneElements(p.doc.Pages[i].Elements))
	}
	p.doc.reindex()
	return nil
}

func (p *Pager) RenamePage(id, title string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, _ := p.doc.Page(id)
	if pg == nil {
		return fmt.Errorf("%w: %q", ErrPageNotFound, id)
	}
	pg.Title = title
	pg.UpdatedAt = time.Now().UTC()
	return nil
}

// MovePage moves a page to position index, clamped to the page range.
func (p *Pager) MovePage(id string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, i := p.doc.Page(id)
	if pg == nil {
		return fmt.Errorf("%w: %q", ErrPageNotFound, id)
	}
	pages := append(p.doc.Pages[:i:i], p.doc.Pages[i+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(pages) {
		index = len(pages)
	}
	pages = append(pages[:index], append([]*domain.ModulePage{pg}, pages[index:]...)...)
	for n, page := range pages {
		page.Order = n
	}
	p.doc.Pages = pages
	return nil
}

// Document flushes the live page and returns a deep copy of the document.
func (p *Pager) Document() *Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
	out := &Document{CurrentPageID: p.doc.CurrentPageID, Metadata: make(map[string]any, len(p.doc.Metadata))}
	for k, v := range p.doc.Metadata {
		out.Metadata[k] = v
	}
	for _, pg := range p.doc.Pages {
		cp := *pg
		cp.Elements = domain.CloneElements(pg.Elements)
		out.Pages = append(out.Pages, &cp)
	}
	return out
}

// Serialize flushes and encodes the document as version 3.
func (p *Pager) Serialize() ([]byte, error) {
	return Serialize(p.Document())
}
