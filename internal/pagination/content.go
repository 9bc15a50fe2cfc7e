package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"smartclass/internal/domain"
)

// CurrentVersion is the only version Serialize writes.
const CurrentVersion = 3

const DefaultPageTitle = "Page 1"

var (
	ErrMalformedContent = errors.New("malformed content")
	ErrUnknownVersion   = errors.New("unknown content version")
)

// Document is the in-memory form of a paginated project.
type Document struct {
	Pages         []*domain.ModulePage `json:"pages"`
	CurrentPageID string               `json:"currentPageId"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
}

func (d *Document) Page(id string) (*domain.ModulePage, int) {
	for i, p := range d.Pages {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// reindex sorts pages by order and renumbers them 0..n-1.
func (d *Document) reindex() {
	sort.SliceStable(d.Pages, func(i, j int) bool { return d.Pages[i].Order < d.Pages[j].Order })
	for i, p := range d.Pages {
		p.Order = i
	}
	if p, _ := d.Page(d.CurrentPageID); p == nil && len(d.Pages) > 0 {
		d.CurrentPageID = d.Pages[0].ID
	}
}

func newPage(title string, order int, elements []domain.Element) *domain.ModulePage {
	now := time.Now().UTC()
	if elements == nil {
		elements = []domain.Element{}
	}
	return &domain.ModulePage{
		ID:        uuid.New().String(),
		Title:     title,
		Elements:  elements,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewDocument returns a document with one empty page.
func NewDocument() *Document {
	p := newPage(DefaultPageTitle, 0, nil)
	return &Document{Pages: []*domain.ModulePage{p}, CurrentPageID: p.ID, Metadata: map[string]any{}}
}

// v3 wire shape.
type v3Envelope struct {
	Version int       `json:"version"`
	Content v3Content `json:"content"`
}

type v3Content struct {
	Pages         map[string]*domain.ModulePage `json:"pages"`
	CurrentPageID string                        `json:"currentPageId"`
	TotalPages    int                           `json:"totalPages"`
	Metadata      map[string]any                `json:"metadata"`
}

// v2 wire shape: pages reference a shared element list by id.
type v2Envelope struct {
	Version  int              `json:"version"`
	Pages    []v2Page         `json:"pages"`
	Elements []domain.Element `json:"elements"`
}

type v2Page struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ElementIDs []string `json:"elementIds"`
}

// ParseContent reads any of the persisted shapes: a flat element array,
// version 2, version 3, or empty input. It never fails to produce a document:
// malformed or unknown input yields a single empty page together with an
// error describing what was wrong.
func ParseContent(raw []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return NewDocument(), nil
	}

	if trimmed[0] == '[' {
		var elements []domain.Element
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return NewDocument(), fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		return singlePage(elements), nil
	}

	var probe struct {
		Version  int             `json:"version"`
		Elements json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return NewDocument(), fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}

	switch probe.Version {
	case 3:
		var env v3Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return NewDocument(), fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		return fromV3(env.Content), nil
	case 2:
		var env v2Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return NewDocument(), fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		return fromV2(env), nil
	case 0:
		if len(probe.Elements) > 0 {
			var elements []domain.Element
			if err := json.Unmarshal(probe.Elements, &elements); err != nil {
				return NewDocument(), fmt.Errorf("%w: %v", ErrMalformedContent, err)
			}
			return singlePage(elements), nil
		}
	}
	return NewDocument(), fmt.Errorf("%w: %d", ErrUnknownVersion, probe.Version)
}

func normalizeElements(elements []domain.Element) []domain.Element {
	if elements == nil {
		return []domain.Element{}
	}
	for i := range elements {
		if elements[i].Properties == nil {
			elements[i].Properties = domain.Properties{}
		}
	}
	return elements
}

func singlePage(elements []domain.Element) *Document {
	p := newPage(DefaultPageTitle, 0, normalizeElements(elements))
	return &Document{Pages: []*domain.ModulePage{p}, CurrentPageID: p.ID, Metadata: map[string]any{}}
}

func fromV3(c v3Content) *Document {
	doc := &Document{CurrentPageID: c.CurrentPageID, Metadata: c.Metadata}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	for key, p := range c.Pages {
		if p == nil {
			continue
		}
		if p.ID == "" {
			p.ID = key
		}
		p.Elements = normalizeElements(p.Elements)
		doc.Pages = append(doc.Pages, p)
	}
	if len(doc.Pages) == 0 {
		return NewDocument()
	}
	// Map iteration is random; ties on order fall back to id.
	sort.SliceStable(doc.Pages, func(i, j int) bool {
		if doc.Pages[i].Order != doc.Pages[j].Order {
			return doc.Pages[i].Order < doc.Pages[j].Order
		}
		return doc.Pages[i].ID < doc.Pages[j].ID
	})
	doc.reindex()
	return doc
}

func fromV2(env v2Envelope) *Document {
	elements := normalizeElements(env.Elements)
	if len(env.Pages) == 0 {
		return singlePage(elements)
	}
	byID := make(map[string]domain.Element, len(elements))
	for _, el := range elements {
		byID[el.ID] = el
	}
	placed := make(map[string]bool)
	doc := &Document{Metadata: map[string]any{}}
	for i, vp := range env.Pages {
		title := vp.Title
		if title == "" {
			title = fmt.Sprintf("Page %d", i+1)
		}
		var els []domain.Element
		for _, id := range vp.ElementIDs {
			if el, ok := byID[id]; ok && !placed[id] {
				els = append(els, el)
				placed[id] = true
			}
		}
		p := newPage(title, i, els)
		if vp.ID != "" {
			p.ID = vp.ID
		}
		doc.Pages = append(doc.Pages, p)
	}
	for _, el := range elements {
		if !placed[el.ID] {
			doc.Pages[0].Elements = append(doc.Pages[0].Elements, el)
		}
	}
	doc.CurrentPageID = doc.Pages[0].ID
	return doc
}

// Serialize always writes the version 3 shape.
func Serialize(doc *Document) ([]byte, error) {
	pages := make(map[string]*domain.ModulePage, len(doc.Pages))
	for _, p := range doc.Pages {
		pages[p.ID] = p
	}
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	env := v3Envelope{
		Version: CurrentVersion,
		Content: v3Content{
			Pages:         pages,
			CurrentPageID: doc.CurrentPageID,
			TotalPages:    len(doc.Pages),
			Metadata:      meta,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}
	return data, nil
}
