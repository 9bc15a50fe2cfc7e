package builder

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/samber/lo"

	"smartclass/internal/domain"
	"smartclass/internal/logging"
)

type ChangeKind string

const (
	ChangeElements  ChangeKind = "elements"
	ChangeSelection ChangeKind = "selection"
	ChangeEditing   ChangeKind = "editing"
	ChangeUI        ChangeKind = "ui"
	ChangeLoaded    ChangeKind = "loaded"
)

// Change is delivered to OnChange listeners after a command has been applied.
type Change struct {
	Kind ChangeKind `json:"kind"`
	IDs  []string   `json:"ids,omitempty"`
}

// ElementValidator vets an element about to be added or changed against the
// rest of the model.
type ElementValidator func(others []domain.Element, candidate domain.Element) error

// UIFlags are view-level flags that live next to the element model.
type UIFlags struct {
	SidebarOpen bool `json:"sidebarOpen"`
	Dragging    bool `json:"dragging"`
}

// State is a read-only copy of everything a builder view renders from.
type State struct {
	Elements           []domain.Element `json:"elements"`
	SelectedElementIDs []string         `json:"selectedElementIds"`
	EditingElementID   string           `json:"editingElementId,omitempty"`
	CanUndo            bool             `json:"canUndo"`
	CanRedo            bool             `json:"canRedo"`
	UI                 UIFlags          `json:"ui"`
}

// NewElement is the input of AddElement. ID is optional.
type NewElement struct {
	ID         string             `json:"id,omitempty"`
	Type       domain.ElementType `json:"type"`
	ParentID   string             `json:"parentId,omitempty"`
	Name       string             `json:"name,omitempty"`
	Properties domain.Properties  `json:"properties,omitempty"`
}

// Patch is a partial update of one element. Nil fields are left alone.
type Patch struct {
	ID         string            `json:"id"`
	Properties domain.Properties `json:"properties,omitempty"`
	ParentID   *string           `json:"parentId,omitempty"`
	Name       *string           `json:"name,omitempty"`
}

type Options struct {
	HistoryLimit int
	NewID        func() string
	Validators   []ElementValidator
	Logger       *log.Logger
}

// Store is the single source of truth of a builder canvas. All commands are
// serialised by one mutex; listeners run after it is released.
type Store struct {
	mu         sync.Mutex
	elements   []domain.Element
	selected   []string
	editing    string
	ui         UIFlags
	history    *History
	newID      func() string
	validators []ElementValidator
	log        *log.Logger

	listenersMu  sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

func NewStore(opts Options) *Store {
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("builder")
	}
	return &Store{
		history:    NewHistory(opts.HistoryLimit),
		newID:      opts.NewID,
		validators: opts.Validators,
		log:        opts.Logger,
		listeners:  make(map[int]func(Change)),
	}
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn func(Change)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.listenersMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// ── Read accessors ─────────────────────────────────────────

func (s *Store) Elements() []domain.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneElements(s.elements)
}

func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, el := range s.elements {
		if el.ID == id {
			return el.Clone(), true
		}
	}
	return domain.Element{}, false
}

func (s *Store) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

func (s *Store) EditingTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Elements:           domain.CloneElements(s.elements),
		SelectedElementIDs: append([]string{}, s.selected...),
		EditingElementID:   s.editing,
		CanUndo:            s.history.CanUndo(),
		CanRedo:            s.history.CanRedo(),
		UI:                 s.ui,
	}
}

func (s *Store) snapshot() Snapshot {
	return Snapshot{Elements: s.elements, Selection: s.selected}
}

// record must run before the mutation is applied.
func (s *Store) record() {
	s.history.Record(s.snapshot())
}

// ── Element commands ───────────────────────────────────────

func (s *Store) AddElement(in NewElement) (domain.Element, error) {
	added, err := s.AddElements([]NewElement{in})
	if err != nil {
		return domain.Element{}, err
	}
	return added[0], nil
}

// AddElements adds a batch as one history entry. Later entries may use earlier
// ones as parents.
func (s *Store) AddElements(batch []NewElement) ([]domain.Element, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	working := domain.CloneElements(s.elements)
	added := make([]domain.Element, 0, len(batch))
	for _, in := range batch {
		el, err := s.buildElement(working, in)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		working = append(working, el)
		added = append(added, el.Clone())
	}
	s.record()
	s.elements = working
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeElements, IDs: lo.Map(added, func(el domain.Element, _ int) string { return el.ID })})
	return added, nil
}

func (s *Store) buildElement(working []domain.Element, in NewElement) (domain.Element, error) {
	if !in.Type.Valid() {
		return domain.Element{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	id := in.ID
	if id == "" {
		id = s.newID()
	}
	idx := indexByID(working)
	if _, dup := idx[id]; dup {
		return domain.Element{}, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	if err := checkParent(working, idx, id, in.ParentID); err != nil {
		return domain.Element{}, err
	}
	name := in.Name
	if name == "" {
		n := lo.CountBy(working, func(el domain.Element) bool { return el.Type == in.Type })
		name = fmt.Sprintf("%s %d", in.Type.Label(), n+1)
	}
	el := domain.Element{
		ID:         id,
		Type:       in.Type,
		ParentID:   in.ParentID,
		Name:       name,
		Properties: in.Properties.Clone(),
	}
	for _, v := range s.validators {
		if err := v(working, el); err != nil {
			return domain.Element{}, err
		}
	}
	return el, nil
}

// UpdateElement shallow-merges patch into the element's properties.
// Unknown ids are a no-op and report false.
func (s *Store) UpdateElement(id string, patch domain.Properties) (bool, error) {
	n, err := s.UpdateElements([]Patch{{ID: id, Properties: patch}})
	return n > 0, err
}

func (s *Store) RenameElement(id, name string) bool {
	n, _ := s.UpdateElements([]Patch{{ID: id, Name: &name}})
	return n > 0
}

// MoveElement reparents id under parentID ("" for the canvas root).
func (s *Store) MoveElement(id, parentID string) (bool, error) {
	n, err := s.UpdateElements([]Patch{{ID: id, ParentID: &parentID}})
	return n > 0, err
}

// UpdateElements applies every patch as a single history entry. Patches for
// unknown ids or that change nothing are skipped; an invalid reparent or a
// validator failure aborts the whole batch. A batch that changes nothing
// records no history and notifies no one.
func (s *Store) UpdateElements(patches []Patch) (int, error) {
	s.mu.Lock()
	working := domain.CloneElements(s.elements)
	var touched []string
	for _, p := range patches {
		idx := indexByID(working)
		i, ok := idx[p.ID]
		if !ok {
			continue
		}
		el := working[i]
		before := el
		if p.Properties != nil {
			el.Properties = el.Properties.Merge(p.Properties)
		}
		if p.Name != nil {
			el.Name = *p.Name
		}
		reparented := false
		if p.ParentID != nil && *p.ParentID != el.ParentID {
			if err := checkParent(working, idx, el.ID, *p.ParentID); err != nil {
				s.mu.Unlock()
				return 0, err
			}
			el.ParentID = *p.ParentID
			reparented = true
		}
		if _, changesGroup := p.Properties[domain.PropConnectionGroupID]; changesGroup {
			others := append(append([]domain.Element{}, working[:i]...), working[i+1:]...)
			for _, v := range s.validators {
				if err := v(others, el); err != nil {
					s.mu.Unlock()
					return 0, err
				}
			}
		}
		if !reparented && el.Name == before.Name && el.Properties.Equal(before.Properties) {
			continue
		}
		if reparented {
			// A reparented element becomes the topmost child of its new parent.
			working = append(append(working[:i:i], working[i+1:]...), el)
		} else {
			working[i] = el
		}
		touched = append(touched, el.ID)
	}
	if len(touched) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	s.record()
	s.elements = working
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeElements, IDs: touched})
	return len(touched), nil
}

func (s *Store) RemoveElement(id string) bool {
	return s.RemoveElements([]string{id}) > 0
}

// RemoveElements deletes the given elements and all their descendants as one
// history entry, pruning the selection and the editing target. It returns the
// number of elements removed.
func (s *Store) RemoveElements(ids []string) int {
	s.mu.Lock()
	idx := indexByID(s.elements)
	doomed := make(map[string]bool)
	for _, id := range ids {
		if _, ok := idx[id]; !ok {
			continue
		}
		doomed[id] = true
		for _, d := range Descendants(s.elements, id) {
			doomed[d] = true
		}
	}
	if len(doomed) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.record()
	s.elements = lo.Filter(s.elements, func(el domain.Element, _ int) bool { return !doomed[el.ID] })
	prevSelected := len(s.selected)
	s.selected = lo.Filter(s.selected, func(id string, _ int) bool { return !doomed[id] })
	changes := []Change{{Kind: ChangeElements, IDs: lo.Keys(doomed)}}
	if len(s.selected) != prevSelected {
		changes = append(changes, Change{Kind: ChangeSelection, IDs: append([]string(nil), s.selected...)})
	}
	if doomed[s.editing] {
		s.editing = ""
		changes = append(changes, Change{Kind: ChangeEditing})
	}
	s.mu.Unlock()

	s.notify(changes...)
	return len(doomed)
}

// ImportProject atomically replaces the element model with serialized content,
// either a JSON array of elements or {"elements": [...]}. Invalid content is
// logged and rejected without touching the current state.
func (s *Store) ImportProject(raw []byte) error {
	elements, err := decodeElements(raw)
	if err == nil {
		err = ValidateElements(elements)
	}
	if err != nil {
		s.log.Warnf("import rejected: %v", err)
		return err
	}

	s.mu.Lock()
	s.record()
	s.elements = elements
	s.selected = nil
	s.editing = ""
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded}, Change{Kind: ChangeSelection})
	return nil
}

func decodeElements(raw []byte) ([]domain.Element, error) {
	var list []domain.Element
	if err := json.Unmarshal(raw, &list); err == nil {
		return normalize(list), nil
	}
	var wrapped struct {
		Elements []domain.Element `json:"elements"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if wrapped.Elements == nil {
		return nil, fmt.Errorf("%w: no elements", ErrInvalidContent)
	}
	return normalize(wrapped.Elements), nil
}

func normalize(elements []domain.Element) []domain.Element {
	for i := range elements {
		if elements[i].Properties == nil {
			elements[i].Properties = domain.Properties{}
		}
	}
	return elements
}

// LoadElements replaces the model when a page is loaded. Selection, editing
// target and history all start fresh: undo never crosses a page boundary.
func (s *Store) LoadElements(elements []domain.Element) {
	s.mu.Lock()
	s.elements = normalize(domain.CloneElements(elements))
	s.selected = nil
	s.editing = ""
	s.history.Clear()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded}, Change{Kind: ChangeSelection})
}

// ── History ────────────────────────────────────────────────

// Undo restores the previous snapshot; it is a no-op when nothing is recorded.
func (s *Store) Undo() bool {
	s.mu.Lock()
	prev, ok := s.history.Undo(s.snapshot())
	if ok {
		s.restore(prev)
	}
	s.mu.Unlock()
	if ok {
		s.notify(Change{Kind: ChangeElements}, Change{Kind: ChangeSelection})
	}
	return ok
}

func (s *Store) Redo() bool {
	s.mu.Lock()
	next, ok := s.history.Redo(s.snapshot())
	if ok {
		s.restore(next)
	}
	s.mu.Unlock()
	if ok {
		s.notify(Change{Kind: ChangeElements}, Change{Kind: ChangeSelection})
	}
	return ok
}

func (s *Store) restore(snap Snapshot) {
	s.elements = snap.Elements
	s.selected = snap.Selection
	if s.editing != "" {
		if _, ok := indexByID(s.elements)[s.editing]; !ok {
			s.editing = ""
		}
	}
}

// ── Selection ──────────────────────────────────────────────

// SelectElement replaces the selection with {id}, or toggles id when
// multiSelect is set. Unknown ids are ignored.
func (s *Store) SelectElement(id string, multiSelect bool) bool {
	s.mu.Lock()
	if _, ok := indexByID(s.elements)[id]; !ok {
		s.mu.Unlock()
		return false
	}
	switch {
	case !multiSelect:
		s.selected = []string{id}
	case lo.Contains(s.selected, id):
		s.selected = lo.Without(s.selected, id)
	default:
		s.selected = append(append([]string(nil), s.selected...), id)
	}
	sel := append([]string(nil), s.selected...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelection, IDs: sel})
	return true
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	had := len(s.selected) > 0
	s.selected = nil
	s.mu.Unlock()
	if had {
		s.notify(Change{Kind: ChangeSelection})
	}
}

func (s *Store) SelectAll() {
	s.mu.Lock()
	s.selected = lo.Map(s.elements, func(el domain.Element, _ int) string { return el.ID })
	sel := append([]string(nil), s.selected...)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSelection, IDs: sel})
}

// ── Editing target & UI flags ──────────────────────────────

// SetEditingTarget makes id the single active text-edit target; "" clears it.
func (s *Store) SetEditingTarget(id string) error {
	s.mu.Lock()
	if id != "" {
		i, ok := indexByID(s.elements)[id]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrElementNotFound, id)
		}
		if !s.elements[i].Type.TextEditable() {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q is a %s", ErrNotTextEditable, id, s.elements[i].Type)
		}
	}
	changed := s.editing != id
	s.editing = id
	s.mu.Unlock()
	if changed {
		s.notify(Change{Kind: ChangeEditing, IDs: lo.Compact([]string{id})})
	}
	return nil
}

func (s *Store) SetSidebarOpen(open bool) {
	s.mu.Lock()
	s.ui.SidebarOpen = open
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeUI})
}

func (s *Store) SetDragging(dragging bool) {
	s.mu.Lock()
	changed := s.ui.Dragging != dragging
	s.ui.Dragging = dragging
	s.mu.Unlock()
	if changed {
		s.notify(Change{Kind: ChangeUI})
	}
}
