package builder

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"smartclass/internal/domain"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("el-%d", n)
	}
}

func newTestStore() *Store {
	return NewStore(Options{NewID: seqIDs()})
}

func mustAdd(t *testing.T, s *Store, in NewElement) domain.Element {
	t.Helper()
	el, err := s.AddElement(in)
	if err != nil {
		t.Fatalf("AddElement(%+v): %v", in, err)
	}
	return el
}

func ids(elements []domain.Element) []string {
	out := make([]string, len(elements))
	for i, el := range elements {
		out[i] = el.ID
	}
	return out
}

func TestAddElement_DefaultsAndValidation(t *testing.T) {
	s := newTestStore()

	h := mustAdd(t, s, NewElement{Type: domain.ElementTypeHeading})
	if h.ID != "el-1" || h.Name != "Heading 1" {
		t.Errorf("got id=%q name=%q", h.ID, h.Name)
	}
	if h.Properties == nil {
		t.Error("properties should never be nil")
	}
	h2 := mustAdd(t, s, NewElement{Type: domain.ElementTypeHeading})
	if h2.Name != "Heading 2" {
		t.Errorf("second heading name = %q", h2.Name)
	}

	tests := []struct {
		name string
		in   NewElement
		want error
	}{
		{"unknown type", NewElement{Type: "carousel"}, ErrUnknownType},
		{"missing parent", NewElement{Type: domain.ElementTypeText, ParentID: "nope"}, ErrInvalidParent},
		{"non-container parent", NewElement{Type: domain.ElementTypeText, ParentID: h.ID}, ErrInvalidParent},
		{"duplicate id", NewElement{ID: h.ID, Type: domain.ElementTypeText}, ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddElement(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(s.Elements()) != 2 {
		t.Errorf("rejected adds must not change the model, got %d elements", len(s.Elements()))
	}
}

func TestContainerTextRemoveScenario(t *testing.T) {
	s := newTestStore()
	c := mustAdd(t, s, NewElement{Type: domain.ElementTypeContainer})
	txt := mustAdd(t, s, NewElement{Type: domain.ElementTypeText, ParentID: c.ID})

	if got := txt.ParentID; got != c.ID {
		t.Fatalf("text parent = %q, want %q", got, c.ID)
	}
	s.SelectElement(txt.ID, false)
	if err := s.SetEditingTarget(txt.ID); err != nil {
		t.Fatal(err)
	}

	if !s.RemoveElement(c.ID) {
		t.Fatal("RemoveElement returned false")
	}
	if n := len(s.Elements()); n != 0 {
		t.Errorf("expected cascade removal, %d elements left", n)
	}
	if sel := s.SelectedIDs(); len(sel) != 0 {
		t.Errorf("selection not pruned: %v", sel)
	}
	if s.EditingTarget() != "" {
		t.Error("editing target not cleared")
	}

	if !s.Undo() {
		t.Fatal("undo failed")
	}
	if got := ids(s.Elements()); !reflect.DeepEqual(got, []string{c.ID, txt.ID}) {
		t.Errorf("after undo elements = %v", got)
	}
	if sel := s.SelectedIDs(); !reflect.DeepEqual(sel, []string{txt.ID}) {
		t.Errorf("after undo selection = %v", sel)
	}
}

func TestRemoveElement_UnknownIsNoop(t *testing.T) {
	s := newTestStore()
	mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	if s.RemoveElement("missing") {
		t.Error("removing an unknown id should report false")
	}
	past, _ := s.history.Depth()
	if past != 1 {
		t.Errorf("no-op removal should not record history, depth = %d", past)
	}
}

func TestUpdateElement_MergeAndDelete(t *testing.T) {
	s := newTestStore()
	el := mustAdd(t, s, NewElement{Type: domain.ElementTypeText, Properties: domain.Properties{"content": "hi", "x": 10.0}})

	ok, err := s.UpdateElement(el.ID, domain.Properties{"y": 5.0, "content": nil})
	if !ok || err != nil {
		t.Fatalf("UpdateElement = %v, %v", ok, err)
	}
	got, _ := s.Element(el.ID)
	want := domain.Properties{"x": 10.0, "y": 5.0}
	if !reflect.DeepEqual(got.Properties, want) {
		t.Errorf("properties = %v, want %v", got.Properties, want)
	}

	if ok, _ := s.UpdateElement("missing", domain.Properties{"x": 1.0}); ok {
		t.Error("unknown id should be a no-op")
	}
}

func TestUpdateElements_NoChangeRecordsNothing(t *testing.T) {
	s := newTestStore()
	el := mustAdd(t, s, NewElement{Type: domain.ElementTypeText, Name: "Title", Properties: domain.Properties{"x": 0.0, "y": 0.0, "content": "hi"}})
	notified := 0
	detach := s.OnChange(func(Change) { notified++ })
	defer detach()

	patches := [][]Patch{
		{{ID: el.ID, Properties: domain.Properties{"content": "hi"}}},
		{{ID: el.ID, Properties: domain.Properties{"x": 0}}},
		{{ID: el.ID, ParentID: new(string)}},
		{{ID: el.ID, Name: &el.Name}},
		{{ID: el.ID, Properties: domain.Properties{"missing": nil}}},
	}
	for i, batch := range patches {
		n, err := s.UpdateElements(batch)
		if n != 0 || err != nil {
			t.Errorf("batch %d: UpdateElements = %d, %v, want 0, nil", i, n, err)
		}
	}
	if notified != 0 {
		t.Errorf("unchanged updates notified %d times", notified)
	}

	s.SelectElement(el.ID, false)
	notified = 0
	if n := NewKeymap(s, nil).Nudge(-1, -1); n != 0 {
		t.Errorf("nudge against the origin moved %d elements", n)
	}
	past, _ := s.history.Depth()
	if past != 1 {
		t.Errorf("unchanged updates must not record history, depth = %d", past)
	}
	if notified != 0 {
		t.Errorf("stuck nudge notified %d times", notified)
	}
}

func TestMoveElement_RejectsCycles(t *testing.T) {
	s := newTestStore()
	outer := mustAdd(t, s, NewElement{Type: domain.ElementTypeContainer})
	inner := mustAdd(t, s, NewElement{Type: domain.ElementTypeContainer, ParentID: outer.ID})
	leaf := mustAdd(t, s, NewElement{Type: domain.ElementTypeText})

	if _, err := s.MoveElement(outer.ID, inner.ID); !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
	if _, err := s.MoveElement(outer.ID, outer.ID); !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle for self-parent, got %v", err)
	}
	ok, err := s.MoveElement(leaf.ID, inner.ID)
	if !ok || err != nil {
		t.Fatalf("MoveElement = %v, %v", ok, err)
	}
	els := s.Elements()
	if last := els[len(els)-1]; last.ID != leaf.ID || last.ParentID != inner.ID {
		t.Errorf("reparented element should be last child of new parent, got %+v", last)
	}
}

func TestSelectElement_ToggleScenario(t *testing.T) {
	s := newTestStore()
	a := mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	b := mustAdd(t, s, NewElement{Type: domain.ElementTypeText})

	steps := []struct {
		id    string
		multi bool
		want  []string
	}{
		{a.ID, false, []string{a.ID}},
		{b.ID, true, []string{a.ID, b.ID}},
		{a.ID, true, []string{b.ID}},
		{a.ID, false, []string{a.ID}},
		{"ghost", false, []string{a.ID}},
	}
	for i, st := range steps {
		s.SelectElement(st.id, st.multi)
		if got := s.SelectedIDs(); !reflect.DeepEqual(got, st.want) {
			t.Errorf("step %d: selection = %v, want %v", i, got, st.want)
		}
	}
	past, _ := s.history.Depth()
	if past != 2 {
		t.Errorf("selection changes must not record history, depth = %d", past)
	}
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	s := newTestStore()
	initial := s.Elements()

	const n = 5
	for i := 0; i < n; i++ {
		el := mustAdd(t, s, NewElement{Type: domain.ElementTypeParagraph})
		if _, err := s.UpdateElement(el.ID, domain.Properties{"x": float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	after := s.Elements()

	for i := 0; i < 2*n; i++ {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if s.Undo() {
		t.Error("undo past the beginning should be a no-op")
	}
	if got := s.Elements(); len(got) != len(initial) {
		t.Errorf("after undoing everything got %d elements", len(got))
	}

	for i := 0; i < 2*n; i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if got := s.Elements(); !reflect.DeepEqual(got, after) {
		t.Errorf("redo did not restore state:\n got %v\nwant %v", got, after)
	}
	if s.Redo() {
		t.Error("redo with empty future should be a no-op")
	}
}

func TestRedo_ClearedByNewMutation(t *testing.T) {
	s := newTestStore()
	mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	s.Undo()
	if !s.CanRedo() {
		t.Fatal("expected redo to be available")
	}
	mustAdd(t, s, NewElement{Type: domain.ElementTypeButton})
	if s.CanRedo() {
		t.Error("a new mutation must clear the redo stack")
	}
	if s.Redo() {
		t.Error("redo should be a no-op")
	}
}

func TestHistory_Limit(t *testing.T) {
	s := NewStore(Options{NewID: seqIDs(), HistoryLimit: 3})
	for i := 0; i < 10; i++ {
		mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	}
	undone := 0
	for s.Undo() {
		undone++
	}
	if undone != 3 {
		t.Errorf("undid %d steps, want 3", undone)
	}
	if n := len(s.Elements()); n != 7 {
		t.Errorf("expected 7 elements after exhausting history, got %d", n)
	}
}

func TestImportProject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantN   int
	}{
		{"array", `[{"id":"a","type":"container"},{"id":"b","type":"text","parentId":"a"}]`, nil, 2},
		{"wrapped", `{"elements":[{"id":"a","type":"heading","name":"Title"}]}`, nil, 1},
		{"garbage", `{{{`, ErrInvalidContent, 0},
		{"duplicate", `[{"id":"a","type":"text"},{"id":"a","type":"text"}]`, ErrDuplicateID, 0},
		{"dangling parent", `[{"id":"a","type":"text","parentId":"zzz"}]`, ErrInvalidParent, 0},
		{"text parent", `[{"id":"a","type":"text"},{"id":"b","type":"text","parentId":"a"}]`, ErrInvalidParent, 0},
		{"cycle", `[{"id":"a","type":"container","parentId":"b"},{"id":"b","type":"container","parentId":"a"}]`, ErrCycle, 0},
		{"unknown type", `[{"id":"a","type":"marquee"}]`, ErrUnknownType, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			keep := mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
			s.SelectElement(keep.ID, false)

			err := s.ImportProject([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if got := ids(s.Elements()); !reflect.DeepEqual(got, []string{keep.ID}) {
					t.Errorf("failed import must leave state untouched, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if n := len(s.Elements()); n != tt.wantN {
				t.Errorf("got %d elements, want %d", n, tt.wantN)
			}
			if len(s.SelectedIDs()) != 0 {
				t.Error("import must reset selection")
			}
			if !s.CanUndo() {
				t.Error("import should be undoable")
			}
		})
	}
}

func TestLoadElements_ResetsHistory(t *testing.T) {
	s := newTestStore()
	mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	s.LoadElements([]domain.Element{{ID: "p1", Type: domain.ElementTypeHeading}})
	if s.CanUndo() || s.CanRedo() {
		t.Error("page load must start with empty history")
	}
	el, ok := s.Element("p1")
	if !ok || el.Properties == nil {
		t.Errorf("loaded element = %+v, %v", el, ok)
	}
}

func TestSetEditingTarget(t *testing.T) {
	s := newTestStore()
	img := mustAdd(t, s, NewElement{Type: domain.ElementTypeImage})
	p := mustAdd(t, s, NewElement{Type: domain.ElementTypeParagraph})

	if err := s.SetEditingTarget(img.ID); err == nil {
		t.Error("images are not text editable")
	}
	if err := s.SetEditingTarget("missing"); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := s.SetEditingTarget(p.ID); err != nil {
		t.Fatal(err)
	}
	if s.EditingTarget() != p.ID {
		t.Errorf("editing target = %q", s.EditingTarget())
	}
	if err := s.SetEditingTarget(""); err != nil || s.EditingTarget() != "" {
		t.Error("empty id should clear the target")
	}
}

func TestOnChange(t *testing.T) {
	s := newTestStore()
	var kinds []ChangeKind
	unsubscribe := s.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	el := mustAdd(t, s, NewElement{Type: domain.ElementTypeText})
	s.SelectElement(el.ID, false)
	unsubscribe()
	s.RemoveElement(el.ID)

	want := []ChangeKind{ChangeElements, ChangeSelection}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("changes = %v, want %v", kinds, want)
	}
}

func TestAddTemplate(t *testing.T) {
	s := newTestStore()
	added, err := s.AddTemplate("connection-pair", "", 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(added))
	}
	if added[1].Connection().GroupID == "" || added[1].Connection().GroupID != added[2].Connection().GroupID {
		t.Error("pair nodes must share a connection group")
	}
	if !s.Undo() || len(s.Elements()) != 0 {
		t.Error("template expansion should be a single history entry")
	}
	if _, err := s.AddTemplate("carousel", "", 0, 0); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("err = %v", err)
	}
}
