package builder

import (
	"testing"

	"smartclass/internal/domain"
)

func dragFixture(t *testing.T) (*Store, *DragController) {
	t.Helper()
	s := newTestStore()
	s.LoadElements([]domain.Element{
		{ID: "box", Type: domain.ElementTypeContainer, Name: "Box", Properties: box(100, 100, 200, 200)},
		{ID: "a", Type: domain.ElementTypeText, Name: "A", Properties: box(150, 150, 50, 50)},
		{ID: "b", Type: domain.ElementTypeText, Name: "B", Properties: box(400, 300, 50, 50)},
		{ID: "inner", Type: domain.ElementTypeText, ParentID: "box", Name: "Inner", Properties: box(10, 10, 50, 50)},
	})
	return s, NewDragController(s, DragOptions{ViewportWidth: 800, ViewportHeight: 600})
}

func pos(t *testing.T, s *Store, id string) (float64, float64) {
	t.Helper()
	el, ok := s.Element(id)
	if !ok {
		t.Fatalf("element %s missing", id)
	}
	g := el.Geometry()
	return g.X, g.Y
}

func TestDrag_BelowThresholdIsClick(t *testing.T) {
	s, d := dragFixture(t)
	d.PointerDown("a", Point{0, 0}, false)
	if d.PointerMove(Point{1, 2}) {
		t.Error("movement under threshold must not start a drag")
	}
	if d.State() != DragArmed {
		t.Errorf("state = %s, want armed", d.State())
	}
	committed, err := d.PointerUp()
	if committed || err != nil {
		t.Errorf("PointerUp = %v, %v", committed, err)
	}
	if s.CanUndo() {
		t.Error("a click must not record history")
	}
	if sel := s.SelectedIDs(); len(sel) != 1 || sel[0] != "a" {
		t.Errorf("pressing should select the element, got %v", sel)
	}
}

func TestDrag_SingleHistoryEntry(t *testing.T) {
	s, d := dragFixture(t)
	d.PointerDown("a", Point{0, 0}, false)
	for i := 1; i <= 10; i++ {
		d.PointerMove(Point{float64(i) * 3, float64(i) * 4})
	}
	if !s.State().UI.Dragging {
		t.Error("dragging flag should be set")
	}
	if x, y := pos(t, s, "a"); x != 150 || y != 150 {
		t.Errorf("store must not change during the drag, got (%v, %v)", x, y)
	}
	if g := d.Preview()["a"]; g.X != 180 || g.Y != 190 {
		t.Errorf("preview = %+v", g)
	}

	committed, err := d.PointerUp()
	if !committed || err != nil {
		t.Fatalf("PointerUp = %v, %v", committed, err)
	}
	if x, y := pos(t, s, "a"); x != 180 || y != 190 {
		t.Errorf("after commit a = (%v, %v)", x, y)
	}
	if s.State().UI.Dragging {
		t.Error("dragging flag should be cleared")
	}
	past, _ := s.history.Depth()
	if past != 1 {
		t.Errorf("history depth = %d, want 1", past)
	}
	s.Undo()
	if x, y := pos(t, s, "a"); x != 150 || y != 150 {
		t.Errorf("undo should restore origin, got (%v, %v)", x, y)
	}
}

func TestDrag_Clamping(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		delta        Point
		wantX, wantY float64
	}{
		{"root left/top", "a", Point{-1000, -1000}, 0, 0},
		{"root right/bottom", "a", Point{5000, 5000}, 750, 550},
		{"child inside parent", "inner", Point{500, 500}, 150, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d := dragFixture(t)
			d.PointerDown(tt.id, Point{0, 0}, false)
			d.PointerMove(tt.delta)
			if _, err := d.PointerUp(); err != nil {
				t.Fatal(err)
			}
			if x, y := pos(t, s, tt.id); x != tt.wantX || y != tt.wantY {
				t.Errorf("got (%v, %v), want (%v, %v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestDrag_MultiSelectMovesTogether(t *testing.T) {
	s, d := dragFixture(t)
	s.SelectElement("a", false)
	s.SelectElement("b", true)

	d.PointerDown("b", Point{0, 0}, false)
	d.PointerMove(Point{20, -10})
	if _, err := d.PointerUp(); err != nil {
		t.Fatal(err)
	}
	if x, y := pos(t, s, "a"); x != 170 || y != 140 {
		t.Errorf("a = (%v, %v)", x, y)
	}
	if x, y := pos(t, s, "b"); x != 420 || y != 290 {
		t.Errorf("b = (%v, %v)", x, y)
	}
	past, _ := s.history.Depth()
	if past != 1 {
		t.Errorf("multi drag should be one history entry, depth = %d", past)
	}
}

func TestDrag_MultiSelectClampsAsGroup(t *testing.T) {
	tests := []struct {
		name  string
		delta Point
		wantA Point
		wantB Point
	}{
		{"left edge stops the group", Point{-200, 0}, Point{0, 150}, Point{250, 300}},
		{"right edge stops the group", Point{1000, 0}, Point{500, 150}, Point{750, 300}},
		{"bottom edge stops the group", Point{0, 1000}, Point{150, 400}, Point{400, 550}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d := dragFixture(t)
			s.SelectElement("a", false)
			s.SelectElement("b", true)

			d.PointerDown("a", Point{0, 0}, false)
			d.PointerMove(tt.delta)
			preview := d.Preview()
			if g := preview["a"]; g.X != tt.wantA.X || g.Y != tt.wantA.Y {
				t.Errorf("preview a = (%v, %v), want %v", g.X, g.Y, tt.wantA)
			}
			if g := preview["b"]; g.X != tt.wantB.X || g.Y != tt.wantB.Y {
				t.Errorf("preview b = (%v, %v), want %v", g.X, g.Y, tt.wantB)
			}
			if _, err := d.PointerUp(); err != nil {
				t.Fatal(err)
			}
			if x, y := pos(t, s, "a"); x != tt.wantA.X || y != tt.wantA.Y {
				t.Errorf("a = (%v, %v), want %v", x, y, tt.wantA)
			}
			if x, y := pos(t, s, "b"); x != tt.wantB.X || y != tt.wantB.Y {
				t.Errorf("b = (%v, %v), want %v", x, y, tt.wantB)
			}
		})
	}
}

func TestDrag_CancelRestoresOrigin(t *testing.T) {
	s, d := dragFixture(t)
	d.PointerDown("a", Point{0, 0}, false)
	d.PointerMove(Point{50, 50})
	if !d.Cancel() {
		t.Fatal("cancel should report an active gesture")
	}
	if d.State() != DragIdle {
		t.Errorf("state = %s", d.State())
	}
	if x, y := pos(t, s, "a"); x != 150 || y != 150 {
		t.Errorf("cancel moved the element to (%v, %v)", x, y)
	}
	if s.CanUndo() || s.State().UI.Dragging {
		t.Error("cancel must leave no trace")
	}
	if _, err := d.PointerUp(); err != ErrNoGesture {
		t.Errorf("PointerUp after cancel = %v", err)
	}
}

func TestDrag_DropIntoContainer(t *testing.T) {
	s, d := dragFixture(t)
	d.PointerDown("a", Point{0, 0}, false)
	d.PointerMove(Point{10, 10})
	if d.SetDropTarget("a") {
		t.Error("a text element cannot be a drop target")
	}
	if !d.SetDropTarget("box") {
		t.Fatal("box should accept the drop")
	}
	if _, err := d.PointerUp(); err != nil {
		t.Fatal(err)
	}
	el, _ := s.Element("a")
	if el.ParentID != "box" {
		t.Fatalf("parent = %q", el.ParentID)
	}
	if g := el.Geometry(); g.X != 60 || g.Y != 60 {
		t.Errorf("position in container space = (%v, %v), want (60, 60)", g.X, g.Y)
	}
	ax, ay := AbsolutePosition(s.Elements(), "a")
	if ax != 160 || ay != 160 {
		t.Errorf("absolute position = (%v, %v)", ax, ay)
	}
}

func TestDrag_ContainerCannotDropIntoItself(t *testing.T) {
	_, d := dragFixture(t)
	d.PointerDown("box", Point{0, 0}, false)
	d.PointerMove(Point{10, 10})
	if d.SetDropTarget("box") {
		t.Error("a container cannot be dropped into itself")
	}
	d.Close()
	if d.State() != DragIdle {
		t.Error("Close should end the gesture")
	}
}

func TestKeymap(t *testing.T) {
	s, d := dragFixture(t)
	k := NewKeymap(s, d)

	s.SelectElement("a", false)
	k.Handle(KeyEvent{Key: "ArrowRight"})
	k.Handle(KeyEvent{Key: "ArrowDown", Shift: true})
	if x, y := pos(t, s, "a"); x != 151 || y != 160 {
		t.Errorf("after nudge a = (%v, %v)", x, y)
	}

	k.Handle(KeyEvent{Key: "z", Mod: true})
	if x, y := pos(t, s, "a"); x != 151 || y != 150 {
		t.Errorf("after undo a = (%v, %v)", x, y)
	}
	k.Handle(KeyEvent{Key: "z", Mod: true, Shift: true})
	if _, y := pos(t, s, "a"); y != 160 {
		t.Errorf("redo did not reapply, y = %v", y)
	}

	k.Handle(KeyEvent{Key: "a", Mod: true})
	if n := len(s.SelectedIDs()); n != 4 {
		t.Errorf("select all picked %d", n)
	}
	k.Handle(KeyEvent{Key: "Escape"})
	if n := len(s.SelectedIDs()); n != 0 {
		t.Errorf("escape should clear selection, %d left", n)
	}

	s.SelectElement("box", false)
	k.Handle(KeyEvent{Key: "Delete"})
	if n := len(s.Elements()); n != 2 {
		t.Errorf("delete should cascade, %d elements left", n)
	}
	if k.Handle(KeyEvent{Key: "q"}) {
		t.Error("unbound key reported as handled")
	}
}
