package mcpserver

import (
	"testing"

	"smartclass/internal/domain"
)

func el(id, parent string, x, y, w, h float64) domain.Element {
	return domain.Element{
		ID:         id,
		Type:       domain.ElementTypeContainer,
		ParentID:   parent,
		Properties: domain.Geometry{X: x, Y: y, Width: w, Height: h}.Patch(),
	}
}

func TestNextPosition_EmptyCanvas(t *testing.T) {
	le := NewLayoutEngine()
	x, y := le.NextPosition(nil, "", 480, 360, 0)
	if x != 0 || y != 0 {
		t.Errorf("expected (0, 0) for empty canvas, got (%.0f, %.0f)", x, y)
	}
}

func TestNextPosition_AvoidsSiblings(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Element{
		el("a", "", 0, 0, 480, 360),
		el("b", "", 520, 0, 480, 360),
	}
	x, y := le.NextPosition(existing, "", 200, 100, 0)

	for _, e := range existing {
		g := e.Geometry()
		r := rect{x, y, 200, 100}
		padded := rect{g.X - Padding, g.Y - Padding, g.Width + Padding*2, g.Height + Padding*2}
		if r.intersects(padded) {
			t.Errorf("position (%.0f, %.0f) overlaps element %s", x, y, e.ID)
		}
	}
	if x+200 > MaxRowW {
		t.Errorf("position (%.0f, %.0f) leaves the viewport", x, y)
	}
}

func TestNextPosition_OnlyConsidersSiblings(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Element{
		el("box", "", 0, 0, 400, 400),
		el("child", "box", 0, 0, 100, 100),
	}
	x, y := le.NextPosition(existing, "box", 100, 100, 400)
	if y != 0 || x < 100+Padding {
		t.Errorf("expected a slot right of the child, got (%.0f, %.0f)", x, y)
	}

	x, y = le.NextPosition(existing, "other", 100, 100, 0)
	if x != 0 || y != 0 {
		t.Errorf("empty parent should start at the origin, got (%.0f, %.0f)", x, y)
	}
}

func TestNextPosition_WrapsToNextRow(t *testing.T) {
	le := NewLayoutEngine()
	existing := []domain.Element{el("wide", "", 0, 0, 300, 100)}
	x, y := le.NextPosition(existing, "", 200, 100, 400)
	if x != 0 || y < 100+Padding {
		t.Errorf("expected the next row, got (%.0f, %.0f)", x, y)
	}
}

func TestArrangeGroup(t *testing.T) {
	le := NewLayoutEngine()
	elements := []domain.Element{
		el("1", "", 0, 0, 500, 200),
		el("2", "", 0, 0, 500, 200),
		el("3", "", 0, 0, 500, 200),
	}

	patches := le.ArrangeGroup(elements, 0, 0)
	if len(patches) != 3 {
		t.Fatalf("expected 3 patches, got %d", len(patches))
	}

	placed := make([]rect, 0, 3)
	for _, e := range elements {
		p := patches[e.ID]
		placed = append(placed, rect{p.Float(domain.PropX), p.Float(domain.PropY), 500, 200})
	}
	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			if placed[i].intersects(placed[j]) {
				t.Errorf("elements %d and %d overlap: (%.0f,%.0f) and (%.0f,%.0f)",
					i, j, placed[i].x, placed[i].y, placed[j].x, placed[j].y)
			}
		}
	}
	if placed[2].y == 0 {
		t.Error("third element should wrap to a new row")
	}
}

func TestSnap(t *testing.T) {
	le := NewLayoutEngine()
	tests := []struct {
		input, want float64
	}{
		{0, 0},
		{9, 0},
		{11, 20},
		{20, 20},
		{30, 40},
		{105, 100},
	}
	for _, tt := range tests {
		got := le.snap(tt.input)
		if got != tt.want {
			t.Errorf("snap(%.0f) = %.0f, want %.0f", tt.input, got, tt.want)
		}
	}
}
