package mcpserver

import (
	"math"

	"smartclass/internal/domain"
)

const (
	GridSize = 20.0
	Padding  = 20.0
	MaxRowW  = 1280.0 // default viewport width
)

// LayoutEngine places elements created through MCP so that they don't
// overlap their siblings.
type LayoutEngine struct {
	gridSize float64
	padding  float64
	maxRowW  float64
}

func NewLayoutEngine() *LayoutEngine {
	return &LayoutEngine{
		gridSize: GridSize,
		padding:  Padding,
		maxRowW:  MaxRowW,
	}
}

// snap rounds v to the nearest grid point.
func (le *LayoutEngine) snap(v float64) float64 {
	return math.Round(v/le.gridSize) * le.gridSize
}

// rect is a simple axis-aligned bounding box.
type rect struct {
	x, y, w, h float64
}

func (a rect) intersects(b rect) bool {
	return a.x < b.x+b.w && a.x+a.w > b.x &&
		a.y < b.y+b.h && a.y+a.h > b.y
}

// siblings returns the geometry of parentID's direct children.
func siblings(elements []domain.Element, parentID string) []rect {
	var out []rect
	for _, el := range elements {
		if el.ParentID != parentID {
			continue
		}
		g := el.Geometry()
		out = append(out, rect{g.X, g.Y, g.Width, g.Height})
	}
	return out
}

// NextPosition finds the first free grid position for an element of size
// (newW, newH) among the children of parentID. rowW bounds the scan; zero
// uses the viewport width.
func (le *LayoutEngine) NextPosition(elements []domain.Element, parentID string, newW, newH, rowW float64) (float64, float64) {
	occupied := siblings(elements, parentID)
	if len(occupied) == 0 {
		return 0, 0
	}
	if rowW <= 0 {
		rowW = le.maxRowW
	}

	// Scan rows top-to-bottom, columns left-to-right
	candidate := rect{w: newW, h: newH}
	for y := 0.0; y < 20000; y += le.gridSize {
		for x := 0.0; x+newW <= rowW || x == 0; x += le.gridSize {
			candidate.x = le.snap(x)
			candidate.y = le.snap(y)

			overlaps := false
			for _, occ := range occupied {
				padded := rect{
					x: occ.x - le.padding,
					y: occ.y - le.padding,
					w: occ.w + le.padding*2,
					h: occ.h + le.padding*2,
				}
				if candidate.intersects(padded) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				return candidate.x, candidate.y
			}
		}
	}

	// Fallback: place below everything
	maxY := 0.0
	for _, r := range occupied {
		maxY = math.Max(maxY, r.y+r.h)
	}
	return 0, le.snap(maxY + le.padding)
}

// ArrangeGroup lays elements out left to right from (startX, startY),
// wrapping at the row width, and returns the position patches.
func (le *LayoutEngine) ArrangeGroup(elements []domain.Element, startX, startY float64) map[string]domain.Properties {
	x := le.snap(startX)
	y := le.snap(startY)
	rowHeight := 0.0
	out := make(map[string]domain.Properties, len(elements))

	for _, el := range elements {
		g := el.Geometry()
		if x > le.snap(startX) && x+g.Width > le.maxRowW {
			x = le.snap(startX)
			y += le.snap(rowHeight + le.padding)
			rowHeight = 0
		}
		out[el.ID] = domain.PositionPatch(x, y)
		rowHeight = math.Max(rowHeight, g.Height)
		x += le.snap(g.Width + le.padding)
	}
	return out
}
