package builder

import (
	"errors"
	"math"
	"sync"

	"github.com/samber/lo"

	"smartclass/internal/domain"
)

// DefaultDragThreshold is the pointer travel, in pixels, that turns a press
// into a drag.
const DefaultDragThreshold = 3.0

type DragState string

const (
	DragIdle       DragState = "idle"
	DragArmed      DragState = "armed"
	DragDragging   DragState = "dragging"
	DragCommitting DragState = "committing"
)

var ErrNoGesture = errors.New("no drag gesture in progress")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type DragOptions struct {
	Threshold      float64
	ViewportWidth  float64
	ViewportHeight float64
}

// DragController turns pointer gestures into element moves. While dragging it
// only exposes preview geometry; the store is written once, on release.
type DragController struct {
	store *Store
	opts  DragOptions

	mu         sync.Mutex
	state      DragState
	start      Point
	delta      Point
	ids        []string
	origins    map[string]domain.Geometry
	dropTarget string
	hasDrop    bool
}

func NewDragController(store *Store, opts DragOptions) *DragController {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultDragThreshold
	}
	return &DragController{store: store, opts: opts, state: DragIdle}
}

func (d *DragController) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PointerDown arms a gesture on id. Pressing an unselected element selects it
// first (toggling into the selection when multi is set); pressing a selected
// one drags the whole selection.
func (d *DragController) PointerDown(id string, p Point, multi bool) bool {
	if _, ok := d.store.Element(id); !ok {
		return false
	}
	if !lo.Contains(d.store.SelectedIDs(), id) {
		d.store.SelectElement(id, multi)
	}
	elements := d.store.Elements()
	selected := d.store.SelectedIDs()
	if !lo.Contains(selected, id) {
		// multi-click toggled it off; nothing to drag
		return false
	}

	// Children of a selected container already move with their parent.
	set := lo.SliceToMap(selected, func(s string) (string, bool) { return s, true })
	ids := lo.Filter(selected, func(s string, _ int) bool {
		return !lo.SomeBy(Ancestors(elements, s), func(a string) bool { return set[a] })
	})
	idx := indexByID(elements)
	origins := make(map[string]domain.Geometry, len(ids))
	for _, s := range ids {
		origins[s] = elements[idx[s]].Geometry()
	}

	d.mu.Lock()
	d.state = DragArmed
	d.start = p
	d.delta = Point{}
	d.ids = ids
	d.origins = origins
	d.dropTarget = ""
	d.hasDrop = false
	d.mu.Unlock()
	return true
}

// PointerMove updates the gesture and reports whether a drag is in progress.
func (d *DragController) PointerMove(p Point) bool {
	d.mu.Lock()
	if d.state != DragArmed && d.state != DragDragging {
		d.mu.Unlock()
		return false
	}
	d.delta = Point{X: p.X - d.start.X, Y: p.Y - d.start.Y}
	started := false
	if d.state == DragArmed && math.Hypot(d.delta.X, d.delta.Y) >= d.opts.Threshold {
		d.state = DragDragging
		started = true
	}
	dragging := d.state == DragDragging
	d.mu.Unlock()
	if started {
		d.store.SetDragging(true)
	}
	return dragging
}

// SetDropTarget names the container under the pointer, "" for the canvas.
// Targets that are not containers, or that sit inside the dragged elements,
// are ignored.
func (d *DragController) SetDropTarget(id string) bool {
	if id != "" {
		el, ok := d.store.Element(id)
		if !ok || !el.Type.CanContain() {
			return false
		}
	}
	elements := d.store.Elements()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragDragging {
		return false
	}
	for _, dragged := range d.ids {
		if id == dragged || lo.Contains(Descendants(elements, dragged), id) {
			return false
		}
	}
	d.dropTarget = id
	d.hasDrop = true
	return true
}

// Preview returns the would-be geometry of every dragged element, in its
// current parent's coordinate space.
func (d *DragController) Preview() map[string]domain.Geometry {
	elements := d.store.Elements()
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]domain.Geometry, len(d.ids))
	if d.state != DragDragging {
		return out
	}
	idx := indexByID(elements)
	delta := d.groupDelta(elements, false)
	for _, id := range d.ids {
		i, ok := idx[id]
		if !ok {
			continue
		}
		out[id] = d.moved(elements, elements[i].ParentID, d.origins[id], delta)
	}
	return out
}

func (d *DragController) moved(elements []domain.Element, parentID string, origin domain.Geometry, delta Point) domain.Geometry {
	g := origin
	g.X += delta.X
	g.Y += delta.Y
	w, h := d.bounds(elements, parentID)
	return g.Clamp(w, h)
}

// dropShift reports where el lands when the gesture commits: the target
// parent and the offset from el's current parent space into it.
func (d *DragController) dropShift(elements []domain.Element, el domain.Element) (string, float64, float64) {
	if !d.hasDrop || d.dropTarget == el.ParentID {
		return el.ParentID, 0, 0
	}
	px, py := parentOrigin(elements, el.ParentID)
	tx, ty := parentOrigin(elements, d.dropTarget)
	return d.dropTarget, px - tx, py - ty
}

// groupDelta limits the pointer delta so that every dragged element stays in
// bounds, keeping the selection's relative layout intact. Elements that
// already start out of bounds fall back to being clamped one by one.
func (d *DragController) groupDelta(elements []domain.Element, withDrop bool) Point {
	minD := Point{X: math.Inf(-1), Y: math.Inf(-1)}
	maxD := Point{X: math.Inf(1), Y: math.Inf(1)}
	idx := indexByID(elements)
	for _, id := range d.ids {
		i, ok := idx[id]
		if !ok {
			continue
		}
		g := d.origins[id]
		parent := elements[i].ParentID
		if withDrop {
			var sx, sy float64
			parent, sx, sy = d.dropShift(elements, elements[i])
			g.X += sx
			g.Y += sy
		}
		w, h := d.bounds(elements, parent)
		minD.X = math.Max(minD.X, -g.X)
		minD.Y = math.Max(minD.Y, -g.Y)
		maxD.X = math.Min(maxD.X, math.Max(0, w-g.Width)-g.X)
		maxD.Y = math.Min(maxD.Y, math.Max(0, h-g.Height)-g.Y)
	}
	delta := d.delta
	if minD.X <= maxD.X {
		delta.X = math.Min(math.Max(delta.X, minD.X), maxD.X)
	}
	if minD.Y <= maxD.Y {
		delta.Y = math.Min(math.Max(delta.Y, minD.Y), maxD.Y)
	}
	return delta
}

// bounds is the parent container's size, or the viewport for roots. Unknown
// extents do not clamp.
func (d *DragController) bounds(elements []domain.Element, parentID string) (float64, float64) {
	w, h := d.opts.ViewportWidth, d.opts.ViewportHeight
	if parentID != "" {
		if i, ok := indexByID(elements)[parentID]; ok {
			g := elements[i].Geometry()
			w, h = g.Width, g.Height
		}
	}
	if w <= 0 {
		w = math.Inf(1)
	}
	if h <= 0 {
		h = math.Inf(1)
	}
	return w, h
}

// PointerUp ends the gesture. A drag that crossed the threshold is committed
// as a single history entry; a plain click changes nothing.
func (d *DragController) PointerUp() (bool, error) {
	d.mu.Lock()
	switch d.state {
	case DragIdle:
		d.mu.Unlock()
		return false, ErrNoGesture
	case DragArmed:
		d.reset()
		d.mu.Unlock()
		return false, nil
	}
	d.state = DragCommitting
	elements := d.store.Elements()
	idx := indexByID(elements)
	delta := d.groupDelta(elements, true)
	var patches []Patch
	for _, id := range d.ids {
		i, ok := idx[id]
		if !ok {
			continue
		}
		el := elements[i]
		patch := Patch{ID: id}
		target, sx, sy := d.dropShift(elements, el)
		origin := d.origins[id]
		origin.X += sx
		origin.Y += sy
		g := d.moved(elements, target, origin, delta)
		if target != el.ParentID {
			patch.ParentID = &target
		}
		patch.Properties = domain.PositionPatch(g.X, g.Y)
		patches = append(patches, patch)
	}
	d.reset()
	d.mu.Unlock()

	d.store.SetDragging(false)
	if len(patches) == 0 {
		return false, nil
	}
	n, err := d.store.UpdateElements(patches)
	return n > 0, err
}

// Cancel abandons the gesture. Nothing was written during the drag, so the
// elements stay at their origin.
func (d *DragController) Cancel() bool {
	d.mu.Lock()
	active := d.state != DragIdle
	wasDragging := d.state == DragDragging
	d.reset()
	d.mu.Unlock()
	if wasDragging {
		d.store.SetDragging(false)
	}
	return active
}

func (d *DragController) Close() { d.Cancel() }

func (d *DragController) reset() {
	d.state = DragIdle
	d.delta = Point{}
	d.ids = nil
	d.origins = nil
	d.dropTarget = ""
	d.hasDrop = false
}

// parentOrigin is the absolute position of the coordinate space that children
// of parentID live in.
func parentOrigin(elements []domain.Element, parentID string) (float64, float64) {
	if parentID == "" {
		return 0, 0
	}
	return AbsolutePosition(elements, parentID)
}
