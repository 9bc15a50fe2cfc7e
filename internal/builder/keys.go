package builder

import (
	"strings"

	"smartclass/internal/domain"
)

// KeyEvent is a keyboard shortcut as reported by the frontend. Mod is Ctrl
// on Linux/Windows and Cmd on macOS.
type KeyEvent struct {
	Key   string `json:"key"`
	Mod   bool   `json:"mod"`
	Shift bool   `json:"shift"`
}

const (
	nudgeStep      = 1.0
	nudgeStepShift = 10.0
)

// Keymap dispatches canvas shortcuts to the store and the drag controller.
type Keymap struct {
	store *Store
	drag  *DragController
}

func NewKeymap(store *Store, drag *DragController) *Keymap {
	return &Keymap{store: store, drag: drag}
}

// Handle runs the action bound to ev and reports whether one was bound.
func (k *Keymap) Handle(ev KeyEvent) bool {
	key := strings.ToLower(ev.Key)
	switch {
	case key == "escape":
		if k.drag != nil && k.drag.Cancel() {
			return true
		}
		k.store.ClearSelection()
		return true
	case key == "delete" || key == "backspace":
		if k.store.EditingTarget() != "" {
			return false
		}
		k.store.RemoveElements(k.store.SelectedIDs())
		return true
	case ev.Mod && key == "z" && ev.Shift, ev.Mod && key == "y":
		k.store.Redo()
		return true
	case ev.Mod && key == "z":
		k.store.Undo()
		return true
	case ev.Mod && key == "a":
		k.store.SelectAll()
		return true
	case strings.HasPrefix(key, "arrow"):
		step := nudgeStep
		if ev.Shift {
			step = nudgeStepShift
		}
		var dx, dy float64
		switch key {
		case "arrowleft":
			dx = -step
		case "arrowright":
			dx = step
		case "arrowup":
			dy = -step
		case "arrowdown":
			dy = step
		default:
			return false
		}
		k.Nudge(dx, dy)
		return true
	}
	return false
}

// Nudge moves every selected element by (dx, dy) as one history entry.
// Positions never go negative.
func (k *Keymap) Nudge(dx, dy float64) int {
	ids := k.store.SelectedIDs()
	if len(ids) == 0 || k.store.EditingTarget() != "" {
		return 0
	}
	var patches []Patch
	for _, id := range ids {
		el, ok := k.store.Element(id)
		if !ok {
			continue
		}
		g := el.Geometry()
		x, y := g.X+dx, g.Y+dy
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		patches = append(patches, Patch{ID: id, Properties: domain.PositionPatch(x, y)})
	}
	n, _ := k.store.UpdateElements(patches)
	return n
}
