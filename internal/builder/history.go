package builder

import "smartclass/internal/domain"

// DefaultHistoryLimit bounds the undo stack when no limit is configured.
const DefaultHistoryLimit = 50

// Snapshot is one history entry: the element list plus the selection at the
// time it was taken. Snapshots are deep copies and never mutated.
type Snapshot struct {
	Elements  []domain.Element
	Selection []string
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Elements:  domain.CloneElements(s.Elements),
		Selection: append([]string(nil), s.Selection...),
	}
}

// History is a linear undo/redo engine with a bounded past stack.
type History struct {
	past   []Snapshot
	future []Snapshot
	limit  int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record pushes the pre-mutation state and invalidates the redo branch.
func (h *History) Record(current Snapshot) {
	h.past = append(h.past, current.clone())
	if over := len(h.past) - h.limit; over > 0 {
		h.past = append([]Snapshot(nil), h.past[over:]...)
	}
	h.future = nil
}

// Undo returns the state to restore. current goes onto the redo stack.
// Returns false when there is nothing to undo.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	if len(h.past) == 0 {
		return Snapshot{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current.clone())
	return prev.clone(), true
}

// Redo mirrors Undo using the future stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current.clone())
	return next.clone(), true
}

func (h *History) CanUndo() bool { return len(h.past) > 0 }
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Depth returns the sizes of the past and future stacks.
func (h *History) Depth() (past, future int) { return len(h.past), len(h.future) }

func (h *History) Limit() int { return h.limit }

func (h *History) Clear() {
	h.past = nil
	h.future = nil
}
