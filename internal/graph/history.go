package graph

// History journals every mutation applied to the graph it is attached to
// so a span of work can be undone. The optimizer pipeline attaches one
// before running passes and, when any pass fails, rolls back to the
// checkpoint taken at entry, restoring the pre-optimization structure.
type History struct {
	g       *Graph
	entries []func()
}

// NewHistory returns an empty journal.
func NewHistory() *History { return &History{} }

// Name identifies the feature in rejection errors.
func (h *History) Name() string { return "history" }

// OnAttach implements Feature. A History follows at most one graph at a
// time.
func (h *History) OnAttach(g *Graph) error {
	if h.g != nil {
		return ErrAlreadyAttached
	}
	h.g = g
	return nil
}

// OnDetach implements Feature. The journal is dropped.
func (h *History) OnDetach(g *Graph) {
	h.g = nil
	h.entries = nil
}

// OnAddNode implements NodeObserver.
func (h *History) OnAddNode(g *Graph, a *Apply) {
	h.entries = append(h.entries, func() { g.removeApply(a) })
}

// OnPruneNode implements NodeObserver.
func (h *History) OnPruneNode(g *Graph, a *Apply) {
	h.entries = append(h.entries, func() { g.resurrectApply(a) })
}

// DidChangeInput implements ChangeObserver.
func (h *History) DidChangeInput(g *Graph, a *Apply, index int, oldv, newv ValueID) {
	h.entries = append(h.entries, func() { g.rawChangeInput(a, index, newv, oldv) })
}

// DidChangeOutput implements OutputObserver.
func (h *History) DidChangeOutput(g *Graph, slot int, oldv, newv ValueID) {
	h.entries = append(h.entries, func() { g.rawChangeOutput(slot, oldv) })
}

// Checkpoint marks the current journal position.
func (h *History) Checkpoint() int { return len(h.entries) }

// Revert undoes, newest first, every mutation journaled after the given
// checkpoint. Rollback bypasses the feature hooks, so nothing is
// re-journaled and no guard can veto the undo.
func (h *History) Revert(mark int) {
	if mark < 0 {
		mark = 0
	}
	for i := len(h.entries) - 1; i >= mark; i-- {
		h.entries[i]()
	}
	h.entries = h.entries[:mark]
}

// Len returns the number of journaled mutations.
func (h *History) Len() int { return len(h.entries) }
