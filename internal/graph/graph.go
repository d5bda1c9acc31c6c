package graph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ValueID is a stable handle to a value node in a Graph. Handles are
// never reused, even after pruning.
type ValueID int32

// ApplyID is a stable handle to an application node in a Graph. Handles
// increase in creation order, which the scheduler uses as its
// deterministic tie-break.
type ApplyID int32

// Sentinel handles meaning "no node".
const (
	NoValue ValueID = -1
	NoApply ApplyID = -1
)

// Consumer is one incoming edge of an application node: which node reads
// the value and through which input slot. A node consuming the same value
// twice appears once per slot.
type Consumer struct {
	Apply ApplyID
	Index int
}

// Value is a data-flow value node. At most one application produces it;
// any number consume it. Values are created through Graph.Input and as
// the outputs of Graph.Apply.
type Value struct {
	id        ValueID
	typ       Type
	name      string
	producer  ApplyID
	outIndex  int
	consumers []Consumer
	dead      bool
}

// ID returns the value's handle.
func (v *Value) ID() ValueID { return v.id }

// Type returns the value's element type and shape.
func (v *Value) Type() Type { return v.typ }

// Name returns the optional debug name given at construction.
func (v *Value) Name() string { return v.name }

// Producer returns the application computing this value and the output
// slot it occupies, or NoApply for graph inputs.
func (v *Value) Producer() (ApplyID, int) { return v.producer, v.outIndex }

// Consumers returns the value's consumer edges. The slice is owned by the
// graph; callers must not modify it.
func (v *Value) Consumers() []Consumer { return v.consumers }

// Dead reports whether the value was removed by pruning.
func (v *Value) Dead() bool { return v.dead }

// Apply is an application node: one invocation of an operation on an
// ordered input list, producing an ordered output list.
type Apply struct {
	id      ApplyID
	op      Op
	inputs  []ValueID
	outputs []ValueID
	dead    bool
}

// ID returns the application's handle.
func (a *Apply) ID() ApplyID { return a.id }

// Op returns the operation invoked by this node.
func (a *Apply) Op() Op { return a.op }

// Inputs returns the input value handles in slot order. The slice is
// owned by the graph; callers must not modify it.
func (a *Apply) Inputs() []ValueID { return a.inputs }

// Outputs returns the output value handles in slot order. The slice is
// owned by the graph; callers must not modify it.
func (a *Apply) Outputs() []ValueID { return a.outputs }

// Dead reports whether the application was removed by pruning.
func (a *Apply) Dead() bool { return a.dead }

// Graph is the mutable container that owns a computation graph: the value
// and application arenas, the declared input and output lists, and the
// attached features. All mutation goes through Graph methods so features
// can observe and veto changes.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	values   []*Value
	applies  []*Apply
	inputs   []ValueID
	outputs  []ValueID
	features []Feature
	gen      uint64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// Input declares a fresh graph input of type t. The name is only used in
// dumps and error messages.
func (g *Graph) Input(t Type, name string) (*Value, error) {
	if !t.DType.Valid() {
		return nil, fmt.Errorf("input %q: unknown data type", name)
	}
	if err := t.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("input %q: %w", name, err)
	}
	v := g.newValue(t, name)
	g.inputs = append(g.inputs, v.id)
	g.gen++
	return v, nil
}

// Apply validates the input types against op, allocates an application
// node and its output values, and wires the consumer edges. Attached
// NodeObserver features are notified after the node exists.
func (g *Graph) Apply(op Op, inputs ...ValueID) (*Apply, error) {
	if op == nil {
		return nil, fmt.Errorf("apply: nil op")
	}
	types := make([]Type, len(inputs))
	for i, in := range inputs {
		v, err := g.liveValue("apply "+op.Name(), in)
		if err != nil {
			return nil, err
		}
		types[i] = v.typ
	}
	outTypes, err := op.OutputTypes(types)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", op.Name(), err)
	}
	a := &Apply{
		id:     ApplyID(len(g.applies)),
		op:     op,
		inputs: append([]ValueID(nil), inputs...),
	}
	g.applies = append(g.applies, a)
	a.outputs = make([]ValueID, len(outTypes))
	for i, t := range outTypes {
		out := g.newValue(t, "")
		out.producer = a.id
		out.outIndex = i
		a.outputs[i] = out.id
	}
	for i, in := range inputs {
		v := g.values[in]
		v.consumers = append(v.consumers, Consumer{Apply: a.id, Index: i})
	}
	g.gen++
	for _, f := range g.featureList() {
		if obs, ok := f.(NodeObserver); ok {
			obs.OnAddNode(g, a)
		}
	}
	return a, nil
}

// Output declares v as a graph output. The same value may occupy several
// output slots.
func (g *Graph) Output(v ValueID) error {
	if _, err := g.liveValue("output", v); err != nil {
		return err
	}
	g.outputs = append(g.outputs, v)
	g.gen++
	return nil
}

// ValueAt returns the value with the given handle. Handles of pruned
// values stay allocated; the returned value reports Dead.
func (g *Graph) ValueAt(id ValueID) *Value { return g.values[id] }

// ApplyAt returns the application with the given handle. Handles of
// pruned applications stay allocated; the returned node reports Dead.
func (g *Graph) ApplyAt(id ApplyID) *Apply { return g.applies[id] }

// Inputs returns the declared input handles in declaration order.
func (g *Graph) Inputs() []ValueID { return append([]ValueID(nil), g.inputs...) }

// Outputs returns the declared output handles in declaration order.
func (g *Graph) Outputs() []ValueID { return append([]ValueID(nil), g.outputs...) }

// IsInput reports whether v is a declared graph input.
func (g *Graph) IsInput(v ValueID) bool {
	for _, in := range g.inputs {
		if in == v {
			return true
		}
	}
	return false
}

// IsOutput reports whether v occupies at least one declared output slot.
func (g *Graph) IsOutput(v ValueID) bool {
	for _, out := range g.outputs {
		if out == v {
			return true
		}
	}
	return false
}

// ApplyIDs returns the handles of all live application nodes in ascending
// creation order.
func (g *Graph) ApplyIDs() []ApplyID {
	ids := make([]ApplyID, 0, len(g.applies))
	for _, a := range g.applies {
		if !a.dead {
			ids = append(ids, a.id)
		}
	}
	return ids
}

// NumLive returns the number of live application nodes.
func (g *Graph) NumLive() int {
	n := 0
	for _, a := range g.applies {
		if !a.dead {
			n++
		}
	}
	return n
}

// Gen returns the mutation generation. It increases on every applied
// change and never decreases, including across history rollbacks.
func (g *Graph) Gen() uint64 { return g.gen }

// ChangeInput rewires input slot index of node id to read newInput.
// Attached ChangeGuard features are consulted first; a veto returns a
// *RejectionError with the graph untouched. The rewire itself is atomic:
// the input slot and both consumer lists move together, so no observer
// ever sees a half-applied change.
func (g *Graph) ChangeInput(id ApplyID, index int, newInput ValueID) error {
	a, err := g.liveApply("change input", id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(a.inputs) {
		return consistencyf("change input", "node %d has no input slot %d", id, index)
	}
	nv, err := g.liveValue("change input", newInput)
	if err != nil {
		return err
	}
	old := a.inputs[index]
	if old == newInput {
		return nil
	}
	ov := g.values[old]
	if !ov.typ.Compatible(nv.typ) {
		return consistencyf("change input", "slot %d of %s: %s does not accept %s",
			index, a.op.Name(), ov.typ, nv.typ)
	}
	if err := g.willChange(a, index, old, newInput); err != nil {
		return err
	}
	g.rawChangeInput(a, index, old, newInput)
	g.notifyChanged(a, index, old, newInput)
	return nil
}

// ReplaceValue rewires every consumer of oldValue to read newValue and
// remaps declared output slots occupied by oldValue. The replacement is
// all-or-nothing: every affected edge is checked against the attached
// guards before anything moves, so the first veto aborts the whole
// replacement with the graph untouched.
func (g *Graph) ReplaceValue(oldValue, newValue ValueID) error {
	edges, err := g.replacePrecheck(oldValue, newValue)
	if err != nil {
		return err
	}
	if oldValue == newValue {
		return nil
	}
	for _, c := range edges {
		a := g.applies[c.Apply]
		g.rawChangeInput(a, c.Index, oldValue, newValue)
		g.notifyChanged(a, c.Index, oldValue, newValue)
	}
	for i, out := range g.outputs {
		if out == oldValue {
			g.rawChangeOutput(i, newValue)
			g.notifyOutputChanged(i, oldValue, newValue)
		}
	}
	return nil
}

// CanReplace reports whether ReplaceValue(oldValue, newValue) would
// succeed, without moving anything. It runs the same liveness, type and
// guard checks and returns the error the replacement would return.
func (g *Graph) CanReplace(oldValue, newValue ValueID) error {
	_, err := g.replacePrecheck(oldValue, newValue)
	return err
}

// replacePrecheck validates a replacement and returns the consumer
// edges it would move. A nil error with oldValue == newValue means the
// replacement is a no-op.
func (g *Graph) replacePrecheck(oldValue, newValue ValueID) ([]Consumer, error) {
	ov, err := g.liveValue("replace", oldValue)
	if err != nil {
		return nil, err
	}
	nv, err := g.liveValue("replace", newValue)
	if err != nil {
		return nil, err
	}
	if oldValue == newValue {
		return nil, nil
	}
	if !ov.typ.Compatible(nv.typ) {
		return nil, consistencyf("replace", "%s does not accept %s", ov.typ, nv.typ)
	}
	edges := append([]Consumer(nil), ov.consumers...)
	for _, c := range edges {
		if err := g.willChange(g.applies[c.Apply], c.Index, oldValue, newValue); err != nil {
			return nil, err
		}
	}
	return edges, nil
}

// Prune removes applications none of whose outputs are consumed or
// declared as graph outputs. Removing one node can orphan its producers,
// so the sweep repeats until stable. Returns the number of nodes removed.
func (g *Graph) Prune() int {
	removed := 0
	for {
		n := 0
		for i := len(g.applies) - 1; i >= 0; i-- {
			a := g.applies[i]
			if a.dead || g.applyNeeded(a) {
				continue
			}
			g.removeApply(a)
			n++
			for _, f := range g.featureList() {
				if obs, ok := f.(NodeObserver); ok {
					obs.OnPruneNode(g, a)
				}
			}
		}
		if n == 0 {
			break
		}
		removed += n
	}
	return removed
}

// Validate checks every structural invariant and aggregates all
// violations: arena integrity, producer back-references, consumer edge
// symmetry, liveness of the declared inputs and outputs, and acyclicity.
func (g *Graph) Validate() error {
	var result *multierror.Error
	for _, a := range g.applies {
		if a.dead {
			continue
		}
		for i, in := range a.inputs {
			if in < 0 || int(in) >= len(g.values) {
				result = multierror.Append(result, consistencyf("validate",
					"node %d input %d references unknown value %d", a.id, i, in))
				continue
			}
			v := g.values[in]
			if v.dead {
				result = multierror.Append(result, consistencyf("validate",
					"node %d input %d references pruned value %d", a.id, i, in))
			}
			if n := countConsumer(v.consumers, a.id, i); n != 1 {
				result = multierror.Append(result, consistencyf("validate",
					"value %d lists edge (%d,%d) %d times, want 1", in, a.id, i, n))
			}
		}
		for i, out := range a.outputs {
			if out < 0 || int(out) >= len(g.values) {
				result = multierror.Append(result, consistencyf("validate",
					"node %d output %d references unknown value %d", a.id, i, out))
				continue
			}
			v := g.values[out]
			if v.dead {
				result = multierror.Append(result, consistencyf("validate",
					"node %d output %d references pruned value %d", a.id, i, out))
			}
			if v.producer != a.id || v.outIndex != i {
				result = multierror.Append(result, consistencyf("validate",
					"value %d does not point back at node %d output %d", out, a.id, i))
			}
		}
	}
	for _, v := range g.values {
		if v.dead {
			continue
		}
		if v.producer != NoApply {
			if int(v.producer) >= len(g.applies) || g.applies[v.producer].dead {
				result = multierror.Append(result, consistencyf("validate",
					"value %d produced by missing node %d", v.id, v.producer))
			}
		}
		for _, c := range v.consumers {
			if int(c.Apply) >= len(g.applies) || g.applies[c.Apply].dead {
				result = multierror.Append(result, consistencyf("validate",
					"value %d consumed by missing node %d", v.id, c.Apply))
				continue
			}
			a := g.applies[c.Apply]
			if c.Index < 0 || c.Index >= len(a.inputs) || a.inputs[c.Index] != v.id {
				result = multierror.Append(result, consistencyf("validate",
					"value %d edge (%d,%d) not mirrored by the node", v.id, c.Apply, c.Index))
			}
		}
	}
	for _, in := range g.inputs {
		v := g.values[in]
		if v.dead {
			result = multierror.Append(result, consistencyf("validate", "declared input %d is pruned", in))
		}
		if v.producer != NoApply {
			result = multierror.Append(result, consistencyf("validate", "declared input %d has a producer", in))
		}
	}
	for _, out := range g.outputs {
		if g.values[out].dead {
			result = multierror.Append(result, consistencyf("validate", "declared output %d is pruned", out))
		}
	}
	if _, err := Toposort(g); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Clone returns a deep structural copy with identical handles. Attached
// features are not carried over.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		values:  make([]*Value, len(g.values)),
		applies: make([]*Apply, len(g.applies)),
		inputs:  append([]ValueID(nil), g.inputs...),
		outputs: append([]ValueID(nil), g.outputs...),
		gen:     g.gen,
	}
	for i, v := range g.values {
		nv := *v
		nv.typ = v.typ.Clone()
		nv.consumers = append([]Consumer(nil), v.consumers...)
		c.values[i] = &nv
	}
	for i, a := range g.applies {
		na := *a
		na.inputs = append([]ValueID(nil), a.inputs...)
		na.outputs = append([]ValueID(nil), a.outputs...)
		c.applies[i] = &na
	}
	return c
}

// ExtractSubgraph clones the region reachable from the requested outputs,
// cutting at the requested inputs. The clone gets fresh dense handles;
// the returned map translates original handles into clone handles. A
// reachable value that is neither a requested input nor produced inside
// the region is a dangling reference and fails the extraction.
func (g *Graph) ExtractSubgraph(inputs, outputs []ValueID) (*Graph, map[ValueID]ValueID, error) {
	sub := New()
	mapping := make(map[ValueID]ValueID)
	for _, in := range inputs {
		v, err := g.liveValue("extract", in)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := mapping[in]; ok {
			return nil, nil, consistencyf("extract", "value %d requested as input twice", in)
		}
		nv, err := sub.Input(v.typ, v.name)
		if err != nil {
			return nil, nil, err
		}
		mapping[in] = nv.id
	}
	visiting := make(map[ValueID]bool)
	var need func(id ValueID) (ValueID, error)
	need = func(id ValueID) (ValueID, error) {
		if mapped, ok := mapping[id]; ok {
			return mapped, nil
		}
		if visiting[id] {
			return NoValue, consistencyf("extract", "cycle through value %d", id)
		}
		visiting[id] = true
		defer delete(visiting, id)
		v, err := g.liveValue("extract", id)
		if err != nil {
			return NoValue, err
		}
		if v.producer == NoApply {
			return NoValue, consistencyf("extract",
				"value %d (%q) is reachable but is not a requested input and has no producer", id, v.name)
		}
		producer := g.applies[v.producer]
		ins := make([]ValueID, len(producer.inputs))
		for i, pin := range producer.inputs {
			mapped, err := need(pin)
			if err != nil {
				return NoValue, err
			}
			ins[i] = mapped
		}
		na, err := sub.Apply(producer.op, ins...)
		if err != nil {
			return NoValue, err
		}
		for i, out := range producer.outputs {
			mapping[out] = na.outputs[i]
		}
		return mapping[id], nil
	}
	for _, out := range outputs {
		mapped, err := need(out)
		if err != nil {
			return nil, nil, err
		}
		if err := sub.Output(mapped); err != nil {
			return nil, nil, err
		}
	}
	return sub, mapping, nil
}

func (g *Graph) newValue(t Type, name string) *Value {
	v := &Value{
		id:       ValueID(len(g.values)),
		typ:      t.Clone(),
		name:     name,
		producer: NoApply,
	}
	g.values = append(g.values, v)
	return v
}

func (g *Graph) liveValue(op string, id ValueID) (*Value, error) {
	if id < 0 || int(id) >= len(g.values) {
		return nil, consistencyf(op, "value %d: %v", id, ErrNotInGraph)
	}
	v := g.values[id]
	if v.dead {
		return nil, consistencyf(op, "value %d: %v", id, ErrDeadNode)
	}
	return v, nil
}

func (g *Graph) liveApply(op string, id ApplyID) (*Apply, error) {
	if id < 0 || int(id) >= len(g.applies) {
		return nil, consistencyf(op, "node %d: %v", id, ErrNotInGraph)
	}
	a := g.applies[id]
	if a.dead {
		return nil, consistencyf(op, "node %d: %v", id, ErrDeadNode)
	}
	return a, nil
}

func (g *Graph) applyNeeded(a *Apply) bool {
	for _, out := range a.outputs {
		v := g.values[out]
		if len(v.consumers) > 0 || g.IsOutput(out) {
			return true
		}
	}
	return false
}

// willChange runs every attached guard over a prospective rewire.
func (g *Graph) willChange(a *Apply, index int, oldv, newv ValueID) error {
	for _, f := range g.featureList() {
		guard, ok := f.(ChangeGuard)
		if !ok {
			continue
		}
		if err := guard.WillChangeInput(g, a, index, oldv, newv); err != nil {
			return &RejectionError{Feature: featureName(f), Reason: err}
		}
	}
	return nil
}

func (g *Graph) notifyChanged(a *Apply, index int, oldv, newv ValueID) {
	for _, f := range g.featureList() {
		if obs, ok := f.(ChangeObserver); ok {
			obs.DidChangeInput(g, a, index, oldv, newv)
		}
	}
}

func (g *Graph) notifyOutputChanged(slot int, oldv, newv ValueID) {
	for _, f := range g.featureList() {
		if obs, ok := f.(OutputObserver); ok {
			obs.DidChangeOutput(g, slot, oldv, newv)
		}
	}
}

// rawChangeInput applies a rewire without consulting or notifying
// features. History rollback depends on it to undo without re-journaling.
func (g *Graph) rawChangeInput(a *Apply, index int, oldv, newv ValueID) {
	a.inputs[index] = newv
	g.removeConsumer(oldv, a.id, index)
	g.values[newv].consumers = append(g.values[newv].consumers, Consumer{Apply: a.id, Index: index})
	g.gen++
}

func (g *Graph) rawChangeOutput(slot int, newv ValueID) {
	g.outputs[slot] = newv
	g.gen++
}

// removeApply unlinks one application node and marks it and its outputs
// dead. Callers notify features themselves where appropriate.
func (g *Graph) removeApply(a *Apply) {
	for i, in := range a.inputs {
		g.removeConsumer(in, a.id, i)
	}
	for _, out := range a.outputs {
		g.values[out].dead = true
	}
	a.dead = true
	g.gen++
}

// resurrectApply reverses removeApply for history rollback.
func (g *Graph) resurrectApply(a *Apply) {
	a.dead = false
	for _, out := range a.outputs {
		g.values[out].dead = false
	}
	for i, in := range a.inputs {
		g.values[in].consumers = append(g.values[in].consumers, Consumer{Apply: a.id, Index: i})
	}
	g.gen++
}

func (g *Graph) removeConsumer(v ValueID, a ApplyID, index int) {
	list := g.values[v].consumers
	for i, c := range list {
		if c.Apply == a && c.Index == index {
			g.values[v].consumers = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func countConsumer(list []Consumer, a ApplyID, index int) int {
	n := 0
	for _, c := range list {
		if c.Apply == a && c.Index == index {
			n++
		}
	}
	return n
}
