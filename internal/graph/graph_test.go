package graph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-ml/loom/internal/graph"
)

// binOp is a minimal two-input operation for wiring tests.
type binOp struct{ name string }

func (o *binOp) Name() string             { return o.name }
func (o *binOp) Caps() graph.Capabilities { return graph.Capabilities{} }
func (o *binOp) Hash() uint64             { return xxhash.Sum64String("test:" + o.name) }

func (o *binOp) Equal(other graph.Op) bool {
	b, ok := other.(*binOp)
	return ok && b.name == o.name
}

func (o *binOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("%s takes 2 inputs, got %d", o.name, len(inputs))
	}
	if !inputs[0].Compatible(inputs[1]) {
		return nil, fmt.Errorf("%s: mismatched inputs %s and %s", o.name, inputs[0], inputs[1])
	}
	return []graph.Type{inputs[0].Clone()}, nil
}

// unOp is a minimal one-input operation.
type unOp struct{ name string }

func (o *unOp) Name() string             { return o.name }
func (o *unOp) Caps() graph.Capabilities { return graph.Capabilities{} }
func (o *unOp) Hash() uint64             { return xxhash.Sum64String("test:" + o.name) }

func (o *unOp) Equal(other graph.Op) bool {
	u, ok := other.(*unOp)
	return ok && u.name == o.name
}

func (o *unOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s takes 1 input, got %d", o.name, len(inputs))
	}
	return []graph.Type{inputs[0].Clone()}, nil
}

// edgeVeto rejects rewires of one specific consumer edge.
type edgeVeto struct {
	apply graph.ApplyID
	index int
}

func (f *edgeVeto) Name() string                  { return "edge-veto" }
func (f *edgeVeto) OnAttach(g *graph.Graph) error { return nil }
func (f *edgeVeto) OnDetach(g *graph.Graph)       {}

func (f *edgeVeto) WillChangeInput(g *graph.Graph, a *graph.Apply, index int, oldv, newv graph.ValueID) error {
	if a.ID() == f.apply && index == f.index {
		return errors.New("edge is pinned")
	}
	return nil
}

func mustInput(t *testing.T, g *graph.Graph, typ graph.Type, name string) *graph.Value {
	t.Helper()
	v, err := g.Input(typ, name)
	if err != nil {
		t.Fatalf("input %s: %v", name, err)
	}
	return v
}

func mustApply(t *testing.T, g *graph.Graph, op graph.Op, ins ...graph.ValueID) *graph.Apply {
	t.Helper()
	a, err := g.Apply(op, ins...)
	if err != nil {
		t.Fatalf("apply %s: %v", op.Name(), err)
	}
	return a
}

func f32(dims ...int) graph.Type { return graph.T(graph.Float32, dims...) }

// TestGraph_Wiring checks that Apply connects producers and consumers
// symmetrically.
func TestGraph_Wiring(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(2, 2), "x")
	y := mustInput(t, g, f32(2, 2), "y")

	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())
	out := add.Outputs()[0]
	if err := g.Output(out); err != nil {
		t.Fatalf("output: %v", err)
	}

	ov := g.ValueAt(out)
	if p, idx := ov.Producer(); p != add.ID() || idx != 0 {
		t.Errorf("producer of %%%d: got (%d,%d), want (%d,0)", out, p, idx, add.ID())
	}
	if cs := x.Consumers(); len(cs) != 1 || cs[0].Apply != add.ID() || cs[0].Index != 0 {
		t.Errorf("consumers of x: got %v", cs)
	}
	if cs := y.Consumers(); len(cs) != 1 || cs[0].Index != 1 {
		t.Errorf("consumers of y: got %v", cs)
	}

	if !g.IsInput(x.ID()) || g.IsInput(out) {
		t.Error("IsInput misclassifies values")
	}
	if !g.IsOutput(out) || g.IsOutput(x.ID()) {
		t.Error("IsOutput misclassifies values")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

// TestApply_RejectsBadTypes checks that a failing OutputTypes aborts node
// construction without touching the graph.
func TestApply_RejectsBadTypes(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(2), "x")
	y := mustInput(t, g, f32(3), "y")
	before := g.Dump()

	if _, err := g.Apply(&binOp{name: "add"}, x.ID(), y.ID()); err == nil {
		t.Fatal("apply with mismatched shapes succeeded")
	}
	if g.NumLive() != 0 {
		t.Errorf("live nodes after failed apply: %d", g.NumLive())
	}
	if g.Dump() != before {
		t.Error("failed apply changed the graph")
	}
}

// TestOutput_RejectsUnknownValue checks handle validation.
func TestOutput_RejectsUnknownValue(t *testing.T) {
	g := graph.New()
	err := g.Output(graph.ValueID(42))
	var cerr *graph.ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a consistency error", err)
	}
}

// TestChangeInput_Rewires checks that a rewire moves the consumer edge
// between both value's consumer lists.
func TestChangeInput_Rewires(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())

	if err := g.ChangeInput(add.ID(), 1, x.ID()); err != nil {
		t.Fatalf("change input: %v", err)
	}

	if ins := add.Inputs(); ins[1] != x.ID() {
		t.Errorf("input slot 1: got %%%d, want %%%d", ins[1], x.ID())
	}
	if cs := y.Consumers(); len(cs) != 0 {
		t.Errorf("y still consumed: %v", cs)
	}
	if cs := x.Consumers(); len(cs) != 2 {
		t.Errorf("x consumer edges: got %d, want 2", len(cs))
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

// TestChangeInput_NoopOnSameValue checks that rewiring a slot to the
// value it already reads does nothing, including the generation counter.
func TestChangeInput_NoopOnSameValue(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())

	gen := g.Gen()
	if err := g.ChangeInput(add.ID(), 0, x.ID()); err != nil {
		t.Fatalf("change input: %v", err)
	}
	if g.Gen() != gen {
		t.Errorf("generation moved on a no-op rewire: %d -> %d", gen, g.Gen())
	}
}

// TestChangeInput_RejectsIncompatibleType checks the type gate.
func TestChangeInput_RejectsIncompatibleType(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	z := mustInput(t, g, f32(8), "z")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())
	before := g.Dump()

	err := g.ChangeInput(add.ID(), 1, z.ID())
	var cerr *graph.ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a consistency error", err)
	}
	if g.Dump() != before {
		t.Error("rejected rewire changed the graph")
	}
}

// TestImmutable_VetoesRewire checks that a guard veto surfaces as a
// RejectionError and leaves the graph byte-identical.
func TestImmutable_VetoesRewire(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())

	guard := graph.NewImmutable(x.ID())
	if err := g.Attach(guard); err != nil {
		t.Fatalf("attach: %v", err)
	}
	before := g.Dump()

	err := g.ChangeInput(add.ID(), 0, y.ID())
	var rej *graph.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want a rejection error", err)
	}
	if rej.Feature != "immutable" {
		t.Errorf("vetoing feature: got %q, want %q", rej.Feature, "immutable")
	}
	if g.Dump() != before {
		t.Error("vetoed rewire changed the graph")
	}

	// Moving onto a protected value is fine; only moving off is vetoed.
	if err := g.ChangeInput(add.ID(), 1, x.ID()); err != nil {
		t.Errorf("rewire onto protected value: %v", err)
	}

	if err := g.Detach(guard); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := g.ChangeInput(add.ID(), 0, y.ID()); err != nil {
		t.Errorf("rewire after detach: %v", err)
	}
}

// TestAttach_RejectsDuplicate checks the feature list stays a set.
func TestAttach_RejectsDuplicate(t *testing.T) {
	g := graph.New()
	guard := graph.NewImmutable()
	if err := g.Attach(guard); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := g.Attach(guard); !errors.Is(err, graph.ErrAlreadyAttached) {
		t.Errorf("second attach: got %v, want ErrAlreadyAttached", err)
	}
	if err := g.Detach(graph.NewImmutable()); !errors.Is(err, graph.ErrNotAttached) {
		t.Errorf("detach of stranger: got %v, want ErrNotAttached", err)
	}
}

// TestReplaceValue_MovesAllEdges checks that consumers and output slots
// move together.
func TestReplaceValue_MovesAllEdges(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	neg := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	nv := neg.Outputs()[0]

	c1 := mustApply(t, g, &unOp{name: "neg"}, nv)
	c2 := mustApply(t, g, &unOp{name: "neg"}, nv)
	if err := g.Output(nv); err != nil {
		t.Fatalf("output: %v", err)
	}

	if err := g.ReplaceValue(nv, x.ID()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if c1.Inputs()[0] != x.ID() || c2.Inputs()[0] != x.ID() {
		t.Error("consumers still read the replaced value")
	}
	if outs := g.Outputs(); outs[0] != x.ID() {
		t.Errorf("output slot: got %%%d, want %%%d", outs[0], x.ID())
	}
	if cs := g.ValueAt(nv).Consumers(); len(cs) != 0 {
		t.Errorf("replaced value still consumed: %v", cs)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

// TestReplaceValue_AllOrNothing checks that a veto on any affected edge
// aborts the whole replacement.
func TestReplaceValue_AllOrNothing(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	neg := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	nv := neg.Outputs()[0]

	mustApply(t, g, &unOp{name: "neg"}, nv)
	c2 := mustApply(t, g, &unOp{name: "neg"}, nv)
	if err := g.Output(nv); err != nil {
		t.Fatalf("output: %v", err)
	}

	// Pin only the second consumer edge. The first edge would pass, so a
	// non-atomic replacement would leave the graph half-rewired.
	if err := g.Attach(&edgeVeto{apply: c2.ID(), index: 0}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	before := g.Dump()

	err := g.ReplaceValue(nv, x.ID())
	var rej *graph.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want a rejection error", err)
	}
	if g.Dump() != before {
		t.Error("aborted replacement left the graph half-rewired")
	}
}

// TestReplaceValue_SelfIsNoop checks the identity replacement.
func TestReplaceValue_SelfIsNoop(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	gen := g.Gen()
	if err := g.ReplaceValue(x.ID(), x.ID()); err != nil {
		t.Fatalf("self replace: %v", err)
	}
	if g.Gen() != gen {
		t.Error("self replacement bumped the generation")
	}
}

// TestCanReplace_DryRun checks that CanReplace agrees with ReplaceValue
// and never moves an edge.
func TestCanReplace_DryRun(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	n1 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	n2 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	free := mustApply(t, g, &unOp{name: "neg"}, n1.Outputs()[0])
	pinned := mustApply(t, g, &unOp{name: "neg"}, n2.Outputs()[0])
	if err := g.Output(free.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}
	if err := g.Output(pinned.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}
	if err := g.Attach(&edgeVeto{apply: pinned.ID(), index: 0}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	gen := g.Gen()
	before := g.Dump()

	if err := g.CanReplace(n1.Outputs()[0], x.ID()); err != nil {
		t.Fatalf("unpinned check: %v", err)
	}
	err := g.CanReplace(n2.Outputs()[0], x.ID())
	var rej *graph.RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("pinned check: got %v, want a rejection error", err)
	}
	if g.Gen() != gen || g.Dump() != before {
		t.Error("dry run mutated the graph")
	}
	if free.Inputs()[0] != n1.Outputs()[0] || pinned.Inputs()[0] != n2.Outputs()[0] {
		t.Error("dry run moved a consumer edge")
	}
}

// TestPrune_RemovesOrphanChains checks that pruning cascades through
// producers orphaned by an earlier removal.
func TestPrune_RemovesOrphanChains(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	n1 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	n2 := mustApply(t, g, &unOp{name: "neg"}, n1.Outputs()[0])
	if err := g.Output(n2.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}
	orphan := mustApply(t, g, &unOp{name: "neg"}, x.ID())

	if n := g.Prune(); n != 1 {
		t.Errorf("first prune removed %d nodes, want 1", n)
	}
	if !orphan.Dead() {
		t.Error("unconsumed node survived pruning")
	}
	if g.NumLive() != 2 {
		t.Errorf("live nodes: got %d, want 2", g.NumLive())
	}

	// Bypassing n2 orphans it, and removing it orphans n1 in turn.
	if err := g.ReplaceValue(n2.Outputs()[0], x.ID()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n := g.Prune(); n != 2 {
		t.Errorf("second prune removed %d nodes, want 2", n)
	}
	if g.NumLive() != 0 {
		t.Errorf("live nodes: got %d, want 0", g.NumLive())
	}
	if !g.ValueAt(n1.Outputs()[0]).Dead() {
		t.Error("output of pruned node is still live")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

// TestPrune_KeepsNodesFeedingOutputs checks that reachable nodes survive.
func TestPrune_KeepsNodesFeedingOutputs(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	n1 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	if err := g.Output(n1.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}
	if n := g.Prune(); n != 0 {
		t.Errorf("prune removed %d nodes from a fully-live graph", n)
	}
}

// TestPrune_IgnoresValueProtection checks that Immutable guards edge
// rewires, not liveness: a protected value with no consumers and no
// output slot is swept with its producer. Callers wanting the value
// kept declare it an output.
func TestPrune_IgnoresValueProtection(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	n := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	if err := g.Output(x.ID()); err != nil {
		t.Fatalf("output: %v", err)
	}
	if err := g.Attach(graph.NewImmutable(n.Outputs()[0])); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if removed := g.Prune(); removed != 1 {
		t.Errorf("prune removed %d nodes, want 1", removed)
	}
	if !n.Dead() {
		t.Error("protected dead node survived the sweep")
	}
}

// TestToposort_Deterministic checks dependency order with the creation
// order tie-break, and that repeated calls agree.
func TestToposort_Deterministic(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	a := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	b := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	c := mustApply(t, g, &binOp{name: "add"}, a.Outputs()[0], b.Outputs()[0])
	if err := g.Output(c.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}

	order, err := graph.Toposort(g)
	if err != nil {
		t.Fatalf("toposort: %v", err)
	}
	want := []graph.ApplyID{a.ID(), b.ID(), c.ID()}
	if len(order) != len(want) {
		t.Fatalf("order length: got %d, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d]: got %d, want %d", i, order[i], want[i])
		}
	}

	again, err := graph.Toposort(g)
	if err != nil {
		t.Fatalf("toposort: %v", err)
	}
	for i := range order {
		if order[i] != again[i] {
			t.Fatal("repeated toposort produced a different order")
		}
	}
}

// TestToposort_DetectsCycle checks that a rewired cycle is reported.
func TestToposort_DetectsCycle(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	a := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	b := mustApply(t, g, &unOp{name: "neg"}, a.Outputs()[0])

	if err := g.ChangeInput(a.ID(), 0, b.Outputs()[0]); err != nil {
		t.Fatalf("change input: %v", err)
	}
	_, err := graph.Toposort(g)
	var cerr *graph.ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a consistency error", err)
	}
	if verr := g.Validate(); verr == nil {
		t.Error("validate accepted a cyclic graph")
	}
}

// TestHistory_RevertRestoresStructure journals a span of rewrites and
// rolls all of them back.
func TestHistory_RevertRestoresStructure(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	n1 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	if err := g.Output(n1.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}

	hist := graph.NewHistory()
	if err := g.Attach(hist); err != nil {
		t.Fatalf("attach: %v", err)
	}
	before := g.Dump()
	gen := g.Gen()
	mark := hist.Checkpoint()

	// A batch of structural damage: new node, replacement, prune.
	mustApply(t, g, &unOp{name: "neg"}, n1.Outputs()[0])
	if err := g.ReplaceValue(n1.Outputs()[0], x.ID()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	g.Prune()
	if g.Dump() == before {
		t.Fatal("mutations did not change the graph")
	}

	hist.Revert(mark)
	if g.Dump() != before {
		t.Errorf("revert did not restore the graph:\nbefore:\n%safter:\n%s", before, g.Dump())
	}
	if g.Gen() <= gen {
		t.Error("generation went backwards across a rollback")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate after revert: %v", err)
	}
}

// TestHistory_PartialRevert rolls back only past a later checkpoint.
func TestHistory_PartialRevert(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())

	hist := graph.NewHistory()
	if err := g.Attach(hist); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := g.ChangeInput(add.ID(), 0, y.ID()); err != nil {
		t.Fatalf("first rewire: %v", err)
	}
	keep := g.Dump()
	mark := hist.Checkpoint()

	if err := g.ChangeInput(add.ID(), 1, x.ID()); err != nil {
		t.Fatalf("second rewire: %v", err)
	}
	hist.Revert(mark)

	if g.Dump() != keep {
		t.Error("partial revert rolled back past its checkpoint")
	}
	if hist.Len() != mark {
		t.Errorf("journal length after revert: got %d, want %d", hist.Len(), mark)
	}
}

// TestHistory_SingleGraph checks a journal cannot follow two graphs.
func TestHistory_SingleGraph(t *testing.T) {
	hist := graph.NewHistory()
	g1, g2 := graph.New(), graph.New()
	if err := g1.Attach(hist); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := g2.Attach(hist); !errors.Is(err, graph.ErrAlreadyAttached) {
		t.Errorf("second graph attach: got %v, want ErrAlreadyAttached", err)
	}
	if err := g1.Detach(hist); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := g2.Attach(hist); err != nil {
		t.Errorf("attach after detach: %v", err)
	}
}

// TestStats_CountsMutations checks the counters the compile pipeline
// logs after optimizing.
func TestStats_CountsMutations(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	stats := graph.NewStats()
	if err := g.Attach(stats); err != nil {
		t.Fatalf("attach: %v", err)
	}

	n1 := mustApply(t, g, &unOp{name: "neg"}, x.ID())
	n2 := mustApply(t, g, &unOp{name: "neg"}, n1.Outputs()[0])
	if err := g.ChangeInput(n2.ID(), 0, x.ID()); err != nil {
		t.Fatalf("change input: %v", err)
	}
	g.Prune() // n1 is now an orphan, n2 is too

	if stats.Adds != 2 {
		t.Errorf("adds: got %d, want 2", stats.Adds)
	}
	if stats.Rewires != 1 {
		t.Errorf("rewires: got %d, want 1", stats.Rewires)
	}
	if stats.Prunes != 2 {
		t.Errorf("prunes: got %d, want 2", stats.Prunes)
	}
}

// TestClone_Independent checks a clone does not share structure.
func TestClone_Independent(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())
	if err := g.Output(add.Outputs()[0]); err != nil {
		t.Fatalf("output: %v", err)
	}

	c := g.Clone()
	if c.Dump() != g.Dump() {
		t.Fatal("clone dumps differently")
	}

	if err := g.ChangeInput(add.ID(), 1, x.ID()); err != nil {
		t.Fatalf("change input: %v", err)
	}
	if c.Dump() == g.Dump() {
		t.Error("mutating the original changed the clone")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("clone validate: %v", err)
	}
}

// TestExtractSubgraph_RemapsRegion checks isolation, handle remapping and
// exclusion of unrelated nodes.
func TestExtractSubgraph_RemapsRegion(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())
	neg := mustApply(t, g, &unOp{name: "neg"}, add.Outputs()[0])
	mustApply(t, g, &unOp{name: "neg"}, y.ID()) // unrelated

	sub, mapping, err := g.ExtractSubgraph(
		[]graph.ValueID{x.ID(), y.ID()},
		[]graph.ValueID{neg.Outputs()[0]},
	)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if sub.NumLive() != 2 {
		t.Errorf("extracted nodes: got %d, want 2", sub.NumLive())
	}
	if ins := sub.Inputs(); len(ins) != 2 {
		t.Errorf("extracted inputs: got %d, want 2", len(ins))
	}
	if outs := sub.Outputs(); len(outs) != 1 || outs[0] != mapping[neg.Outputs()[0]] {
		t.Errorf("extracted outputs: got %v", outs)
	}
	if mapping[x.ID()] == mapping[y.ID()] {
		t.Error("distinct inputs mapped to the same handle")
	}
	if err := sub.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	// The extraction is a copy: mutating it must not touch the original.
	before := g.Dump()
	if err := sub.ReplaceValue(mapping[add.Outputs()[0]], mapping[x.ID()]); err != nil {
		t.Fatalf("replace in subgraph: %v", err)
	}
	if g.Dump() != before {
		t.Error("mutating the extraction changed the original")
	}
}

// TestExtractSubgraph_RejectsDanglingLeaf checks that a reachable value
// outside the requested inputs fails the extraction.
func TestExtractSubgraph_RejectsDanglingLeaf(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	y := mustInput(t, g, f32(4), "y")
	add := mustApply(t, g, &binOp{name: "add"}, x.ID(), y.ID())

	_, _, err := g.ExtractSubgraph([]graph.ValueID{x.ID()}, []graph.ValueID{add.Outputs()[0]})
	var cerr *graph.ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want a consistency error", err)
	}
}

// TestExtractSubgraph_RejectsDuplicateInput checks the input list is a
// set.
func TestExtractSubgraph_RejectsDuplicateInput(t *testing.T) {
	g := graph.New()
	x := mustInput(t, g, f32(4), "x")
	neg := mustApply(t, g, &unOp{name: "neg"}, x.ID())

	_, _, err := g.ExtractSubgraph(
		[]graph.ValueID{x.ID(), x.ID()},
		[]graph.ValueID{neg.Outputs()[0]},
	)
	if err == nil {
		t.Fatal("duplicate input request succeeded")
	}
}

// TestCanonicalDump_IgnoresArenaLayout checks that two structurally equal
// graphs dump identically even when one arena has holes from pruning.
func TestCanonicalDump_IgnoresArenaLayout(t *testing.T) {
	build := func(withJunk bool) *graph.Graph {
		g := graph.New()
		x := mustInput(t, g, f32(4), "x")
		if withJunk {
			mustApply(t, g, &unOp{name: "neg"}, x.ID())
		}
		n := mustApply(t, g, &unOp{name: "neg"}, x.ID())
		if err := g.Output(n.Outputs()[0]); err != nil {
			t.Fatalf("output: %v", err)
		}
		g.Prune()
		return g
	}

	clean, err := build(false).CanonicalDump()
	if err != nil {
		t.Fatalf("canonical dump: %v", err)
	}
	holed, err := build(true).CanonicalDump()
	if err != nil {
		t.Fatalf("canonical dump: %v", err)
	}
	if clean != holed {
		t.Errorf("canonical dumps differ:\n%s\nvs:\n%s", clean, holed)
	}
}
