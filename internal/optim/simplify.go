package optim

import (
	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/ops"
)

// Simplify applies algebraic identities and folds constant
// subexpressions:
//
//	x + 0 = x    0 + x = x    x - 0 = x
//	x * 1 = x    1 * x = x    x * 0 = 0
//	neg(neg(x)) = x
//
// and any node fed only by constants is evaluated now, its result
// baked into a constant node.
type Simplify struct{}

// NewSimplify returns the identity and folding pass.
func NewSimplify() *Simplify { return &Simplify{} }

// Name implements Pass.
func (*Simplify) Name() string { return "simplify" }

// Rewrite implements Pass.
func (s *Simplify) Rewrite(g *graph.Graph) (bool, error) {
	changed := false
	for _, id := range g.ApplyIDs() {
		a := g.ApplyAt(id)
		if a.Dead() {
			continue
		}
		did, err := s.rewriteNode(g, a)
		if err != nil {
			return changed, err
		}
		if did {
			changed = true
		}
	}
	return changed, nil
}

func (s *Simplify) rewriteNode(g *graph.Graph, a *graph.Apply) (bool, error) {
	outs := a.Outputs()
	anyUsed := false
	for _, out := range outs {
		if used(g, out) {
			anyUsed = true
			break
		}
	}
	if !anyUsed {
		return false, nil
	}

	ins := a.Inputs()
	switch a.Op().(type) {
	case *ops.AddOp:
		if c := constOf(g, ins[1]); c != nil && c.IsAll(0) {
			return true, g.ReplaceValue(outs[0], ins[0])
		}
		if c := constOf(g, ins[0]); c != nil && c.IsAll(0) {
			return true, g.ReplaceValue(outs[0], ins[1])
		}
	case *ops.SubOp:
		if c := constOf(g, ins[1]); c != nil && c.IsAll(0) {
			return true, g.ReplaceValue(outs[0], ins[0])
		}
	case *ops.MulOp:
		if c := constOf(g, ins[1]); c != nil && c.IsAll(1) {
			return true, g.ReplaceValue(outs[0], ins[0])
		}
		if c := constOf(g, ins[0]); c != nil && c.IsAll(1) {
			return true, g.ReplaceValue(outs[0], ins[1])
		}
		c0, c1 := constOf(g, ins[0]), constOf(g, ins[1])
		if (c0 != nil && c0.IsAll(0)) || (c1 != nil && c1.IsAll(0)) {
			return true, s.replaceWithZero(g, outs[0])
		}
	case *ops.NegOp:
		if inner := negInput(g, ins[0]); inner != graph.NoValue {
			return true, g.ReplaceValue(outs[0], inner)
		}
	}
	return s.fold(g, a)
}

func (s *Simplify) replaceWithZero(g *graph.Graph, out graph.ValueID) error {
	zero, err := ops.NewZeroConst(g.ValueAt(out).Type())
	if err != nil {
		return err
	}
	na, err := g.Apply(zero)
	if err != nil {
		return err
	}
	return g.ReplaceValue(out, na.Outputs()[0])
}

// negInput returns the value under a negation producing v, or NoValue.
func negInput(g *graph.Graph, v graph.ValueID) graph.ValueID {
	producer, _ := g.ValueAt(v).Producer()
	if producer == graph.NoApply {
		return graph.NoValue
	}
	inner := g.ApplyAt(producer)
	if _, ok := inner.Op().(*ops.NegOp); !ok {
		return graph.NoValue
	}
	return inner.Inputs()[0]
}

// fold evaluates a node fed only by constants. Zero-input nodes are
// already constants and stay put.
func (s *Simplify) fold(g *graph.Graph, a *graph.Apply) (bool, error) {
	op, ok := a.Op().(graph.ComputeOp)
	if !ok || !a.Op().Caps().Compute {
		return false, nil
	}
	ins := a.Inputs()
	if len(ins) == 0 {
		return false, nil
	}
	consts := make([]graph.Storage, len(ins))
	for i, in := range ins {
		c := constOf(g, in)
		if c == nil {
			return false, nil
		}
		consts[i] = c.Value()
	}
	outs := a.Outputs()
	folded := make([]*buffer.Buffer, len(outs))
	results := make([]graph.Storage, len(outs))
	for i, out := range outs {
		b, err := buffer.New(g.ValueAt(out).Type())
		if err != nil {
			return false, err
		}
		folded[i] = b
		results[i] = b
	}
	if err := op.Compute(consts, results); err != nil {
		return false, err
	}
	for i, out := range outs {
		na, err := g.Apply(ops.NewConst(folded[i]))
		if err != nil {
			return false, err
		}
		if err := g.ReplaceValue(out, na.Outputs()[0]); err != nil {
			return false, err
		}
	}
	return true, nil
}
