package optim

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/ops"
)

// Fuse collapses element-wise producer/consumer pairs into single
// fused nodes, saving a round trip through memory per collapsed edge.
// A producer is eligible when its whole fan-out lands on one consumer
// and its value is not itself a graph output. Fused nodes are
// element-wise too, so repeated rounds flatten whole chains.
type Fuse struct{}

// NewFuse returns the element-wise fusion pass.
func NewFuse() *Fuse { return &Fuse{} }

// Name implements Pass.
func (*Fuse) Name() string { return "fuse" }

// Rewrite implements Pass.
func (f *Fuse) Rewrite(g *graph.Graph) (bool, error) {
	changed := false
	for _, id := range g.ApplyIDs() {
		p := g.ApplyAt(id)
		if p.Dead() {
			continue
		}
		c := fusibleConsumer(g, p)
		if c == nil {
			continue
		}
		did, err := fusePair(g, p, c)
		if err != nil {
			return changed, err
		}
		if did {
			changed = true
		}
	}
	return changed, nil
}

func fusible(op graph.Op) bool {
	caps := op.Caps()
	return caps.Elementwise && caps.Compute && caps.EmitSource
}

// fusibleConsumer returns the single node consuming p's output when
// the pair may fuse, nil otherwise.
func fusibleConsumer(g *graph.Graph, p *graph.Apply) *graph.Apply {
	if !fusible(p.Op()) || len(p.Outputs()) != 1 {
		return nil
	}
	v := p.Outputs()[0]
	if g.IsOutput(v) {
		return nil
	}
	consumers := g.ValueAt(v).Consumers()
	if len(consumers) == 0 {
		return nil
	}
	first := consumers[0].Apply
	for _, entry := range consumers[1:] {
		if entry.Apply != first {
			return nil
		}
	}
	c := g.ApplyAt(first)
	if !fusible(c.Op()) || len(c.Outputs()) != 1 {
		return nil
	}
	if !used(g, c.Outputs()[0]) {
		return nil
	}
	return c
}

// fusePair replaces the consumer with a fused node computing both, the
// producer's result flowing through a scratch register instead of a
// graph value.
func fusePair(g *graph.Graph, p, c *graph.Apply) (bool, error) {
	v := p.Outputs()[0]

	// Fused inputs: p's inputs, then c's remaining inputs, each value
	// once, in first-appearance order.
	index := make(map[graph.ValueID]int)
	var inputs []graph.ValueID
	collect := func(ids []graph.ValueID, skip graph.ValueID) {
		for _, in := range ids {
			if in == skip {
				continue
			}
			if _, ok := index[in]; !ok {
				index[in] = len(inputs)
				inputs = append(inputs, in)
			}
		}
	}
	collect(p.Inputs(), graph.NoValue)
	collect(c.Inputs(), v)
	nIn := len(inputs)

	var steps []ops.Step
	var stepTypes []graph.Type

	// appendNode flattens a node into the step list and returns the
	// operand naming its result. operandOf maps the node's own graph
	// inputs into the fused operand space.
	appendNode := func(a *graph.Apply, operandOf func(in graph.ValueID) int) int {
		base := len(steps)
		if fo, ok := a.Op().(*ops.FusedOp); ok {
			fIn := fo.NumInputs()
			aIns := a.Inputs()
			for _, st := range fo.Steps() {
				args := make([]int, len(st.Args))
				for i, arg := range st.Args {
					if arg < fIn {
						args[i] = operandOf(aIns[arg])
					} else {
						args[i] = nIn + base + (arg - fIn)
					}
				}
				steps = append(steps, ops.Step{Op: st.Op, Args: args})
			}
			stepTypes = append(stepTypes, fo.StepTypes()...)
		} else {
			args := make([]int, len(a.Inputs()))
			for i, in := range a.Inputs() {
				args[i] = operandOf(in)
			}
			steps = append(steps, ops.Step{Op: a.Op(), Args: args})
			stepTypes = append(stepTypes, g.ValueAt(a.Outputs()[0]).Type())
		}
		return nIn + len(steps) - 1
	}

	pResult := appendNode(p, func(in graph.ValueID) int { return index[in] })
	appendNode(c, func(in graph.ValueID) int {
		if in == v {
			return pResult
		}
		return index[in]
	})

	fused, err := ops.NewFused(nIn, steps, stepTypes)
	if err != nil {
		return false, err
	}
	na, err := g.Apply(fused, inputs...)
	if err != nil {
		return false, err
	}
	if err := g.ReplaceValue(c.Outputs()[0], na.Outputs()[0]); err != nil {
		return false, err
	}
	return true, nil
}
