package link

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/kernel"
)

// Dispatch prepares one step per node and runs them in schedule order.
// Each operation executes the best way it can: direct computation
// first, then a self-built unit, then a private single-node kernel.
type Dispatch struct {
	opts Options
}

// NewDispatch returns the per-node strategy.
func NewDispatch(opts Options) *Dispatch { return &Dispatch{opts: opts} }

// Name implements Linker.
func (l *Dispatch) Name() string { return "dispatch" }

type step struct {
	node graph.ApplyID
	op   string
	run  func() error
}

type copyStep struct {
	from, to *Slot
}

func (cs copyStep) run() error {
	src := cs.from.Get()
	if src == nil {
		return errors.New("copy source is unset")
	}
	dst, err := cs.to.ensure()
	if err != nil {
		return err
	}
	copy(dst.Bytes(), src.Bytes())
	return nil
}

// Link implements Linker.
func (l *Dispatch) Link(req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	g := req.Graph
	order, err := graph.Toposort(g)
	if err != nil {
		return nil, err
	}
	if err := auditNodes(g, order, auditDispatch); err != nil {
		return nil, err
	}

	// Every value gets one cell. Inputs and first-occurrence outputs
	// use their request slots; intermediates get private cells filled
	// once at link time. Output slots repeating a value, or exposing an
	// input, are fed by a copy after the last step.
	ins := make([]*Slot, len(req.Inputs))
	cells := make(map[graph.ValueID]*Slot)
	for i, in := range req.Inputs {
		ins[i] = newSlot(g.ValueAt(in.Value).Type(), in.Strict)
		cells[in.Value] = ins[i]
	}
	outs := make([]*Slot, len(req.Outputs))
	var copies []copyStep
	for j, out := range req.Outputs {
		outs[j] = newSlot(g.ValueAt(out.Value).Type(), false)
		if _, taken := cells[out.Value]; !taken {
			cells[out.Value] = outs[j]
		} else {
			copies = append(copies, copyStep{from: cells[out.Value], to: outs[j]})
		}
	}

	steps := make([]step, 0, len(order))
	for _, id := range order {
		a := g.ApplyAt(id)
		srcs := make([]graph.Storage, len(a.Inputs()))
		for i, v := range a.Inputs() {
			c, ok := cells[v]
			if !ok {
				return nil, errors.Errorf("link: node %d reads value %d which is neither an input nor produced", id, v)
			}
			srcs[i] = c.Storage()
		}
		dsts := make([]graph.Storage, len(a.Outputs()))
		for i, v := range a.Outputs() {
			c, ok := cells[v]
			if !ok {
				c = newSlot(g.ValueAt(v).Type(), false)
				if _, err := c.ensure(); err != nil {
					return nil, errors.Wrapf(err, "link: allocating cell for value %d", v)
				}
				cells[v] = c
			}
			dsts[i] = c.Storage()
		}
		run, err := l.prepare(a, srcs, dsts)
		if err != nil {
			return nil, errors.Wrapf(err, "link: preparing node %d (%s)", id, a.Op().Name())
		}
		steps = append(steps, step{node: id, op: a.Op().Name(), run: run})
	}

	thunk := func() error {
		for i, s := range ins {
			if s.Get() == nil {
				return errors.Wrapf(ErrUnsetInput, "input %d", i)
			}
		}
		for _, s := range outs {
			if _, err := s.ensure(); err != nil {
				return err
			}
		}
		for _, st := range steps {
			if err := st.run(); err != nil {
				return errors.Wrapf(err, "node %d (%s)", st.node, st.op)
			}
		}
		for _, cp := range copies {
			if err := cp.run(); err != nil {
				return err
			}
		}
		return nil
	}

	l.opts.logger().WithFields(logrus.Fields{
		"nodes":  len(order),
		"copies": len(copies),
	}).Debug("linked dispatch steps")

	return &Result{Thunk: thunk, Inputs: ins, Outputs: outs}, nil
}

func auditDispatch(a *graph.Apply) *UnsupportedError {
	op := a.Op()
	caps := op.Caps()
	switch {
	case caps.Compute:
		if _, ok := op.(graph.ComputeOp); ok {
			return nil
		}
	case caps.BuildThunk:
		if _, ok := op.(graph.ThunkOp); ok {
			return nil
		}
	case caps.EmitSource:
		if _, ok := op.(graph.SourceOp); ok {
			return nil
		}
	}
	return &UnsupportedError{Op: op.Name(), Node: a.ID(), Need: "execute under dispatch"}
}

func (l *Dispatch) prepare(a *graph.Apply, srcs, dsts []graph.Storage) (func() error, error) {
	op := a.Op()
	caps := op.Caps()
	switch {
	case caps.Compute:
		co := op.(graph.ComputeOp)
		return func() error { return co.Compute(srcs, dsts) }, nil
	case caps.BuildThunk:
		return op.(graph.ThunkOp).BuildThunk(srcs, dsts)
	default:
		return l.prepareKernel(op.(graph.SourceOp), srcs, dsts)
	}
}

// prepareKernel lowers one node into a private kernel. Identical
// single-node kernels share one cached artifact across graphs.
func (l *Dispatch) prepareKernel(op graph.SourceOp, srcs, dsts []graph.Storage) (func() error, error) {
	b := kernel.NewUnitBuilder(op.Name())
	inNames := make([]string, len(srcs))
	for i, s := range srcs {
		inNames[i] = b.In(s.Type())
	}
	outNames := make([]string, len(dsts))
	for i, d := range dsts {
		outNames[i] = b.Out(d.Type())
	}
	if err := op.EmitSource(b, inNames, outNames); err != nil {
		return nil, err
	}
	prog, err := assembleUnit(l.opts, b.Unit())
	if err != nil {
		return nil, err
	}
	regs := make([]graph.Storage, len(prog.Regs))
	nextIn, nextOut := 0, 0
	for idx, r := range prog.Regs {
		switch r.Role {
		case kernel.RoleIn:
			regs[idx] = srcs[nextIn]
			nextIn++
		case kernel.RoleOut:
			regs[idx] = dsts[nextOut]
			nextOut++
		default:
			scratch, err := buffer.New(r.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "allocating scratch register %d", idx)
			}
			regs[idx] = scratch
		}
	}
	vm := kernel.NewVM(prog, l.opts.Parallel)
	return func() error { return vm.Run(regs) }, nil
}
