package link

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/cache"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/kernel"
)

// Fused renders the whole graph into one kernel unit, assembles it
// through the artifact cache and executes it on the kernel virtual
// machine. Every scheduled operation must be able to emit source.
type Fused struct {
	opts Options
}

// NewFused returns the whole-graph codegen strategy.
func NewFused(opts Options) *Fused { return &Fused{opts: opts} }

// Name implements Linker.
func (l *Fused) Name() string { return "fused" }

// Link implements Linker.
func (l *Fused) Link(req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	g := req.Graph
	order, err := graph.Toposort(g)
	if err != nil {
		return nil, err
	}
	if err := auditNodes(g, order, func(a *graph.Apply) *UnsupportedError {
		if _, ok := a.Op().(graph.SourceOp); !ok || !a.Op().Caps().EmitSource {
			return &UnsupportedError{Op: a.Op().Name(), Node: a.ID(), Need: "emit kernel source"}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	// Register plan: one in register per input and one out register per
	// output slot, both in request order. Temps appear as emission
	// needs them.
	b := kernel.NewUnitBuilder("main")
	names := make(map[graph.ValueID]string)
	for _, in := range req.Inputs {
		names[in.Value] = b.In(g.ValueAt(in.Value).Type())
	}
	outRegs := make([]string, len(req.Outputs))
	firstSlot := make(map[graph.ValueID]int)
	for j, out := range req.Outputs {
		outRegs[j] = b.Out(g.ValueAt(out.Value).Type())
		if _, ok := firstSlot[out.Value]; !ok {
			firstSlot[out.Value] = j
		}
	}

	for _, id := range order {
		a := g.ApplyAt(id)
		srcs := make([]string, len(a.Inputs()))
		for i, v := range a.Inputs() {
			name, ok := names[v]
			if !ok {
				return nil, errors.Errorf("link: node %d reads value %d which is neither an input nor produced", a.ID(), v)
			}
			srcs[i] = name
		}
		dsts := make([]string, len(a.Outputs()))
		for i, v := range a.Outputs() {
			if j, ok := firstSlot[v]; ok {
				dsts[i] = outRegs[j]
			} else {
				dsts[i] = b.Temp(g.ValueAt(v).Type())
			}
			names[v] = dsts[i]
		}
		if err := a.Op().(graph.SourceOp).EmitSource(b, srcs, dsts); err != nil {
			return nil, errors.Wrapf(err, "link: lowering node %d (%s)", a.ID(), a.Op().Name())
		}
	}

	// An output slot fed by an input value, or repeating an earlier
	// slot's value, is filled with a copy at the end of the kernel.
	for j, out := range req.Outputs {
		if names[out.Value] != outRegs[j] {
			b.Emit("mov", outRegs[j], names[out.Value])
		}
	}

	prog, err := assembleUnit(l.opts, b.Unit())
	if err != nil {
		return nil, err
	}

	ins := make([]*Slot, len(req.Inputs))
	for i, in := range req.Inputs {
		ins[i] = newSlot(g.ValueAt(in.Value).Type(), in.Strict)
	}
	outs := make([]*Slot, len(req.Outputs))
	for j, out := range req.Outputs {
		outs[j] = newSlot(g.ValueAt(out.Value).Type(), false)
	}

	// Bind registers in declaration order: slots are viewed live, so a
	// buffer swapped between runs is picked up; scratch registers keep
	// one buffer for the life of the thunk.
	regs := make([]graph.Storage, len(prog.Regs))
	nextIn, nextOut := 0, 0
	for idx, r := range prog.Regs {
		switch r.Role {
		case kernel.RoleIn:
			regs[idx] = ins[nextIn].Storage()
			nextIn++
		case kernel.RoleOut:
			regs[idx] = outs[nextOut].Storage()
			nextOut++
		default:
			scratch, err := buffer.New(r.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "link: allocating scratch register %d", idx)
			}
			regs[idx] = scratch
		}
	}

	vm := kernel.NewVM(prog, l.opts.Parallel)
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
		return vm.Run(regs)
	}

	l.opts.logger().WithFields(logrus.Fields{
		"nodes": len(order),
		"regs":  len(prog.Regs),
		"code":  len(prog.Code),
	}).Debug("linked fused kernel")

	return &Result{Thunk: thunk, Inputs: ins, Outputs: outs, Program: prog}, nil
}

// assembleUnit turns unit text into a program, through the artifact
// cache when one is configured.
func assembleUnit(opts Options, u kernel.Unit) (*kernel.Program, error) {
	if opts.Cache == nil {
		return kernel.Assemble(u)
	}
	fp := cache.Fingerprint(string(u))
	data, err := opts.Cache.GetOrBuild(fp, func() ([]byte, error) {
		prog, err := kernel.Assemble(u)
		if err != nil {
			return nil, err
		}
		return prog.Encode()
	})
	if err != nil {
		return nil, err
	}
	prog, err := kernel.Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "link: corrupt artifact %s", fp)
	}
	return prog, nil
}
