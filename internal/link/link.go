// Package link lowers graphs into runnable thunks.
//
// Three strategies are provided. The fused linker renders the whole
// graph into one kernel unit, assembles it through the artifact cache
// and executes it on the kernel virtual machine. The dispatch linker
// prepares one step per node and lets each operation execute however
// its capabilities allow. The checking linker runs both and compares
// their outputs after every call.
//
// A linker consumes a Request naming the graph's inputs and outputs
// and produces a Result: a thunk plus one Slot per requested value.
// Callers fill the input slots, invoke the thunk, then read the output
// slots.
package link

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loom-ml/loom/internal/cache"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/kernel"
	"github.com/loom-ml/loom/internal/parallel"
)

// Options carries the shared machinery a linker works with.
type Options struct {
	// Cache persists assembled kernel programs between processes. Nil
	// assembles in memory on every link.
	Cache *cache.Cache

	// Parallel bounds worker fan-out inside kernel loops.
	Parallel parallel.Config

	Log *logrus.Logger
}

func (o Options) logger() *logrus.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

// In binds one declared graph input.
type In struct {
	Value graph.ValueID

	// Strict rejects element-type mismatches at call time instead of
	// converting.
	Strict bool
}

// Out selects one declared graph output.
type Out struct {
	Value graph.ValueID

	// Borrow exposes the thunk's internal buffer to the caller. The
	// next run overwrites it. Without Borrow the caller takes ownership
	// of what it reads and the thunk allocates fresh storage.
	Borrow bool
}

// Request describes one linking job. Inputs and Outputs must mirror the
// graph's declared inputs and output slots, position by position.
type Request struct {
	Graph   *graph.Graph
	Inputs  []In
	Outputs []Out
}

func (req Request) validate() error {
	g := req.Graph
	if g == nil {
		return errors.New("link: nil graph")
	}
	ins := g.Inputs()
	if len(req.Inputs) != len(ins) {
		return errors.Errorf("link: request binds %d inputs, graph declares %d", len(req.Inputs), len(ins))
	}
	for i, in := range req.Inputs {
		if in.Value != ins[i] {
			return errors.Errorf("link: input %d binds value %d, graph declares value %d", i, in.Value, ins[i])
		}
	}
	outs := g.Outputs()
	if len(req.Outputs) != len(outs) {
		return errors.Errorf("link: request binds %d outputs, graph declares %d", len(req.Outputs), len(outs))
	}
	for j, out := range req.Outputs {
		if out.Value != outs[j] {
			return errors.Errorf("link: output %d binds value %d, graph declares value %d", j, out.Value, outs[j])
		}
	}
	return nil
}

// Result is a linked, runnable graph.
type Result struct {
	// Thunk runs one execution against the current slot contents.
	Thunk func() error

	// Inputs and Outputs hold one slot per request entry, in request
	// order.
	Inputs  []*Slot
	Outputs []*Slot

	// Program is the assembled kernel when the strategy produced a
	// whole-graph one, nil otherwise.
	Program *kernel.Program
}

// Linker turns a request into a runnable result.
type Linker interface {
	Name() string
	Link(req Request) (*Result, error)
}

// ByName returns the linker registered under name. Valid names are
// "fused", "dispatch", "check" and "auto"; the empty string means auto.
func ByName(name string, opts Options) (Linker, error) {
	switch name {
	case "fused":
		return NewFused(opts), nil
	case "dispatch":
		return NewDispatch(opts), nil
	case "check":
		return NewCheck(opts), nil
	case "auto", "":
		return NewAuto(opts), nil
	}
	return nil, fmt.Errorf("link: unknown linker %q", name)
}

// Auto links with the fused strategy and falls back to dispatch when
// some operation cannot emit kernel source.
type Auto struct {
	opts Options
}

// NewAuto returns the automatic strategy selector.
func NewAuto(opts Options) *Auto { return &Auto{opts: opts} }

// Name implements Linker.
func (l *Auto) Name() string { return "auto" }

// Link implements Linker.
func (l *Auto) Link(req Request) (*Result, error) {
	res, err := NewFused(l.opts).Link(req)
	if err == nil {
		return res, nil
	}
	var unsupported *UnsupportedError
	if !errors.As(err, &unsupported) {
		return nil, err
	}
	l.opts.logger().WithField("reason", unsupported.Error()).
		Debug("fused lowering unsupported, dispatching per node")
	return NewDispatch(l.opts).Link(req)
}

// auditNodes collects one UnsupportedError per failing node so a caller
// sees every problem at once.
func auditNodes(g *graph.Graph, order []graph.ApplyID, check func(a *graph.Apply) *UnsupportedError) error {
	var merr *multierror.Error
	for _, id := range order {
		if uerr := check(g.ApplyAt(id)); uerr != nil {
			merr = multierror.Append(merr, uerr)
		}
	}
	return merr.ErrorOrNil()
}
