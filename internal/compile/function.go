package compile

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/kernel"
	"github.com/loom-ml/loom/internal/link"
)

// ArityError reports a call with the wrong number of arguments.
type ArityError struct {
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("function takes %d arguments, got %d", e.Want, e.Got)
}

// Function is a compiled graph ready to run. Calls are serialized, so
// one Function may be shared between goroutines.
type Function struct {
	graph   *graph.Graph
	result  *link.Result
	outputs []link.Out

	mu sync.Mutex
}

// NumInputs returns how many arguments Call takes.
func (f *Function) NumInputs() int { return len(f.result.Inputs) }

// NumOutputs returns how many buffers Call returns.
func (f *Function) NumOutputs() int { return len(f.result.Outputs) }

// Graph returns the compiled function's private, optimized graph.
func (f *Function) Graph() *graph.Graph { return f.graph }

// Program returns the assembled whole-graph kernel, nil when the
// linker executed per node.
func (f *Function) Program() *kernel.Program { return f.result.Program }

// Call runs the function once and returns one buffer per output.
//
// Arguments bind to input slots in declaration order. A strict input
// rejects any element-type mismatch; a permissive one converts, so the
// argument buffer itself is never captured in that case. A borrowed
// output returns the function's internal buffer, which the next Call
// overwrites; otherwise the caller owns the returned buffer and the
// function allocates fresh storage next time.
func (f *Function) Call(args ...*buffer.Buffer) ([]*buffer.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(args) != len(f.result.Inputs) {
		return nil, &ArityError{Want: len(f.result.Inputs), Got: len(args)}
	}
	for i, arg := range args {
		if err := f.result.Inputs[i].Set(arg); err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
	}
	if err := f.result.Thunk(); err != nil {
		return nil, err
	}
	outs := make([]*buffer.Buffer, len(f.result.Outputs))
	for j, slot := range f.result.Outputs {
		if f.outputs[j].Borrow {
			outs[j] = slot.Get()
		} else {
			outs[j] = slot.Take()
		}
	}
	return outs, nil
}
