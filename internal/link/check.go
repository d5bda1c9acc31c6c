package link

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// Check runs the fused and dispatch strategies side by side and fails
// any call on which their outputs differ. It exists to validate
// lowering, so outputs are always copied out and Borrow has no effect.
type Check struct {
	opts Options
}

// NewCheck returns the cross-checking strategy.
func NewCheck(opts Options) *Check { return &Check{opts: opts} }

// Name implements Linker.
func (l *Check) Name() string { return "check" }

// Link implements Linker.
func (l *Check) Link(req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	fused, err := NewFused(l.opts).Link(req)
	if err != nil {
		return nil, errors.Wrap(err, "link: fused strategy")
	}
	disp, err := NewDispatch(l.opts).Link(req)
	if err != nil {
		return nil, errors.Wrap(err, "link: dispatch strategy")
	}

	g := req.Graph
	ins := make([]*Slot, len(req.Inputs))
	for i, in := range req.Inputs {
		ins[i] = newSlot(g.ValueAt(in.Value).Type(), in.Strict)
	}
	outs := make([]*Slot, len(req.Outputs))
	for j, out := range req.Outputs {
		outs[j] = newSlot(g.ValueAt(out.Value).Type(), false)
	}

	thunk := func() error {
		for i, s := range ins {
			b := s.Get()
			if b == nil {
				return errors.Wrapf(ErrUnsetInput, "input %d", i)
			}
			// Outer Set already normalized the buffer, so both inner
			// slots share it.
			fused.Inputs[i].put(b)
			disp.Inputs[i].put(b)
		}
		if err := fused.Thunk(); err != nil {
			return errors.Wrap(err, "fused strategy")
		}
		if err := disp.Thunk(); err != nil {
			return errors.Wrap(err, "dispatch strategy")
		}
		for j := range outs {
			fb := fused.Outputs[j].Get()
			db := disp.Outputs[j].Get()
			if err := compareBuffers(req.Outputs[j].Value, fb, db); err != nil {
				return err
			}
			dst, err := outs[j].ensure()
			if err != nil {
				return err
			}
			copy(dst.Bytes(), fb.Bytes())
		}
		return nil
	}

	return &Result{Thunk: thunk, Inputs: ins, Outputs: outs, Program: fused.Program}, nil
}

func compareBuffers(v graph.ValueID, fb, db *buffer.Buffer) error {
	if fb.Equal(db) {
		return nil
	}
	fbytes, dbytes := fb.Bytes(), db.Bytes()
	size := fb.DType().Size()
	idx := 0
	for i := range fbytes {
		if i >= len(dbytes) || fbytes[i] != dbytes[i] {
			idx = i / size
			break
		}
	}
	return &DisagreementError{
		Value: v,
		Index: idx,
		Fused: formatElement(fb, idx),
		Plain: formatElement(db, idx),
	}
}

func formatElement(b *buffer.Buffer, i int) string {
	switch b.DType() {
	case graph.Float32:
		return fmt.Sprint(b.AsFloat32()[i])
	case graph.Float64:
		return fmt.Sprint(b.AsFloat64()[i])
	case graph.Int32:
		return fmt.Sprint(b.AsInt32()[i])
	case graph.Int64:
		return fmt.Sprint(b.AsInt64()[i])
	case graph.Uint8:
		return fmt.Sprint(b.AsUint8()[i])
	case graph.Bool:
		return fmt.Sprint(b.AsBool()[i])
	}
	return "?"
}
