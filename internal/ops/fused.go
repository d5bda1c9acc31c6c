package ops

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// Step is one element-wise operation inside a FusedOp. Args index the
// fused operand space: 0..nInputs-1 are the fused node's inputs, and
// nInputs+k is the output of step k.
type Step struct {
	Op   graph.Op
	Args []int
}

// FusedOp is the composite produced by the fusion pass: a chain of
// element-wise steps executed back to back without the intermediate
// values ever becoming graph nodes. The final step's output is the fused
// node's single output.
type FusedOp struct {
	nIn       int
	steps     []Step
	stepTypes []graph.Type
}

// NewFused builds a fused operation over nInputs operands. Every step op
// must be element-wise and support both interpreted execution and source
// emission; stepTypes gives the output type of each step.
func NewFused(nInputs int, steps []Step, stepTypes []graph.Type) (*FusedOp, error) {
	if nInputs < 1 {
		return nil, fmt.Errorf("fused: need at least 1 input, got %d", nInputs)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("fused: need at least 1 step")
	}
	if len(stepTypes) != len(steps) {
		return nil, fmt.Errorf("fused: %d step types for %d steps", len(stepTypes), len(steps))
	}
	cp := make([]Step, len(steps))
	for k, st := range steps {
		caps := st.Op.Caps()
		if !caps.Elementwise || !caps.Compute || !caps.EmitSource {
			return nil, fmt.Errorf("fused: step %d (%s) is not fusable", k, st.Op.Name())
		}
		if _, ok := st.Op.(graph.ComputeOp); !ok {
			return nil, fmt.Errorf("fused: step %d (%s) reports Compute but does not implement it", k, st.Op.Name())
		}
		if _, ok := st.Op.(graph.SourceOp); !ok {
			return nil, fmt.Errorf("fused: step %d (%s) reports EmitSource but does not implement it", k, st.Op.Name())
		}
		if len(st.Args) == 0 {
			return nil, fmt.Errorf("fused: step %d (%s) has no arguments", k, st.Op.Name())
		}
		for _, idx := range st.Args {
			if idx < 0 || idx >= nInputs+k {
				return nil, fmt.Errorf("fused: step %d argument %d out of range", k, idx)
			}
		}
		cp[k] = Step{Op: st.Op, Args: append([]int(nil), st.Args...)}
	}
	types := make([]graph.Type, len(stepTypes))
	for i, t := range stepTypes {
		types[i] = t.Clone()
	}
	return &FusedOp{nIn: nInputs, steps: cp, stepTypes: types}, nil
}

// NumInputs returns the fused operand count.
func (op *FusedOp) NumInputs() int { return op.nIn }

// Steps returns the fused step list. Callers must not modify it.
func (op *FusedOp) Steps() []Step { return op.steps }

// StepTypes returns the per-step output types. Callers must not modify
// it.
func (op *FusedOp) StepTypes() []graph.Type { return op.stepTypes }

// Name implements graph.Op.
func (op *FusedOp) Name() string { return "fused" }

// Caps implements graph.Op. A fused node is itself element-wise, so the
// fusion pass can keep growing chains through it.
func (op *FusedOp) Caps() graph.Capabilities {
	return graph.Capabilities{
		Compute:     true,
		EmitSource:  true,
		InferShapes: true,
		Elementwise: true,
	}
}

// OutputTypes implements graph.Op by replaying the step signatures over
// the candidate input types.
func (op *FusedOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != op.nIn {
		return nil, fmt.Errorf("fused takes %d inputs, got %d", op.nIn, len(inputs))
	}
	operands := make([]graph.Type, op.nIn, op.nIn+len(op.steps))
	copy(operands, inputs)
	for k, st := range op.steps {
		args := make([]graph.Type, len(st.Args))
		for i, idx := range st.Args {
			args[i] = operands[idx]
		}
		outs, err := st.Op.OutputTypes(args)
		if err != nil {
			return nil, fmt.Errorf("fused step %d (%s): %w", k, st.Op.Name(), err)
		}
		if len(outs) != 1 {
			return nil, fmt.Errorf("fused step %d (%s): %d outputs, want 1", k, st.Op.Name(), len(outs))
		}
		if !outs[0].Compatible(op.stepTypes[k]) {
			return nil, fmt.Errorf("fused step %d (%s): computes %s, declared %s",
				k, st.Op.Name(), outs[0], op.stepTypes[k])
		}
		operands = append(operands, outs[0])
	}
	return []graph.Type{op.stepTypes[len(op.steps)-1].Clone()}, nil
}

// Equal implements graph.Op.
func (op *FusedOp) Equal(other graph.Op) bool {
	of, ok := other.(*FusedOp)
	if !ok || of.nIn != op.nIn || len(of.steps) != len(op.steps) {
		return false
	}
	for k, st := range op.steps {
		ost := of.steps[k]
		if !st.Op.Equal(ost.Op) || len(st.Args) != len(ost.Args) {
			return false
		}
		for i, idx := range st.Args {
			if ost.Args[i] != idx {
				return false
			}
		}
		if !op.stepTypes[k].Compatible(of.stepTypes[k]) {
			return false
		}
	}
	return true
}

// Hash implements graph.Op.
func (op *FusedOp) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString("op:fused:")
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(op.nIn))
	_, _ = h.Write(b[:])
	for k, st := range op.steps {
		binary.LittleEndian.PutUint64(b[:], st.Op.Hash())
		_, _ = h.Write(b[:])
		for _, idx := range st.Args {
			binary.LittleEndian.PutUint64(b[:], uint64(idx))
			_, _ = h.Write(b[:])
		}
		_, _ = h.WriteString(op.stepTypes[k].String())
	}
	return h.Sum64()
}

// String renders the step structure, e.g. "fused(add[0,1],neg[2])".
func (op *FusedOp) String() string {
	var sb strings.Builder
	sb.WriteString("fused(")
	for k, st := range op.steps {
		if k > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(st.Op.Name())
		sb.WriteByte('[')
		for i, idx := range st.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(idx))
		}
		sb.WriteByte(']')
	}
	sb.WriteByte(')')
	return sb.String()
}

// InferShapes implements graph.ShapeInferer.
func (op *FusedOp) InferShapes(inputs []graph.Shape) ([]graph.Shape, error) {
	return elementwiseShapes(op.Name(), op.nIn, inputs)
}

// Compute implements graph.ComputeOp. Intermediate steps write into
// scratch buffers; the final step writes the caller's output storage.
func (op *FusedOp) Compute(inputs, outputs []graph.Storage) error {
	if err := wantStorage(op.Name(), inputs, outputs, op.nIn, 1); err != nil {
		return err
	}
	operands := make([]graph.Storage, op.nIn, op.nIn+len(op.steps))
	copy(operands, inputs)
	for k, st := range op.steps {
		var dst graph.Storage
		if k == len(op.steps)-1 {
			dst = outputs[0]
		} else {
			b, err := buffer.New(op.stepTypes[k])
			if err != nil {
				return err
			}
			dst = b
		}
		args := make([]graph.Storage, len(st.Args))
		for i, idx := range st.Args {
			args[i] = operands[idx]
		}
		if err := st.Op.(graph.ComputeOp).Compute(args, []graph.Storage{dst}); err != nil {
			return fmt.Errorf("fused step %d (%s): %w", k, st.Op.Name(), err)
		}
		operands = append(operands, dst)
	}
	return nil
}

// EmitSource implements graph.SourceOp. Intermediate steps write into
// scratch registers; the final step writes the node's output register.
func (op *FusedOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	operands := make([]string, op.nIn, op.nIn+len(op.steps))
	copy(operands, inputs)
	for k, st := range op.steps {
		var dst string
		if k == len(op.steps)-1 {
			dst = outputs[0]
		} else {
			dst = e.Temp(op.stepTypes[k])
		}
		args := make([]string, len(st.Args))
		for i, idx := range st.Args {
			args[i] = operands[idx]
		}
		if err := st.Op.(graph.SourceOp).EmitSource(e, args, []string{dst}); err != nil {
			return fmt.Errorf("fused step %d (%s): %w", k, st.Op.Name(), err)
		}
		operands = append(operands, dst)
	}
	return nil
}
