package ops

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// ConstOp wraps an immediate value as a zero-input operation. Two
// constants are the same operation exactly when their payloads match byte
// for byte, which lets common-subexpression merging deduplicate them.
type ConstOp struct {
	value *buffer.Buffer
}

// NewConst creates a ConstOp holding a copy of value.
func NewConst(value *buffer.Buffer) *ConstOp {
	return &ConstOp{value: value.Clone()}
}

// NewZeroConst creates a ConstOp holding an all-zero value of type t.
func NewZeroConst(t graph.Type) (*ConstOp, error) {
	b, err := buffer.New(t)
	if err != nil {
		return nil, err
	}
	return &ConstOp{value: b}, nil
}

// Value returns the wrapped immediate. Callers must not modify it.
func (op *ConstOp) Value() *buffer.Buffer { return op.value }

// Name implements graph.Op.
func (op *ConstOp) Name() string { return "const" }

// Caps implements graph.Op.
func (op *ConstOp) Caps() graph.Capabilities {
	return graph.Capabilities{
		Compute:     true,
		EmitSource:  true,
		InferShapes: true,
	}
}

// OutputTypes implements graph.Op.
func (op *ConstOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 0 {
		return nil, fmt.Errorf("const takes no inputs, got %d", len(inputs))
	}
	return []graph.Type{op.value.Type().Clone()}, nil
}

// Equal implements graph.Op.
func (op *ConstOp) Equal(other graph.Op) bool {
	oc, ok := other.(*ConstOp)
	return ok && op.value.Equal(oc.value)
}

// Hash implements graph.Op.
func (op *ConstOp) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString("op:const:")
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], op.value.Hash64())
	_, _ = h.Write(b[:])
	return h.Sum64()
}

// String renders a stable label distinguishing constants by content.
func (op *ConstOp) String() string {
	return fmt.Sprintf("const@%016x", op.value.Hash64())
}

// InferShapes implements graph.ShapeInferer.
func (op *ConstOp) InferShapes(inputs []graph.Shape) ([]graph.Shape, error) {
	if len(inputs) != 0 {
		return nil, fmt.Errorf("const takes no inputs, got %d", len(inputs))
	}
	return []graph.Shape{op.value.Shape().Clone()}, nil
}

// Compute implements graph.ComputeOp.
func (op *ConstOp) Compute(inputs, outputs []graph.Storage) error {
	if err := wantStorage(op.Name(), inputs, outputs, 0, 1); err != nil {
		return err
	}
	copy(outputs[0].Bytes(), op.value.Bytes())
	return nil
}

// EmitSource implements graph.SourceOp. The immediate is inlined into
// the kernel source as little-endian hex.
func (op *ConstOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	e.Emit("const", outputs[0], hex.EncodeToString(op.value.Bytes()))
	return nil
}

// IsAll reports whether every element equals v after conversion to
// float64. The simplification pass uses it to spot zeros and ones.
func (op *ConstOp) IsAll(v float64) bool {
	n := op.value.NumElements()
	for i := 0; i < n; i++ {
		var x float64
		switch op.value.DType() {
		case graph.Float32:
			x = float64(op.value.AsFloat32()[i])
		case graph.Float64:
			x = op.value.AsFloat64()[i]
		case graph.Int32:
			x = float64(op.value.AsInt32()[i])
		case graph.Int64:
			x = float64(op.value.AsInt64()[i])
		case graph.Uint8:
			x = float64(op.value.AsUint8()[i])
		default:
			return false
		}
		if x != v {
			return false
		}
	}
	return n > 0
}
