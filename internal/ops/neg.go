package ops

import (
	"fmt"

	"github.com/loom-ml/loom/internal/graph"
)

// NegOp is element-wise negation: output = -a. Negating uint8 wraps, the
// same as Go's unary minus on unsigned values.
type NegOp struct{}

// NewNeg creates a new NegOp.
func NewNeg() *NegOp { return &NegOp{} }

// Name implements graph.Op.
func (op *NegOp) Name() string { return "neg" }

// Caps implements graph.Op.
func (op *NegOp) Caps() graph.Capabilities {
	return graph.Capabilities{
		Compute:     true,
		EmitSource:  true,
		InferShapes: true,
		Elementwise: true,
	}
}

// OutputTypes implements graph.Op.
func (op *NegOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	return unaryTypes(op.Name(), inputs)
}

// Equal implements graph.Op.
func (op *NegOp) Equal(other graph.Op) bool {
	_, ok := other.(*NegOp)
	return ok
}

// Hash implements graph.Op.
func (op *NegOp) Hash() uint64 { return nameHash(op.Name()) }

// InferShapes implements graph.ShapeInferer.
func (op *NegOp) InferShapes(inputs []graph.Shape) ([]graph.Shape, error) {
	return elementwiseShapes(op.Name(), 1, inputs)
}

// Compute implements graph.ComputeOp.
func (op *NegOp) Compute(inputs, outputs []graph.Storage) error {
	if err := wantStorage(op.Name(), inputs, outputs, 1, 1); err != nil {
		return err
	}
	a, o := inputs[0], outputs[0]
	switch o.Type().DType {
	case graph.Float32:
		unaryLoop(a, o, func(x float32) float32 { return -x })
	case graph.Float64:
		unaryLoop(a, o, func(x float64) float64 { return -x })
	case graph.Int32:
		unaryLoop(a, o, func(x int32) int32 { return -x })
	case graph.Int64:
		unaryLoop(a, o, func(x int64) int64 { return -x })
	case graph.Uint8:
		unaryLoop(a, o, func(x uint8) uint8 { return -x })
	default:
		return fmt.Errorf("neg: unsupported element type %s", o.Type().DType)
	}
	return nil
}

// EmitSource implements graph.SourceOp.
func (op *NegOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	e.Emit("neg", outputs[0], inputs[0])
	return nil
}
