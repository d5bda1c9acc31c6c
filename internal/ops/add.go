package ops

import (
	"fmt"

	"github.com/loom-ml/loom/internal/graph"
)

// AddOp is element-wise addition: output = a + b. Both inputs must share
// one numeric element type and shape.
type AddOp struct{}

// NewAdd creates a new AddOp.
func NewAdd() *AddOp { return &AddOp{} }

// Name implements graph.Op.
func (op *AddOp) Name() string { return "add" }

// Caps implements graph.Op.
func (op *AddOp) Caps() graph.Capabilities {
	return graph.Capabilities{
		Compute:     true,
		EmitSource:  true,
		InferShapes: true,
		Elementwise: true,
	}
}

// OutputTypes implements graph.Op.
func (op *AddOp) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	return binaryTypes(op.Name(), inputs)
}

// Equal implements graph.Op.
func (op *AddOp) Equal(other graph.Op) bool {
	_, ok := other.(*AddOp)
	return ok
}

// Hash implements graph.Op.
func (op *AddOp) Hash() uint64 { return nameHash(op.Name()) }

// InferShapes implements graph.ShapeInferer.
func (op *AddOp) InferShapes(inputs []graph.Shape) ([]graph.Shape, error) {
	return elementwiseShapes(op.Name(), 2, inputs)
}

// Compute implements graph.ComputeOp.
func (op *AddOp) Compute(inputs, outputs []graph.Storage) error {
	if err := wantStorage(op.Name(), inputs, outputs, 2, 1); err != nil {
		return err
	}
	a, b, o := inputs[0], inputs[1], outputs[0]
	switch o.Type().DType {
	case graph.Float32:
		binLoop(a, b, o, func(x, y float32) float32 { return x + y })
	case graph.Float64:
		binLoop(a, b, o, func(x, y float64) float64 { return x + y })
	case graph.Int32:
		binLoop(a, b, o, func(x, y int32) int32 { return x + y })
	case graph.Int64:
		binLoop(a, b, o, func(x, y int64) int64 { return x + y })
	case graph.Uint8:
		binLoop(a, b, o, func(x, y uint8) uint8 { return x + y })
	default:
		return fmt.Errorf("add: unsupported element type %s", o.Type().DType)
	}
	return nil
}

// EmitSource implements graph.SourceOp.
func (op *AddOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	e.Emit("add", outputs[0], inputs[0], inputs[1])
	return nil
}
