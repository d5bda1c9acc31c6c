// Package ops provides the demonstration operation set exercised by the
// compilation pipeline: element-wise arithmetic, immediates, and the
// fused composite produced by the fusion pass. Every operation here
// supports both interpreted execution and kernel source emission, so all
// linker strategies can lower it.
package ops

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// number constrains the element types with defined arithmetic. Unsigned
// negation wraps, matching the kernel VM.
type number interface {
	float32 | float64 | int32 | int64 | uint8
}

// binaryTypes checks a two-input element-wise signature: both inputs
// must agree exactly and the single output matches them.
func binaryTypes(name string, inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("%s takes 2 inputs, got %d", name, len(inputs))
	}
	a, b := inputs[0], inputs[1]
	if a.DType != b.DType {
		return nil, fmt.Errorf("%s: mismatched element types %s and %s", name, a.DType, b.DType)
	}
	if !a.Shape.Equal(b.Shape) {
		return nil, fmt.Errorf("%s: mismatched shapes %s and %s", name, a.Shape, b.Shape)
	}
	if a.DType == graph.Bool {
		return nil, fmt.Errorf("%s: bool values have no arithmetic", name)
	}
	return []graph.Type{a.Clone()}, nil
}

// unaryTypes checks a one-input element-wise signature.
func unaryTypes(name string, inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s takes 1 input, got %d", name, len(inputs))
	}
	if inputs[0].DType == graph.Bool {
		return nil, fmt.Errorf("%s: bool values have no arithmetic", name)
	}
	return []graph.Type{inputs[0].Clone()}, nil
}

// elementwiseShapes is the shared shape-inference rule of the set.
func elementwiseShapes(name string, n int, inputs []graph.Shape) ([]graph.Shape, error) {
	if len(inputs) != n {
		return nil, fmt.Errorf("%s takes %d inputs, got %d", name, n, len(inputs))
	}
	for _, s := range inputs[1:] {
		if !s.Equal(inputs[0]) {
			return nil, fmt.Errorf("%s: mismatched shapes %s and %s", name, inputs[0], s)
		}
	}
	return []graph.Shape{inputs[0].Clone()}, nil
}

// nameHash hashes the mnemonic of a parameterless operation.
func nameHash(name string) uint64 {
	return xxhash.Sum64String("op:" + name)
}

// binLoop runs f element-wise over two inputs into one output.
func binLoop[T number](a, b, o graph.Storage, f func(x, y T) T) {
	as := buffer.View[T](a)
	bs := buffer.View[T](b)
	os := buffer.View[T](o)
	for i := range os {
		os[i] = f(as[i], bs[i])
	}
}

// unaryLoop runs f element-wise over one input into one output.
func unaryLoop[T number](a, o graph.Storage, f func(x T) T) {
	as := buffer.View[T](a)
	os := buffer.View[T](o)
	for i := range os {
		os[i] = f(as[i])
	}
}

func wantStorage(name string, inputs, outputs []graph.Storage, nIn, nOut int) error {
	if len(inputs) != nIn || len(outputs) != nOut {
		return fmt.Errorf("%s: storage mismatch: %d/%d in, %d/%d out",
			name, len(inputs), nIn, len(outputs), nOut)
	}
	return nil
}
