package buffer

import (
	"fmt"

	"github.com/loom-ml/loom/internal/graph"
)

// Convert returns a new buffer with the same shape and the elements cast
// to the target element type. Integer-to-integer casts go through int64
// and keep exact values modulo truncation; casts crossing the
// float/integer boundary go through float64. Booleans convert to and
// from numerics as 0 and 1. Narrowing casts are allowed and truncate,
// which is what non-strict storage slots rely on.
func (b *Buffer) Convert(to graph.DataType) (*Buffer, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("convert: unknown target data type")
	}
	if b.typ.DType == to {
		return b.Clone(), nil
	}
	out, err := New(graph.Type{DType: to, Shape: b.typ.Shape.Clone()})
	if err != nil {
		return nil, err
	}
	n := b.NumElements()
	if isInteger(b.typ.DType) && isInteger(to) {
		get := b.intGetter()
		set := out.intSetter()
		for i := 0; i < n; i++ {
			set(i, get(i))
		}
		return out, nil
	}
	get := b.floatGetter()
	set := out.floatSetter()
	for i := 0; i < n; i++ {
		set(i, get(i))
	}
	return out, nil
}

func isInteger(dt graph.DataType) bool {
	switch dt {
	case graph.Int32, graph.Int64, graph.Uint8, graph.Bool:
		return true
	default:
		return false
	}
}

func (b *Buffer) intGetter() func(i int) int64 {
	switch b.typ.DType {
	case graph.Int32:
		s := b.AsInt32()
		return func(i int) int64 { return int64(s[i]) }
	case graph.Int64:
		s := b.AsInt64()
		return func(i int) int64 { return s[i] }
	case graph.Uint8:
		s := b.AsUint8()
		return func(i int) int64 { return int64(s[i]) }
	case graph.Bool:
		s := b.AsBool()
		return func(i int) int64 {
			if s[i] {
				return 1
			}
			return 0
		}
	default:
		panic("not an integer buffer")
	}
}

func (b *Buffer) intSetter() func(i int, v int64) {
	switch b.typ.DType {
	case graph.Int32:
		s := b.AsInt32()
		return func(i int, v int64) { s[i] = int32(v) }
	case graph.Int64:
		s := b.AsInt64()
		return func(i int, v int64) { s[i] = v }
	case graph.Uint8:
		s := b.AsUint8()
		return func(i int, v int64) { s[i] = uint8(v) }
	case graph.Bool:
		s := b.AsBool()
		return func(i int, v int64) { s[i] = v != 0 }
	default:
		panic("not an integer buffer")
	}
}

func (b *Buffer) floatGetter() func(i int) float64 {
	switch b.typ.DType {
	case graph.Float32:
		s := b.AsFloat32()
		return func(i int) float64 { return float64(s[i]) }
	case graph.Float64:
		s := b.AsFloat64()
		return func(i int) float64 { return s[i] }
	case graph.Int32:
		s := b.AsInt32()
		return func(i int) float64 { return float64(s[i]) }
	case graph.Int64:
		s := b.AsInt64()
		return func(i int) float64 { return float64(s[i]) }
	case graph.Uint8:
		s := b.AsUint8()
		return func(i int) float64 { return float64(s[i]) }
	case graph.Bool:
		s := b.AsBool()
		return func(i int) float64 {
			if s[i] {
				return 1
			}
			return 0
		}
	default:
		panic("unknown buffer dtype")
	}
}

func (b *Buffer) floatSetter() func(i int, v float64) {
	switch b.typ.DType {
	case graph.Float32:
		s := b.AsFloat32()
		return func(i int, v float64) { s[i] = float32(v) }
	case graph.Float64:
		s := b.AsFloat64()
		return func(i int, v float64) { s[i] = v }
	case graph.Int32:
		s := b.AsInt32()
		return func(i int, v float64) { s[i] = int32(v) }
	case graph.Int64:
		s := b.AsInt64()
		return func(i int, v float64) { s[i] = int64(v) }
	case graph.Uint8:
		s := b.AsUint8()
		return func(i int, v float64) { s[i] = uint8(v) }
	case graph.Bool:
		s := b.AsBool()
		return func(i int, v float64) { s[i] = v != 0 }
	default:
		panic("unknown buffer dtype")
	}
}
