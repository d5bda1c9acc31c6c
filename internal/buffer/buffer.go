// Package buffer provides the runtime value representation of the
// compilation pipeline: a typed, contiguous byte buffer holding one graph
// value. Buffers are the currency of storage slots, thunks, and the
// kernel virtual machine.
package buffer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/loom-ml/loom/internal/graph"
)

// Elem is a constraint for supported buffer element types.
type Elem interface {
	float32 | float64 | int32 | int64 | uint8 | bool
}

// Buffer holds one runtime value: raw bytes in row-major element order
// plus the value's graph type. It implements graph.Storage.
type Buffer struct {
	typ  graph.Type
	data []byte
}

var _ graph.Storage = (*Buffer)(nil)

// New allocates a zeroed buffer of type t.
func New(t graph.Type) (*Buffer, error) {
	if !t.DType.Valid() {
		return nil, fmt.Errorf("new buffer: unknown data type")
	}
	if err := t.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("new buffer: %w", err)
	}
	return &Buffer{
		typ:  t.Clone(),
		data: make([]byte, t.SizeBytes()),
	}, nil
}

// FromBytes wraps raw bytes of exactly the type's size. The bytes are
// copied.
func FromBytes(t graph.Type, raw []byte) (*Buffer, error) {
	b, err := New(t)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(b.data) {
		return nil, fmt.Errorf("from bytes: have %d bytes, %s needs %d", len(raw), t, len(b.data))
	}
	copy(b.data, raw)
	return b, nil
}

// Of builds a buffer of the inferred element type with the given shape,
// populated from vals in row-major order.
func Of[T Elem](shape graph.Shape, vals ...T) (*Buffer, error) {
	var zero T
	t := graph.Type{DType: elemDataType(zero), Shape: shape}
	b, err := New(t)
	if err != nil {
		return nil, err
	}
	if len(vals) != t.Shape.NumElements() {
		return nil, fmt.Errorf("of: %d values for shape %s (%d elements)",
			len(vals), t.Shape, t.Shape.NumElements())
	}
	dst := unsafe.Slice((*T)(unsafe.Pointer(&b.data[0])), len(vals))
	copy(dst, vals)
	return b, nil
}

// Scalar wraps a single element into a scalar buffer.
func Scalar[T Elem](v T) *Buffer {
	b, err := Of(graph.Shape{}, v)
	if err != nil {
		panic(err) // scalar shapes are always valid
	}
	return b
}

// Type returns the buffer's element type and shape.
func (b *Buffer) Type() graph.Type { return b.typ }

// DType returns the buffer's element type.
func (b *Buffer) DType() graph.DataType { return b.typ.DType }

// Shape returns the buffer's shape.
func (b *Buffer) Shape() graph.Shape { return b.typ.Shape }

// NumElements returns the total number of elements.
func (b *Buffer) NumElements() int { return b.typ.Shape.NumElements() }

// ByteSize returns the total memory size in bytes.
func (b *Buffer) ByteSize() int { return len(b.data) }

// Bytes returns the raw byte slice backing the buffer.
// WARNING: direct access to underlying memory. Use with caution.
func (b *Buffer) Bytes() []byte { return b.data }

// AsFloat32 interprets the data as []float32.
// Panics if the buffer's dtype is not Float32.
func (b *Buffer) AsFloat32() []float32 {
	b.mustBe(graph.Float32)
	return unsafe.Slice((*float32)(unsafe.Pointer(&b.data[0])), b.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the buffer's dtype is not Float64.
func (b *Buffer) AsFloat64() []float64 {
	b.mustBe(graph.Float64)
	return unsafe.Slice((*float64)(unsafe.Pointer(&b.data[0])), b.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the buffer's dtype is not Int32.
func (b *Buffer) AsInt32() []int32 {
	b.mustBe(graph.Int32)
	return unsafe.Slice((*int32)(unsafe.Pointer(&b.data[0])), b.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the buffer's dtype is not Int64.
func (b *Buffer) AsInt64() []int64 {
	b.mustBe(graph.Int64)
	return unsafe.Slice((*int64)(unsafe.Pointer(&b.data[0])), b.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the buffer's dtype is not Uint8.
func (b *Buffer) AsUint8() []uint8 {
	b.mustBe(graph.Uint8)
	return b.data
}

// AsBool interprets the data as []bool.
// Panics if the buffer's dtype is not Bool.
func (b *Buffer) AsBool() []bool {
	b.mustBe(graph.Bool)
	return unsafe.Slice((*bool)(unsafe.Pointer(&b.data[0])), b.NumElements())
}

func (b *Buffer) mustBe(dt graph.DataType) {
	if b.typ.DType != dt {
		panic(fmt.Sprintf("buffer dtype is %s, not %s", b.typ.DType, dt))
	}
}

// Clone returns a deep copy. Buffers never share backing memory.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		typ:  b.typ.Clone(),
		data: append([]byte(nil), b.data...),
	}
}

// Equal reports whether two buffers have identical type and contents.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil {
		return false
	}
	return b.typ.DType == other.typ.DType &&
		b.typ.Shape.Equal(other.typ.Shape) &&
		bytes.Equal(b.data, other.data)
}

// Hash64 returns a content hash covering type and data. Buffers that
// compare Equal hash identically.
func (b *Buffer) Hash64() uint64 {
	h := xxhash.New()
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[:4], uint32(b.typ.DType))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(b.typ.Shape)))
	_, _ = h.Write(hdr[:])
	for _, dim := range b.typ.Shape {
		binary.LittleEndian.PutUint64(hdr[:], uint64(dim))
		_, _ = h.Write(hdr[:])
	}
	_, _ = h.Write(b.data)
	return h.Sum64()
}

// String renders the type and the first few elements, for debugging.
func (b *Buffer) String() string {
	const limit = 8
	var sb strings.Builder
	sb.WriteString(b.typ.String())
	sb.WriteByte('{')
	n := b.NumElements()
	shown := n
	if shown > limit {
		shown = limit
	}
	for i := 0; i < shown; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", b.element(i))
	}
	if n > shown {
		sb.WriteString(", ...")
	}
	sb.WriteByte('}')
	return sb.String()
}

func (b *Buffer) element(i int) any {
	switch b.typ.DType {
	case graph.Float32:
		return b.AsFloat32()[i]
	case graph.Float64:
		return b.AsFloat64()[i]
	case graph.Int32:
		return b.AsInt32()[i]
	case graph.Int64:
		return b.AsInt64()[i]
	case graph.Uint8:
		return b.AsUint8()[i]
	case graph.Bool:
		return b.AsBool()[i]
	default:
		return nil
	}
}

// View reinterprets a storage value's bytes as elements of type T.
// Panics when T does not match the storage element type.
func View[T Elem](s graph.Storage) []T {
	t := s.Type()
	var zero T
	if elemDataType(zero) != t.DType {
		panic(fmt.Sprintf("storage dtype is %s, not %s", t.DType, elemDataType(zero)))
	}
	raw := s.Bytes()
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), t.Shape.NumElements())
}

// elemDataType infers the runtime DataType from a generic element type.
func elemDataType[T Elem](dummy T) graph.DataType {
	switch any(dummy).(type) {
	case float32:
		return graph.Float32
	case float64:
		return graph.Float64
	case int32:
		return graph.Int32
	case int64:
		return graph.Int64
	case uint8:
		return graph.Uint8
	case bool:
		return graph.Bool
	default:
		panic("unsupported element type")
	}
}
