package buffer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/graph"
)

func TestOf_RoundTrip(t *testing.T) {
	b, err := Of(graph.Shape{2, 2}, float32(1), 2, 3, 4)
	require.NoError(t, err)

	assert.Equal(t, graph.Float32, b.DType())
	assert.Equal(t, graph.Shape{2, 2}, b.Shape())
	assert.Equal(t, 4, b.NumElements())
	assert.Equal(t, 16, b.ByteSize())
	assert.Equal(t, []float32{1, 2, 3, 4}, b.AsFloat32())
}

func TestOf_CountMismatch(t *testing.T) {
	_, err := Of(graph.Shape{3}, float32(1), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 values")
}

func TestNew_RejectsBadShape(t *testing.T) {
	_, err := New(graph.T(graph.Float32, 2, 0))
	require.Error(t, err)
}

func TestFromBytes(t *testing.T) {
	raw := []byte{1, 0, 0, 0, 2, 0, 0, 0}
	b, err := FromBytes(graph.T(graph.Int32, 2), raw)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, b.AsInt32())

	// The bytes are copied, not aliased.
	raw[0] = 9
	assert.Equal(t, int32(1), b.AsInt32()[0])

	_, err = FromBytes(graph.T(graph.Int32, 2), []byte{1, 2, 3})
	require.Error(t, err)
}

func TestScalar(t *testing.T) {
	b := Scalar(int64(-7))
	assert.Equal(t, 1, b.NumElements())
	assert.Equal(t, graph.Shape{}, b.Shape())
	assert.Equal(t, []int64{-7}, b.AsInt64())
}

func TestView_IsLive(t *testing.T) {
	b, err := Of(graph.Shape{3}, float64(1), 2, 3)
	require.NoError(t, err)

	v := View[float64](b)
	v[1] = 42
	assert.Equal(t, []float64{1, 42, 3}, b.AsFloat64())
}

func TestView_WrongTypePanics(t *testing.T) {
	b, err := Of(graph.Shape{2}, float32(1), 2)
	require.NoError(t, err)
	assert.Panics(t, func() { View[int32](b) })
	assert.Panics(t, func() { b.AsInt64() })
}

func TestConvert(t *testing.T) {
	f, err := Of(graph.Shape{3}, float32(1.5), -2.75, 300)
	require.NoError(t, err)

	// Widening keeps values exactly.
	d, err := f.Convert(graph.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.75, 300}, d.AsFloat64())

	// Float to integer truncates.
	i, err := f.Convert(graph.Int32)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 300}, i.AsInt32())

	// Integer casts go through int64; narrowing wraps.
	u, err := i.Convert(graph.Uint8)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 254, 44}, u.AsUint8())

	// Bool widens to 0 and 1.
	bl, err := Of(graph.Shape{2}, true, false)
	require.NoError(t, err)
	bf, err := bl.Convert(graph.Float32)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, bf.AsFloat32())
}

func TestConvert_SameTypeCopies(t *testing.T) {
	a, err := Of(graph.Shape{2}, int32(1), 2)
	require.NoError(t, err)

	c, err := a.Convert(graph.Int32)
	require.NoError(t, err)
	require.True(t, a.Equal(c))

	c.AsInt32()[0] = 99
	assert.Equal(t, int32(1), a.AsInt32()[0], "converted buffer shares memory with its source")
}

func TestClone_Independent(t *testing.T) {
	a, err := Of(graph.Shape{2}, uint8(1), 2)
	require.NoError(t, err)

	c := a.Clone()
	require.True(t, a.Equal(c))

	c.AsUint8()[0] = 77
	assert.False(t, a.Equal(c))
	assert.Equal(t, uint8(1), a.AsUint8()[0])
}

func TestEqualAndHash(t *testing.T) {
	a, err := Of(graph.Shape{2, 3}, int32(1), 2, 3, 4, 5, 6)
	require.NoError(t, err)
	b, err := Of(graph.Shape{2, 3}, int32(1), 2, 3, 4, 5, 6)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash64(), b.Hash64())

	// Same bytes under a different shape are a different value.
	c, err := Of(graph.Shape{3, 2}, int32(1), 2, 3, 4, 5, 6)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash64(), c.Hash64())

	b.AsInt32()[5] = 7
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash64(), b.Hash64())

	assert.False(t, a.Equal(nil))
}

func TestString_TruncatesLongBuffers(t *testing.T) {
	vals := make([]float32, 12)
	for i := range vals {
		vals[i] = float32(i)
	}
	b, err := Of(graph.Shape{12}, vals...)
	require.NoError(t, err)

	s := b.String()
	assert.True(t, strings.HasPrefix(s, "f32[12]{"), s)
	assert.Contains(t, s, "...")
}
