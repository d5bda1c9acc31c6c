// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package buffer

import (
	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
)

// Elem constrains the element types a buffer can hold.
type Elem = buffer.Elem

// Buffer is dense, typed runtime storage.
type Buffer = buffer.Buffer

// New returns a zeroed buffer of the given type.
func New(t graph.Type) (*Buffer, error) { return buffer.New(t) }

// FromBytes wraps raw little-endian element bytes. The byte length must
// match the type exactly.
func FromBytes(t graph.Type, raw []byte) (*Buffer, error) { return buffer.FromBytes(t, raw) }

// Of builds a buffer of the given shape from element values. The
// element count must match the shape.
func Of[T Elem](shape graph.Shape, vals ...T) (*Buffer, error) {
	return buffer.Of(shape, vals...)
}

// Scalar builds a rank-zero buffer holding one value.
func Scalar[T Elem](v T) *Buffer { return buffer.Scalar(v) }

// View reinterprets storage as a typed element slice. It panics when
// the storage holds a different element type.
func View[T Elem](s graph.Storage) []T { return buffer.View[T](s) }
