// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package buffer provides typed runtime storage for graph execution.
//
// # Overview
//
// A Buffer owns one dense, row-major block of elements with a graph
// Type attached. Buffers are what compiled functions take and return,
// what constants carry, and what kernels read and write.
//
// # Basic Usage
//
//	import "github.com/loom-ml/loom/buffer"
//
//	a, _ := buffer.Of(graph.Shape{2, 2}, float32(1), 2, 3, 4)
//	s := buffer.Scalar(int64(42))
//
//	fmt.Println(a.AsFloat32()) // [1 2 3 4]
//	fmt.Println(a.Shape())     // [2,2]
//
// Element access goes through typed views. A view aliases the buffer's
// memory, so writes through it are visible to every holder:
//
//	v := a.AsFloat32()
//	v[0] = 9
//
// Requesting a view of the wrong element type panics; use Convert for
// value-preserving element-type changes.
package buffer
