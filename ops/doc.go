// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the built-in graph operations.
//
// # Overview
//
// This package contains:
//   - Add, Sub, Mul, Neg: element-wise arithmetic
//   - Const: an embedded constant value
//   - Fused: a chain of element-wise steps executing as one kernel
//
// Every operation can compute directly and emit kernel source, so any
// linker strategy can run any built-in graph.
//
// # Basic Usage
//
//	g := graph.New()
//	x, _ := g.Input(graph.T(graph.Float32, 2), "x")
//
//	one, _ := buffer.Of(graph.Shape{2}, float32(1), 1)
//	c, _ := g.Apply(ops.NewConst(one))
//	sum, _ := g.Apply(ops.NewAdd(), x.ID(), c.Outputs()[0])
//	g.Output(sum.Outputs()[0])
package ops
