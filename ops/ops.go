// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ops

import (
	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/ops"
)

// Element-wise arithmetic.
type (
	AddOp = ops.AddOp
	SubOp = ops.SubOp
	MulOp = ops.MulOp
	NegOp = ops.NegOp
)

// NewAdd returns element-wise addition.
func NewAdd() *AddOp { return ops.NewAdd() }

// NewSub returns element-wise subtraction.
func NewSub() *SubOp { return ops.NewSub() }

// NewMul returns element-wise multiplication.
func NewMul() *MulOp { return ops.NewMul() }

// NewNeg returns element-wise negation.
func NewNeg() *NegOp { return ops.NewNeg() }

// ConstOp embeds a constant value in the graph.
type ConstOp = ops.ConstOp

// NewConst returns a constant holding a copy of value.
func NewConst(value *buffer.Buffer) *ConstOp { return ops.NewConst(value) }

// NewZeroConst returns a zero-valued constant of the given type.
func NewZeroConst(t graph.Type) (*ConstOp, error) { return ops.NewZeroConst(t) }

// FusedOp runs a chain of element-wise steps as one kernel.
type FusedOp = ops.FusedOp

// Step is one operation inside a fused chain.
type Step = ops.Step

// NewFused builds a fused operation from nInputs fused inputs and an
// ordered step list. Step arguments index the fused inputs first, then
// earlier step results.
func NewFused(nInputs int, steps []Step, stepTypes []graph.Type) (*FusedOp, error) {
	return ops.NewFused(nInputs, steps, stepTypes)
}
