// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package link

import (
	"github.com/loom-ml/loom/internal/link"
)

// Options carries the shared machinery a linker works with.
type Options = link.Options

// In binds one declared graph input.
type In = link.In

// Out selects one declared graph output.
type Out = link.Out

// Request describes one linking job.
type Request = link.Request

// Result is a linked, runnable graph.
type Result = link.Result

// Slot is one storage cell wired into a thunk.
type Slot = link.Slot

// Linker turns a request into a runnable result.
type Linker = link.Linker

// The lowering strategies.
type (
	Fused    = link.Fused
	Dispatch = link.Dispatch
	Check    = link.Check
	Auto     = link.Auto
)

// NewFused returns the whole-graph codegen strategy.
func NewFused(opts Options) *Fused { return link.NewFused(opts) }

// NewDispatch returns the per-node strategy.
func NewDispatch(opts Options) *Dispatch { return link.NewDispatch(opts) }

// NewCheck returns the cross-checking strategy.
func NewCheck(opts Options) *Check { return link.NewCheck(opts) }

// NewAuto returns the automatic strategy selector.
func NewAuto(opts Options) *Auto { return link.NewAuto(opts) }

// ByName returns the linker registered under name: "fused", "dispatch",
// "check" or "auto". The empty string means auto.
func ByName(name string, opts Options) (Linker, error) { return link.ByName(name, opts) }

// Errors.
type (
	UnsupportedError  = link.UnsupportedError
	TypeError         = link.TypeError
	DisagreementError = link.DisagreementError
)

// Sentinel errors.
var ErrUnsetInput = link.ErrUnsetInput
