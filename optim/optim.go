// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/optim"
)

// Pass is one kind of graph rewrite.
type Pass = optim.Pass

// Config controls pipeline scheduling.
type Config = optim.Config

// Pipeline runs registered passes over a graph until a full round
// changes nothing.
type Pipeline = optim.Pipeline

// Scheduling priorities of the standard passes. Lower runs earlier.
const (
	PrioritySimplify = optim.PrioritySimplify
	PriorityMerge    = optim.PriorityMerge
	PriorityFuse     = optim.PriorityFuse
	PriorityPrune    = optim.PriorityPrune
)

// DefaultMaxRounds caps fixpoint iteration when the configuration does
// not say otherwise.
const DefaultMaxRounds = optim.DefaultMaxRounds

// NewPipeline returns an empty pipeline.
func NewPipeline(cfg Config) *Pipeline { return optim.NewPipeline(cfg) }

// Default returns the standard pipeline: simplify, merge, fuse, prune.
func Default(cfg Config) *Pipeline { return optim.Default(cfg) }

// The standard passes.
type (
	Simplify = optim.Simplify
	Merge    = optim.Merge
	Fuse     = optim.Fuse
	Prune    = optim.Prune
)

// NewSimplify returns the identity and folding pass.
func NewSimplify() *Simplify { return optim.NewSimplify() }

// NewMerge returns the common-subexpression pass.
func NewMerge() *Merge { return optim.NewMerge() }

// NewFuse returns the element-wise fusion pass.
func NewFuse() *Fuse { return optim.NewFuse() }

// NewPrune returns the dead-node pass.
func NewPrune() *Prune { return optim.NewPrune() }

// Run rewrites g in place with the standard pipeline.
func Run(g *graph.Graph, cfg Config) error {
	return optim.Default(cfg).Run(g)
}
