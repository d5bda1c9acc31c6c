// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds and rewrites symbolic computation graphs.
//
// # Overview
//
// This package contains:
//   - Graph: an arena of values and application nodes with stable handles
//   - Op: the operation contract, with capability records and hooks
//   - Feature: attachable observers that audit or veto mutations
//   - History: a mutation journal supporting checkpoint and rollback
//   - Toposort: deterministic dependency-order scheduling
//
// # Basic Usage
//
//	import (
//	    "github.com/loom-ml/loom/graph"
//	    "github.com/loom-ml/loom/ops"
//	)
//
//	func main() {
//	    g := graph.New()
//	    x, _ := g.Input(graph.T(graph.Float32, 2, 2), "x")
//	    y, _ := g.Input(graph.T(graph.Float32, 2, 2), "y")
//
//	    sum, _ := g.Apply(ops.NewAdd(), x.ID(), y.ID())
//	    g.Output(sum.Outputs()[0])
//
//	    fmt.Print(g.Dump())
//	}
//
// # Mutation and Features
//
// Graphs mutate through guarded operations. ChangeInput rewires one
// consumer edge; ReplaceValue moves every consumer and output slot of
// one value onto another, entirely or not at all. Attached features
// observe each mutation and may veto it:
//
//	guard := graph.NewImmutable(x.ID())
//	g.Attach(guard)
//	// rewires that move a consumer off x now fail with a RejectionError
//
// A History feature journals mutations so a span of work can be undone:
//
//	hist := graph.NewHistory()
//	g.Attach(hist)
//	mark := hist.Checkpoint()
//	// ... mutate ...
//	hist.Revert(mark)
package graph
