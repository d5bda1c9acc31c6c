// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim rewrites graphs before linking.
//
// # Overview
//
// This package contains:
//   - Simplify: algebraic identities and constant folding
//   - Merge: common-subexpression elimination
//   - Fuse: collapses element-wise chains into fused operations
//   - Prune: drops nodes no output depends on
//   - Pipeline: runs passes in priority order to a fixed point
//
// # Basic Usage
//
//	import "github.com/loom-ml/loom/optim"
//
//	pipe := optim.Default(optim.Config{})
//	if err := pipe.Run(g); err != nil {
//	    log.Fatal(err)
//	}
//
// # Custom Passes
//
// A pass implements the Pass interface and registers with a priority;
// lower priorities run earlier and equal priorities run in
// registration order:
//
//	pipe := optim.NewPipeline(optim.Config{})
//	pipe.Register(optim.PrioritySimplify, optim.NewSimplify())
//	pipe.Register(50, myPass)
//
// The pipeline journals every mutation. The first pass that errors, or
// leaves the graph failing validation, aborts the run: the journal is
// unwound so the graph is exactly what it was before Run, and the
// error is returned. A feature veto surfaces the same way.
package optim
