// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package link lowers graphs into runnable thunks.
//
// # Overview
//
// This package contains:
//   - Fused: whole-graph code generation through the artifact cache
//   - Dispatch: one prepared step per node
//   - Check: runs both strategies and compares their outputs
//   - Auto: fused when possible, dispatch otherwise
//
// # Basic Usage
//
//	import "github.com/loom-ml/loom/link"
//
//	linker := link.NewFused(link.Options{})
//	res, err := linker.Link(link.Request{
//	    Graph:   g,
//	    Inputs:  []link.In{{Value: x.ID()}, {Value: y.ID()}},
//	    Outputs: []link.Out{{Value: sum}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res.Inputs[0].Set(a)
//	res.Inputs[1].Set(b)
//	if err := res.Thunk(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Outputs[0].Get().AsFloat32())
//
// Most callers want the compile package instead, which isolates and
// optimizes the graph before linking it.
package link
