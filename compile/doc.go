// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

/*
Package compile turns a symbolic graph into a callable function.

# Overview

Compile isolates the requested inputs and outputs into a private
subgraph, runs the rewrite pipeline over it, links the result with the
configured strategy and wraps the linked program in a Function. The
caller's graph is never mutated.

Configuration comes from an explicit Config value. DefaultConfig gives
working defaults, FromEnv layers LOOM_* environment variables on top
and LoadConfig reads a YAML file first.

# Basic Usage

	g := graph.New()
	t := graph.T(graph.Float32, 4)
	x, _ := g.Input(t, "x")
	y, _ := g.Input(t, "y")
	sum, _ := g.Apply(ops.NewAdd(), x.ID(), y.ID())
	g.Output(sum.Outputs()[0])

	fn, err := compile.Compile(g,
		[]link.In{{Value: x.ID()}, {Value: y.ID()}},
		[]link.Out{{Value: sum.Outputs()[0]}},
		compile.FromEnv())
	if err != nil {
		log.Fatal(err)
	}

	res, err := fn.Call(a, b)
*/
package compile
