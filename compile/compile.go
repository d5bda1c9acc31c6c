// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compile

import (
	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/cache"
	"github.com/loom-ml/loom/internal/compile"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/link"
)

// Config controls compilation.
type Config = compile.Config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return compile.DefaultConfig() }

// FromEnv returns the defaults with LOOM_* environment overrides applied.
func FromEnv() Config { return compile.FromEnv() }

// LoadConfig reads a YAML config file and applies environment overrides.
func LoadConfig(path string) (Config, error) { return compile.LoadConfig(path) }

// Function is a compiled, callable graph.
type Function = compile.Function

// ArityError reports a call with the wrong number of arguments.
type ArityError = compile.ArityError

// ArtifactCache opens the artifact cache a compilation with cfg would
// use, or nil when caching is disabled.
func ArtifactCache(cfg Config) (*cache.Cache, error) { return compile.ArtifactCache(cfg) }

// Compile isolates inputs and outputs into a subgraph, optimizes it,
// links it and returns the resulting function.
func Compile(g *graph.Graph, inputs []link.In, outputs []link.Out, cfg Config) (*Function, error) {
	return compile.Compile(g, inputs, outputs, cfg)
}

// Call is shorthand for compiling a graph with the environment-derived
// configuration and invoking it once.
func Call(g *graph.Graph, inputs []link.In, outputs []link.Out, args ...*buffer.Buffer) ([]*buffer.Buffer, error) {
	fn, err := Compile(g, inputs, outputs, FromEnv())
	if err != nil {
		return nil, err
	}
	return fn.Call(args...)
}
