// Package compile turns graphs into callable functions.
//
// Compilation isolates the requested region of the caller's graph,
// rewrites the isolated copy, links it into a thunk and wraps the
// result in a Function. The caller's graph is never mutated, so one
// graph can be compiled many ways.
package compile

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loom-ml/loom/internal/cache"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/link"
	"github.com/loom-ml/loom/internal/optim"
)

// artifactSalt keys the artifact cache directory to the kernel program
// format this build writes.
const artifactSalt = "loom-program-v1"

// ArtifactCache opens the artifact cache a compilation with cfg would
// use, or nil when caching is disabled.
func ArtifactCache(cfg Config) (*cache.Cache, error) {
	if cfg.CacheDir == "" {
		return nil, nil
	}
	return cache.New(cache.Config{
		Root:    cfg.CacheDir,
		Salt:    artifactSalt,
		Locking: cfg.Locking,
		Log:     cfg.logger(),
	})
}

// Compile builds a callable function computing the requested outputs
// from the requested inputs over g. Inputs must cover every leaf the
// outputs depend on; an input listed twice, or a dependency on an
// unlisted leaf, fails compilation.
func Compile(g *graph.Graph, inputs []link.In, outputs []link.Out, cfg Config) (*Function, error) {
	if len(outputs) == 0 {
		return nil, errors.New("compile: no outputs requested")
	}
	log := cfg.logger()

	ins := make([]graph.ValueID, len(inputs))
	for i, in := range inputs {
		ins[i] = in.Value
	}
	outs := make([]graph.ValueID, len(outputs))
	for j, out := range outputs {
		outs[j] = out.Value
	}

	sub, mapping, err := g.ExtractSubgraph(ins, outs)
	if err != nil {
		return nil, errors.Wrap(err, "compile: isolating subgraph")
	}

	linkIns := make([]link.In, len(inputs))
	for i, in := range inputs {
		linkIns[i] = link.In{Value: mapping[in.Value], Strict: in.Strict}
	}
	linkOuts := make([]link.Out, len(outputs))
	for j, out := range outputs {
		linkOuts[j] = link.Out{Value: mapping[out.Value], Borrow: out.Borrow}
	}

	stats := graph.NewStats()
	if err := sub.Attach(stats); err != nil {
		return nil, err
	}
	guard := graph.NewImmutable(sub.Inputs()...)
	if err := sub.Attach(guard); err != nil {
		return nil, err
	}

	if cfg.Optimize {
		pipe := optim.Default(optim.Config{MaxRounds: cfg.MaxIterations, Log: log})
		if err := pipe.Run(sub); err != nil {
			return nil, errors.Wrap(err, "compile: optimizing")
		}
		log.WithFields(stats.Fields()).WithField("nodes", sub.NumLive()).Debug("optimized graph")
	}
	if err := sub.Detach(guard); err != nil {
		return nil, err
	}
	if err := sub.Detach(stats); err != nil {
		return nil, err
	}

	artifacts, err := ArtifactCache(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "compile: opening artifact cache")
	}

	linker, err := link.ByName(cfg.Linker, link.Options{
		Cache:    artifacts,
		Parallel: cfg.parallel(),
		Log:      log,
	})
	if err != nil {
		return nil, err
	}
	res, err := linker.Link(link.Request{Graph: sub, Inputs: linkIns, Outputs: linkOuts})
	if err != nil {
		return nil, errors.Wrap(err, "compile: linking")
	}

	log.WithFields(logrus.Fields{
		"linker":  linker.Name(),
		"nodes":   sub.NumLive(),
		"inputs":  len(linkIns),
		"outputs": len(linkOuts),
	}).Debug("compiled function")

	return &Function{graph: sub, result: res, outputs: linkOuts}, nil
}
