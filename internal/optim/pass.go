// Package optim rewrites graphs before linking.
//
// This package provides:
//   - Pass interface: one kind of graph rewrite
//   - Pipeline: runs registered passes to a fixed point
//   - Simplify: algebraic identities and constant folding
//   - Merge: common-subexpression elimination
//   - Fuse: collapses element-wise chains into fused operations
//   - Prune: drops nodes no output depends on
//
// Passes mutate the graph through its guarded mutation operations, so
// an attached veto feature can block a rewrite. The pipeline journals
// every mutation; the first pass that fails or is vetoed aborts the
// run, and the journal restores the graph on the way out.
package optim

import (
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/ops"
)

// Pass is one kind of graph rewrite.
//
// Rewrite scans the whole graph, applies every instance of the rewrite
// it can, and reports whether anything changed. A rewrite blocked by a
// feature veto fails the pass with the rejection as its error.
type Pass interface {
	// Name identifies the pass in logs.
	Name() string

	// Rewrite applies the pass once over the graph.
	Rewrite(g *graph.Graph) (bool, error)
}

// used reports whether anything in the graph still depends on v. Passes
// skip values nothing reads so that re-running them converges.
func used(g *graph.Graph, v graph.ValueID) bool {
	return len(g.ValueAt(v).Consumers()) > 0 || g.IsOutput(v)
}

// constOf returns the constant producing v, or nil when v is not a
// constant node's output.
func constOf(g *graph.Graph, v graph.ValueID) *ops.ConstOp {
	producer, _ := g.ValueAt(v).Producer()
	if producer == graph.NoApply {
		return nil
	}
	c, ok := g.ApplyAt(producer).Op().(*ops.ConstOp)
	if !ok {
		return nil
	}
	return c
}
