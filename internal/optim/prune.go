package optim

import "github.com/loom-ml/loom/internal/graph"

// Prune drops nodes whose outputs nothing consumes and no output slot
// declares, cascading until the graph is quiet.
type Prune struct{}

// NewPrune returns the dead-node pass.
func NewPrune() *Prune { return &Prune{} }

// Name implements Pass.
func (*Prune) Name() string { return "prune" }

// Rewrite implements Pass.
func (*Prune) Rewrite(g *graph.Graph) (bool, error) {
	return g.Prune() > 0, nil
}
