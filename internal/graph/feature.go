package graph

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Feature observes and may veto mutations of the Graph it is attached to.
// Implementations opt into events by additionally implementing the hook
// interfaces below; Feature itself only covers the attach cycle.
type Feature interface {
	// OnAttach is called when the feature is attached. Returning an error
	// aborts the attachment and leaves the graph's feature list unchanged.
	OnAttach(g *Graph) error
	// OnDetach is called when the feature is removed.
	OnDetach(g *Graph)
}

// NodeObserver is notified after an application node has been added to or
// pruned from the graph.
type NodeObserver interface {
	OnAddNode(g *Graph, a *Apply)
	OnPruneNode(g *Graph, a *Apply)
}

// ChangeGuard is consulted before an input rewire is applied. Returning a
// non-nil error vetoes the change and the graph stays untouched.
type ChangeGuard interface {
	WillChangeInput(g *Graph, a *Apply, index int, oldv, newv ValueID) error
}

// ChangeObserver is notified after an input rewire has been applied.
type ChangeObserver interface {
	DidChangeInput(g *Graph, a *Apply, index int, oldv, newv ValueID)
}

// OutputObserver is notified after a declared output slot has been
// remapped by ReplaceValue.
type OutputObserver interface {
	DidChangeOutput(g *Graph, slot int, oldv, newv ValueID)
}

// Attach adds a feature and invokes its OnAttach hook. Attaching the same
// feature twice is an error.
func (g *Graph) Attach(f Feature) error {
	for _, have := range g.features {
		if have == f {
			return ErrAlreadyAttached
		}
	}
	if err := f.OnAttach(g); err != nil {
		return err
	}
	g.features = append(g.features, f)
	return nil
}

// Detach removes a previously attached feature and invokes its OnDetach
// hook.
func (g *Graph) Detach(f Feature) error {
	for i, have := range g.features {
		if have == f {
			g.features = append(g.features[:i], g.features[i+1:]...)
			f.OnDetach(g)
			return nil
		}
	}
	return ErrNotAttached
}

// featureList snapshots the attached features so hooks may detach
// features mid-notification.
func (g *Graph) featureList() []Feature {
	if len(g.features) == 0 {
		return nil
	}
	return append([]Feature(nil), g.features...)
}

func featureName(f Feature) string {
	type named interface{ Name() string }
	if n, ok := f.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", f)
}

// Immutable vetoes any rewire that would replace one of the protected
// values. The compilation pipeline attaches it over the declared inputs
// so no rewrite pass can optimize an input out of the call signature.
type Immutable struct {
	protected map[ValueID]bool
}

// NewImmutable protects the given values.
func NewImmutable(values ...ValueID) *Immutable {
	p := make(map[ValueID]bool, len(values))
	for _, v := range values {
		p[v] = true
	}
	return &Immutable{protected: p}
}

// Name identifies the feature in rejection errors.
func (im *Immutable) Name() string { return "immutable" }

// OnAttach implements Feature.
func (im *Immutable) OnAttach(g *Graph) error { return nil }

// OnDetach implements Feature.
func (im *Immutable) OnDetach(g *Graph) {}

// WillChangeInput vetoes rewires that move a consumer off a protected
// value.
func (im *Immutable) WillChangeInput(g *Graph, a *Apply, index int, oldv, newv ValueID) error {
	if im.protected[oldv] {
		return fmt.Errorf("value %d is protected", oldv)
	}
	return nil
}

// Stats counts the mutations applied to a graph. The compilation pipeline
// attaches one per run and logs its fields after optimization.
type Stats struct {
	Adds    int
	Prunes  int
	Rewires int
}

// NewStats returns a zeroed mutation counter.
func NewStats() *Stats { return &Stats{} }

// Name identifies the feature.
func (s *Stats) Name() string { return "stats" }

// OnAttach implements Feature.
func (s *Stats) OnAttach(g *Graph) error { return nil }

// OnDetach implements Feature.
func (s *Stats) OnDetach(g *Graph) {}

// OnAddNode implements NodeObserver.
func (s *Stats) OnAddNode(g *Graph, a *Apply) { s.Adds++ }

// OnPruneNode implements NodeObserver.
func (s *Stats) OnPruneNode(g *Graph, a *Apply) { s.Prunes++ }

// DidChangeInput implements ChangeObserver.
func (s *Stats) DidChangeInput(g *Graph, a *Apply, index int, oldv, newv ValueID) {
	s.Rewires++
}

// Fields renders the counters for structured logging.
func (s *Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"adds":    s.Adds,
		"prunes":  s.Prunes,
		"rewires": s.Rewires,
	}
}
