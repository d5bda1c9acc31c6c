package optim

import (
	"fmt"

	"github.com/loom-ml/loom/internal/graph"
)

// Merge eliminates common subexpressions. Two live nodes applying equal
// operations to the same inputs collapse onto the one with the lower
// handle, so repeated runs pick the same survivor.
type Merge struct{}

// NewMerge returns the common-subexpression pass.
func NewMerge() *Merge { return &Merge{} }

// Name implements Pass.
func (*Merge) Name() string { return "merge" }

// Rewrite implements Pass.
func (m *Merge) Rewrite(g *graph.Graph) (bool, error) {
	seen := make(map[string][]*graph.Apply)
	changed := false
	for _, id := range g.ApplyIDs() {
		a := g.ApplyAt(id)
		if a.Dead() {
			continue
		}
		key := signature(a)
		var survivor *graph.Apply
		for _, prev := range seen[key] {
			if !prev.Dead() && sameNode(prev, a) {
				survivor = prev
				break
			}
		}
		if survivor == nil {
			seen[key] = append(seen[key], a)
			continue
		}
		anyUsed := false
		for _, out := range a.Outputs() {
			if used(g, out) {
				anyUsed = true
				break
			}
		}
		if !anyUsed {
			continue
		}
		if err := mergeInto(g, a, survivor); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// mergeInto moves every consumer of dup onto the matching survivor
// output. All outputs are checked before any edge moves, so a veto on
// a later output cannot leave the merge half applied.
func mergeInto(g *graph.Graph, dup, survivor *graph.Apply) error {
	for i, out := range dup.Outputs() {
		if err := g.CanReplace(out, survivor.Outputs()[i]); err != nil {
			return err
		}
	}
	for i, out := range dup.Outputs() {
		if err := g.ReplaceValue(out, survivor.Outputs()[i]); err != nil {
			return err
		}
	}
	return nil
}

// signature buckets nodes by operation hash and exact input handles.
// Bucket hits are confirmed with sameNode before merging.
func signature(a *graph.Apply) string {
	return fmt.Sprintf("%016x|%v", a.Op().Hash(), a.Inputs())
}

func sameNode(x, y *graph.Apply) bool {
	if !x.Op().Equal(y.Op()) {
		return false
	}
	xi, yi := x.Inputs(), y.Inputs()
	if len(xi) != len(yi) {
		return false
	}
	for i := range xi {
		if xi[i] != yi[i] {
			return false
		}
	}
	return true
}
