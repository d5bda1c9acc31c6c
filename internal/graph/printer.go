package graph

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// opLabel renders an operation for dumps. Parameterized operations
// implement fmt.Stringer so instances with different parameters stay
// distinguishable.
func opLabel(op Op) string {
	if s, ok := op.(fmt.Stringer); ok {
		return s.String()
	}
	return op.Name()
}

// Dump renders the graph in a canonical text form: declared inputs in
// declaration order, live applications in ascending handle order, then
// declared outputs. An unchanged graph always produces byte-identical
// dumps, which is what before/after comparisons rely on.
func (g *Graph) Dump() string {
	var b strings.Builder
	for _, in := range g.inputs {
		v := g.values[in]
		fmt.Fprintf(&b, "input %%%d %s %q\n", v.id, v.typ, v.name)
	}
	for _, a := range g.applies {
		if a.dead {
			continue
		}
		fmt.Fprintf(&b, "apply %d %s (", a.id, opLabel(a.op))
		for i, in := range a.inputs {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%%%d", in)
		}
		b.WriteString(") -> (")
		for i, out := range a.outputs {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%%%d %s", out, g.values[out].typ)
		}
		b.WriteString(")\n")
	}
	for _, out := range g.outputs {
		fmt.Fprintf(&b, "output %%%d\n", out)
	}
	return b.String()
}

// CanonicalDump renders the graph with handles renumbered in schedule
// order, so two structurally identical graphs dump identically no matter
// how their arenas were filled.
func (g *Graph) CanonicalDump() (string, error) {
	order, err := Toposort(g)
	if err != nil {
		return "", err
	}
	renum := make(map[ValueID]int, len(g.values))
	next := 0
	for _, in := range g.inputs {
		renum[in] = next
		next++
	}
	for _, id := range order {
		for _, out := range g.applies[id].outputs {
			renum[out] = next
			next++
		}
	}
	var b strings.Builder
	for _, in := range g.inputs {
		v := g.values[in]
		fmt.Fprintf(&b, "input %%%d %s %q\n", renum[in], v.typ, v.name)
	}
	for i, id := range order {
		a := g.applies[id]
		fmt.Fprintf(&b, "apply %d %s (", i, opLabel(a.op))
		for j, in := range a.inputs {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%%%d", renum[in])
		}
		b.WriteString(") -> (")
		for j, out := range a.outputs {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%%%d %s", renum[out], g.values[out].typ)
		}
		b.WriteString(")\n")
	}
	for _, out := range g.outputs {
		fmt.Fprintf(&b, "output %%%d\n", renum[out])
	}
	return b.String(), nil
}

// Sprint renders the graph as a tree rooted at its declared outputs, for
// debugging. Shared subexpressions are expanded once and elided with
// "..." afterwards.
func Sprint(g *Graph) string {
	tree := treeprint.New()
	seen := make(map[ValueID]bool)
	for i, out := range g.outputs {
		branch := tree.AddBranch(fmt.Sprintf("output[%d]", i))
		sprintValue(g, branch, out, seen)
	}
	return tree.String()
}

func sprintValue(g *Graph, tree treeprint.Tree, id ValueID, seen map[ValueID]bool) {
	v := g.values[id]
	label := fmt.Sprintf("%%%d %s", id, v.typ)
	if v.name != "" {
		label += " " + v.name
	}
	if v.producer == NoApply {
		tree.AddNode(label + " (input)")
		return
	}
	a := g.applies[v.producer]
	label = fmt.Sprintf("%s = %s", label, opLabel(a.op))
	if seen[id] {
		tree.AddNode(label + " ...")
		return
	}
	seen[id] = true
	branch := tree.AddBranch(label)
	for _, in := range a.inputs {
		sprintValue(g, branch, in, seen)
	}
}
