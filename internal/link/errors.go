package link

import (
	"errors"
	"fmt"

	"github.com/loom-ml/loom/internal/graph"
)

var (
	// ErrUnsetInput is returned by a thunk when an input slot was never
	// filled.
	ErrUnsetInput = errors.New("input slot is unset")
)

// UnsupportedError reports a scheduled operation that lacks a capability
// the chosen linker needs. The audit runs before any lowering, so a
// request either links completely or not at all.
type UnsupportedError struct {
	Op   string
	Node graph.ApplyID
	Need string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("op %s at node %d cannot %s", e.Op, e.Node, e.Need)
}

// TypeError reports storage handed to a slot that the slot cannot
// accept.
type TypeError struct {
	Want graph.Type
	Got  graph.Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("slot holds %s, got %s", e.Want, e.Got)
}

// DisagreementError reports two lowering strategies producing different
// contents for the same graph value. It only arises from the checking
// linker.
type DisagreementError struct {
	Value graph.ValueID
	Index int // first differing element
	Fused string
	Plain string
}

func (e *DisagreementError) Error() string {
	return fmt.Sprintf("strategies disagree on value %d at element %d: fused %s, dispatch %s",
		e.Value, e.Index, e.Fused, e.Plain)
}
