// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph

import (
	"github.com/loom-ml/loom/internal/graph"
)

// Element types.
type DataType = graph.DataType

// Supported element types.
const (
	Float32 = graph.Float32
	Float64 = graph.Float64
	Int32   = graph.Int32
	Int64   = graph.Int64
	Uint8   = graph.Uint8
	Bool    = graph.Bool
)

// DataTypeFromCode resolves a short element-type code such as "f32".
func DataTypeFromCode(code string) (DataType, bool) {
	return graph.DataTypeFromCode(code)
}

// Shape is the row-major dimension list of a value.
type Shape = graph.Shape

// ParseShape parses a shape rendered by Shape.String, e.g. "[2,3]".
func ParseShape(s string) (Shape, error) { return graph.ParseShape(s) }

// Type pairs an element type with a shape.
type Type = graph.Type

// T builds a Type from an element type and dimensions.
func T(dt DataType, dims ...int) Type { return graph.T(dt, dims...) }

// ParseType parses a type rendered by Type.String, e.g. "f32[2,2]".
func ParseType(s string) (Type, error) { return graph.ParseType(s) }

// Handles into a graph's arena.
type (
	ValueID = graph.ValueID
	ApplyID = graph.ApplyID
)

// Sentinel handles for absent references.
const (
	NoValue = graph.NoValue
	NoApply = graph.NoApply
)

// Consumer is one use of a value: an application node and the input
// index at which it reads the value.
type Consumer = graph.Consumer

// Value is a symbolic value in a graph.
type Value = graph.Value

// Apply is the application of an operation to input values.
type Apply = graph.Apply

// Graph is a mutable computation graph.
type Graph = graph.Graph

// New returns an empty graph.
func New() *Graph { return graph.New() }

// Operation contract.
type (
	Op            = graph.Op
	Capabilities  = graph.Capabilities
	Storage       = graph.Storage
	ComputeOp     = graph.ComputeOp
	SourceOp      = graph.SourceOp
	ThunkOp       = graph.ThunkOp
	SourceEmitter = graph.SourceEmitter
	ShapeInferer  = graph.ShapeInferer
	GradOp        = graph.GradOp
	JVPOp         = graph.JVPOp
)

// Feature hooks.
type (
	Feature        = graph.Feature
	NodeObserver   = graph.NodeObserver
	ChangeGuard    = graph.ChangeGuard
	ChangeObserver = graph.ChangeObserver
	OutputObserver = graph.OutputObserver
)

// Immutable vetoes rewires that would move a consumer off a protected
// value.
type Immutable = graph.Immutable

// NewImmutable protects the given values.
func NewImmutable(values ...ValueID) *Immutable { return graph.NewImmutable(values...) }

// Stats counts mutations applied to a graph.
type Stats = graph.Stats

// NewStats returns a zeroed mutation counter.
func NewStats() *Stats { return graph.NewStats() }

// History journals mutations for checkpoint and rollback.
type History = graph.History

// NewHistory returns an empty journal.
func NewHistory() *History { return graph.NewHistory() }

// Toposort returns every live node in dependency order. Ties break
// toward lower handles, so equal graphs schedule identically.
func Toposort(g *Graph) ([]ApplyID, error) { return graph.Toposort(g) }

// Sprint renders the graph as a tree rooted at its outputs.
func Sprint(g *Graph) string { return graph.Sprint(g) }

// Errors.
type (
	ConsistencyError = graph.ConsistencyError
	RejectionError   = graph.RejectionError
)

// Sentinel errors.
var (
	ErrAlreadyAttached = graph.ErrAlreadyAttached
	ErrNotAttached     = graph.ErrNotAttached
	ErrDeadNode        = graph.ErrDeadNode
	ErrNotInGraph      = graph.ErrNotInGraph
	ErrCycle           = graph.ErrCycle
)
