package graph

import (
	"errors"
	"fmt"
)

// Common graph errors.
var (
	ErrAlreadyAttached = errors.New("feature is already attached")
	ErrNotAttached     = errors.New("feature is not attached")
	ErrDeadNode        = errors.New("node has been pruned")
	ErrNotInGraph      = errors.New("node does not belong to this graph")
	ErrCycle           = errors.New("graph contains a cycle")
)

// ConsistencyError reports a graph whose structural invariants are
// broken: a cycle, a dangling reference, or a type-incompatible rewire.
// It is always fatal to the operation that raised it and is never
// retried.
type ConsistencyError struct {
	Op     string // operation that detected the violation
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("graph consistency: %s: %s", e.Op, e.Detail)
}

func consistencyf(op, format string, args ...any) *ConsistencyError {
	return &ConsistencyError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// RejectionError reports a mutation vetoed by an attached feature. The
// graph is unchanged when it is returned.
type RejectionError struct {
	Feature string // name of the vetoing feature
	Reason  error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("change rejected by %s: %v", e.Feature, e.Reason)
}

// Unwrap exposes the feature's own error for errors.Is/As matching.
func (e *RejectionError) Unwrap() error {
	return e.Reason
}
