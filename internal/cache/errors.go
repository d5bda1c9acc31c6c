package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoot is returned when a cache is constructed without a root
	// directory.
	ErrNoRoot = errors.New("cache root directory not set")
)

// BuildError wraps a failure from the builder callback handed to
// GetOrBuild. No artifact is written when the builder fails.
type BuildError struct {
	Fingerprint string
	Err         error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building artifact %s: %v", e.Fingerprint, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
