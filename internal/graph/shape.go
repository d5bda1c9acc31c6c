package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape represents the dimensions of a value. A nil or empty shape is a
// scalar.
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String renders the shape as a bracketed dimension list, e.g. "[2,3]".
// A scalar renders as "[]".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = strconv.Itoa(dim)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseShape parses the output of String, e.g. "[2,3]" or "[]".
func ParseShape(text string) (Shape, error) {
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return nil, fmt.Errorf("malformed shape %q", text)
	}
	inner := text[1 : len(text)-1]
	if inner == "" {
		return Shape{}, nil
	}
	parts := strings.Split(inner, ",")
	s := make(Shape, len(parts))
	for i, p := range parts {
		dim, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed shape %q: %v", text, err)
		}
		s[i] = dim
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
