package kernel

import (
	"errors"
	"fmt"
)

// Common kernel program errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrUnsupportedVersion = errors.New("unsupported program version")
	ErrTruncated          = errors.New("program data is truncated")
	ErrTrailingData       = errors.New("trailing bytes after program")
)

// AssembleError reports a malformed kernel unit with the offending line.
type AssembleError struct {
	Line    int
	Message string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("assemble: line %d: %s", e.Line, e.Message)
}

func assemblef(line int, format string, args ...any) *AssembleError {
	return &AssembleError{Line: line, Message: fmt.Sprintf(format, args...)}
}
