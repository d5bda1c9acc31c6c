// Package graph implements the symbolic computation graph for the Loom
// compilation pipeline: value and application nodes, the mutable container
// that owns them, the feature hooks that guard mutation, and the
// deterministic scheduler that orders nodes for lowering.
package graph

// DataType represents runtime element type information for graph values.
type DataType int

// Supported element types for graph values.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Code returns the short mnemonic used in kernel source and graph dumps.
func (dt DataType) Code() string {
	switch dt {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Uint8:
		return "u8"
	case Bool:
		return "b8"
	default:
		return "unknown"
	}
}

// DataTypeFromCode resolves a short mnemonic back to its DataType.
func DataTypeFromCode(code string) (DataType, bool) {
	switch code {
	case "f32":
		return Float32, true
	case "f64":
		return Float64, true
	case "i32":
		return Int32, true
	case "i64":
		return Int64, true
	case "u8":
		return Uint8, true
	case "b8":
		return Bool, true
	default:
		return 0, false
	}
}

// Valid reports whether dt is one of the supported element types.
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= Bool
}
