package graph

// Type describes a graph value: its element data type plus a concrete
// shape. One value may take another's place in the graph only when their
// Types are compatible.
type Type struct {
	DType DataType
	Shape Shape
}

// T constructs a Type from an element type and a dimension list.
func T(dt DataType, dims ...int) Type {
	return Type{DType: dt, Shape: Shape(dims)}
}

// Compatible reports whether a value of type other can take this value's
// place. Element types must match exactly and shapes must be equal.
func (t Type) Compatible(other Type) bool {
	return t.DType == other.DType && t.Shape.Equal(other.Shape)
}

// SizeBytes returns the byte size of one runtime value of this type.
func (t Type) SizeBytes() int {
	return t.Shape.NumElements() * t.DType.Size()
}

// Clone returns a deep copy of the type.
func (t Type) Clone() Type {
	return Type{DType: t.DType, Shape: t.Shape.Clone()}
}

// String renders the type as the element code followed by the shape,
// e.g. "f32[2,2]".
func (t Type) String() string {
	return t.DType.Code() + t.Shape.String()
}

// ParseType parses the output of String, e.g. "f32[2,2]".
func ParseType(text string) (Type, error) {
	i := 0
	for i < len(text) && text[i] != '[' {
		i++
	}
	dt, ok := DataTypeFromCode(text[:i])
	if !ok {
		return Type{}, &ConsistencyError{Op: "parse type", Detail: "unknown element code in " + text}
	}
	shape, err := ParseShape(text[i:])
	if err != nil {
		return Type{}, err
	}
	return Type{DType: dt, Shape: shape}, nil
}
