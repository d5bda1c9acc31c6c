package graph

// Capabilities records what an operation is able to do. The linker audits
// the records of every scheduled node before lowering begins and fails
// fast when the chosen strategy cannot be satisfied.
//
// A capability flag must agree with the corresponding interface on the
// concrete operation type: an op reporting Compute must implement
// ComputeOp, and so on.
type Capabilities struct {
	Compute     bool // interpreted execution (ComputeOp)
	EmitSource  bool // kernel source emission (SourceOp)
	BuildThunk  bool // self-built executable unit (ThunkOp)
	InferShapes bool // shape inference without values (ShapeInferer)
	Gradient    bool // gradient subgraph construction (GradOp)
	JVP         bool // directional derivative construction (JVPOp)
	Elementwise bool // safe to fuse with adjacent element-wise ops
}

// Op is the contract every graph operation implements. Typing lives
// here; concrete behavior is declared through Caps and provided by the
// capability interfaces below.
type Op interface {
	// Name returns the operation mnemonic, e.g. "add".
	Name() string

	// Caps reports the operation's capability record.
	Caps() Capabilities

	// OutputTypes validates the input types and returns the types of the
	// operation's outputs. An error here aborts node construction.
	OutputTypes(inputs []Type) ([]Type, error)

	// Equal reports whether other is the same operation with the same
	// parameters. Common-subexpression merging relies on it.
	Equal(other Op) bool

	// Hash returns a content hash of the operation and its parameters.
	// Operations that compare Equal must hash identically.
	Hash() uint64
}

// Storage is one runtime value as seen by an executing operation. The
// buffer package provides the concrete implementation.
type Storage interface {
	// Type returns the element type and shape of the stored value.
	Type() Type
	// Bytes returns the raw backing bytes in row-major element order.
	Bytes() []byte
}

// ComputeOp is implemented by operations that can execute directly
// against runtime storage, without code generation.
type ComputeOp interface {
	Op
	// Compute reads fully-populated inputs and writes every output.
	// Output storage is allocated by the caller.
	Compute(inputs, outputs []Storage) error
}

// SourceEmitter collects kernel assembly during lowering. The kernel
// package provides the implementation; operations only append to it.
type SourceEmitter interface {
	// Temp allocates a scratch register of type t and returns its
	// operand name.
	Temp(t Type) string
	// Emit appends one instruction: a mnemonic followed by operands.
	Emit(mnemonic string, operands ...string)
}

// SourceOp is implemented by operations that can lower themselves to
// kernel source.
type SourceOp interface {
	Op
	// EmitSource appends the instructions computing outputs from inputs.
	// The operand names are the registers already assigned to the
	// operation's graph values.
	EmitSource(e SourceEmitter, inputs, outputs []string) error
}

// ThunkOp is implemented by operations that build their own executable
// unit, bypassing both interpreted execution and code generation.
type ThunkOp interface {
	Op
	// BuildThunk returns a unit bound to the given storage cells. The
	// thunk may be invoked any number of times; it reads the inputs'
	// current contents on every call.
	BuildThunk(inputs, outputs []Storage) (func() error, error)
}

// ShapeInferer is implemented by operations that can derive output
// shapes from input shapes alone.
type ShapeInferer interface {
	Op
	InferShapes(inputs []Shape) ([]Shape, error)
}

// GradOp is implemented by operations that can express the gradient of
// their outputs with respect to their inputs as new graph nodes.
type GradOp interface {
	Op
	// Gradient returns, per input, the value accumulating its gradient
	// contribution given the gradients of the outputs. An entry may be
	// NoValue for a non-differentiable input.
	Gradient(g *Graph, inputs, outputGrads []ValueID) ([]ValueID, error)
}

// JVPOp is implemented by operations that can express a directional
// derivative (Jacobian-vector product) as new graph nodes.
type JVPOp interface {
	Op
	JVP(g *Graph, inputs, tangents []ValueID) ([]ValueID, error)
}
