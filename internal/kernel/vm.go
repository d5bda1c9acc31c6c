package kernel

import (
	"github.com/pkg/errors"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/parallel"
)

// number constrains the register element types with defined arithmetic.
type number interface {
	float32 | float64 | int32 | int64 | uint8
}

// VM executes an assembled program. One VM may run the same program any
// number of times against different register bindings; it keeps no state
// between runs.
type VM struct {
	prog *Program
	par  parallel.Config
}

// NewVM wraps a program for execution. Element-wise loops over large
// registers run in chunks under the given parallel configuration.
func NewVM(p *Program, par parallel.Config) *VM {
	return &VM{prog: p, par: par}
}

// Program returns the wrapped program.
func (vm *VM) Program() *Program { return vm.prog }

// Run executes the program against one storage cell per register, in
// declaration order. Every register must be bound with storage of its
// declared type. Run returns only after all instruction work, including
// parallel chunks, has finished.
func (vm *VM) Run(regs []graph.Storage) error {
	p := vm.prog
	if len(regs) != len(p.Regs) {
		return errors.Errorf("vm: %d bindings for %d registers", len(regs), len(p.Regs))
	}
	for i, r := range p.Regs {
		if regs[i] == nil {
			return errors.Errorf("vm: register %%%d (%s) is unbound", i, r.Role)
		}
		if t := regs[i].Type(); t.DType != r.Type.DType || !t.Shape.Equal(r.Type.Shape) {
			return errors.Errorf("vm: register %%%d bound to %s, declared %s", i, t, r.Type)
		}
	}
	for pc, ins := range p.Code {
		if err := vm.exec(ins, regs); err != nil {
			return errors.Wrapf(err, "vm: pc %d (%s)", pc, ins.Opcode)
		}
	}
	return nil
}

func (vm *VM) exec(ins Instruction, regs []graph.Storage) error {
	switch ins.Opcode {
	case OpConst:
		copy(regs[ins.Dst].Bytes(), ins.Imm)
		return nil
	case OpMov:
		copy(regs[ins.Dst].Bytes(), regs[ins.Src[0]].Bytes())
		return nil
	case OpAdd:
		return vm.binary(ins, regs, binAdd)
	case OpSub:
		return vm.binary(ins, regs, binSub)
	case OpMul:
		return vm.binary(ins, regs, binMul)
	case OpNeg:
		return vm.negate(ins, regs)
	default:
		return errors.Errorf("unknown opcode %d", ins.Opcode)
	}
}

type binKind int

const (
	binAdd binKind = iota
	binSub
	binMul
)

func (vm *VM) binary(ins Instruction, regs []graph.Storage, kind binKind) error {
	a, b, o := regs[ins.Src[0]], regs[ins.Src[1]], regs[ins.Dst]
	switch o.Type().DType {
	case graph.Float32:
		vmBin(vm.par, a, b, o, pick[float32](kind))
	case graph.Float64:
		vmBin(vm.par, a, b, o, pick[float64](kind))
	case graph.Int32:
		vmBin(vm.par, a, b, o, pick[int32](kind))
	case graph.Int64:
		vmBin(vm.par, a, b, o, pick[int64](kind))
	case graph.Uint8:
		vmBin(vm.par, a, b, o, pick[uint8](kind))
	default:
		return errors.Errorf("unsupported element type %s", o.Type().DType)
	}
	return nil
}

func (vm *VM) negate(ins Instruction, regs []graph.Storage) error {
	a, o := regs[ins.Src[0]], regs[ins.Dst]
	switch o.Type().DType {
	case graph.Float32:
		vmUnary(vm.par, a, o, func(x float32) float32 { return -x })
	case graph.Float64:
		vmUnary(vm.par, a, o, func(x float64) float64 { return -x })
	case graph.Int32:
		vmUnary(vm.par, a, o, func(x int32) int32 { return -x })
	case graph.Int64:
		vmUnary(vm.par, a, o, func(x int64) int64 { return -x })
	case graph.Uint8:
		vmUnary(vm.par, a, o, func(x uint8) uint8 { return -x })
	default:
		return errors.Errorf("unsupported element type %s", o.Type().DType)
	}
	return nil
}

func pick[T number](kind binKind) func(T, T) T {
	switch kind {
	case binAdd:
		return func(x, y T) T { return x + y }
	case binSub:
		return func(x, y T) T { return x - y }
	default:
		return func(x, y T) T { return x * y }
	}
}

func vmBin[T number](par parallel.Config, a, b, o graph.Storage, f func(T, T) T) {
	x := buffer.View[T](a)
	y := buffer.View[T](b)
	z := buffer.View[T](o)
	parallel.Chunks(len(z), func(start, end int) {
		for i := start; i < end; i++ {
			z[i] = f(x[i], y[i])
		}
	}, par)
}

func vmUnary[T number](par parallel.Config, a, o graph.Storage, f func(T) T) {
	x := buffer.View[T](a)
	z := buffer.View[T](o)
	parallel.Chunks(len(z), func(start, end int) {
		for i := start; i < end; i++ {
			z[i] = f(x[i])
		}
	}, par)
}
