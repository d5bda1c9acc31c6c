// Package kernel implements the low-level target of the compilation
// pipeline. Operations emit textual kernel units during lowering; the
// assembler turns a unit into a compact binary program artifact; the
// virtual machine executes programs against storage registers.
//
// A unit is deterministic text, e.g.:
//
//	kernel main
//	reg %0 in f32[2,2]
//	reg %1 in f32[2,2]
//	reg %2 out f32[2,2]
//	add %2 %0 %1
//	end
//
// The same schedule and register assignment always renders byte-identical
// units, which is what the compilation cache fingerprints.
package kernel

import (
	"fmt"
	"strings"

	"github.com/loom-ml/loom/internal/graph"
)

// Unit is one kernel's source text.
type Unit string

// UnitBuilder accumulates register declarations and instructions and
// renders them as a Unit. It implements graph.SourceEmitter, so lowering
// hands it directly to operations.
type UnitBuilder struct {
	name  string
	regs  []Register
	lines []string
}

var _ graph.SourceEmitter = (*UnitBuilder)(nil)

// NewUnitBuilder starts an empty unit with the given kernel name.
func NewUnitBuilder(name string) *UnitBuilder {
	return &UnitBuilder{name: name}
}

// In declares an input register of type t and returns its operand name.
func (b *UnitBuilder) In(t graph.Type) string { return b.addReg(RoleIn, t) }

// Out declares an output register of type t and returns its operand name.
func (b *UnitBuilder) Out(t graph.Type) string { return b.addReg(RoleOut, t) }

// Temp implements graph.SourceEmitter.
func (b *UnitBuilder) Temp(t graph.Type) string { return b.addReg(RoleTmp, t) }

// Emit implements graph.SourceEmitter.
func (b *UnitBuilder) Emit(mnemonic string, operands ...string) {
	if len(operands) == 0 {
		b.lines = append(b.lines, mnemonic)
		return
	}
	b.lines = append(b.lines, mnemonic+" "+strings.Join(operands, " "))
}

// NumRegs returns the number of registers declared so far.
func (b *UnitBuilder) NumRegs() int { return len(b.regs) }

// Unit renders the accumulated declarations and instructions.
func (b *UnitBuilder) Unit() Unit {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kernel %s\n", b.name)
	for i, r := range b.regs {
		fmt.Fprintf(&sb, "reg %%%d %s %s\n", i, r.Role, r.Type)
	}
	for _, line := range b.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("end\n")
	return Unit(sb.String())
}

func (b *UnitBuilder) addReg(role RegRole, t graph.Type) string {
	b.regs = append(b.regs, Register{Role: role, Type: t.Clone()})
	return fmt.Sprintf("%%%d", len(b.regs)-1)
}
