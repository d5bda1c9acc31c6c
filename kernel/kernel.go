// Copyright 2026 The Loom Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/loom-ml/loom/internal/kernel"
	"github.com/loom-ml/loom/internal/parallel"
)

// Unit is a textual kernel listing.
type Unit = kernel.Unit

// UnitBuilder accumulates registers and instructions into a unit.
type UnitBuilder = kernel.UnitBuilder

// NewUnitBuilder returns a builder for a named unit.
func NewUnitBuilder(name string) *UnitBuilder { return kernel.NewUnitBuilder(name) }

// Opcode identifies one VM instruction.
type Opcode = kernel.Opcode

// Instruction set of the kernel VM.
const (
	OpConst = kernel.OpConst
	OpMov   = kernel.OpMov
	OpAdd   = kernel.OpAdd
	OpSub   = kernel.OpSub
	OpMul   = kernel.OpMul
	OpNeg   = kernel.OpNeg
)

// RegRole classifies a program register.
type RegRole = kernel.RegRole

// Register roles.
const (
	RoleIn  = kernel.RoleIn
	RoleOut = kernel.RoleOut
	RoleTmp = kernel.RoleTmp
)

// Register declares one VM register.
type Register = kernel.Register

// Instruction is one decoded VM instruction.
type Instruction = kernel.Instruction

// Program is an assembled, executable kernel.
type Program = kernel.Program

// Assemble parses a unit into a program.
func Assemble(u Unit) (*Program, error) { return kernel.Assemble(u) }

// Load decodes a program from its binary encoding.
func Load(data []byte) (*Program, error) { return kernel.Load(data) }

// VM executes a program against bound storage.
type VM = kernel.VM

// NewVM returns a VM for the given program.
func NewVM(p *Program, par parallel.Config) *VM { return kernel.NewVM(p, par) }

// AssembleError reports a malformed unit.
type AssembleError = kernel.AssembleError

// Sentinel errors returned by Load.
var (
	ErrInvalidMagic       = kernel.ErrInvalidMagic
	ErrUnsupportedVersion = kernel.ErrUnsupportedVersion
	ErrTruncated          = kernel.ErrTruncated
	ErrTrailingData       = kernel.ErrTrailingData
)
