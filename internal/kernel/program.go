package kernel

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/loom-ml/loom/internal/graph"
)

// Binary program format constants. Programs are encoded little-endian.
const (
	programMagic   uint32 = 0x4C4F4F4D // "LOOM"
	programVersion uint16 = 1

	// codeMinBytes is the smallest encoded instruction: opcode and
	// source-count bytes plus a 4-byte destination.
	codeMinBytes = 6
)

// Opcode identifies one VM instruction.
type Opcode uint8

// Instruction set of the kernel VM.
const (
	OpConst Opcode = iota // load an immediate payload into dst
	OpMov                 // copy src into dst
	OpAdd                 // dst = src0 + src1, element-wise
	OpSub                 // dst = src0 - src1, element-wise
	OpMul                 // dst = src0 * src1, element-wise
	OpNeg                 // dst = -src0, element-wise
)

var opcodeNames = map[Opcode]string{
	OpConst: "const",
	OpMov:   "mov",
	OpAdd:   "add",
	OpSub:   "sub",
	OpMul:   "mul",
	OpNeg:   "neg",
}

var opcodeByName = map[string]Opcode{
	"const": OpConst,
	"mov":   OpMov,
	"add":   OpAdd,
	"sub":   OpSub,
	"mul":   OpMul,
	"neg":   OpNeg,
}

// String returns the opcode mnemonic.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// srcCount returns the number of source registers the opcode reads.
func (op Opcode) srcCount() int {
	switch op {
	case OpConst:
		return 0
	case OpMov, OpNeg:
		return 1
	case OpAdd, OpSub, OpMul:
		return 2
	default:
		return -1
	}
}

// RegRole classifies a program register.
type RegRole uint8

// Register roles.
const (
	RoleIn RegRole = iota
	RoleTmp
	RoleOut
)

// String returns the role keyword used in unit text.
func (r RegRole) String() string {
	switch r {
	case RoleIn:
		return "in"
	case RoleTmp:
		return "tmp"
	case RoleOut:
		return "out"
	default:
		return "unknown"
	}
}

func regRoleFromString(s string) (RegRole, bool) {
	switch s {
	case "in":
		return RoleIn, true
	case "tmp":
		return RoleTmp, true
	case "out":
		return RoleOut, true
	default:
		return 0, false
	}
}

// Register is one storage slot of a program.
type Register struct {
	Role RegRole
	Type graph.Type
}

// Instruction is one decoded VM instruction. Imm is only populated for
// OpConst.
type Instruction struct {
	Opcode Opcode
	Dst    uint32
	Src    []uint32
	Imm    []byte
}

// Program is an assembled kernel: a register table plus an instruction
// stream. Programs are immutable once assembled or loaded.
type Program struct {
	Name string
	Regs []Register
	Code []Instruction
}

// Inputs returns the indices of the input registers in declaration
// order.
func (p *Program) Inputs() []int { return p.regsWithRole(RoleIn) }

// Outputs returns the indices of the output registers in declaration
// order.
func (p *Program) Outputs() []int { return p.regsWithRole(RoleOut) }

func (p *Program) regsWithRole(role RegRole) []int {
	var idx []int
	for i, r := range p.Regs {
		if r.Role == role {
			idx = append(idx, i)
		}
	}
	return idx
}

// Encode serializes the program to its binary artifact form. Encoding
// fails when a table exceeds the width of its count field.
func (p *Program) Encode() ([]byte, error) {
	if len(p.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("encode: name is %d bytes, limit %d", len(p.Name), math.MaxUint16)
	}
	if len(p.Regs) > math.MaxUint16 {
		return nil, fmt.Errorf("encode: %d registers, limit %d", len(p.Regs), math.MaxUint16)
	}
	if uint64(len(p.Code)) > math.MaxUint32 {
		return nil, fmt.Errorf("encode: %d instructions, limit %d", len(p.Code), uint64(math.MaxUint32))
	}
	var buf bytes.Buffer
	writeU32(&buf, programMagic)
	writeU16(&buf, programVersion)
	writeU16(&buf, 0)
	writeU16(&buf, uint16(len(p.Name)))
	buf.WriteString(p.Name)
	writeU16(&buf, uint16(len(p.Regs)))
	for i, r := range p.Regs {
		if len(r.Type.Shape) > math.MaxUint8 {
			return nil, fmt.Errorf("encode: register %%%d has rank %d, limit %d", i, len(r.Type.Shape), math.MaxUint8)
		}
		buf.WriteByte(byte(r.Role))
		buf.WriteByte(byte(r.Type.DType))
		buf.WriteByte(byte(len(r.Type.Shape)))
		for _, dim := range r.Type.Shape {
			if uint64(dim) > math.MaxUint32 {
				return nil, fmt.Errorf("encode: register %%%d has dimension %d, limit %d", i, dim, uint64(math.MaxUint32))
			}
			writeU32(&buf, uint32(dim))
		}
	}
	writeU32(&buf, uint32(len(p.Code)))
	for i, ins := range p.Code {
		if len(ins.Src) > math.MaxUint8 {
			return nil, fmt.Errorf("encode: instruction %d has %d sources, limit %d", i, len(ins.Src), math.MaxUint8)
		}
		buf.WriteByte(byte(ins.Opcode))
		buf.WriteByte(byte(len(ins.Src)))
		writeU32(&buf, ins.Dst)
		for _, s := range ins.Src {
			writeU32(&buf, s)
		}
		if ins.Opcode == OpConst {
			if uint64(len(ins.Imm)) > math.MaxUint32 {
				return nil, fmt.Errorf("encode: instruction %d has a %d byte immediate, limit %d", i, len(ins.Imm), uint64(math.MaxUint32))
			}
			writeU32(&buf, uint32(len(ins.Imm)))
			buf.Write(ins.Imm)
		}
	}
	return buf.Bytes(), nil
}

// Load decodes and validates a binary program artifact.
func Load(data []byte) (*Program, error) {
	c := &cursor{data: data}
	if c.u32() != programMagic {
		if c.err != nil {
			return nil, c.err
		}
		return nil, ErrInvalidMagic
	}
	if v := c.u16(); v != programVersion {
		if c.err != nil {
			return nil, c.err
		}
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	c.u16() // reserved
	p := &Program{}
	p.Name = string(c.bytes(int(c.u16())))
	nRegs := int(c.u16())
	p.Regs = make([]Register, 0, nRegs)
	for i := 0; i < nRegs; i++ {
		role := RegRole(c.u8())
		dt := graph.DataType(c.u8())
		rank := int(c.u8())
		shape := make(graph.Shape, rank)
		for d := 0; d < rank; d++ {
			shape[d] = int(c.u32())
		}
		if c.err != nil {
			return nil, c.err
		}
		if role > RoleOut {
			return nil, fmt.Errorf("load: register %%%d has unknown role %d", i, role)
		}
		if !dt.Valid() {
			return nil, fmt.Errorf("load: register %%%d has unknown data type %d", i, dt)
		}
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("load: register %%%d: %w", i, err)
		}
		p.Regs = append(p.Regs, Register{Role: role, Type: graph.Type{DType: dt, Shape: shape}})
	}
	nCode := int(c.u32())
	// An instruction occupies at least codeMinBytes, so a count the
	// remaining bytes cannot hold is truncated input. Checking before
	// allocating keeps a corrupt header from reserving gigabytes.
	if c.err == nil && nCode > (len(data)-c.off)/codeMinBytes {
		return nil, ErrTruncated
	}
	p.Code = make([]Instruction, 0, nCode)
	for i := 0; i < nCode; i++ {
		op := Opcode(c.u8())
		nSrc := int(c.u8())
		dst := c.u32()
		src := make([]uint32, nSrc)
		for s := 0; s < nSrc; s++ {
			src[s] = c.u32()
		}
		var imm []byte
		if op == OpConst {
			imm = append([]byte(nil), c.bytes(int(c.u32()))...)
		}
		if c.err != nil {
			return nil, c.err
		}
		want := op.srcCount()
		if want < 0 {
			return nil, fmt.Errorf("load: instruction %d has unknown opcode %d", i, op)
		}
		if nSrc != want {
			return nil, fmt.Errorf("load: instruction %d (%s): %d sources, want %d", i, op, nSrc, want)
		}
		if int(dst) >= len(p.Regs) {
			return nil, fmt.Errorf("load: instruction %d (%s): dst %%%d out of range", i, op, dst)
		}
		for _, s := range src {
			if int(s) >= len(p.Regs) {
				return nil, fmt.Errorf("load: instruction %d (%s): src %%%d out of range", i, op, s)
			}
		}
		if op == OpConst && len(imm) != p.Regs[dst].Type.SizeBytes() {
			return nil, fmt.Errorf("load: instruction %d: immediate is %d bytes, register %%%d holds %d",
				i, len(imm), dst, p.Regs[dst].Type.SizeBytes())
		}
		p.Code = append(p.Code, Instruction{Opcode: op, Dst: dst, Src: src, Imm: imm})
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.off != len(c.data) {
		return nil, ErrTrailingData
	}
	return p, nil
}

// Disassemble renders the program back into unit text. Assembling the
// result reproduces the program.
func (p *Program) Disassemble() Unit {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kernel %s\n", p.Name)
	for i, r := range p.Regs {
		fmt.Fprintf(&sb, "reg %%%d %s %s\n", i, r.Role, r.Type)
	}
	for _, ins := range p.Code {
		fmt.Fprintf(&sb, "%s %%%d", ins.Opcode, ins.Dst)
		for _, s := range ins.Src {
			fmt.Fprintf(&sb, " %%%d", s)
		}
		if ins.Opcode == OpConst {
			fmt.Fprintf(&sb, " %s", hex.EncodeToString(ins.Imm))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("end\n")
	return Unit(sb.String())
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// cursor walks a byte slice, latching the first out-of-bounds read.
type cursor struct {
	data []byte
	off  int
	err  error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if c.off+n > len(c.data) {
		c.err = ErrTruncated
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) bytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	return b
}
