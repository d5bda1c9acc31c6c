package kernel

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/loom-ml/loom/internal/graph"
)

// Assemble parses and validates a kernel unit and produces an executable
// program. Validation covers register declarations, operand arity and
// bounds, type agreement per instruction, definition before use, and
// immediate payload sizes, so a program that assembles runs without
// structural checks failing mid-execution.
func Assemble(u Unit) (*Program, error) {
	p := &Program{}
	written := make(map[uint32]bool)
	sawHeader := false
	sawCode := false
	sawEnd := false
	for n, raw := range strings.Split(string(u), "\n") {
		line := raw
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lineNo := n + 1
		if sawEnd {
			return nil, assemblef(lineNo, "content after end")
		}
		if !sawHeader {
			if fields[0] != "kernel" || len(fields) != 2 {
				return nil, assemblef(lineNo, "expected kernel header, got %q", strings.TrimSpace(line))
			}
			p.Name = fields[1]
			sawHeader = true
			continue
		}
		switch fields[0] {
		case "reg":
			if sawCode {
				return nil, assemblef(lineNo, "register declared after code")
			}
			if len(fields) != 4 {
				return nil, assemblef(lineNo, "reg takes index, role and type")
			}
			idx, ok := parseRegOperand(fields[1])
			if !ok || int(idx) != len(p.Regs) {
				return nil, assemblef(lineNo, "register indices must be dense, expected %%%d", len(p.Regs))
			}
			role, ok := regRoleFromString(fields[2])
			if !ok {
				return nil, assemblef(lineNo, "unknown register role %q", fields[2])
			}
			t, err := graph.ParseType(fields[3])
			if err != nil {
				return nil, assemblef(lineNo, "bad register type %q: %v", fields[3], err)
			}
			p.Regs = append(p.Regs, Register{Role: role, Type: t})
		case "end":
			if len(fields) != 1 {
				return nil, assemblef(lineNo, "end takes no operands")
			}
			sawEnd = true
		default:
			op, ok := opcodeByName[fields[0]]
			if !ok {
				return nil, assemblef(lineNo, "unknown mnemonic %q", fields[0])
			}
			sawCode = true
			ins, err := parseInstruction(p, op, fields, lineNo, written)
			if err != nil {
				return nil, err
			}
			p.Code = append(p.Code, ins)
			written[ins.Dst] = true
		}
	}
	if !sawHeader {
		return nil, assemblef(1, "missing kernel header")
	}
	if !sawEnd {
		return nil, assemblef(0, "missing end")
	}
	for i, r := range p.Regs {
		if r.Role == RoleOut && !written[uint32(i)] {
			return nil, assemblef(0, "output register %%%d is never written", i)
		}
	}
	return p, nil
}

func parseInstruction(p *Program, op Opcode, fields []string, lineNo int, written map[uint32]bool) (Instruction, error) {
	var zero Instruction
	if op == OpConst {
		if len(fields) != 3 {
			return zero, assemblef(lineNo, "const takes a destination and a payload")
		}
		dst, err := resolveWrite(p, fields[1], lineNo)
		if err != nil {
			return zero, err
		}
		imm, derr := hex.DecodeString(fields[2])
		if derr != nil {
			return zero, assemblef(lineNo, "bad immediate payload: %v", derr)
		}
		if want := p.Regs[dst].Type.SizeBytes(); len(imm) != want {
			return zero, assemblef(lineNo, "immediate is %d bytes, register %%%d holds %d", len(imm), dst, want)
		}
		return Instruction{Opcode: op, Dst: dst, Src: []uint32{}, Imm: imm}, nil
	}
	want := op.srcCount()
	if len(fields) != 2+want {
		return zero, assemblef(lineNo, "%s takes %d operands", op, 1+want)
	}
	dst, err := resolveWrite(p, fields[1], lineNo)
	if err != nil {
		return zero, err
	}
	src := make([]uint32, want)
	for i := 0; i < want; i++ {
		s, ok := parseRegOperand(fields[2+i])
		if !ok || int(s) >= len(p.Regs) {
			return zero, assemblef(lineNo, "unknown register %q", fields[2+i])
		}
		if p.Regs[s].Role != RoleIn && !written[s] {
			return zero, assemblef(lineNo, "register %%%d read before it is written", s)
		}
		src[i] = s
	}
	dstT := p.Regs[dst].Type
	for _, s := range src {
		srcT := p.Regs[s].Type
		if srcT.DType != dstT.DType || !srcT.Shape.Equal(dstT.Shape) {
			return zero, assemblef(lineNo, "%s: operand %%%d is %s, destination is %s", op, s, srcT, dstT)
		}
	}
	if op != OpMov && dstT.DType == graph.Bool {
		return zero, assemblef(lineNo, "%s: bool registers have no arithmetic", op)
	}
	return Instruction{Opcode: op, Dst: dst, Src: src}, nil
}

func resolveWrite(p *Program, tok string, lineNo int) (uint32, error) {
	dst, ok := parseRegOperand(tok)
	if !ok || int(dst) >= len(p.Regs) {
		return 0, assemblef(lineNo, "unknown register %q", tok)
	}
	if p.Regs[dst].Role == RoleIn {
		return 0, assemblef(lineNo, "cannot write input register %%%d", dst)
	}
	return dst, nil
}

func parseRegOperand(tok string) (uint32, bool) {
	if len(tok) < 2 || tok[0] != '%' {
		return 0, false
	}
	n, err := strconv.ParseUint(tok[1:], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
