package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode.
// Constant operands are shown with their pooled value when pool is set.
func Disassemble(chunk *Chunk, name string, pool *ConstPool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, pool, offset)
	}

	return sb.String()
}

// DisassembleProgram renders the init chunk followed by every function.
func DisassembleProgram(p *Program, pool *ConstPool) string {
	var sb strings.Builder
	sb.WriteString(Disassemble(p.Init, p.Module, pool))
	for _, f := range p.Funcs {
		sb.WriteString(Disassemble(f.Chunk, fmt.Sprintf("%s/%d", f.Name, f.Arity), pool))
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, pool *ConstPool, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	// Print line number
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])

	switch op {
	case OP_CONST, OP_GET_ATTR, OP_SET_ATTR, OP_GET_EXTERN, OP_SET_EXTERN:
		return constantInstruction(sb, op.String(), chunk, pool, offset)

	case OP_GET_GLOBAL, OP_SET_GLOBAL:
		return shortInstruction(sb, op.String(), chunk, offset)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_MAKE_LIST, OP_MAKE_TUPLE, OP_MAKE_MAP:
		return byteInstruction(sb, op.String(), chunk, offset)

	case OP_JUMP, OP_JUMP_IF_FALSE:
		return jumpInstruction(sb, op.String(), 1, chunk, offset)
	case OP_LOOP:
		return jumpInstruction(sb, op.String(), -1, chunk, offset)

	case OP_CALL:
		return callInstruction(sb, chunk, pool, offset)

	case OP_NIL, OP_TRUE, OP_FALSE, OP_POP,
		OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_NEG,
		OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE,
		OP_NOT, OP_AND, OP_OR,
		OP_RETURN, OP_INDEX, OP_HALT:
		return simpleInstruction(sb, op.String(), offset)
	}

	sb.WriteString(fmt.Sprintf("Unknown opcode %d\n", op))
	return offset + 1
}

func simpleInstruction(sb *strings.Builder, name string, offset int) int {
	sb.WriteString(fmt.Sprintf("%s\n", name))
	return offset + 1
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, pool *ConstPool, offset int) int {
	id := chunk.ReadU16(offset + 1)
	sb.WriteString(fmt.Sprintf("%-16s %4d %s\n", name, id, poolValue(pool, id)))
	return offset + 3
}

func poolValue(pool *ConstPool, id int) string {
	if pool == nil {
		return ""
	}
	v, err := pool.Get(uint32(id))
	if err != nil {
		return "(invalid)"
	}
	return "'" + v.String() + "'"
}

func shortInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, chunk.ReadU16(offset+1)))
	return offset + 3
}

func byteInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, slot))
	return offset + 2
}

func jumpInstruction(sb *strings.Builder, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*jump
	sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, jump, target))
	return offset + 3
}

func callInstruction(sb *strings.Builder, chunk *Chunk, pool *ConstPool, offset int) int {
	id := chunk.ReadU16(offset + 1)
	argc := chunk.Code[offset+3]
	sb.WriteString(fmt.Sprintf("%-16s %4d %s argc=%d\n", "CALL", id, poolValue(pool, id), argc))
	return offset + 4
}
