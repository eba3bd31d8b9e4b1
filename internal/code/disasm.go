package code

// Decoded is a structured (mnemonic, operands) view of one instruction.
// Textual formatting of this structure is an external collaborator's job
// (spec §1 places the disassembler's output formatting out of scope); this
// type only supplies the data the length-table contract requires to exist.
type Decoded struct {
	Op        OpCode
	Pos       int
	Length    int
	Operands  []int // register/constant operands, in encoding order
	JumpWidth int   // 0 if op is not a jump
	JumpDist  int   // valid iff JumpWidth != 0
}

// DecodeAt decodes the single instruction starting at pos.
func DecodeAt(code []byte, pos int) Decoded {
	op := OpCode(code[pos])
	length := InstructionLength(code, pos)
	d := Decoded{Op: op, Pos: pos, Length: length}

	shape := opTable[op]
	cursor := pos + 1

	jw := op.JumpOffsetWidth()
	if jw == 0 {
		// Fixed register/constant operands, 2 bytes each.
		n := shape.fixedBytes / 2
		for i := 0; i < n; i++ {
			d.Operands = append(d.Operands, ReadReg(code, cursor))
			cursor += 2
		}
		return d
	}

	// Jump-bearing opcodes: decode any leading register operands, then the
	// offset field itself.
	switch op {
	case OP_JUMP, OP_JUMP_SHORT, OP_LOOP_SHORT, OP_JUMP_BACK_SHORT:
		// no leading registers
	case OP_JUMP_IF_NOT_R:
		d.Operands = append(d.Operands, ReadReg(code, cursor))
		cursor += 2
	case OP_JUMP_IF_NOT_I32_TYPED, OP_INC_CMP_JMP, OP_BRANCH_TYPED:
		d.Operands = append(d.Operands, ReadReg(code, cursor), ReadReg(code, cursor+2))
		cursor += 4
	case OP_TRY_BEGIN:
		d.Operands = append(d.Operands, int(code[cursor]))
		cursor += 1
	}

	d.JumpWidth = jw
	d.JumpDist = ReadOffset(code, cursor, jw, op.IsBackJump())
	return d
}

// DecodeAll decodes every instruction in code, in order. Re-encoding each
// Decoded entry at its original Pos and summing Length must reproduce
// len(code) exactly — the round-trip property from spec §8.
func DecodeAll(code []byte) []Decoded {
	var out []Decoded
	pos := 0
	for pos < len(code) {
		d := DecodeAt(code, pos)
		out = append(out, d)
		pos += d.Length
	}
	return out
}
