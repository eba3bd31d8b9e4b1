package code

import (
	"encoding/binary"
	"fmt"

	"orus/internal/value"
)

// JumpPatch records a reserved offset field awaiting a target (spec §4.3).
type JumpPatch struct {
	Op         OpCode
	FieldStart int // byte offset of the first byte of the offset field
	Width      int // 1 or 2
	Resolved   bool
}

// Buffer is the append-only bytecode stream: code bytes, parallel
// line/column maps (one entry per code byte, spec §3 BytecodeBuffer
// invariant), the constant pool, and the jump-patch registry. Grounded on
// the teacher's internal/bytecode.Chunk, which appends one DebugInfo entry
// per WriteByte call — the same per-byte parallel-array shape.
type Buffer struct {
	Code      []byte
	Lines     []int
	Columns   []int
	Constants []value.Value
	Patches   []JumpPatch

	line, column int // current emission position, set by SetPosition
}

func New() *Buffer {
	return &Buffer{}
}

// SetPosition records the source location subsequent emits should be
// stamped with.
func (b *Buffer) SetPosition(line, column int) {
	b.line, b.column = line, column
}

func (b *Buffer) Count() int { return len(b.Code) }

// EmitByte appends a single byte, stamping it with the current line/column.
func (b *Buffer) EmitByte(x byte) int {
	b.Code = append(b.Code, x)
	b.Lines = append(b.Lines, b.line)
	b.Columns = append(b.Columns, b.column)
	return len(b.Code) - 1
}

// EmitShort appends a big-endian uint16.
func (b *Buffer) EmitShort(x uint16) int {
	start := b.EmitByte(byte(x >> 8))
	b.EmitByte(byte(x))
	return start
}

// EmitReg appends a register operand (currently a uint16 index).
func (b *Buffer) EmitReg(r int) int { return b.EmitShort(uint16(r)) }

// EmitInstruction writes an opcode byte followed by fixed-width register/
// constant operands (NOT jump offsets, which go through
// AllocateJumpPlaceholder/PatchJump). ops are register or constant indices.
func (b *Buffer) EmitInstruction(op OpCode, ops ...int) int {
	start := b.EmitByte(byte(op))
	for _, o := range ops {
		b.EmitReg(o)
	}
	return start
}

// EmitImm32 appends a 4-byte signed immediate (used by *_IMM opcodes).
func (b *Buffer) EmitImm32(v int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	for _, x := range buf {
		b.EmitByte(x)
	}
}

// AddConstant appends v to the constant pool and returns its index.
func (b *Buffer) AddConstant(v value.Value) int {
	b.Constants = append(b.Constants, v)
	return len(b.Constants) - 1
}

// AllocateJumpPlaceholder emits the opcode byte and any operands preceding
// the offset field, reserves the offset field (zero-filled), and returns an
// opaque patch index for PatchJump. The offset width is determined by op.
func (b *Buffer) AllocateJumpPlaceholder(op OpCode, leadingOps ...int) int {
	b.EmitByte(byte(op))
	for _, o := range leadingOps {
		b.EmitReg(o)
	}
	width := op.JumpOffsetWidth()
	fieldStart := len(b.Code)
	for i := 0; i < width; i++ {
		b.EmitByte(0)
	}
	b.Patches = append(b.Patches, JumpPatch{Op: op, FieldStart: fieldStart, Width: width})
	return len(b.Patches) - 1
}

// AllocateTryBegin emits OP_TRY_BEGIN's catch-register sentinel byte (0xFF
// means "no bound variable", per spec §4.8) followed by a reserved 2-byte
// offset field, and registers the patch.
func (b *Buffer) AllocateTryBegin(catchReg byte) int {
	b.EmitByte(byte(OP_TRY_BEGIN))
	b.EmitByte(catchReg)
	width := OP_TRY_BEGIN.JumpOffsetWidth()
	fieldStart := len(b.Code)
	for i := 0; i < width; i++ {
		b.EmitByte(0)
	}
	b.Patches = append(b.Patches, JumpPatch{Op: OP_TRY_BEGIN, FieldStart: fieldStart, Width: width})
	return len(b.Patches) - 1
}

// PatchJump writes target (either an absolute offset for forward jumps or
// used to compute a relative distance for back-jumps) into the reserved
// field of patch index idx. target is the absolute byte offset to land on.
// The distance is measured from the byte immediately after the offset
// field, per spec §4.8's OP_INC_CMP_JMP convention, applied uniformly.
func (b *Buffer) PatchJump(idx int, target int) error {
	p := &b.Patches[idx]
	afterField := p.FieldStart + p.Width
	var distance int
	if p.Op.IsBackJump() {
		distance = afterField - target
	} else {
		distance = target - afterField
	}
	if err := writeOffset(b.Code, p.FieldStart, p.Width, distance, p.Op.IsBackJump()); err != nil {
		return err
	}
	p.Resolved = true
	return nil
}

func writeOffset(code []byte, at, width, distance int, unsigned bool) error {
	switch width {
	case 1:
		if unsigned {
			if distance < 0 || distance > 0xFF {
				return fmt.Errorf("code: back-jump distance %d exceeds 1-byte field", distance)
			}
			code[at] = byte(distance)
		} else {
			if distance < -128 || distance > 127 {
				return fmt.Errorf("code: jump distance %d exceeds signed 1-byte field", distance)
			}
			code[at] = byte(int8(distance))
		}
	case 2:
		if unsigned {
			if distance < 0 || distance > 0xFFFF {
				return fmt.Errorf("code: back-jump distance %d exceeds 2-byte field", distance)
			}
			binary.BigEndian.PutUint16(code[at:], uint16(distance))
		} else {
			if distance < -32768 || distance > 32767 {
				return fmt.Errorf("code: jump distance %d exceeds signed 2-byte field", distance)
			}
			binary.BigEndian.PutUint16(code[at:], uint16(int16(distance)))
		}
	default:
		return fmt.Errorf("code: unsupported offset width %d", width)
	}
	return nil
}

// AllUnresolved returns patch indices that PatchJump has not yet resolved;
// spec §8 requires this list to be empty at OP_HALT.
func (b *Buffer) AllUnresolved() []int {
	var out []int
	for i, p := range b.Patches {
		if !p.Resolved {
			out = append(out, i)
		}
	}
	return out
}

// ReadReg reads a register/constant-index operand at byte offset pos.
func ReadReg(code []byte, pos int) int {
	return int(binary.BigEndian.Uint16(code[pos:]))
}

// ReadOffset reads a jump offset of the given width, signed unless unsigned
// is requested (back-jumps are unsigned magnitudes).
func ReadOffset(code []byte, pos, width int, unsigned bool) int {
	switch width {
	case 1:
		if unsigned {
			return int(code[pos])
		}
		return int(int8(code[pos]))
	case 2:
		if unsigned {
			return int(binary.BigEndian.Uint16(code[pos:]))
		}
		return int(int16(binary.BigEndian.Uint16(code[pos:])))
	}
	return 0
}

// InstructionLength returns the total byte length (including the opcode
// byte) of the instruction starting at pos, using the per-opcode length
// table — the decoder spec §4.3/§8 requires for disassembly and for the
// compile-then-disassemble-then-re-emit round-trip property.
func InstructionLength(code []byte, pos int) int {
	op := OpCode(code[pos])
	shape := opTable[op]
	if !shape.variable {
		return 1 + shape.fixedBytes
	}
	// OP_CLOSURE_R: dst(2) funcReg(2) upvalCount(2), then upvalCount * (isLocal u8, idx u16)
	count := ReadReg(code, pos+1+4)
	return 1 + shape.fixedBytes + count*3
}
