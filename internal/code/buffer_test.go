package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orus/internal/value"
)

func TestEmitInstructionAndDecodeRoundTrip(t *testing.T) {
	b := New()
	b.EmitInstruction(OP_MOVE, 1, 2)
	b.EmitInstruction(OP_ADD_R, 0, 1, 2)
	b.EmitInstruction(OP_RETURN_VOID)

	decoded := DecodeAll(b.Code)
	require.Len(t, decoded, 3)
	assert.Equal(t, OP_MOVE, decoded[0].Op)
	assert.Equal(t, []int{1, 2}, decoded[0].Operands)
	assert.Equal(t, OP_ADD_R, decoded[1].Op)
	assert.Equal(t, []int{0, 1, 2}, decoded[1].Operands)

	total := 0
	for _, d := range decoded {
		total += d.Length
	}
	assert.Equal(t, len(b.Code), total)
}

func TestJumpPatchForward(t *testing.T) {
	b := New()
	idx := b.AllocateJumpPlaceholder(OP_JUMP_IF_NOT_R, 5)
	b.EmitInstruction(OP_PRINT_R, 5)
	target := b.Count()
	require.NoError(t, b.PatchJump(idx, target))
	assert.Empty(t, b.AllUnresolved())

	d := DecodeAt(b.Code, 0)
	assert.Equal(t, target-(d.Pos+d.Length), d.JumpDist)
}

// distance = padding + 1 (opcode byte) + width (offset field), target = 0.
func fillPadding(b *Buffer, padding int) {
	for i := 0; i < padding; i++ {
		b.EmitByte(0xAA)
	}
}

func TestBackJumpBoundary255And256(t *testing.T) {
	// Exactly 255: fits OP_LOOP_SHORT's 1-byte unsigned field.
	b := New()
	fillPadding(b, 253)
	idx := b.AllocateJumpPlaceholder(OP_LOOP_SHORT)
	require.NoError(t, b.PatchJump(idx, 0))

	// Exactly 256: overflows OP_LOOP_SHORT's 1-byte field.
	b2 := New()
	fillPadding(b2, 254)
	idx2 := b2.AllocateJumpPlaceholder(OP_LOOP_SHORT)
	assert.Error(t, b2.PatchJump(idx2, 0))

	// Same 256 distance succeeds through OP_JUMP's 2-byte field.
	b3 := New()
	fillPadding(b3, 253)
	idx3 := b3.AllocateJumpPlaceholder(OP_JUMP)
	require.NoError(t, b3.PatchJump(idx3, 0))
}

func TestJumpOverflowsFieldWidth(t *testing.T) {
	b := New()
	idx := b.AllocateJumpPlaceholder(OP_LOOP_SHORT)
	// Target far beyond what a 1-byte back-jump can encode.
	err := b.PatchJump(idx, -1000)
	assert.Error(t, err)
}

func TestConstantPool(t *testing.T) {
	b := New()
	i := b.AddConstant(value.BoxI32(42))
	assert.Equal(t, 0, i)
	assert.True(t, value.IsI32(b.Constants[i]))
}
