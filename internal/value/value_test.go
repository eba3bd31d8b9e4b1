package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmallIntRoundTrip(t *testing.T) {
	v := BoxI32(-42)
	assert.True(t, IsI32(v))
	assert.Equal(t, int32(-42), AsI32(v))

	u := BoxU32(42)
	assert.True(t, IsU32(v) == false) // v is I32, not U32
	assert.True(t, IsU32(u))
	assert.Equal(t, uint32(42), AsU32(u))
}

func TestWideIntBoxing(t *testing.T) {
	v := BoxI64(1 << 40)
	assert.True(t, IsI64(v))
	assert.Equal(t, int64(1<<40), AsI64(v))

	u := BoxU64(1 << 40)
	assert.True(t, IsU64(u))
	assert.Equal(t, uint64(1<<40), AsU64(u))
}

func TestBoolAndNil(t *testing.T) {
	assert.True(t, IsBool(BoxBool(true)))
	assert.True(t, AsBool(BoxBool(true)))
	assert.False(t, AsBool(BoxBool(false)))
	assert.True(t, IsNil(BoxNil()))
}

func TestF64PrintRule(t *testing.T) {
	assert.Equal(t, "nan", formatF64(math.NaN()))
	assert.Equal(t, "inf", formatF64(math.Inf(1)))
	assert.Equal(t, "-inf", formatF64(math.Inf(-1)))
	assert.Equal(t, "0", formatF64(0))
	assert.Equal(t, "1.5", formatF64(1.5))
}

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(BoxI32(3), BoxI32(3)))
	assert.False(t, Equal(BoxI32(3), BoxI32(4)))
	assert.False(t, Equal(BoxI32(3), BoxF64(3)))
}
