package rope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatLength(t *testing.T) {
	a := NewOwnedLeaf([]byte("hello "))
	b := NewOwnedLeaf([]byte("world"))
	c := Concat(a, b)

	assert.Equal(t, a.Len()+b.Len(), c.Len())
	assert.Equal(t, "hello world", string(c.Flatten()))
}

func TestSubstringFlattenMatchesSlice(t *testing.T) {
	full := "the quick brown fox"
	r := NewOwnedLeaf([]byte(full))
	sub := Substring(r, 4, 5)

	require.Equal(t, 5, sub.Len())
	assert.Equal(t, full[4:9], string(sub.Flatten()))
}

func TestSubstringOfConcatUsesLeafBase(t *testing.T) {
	a := NewOwnedLeaf([]byte("foo"))
	b := NewOwnedLeaf([]byte("bar"))
	c := Concat(a, b)

	sub := Substring(c, 2, 3)
	assert.Equal(t, KindLeaf, sub.base.kind)
	assert.Equal(t, "oba", string(sub.Flatten()))
}

func TestInternReusesLeaf(t *testing.T) {
	r1 := Intern("shared")
	r2 := Intern("shared")
	assert.True(t, r1 == r2, "interning the same content twice must return the same Rope")
	assert.True(t, r1.IsInterned())
}

func TestConcatDepth(t *testing.T) {
	a := NewOwnedLeaf([]byte("a"))
	b := NewOwnedLeaf([]byte("b"))
	cAB := Concat(a, b)
	cABC := Concat(cAB, NewOwnedLeaf([]byte("c")))

	assert.Equal(t, 1+max(a.Depth(), b.Depth()), cAB.Depth())
	assert.Equal(t, 1+max(cAB.Depth(), 0), cABC.Depth())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
