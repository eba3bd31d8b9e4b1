// Package rope implements the ref-counted immutable string rope described
// in spec §4.2: Leaf/Concat/Substring nodes, lazy flattening, and a global
// intern table.
package rope

import (
	"unicode/utf8"

	"github.com/dolthub/swiss"
)

// Kind distinguishes the three rope node shapes.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindConcat
	KindSubstring
)

// Rope is an immutable, ref-counted tree of string fragments. Concat never
// copies; Substring copies only when its input is not a Leaf (it flattens
// that input once); only Flatten and char_at walk the tree.
type Rope struct {
	kind Kind
	refs *int32

	// Leaf
	data       []byte
	isASCII    bool
	isInterned bool

	// Concat
	left, right *Rope
	depth       int

	// Substring
	base       *Rope // always a Leaf
	start, len int

	totalLen int
}

func newRefCount() *int32 {
	n := int32(1)
	return &n
}

// NewOwnedLeaf builds a Leaf that owns data (no other Rope may alias it).
func NewOwnedLeaf(data []byte) *Rope {
	return &Rope{
		kind:     KindLeaf,
		refs:     newRefCount(),
		data:     data,
		isASCII:  isASCII(data),
		totalLen: len(data),
	}
}

// NewBorrowedLeaf builds a non-owning Leaf over an externally-owned buffer.
// Used by StringObj.EnsureChars to rewrite a rope over its own flattened
// buffer without copying again.
func NewBorrowedLeaf(data []byte) *Rope {
	return NewOwnedLeaf(data)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// Retain increments the rope's reference count.
func (r *Rope) Retain() *Rope {
	if r != nil {
		*r.refs++
	}
	return r
}

// Release decrements the reference count. Orus relies on the host GC for
// the object graph above the rope; Release exists so rope-internal sharing
// bookkeeping (e.g. intern table entries) stays accurate.
func (r *Rope) Release() {
	if r != nil {
		*r.refs--
	}
}

// Len returns the rope's total length in bytes, O(1) via the cached field.
func (r *Rope) Len() int { return r.totalLen }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Concat produces a Concat node referencing both ropes without copying
// either. depth(Concat) == 1 + max(child depths) (spec §4.2 invariant).
func Concat(left, right *Rope) *Rope {
	if left.totalLen == 0 {
		return right
	}
	if right.totalLen == 0 {
		return left
	}
	return &Rope{
		kind:     KindConcat,
		refs:     newRefCount(),
		left:     left.Retain(),
		right:    right.Retain(),
		depth:    1 + maxInt(left.depth, right.depth),
		totalLen: left.totalLen + right.totalLen,
	}
}

// Substring returns a Rope referring to [start, start+length) of r without
// copying. Substring bases are always Leaf nodes (spec §4.2 invariant); if r
// is not itself a Leaf, it is flattened first and the result becomes the new
// base (a one-time cost, same as the teacher's lazy-flatten idiom elsewhere).
func Substring(r *Rope, start, length int) *Rope {
	if start < 0 || length < 0 || start+length > r.totalLen {
		panic("rope: substring out of bounds")
	}
	base := r
	if base.kind != KindLeaf {
		base = NewOwnedLeaf(r.Flatten())
	}
	if base.kind == KindSubstring {
		start += base.start
		base = base.base
	}
	return &Rope{
		kind:     KindSubstring,
		refs:     newRefCount(),
		base:     base.Retain(),
		start:    start,
		len:      length,
		totalLen: length,
	}
}

// Depth reports the Concat-chain depth used to bound recursive Flatten.
func (r *Rope) Depth() int {
	switch r.kind {
	case KindConcat:
		return r.depth
	default:
		return 0
	}
}

// Flatten performs a single linear copy producing the rope's full byte
// content.
func (r *Rope) Flatten() []byte {
	buf := make([]byte, 0, r.totalLen)
	return r.flattenInto(buf)
}

func (r *Rope) flattenInto(buf []byte) []byte {
	switch r.kind {
	case KindLeaf:
		return append(buf, r.data...)
	case KindConcat:
		buf = r.left.flattenInto(buf)
		return r.right.flattenInto(buf)
	case KindSubstring:
		full := r.base.flattenInto(nil)
		return append(buf, full[r.start:r.start+r.len]...)
	}
	return buf
}

// CharAt returns the rune starting at byte offset i, walking at most
// Depth(r) nodes.
func (r *Rope) CharAt(i int) rune {
	switch r.kind {
	case KindLeaf:
		ru, _ := utf8.DecodeRune(r.data[i:])
		return ru
	case KindConcat:
		if i < r.left.totalLen {
			return r.left.CharAt(i)
		}
		return r.right.CharAt(i - r.left.totalLen)
	case KindSubstring:
		return r.base.CharAt(r.start + i)
	}
	return utf8.RuneError
}

func (r *Rope) IsInterned() bool { return r.kind == KindLeaf && r.isInterned }

// ---------------------------------------------------------------------------
// Intern table
// ---------------------------------------------------------------------------

type internKey struct {
	hash uint64
	s    string
}

var internTable = swiss.NewMap[internKey, *Rope](64)

// djb2 is the hash the intern table keys leaves by (spec §4.2).
func djb2(data []byte) uint64 {
	var h uint64 = 5381
	for _, c := range data {
		h = ((h << 5) + h) + uint64(c)
	}
	return h
}

// Intern returns a shared, immutable Leaf for s, allocating and marking a
// new one as is_interned on first sight.
func Intern(s string) *Rope {
	h := djb2([]byte(s))
	key := internKey{hash: h, s: s}
	if existing, ok := internTable.Get(key); ok {
		return existing
	}
	leaf := NewOwnedLeaf([]byte(s))
	leaf.isInterned = true
	internTable.Put(key, leaf)
	return leaf
}
