package dispatch

import (
	"math"

	"orus/internal/rope"
	"orus/internal/value"
)

// numKind ranks the widening ladder i32 < i64 < u32 < u64 < f64. A mixed-kind
// op whose wider operand is u32/u64 is computed at the i64 tier (widestOf),
// and any op with an f64 operand is computed in f64. An i32 result that
// overflows widens to i64; an i64 result that overflows is a value error.
type numKind uint8

const (
	numNone numKind = iota
	numI32
	numI64
	numU32
	numU64
	numF64
)

func kindOf(v value.Value) numKind {
	switch {
	case value.IsI32(v):
		return numI32
	case value.IsU32(v):
		return numU32
	case value.IsI64(v):
		return numI64
	case value.IsU64(v):
		return numU64
	case value.IsF64(v):
		return numF64
	default:
		return numNone
	}
}

func asF64(v value.Value, k numKind) float64 {
	switch k {
	case numI32:
		return float64(value.AsI32(v))
	case numU32:
		return float64(value.AsU32(v))
	case numI64:
		return float64(value.AsI64(v))
	case numU64:
		return float64(value.AsU64(v))
	case numF64:
		return value.AsF64(v)
	default:
		return 0
	}
}

func asI64(v value.Value, k numKind) int64 {
	switch k {
	case numI32:
		return int64(value.AsI32(v))
	case numU32:
		return int64(value.AsU32(v))
	case numI64:
		return value.AsI64(v)
	case numU64:
		return int64(value.AsU64(v))
	default:
		return 0
	}
}

// widestOf picks the "result kind" a binary op widens to: the operand kind
// with the higher ladder rank, except that a mixed-kind op whose wider
// operand is u32/u64 is computed at the i64 tier.
func widestOf(a, b numKind) numKind {
	w := a
	if b > a {
		w = b
	}
	if a != b && (w == numU32 || w == numU64) {
		return numI64
	}
	return w
}

func boxByKind(k numKind, f float64, i int64) value.Value {
	switch k {
	case numI32:
		return value.BoxI32(int32(i))
	case numU32:
		return value.BoxU32(uint32(i))
	case numI64:
		return value.BoxI64(i)
	case numU64:
		return value.BoxU64(uint64(i))
	default:
		return value.BoxF64(f)
	}
}

// addValues implements spec §4.8's "+": string concatenation if either
// operand is a string, otherwise numeric addition: an i32 result that
// overflows widens to i64, and an i64 result that overflows is a value error.
func addValues(a, b value.Value) (value.Value, error) {
	if value.IsString(a) || value.IsString(b) {
		return concatValues(a, b), nil
	}
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot add %s and %s", value.KindOf(a), value.KindOf(b))
	}
	result := widestOf(ka, kb)
	if result == numF64 {
		return value.BoxF64(asF64(a, ka) + asF64(b, kb)), nil
	}
	ia, ib := asI64(a, ka), asI64(b, kb)
	sum := ia + ib
	if result == numI32 && (sum > math.MaxInt32 || sum < math.MinInt32) {
		return value.BoxI64(sum), nil
	}
	if result != numI32 && ((ia > 0 && ib > 0 && sum < 0) || (ia < 0 && ib < 0 && sum > 0)) {
		return value.BoxNil(), valueErrorf("integer overflow")
	}
	return boxByKind(result, 0, sum), nil
}

func subValues(a, b value.Value) (value.Value, error) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot subtract %s and %s", value.KindOf(a), value.KindOf(b))
	}
	result := widestOf(ka, kb)
	if result == numF64 {
		return value.BoxF64(asF64(a, ka) - asF64(b, kb)), nil
	}
	ia, ib := asI64(a, ka), asI64(b, kb)
	diff := ia - ib
	if result == numI32 && (diff > math.MaxInt32 || diff < math.MinInt32) {
		return value.BoxI64(diff), nil
	}
	if result != numI32 && ((ia >= 0 && ib < 0 && diff < 0) || (ia < 0 && ib > 0 && diff >= 0)) {
		return value.BoxNil(), valueErrorf("integer overflow")
	}
	return boxByKind(result, 0, diff), nil
}

func mulValues(a, b value.Value) (value.Value, error) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot multiply %s and %s", value.KindOf(a), value.KindOf(b))
	}
	result := widestOf(ka, kb)
	if result == numF64 {
		return value.BoxF64(asF64(a, ka) * asF64(b, kb)), nil
	}
	ia, ib := asI64(a, ka), asI64(b, kb)
	product := ia * ib
	overflowsI32 := product > math.MaxInt32 || product < math.MinInt32
	if ib != 0 && product/ib != ia {
		if result == numI32 {
			// int64 multiply itself overflowed; fall back to float.
			return value.BoxF64(asF64(a, ka) * asF64(b, kb)), nil
		}
		return value.BoxNil(), valueErrorf("integer overflow")
	}
	if result == numI32 && overflowsI32 {
		return value.BoxI64(product), nil
	}
	return boxByKind(result, 0, product), nil
}

func divValues(a, b value.Value) (value.Value, error) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot divide %s and %s", value.KindOf(a), value.KindOf(b))
	}
	result := widestOf(ka, kb)
	if result == numF64 {
		return value.BoxF64(asF64(a, ka) / asF64(b, kb)), nil
	}
	ib := asI64(b, kb)
	if ib == 0 {
		return value.BoxNil(), valueErrorf("division by zero")
	}
	ia := asI64(a, ka)
	quotient := ia / ib
	if result == numI32 && (quotient > math.MaxInt32 || quotient < math.MinInt32) {
		return value.BoxI64(quotient), nil
	}
	return boxByKind(result, 0, quotient), nil
}

func modValues(a, b value.Value) (value.Value, error) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot modulo %s and %s", value.KindOf(a), value.KindOf(b))
	}
	result := widestOf(ka, kb)
	if result == numF64 {
		return value.BoxF64(math.Mod(asF64(a, ka), asF64(b, kb))), nil
	}
	ib := asI64(b, kb)
	if ib == 0 {
		return value.BoxNil(), valueErrorf("modulo by zero")
	}
	ia := asI64(a, ka)
	return boxByKind(result, 0, ia%ib), nil
}

func negValue(a value.Value) (value.Value, error) {
	switch kindOf(a) {
	case numI32:
		return value.BoxI32(-value.AsI32(a)), nil
	case numU32:
		return value.BoxI64(-int64(value.AsU32(a))), nil
	case numI64:
		return value.BoxI64(-value.AsI64(a)), nil
	case numU64:
		return value.BoxI64(-int64(value.AsU64(a))), nil
	case numF64:
		return value.BoxF64(-value.AsF64(a)), nil
	default:
		return value.BoxNil(), typeErrorf("cannot negate %s", value.KindOf(a))
	}
}

// compareValues implements <,<=,>,>=,==,!= across numeric, bool, and string
// operands, returning a bool Value.
func compareValues(op string, a, b value.Value) (value.Value, error) {
	if op == "==" {
		return value.BoxBool(value.Equal(a, b)), nil
	}
	if op == "!=" {
		return value.BoxBool(!value.Equal(a, b)), nil
	}
	if value.IsString(a) && value.IsString(b) {
		sa, sb := string(value.AsString(a).EnsureChars()), string(value.AsString(b).EnsureChars())
		return value.BoxBool(compareStrings(op, sa, sb)), nil
	}
	ka, kb := kindOf(a), kindOf(b)
	if ka == numNone || kb == numNone {
		return value.BoxNil(), typeErrorf("cannot compare %s and %s", value.KindOf(a), value.KindOf(b))
	}
	fa, fb := asF64(a, ka), asF64(b, kb)
	switch op {
	case "<":
		return value.BoxBool(fa < fb), nil
	case "<=":
		return value.BoxBool(fa <= fb), nil
	case ">":
		return value.BoxBool(fa > fb), nil
	case ">=":
		return value.BoxBool(fa >= fb), nil
	default:
		return value.BoxNil(), typeErrorf("unknown comparison operator %q", op)
	}
}

func compareStrings(op, a, b string) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	default:
		return false
	}
}

func concatValues(a, b value.Value) value.Value {
	ra := stringRope(a)
	rb := stringRope(b)
	return value.BoxString(value.NewStringFromRope(rope.Concat(ra, rb)))
}

func stringRope(v value.Value) *rope.Rope {
	if value.IsString(v) {
		return value.AsString(v).Rope
	}
	return rope.NewOwnedLeaf([]byte(value.PrintValue(v)))
}
