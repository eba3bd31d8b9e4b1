package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PrintValue produces the canonical text form described in spec §4.1.
func PrintValue(v Value) string {
	switch KindOf(v) {
	case KindNil:
		return "nil"
	case KindBool:
		if AsBool(v) {
			return "true"
		}
		return "false"
	case KindI32:
		return strconv.FormatInt(int64(AsI32(v)), 10)
	case KindU32:
		return strconv.FormatUint(uint64(AsU32(v)), 10)
	case KindI64:
		return strconv.FormatInt(AsI64(v), 10)
	case KindU64:
		return strconv.FormatUint(AsU64(v), 10)
	case KindF64:
		return formatF64(AsF64(v))
	case KindString:
		return string(AsString(v).EnsureChars())
	case KindBytes:
		return string(AsBytes(v).Data)
	case KindArray:
		arr := AsArray(v)
		parts := make([]string, len(arr.Elements))
		for i, e := range arr.Elements {
			parts[i] = PrintValue(e)
		}
		return strings.Join(parts, ", ")
	case KindEnum:
		e := AsEnum(v)
		if e.Payload == nil {
			return fmt.Sprintf("%s.%s", e.TypeName, e.VariantName)
		}
		parts := make([]string, len(e.Payload.Elements))
		for i, elem := range e.Payload.Elements {
			parts[i] = PrintValue(elem)
		}
		return fmt.Sprintf("%s.%s(%s)", e.TypeName, e.VariantName, strings.Join(parts, ", "))
	case KindError:
		e := AsError(v)
		return fmt.Sprintf("Error: %s", e.Message)
	case KindRangeIterator:
		r := AsRangeIterator(v)
		return fmt.Sprintf("range_iterator(current=%d, limit=%d, step=%d)", r.Current, r.Limit, r.Step)
	case KindArrayIterator:
		it := AsArrayIterator(v)
		return fmt.Sprintf("array_iterator(index=%d, len=%d)", it.Index, it.Array.Len())
	case KindFile:
		f := AsFile(v)
		state := "borrowed"
		if f.Closed() {
			state = "closed"
		} else if f.Owned {
			state = "owned"
		}
		return fmt.Sprintf("file(path=%q, handle=0x%X, %s)", f.Path, f.Handle, state)
	case KindFunction:
		return fmt.Sprintf("<function #%d>", AsFunctionIndex(v))
	case KindClosure:
		return fmt.Sprintf("<closure #%d>", AsClosure(v).FunctionIndex)
	case KindNativeFn:
		return fmt.Sprintf("<native fn %s>", AsNativeFn(v).Name)
	}
	return "<unknown>"
}

// formatF64 implements the spec §4.1 f64 print rule:
//
//	NaN -> "nan", +-Inf -> "inf"/"-inf", 0 -> "0"; otherwise format with
//	"%.17f" unless |x| < 1e-4 in which case use "%.17g"; strip trailing
//	zeros and a dangling decimal point; re-append any exponent part.
func formatF64(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if f == 0 {
		return "0"
	}

	verb := byte('f')
	if math.Abs(f) < 1e-4 {
		verb = 'g'
	}
	raw := strconv.FormatFloat(f, verb, 17, 64)

	mantissa, exponent := splitExponent(raw)
	if strings.Contains(mantissa, ".") {
		mantissa = strings.TrimRight(mantissa, "0")
		mantissa = strings.TrimSuffix(mantissa, ".")
	}
	return mantissa + exponent
}

func splitExponent(s string) (mantissa, exponent string) {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
