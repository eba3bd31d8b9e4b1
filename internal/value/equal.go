package value

import "bytes"

// Equal implements values_equal from spec §4.1: structural for scalars,
// enums, bytes, and strings; identity-based for mutable containers and
// iterators.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch KindOf(a) {
	case KindNil:
		return true
	case KindBool:
		return AsBool(a) == AsBool(b)
	case KindI32:
		return AsI32(a) == AsI32(b)
	case KindU32:
		return AsU32(a) == AsU32(b)
	case KindI64:
		return AsI64(a) == AsI64(b)
	case KindU64:
		return AsU64(a) == AsU64(b)
	case KindF64:
		return AsF64(a) == AsF64(b)
	case KindString:
		return bytes.Equal(AsString(a).EnsureChars(), AsString(b).EnsureChars())
	case KindBytes:
		return bytes.Equal(AsBytes(a).Data, AsBytes(b).Data)
	case KindEnum:
		ea, eb := AsEnum(a), AsEnum(b)
		if ea.TypeName != eb.TypeName || ea.VariantIndex != eb.VariantIndex {
			return false
		}
		if (ea.Payload == nil) != (eb.Payload == nil) {
			return false
		}
		if ea.Payload == nil {
			return true
		}
		if len(ea.Payload.Elements) != len(eb.Payload.Elements) {
			return false
		}
		for i := range ea.Payload.Elements {
			if !Equal(ea.Payload.Elements[i], eb.Payload.Elements[i]) {
				return false
			}
		}
		return true
	case KindError:
		ea, eb := AsError(a), AsError(b)
		return ea.Kind == eb.Kind && ea.Message == eb.Message
	case KindArray, KindRangeIterator, KindArrayIterator, KindFile, KindClosure:
		return identity(a) == identity(b)
	case KindFunction:
		return AsFunctionIndex(a) == AsFunctionIndex(b)
	}
	return false
}

func identity(v Value) uintptr {
	return uintptr(v & ptrMask)
}
