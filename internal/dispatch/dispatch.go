package dispatch

import (
	"strconv"

	"orus/internal/code"
	"orus/internal/value"
)

// Run executes buf's instruction stream starting at pc, against m's register
// file, until OP_HALT, an OP_RETURN_R/OP_RETURN_VOID, or an uncaught raise.
// It owns exactly one function activation's try-frame stack: OP_TRY_BEGIN/
// OP_TRY_END push/pop tryFrame entries local to this call (spec §4.8 — a
// try/catch statement is always lexically contained in one function body).
// A raise that empties this frame's try stack returns as *RaiseError so the
// caller (through CallFunc) can check its own try stack before re-raising
// further up the Go call stack — the cross-function-boundary leg of
// unwinding, since OP_TRY_BEGIN/OP_TRY_END alone cannot reach past a call.
//
// Grounded on vmregister/vm.go's run(): code/consts cached as locals before
// the loop, a flat switch over op with arithmetic first, explicit tiered
// fallbacks for mixed operand kinds. The 32-bit packed-instruction decode
// (instr.A()/B()/C()) is replaced by code.Buffer's byte-stream layout, read
// directly here rather than through the disassembler's Decoded view (spec
// keeps the disassembler's structural output a separate concern from
// dispatch's own fetch-decode-execute).
func Run(m *Machine, buf *code.Buffer, pc int) (value.Value, error) {
	codeBytes := buf.Code
	consts := buf.Constants
	var tryStack []tryFrame

	for pc < len(codeBytes) {
		op := code.OpCode(codeBytes[pc])
		pc++

		switch op {

		// -----------------------------------------------------------------
		// Loads / moves / globals
		// -----------------------------------------------------------------
		case code.OP_LOAD_CONST, code.OP_LOAD_I32_CONST, code.OP_LOAD_I64_CONST,
			code.OP_LOAD_U32_CONST, code.OP_LOAD_U64_CONST, code.OP_LOAD_F64_CONST:
			dst := code.ReadReg(codeBytes, pc)
			idx := code.ReadReg(codeBytes, pc+2)
			pc += 4
			v := consts[idx]
			m.Set(dst, v)
			warmBank(m, dst, v)

		case code.OP_LOAD_NIL:
			dst := code.ReadReg(codeBytes, pc)
			pc += 2
			m.Set(dst, value.BoxNil())

		case code.OP_LOAD_BOOL:
			dst := code.ReadReg(codeBytes, pc)
			b := codeBytes[pc+2] != 0
			pc += 3
			m.Set(dst, value.BoxBool(b))
			m.RegFile.SetBool(dst, b)

		case code.OP_MOVE:
			dst := code.ReadReg(codeBytes, pc)
			src := code.ReadReg(codeBytes, pc+2)
			pc += 4
			m.Set(dst, m.Get(src))

		case code.OP_GET_GLOBAL:
			dst := code.ReadReg(codeBytes, pc)
			slot := code.ReadReg(codeBytes, pc+2)
			pc += 4
			m.Set(dst, m.Get(slot))

		case code.OP_SET_GLOBAL:
			slot := code.ReadReg(codeBytes, pc)
			src := code.ReadReg(codeBytes, pc+2)
			pc += 4
			m.Set(slot, m.Get(src))

		// -----------------------------------------------------------------
		// Generic boxed arithmetic
		// -----------------------------------------------------------------
		case code.OP_ADD_R, code.OP_SUB_R, code.OP_MUL_R, code.OP_DIV_R, code.OP_MOD_R:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			res, err := evalArith(op, m.Get(a), m.Get(b))
			if handled, next := handleErr(m, &tryStack, err, pc); !handled && err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			} else if err != nil {
				pc = next
				continue
			}
			m.Set(dst, res)

		case code.OP_NEG_R:
			dst, src := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			res, err := negValue(m.Get(src))
			if handled, next := handleErr(m, &tryStack, err, pc); !handled && err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			} else if err != nil {
				pc = next
				continue
			}
			m.Set(dst, res)

		// -----------------------------------------------------------------
		// Typed-register fast paths
		// -----------------------------------------------------------------
		case code.OP_ADD_I32_TYPED:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			sum := m.RegFile.GetI32(a) + m.RegFile.GetI32(b)
			m.RegFile.SetI32(dst, sum)
			m.Set(dst, value.BoxI32(sum))

		case code.OP_SUB_I32_TYPED:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			diff := m.RegFile.GetI32(a) - m.RegFile.GetI32(b)
			m.RegFile.SetI32(dst, diff)
			m.Set(dst, value.BoxI32(diff))

		case code.OP_MUL_I32_TYPED:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			prod := m.RegFile.GetI32(a) * m.RegFile.GetI32(b)
			m.RegFile.SetI32(dst, prod)
			m.Set(dst, value.BoxI32(prod))

		case code.OP_ADD_I32_IMM, code.OP_SUB_I32_IMM, code.OP_MUL_I32_IMM:
			dst, src := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			imm := readImm32(codeBytes, pc+4)
			pc += 8
			base := m.RegFile.GetI32(src)
			var r int32
			switch op {
			case code.OP_ADD_I32_IMM:
				r = base + imm
			case code.OP_SUB_I32_IMM:
				r = base - imm
			default:
				r = base * imm
			}
			m.RegFile.SetI32(dst, r)
			m.Set(dst, value.BoxI32(r))

		case code.OP_INC_T_CHECKED:
			reg := code.ReadReg(codeBytes, pc)
			pc += 2
			res, err := addValues(m.Get(reg), value.BoxI32(1))
			if err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			}
			m.Set(reg, res)
			if value.IsI32(res) {
				m.RegFile.SetI32(reg, value.AsI32(res))
			}

		// -----------------------------------------------------------------
		// Comparisons
		// -----------------------------------------------------------------
		case code.OP_EQ_R, code.OP_NEQ_R, code.OP_LT_R, code.OP_LE_R, code.OP_GT_R, code.OP_GE_R:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			res, err := compareValues(cmpOpName(op), m.Get(a), m.Get(b))
			if handled, next := handleErr(m, &tryStack, err, pc); !handled && err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			} else if err != nil {
				pc = next
				continue
			}
			m.Set(dst, res)

		case code.OP_NOT_R:
			dst, src := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			v := m.Get(src)
			m.Set(dst, value.BoxBool(!value.IsBool(v) || !value.AsBool(v)))

		// -----------------------------------------------------------------
		// Control flow
		// -----------------------------------------------------------------
		case code.OP_JUMP, code.OP_JUMP_SHORT, code.OP_LOOP_SHORT, code.OP_JUMP_BACK_SHORT:
			pc = followJump(codeBytes, op, pc)

		case code.OP_JUMP_IF_NOT_R:
			cond := code.ReadReg(codeBytes, pc)
			afterCond := pc + 2
			v := m.Get(cond)
			target := followJump(codeBytes, op, afterCond)
			if !value.IsBool(v) || !value.AsBool(v) {
				pc = target
			} else {
				pc = afterCond + op.JumpOffsetWidth()
			}

		case code.OP_JUMP_IF_NOT_I32_TYPED:
			a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			afterOperands := pc + 4
			target := followJump(codeBytes, op, afterOperands)
			if m.RegFile.GetI32(a) >= m.RegFile.GetI32(b) {
				pc = target
			} else {
				pc = afterOperands + op.JumpOffsetWidth()
			}

		case code.OP_BRANCH_TYPED:
			_ = code.ReadReg(codeBytes, pc) // loopID: correlation tag only
			cond := code.ReadReg(codeBytes, pc+2)
			afterOperands := pc + 4
			v := m.Get(cond)
			target := followJump(codeBytes, op, afterOperands)
			if !value.IsBool(v) || !value.AsBool(v) {
				pc = target
			} else {
				pc = afterOperands + op.JumpOffsetWidth()
			}

		case code.OP_INC_CMP_JMP:
			reg, limit := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			afterOperands := pc + 4
			next := m.RegFile.GetI32(reg) + 1
			m.RegFile.SetI32(reg, next)
			m.Set(reg, value.BoxI32(next))
			target := followJump(codeBytes, op, afterOperands)
			if next < m.RegFile.GetI32(limit) {
				pc = target
			} else {
				pc = afterOperands + op.JumpOffsetWidth()
			}

		// -----------------------------------------------------------------
		// Iterators
		// -----------------------------------------------------------------
		case code.OP_GET_ITER_R:
			dst, src := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			v := m.Get(src)
			iter, err := makeIterator(v)
			if err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			}
			m.Set(dst, iter)

		case code.OP_ITER_NEXT_R:
			dst, iter, hasValue := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			v, ok := iterNext(m.Get(iter))
			m.Set(hasValue, value.BoxBool(ok))
			if ok {
				m.Set(dst, v)
			}

		// -----------------------------------------------------------------
		// Strings / print
		// -----------------------------------------------------------------
		case code.OP_CONCAT_R:
			dst, a, b := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			m.Set(dst, concatValues(m.Get(a), m.Get(b)))

		case code.OP_PRINT_R, code.OP_PRINT_NO_NL_R:
			reg := code.ReadReg(codeBytes, pc)
			pc += 2
			if m.Print != nil {
				nl := op == code.OP_PRINT_R
				m.Print(value.PrintValue(m.Get(reg)), nl)
			}

		case code.OP_PRINT_MULTI_R:
			first := code.ReadReg(codeBytes, pc)
			count := code.ReadReg(codeBytes, pc+2)
			nl := codeBytes[pc+4] != 0
			pc += 5
			if m.Print != nil {
				for i := 0; i < count; i++ {
					m.Print(value.PrintValue(m.Get(first+i)), false)
				}
				if nl {
					m.Print("", true)
				}
			}

		// -----------------------------------------------------------------
		// Arrays
		// -----------------------------------------------------------------
		case code.OP_NEW_ARRAY:
			dst, capHintReg := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			hint := 0
			if cv := m.Get(capHintReg); value.IsI32(cv) {
				hint = int(value.AsI32(cv))
			}
			m.Set(dst, value.BoxArray(&value.ArrayObj{Elements: make([]value.Value, 0, hint)}))

		case code.OP_ARRAY_GET_R:
			dst, arr, idx := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			a := value.AsArray(m.Get(arr))
			i := int(value.AsI32(m.Get(idx)))
			if i < 0 || i >= len(a.Elements) {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(valueErrorf("array index %d out of bounds (len %d)", i, len(a.Elements)))}
			}
			m.Set(dst, a.Elements[i])

		case code.OP_ARRAY_SET_R:
			arr, idx, val := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			a := value.AsArray(m.Get(arr))
			i := int(value.AsI32(m.Get(idx)))
			if i < 0 || i >= len(a.Elements) {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(valueErrorf("array index %d out of bounds (len %d)", i, len(a.Elements)))}
			}
			a.Elements[i] = m.Get(val)

		case code.OP_ARRAY_PUSH_R:
			arr, val := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			a := value.AsArray(m.Get(arr))
			a.Elements = append(a.Elements, m.Get(val))

		case code.OP_ARRAY_LEN_R:
			dst, arr := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			a := value.AsArray(m.Get(arr))
			m.Set(dst, value.BoxI32(int32(a.Len())))

		// -----------------------------------------------------------------
		// Struct/enum field access (positional-field convention: fields are
		// named "_0".."_N" over the object's underlying payload array, since
		// the typed-AST contract carries no struct-literal construction
		// node to derive a name->index map from)
		// -----------------------------------------------------------------
		case code.OP_GET_FIELD_R:
			dst, obj, nameConst := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			res, err := getField(m.Get(obj), consts[nameConst])
			if err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			}
			m.Set(dst, res)

		case code.OP_SET_FIELD_R:
			obj, nameConst, val := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2), code.ReadReg(codeBytes, pc+4)
			pc += 6
			if err := setField(m.Get(obj), consts[nameConst], m.Get(val)); err != nil {
				return value.BoxNil(), &RaiseError{Val: asErrorValue(err)}
			}

		// -----------------------------------------------------------------
		// Functions / calls
		// -----------------------------------------------------------------
		case code.OP_CALL_R:
			funcReg := code.ReadReg(codeBytes, pc)
			first := code.ReadReg(codeBytes, pc+2)
			argc := code.ReadReg(codeBytes, pc+4)
			result := code.ReadReg(codeBytes, pc+6)
			pc += 8
			args := make([]value.Value, argc)
			for i := 0; i < argc; i++ {
				args[i] = m.Get(first + i)
			}
			callee := m.Get(funcReg)
			if isRaiseIntrinsic(callee) {
				var raised value.Value
				if argc > 0 {
					raised = args[0]
				} else {
					raised = value.BoxNil()
				}
				if handled, next := handleRaise(m, &tryStack, raised, pc); handled {
					pc = next
					continue
				}
				return value.BoxNil(), &RaiseError{Val: raised}
			}
			res, err := m.Call(callee, args)
			if err != nil {
				if re, ok := err.(*RaiseError); ok {
					if handled, next := handleRaise(m, &tryStack, re.Val, pc); handled {
						pc = next
						continue
					}
				}
				return value.BoxNil(), err
			}
			m.Set(result, res)

		case code.OP_TAIL_CALL_R:
			funcReg := code.ReadReg(codeBytes, pc)
			first := code.ReadReg(codeBytes, pc+2)
			argc := code.ReadReg(codeBytes, pc+4)
			pc += 6
			args := make([]value.Value, argc)
			for i := 0; i < argc; i++ {
				args[i] = m.Get(first + i)
			}
			callee := m.Get(funcReg)
			res, err := m.Call(callee, args)
			if err != nil {
				if re, ok := err.(*RaiseError); ok {
					return value.BoxNil(), re
				}
				return value.BoxNil(), err
			}
			return res, nil

		case code.OP_RETURN_R:
			reg := code.ReadReg(codeBytes, pc)
			return m.Get(reg), nil

		case code.OP_RETURN_VOID:
			return value.BoxNil(), nil

		// -----------------------------------------------------------------
		// Closures / upvalues
		// -----------------------------------------------------------------
		case code.OP_CLOSURE_R:
			dst := code.ReadReg(codeBytes, pc)
			funcReg := code.ReadReg(codeBytes, pc+2)
			upvalCount := code.ReadReg(codeBytes, pc+4)
			pc += 6
			fnVal := m.Get(funcReg)
			idx := value.AsFunctionIndex(fnVal)
			closure := &value.ClosureObj{FunctionIndex: idx, Upvalues: make([]*value.UpvalueObj, upvalCount)}
			for i := 0; i < upvalCount; i++ {
				isLocal := codeBytes[pc] != 0
				srcIdx := code.ReadReg(codeBytes, pc+1)
				pc += 3
				if isLocal {
					closure.Upvalues[i] = m.captureUpvalue(srcIdx)
				} else if m.CurrentClosure != nil && srcIdx < len(m.CurrentClosure.Upvalues) {
					closure.Upvalues[i] = m.CurrentClosure.Upvalues[srcIdx]
				}
			}
			m.Set(dst, value.BoxClosure(closure))

		case code.OP_GET_UPVALUE_R:
			dst, idx := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			if m.CurrentClosure != nil && idx < len(m.CurrentClosure.Upvalues) {
				m.Set(dst, *m.CurrentClosure.Upvalues[idx].Location)
			}

		case code.OP_SET_UPVALUE_R:
			idx, src := code.ReadReg(codeBytes, pc), code.ReadReg(codeBytes, pc+2)
			pc += 4
			if m.CurrentClosure != nil && idx < len(m.CurrentClosure.Upvalues) {
				*m.CurrentClosure.Upvalues[idx].Location = m.Get(src)
			}

		case code.OP_CLOSE_UPVALUE_R:
			reg := code.ReadReg(codeBytes, pc)
			pc += 2
			m.closeUpvalue(reg)

		// -----------------------------------------------------------------
		// Exceptions
		// -----------------------------------------------------------------
		case code.OP_TRY_BEGIN:
			catchRegByte := codeBytes[pc]
			afterByte := pc + 1
			target := followJump(codeBytes, op, afterByte)
			catchReg := -1
			if catchRegByte != 0xFF {
				catchReg = int(catchRegByte)
			}
			tryStack = append(tryStack, tryFrame{CatchPC: target, CatchReg: catchReg})
			pc = afterByte + op.JumpOffsetWidth()

		case code.OP_TRY_END:
			if len(tryStack) > 0 {
				tryStack = tryStack[:len(tryStack)-1]
			}

		// -----------------------------------------------------------------
		// Misc
		// -----------------------------------------------------------------
		case code.OP_TIME_STAMP:
			dst := code.ReadReg(codeBytes, pc)
			pc += 2
			m.Set(dst, value.BoxI64(m.clock()))

		case code.OP_HALT:
			return value.BoxNil(), nil

		default:
			return value.BoxNil(), runtimeErrorf("dispatch: unknown opcode %d", op)
		}
	}
	return value.BoxNil(), nil
}

// followJump reads op's offset field starting at pos and returns the
// absolute target pc, honoring the back-jump-vs-forward-jump distance
// convention code.Buffer.PatchJump writes (spec §4.3).
func followJump(codeBytes []byte, op code.OpCode, pos int) int {
	width := op.JumpOffsetWidth()
	dist := code.ReadOffset(codeBytes, pos, width, op.IsBackJump())
	after := pos + width
	if op.IsBackJump() {
		return after - dist
	}
	return after + dist
}

func readImm32(codeBytes []byte, pos int) int32 {
	return int32(uint32(codeBytes[pos])<<24 | uint32(codeBytes[pos+1])<<16 | uint32(codeBytes[pos+2])<<8 | uint32(codeBytes[pos+3]))
}

func warmBank(m *Machine, reg int, v value.Value) {
	switch {
	case value.IsI32(v):
		m.RegFile.SetI32(reg, value.AsI32(v))
	case value.IsI64(v):
		m.RegFile.SetI64(reg, value.AsI64(v))
	case value.IsU32(v):
		m.RegFile.SetU32(reg, value.AsU32(v))
	case value.IsU64(v):
		m.RegFile.SetU64(reg, value.AsU64(v))
	case value.IsF64(v):
		m.RegFile.SetF64(reg, value.AsF64(v))
	}
}

func evalArith(op code.OpCode, a, b value.Value) (value.Value, error) {
	switch op {
	case code.OP_ADD_R:
		return addValues(a, b)
	case code.OP_SUB_R:
		return subValues(a, b)
	case code.OP_MUL_R:
		return mulValues(a, b)
	case code.OP_DIV_R:
		return divValues(a, b)
	default: // code.OP_MOD_R
		return modValues(a, b)
	}
}

func cmpOpName(op code.OpCode) string {
	switch op {
	case code.OP_EQ_R:
		return "=="
	case code.OP_NEQ_R:
		return "!="
	case code.OP_LT_R:
		return "<"
	case code.OP_LE_R:
		return "<="
	case code.OP_GT_R:
		return ">"
	default: // code.OP_GE_R
		return ">="
	}
}

// handleErr folds an opcode's Go error into tryStack if one is active,
// returning (true, resumePC) on a caught raise, or (false, 0) when the
// caller must propagate the error up (err == nil always yields (true, pc)
// so call sites can use the uniform `if handled, next := ...; !handled &&
// err != nil` pattern without a separate nil check).
func handleErr(m *Machine, tryStack *[]tryFrame, err error, fallthroughPC int) (bool, int) {
	if err == nil {
		return true, fallthroughPC
	}
	return handleRaise(m, tryStack, asErrorValue(err), fallthroughPC)
}

func handleRaise(m *Machine, tryStack *[]tryFrame, errVal value.Value, fallthroughPC int) (bool, int) {
	n := len(*tryStack)
	if n == 0 {
		return false, fallthroughPC
	}
	frame := (*tryStack)[n-1]
	*tryStack = (*tryStack)[:n-1]
	if frame.CatchReg >= 0 {
		m.Set(frame.CatchReg, errVal)
	}
	return true, frame.CatchPC
}

func isRaiseIntrinsic(v value.Value) bool {
	return value.IsFunction(v) && value.AsFunctionIndex(v) == value.RaiseIntrinsicIndex
}

func makeIterator(v value.Value) (value.Value, error) {
	switch {
	case value.IsArray(v):
		return value.BoxArrayIterator(&value.ArrayIteratorObj{Array: value.AsArray(v)}), nil
	case value.IsRangeIterator(v), value.IsArrayIterator(v):
		return v, nil
	default:
		return value.BoxNil(), typeErrorf("%s is not iterable", value.KindOf(v))
	}
}

func iterNext(v value.Value) (value.Value, bool) {
	switch {
	case value.IsRangeIterator(v):
		n, ok := value.AsRangeIterator(v).Next()
		if !ok {
			return value.BoxNil(), false
		}
		return value.BoxI64(n), true
	case value.IsArrayIterator(v):
		return value.AsArrayIterator(v).Next()
	default:
		return value.BoxNil(), false
	}
}

func getField(obj, nameVal value.Value) (value.Value, error) {
	idx, ok := fieldIndex(nameVal)
	if !ok {
		return value.BoxNil(), typeErrorf("invalid field name")
	}
	switch {
	case value.IsEnum(obj):
		e := value.AsEnum(obj)
		if e.Payload == nil || idx < 0 || idx >= len(e.Payload.Elements) {
			return value.BoxNil(), valueErrorf("field _%d not present on %s.%s", idx, e.TypeName, e.VariantName)
		}
		return e.Payload.Elements[idx], nil
	case value.IsArray(obj):
		a := value.AsArray(obj)
		if idx < 0 || idx >= len(a.Elements) {
			return value.BoxNil(), valueErrorf("field _%d out of bounds", idx)
		}
		return a.Elements[idx], nil
	default:
		return value.BoxNil(), typeErrorf("%s has no fields", value.KindOf(obj))
	}
}

func setField(obj, nameVal, val value.Value) error {
	idx, ok := fieldIndex(nameVal)
	if !ok {
		return typeErrorf("invalid field name")
	}
	switch {
	case value.IsEnum(obj):
		e := value.AsEnum(obj)
		if e.Payload == nil || idx < 0 || idx >= len(e.Payload.Elements) {
			return valueErrorf("field _%d not present on %s.%s", idx, e.TypeName, e.VariantName)
		}
		e.Payload.Elements[idx] = val
		return nil
	case value.IsArray(obj):
		a := value.AsArray(obj)
		if idx < 0 || idx >= len(a.Elements) {
			return valueErrorf("field _%d out of bounds", idx)
		}
		a.Elements[idx] = val
		return nil
	default:
		return typeErrorf("%s has no fields", value.KindOf(obj))
	}
}

// fieldIndex parses the constant-pool string field name's "_N" positional
// convention back into N.
func fieldIndex(nameVal value.Value) (int, bool) {
	if !value.IsString(nameVal) {
		return 0, false
	}
	s := string(value.AsString(nameVal).EnsureChars())
	if len(s) < 2 || s[0] != '_' {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
