package codegen

import (
	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/diag"
	"orus/internal/rope"
	"orus/internal/value"
)

// compileExpr lowers an expression, returning the register holding its
// result and whether that register is a temp the caller must free.
func (c *Compiler) compileExpr(e ast.Expr) (reg int, isTemp bool) {
	switch ex := e.(type) {
	case *ast.Literal:
		return c.compileLiteral(ex), true
	case *ast.Variable:
		return c.compileVariable(ex)
	case *ast.Binary:
		return c.compileBinary(ex), true
	case *ast.Unary:
		return c.compileUnary(ex), true
	case *ast.Call:
		return c.compileCall(ex), true
	case *ast.Index:
		return c.compileIndex(ex), true
	case *ast.Member:
		return c.compileMember(ex), true
	default:
		c.errorAt(diag.New(diag.Runtime, "", "codegen: unhandled expression", c.pos(ast.Pos{File: c.file})))
		dst := c.Regs.AllocTemp()
		c.Buf.EmitInstruction(code.OP_LOAD_NIL, dst)
		return dst, true
	}
}

func (c *Compiler) compileLiteral(l *ast.Literal) int {
	c.setPos(l.Pos)
	dst := c.Regs.AllocTemp()
	switch l.Kind {
	case "i32":
		idx := c.Buf.AddConstant(value.BoxI32(l.I32))
		c.Buf.EmitInstruction(code.OP_LOAD_I32_CONST, dst, idx)
		c.Regs.SetI32(dst, l.I32)
	case "i64":
		idx := c.Buf.AddConstant(value.BoxI64(l.I64))
		c.Buf.EmitInstruction(code.OP_LOAD_I64_CONST, dst, idx)
		c.Regs.SetI64(dst, l.I64)
	case "u32":
		idx := c.Buf.AddConstant(value.BoxU32(l.U32))
		c.Buf.EmitInstruction(code.OP_LOAD_U32_CONST, dst, idx)
		c.Regs.SetU32(dst, l.U32)
	case "u64":
		idx := c.Buf.AddConstant(value.BoxU64(l.U64))
		c.Buf.EmitInstruction(code.OP_LOAD_U64_CONST, dst, idx)
		c.Regs.SetU64(dst, l.U64)
	case "f64":
		idx := c.Buf.AddConstant(value.BoxF64(l.F64))
		c.Buf.EmitInstruction(code.OP_LOAD_F64_CONST, dst, idx)
		c.Regs.SetF64(dst, l.F64)
	case "bool":
		b := 0
		if l.Bool {
			b = 1
		}
		c.Buf.EmitByte(byte(code.OP_LOAD_BOOL))
		c.Buf.EmitReg(dst)
		c.Buf.EmitByte(byte(b))
		c.Regs.SetBool(dst, l.Bool)
	case "string":
		r := rope.Intern(l.Str)
		idx := c.Buf.AddConstant(value.BoxString(value.NewStringFromRope(r)))
		c.Buf.EmitInstruction(code.OP_LOAD_CONST, dst, idx)
	case "nil":
		c.Buf.EmitInstruction(code.OP_LOAD_NIL, dst)
	default:
		c.Buf.EmitInstruction(code.OP_LOAD_NIL, dst)
	}
	return dst
}

// compileVariable resolves a name through the local scope chain, then
// through enclosing functions as an upvalue, then as a global (spec
// §4.6.2 resolve_variable_or_upvalue).
func (c *Compiler) compileVariable(v *ast.Variable) (int, bool) {
	c.setPos(v.Pos)
	if sym, ok := c.fn.resolveLocal(v.Name); ok {
		return sym.reg, false
	}
	if idx, ok := c.resolveUpvalue(c.fn, v.Name); ok {
		dst := c.Regs.AllocTemp()
		c.Buf.EmitInstruction(code.OP_GET_UPVALUE_R, dst, idx)
		return dst, true
	}
	if slot, ok := c.Regs.LookupGlobal(v.Name); ok {
		dst := c.Regs.AllocTemp()
		c.Buf.EmitInstruction(code.OP_GET_GLOBAL, dst, slot)
		return dst, true
	}
	c.errorAt(diag.New(diag.Name, "", "undefined variable '"+v.Name+"'", c.pos(v.Pos)))
	dst := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_LOAD_NIL, dst)
	return dst, true
}

// resolveUpvalue walks enclosing function scopes for name, wiring an
// upvalue chain through every intermediate function (spec §4.6.2).
func (c *Compiler) resolveUpvalue(fc *funcCtx, name string) (int, bool) {
	if fc.parent == nil {
		return 0, false
	}
	if sym, ok := fc.parent.resolveLocal(name); ok {
		return fc.addUpvalue(name, true, sym.reg), true
	}
	if idx, ok := c.resolveUpvalue(fc.parent, name); ok {
		return fc.addUpvalue(name, false, idx), true
	}
	return 0, false
}

func (c *Compiler) compileBinary(b *ast.Binary) int {
	c.setPos(b.Pos)
	lhs, lTemp := c.compileExpr(b.Left)
	rhs, rTemp := c.compileExpr(b.Right)
	dst := c.Regs.AllocTemp()

	var op code.OpCode
	switch b.Op {
	case "+":
		op = code.OP_ADD_R
	case "-":
		op = code.OP_SUB_R
	case "*":
		op = code.OP_MUL_R
	case "/":
		op = code.OP_DIV_R
	case "%":
		op = code.OP_MOD_R
	case "==":
		op = code.OP_EQ_R
	case "!=":
		op = code.OP_NEQ_R
	case "<":
		op = code.OP_LT_R
	case "<=":
		op = code.OP_LE_R
	case ">":
		op = code.OP_GT_R
	case ">=":
		op = code.OP_GE_R
	default:
		op = code.OP_ADD_R
	}
	c.Buf.EmitInstruction(op, dst, lhs, rhs)

	if lTemp {
		c.Regs.FreeTemp(lhs)
	}
	if rTemp {
		c.Regs.FreeTemp(rhs)
	}
	return dst
}

func (c *Compiler) compileUnary(u *ast.Unary) int {
	c.setPos(u.Pos)
	src, isTemp := c.compileExpr(u.Operand)
	dst := c.Regs.AllocTemp()
	switch u.Op {
	case "-":
		c.Buf.EmitInstruction(code.OP_NEG_R, dst, src)
	case "!":
		c.Buf.EmitInstruction(code.OP_NOT_R, dst, src)
	}
	if isTemp {
		c.Regs.FreeTemp(src)
	}
	return dst
}

func (c *Compiler) compileCall(call *ast.Call) int {
	c.setPos(call.Pos)
	funcReg, fTemp := c.compileExpr(call.Callee)

	// Arguments must land in consecutive temp registers for OP_CALL_R.
	argRegs := make([]int, 0, len(call.Args))
	for _, a := range call.Args {
		r, isTemp := c.compileExpr(a)
		if !isTemp {
			// Copy named locals/globals into a temp so the argument list is
			// contiguous and safe to free after the call.
			tmp := c.Regs.AllocTemp()
			c.Buf.EmitInstruction(code.OP_MOVE, tmp, r)
			r = tmp
		}
		argRegs = append(argRegs, r)
	}
	first := 0
	if len(argRegs) > 0 {
		first = argRegs[0]
	}
	result := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_CALL_R, funcReg, first, len(argRegs), result)

	for _, r := range argRegs {
		c.Regs.FreeTemp(r)
	}
	if fTemp {
		c.Regs.FreeTemp(funcReg)
	}
	return result
}

func (c *Compiler) compileIndex(ix *ast.Index) int {
	c.setPos(ix.Pos)
	coll, cTemp := c.compileExpr(ix.Collection)
	key, kTemp := c.compileExpr(ix.Key)
	dst := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_ARRAY_GET_R, dst, coll, key)
	if cTemp {
		c.Regs.FreeTemp(coll)
	}
	if kTemp {
		c.Regs.FreeTemp(key)
	}
	return dst
}

func (c *Compiler) compileMember(m *ast.Member) int {
	c.setPos(m.Pos)
	obj, oTemp := c.compileExpr(m.Target)
	nameIdx := c.Buf.AddConstant(value.BoxString(value.NewStringFromRope(rope.Intern(m.Field))))
	dst := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_GET_FIELD_R, dst, obj, nameIdx)
	if oTemp {
		c.Regs.FreeTemp(obj)
	}
	return dst
}
