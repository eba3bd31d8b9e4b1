package codegen

import (
	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/diag"
	"orus/internal/rope"
	"orus/internal/value"
)

// compileAssign implements spec §4.6 compile_assignment: three target forms
// (name, array-index, struct-member), with a fast path for the pure
// increment pattern on an integer-typed variable.
func (c *Compiler) compileAssign(s *ast.AssignStmt) {
	c.setPos(s.Pos)
	switch s.Target {
	case ast.AssignName:
		c.compileAssignName(s)
	case ast.AssignIndex:
		c.compileAssignIndex(s)
	case ast.AssignMember:
		c.compileAssignMember(s)
	}
}

func (c *Compiler) compileAssignName(s *ast.AssignStmt) {
	if c.isPureIncrement(s.Name, s.Value) {
		if sym, ok := c.fn.resolveLocal(s.Name); ok && isIntegerType(sym.typ) {
			c.Buf.EmitInstruction(code.OP_INC_T_CHECKED, sym.reg)
			return
		}
	}

	vr, isTemp := c.compileExpr(s.Value)

	if sym, ok := c.fn.resolveLocal(s.Name); ok {
		if !sym.mutable {
			c.errorAt(diag.New(diag.Type, "", "cannot assign to immutable binding '"+s.Name+"'", c.pos(s.Pos)))
		}
		c.Buf.EmitInstruction(code.OP_MOVE, sym.reg, vr)
		if isTemp {
			c.Regs.FreeTemp(vr)
		}
		return
	}
	if idx, ok := c.resolveUpvalue(c.fn, s.Name); ok {
		c.Buf.EmitInstruction(code.OP_SET_UPVALUE_R, idx, vr)
		if isTemp {
			c.Regs.FreeTemp(vr)
		}
		return
	}
	if slot, ok := c.Regs.LookupGlobal(s.Name); ok {
		c.Buf.EmitInstruction(code.OP_SET_GLOBAL, slot, vr)
		if isTemp {
			c.Regs.FreeTemp(vr)
		}
		return
	}
	c.errorAt(diag.New(diag.Name, "", "undefined variable '"+s.Name+"'", c.pos(s.Pos)))
	if isTemp {
		c.Regs.FreeTemp(vr)
	}
}

func (c *Compiler) compileAssignIndex(s *ast.AssignStmt) {
	coll, cTemp := c.compileExpr(s.Collection)
	key, kTemp := c.compileExpr(s.Key)
	val, vTemp := c.compileExpr(s.Value)
	c.Buf.EmitInstruction(code.OP_ARRAY_SET_R, coll, key, val)
	if cTemp {
		c.Regs.FreeTemp(coll)
	}
	if kTemp {
		c.Regs.FreeTemp(key)
	}
	if vTemp {
		c.Regs.FreeTemp(val)
	}
}

func (c *Compiler) compileAssignMember(s *ast.AssignStmt) {
	obj, oTemp := c.compileExpr(s.Object)
	nameIdx := c.Buf.AddConstant(value.BoxString(value.NewStringFromRope(rope.Intern(s.Field))))
	val, vTemp := c.compileExpr(s.Value)
	c.Buf.EmitInstruction(code.OP_SET_FIELD_R, obj, nameIdx, val)
	if oTemp {
		c.Regs.FreeTemp(obj)
	}
	if vTemp {
		c.Regs.FreeTemp(val)
	}
}

// isPureIncrement reports whether value is exactly `name + 1`.
func (c *Compiler) isPureIncrement(name string, val ast.Expr) bool {
	b, ok := val.(*ast.Binary)
	if !ok || b.Op != "+" {
		return false
	}
	v, ok := b.Left.(*ast.Variable)
	if !ok || v.Name != name {
		return false
	}
	lit, ok := b.Right.(*ast.Literal)
	if !ok {
		return false
	}
	switch lit.Kind {
	case "i32":
		return lit.I32 == 1
	case "i64":
		return lit.I64 == 1
	case "u32":
		return lit.U32 == 1
	case "u64":
		return lit.U64 == 1
	}
	return false
}

func isIntegerType(t string) bool {
	switch t {
	case "i32", "i64", "u32", "u64":
		return true
	}
	return false
}
