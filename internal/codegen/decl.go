package codegen

import (
	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/modreg"
	"orus/internal/value"
)

// Function is one compiled function body: its own instruction stream,
// compiled independently of the enclosing module/function (spec §3
// Chunk/Function: {name, arity, chunk, start_offset}).
type Function struct {
	Name         string
	Arity        int
	Buf          *code.Buffer
	UpvalueDescs []upvalueDesc

	// FrameLo/FrameHi and TempLo/TempHi bound the absolute register ranges
	// this function's own body allocated (register.File's watermarks before
	// and after compiling it). The owning VM (C9) saves and restores these
	// ranges in Machine.Regs around every call into this Function, so a
	// recursive re-entry does not clobber an outer, still-live activation's
	// locals despite register.File's indices being shared/absolute across
	// the whole module rather than rebased per call.
	FrameLo, FrameHi int
	TempLo, TempHi   int
}

func (c *Compiler) compileExportableDecl(stmt ast.Stmt) {
	switch d := stmt.(type) {
	case *ast.FunctionDecl:
		c.compileFunctionDecl(d)
	case *ast.StructDecl:
		if d.Public {
			c.Modules.RegisterModuleExport(c.ModuleName, d.Name, modreg.ExportStruct)
			_ = c.Modules.SetModuleExportMetadata(c.ModuleName, d.Name, -1, "struct", -1, "")
		}
	case *ast.EnumDecl:
		if d.Public {
			c.Modules.RegisterModuleExport(c.ModuleName, d.Name, modreg.ExportEnum)
			_ = c.Modules.SetModuleExportMetadata(c.ModuleName, d.Name, -1, "enum", -1, "")
		}
	}
}

// compileFunctionDecl compiles fn.Body into its own Function/Buffer (a
// nested compilation context), resolving free variables as upvalues against
// the enclosing funcCtx, then emits OP_CLOSURE_R in the enclosing buffer to
// materialize the closure and binds the declared name (spec §4.6.2).
//
// The name is bound in the *enclosing* scope before the body compiles, not
// after: a function must be able to see its own name for a recursive
// self-call, and compileVariable only resolves a name that resolveLocal/
// resolveUpvalue/LookupGlobal can already find at the point the call
// expression compiles.
func (c *Compiler) compileFunctionDecl(fn *ast.FunctionDecl) {
	c.setPos(fn.Pos)

	dst := c.bindFunctionTarget(fn.Name, fn.Pos.Line)

	frameLo, tempLo := c.Regs.FrameWatermark(), c.Regs.TempWatermark()

	child := newFuncCtx(c.fn)
	savedBuf, savedFn := c.Buf, c.fn
	c.Buf = code.New()
	c.fn = child
	c.fn.pushScope(c.nextScopeID(), scopeLexical)

	for _, p := range fn.Params {
		reg := c.Regs.AllocFrame(c.fn.current().id)
		c.fn.declare(p.Name, reg, p.Type, true, fn.Pos.Line)
	}
	for _, st := range fn.Body {
		c.compileStmt(st)
	}
	c.Buf.EmitInstruction(code.OP_RETURN_VOID)

	frameHi, tempHi := c.Regs.FrameWatermark(), c.Regs.TempWatermark()

	compiled := &Function{
		Name: fn.Name, Arity: len(fn.Params), Buf: c.Buf, UpvalueDescs: child.upvalues,
		FrameLo: frameLo, FrameHi: frameHi, TempLo: tempLo, TempHi: tempHi,
	}
	funcIndex := len(c.Functions)
	c.Functions = append(c.Functions, compiled)

	c.Buf, c.fn = savedBuf, savedFn

	funcConstIdx := c.Buf.AddConstant(value.BoxFunction(funcIndex))
	funcReg := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_LOAD_CONST, funcReg, funcConstIdx)

	c.Buf.EmitByte(byte(code.OP_CLOSURE_R))
	c.Buf.EmitReg(dst)
	c.Buf.EmitReg(funcReg)
	c.Buf.EmitReg(len(compiled.UpvalueDescs))
	for _, uv := range compiled.UpvalueDescs {
		if uv.isLocal {
			c.Buf.EmitByte(1)
		} else {
			c.Buf.EmitByte(0)
		}
		c.Buf.EmitReg(uv.index)
	}
	c.Regs.FreeTemp(funcReg)

	if fn.Public {
		c.recordExport(fn.Name, modreg.ExportFunction)
	}
}

func (c *Compiler) bindFunctionTarget(name string, line int) int {
	reg := c.allocBinding(name)
	c.fn.declare(name, reg, "function", false, line)
	return reg
}
