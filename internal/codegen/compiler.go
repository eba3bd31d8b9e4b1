// Package codegen implements Orus's statement-level backend (C6): it lowers
// typed AST nodes (package ast) into a code.Buffer, driving register
// allocation (register.File), module export/import wiring (modreg), and
// structured diagnostics (diag) for the error cases spec §4.6 names.
//
// Grounded on compregister.Compiler's scope/allocator/loop-stack shape and
// internal/compiler/stmt_compiler.go's statement-dispatch switch, adapted
// from Lua-style packed ABC/AsBx instructions + a single loop stack to the
// byte-stream buffer of internal/code, the three-range register.File, and
// the label-aware, fusion-aware loop handling spec §4.6/§4.6.1 add.
package codegen

import (
	"fmt"

	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/diag"
	"orus/internal/modreg"
	"orus/internal/optimizer"
	"orus/internal/register"
)

// Compiler is a CompilerContext (spec §3): one per module compilation.
type Compiler struct {
	Buf     *code.Buffer
	Regs    *register.File
	Modules *modreg.Manager

	ModuleName string
	file       string

	Diagnostics []*diag.Diagnostic

	// Functions holds every nested function body compiled so far, in
	// declaration order; OP_LOAD_CONST + value.BoxFunction(index) refers to
	// this table (spec §3 Chunk/Function).
	Functions []*Function

	fn *funcCtx

	scopeCounter  int
	loopIDCounter int

	// pendingExports records module-level export declarations awaiting
	// SetModuleExportMetadata once their register/type is known (spec §4.6
	// "Module exports").
	pendingExports []string

	// optCtx carries the Optimizer's (C7) output: constant folding has
	// already mutated the AST by the time CompileModule starts compiling it,
	// and optCtx.LoopPlans records the per-loop typed-bank residency hints
	// compileGenericWhile consults (spec §4.7).
	optCtx *optimizer.Context
}

func New(moduleName, file string, regs *register.File, mgr *modreg.Manager) *Compiler {
	c := &Compiler{
		Buf:        code.New(),
		Regs:       regs,
		Modules:    mgr,
		ModuleName: moduleName,
		file:       file,
	}
	c.fn = newFuncCtx(nil)
	c.fn.pushScope(c.nextScopeID(), scopeLexical)
	// Reserve the "__raise__" global slot so compileThrow always finds it
	// (spec §5.1); the host binds this slot to value.RaiseIntrinsicIndex
	// before running any compiled code.
	regs.AllocGlobal("__raise__")
	return c
}

func (c *Compiler) nextScopeID() int {
	id := c.scopeCounter
	c.scopeCounter++
	return id
}

func (c *Compiler) pos(p ast.Pos) diag.Location {
	return diag.Location{File: c.file, Line: p.Line, Column: p.Column}
}

func (c *Compiler) errorAt(d *diag.Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

func (c *Compiler) setPos(p ast.Pos) { c.Buf.SetPosition(p.Line, p.Column) }

// HasErrors reports whether any diagnostic was accumulated (spec §7:
// compile-time errors accumulate on has_compilation_errors; compilation
// continues where tractable).
func (c *Compiler) HasErrors() bool { return len(c.Diagnostics) > 0 }

// CompileModule compiles a module's top-level statement list, returning the
// accumulated diagnostics (nil/empty on success). The buffer ends in
// OP_HALT; every jump placeholder is expected to have been patched by then
// (spec §8).
//
// The Optimizer (C7) runs first: constant folding mutates stmts in place
// before anything downstream sees them, and loop-type-affinity populates
// optCtx.LoopPlans for compileGenericWhile to consult.
func (c *Compiler) CompileModule(stmts []ast.Stmt) []*diag.Diagnostic {
	c.optCtx = optimizer.NewContext()
	optimizer.NewRegistry().Run(stmts, c.optCtx)

	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.Buf.EmitInstruction(code.OP_HALT)
	return c.Diagnostics
}

// ---------------------------------------------------------------------
// Statement dispatch (spec §4.6 compile_statement)
// ---------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		c.setPos(s.Pos)
		reg, isTemp := c.compileExpr(s.X)
		if isTemp {
			c.Regs.FreeTemp(reg)
		}
	case *ast.PrintStmt:
		c.compilePrint(s)
	case *ast.LetStmt:
		c.compileLet(s)
	case *ast.AssignStmt:
		c.compileAssign(s)
	case *ast.BlockStmt:
		c.compileBlockWithScope(s.Stmts, true)
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	case *ast.ForRangeStmt:
		c.compileForRange(s)
	case *ast.ForInStmt:
		c.compileForIn(s)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ContinueStmt:
		c.compileContinue(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	case *ast.TryStmt:
		c.compileTry(s)
	case *ast.ThrowStmt:
		c.compileThrow(s)
	case *ast.ImportStmt:
		c.compileImport(s)
	case *ast.FunctionDecl, *ast.StructDecl, *ast.EnumDecl:
		c.compileExportableDecl(s)
	default:
		c.errorAt(diag.New(diag.Runtime, "", fmt.Sprintf("codegen: unhandled statement %T", s), c.pos(ast.Pos{File: c.file})))
	}
}

func (c *Compiler) compilePrint(s *ast.PrintStmt) {
	c.setPos(s.Pos)
	if len(s.Args) == 1 {
		reg, isTemp := c.compileExpr(s.Args[0])
		if s.Newline {
			c.Buf.EmitInstruction(code.OP_PRINT_R, reg)
		} else {
			c.Buf.EmitInstruction(code.OP_PRINT_NO_NL_R, reg)
		}
		if isTemp {
			c.Regs.FreeTemp(reg)
		}
		return
	}
	// Multiple arguments must land in consecutive temps for OP_PRINT_MULTI_R.
	first := -1
	temps := make([]int, 0, len(s.Args))
	for _, a := range s.Args {
		reg, isTemp := c.compileExpr(a)
		if first == -1 {
			first = reg
		}
		if isTemp {
			temps = append(temps, reg)
		}
	}
	nl := 0
	if s.Newline {
		nl = 1
	}
	c.Buf.EmitByte(byte(code.OP_PRINT_MULTI_R))
	c.Buf.EmitReg(first)
	c.Buf.EmitReg(len(s.Args))
	c.Buf.EmitByte(byte(nl))
	for _, t := range temps {
		c.Regs.FreeTemp(t)
	}
}

func (c *Compiler) compileLet(s *ast.LetStmt) {
	c.setPos(s.Pos)
	var reg int
	if s.Value != nil {
		vr, isTemp := c.compileExpr(s.Value)
		reg = c.allocBinding(s.Name)
		c.Buf.EmitInstruction(code.OP_MOVE, reg, vr)
		if isTemp {
			c.Regs.FreeTemp(vr)
		}
	} else {
		reg = c.allocBinding(s.Name)
		c.Buf.EmitInstruction(code.OP_LOAD_NIL, reg)
	}
	if prior, redeclared := c.fn.declare(s.Name, reg, s.Type, s.Mutable, s.Pos.Line); redeclared {
		c.errorAt(diag.Redeclaration(s.Name, prior, c.pos(s.Pos)))
	}
	if s.Public {
		c.recordExport(s.Name, modreg.ExportGlobal)
	}
}

// allocBinding allocates a register for a new binding: a global slot at
// module scope (depth 1, i.e. only the module-level scope is on the stack),
// a frame register otherwise.
func (c *Compiler) allocBinding(name string) int {
	if c.isModuleScope() {
		return c.Regs.AllocGlobal(name)
	}
	return c.Regs.AllocFrame(c.fn.current().id)
}

func (c *Compiler) isModuleScope() bool {
	return c.fn.parent == nil && len(c.fn.scopes) == 1
}

func (c *Compiler) recordExport(name string, kind modreg.ExportKind) {
	c.Modules.RegisterModuleExport(c.ModuleName, name, kind)
	c.pendingExports = append(c.pendingExports, name)
}

// FinalizeExports attaches register/type metadata to every export recorded
// during compilation (spec §4.6 "the driver calls set_module_export_metadata
// to attach the final register index and inferred type"). Called by the
// driver after CompileModule returns with no errors.
func (c *Compiler) FinalizeExports() {
	for _, name := range c.pendingExports {
		if reg, ok := c.Regs.LookupGlobal(name); ok {
			typ := ""
			if sym, found := c.fn.resolveLocal(name); found {
				typ = sym.typ
			}
			_ = c.Modules.SetModuleExportMetadata(c.ModuleName, name, reg, typ, 0, "")
		}
	}
}

// compileBlockWithScope mirrors spec §4.6: optionally pushes a lexical
// scope, compiles every child, then frees frame registers owned by symbols
// declared in that scope before popping.
func (c *Compiler) compileBlockWithScope(stmts []ast.Stmt, createScope bool) {
	if createScope {
		c.fn.pushScope(c.nextScopeID(), scopeLexical)
	}
	for _, s := range stmts {
		c.compileStmt(s)
	}
	if createScope {
		s := c.fn.popScope()
		c.Regs.FreeScope(s.id)
	}
}
