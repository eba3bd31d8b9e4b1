package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/modreg"
	"orus/internal/register"
)

func newTestCompiler() *Compiler {
	return New("main", "<test>", register.New(), modreg.NewManager())
}

func i32lit(v int32) *ast.Literal { return &ast.Literal{Kind: "i32", I32: v} }

func TestIfElsePatchesAllJumps(t *testing.T) {
	c := newTestCompiler()
	stmts := []ast.Stmt{
		&ast.IfStmt{
			Cond: &ast.Binary{Op: "<", Left: i32lit(1), Right: i32lit(2), Type: "bool"},
			Then: []ast.Stmt{&ast.PrintStmt{Args: []ast.Expr{i32lit(1)}, Newline: true}},
			Else: []ast.Stmt{&ast.PrintStmt{Args: []ast.Expr{i32lit(2)}, Newline: true}},
		},
	}
	diags := c.CompileModule(stmts)
	require.Empty(t, diags)
	assert.Empty(t, c.Buf.AllUnresolved())
}

func TestGenericWhileLoopPatchesBreak(t *testing.T) {
	c := newTestCompiler()
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: "i32", Value: i32lit(0), Mutable: true},
		&ast.WhileStmt{
			Cond: &ast.Binary{Op: "<", Left: &ast.Variable{Name: "x", Type: "i32"}, Right: i32lit(10), Type: "bool"},
			Body: []ast.Stmt{
				&ast.BreakStmt{},
			},
		},
	}
	diags := c.CompileModule(stmts)
	require.Empty(t, diags)
	assert.Empty(t, c.Buf.AllUnresolved())
}

func TestFusedCounterLoopDetected(t *testing.T) {
	c := newTestCompiler()
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "i", Type: "i32", Value: i32lit(0), Mutable: true},
		&ast.WhileStmt{
			Cond: &ast.Binary{Op: "<", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: i32lit(10), Type: "bool"},
			Body: []ast.Stmt{
				&ast.PrintStmt{Args: []ast.Expr{&ast.Variable{Name: "i", Type: "i32"}}, Newline: true},
				&ast.AssignStmt{
					Target: ast.AssignName,
					Name:   "i",
					Value:  &ast.Binary{Op: "+", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: i32lit(1), Type: "i32"},
				},
			},
		},
	}
	diags := c.CompileModule(stmts)
	require.Empty(t, diags)
	assert.Empty(t, c.Buf.AllUnresolved())

	found := false
	for _, d := range code.DecodeAll(c.Buf.Code) {
		if d.Op == code.OP_INC_CMP_JMP {
			found = true
		}
	}
	assert.True(t, found, "expected the fused counter opcode to appear in the compiled buffer")
}

func TestRedeclarationIsReported(t *testing.T) {
	c := newTestCompiler()
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: "i32", Value: i32lit(1)},
		&ast.LetStmt{Name: "x", Type: "i32", Value: i32lit(2)},
	}
	diags := c.CompileModule(stmts)
	require.Len(t, diags, 1)
	assert.Equal(t, "E1011", diags[0].Code)
}

func TestBreakOutsideLoopIsReported(t *testing.T) {
	c := newTestCompiler()
	diags := c.CompileModule([]ast.Stmt{&ast.BreakStmt{}})
	require.Len(t, diags, 1)
	assert.Equal(t, "E1401", diags[0].Code)
}

func TestImportMissingModuleIsReported(t *testing.T) {
	c := newTestCompiler()
	diags := c.CompileModule([]ast.Stmt{
		&ast.ImportStmt{Module: "missing", Symbols: []string{"x"}},
	})
	require.Len(t, diags, 1)
	assert.Equal(t, "E3003", diags[0].Code)
}

func TestImportUnknownExportIsReported(t *testing.T) {
	c := newTestCompiler()
	c.Modules.LoadModule("util")
	diags := c.CompileModule([]ast.Stmt{
		&ast.ImportStmt{Module: "util", Symbols: []string{"missing"}},
	})
	require.Len(t, diags, 1)
	assert.Equal(t, "E3004", diags[0].Code)
}

func TestModuleExportFinalized(t *testing.T) {
	c := newTestCompiler()
	diags := c.CompileModule([]ast.Stmt{
		&ast.LetStmt{Name: "pi", Type: "f64", Value: &ast.Literal{Kind: "f64", F64: 3.14}, Public: true},
	})
	require.Empty(t, diags)
	c.FinalizeExports()

	e, err := c.Modules.ResolveExport("main", "pi")
	require.NoError(t, err)
	assert.Equal(t, modreg.ExportGlobal, e.Kind)
}
