package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orus/internal/ast"
	"orus/internal/value"
)

func i32lit(v int32) *ast.Literal { return &ast.Literal{Kind: "i32", I32: v} }

func TestInterpretRunsTopLevelStatements(t *testing.T) {
	vm := New()
	defer vm.Close()

	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "x", Type: "i32", Value: i32lit(2)},
		&ast.LetStmt{Name: "y", Type: "i32", Value: i32lit(3)},
		&ast.ReturnStmt{Value: &ast.Binary{Op: "+", Left: &ast.Variable{Name: "x", Type: "i32"}, Right: &ast.Variable{Name: "y", Type: "i32"}, Type: "i32"}},
	}

	result, err := vm.Interpret("main", "<test>", stmts)
	require.NoError(t, err)
	assert.Equal(t, int32(5), value.AsI32(result))
}

// TestRecursiveFunctionCallDoesNotClobberOuterActivation exercises the
// register-window save/restore mechanism call.go implements: factorial(6)
// recurses 6 deep into the very same compiled Function, so each activation
// must see its own `n` rather than whatever the innermost call left behind
// in the shared absolute register window.
func TestRecursiveFunctionCallDoesNotClobberOuterActivation(t *testing.T) {
	vm := New()
	defer vm.Close()

	factorial := &ast.FunctionDecl{
		Name:       "factorial",
		Params:     []ast.Param{{Name: "n", Type: "i32"}},
		ReturnType: "i32",
		Body: []ast.Stmt{
			&ast.IfStmt{
				Cond: &ast.Binary{Op: "<=", Left: &ast.Variable{Name: "n", Type: "i32"}, Right: i32lit(1), Type: "bool"},
				Then: []ast.Stmt{&ast.ReturnStmt{Value: i32lit(1)}},
			},
			&ast.ReturnStmt{
				Value: &ast.Binary{
					Op:   "*",
					Left: &ast.Variable{Name: "n", Type: "i32"},
					Right: &ast.Call{
						Callee: &ast.Variable{Name: "factorial", Type: "function"},
						Args: []ast.Expr{
							&ast.Binary{Op: "-", Left: &ast.Variable{Name: "n", Type: "i32"}, Right: i32lit(1), Type: "i32"},
						},
					},
					Type: "i32",
				},
			},
		},
	}

	stmts := []ast.Stmt{
		factorial,
		&ast.ReturnStmt{
			Value: &ast.Call{
				Callee: &ast.Variable{Name: "factorial", Type: "function"},
				Args:   []ast.Expr{i32lit(6)},
			},
		},
	}

	result, err := vm.Interpret("main", "<test>", stmts)
	require.NoError(t, err)
	assert.Equal(t, int32(720), value.AsI32(result))
}

func TestInterpretModuleExportsAreImportable(t *testing.T) {
	vm := New()
	defer vm.Close()

	mathMod := []ast.Stmt{
		&ast.LetStmt{Name: "PI_APPROX", Type: "i32", Value: i32lit(3), Public: true},
	}
	_, err := vm.InterpretModule("math", "<math>", mathMod)
	require.NoError(t, err)

	main := []ast.Stmt{
		&ast.ImportStmt{Module: "math", Symbols: []string{"PI_APPROX"}},
		&ast.ReturnStmt{Value: &ast.Variable{Name: "PI_APPROX", Type: "i32"}},
	}
	result, err := vm.Interpret("main", "<test>", main)
	require.NoError(t, err)
	assert.Equal(t, int32(3), value.AsI32(result))
}

func TestBuiltinLenAndTypeOf(t *testing.T) {
	vm := New()
	defer vm.Close()

	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "s", Type: "string", Value: &ast.Literal{Kind: "string", Str: "hello"}},
		&ast.ReturnStmt{
			Value: &ast.Call{
				Callee: &ast.Variable{Name: "len", Type: "function"},
				Args:   []ast.Expr{&ast.Variable{Name: "s", Type: "string"}},
			},
		},
	}
	result, err := vm.Interpret("main", "<test>", stmts)
	require.NoError(t, err)
	assert.Equal(t, int32(5), value.AsI32(result))

	stmts2 := []ast.Stmt{
		&ast.ReturnStmt{
			Value: &ast.Call{
				Callee: &ast.Variable{Name: "type_of", Type: "function"},
				Args:   []ast.Expr{i32lit(1)},
			},
		},
	}
	vm2 := New()
	defer vm2.Close()
	result2, err := vm2.Interpret("main", "<test>", stmts2)
	require.NoError(t, err)
	require.True(t, value.IsString(result2))
	assert.Equal(t, "i32", string(value.AsString(result2).EnsureChars()))
}

func TestCallDepthOverflowReturnsError(t *testing.T) {
	vm := New()
	defer vm.Close()
	vm.MaxCallDepth = 10

	loop := &ast.FunctionDecl{
		Name:       "loop",
		Params:     []ast.Param{{Name: "n", Type: "i32"}},
		ReturnType: "i32",
		Body: []ast.Stmt{
			&ast.ReturnStmt{
				Value: &ast.Call{
					Callee: &ast.Variable{Name: "loop", Type: "function"},
					Args:   []ast.Expr{&ast.Variable{Name: "n", Type: "i32"}},
				},
			},
		},
	}
	stmts := []ast.Stmt{
		loop,
		&ast.ReturnStmt{
			Value: &ast.Call{
				Callee: &ast.Variable{Name: "loop", Type: "function"},
				Args:   []ast.Expr{i32lit(0)},
			},
		},
	}

	_, err := vm.Interpret("main", "<test>", stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack overflow")
}
