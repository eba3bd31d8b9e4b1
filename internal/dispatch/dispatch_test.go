package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/codegen"
	"orus/internal/modreg"
	"orus/internal/register"
	"orus/internal/value"
)

func i32lit(v int32) *ast.Literal { return &ast.Literal{Kind: "i32", I32: v} }

// compileAndRun lowers stmts through a fresh Compiler and executes the
// result on a fresh Machine, returning the collected print output and
// Run's (value, error) pair.
func compileAndRun(t *testing.T, stmts []ast.Stmt) (string, value.Value, error) {
	t.Helper()
	regs := register.New()
	c := codegen.New("main", "<test>", regs, modreg.NewManager())
	diags := c.CompileModule(stmts)
	require.Empty(t, diags)
	require.Empty(t, c.Buf.AllUnresolved())

	m := NewMachine(regs, nil)
	var out string
	m.Print = func(text string, newline bool) {
		out += text
		if newline {
			out += "\n"
		}
	}
	if slot, ok := regs.LookupGlobal("__raise__"); ok {
		m.Set(slot, value.BoxFunction(value.RaiseIntrinsicIndex))
	}
	v, err := Run(m, c.Buf, 0)
	return out, v, err
}

func TestArithmeticWidensI32OverflowToI64(t *testing.T) {
	buf := code.New()
	a := buf.AddConstant(value.BoxI32(2000000000))
	b := buf.AddConstant(value.BoxI32(2000000000))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 0, a)
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 1, b)
	buf.EmitInstruction(code.OP_ADD_R, 2, 0, 1)
	buf.EmitInstruction(code.OP_RETURN_R, 2)

	m := NewMachine(register.New(), nil)
	result, err := Run(m, buf, 0)
	require.NoError(t, err)
	require.True(t, value.IsI64(result))
	assert.Equal(t, int64(4000000000), value.AsI64(result))
}

func TestDivisionByZeroIsCatchableAsValueError(t *testing.T) {
	buf := code.New()
	one := buf.AddConstant(value.BoxI32(1))
	zero := buf.AddConstant(value.BoxI32(0))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 0, one)
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 1, zero)

	beginIdx := buf.AllocateTryBegin(2) // catch register 2
	buf.EmitInstruction(code.OP_DIV_R, 3, 0, 1)
	buf.EmitInstruction(code.OP_TRY_END)
	skip := buf.AllocateJumpPlaceholder(code.OP_JUMP)
	require.NoError(t, buf.PatchJump(beginIdx, buf.Count()))
	buf.EmitInstruction(code.OP_RETURN_R, 2)
	require.NoError(t, buf.PatchJump(skip, buf.Count()))
	buf.EmitInstruction(code.OP_LOAD_NIL, 4)
	buf.EmitInstruction(code.OP_RETURN_R, 4)

	m := NewMachine(register.New(), nil)
	result, err := Run(m, buf, 0)
	require.NoError(t, err)
	require.True(t, value.IsError(result))
	assert.Equal(t, value.ErrValue, value.AsError(result).Kind)
	assert.Contains(t, value.AsError(result).Message, "division by zero")
}

func TestDivisionOfI32MinByNegOnePromotesToI64(t *testing.T) {
	buf := code.New()
	minVal := buf.AddConstant(value.BoxI32(-2147483648))
	negOne := buf.AddConstant(value.BoxI32(-1))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 0, minVal)
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 1, negOne)
	buf.EmitInstruction(code.OP_DIV_R, 2, 0, 1)
	buf.EmitInstruction(code.OP_RETURN_R, 2)

	m := NewMachine(register.New(), nil)
	result, err := Run(m, buf, 0)
	require.NoError(t, err)
	require.True(t, value.IsI64(result))
	assert.Equal(t, int64(2147483648), value.AsI64(result))
}

func TestArrayPushLenAndGet(t *testing.T) {
	buf := code.New()
	zero := buf.AddConstant(value.BoxI32(0))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 0, zero) // capacity hint reg
	buf.EmitInstruction(code.OP_NEW_ARRAY, 1, 0)          // arr = new array

	v1 := buf.AddConstant(value.BoxI32(10))
	v2 := buf.AddConstant(value.BoxI32(20))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 2, v1)
	buf.EmitInstruction(code.OP_ARRAY_PUSH_R, 1, 2)
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 2, v2)
	buf.EmitInstruction(code.OP_ARRAY_PUSH_R, 1, 2)

	buf.EmitInstruction(code.OP_ARRAY_LEN_R, 3, 1)

	idx := buf.AddConstant(value.BoxI32(1))
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 4, idx)
	buf.EmitInstruction(code.OP_ARRAY_GET_R, 5, 1, 4)

	buf.EmitInstruction(code.OP_HALT)

	m := NewMachine(register.New(), nil)
	_, err := Run(m, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), value.AsI32(m.Get(3)))
	assert.Equal(t, int32(20), value.AsI32(m.Get(5)))
}

func TestCompiledFusedCounterLoopSumsViaCodegen(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "i", Type: "i32", Value: i32lit(0), Mutable: true},
		&ast.LetStmt{Name: "sum", Type: "i32", Value: i32lit(0), Mutable: true},
		&ast.WhileStmt{
			Cond: &ast.Binary{Op: "<", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: i32lit(5), Type: "bool"},
			Body: []ast.Stmt{
				&ast.AssignStmt{
					Target: ast.AssignName,
					Name:   "sum",
					Value:  &ast.Binary{Op: "+", Left: &ast.Variable{Name: "sum", Type: "i32"}, Right: &ast.Variable{Name: "i", Type: "i32"}, Type: "i32"},
				},
				&ast.AssignStmt{
					Target: ast.AssignName,
					Name:   "i",
					Value:  &ast.Binary{Op: "+", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: i32lit(1), Type: "i32"},
				},
			},
		},
		&ast.PrintStmt{Args: []ast.Expr{&ast.Variable{Name: "sum", Type: "i32"}}, Newline: true},
	}

	out, _, err := compileAndRun(t, stmts)
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestCompiledTryCatchBindsThrownValue(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.TryStmt{
			Body:      []ast.Stmt{&ast.ThrowStmt{Value: &ast.Literal{Kind: "string", Str: "boom"}}},
			CatchName: "e",
			CatchBody: []ast.Stmt{
				&ast.PrintStmt{Args: []ast.Expr{&ast.Variable{Name: "e", Type: "string"}}, Newline: false},
			},
		},
	}

	out, _, err := compileAndRun(t, stmts)
	require.NoError(t, err)
	assert.Equal(t, "boom", out)
}

func TestUncaughtThrowReturnsRaiseError(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ThrowStmt{Value: &ast.Literal{Kind: "string", Str: "fatal"}},
	}

	_, _, err := compileAndRun(t, stmts)
	require.Error(t, err)
	raiseErr, ok := err.(*RaiseError)
	require.True(t, ok)
	assert.True(t, value.IsString(raiseErr.Val))
}

func TestCallOpcodeInvokesMachineCallHook(t *testing.T) {
	buf := code.New()
	argConst := buf.AddConstant(value.BoxI32(41))
	calleeConst := buf.AddConstant(value.BoxFunction(7))
	buf.EmitInstruction(code.OP_LOAD_CONST, 0, calleeConst)
	buf.EmitInstruction(code.OP_LOAD_I32_CONST, 1, argConst)
	buf.EmitInstruction(code.OP_CALL_R, 0, 1, 1, 2)
	buf.EmitInstruction(code.OP_RETURN_R, 2)

	m := NewMachine(register.New(), func(callee value.Value, args []value.Value) (value.Value, error) {
		require.True(t, value.IsFunction(callee))
		require.Len(t, args, 1)
		return value.BoxI32(value.AsI32(args[0]) + 1), nil
	})
	result, err := Run(m, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(42), value.AsI32(result))
}
