package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orus/internal/ast"
)

func TestConstantFoldBinaryI32(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ExprStmt{X: &ast.Binary{
			Op: "+", Type: "i32",
			Left:  &ast.Literal{Kind: "i32", I32: 2},
			Right: &ast.Literal{Kind: "i32", I32: 3},
		}},
	}
	res := ConstantFoldPass(stmts, NewContext())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.ConstantsFolded)

	lit, ok := stmts[0].(*ast.ExprStmt).X.(*ast.Literal)
	require.True(t, ok, "expected the binary expression to fold into a literal")
	assert.Equal(t, int32(5), lit.I32)
	assert.Equal(t, "i32", lit.Kind)
}

func TestConstantFoldSkipsDivisionByZero(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ExprStmt{X: &ast.Binary{
			Op: "/", Type: "i32",
			Left:  &ast.Literal{Kind: "i32", I32: 7},
			Right: &ast.Literal{Kind: "i32", I32: 0},
		}},
	}
	res := ConstantFoldPass(stmts, NewContext())
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ConstantsFolded)
	_, stillBinary := stmts[0].(*ast.ExprStmt).X.(*ast.Binary)
	assert.True(t, stillBinary, "division by zero must not be folded away")
}

func TestConstantFoldSkipsNonLiteralOperand(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ExprStmt{X: &ast.Binary{
			Op: "+", Type: "i32",
			Left:  &ast.Variable{Name: "x", Type: "i32"},
			Right: &ast.Literal{Kind: "i32", I32: 1},
		}},
	}
	res := ConstantFoldPass(stmts, NewContext())
	assert.Equal(t, 0, res.ConstantsFolded)
}

func TestConstantFoldNestedBinary(t *testing.T) {
	// (1 + 2) * 3 should fold the inner sum first, then the product.
	inner := &ast.Binary{Op: "+", Type: "i32", Left: &ast.Literal{Kind: "i32", I32: 1}, Right: &ast.Literal{Kind: "i32", I32: 2}}
	outer := &ast.Binary{Op: "*", Type: "i32", Left: inner, Right: &ast.Literal{Kind: "i32", I32: 3}}
	stmts := []ast.Stmt{&ast.ExprStmt{X: outer}}

	res := ConstantFoldPass(stmts, NewContext())
	assert.Equal(t, 2, res.BinaryExpressionsFolded)

	lit := stmts[0].(*ast.ExprStmt).X.(*ast.Literal)
	assert.Equal(t, int32(9), lit.I32)
}

func TestConstantFoldUnaryNegation(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.ExprStmt{X: &ast.Unary{Op: "-", Type: "i32", Operand: &ast.Literal{Kind: "i32", I32: 4}}},
	}
	ConstantFoldPass(stmts, NewContext())
	lit := stmts[0].(*ast.ExprStmt).X.(*ast.Literal)
	assert.Equal(t, int32(-4), lit.I32)
}

func TestTypeAffinityRecordsCounterLoop(t *testing.T) {
	stmts := []ast.Stmt{
		&ast.WhileStmt{
			Cond: &ast.Binary{Op: "<", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: &ast.Literal{Kind: "i32", I32: 10}},
			Body: []ast.Stmt{
				&ast.AssignStmt{
					Target: ast.AssignName,
					Name:   "i",
					Value:  &ast.Binary{Op: "+", Type: "i32", Left: &ast.Variable{Name: "i", Type: "i32"}, Right: &ast.Literal{Kind: "i32", I32: 1}},
				},
			},
		},
	}
	ctx := NewContext()
	res := TypeAffinityPass(stmts, ctx)
	require.True(t, res.Success)
	require.Contains(t, ctx.LoopPlans, 0)
	assert.Equal(t, "i32", ctx.LoopPlans[0].BankByName["i"])
}

func TestRegistryRunsEnabledPassesInOrder(t *testing.T) {
	r := NewRegistry()
	stmts := []ast.Stmt{
		&ast.ExprStmt{X: &ast.Binary{Op: "+", Type: "i32", Left: &ast.Literal{Kind: "i32", I32: 1}, Right: &ast.Literal{Kind: "i32", I32: 1}}},
	}
	results := r.Run(stmts, NewContext())
	require.Len(t, results, 2) // constant-folding, loop-type-affinity (the other two are disabled by default)
	for _, res := range results {
		assert.True(t, res.Success)
	}
}

func TestRegistryDisabledPassDoesNotRun(t *testing.T) {
	r := NewRegistry()
	r.SetEnabled("loop-type-affinity", false)
	results := r.Run(nil, NewContext())
	assert.Len(t, results, 1)
}
