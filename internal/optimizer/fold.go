package optimizer

import "orus/internal/ast"

// ConstantFoldPass walks every statement's expression tree and replaces
// literal-only Binary/Unary subtrees with a single folded Literal,
// preserving the original node's resolved type (spec §4.7: "constant
// folding evaluates literal-only arithmetic subtrees into new literal
// nodes preserving type").
func ConstantFoldPass(stmts []ast.Stmt, ctx *Context) Result {
	res := Result{Success: true}
	for _, s := range stmts {
		foldStmt(s, &res)
	}
	return res
}

func foldStmt(s ast.Stmt, res *Result) {
	switch v := s.(type) {
	case *ast.ExprStmt:
		v.X = foldExpr(v.X, res)
	case *ast.PrintStmt:
		for i, a := range v.Args {
			v.Args[i] = foldExpr(a, res)
		}
	case *ast.LetStmt:
		if v.Value != nil {
			v.Value = foldExpr(v.Value, res)
		}
	case *ast.AssignStmt:
		v.Value = foldExpr(v.Value, res)
		if v.Key != nil {
			v.Key = foldExpr(v.Key, res)
		}
	case *ast.BlockStmt:
		foldStmt2(v.Stmts, res)
	case *ast.IfStmt:
		v.Cond = foldExpr(v.Cond, res)
		foldStmt2(v.Then, res)
		foldStmt2(v.Else, res)
	case *ast.WhileStmt:
		v.Cond = foldExpr(v.Cond, res)
		foldStmt2(v.Body, res)
	case *ast.ForRangeStmt:
		v.Start = foldExpr(v.Start, res)
		v.Limit = foldExpr(v.Limit, res)
		if v.Step != nil {
			v.Step = foldExpr(v.Step, res)
		}
		foldStmt2(v.Body, res)
	case *ast.ForInStmt:
		v.Iterable = foldExpr(v.Iterable, res)
		foldStmt2(v.Body, res)
	case *ast.ReturnStmt:
		if v.Value != nil {
			v.Value = foldExpr(v.Value, res)
		}
	case *ast.TryStmt:
		foldStmt2(v.Body, res)
		foldStmt2(v.CatchBody, res)
	case *ast.ThrowStmt:
		v.Value = foldExpr(v.Value, res)
	case *ast.FunctionDecl:
		foldStmt2(v.Body, res)
	}
}

func foldStmt2(stmts []ast.Stmt, res *Result) {
	for _, s := range stmts {
		foldStmt(s, res)
	}
}

func foldExpr(e ast.Expr, res *Result) ast.Expr {
	switch v := e.(type) {
	case *ast.Binary:
		v.Left = foldExpr(v.Left, res)
		v.Right = foldExpr(v.Right, res)
		if lit, ok := foldBinary(v); ok {
			res.ConstantsFolded++
			res.BinaryExpressionsFolded++
			res.OptimizationsApplied++
			return lit
		}
		return v
	case *ast.Unary:
		v.Operand = foldExpr(v.Operand, res)
		if lit, ok := foldUnary(v); ok {
			res.ConstantsFolded++
			res.OptimizationsApplied++
			return lit
		}
		return v
	case *ast.Call:
		v.Callee = foldExpr(v.Callee, res)
		for i, a := range v.Args {
			v.Args[i] = foldExpr(a, res)
		}
		return v
	case *ast.Index:
		v.Collection = foldExpr(v.Collection, res)
		v.Key = foldExpr(v.Key, res)
		return v
	case *ast.Member:
		v.Target = foldExpr(v.Target, res)
		return v
	case *ast.RangeExpr:
		v.Start = foldExpr(v.Start, res)
		v.Limit = foldExpr(v.Limit, res)
		if v.Step != nil {
			v.Step = foldExpr(v.Step, res)
		}
		return v
	default:
		return e
	}
}

// foldBinary evaluates a Binary node whose operands are both Literal,
// matching the type widening rules of spec §4.8 so the folded constant
// agrees with what dispatch would compute at runtime.
func foldBinary(b *ast.Binary) (*ast.Literal, bool) {
	l, lok := b.Left.(*ast.Literal)
	r, rok := b.Right.(*ast.Literal)
	if !lok || !rok || l.Kind != r.Kind {
		return nil, false
	}
	switch l.Kind {
	case "i32":
		return foldI32(b.Op, l.I32, r.I32, b.Pos)
	case "i64":
		return foldI64(b.Op, l.I64, r.I64, b.Pos)
	case "f64":
		return foldF64(b.Op, l.F64, r.F64, b.Pos)
	case "bool":
		return foldBool(b.Op, l.Bool, r.Bool, b.Pos)
	default:
		return nil, false
	}
}

// foldI32 leaves a result outside the i32 range unfolded, so dispatch widens
// it to i64 at runtime.
func foldI32(op string, a, c int32, pos ast.Pos) (*ast.Literal, bool) {
	const maxI32, minI32 = int64(1)<<31 - 1, -int64(1) << 31
	switch op {
	case "+":
		if s := int64(a) + int64(c); s > maxI32 || s < minI32 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i32", I32: a + c}, true
	case "-":
		if d := int64(a) - int64(c); d > maxI32 || d < minI32 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i32", I32: a - c}, true
	case "*":
		if p := int64(a) * int64(c); p > maxI32 || p < minI32 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i32", I32: a * c}, true
	case "/":
		if c == 0 || (int64(a) == minI32 && c == -1) {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i32", I32: a / c}, true
	case "%":
		if c == 0 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i32", I32: a % c}, true
	case "<":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a < c}, true
	case "<=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a <= c}, true
	case ">":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a > c}, true
	case ">=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a >= c}, true
	case "==":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a == c}, true
	case "!=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a != c}, true
	default:
		return nil, false
	}
}

// foldI64 leaves an overflowing + - * unfolded, so dispatch raises its
// integer-overflow error at runtime.
func foldI64(op string, a, c int64, pos ast.Pos) (*ast.Literal, bool) {
	switch op {
	case "+":
		if s := a + c; (a > 0 && c > 0 && s < 0) || (a < 0 && c < 0 && s > 0) {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i64", I64: a + c}, true
	case "-":
		if d := a - c; (a >= 0 && c < 0 && d < 0) || (a < 0 && c > 0 && d >= 0) {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i64", I64: a - c}, true
	case "*":
		if c != 0 && (a*c)/c != a {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i64", I64: a * c}, true
	case "/":
		if c == 0 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i64", I64: a / c}, true
	case "%":
		if c == 0 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "i64", I64: a % c}, true
	case "<":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a < c}, true
	case "<=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a <= c}, true
	case ">":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a > c}, true
	case ">=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a >= c}, true
	case "==":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a == c}, true
	case "!=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a != c}, true
	default:
		return nil, false
	}
}

func foldF64(op string, a, c float64, pos ast.Pos) (*ast.Literal, bool) {
	switch op {
	case "+":
		return &ast.Literal{Pos: pos, Kind: "f64", F64: a + c}, true
	case "-":
		return &ast.Literal{Pos: pos, Kind: "f64", F64: a - c}, true
	case "*":
		return &ast.Literal{Pos: pos, Kind: "f64", F64: a * c}, true
	case "/":
		if c == 0 {
			return nil, false
		}
		return &ast.Literal{Pos: pos, Kind: "f64", F64: a / c}, true
	case "<":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a < c}, true
	case "<=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a <= c}, true
	case ">":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a > c}, true
	case ">=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a >= c}, true
	case "==":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a == c}, true
	case "!=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a != c}, true
	default:
		return nil, false
	}
}

func foldBool(op string, a, c bool, pos ast.Pos) (*ast.Literal, bool) {
	switch op {
	case "==":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a == c}, true
	case "!=":
		return &ast.Literal{Pos: pos, Kind: "bool", Bool: a != c}, true
	default:
		return nil, false
	}
}

func foldUnary(u *ast.Unary) (*ast.Literal, bool) {
	lit, ok := u.Operand.(*ast.Literal)
	if !ok {
		return nil, false
	}
	switch u.Op {
	case "-":
		switch lit.Kind {
		case "i32":
			return &ast.Literal{Pos: u.Pos, Kind: "i32", I32: -lit.I32}, true
		case "i64":
			return &ast.Literal{Pos: u.Pos, Kind: "i64", I64: -lit.I64}, true
		case "f64":
			return &ast.Literal{Pos: u.Pos, Kind: "f64", F64: -lit.F64}, true
		default:
			return nil, false
		}
	case "!":
		if lit.Kind != "bool" {
			return nil, false
		}
		return &ast.Literal{Pos: u.Pos, Kind: "bool", Bool: !lit.Bool}, true
	default:
		return nil, false
	}
}
