package optimizer

import "orus/internal/ast"

// TypeAffinityPass walks every loop and records, for each numeric-typed
// variable on the left of a while loop's condition or assigned a
// numeric-typed binary expression in its body (and for each for-range loop
// variable), the typed register bank that variable should prefer (spec §4.7: "loop type affinity
// and residency analyses attach per-loop plans"; these plans are the same
// residency hints register.File's typed banks act on). Loops are numbered
// in depth-first traversal order, the same order Codegen assigns its own
// loop IDs in, so LoopPlan indices line up with the loop a later compiler
// pass is working on.
func TypeAffinityPass(stmts []ast.Stmt, ctx *Context) Result {
	res := Result{Success: true}
	counter := 0
	walkAffinity(stmts, ctx, &counter, &res)
	return res
}

func walkAffinity(stmts []ast.Stmt, ctx *Context, counter *int, res *Result) {
	for _, s := range stmts {
		switch v := s.(type) {
		case *ast.WhileStmt:
			id := *counter
			*counter++
			plan := analyzeLoopBody(v.Cond, v.Body)
			if len(plan) > 0 {
				ctx.LoopPlans[id] = &LoopPlan{LoopID: id, BankByName: plan}
				res.OptimizationsApplied++
			}
			walkAffinity(v.Body, ctx, counter, res)
		case *ast.ForRangeStmt:
			id := *counter
			*counter++
			bank := ""
			if lit, ok := v.Start.(*ast.Literal); ok {
				bank = lit.Kind
			} else if lit, ok := v.Limit.(*ast.Literal); ok {
				bank = lit.Kind
			}
			if bank == "" {
				bank = "i32"
			}
			ctx.LoopPlans[id] = &LoopPlan{LoopID: id, BankByName: map[string]string{v.Var: bank}}
			res.OptimizationsApplied++
			walkAffinity(v.Body, ctx, counter, res)
		case *ast.ForInStmt:
			*counter++
			walkAffinity(v.Body, ctx, counter, res)
		case *ast.IfStmt:
			walkAffinity(v.Then, ctx, counter, res)
			walkAffinity(v.Else, ctx, counter, res)
		case *ast.BlockStmt:
			walkAffinity(v.Stmts, ctx, counter, res)
		case *ast.TryStmt:
			walkAffinity(v.Body, ctx, counter, res)
			walkAffinity(v.CatchBody, ctx, counter, res)
		case *ast.FunctionDecl:
			walkAffinity(v.Body, ctx, counter, res)
		}
	}
}

// analyzeLoopBody looks for the common counter-loop shape (a numeric-typed
// variable on the left of Cond's comparison, and any name assigned a
// numeric-typed binary expression in the body) and returns the bank each
// such variable should be resident in.
func analyzeLoopBody(cond ast.Expr, body []ast.Stmt) map[string]string {
	plan := map[string]string{}
	if b, ok := cond.(*ast.Binary); ok {
		if v, ok := b.Left.(*ast.Variable); ok {
			if isNumericKind(v.Type) {
				plan[v.Name] = v.Type
			}
		}
	}
	for _, s := range body {
		if a, ok := s.(*ast.AssignStmt); ok && a.Target == ast.AssignName {
			if bin, ok := a.Value.(*ast.Binary); ok && isNumericKind(bin.Type) {
				plan[a.Name] = bin.Type
			}
		}
	}
	return plan
}

func isNumericKind(k string) bool {
	switch k {
	case "i32", "i64", "u32", "u64", "f64":
		return true
	default:
		return false
	}
}
