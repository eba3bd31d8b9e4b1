// Package optimizer implements Orus's optimizer pass registry (C7, spec
// §4.7): named, independently toggleable passes over the typed AST,
// constant folding, and loop residency planning that Codegen (C6) consults.
//
// Grounded on the teacher's convention of keeping independent compiler
// concerns in sibling files under internal/compiler/ rather than one
// monolithic pass — this package generalizes that into an explicit registry
// of named Pass values, since no example repo ships a pluggable optimizer
// pass list this narrowly scoped.
package optimizer

import "orus/internal/ast"

// Result reports one pass's outcome (spec §4.7's {success,
// optimizations_applied, nodes_eliminated, constants_folded,
// binary_expressions_folded}).
type Result struct {
	Success                bool
	OptimizationsApplied   int
	NodesEliminated        int
	ConstantsFolded        int
	BinaryExpressionsFolded int
	Err                    error
}

// Context carries whatever per-compilation state a pass needs; residency
// planning attaches its output here for Codegen to read back.
type Context struct {
	LoopPlans map[int]*LoopPlan
}

func NewContext() *Context {
	return &Context{LoopPlans: make(map[int]*LoopPlan)}
}

// LoopPlan records a binding's preferred typed bank for one loop, derived
// by TypeAffinityPass (spec §4.7 "loop type affinity and residency
// analyses attach per-loop plans").
type LoopPlan struct {
	LoopID      int
	BankByName  map[string]string // variable name -> preferred bank ("i32","i64","f64",...)
}

// PassFunc runs one optimization over stmts, returning its Result. Passes
// never remove spec-visible side effects; constant folding especially must
// preserve the folded literal's type (spec §4.7).
type PassFunc func(stmts []ast.Stmt, ctx *Context) Result

// Pass is one named, independently enabled registry entry.
type Pass struct {
	Name    string
	Enabled bool
	Run     PassFunc
}

// Registry runs its passes in registration order. A failing pass is logged
// (via its Result.Err) but never aborts the pipeline (spec §4.7).
type Registry struct {
	passes []*Pass
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Register("constant-folding", true, ConstantFoldPass)
	r.Register("loop-type-affinity", true, TypeAffinityPass)
	r.Register("dead-code-elimination", false, deadCodePass)
	r.Register("common-subexpression-elimination", false, cseePass)
	return r
}

func (r *Registry) Register(name string, enabled bool, fn PassFunc) {
	r.passes = append(r.passes, &Pass{Name: name, Enabled: enabled, Run: fn})
}

func (r *Registry) SetEnabled(name string, enabled bool) {
	for _, p := range r.passes {
		if p.Name == name {
			p.Enabled = enabled
			return
		}
	}
}

// Run executes every enabled pass in registration order over stmts
// (mutated in place where a pass folds nodes), returning one Result per
// pass actually run.
func (r *Registry) Run(stmts []ast.Stmt, ctx *Context) []Result {
	var results []Result
	for _, p := range r.passes {
		if !p.Enabled {
			continue
		}
		results = append(results, p.Run(stmts, ctx))
	}
	return results
}

// dead-code-elimination and common-subexpression-elimination are declared
// registry entries with no-op bodies (spec §4.7: "Dead-code elimination and
// CSE are declared but no-op").
func deadCodePass(stmts []ast.Stmt, ctx *Context) Result { return Result{Success: true} }
func cseePass(stmts []ast.Stmt, ctx *Context) Result     { return Result{Success: true} }
