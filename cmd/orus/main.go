// cmd/orus is a thin embedding example over the runtime package (spec §6's
// host API: vm_init/vm_free/interpret/interpret_module). It is deliberately
// not a port of cmd/sentra's flag surface, REPL, or build tooling: the CLI,
// lexer, and parser are out of scope (spec §1), so there is no front end
// here that turns .orus source text into the ast.Stmt tree runtime.Interpret
// expects. What it does demonstrate, end to end, is the part that IS in
// scope: resolving an import path through the Module Resolver (C10) and
// running a compiled program through the VM (C9).
package main

import (
	"fmt"
	"os"

	"orus/internal/ast"
	"orus/internal/resolver"
	"orus/internal/value"
	runtimevm "orus/internal/vm"
)

func main() {
	if len(os.Args) > 1 {
		resolveAndReport(os.Args[1])
	}
	runDemo()
}

// resolveAndReport exercises the resolver against a real filesystem: a
// caller would use this to locate an import target's source file before
// handing it to a lexer/parser this module doesn't implement.
func resolveAndReport(moduleName string) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "orus: %v\n", err)
		return
	}
	r := resolver.New()
	resolved, err := r.Resolve(cwd+"/<repl>", moduleName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orus: %v\n", err)
		return
	}
	fmt.Printf("resolved %q to %s (%d bytes)\n", moduleName, resolved.AbsPath, len(resolved.Source))
}

// runDemo builds a small hand-constructed program (the same shape a
// lexer/parser would hand to Codegen) and runs it through the VM, printing
// its result — enough to prove the host API wiring works without a front
// end to drive it from real source text.
func runDemo() {
	vm := runtimevm.New()
	defer vm.Close()

	stmts := []ast.Stmt{
		&ast.LetStmt{Name: "a", Type: "i32", Value: &ast.Literal{Kind: "i32", I32: 6}},
		&ast.LetStmt{Name: "b", Type: "i32", Value: &ast.Literal{Kind: "i32", I32: 7}},
		&ast.ReturnStmt{
			Value: &ast.Binary{
				Op:    "*",
				Left:  &ast.Variable{Name: "a", Type: "i32"},
				Right: &ast.Variable{Name: "b", Type: "i32"},
				Type:  "i32",
			},
		},
	}

	result, err := vm.Interpret("main", "<embedded>", stmts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orus: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value.PrintValue(result))
}
