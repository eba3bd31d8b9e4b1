// Package runtime implements Orus's Call/Exception Mechanics (C9): the
// piece that turns Dispatch's CallFunc hook into real function calls over a
// shared register file, plus the host embedding API (spec §6's vm_init/
// vm_free/interpret/interpret_module contract).
//
// Grounded on vmregister.RegisterVM's CallFrame/TryFrame layout and
// NewRegisterVM's constructor (maxCallDepth: 2000), and on cmd/sentra/
// main.go's compile-then-Execute driving sequence. The teacher rebases
// each CallFrame's registers at a fresh regBase; register.File's index
// space is shared and absolute across a whole compiled program instead
// (spec §4.4), so this package gets the same "a recursive call can't see
// an outer activation's locals" guarantee by saving and restoring each
// Function's own FrameLo:FrameHi/TempLo:TempHi window around every call
// (codegen.Function's watermark fields), rather than by offsetting reads.
package runtime

import (
	"fmt"

	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/codegen"
	"orus/internal/diag"
	"orus/internal/dispatch"
	"orus/internal/modreg"
	"orus/internal/register"
	"orus/internal/rope"
	"orus/internal/value"
)

// defaultMaxCallDepth mirrors vmregister.NewRegisterVM's maxCallDepth.
const defaultMaxCallDepth = 2000

// CompileError wraps every diagnostic accumulated during a failed compile
// (spec §7: "compile-time errors accumulate... compilation continues where
// tractable" — the host surfaces the whole batch, not just the first).
type CompileError struct {
	Module      string
	Diagnostics []*diag.Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].Error()
	}
	msg := fmt.Sprintf("%d compile errors in module %q:", len(e.Diagnostics), e.Module)
	for _, d := range e.Diagnostics {
		msg += "\n  " + d.Error()
	}
	return msg
}

// VM is the embedding surface (spec §6): one shared register file and
// module manager, a growing function table every compiled Program appends
// to, and the dispatch Machine those Functions run against.
type VM struct {
	Regs    *register.File
	Modules *modreg.Manager
	Machine *dispatch.Machine

	// Functions is indexed by the *global* function index every compiled
	// Program's OP_LOAD_CONST+value.BoxFunction constants are rewritten to
	// point at (see registerFunctions and remapFunctionConstants): codegen.Compiler numbers functions
	// 0..N-1 per-compile, but one VM can compile many Programs into the
	// same shared call space, so each Program's local indices are offset
	// by len(Functions) at registration time.
	Functions []*codegen.Function

	MaxCallDepth int
	depth        int
	closed       bool
}

// New creates a VM with its own register file, module manager, and dispatch
// Machine, and binds the fixed builtin intrinsic table (spec §5.1: len,
// print, type_of) plus the "__raise__" throw intrinsic.
func New() *VM {
	regs := register.New()
	vm := &VM{
		Regs:         regs,
		Modules:      modreg.NewManager(),
		MaxCallDepth: defaultMaxCallDepth,
	}
	vm.Machine = dispatch.NewMachine(regs, vm.call)
	vm.Machine.Print = func(text string, newline bool) {
		if newline {
			fmt.Println(text)
		} else {
			fmt.Print(text)
		}
	}
	vm.registerBuiltins()
	return vm
}

// Close releases the VM. Idempotent, matching FileObj's closed-flag
// convention elsewhere in this codebase.
func (vm *VM) Close() error {
	vm.closed = true
	return nil
}

// Interpret compiles stmts as the program's entry module and runs its
// top-level body to completion. A top-level `return` yields that value;
// otherwise execution falls through to OP_HALT and Interpret returns nil.
// Grounded on vmregister.(*RegisterVM).Run being handed the freshly
// compiled main chunk by cmd/sentra/main.go.
func (vm *VM) Interpret(name, file string, stmts []ast.Stmt) (value.Value, error) {
	return vm.compileAndRun(name, file, stmts)
}

// InterpretModule compiles stmts as a named, importable module (its
// exports become visible to later Interpret/InterpretModule calls sharing
// this VM's Modules manager) and runs its top-level body so module-level
// `let`/`fn` initializers execute before anything imports from it (spec
// §4.6: imports resolve against a module's *compiled* export table).
func (vm *VM) InterpretModule(name, file string, stmts []ast.Stmt) (value.Value, error) {
	return vm.compileAndRun(name, file, stmts)
}

func (vm *VM) compileAndRun(name, file string, stmts []ast.Stmt) (value.Value, error) {
	if vm.closed {
		return value.BoxNil(), fmt.Errorf("runtime: VM is closed")
	}
	c := codegen.New(name, file, vm.Regs, vm.Modules)
	diags := c.CompileModule(stmts)
	if len(diags) > 0 {
		return value.BoxNil(), &CompileError{Module: name, Diagnostics: diags}
	}
	c.FinalizeExports()

	vm.registerFunctions(c.Functions)
	remapFunctionConstants(c.Buf, vm.functionOffset(len(c.Functions)))
	for _, fn := range c.Functions {
		remapFunctionConstants(fn.Buf, vm.functionOffset(len(c.Functions)))
	}

	return dispatch.Run(vm.Machine, c.Buf, 0)
}

// registerFunctions appends fns to the VM's global function table. Must be
// called before remapFunctionConstants (which needs the pre-registration
// offset) — see functionOffset.
func (vm *VM) registerFunctions(fns []*codegen.Function) {
	vm.Functions = append(vm.Functions, fns...)
}

// functionOffset returns the global index the most recently registered
// batch of n functions starts at (i.e. len(Functions)-n), since
// registerFunctions already appended them by the time remap runs.
func (vm *VM) functionOffset(n int) int { return len(vm.Functions) - n }

// remapFunctionConstants rewrites every value.BoxFunction(localIdx)
// constant in buf's pool to the VM-global index localIdx+offset, so
// OP_CLOSURE_R (which loads a function constant and indexes vm.Functions
// with it) sees the right Function regardless of which Program declared
// it. value.FunctionRef carries no module tag of its own (spec §3's
// Function variant is a bare int), so this offset rewrite is how cross-
// Program call targets stay distinguishable in one VM's shared table.
func remapFunctionConstants(buf *code.Buffer, offset int) {
	if offset == 0 {
		return
	}
	for i, v := range buf.Constants {
		if value.IsFunction(v) {
			buf.Constants[i] = value.BoxFunction(value.AsFunctionIndex(v) + offset)
		}
	}
}

// registerBuiltins binds the "__raise__" throw intrinsic (spec §5.1's
// compileThrow convention) and the fixed builtin intrinsic table (len,
// print, type_of), each as a global slot pre-populated with a value before
// any compiled code runs — compileVariable only emits OP_GET_GLOBAL for a
// name if register.File.LookupGlobal already knows it, so these slots must
// exist before the first module compiles.
func (vm *VM) registerBuiltins() {
	raiseSlot := vm.Regs.AllocGlobal("__raise__")
	vm.Machine.Set(raiseSlot, value.BoxFunction(value.RaiseIntrinsicIndex))

	vm.bindNative("len", 1, builtinLen)
	vm.bindNative("print", 1, builtinPrint(vm))
	vm.bindNative("type_of", 1, builtinTypeOf)
}

func (vm *VM) bindNative(name string, arity int, fn func([]value.Value) (value.Value, error)) {
	slot := vm.Regs.AllocGlobal(name)
	native := &value.NativeFnObj{Name: name, Arity: arity, Function: fn}
	vm.Machine.Set(slot, value.BoxNativeFn(native))
}

func builtinLen(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.BoxNil(), fmt.Errorf("len: expected 1 argument, got %d", len(args))
	}
	v := args[0]
	switch {
	case value.IsString(v):
		return value.BoxI32(int32(value.AsString(v).Len())), nil
	case value.IsArray(v):
		return value.BoxI32(int32(value.AsArray(v).Len())), nil
	case value.IsBytes(v):
		return value.BoxI32(int32(len(value.AsBytes(v).Data))), nil
	default:
		return value.BoxNil(), fmt.Errorf("len: unsupported kind %s", value.KindOf(v))
	}
}

func builtinPrint(vm *VM) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			if vm.Machine.Print != nil {
				vm.Machine.Print(value.PrintValue(a), true)
			}
		}
		return value.BoxNil(), nil
	}
}

func builtinTypeOf(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.BoxNil(), fmt.Errorf("type_of: expected 1 argument, got %d", len(args))
	}
	name := value.KindOf(args[0]).String()
	return value.BoxString(value.NewStringFromRope(rope.Intern(name))), nil
}
