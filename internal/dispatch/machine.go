// Package dispatch implements Orus's Dispatch Core (C8): a switch-based
// per-opcode interpreter over one function's code.Buffer, automatic
// i32->i64->f64 arithmetic widening (spec §4.8), typed-register fast paths,
// the fused counter/iterator opcodes, and structured try/catch unwinding.
//
// Grounded on vmregister/vm.go's run() loop: local hot-variable caching
// (code/consts/registers pulled into locals before the loop), a big switch
// over op with the hottest arithmetic cases first, and explicit tiered
// fallback (int-fast-path -> float-fast-path -> mixed -> string -> error).
// The teacher's JIT warm-up counters, inline caches, and hot-loop profiling
// are not reproduced: that machinery is optimizer-internal profiling spec
// §1 places out of scope.
package dispatch

import (
	"orus/internal/register"
	"orus/internal/value"
)

// CallFunc invokes a callee value with the given arguments, returning its
// result. The owning VM (C9) implements this: pushing/popping a CallFrame,
// wiring closures' captured upvalues, and detecting recursion depth
// overflow. Dispatch only calls through the hook; it never manages frames
// itself (spec keeps Dispatch Core and Call/Exception Mechanics separate).
type CallFunc func(callee value.Value, args []value.Value) (value.Value, error)

// PrintFunc receives one OP_PRINT*-family write: text to emit and whether a
// trailing newline follows. The owning VM wires this to stdout (or a test
// buffer); Dispatch itself performs no I/O.
type PrintFunc func(text string, newline bool)

// Machine is the register-file-backed execution context one Run call
// operates over: a flat, growable boxed-register array (indexed by the same
// absolute indices register.File allocated at compile time) plus the typed
// shadow banks Codegen already warmed via residency hints.
type Machine struct {
	Regs    []value.Value
	RegFile *register.File
	Call    CallFunc
	Print   PrintFunc

	// CurrentClosure is the closure (if any) the function body currently
	// executing was instantiated from; OP_GET_UPVALUE_R/OP_SET_UPVALUE_R
	// read/write through it. The owning VM sets this before calling Run for
	// a closure-bodied frame (spec §4.9's upvalue capture).
	CurrentClosure *value.ClosureObj

	// openUpvalues are upvalues still pointing directly at a live register
	// slot in this Regs array, in capture order (at most one per Slot), so
	// OP_CLOSE_UPVALUE_R can find and graduate them when a scope exits.
	openUpvalues []*value.UpvalueObj

	clockFn func() int64
}

func NewMachine(regFile *register.File, call CallFunc) *Machine {
	return &Machine{RegFile: regFile, Call: call, clockFn: defaultClock}
}

// captureUpvalue returns the open upvalue observing reg, creating one if
// none exists yet (spec §4.9: closures capture by reference until the
// defining scope exits).
func (m *Machine) captureUpvalue(reg int) *value.UpvalueObj {
	for _, uv := range m.openUpvalues {
		if uv.IsOpen() && uv.Slot == reg {
			return uv
		}
	}
	m.ensure(reg)
	uv := value.NewOpenUpvalue(reg, &m.Regs[reg])
	m.openUpvalues = append(m.openUpvalues, uv)
	return uv
}

// closeUpvalue graduates every open upvalue observing reg (or a higher
// slot, matching the teacher's close-from-top-of-stack convention) by
// copying its current value out of the register array.
func (m *Machine) closeUpvalue(reg int) {
	remaining := m.openUpvalues[:0]
	for _, uv := range m.openUpvalues {
		if uv.IsOpen() && uv.Slot >= reg {
			uv.Close()
			continue
		}
		remaining = append(remaining, uv)
	}
	m.openUpvalues = remaining
}

// CloseUpvaluesFrom graduates every open upvalue observing reg or a higher
// slot (the teacher's close-from-top-of-stack convention). The owning VM
// (C9) calls this over a function's own FrameLo before reusing that
// register window for another activation, so a closure returned out of a
// call keeps seeing the value it captured instead of whatever the next
// call happens to leave behind at the same absolute index.
func (m *Machine) CloseUpvaluesFrom(reg int) { m.closeUpvalue(reg) }

func (m *Machine) clock() int64 {
	if m.clockFn != nil {
		return m.clockFn()
	}
	return 0
}

func defaultClock() int64 { return 0 }

func (m *Machine) ensure(reg int) {
	if reg < len(m.Regs) {
		return
	}
	grown := make([]value.Value, reg+1)
	copy(grown, m.Regs)
	for i := len(m.Regs); i <= reg; i++ {
		grown[i] = value.BoxNil()
	}
	m.Regs = grown
}

func (m *Machine) Get(reg int) value.Value {
	if reg >= len(m.Regs) {
		return value.BoxNil()
	}
	return m.Regs[reg]
}

func (m *Machine) Set(reg int, v value.Value) {
	m.ensure(reg)
	m.Regs[reg] = v
}

// RaiseError is an uncaught `throw`/runtime error that escaped every
// try-frame active in the function it originated in, and is propagating up
// through the Go call stack via Run's error return (spec §4.9's "no host
// exceptions" means OP_TRY_BEGIN/OP_TRY_END are the only intra-function
// unwinding mechanism; crossing a function boundary still has to travel
// back to the caller somehow, and an explicit typed error return is how).
type RaiseError struct {
	Val value.Value
}

func (e *RaiseError) Error() string { return "uncaught exception: " + value.PrintValue(e.Val) }

// tryFrame is one live OP_TRY_BEGIN..OP_TRY_END region (spec §4.8 TryFrame):
// CatchPC is where execution resumes on a caught raise, CatchReg is the
// register the caught value is bound to (-1 for "no bound variable").
type tryFrame struct {
	CatchPC  int
	CatchReg int
}
