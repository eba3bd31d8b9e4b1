package runtime

import (
	"fmt"

	"orus/internal/dispatch"
	"orus/internal/value"
)

// call implements dispatch.CallFunc (spec §4.9 Call/Exception Mechanics):
// resolve the callee to a Function or native, save the callee's own
// register window, bind parameters, run its body, then restore the window
// so an outer, still-live activation of the same Function (a recursive
// caller) finds its own locals exactly as it left them.
//
// Grounded on vmregister.(*RegisterVM)'s OP_CALL handling: push a CallFrame
// with a fresh regBase, copy arguments into it, run, pop the frame on
// return. The "fresh regBase" here is "snapshot and restore the shared
// absolute window" instead, since register.File never rebases (spec
// §4.4/§4.9 recursion-safety note on codegen.Function.FrameLo/FrameHi).
func (vm *VM) call(callee value.Value, args []value.Value) (value.Value, error) {
	if value.IsNativeFn(callee) {
		return value.AsNativeFn(callee).Function(args)
	}

	var closure *value.ClosureObj
	funcIdx := -2
	switch {
	case value.IsClosure(callee):
		closure = value.AsClosure(callee)
		funcIdx = closure.FunctionIndex
	case value.IsFunction(callee):
		funcIdx = value.AsFunctionIndex(callee)
	default:
		return value.BoxNil(), fmt.Errorf("call: value of kind %s is not callable", value.KindOf(callee))
	}
	if funcIdx < 0 || funcIdx >= len(vm.Functions) {
		return value.BoxNil(), fmt.Errorf("call: function index %d out of range", funcIdx)
	}
	fn := vm.Functions[funcIdx]

	vm.depth++
	if vm.depth > vm.MaxCallDepth {
		vm.depth--
		return value.BoxNil(), fmt.Errorf("call: stack overflow (depth exceeds %d)", vm.MaxCallDepth)
	}
	defer func() { vm.depth-- }()

	savedFrame := saveRegion(vm.Machine, fn.FrameLo, fn.FrameHi)
	savedTemp := saveRegion(vm.Machine, fn.TempLo, fn.TempHi)
	savedClosure := vm.Machine.CurrentClosure
	vm.Machine.CurrentClosure = closure

	for i := 0; i < fn.Arity; i++ {
		if i < len(args) {
			vm.Machine.Set(fn.FrameLo+i, args[i])
		} else {
			vm.Machine.Set(fn.FrameLo+i, value.BoxNil())
		}
	}

	result, err := dispatch.Run(vm.Machine, fn.Buf, 0)

	vm.Machine.CloseUpvaluesFrom(fn.FrameLo)
	restoreRegion(vm.Machine, fn.FrameLo, savedFrame)
	restoreRegion(vm.Machine, fn.TempLo, savedTemp)
	vm.Machine.CurrentClosure = savedClosure

	return result, err
}

func saveRegion(m *dispatch.Machine, lo, hi int) []value.Value {
	if hi <= lo {
		return nil
	}
	saved := make([]value.Value, hi-lo)
	for i := range saved {
		saved[i] = m.Get(lo + i)
	}
	return saved
}

func restoreRegion(m *dispatch.Machine, lo int, saved []value.Value) {
	for i, v := range saved {
		m.Set(lo+i, v)
	}
}
