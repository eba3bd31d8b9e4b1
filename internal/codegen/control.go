package codegen

import (
	"orus/internal/ast"
	"orus/internal/code"
	"orus/internal/diag"
	"orus/internal/register"
	"orus/internal/value"
)

// compileIf implements spec §4.6's If/else contract.
func (c *Compiler) compileIf(s *ast.IfStmt) {
	c.setPos(s.Pos)
	cond, isTemp := c.compileExpr(s.Cond)
	falseJump := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP_IF_NOT_R, cond)
	if isTemp {
		c.Regs.FreeTemp(cond)
	}

	c.compileBlockWithScope(s.Then, true)

	if len(s.Else) > 0 {
		endJump := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)
		c.mustPatch(falseJump, c.Buf.Count())
		c.compileBlockWithScope(s.Else, true)
		c.mustPatch(endJump, c.Buf.Count())
	} else {
		c.mustPatch(falseJump, c.Buf.Count())
	}
}

func (c *Compiler) mustPatch(idx, target int) {
	if err := c.Buf.PatchJump(idx, target); err != nil {
		c.errorAt(diag.New(diag.Runtime, "", err.Error(), c.pos(ast.Pos{File: c.file})))
	}
}

func (c *Compiler) patchAll(idxs []int, target int) {
	for _, idx := range idxs {
		c.mustPatch(idx, target)
	}
}

// compileWhile tries the fused counter-loop form first (§4.6.1), falling
// back to the generic loop otherwise.
func (c *Compiler) compileWhile(s *ast.WhileStmt) {
	if c.tryFusedWhile(s) {
		return
	}
	c.compileGenericWhile(s)
}

func (c *Compiler) compileGenericWhile(s *ast.WhileStmt) {
	c.setPos(s.Pos)
	loopID := c.nextLoopID()
	loopStart := c.Buf.Count()

	c.fn.pushScope(c.nextScopeID(), scopeLoop)
	c.fn.current().loop = &loopInfo{label: s.Label, loopID: loopID, startOffset: loopStart}

	pinned := c.pinLoopPlanResidency(loopID)

	cond, isTemp := c.compileExpr(s.Cond)
	exitJump := c.Buf.AllocateJumpPlaceholder(code.OP_BRANCH_TYPED, loopID, cond)
	if isTemp {
		c.Regs.FreeTemp(cond)
	}

	for _, st := range s.Body {
		c.compileStmt(st)
	}

	li := c.fn.current().loop
	c.patchAll(li.continuePatches, loopStart)
	c.emitBackJump(loopStart)

	c.mustPatch(exitJump, c.Buf.Count())
	c.patchAll(li.breakPatches, c.Buf.Count())
	for _, reg := range pinned {
		c.Regs.ClearResidency(reg)
	}
	sc := c.fn.popScope()
	c.Regs.FreeScope(sc.id)
}

// pinLoopPlanResidency applies the Optimizer's (C7) per-loop typed-bank
// hints, if TypeAffinityPass found any for loopID, by pinning each named
// variable's register to its preferred bank for the loop's duration.
// Returns the registers pinned so the caller can clear them afterward.
func (c *Compiler) pinLoopPlanResidency(loopID int) []int {
	if c.optCtx == nil {
		return nil
	}
	plan, ok := c.optCtx.LoopPlans[loopID]
	if !ok {
		return nil
	}
	var pinned []int
	for name, bankName := range plan.BankByName {
		sym, ok := c.fn.resolveLocal(name)
		if !ok {
			continue
		}
		bank, ok := bankFromName(bankName)
		if !ok {
			continue
		}
		c.Regs.PinResidency(sym.reg, bank)
		pinned = append(pinned, sym.reg)
	}
	return pinned
}

func bankFromName(name string) (register.Bank, bool) {
	switch name {
	case "i32":
		return register.BankI32, true
	case "i64":
		return register.BankI64, true
	case "u32":
		return register.BankU32, true
	case "u64":
		return register.BankU64, true
	case "f64":
		return register.BankF64, true
	default:
		return register.BankNone, false
	}
}

// emitBackJump emits OP_LOOP_SHORT if the back distance fits a byte,
// otherwise a plain OP_JUMP, whose forward-jump patch arithmetic (target -
// afterField) naturally yields a negative, in-range offset for a backward
// target too (spec §4.6 "OP_LOOP_SHORT if distance <= 255, else OP_JUMP
// with 16-bit signed offset").
func (c *Compiler) emitBackJump(target int) {
	mark := c.Buf.Count()
	markPatches := len(c.Buf.Patches)
	idx := c.Buf.AllocateJumpPlaceholder(code.OP_LOOP_SHORT)
	if err := c.Buf.PatchJump(idx, target); err == nil {
		return
	}
	c.Buf.Code = c.Buf.Code[:mark]
	c.Buf.Lines = c.Buf.Lines[:mark]
	c.Buf.Columns = c.Buf.Columns[:mark]
	c.Buf.Patches = c.Buf.Patches[:markPatches]

	idx2 := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)
	c.mustPatch(idx2, target)
}

func (c *Compiler) nextLoopID() int {
	id := c.loopIDCounter
	c.loopIDCounter++
	return id
}

// tryFusedWhile detects the `while x < N` / `while x <= N` shape with a
// trailing `x = x + 1` body statement over a mutable i32 (spec §4.6.1). On
// any failure it truncates the buffer back to the pre-fusion length and
// returns false so the caller retries generically.
func (c *Compiler) tryFusedWhile(s *ast.WhileStmt) bool {
	cond, ok := s.Cond.(*ast.Binary)
	if !ok || len(s.Body) == 0 {
		return false
	}
	inclusive := cond.Op == "<="
	if cond.Op != "<" && !inclusive {
		return false
	}
	v, ok := cond.Left.(*ast.Variable)
	if !ok || v.Type != "i32" {
		return false
	}
	sym, ok := c.fn.resolveLocal(v.Name)
	if !ok || !sym.mutable || sym.typ != "i32" {
		return false
	}
	last, ok := s.Body[len(s.Body)-1].(*ast.AssignStmt)
	if !ok || last.Target != ast.AssignName || last.Name != v.Name || !c.isPureIncrement(v.Name, last.Value) {
		return false
	}

	mark := c.Buf.Count()
	markPatches := len(c.Buf.Patches)
	markLoopID := c.loopIDCounter
	preFusionDiags := len(c.Diagnostics)

	limitReg, limitTemp := c.compileExpr(cond.Right)
	if inclusive {
		limitReg, limitTemp = c.materializeInclusiveLimit(limitReg, limitTemp)
	}

	c.Regs.PinResidency(sym.reg, register.BankI32)
	c.Regs.PinResidency(limitReg, register.BankI32)

	guard := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP_IF_NOT_I32_TYPED, sym.reg, limitReg)

	loopID := c.nextLoopID()
	c.fn.pushScope(c.nextScopeID(), scopeLoop)
	c.fn.current().loop = &loopInfo{label: s.Label, loopID: loopID}

	for _, st := range s.Body[:len(s.Body)-1] {
		c.compileStmt(st)
	}

	li := c.fn.current().loop
	c.patchAll(li.continuePatches, c.Buf.Count())

	backIdx := c.Buf.AllocateJumpPlaceholder(code.OP_INC_CMP_JMP, sym.reg, limitReg)
	c.mustPatch(backIdx, mark)

	c.mustPatch(guard, c.Buf.Count())
	c.patchAll(li.breakPatches, c.Buf.Count())
	sc := c.fn.popScope()
	c.Regs.FreeScope(sc.id)

	c.Regs.ClearResidency(sym.reg)
	c.Regs.ClearResidency(limitReg)
	if limitTemp {
		c.Regs.FreeTemp(limitReg)
	}

	if len(c.Diagnostics) > preFusionDiags {
		c.Diagnostics = c.Diagnostics[:preFusionDiags]
		c.Buf.Code = c.Buf.Code[:mark]
		c.Buf.Lines = c.Buf.Lines[:mark]
		c.Buf.Columns = c.Buf.Columns[:mark]
		c.Buf.Patches = c.Buf.Patches[:markPatches]
		c.loopIDCounter = markLoopID
		return false
	}
	return true
}

// materializeInclusiveLimit computes limit+1 into a fresh temp so a single
// `<` guard implements an inclusive `<=` bound (spec §4.6.1/§4.6).
func (c *Compiler) materializeInclusiveLimit(limitReg int, limitTemp bool) (int, bool) {
	adj := c.Regs.AllocTemp()
	c.Buf.EmitByte(byte(code.OP_ADD_I32_IMM))
	c.Buf.EmitReg(adj)
	c.Buf.EmitReg(limitReg)
	c.Buf.EmitImm32(1)
	if limitTemp {
		c.Regs.FreeTemp(limitReg)
	}
	return adj, true
}

// compileForRange implements spec §4.6's fused/generic for-range lowering.
func (c *Compiler) compileForRange(s *ast.ForRangeStmt) {
	c.setPos(s.Pos)
	c.fn.pushScope(c.nextScopeID(), scopeLexical)

	startReg, startTemp := c.compileExpr(s.Start)
	loopVar := c.Regs.AllocFrame(c.fn.current().id)
	c.Buf.EmitInstruction(code.OP_MOVE, loopVar, startReg)
	if startTemp {
		c.Regs.FreeTemp(startReg)
	}
	c.fn.declare(s.Var, loopVar, "i32", true, s.Pos.Line)

	limitReg, limitTemp := c.compileExpr(s.Limit)
	if s.Inclusive {
		limitReg, limitTemp = c.materializeInclusiveLimit(limitReg, limitTemp)
	}

	stepIsUnitConst := true
	if s.Step != nil {
		if lit, ok := s.Step.(*ast.Literal); ok && lit.Kind == "i32" {
			stepIsUnitConst = lit.I32 == 1
		} else {
			stepIsUnitConst = false
		}
	}

	c.fn.pushScope(c.nextScopeID(), scopeLoop)
	c.fn.current().loop = &loopInfo{label: s.Label, loopID: c.nextLoopID()}

	if stepIsUnitConst {
		c.Regs.PinResidency(loopVar, register.BankI32)
		c.Regs.PinResidency(limitReg, register.BankI32)
		mark := c.Buf.Count()
		guard := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP_IF_NOT_I32_TYPED, loopVar, limitReg)
		for _, st := range s.Body {
			c.compileStmt(st)
		}
		li := c.fn.current().loop
		c.patchAll(li.continuePatches, c.Buf.Count())
		backIdx := c.Buf.AllocateJumpPlaceholder(code.OP_INC_CMP_JMP, loopVar, limitReg)
		c.mustPatch(backIdx, mark)
		c.mustPatch(guard, c.Buf.Count())
		c.patchAll(li.breakPatches, c.Buf.Count())
		c.Regs.ClearResidency(loopVar)
		c.Regs.ClearResidency(limitReg)
	} else {
		// Generic path: runtime sign check selects < vs > by comparing a
		// materialized step against zero, then uses the generic boxed
		// comparison/branch opcodes rather than the typed fast path.
		var stepReg int
		var stepTemp bool
		if s.Step != nil {
			stepReg, stepTemp = c.compileExpr(s.Step)
		} else {
			stepReg = c.Regs.AllocTemp()
			idx := c.Buf.AddConstant(value.BoxI32(1))
			c.Buf.EmitInstruction(code.OP_LOAD_I32_CONST, stepReg, idx)
			stepTemp = true
		}
		zero := c.Regs.AllocTemp()
		zeroIdx := c.Buf.AddConstant(value.BoxI32(0))
		c.Buf.EmitInstruction(code.OP_LOAD_I32_CONST, zero, zeroIdx)
		signReg := c.Regs.AllocTemp()
		c.Buf.EmitInstruction(code.OP_GT_R, signReg, stepReg, zero)
		c.Regs.FreeTemp(zero)

		descendingJump := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP_IF_NOT_R, signReg)
		c.Regs.FreeTemp(signReg)

		ascendingMark := c.Buf.Count()
		c.compileForRangeGenericBody(s, loopVar, limitReg, stepReg, code.OP_LT_R)
		endAscending := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)

		c.mustPatch(descendingJump, c.Buf.Count())
		_ = ascendingMark
		c.compileForRangeGenericBody(s, loopVar, limitReg, stepReg, code.OP_GT_R)

		c.mustPatch(endAscending, c.Buf.Count())
		if stepTemp {
			c.Regs.FreeTemp(stepReg)
		}
	}

	c.fn.popScope()
	if limitTemp {
		c.Regs.FreeTemp(limitReg)
	}
	sc := c.fn.popScope()
	c.Regs.FreeScope(sc.id)
}

// compileForRangeGenericBody emits one direction's guard/body/step/back-jump
// sequence for a non-constant-step for-range loop, using cmpOp to compare
// the loop variable against the limit.
func (c *Compiler) compileForRangeGenericBody(s *ast.ForRangeStmt, loopVar, limitReg, stepReg int, cmpOp code.OpCode) {
	mark := c.Buf.Count()
	cmp := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(cmpOp, cmp, loopVar, limitReg)
	guard := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP_IF_NOT_R, cmp)
	c.Regs.FreeTemp(cmp)

	for _, st := range s.Body {
		c.compileStmt(st)
	}

	li := c.fn.current().loop
	c.patchAll(li.continuePatches, c.Buf.Count())
	li.continuePatches = nil

	c.Buf.EmitInstruction(code.OP_ADD_R, loopVar, loopVar, stepReg)
	c.emitBackJump(mark)
	c.mustPatch(guard, c.Buf.Count())
	c.patchAll(li.breakPatches, c.Buf.Count())
	li.breakPatches = nil
}

// compileForIn implements spec §4.6's for-iter lowering.
func (c *Compiler) compileForIn(s *ast.ForInStmt) {
	c.setPos(s.Pos)
	c.fn.pushScope(c.nextScopeID(), scopeLexical)

	iterableReg, iTemp := c.compileExpr(s.Iterable)
	iterReg := c.Regs.AllocTemp()
	c.Buf.EmitInstruction(code.OP_GET_ITER_R, iterReg, iterableReg)
	if iTemp {
		c.Regs.FreeTemp(iterableReg)
	}

	loopVar := c.Regs.AllocFrame(c.fn.current().id)
	hasValue := c.Regs.AllocTemp()
	c.fn.declare(s.Var, loopVar, "any", false, s.Pos.Line)

	loopID := c.nextLoopID()
	c.fn.pushScope(c.nextScopeID(), scopeLoop)
	c.fn.current().loop = &loopInfo{label: s.Label, loopID: loopID}

	top := c.Buf.Count()
	c.Buf.EmitInstruction(code.OP_ITER_NEXT_R, loopVar, iterReg, hasValue)
	exitJump := c.Buf.AllocateJumpPlaceholder(code.OP_BRANCH_TYPED, loopID, hasValue)

	for _, st := range s.Body {
		c.compileStmt(st)
	}

	li := c.fn.current().loop
	c.patchAll(li.continuePatches, c.Buf.Count())
	c.emitBackJump(top)

	c.mustPatch(exitJump, c.Buf.Count())
	c.patchAll(li.breakPatches, c.Buf.Count())
	c.fn.popScope()

	c.Regs.FreeTemp(hasValue)
	c.Regs.FreeTemp(iterReg)
	sc := c.fn.popScope()
	c.Regs.FreeScope(sc.id)
}

func (c *Compiler) compileBreak(s *ast.BreakStmt) {
	c.setPos(s.Pos)
	li := c.fn.innermostLoop(s.Label)
	if li == nil {
		c.errorAt(diag.BreakOutsideLoop(c.loopNote(s.Label), c.pos(s.Pos)))
		return
	}
	idx := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)
	li.breakPatches = append(li.breakPatches, idx)
}

func (c *Compiler) compileContinue(s *ast.ContinueStmt) {
	c.setPos(s.Pos)
	li := c.fn.innermostLoop(s.Label)
	if li == nil {
		c.errorAt(diag.ContinueOutsideLoop(c.loopNote(s.Label), c.pos(s.Pos)))
		return
	}
	idx := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)
	li.continuePatches = append(li.continuePatches, idx)
}

// loopNote derives a note for an E1401/E1402 diagnostic when a labeled
// break/continue misses its target but some loop is in scope.
func (c *Compiler) loopNote(label string) string {
	if label == "" {
		return ""
	}
	if c.fn.innermostLoop("") != nil {
		return "no enclosing loop labeled '" + label + "'"
	}
	return ""
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt) {
	c.setPos(s.Pos)
	if s.Value == nil {
		c.Buf.EmitInstruction(code.OP_RETURN_VOID)
		return
	}
	reg, isTemp := c.compileExpr(s.Value)
	c.Buf.EmitInstruction(code.OP_RETURN_R, reg)
	if isTemp {
		c.Regs.FreeTemp(reg)
	}
}

// compileTry implements spec §4.6/§4.8's try/catch lowering.
func (c *Compiler) compileTry(s *ast.TryStmt) {
	c.setPos(s.Pos)
	hasCatch := s.CatchName != ""
	var catchReg int
	sentinel := byte(0xFF)
	if hasCatch {
		catchReg = c.Regs.AllocFrame(c.fn.current().id)
		sentinel = byte(catchReg)
	}
	beginIdx := c.Buf.AllocateTryBegin(sentinel)

	c.compileBlockWithScope(s.Body, true)
	c.Buf.EmitInstruction(code.OP_TRY_END)
	skipCatch := c.Buf.AllocateJumpPlaceholder(code.OP_JUMP)

	c.mustPatch(beginIdx, c.Buf.Count())
	c.fn.pushScope(c.nextScopeID(), scopeLexical)
	if hasCatch {
		c.fn.declare(s.CatchName, catchReg, "error", false, s.Pos.Line)
	}
	for _, st := range s.CatchBody {
		c.compileStmt(st)
	}
	sc := c.fn.popScope()
	c.Regs.FreeScope(sc.id)

	c.mustPatch(skipCatch, c.Buf.Count())
}

func (c *Compiler) compileThrow(s *ast.ThrowStmt) {
	c.setPos(s.Pos)
	reg, isTemp := c.compileExpr(s.Value)
	// Throw is lowered as a call into the runtime's raise intrinsic, bound
	// at global slot 0 by the host (spec §5.1 builtin intrinsic registry).
	if slot, ok := c.Regs.LookupGlobal("__raise__"); ok {
		funcReg := c.Regs.AllocTemp()
		c.Buf.EmitInstruction(code.OP_GET_GLOBAL, funcReg, slot)
		c.Buf.EmitInstruction(code.OP_CALL_R, funcReg, reg, 1, reg)
		c.Regs.FreeTemp(funcReg)
	}
	if isTemp {
		c.Regs.FreeTemp(reg)
	}
}
