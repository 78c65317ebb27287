package backend

import "github.com/ssagen/arm64codegen/ir"

// blockRecord tracks one in-scope branch target (spec §4.6). A `block`
// collects every forward `br` that targets it into pendingJumps and
// back-patches them once its body has finished emitting, since the target
// address isn't known until then; a `loop` instead gives backward branches
// an address immediately, at its own entry.
type blockRecord struct {
	isLoop       bool
	loopStart    int
	pendingJumps []int
}

// lowerBody lowers one ordered instruction list in program order (spec
// §4.5/§4.6), emitting a dbg_line pseudo-op ahead of every instruction
// except unreach so the MIR stream carries its own source-position record.
func (c *Context) lowerBody(body []ir.Index) *Error {
	for _, idx := range body {
		tag := c.fn.TagOf(idx)
		// unreach never has a dbg_line of its own (spec §8 boundary case: a
		// function whose only body is unreach emits prologue,
		// dbg_prologue_end, dbg_epilogue_begin, and the rbrace dbg_line —
		// nothing else).
		if tag != ir.OpUnreach {
			c.emitDbgLine(c.fn.LocOf(idx))
		}

		switch tag {
		case ir.OpArg:
			// Already materialized to a stack slot by homeParameters; the
			// leading arg prefix of the main body is not re-lowered here.
			continue
		case ir.OpCondBr:
			if err := c.lowerCondBr(idx); err != nil {
				return err
			}
		case ir.OpBlock:
			if err := c.lowerBlock(idx); err != nil {
				return err
			}
		case ir.OpLoop:
			if err := c.lowerLoop(idx); err != nil {
				return err
			}
		case ir.OpBr:
			if err := c.lowerBr(idx); err != nil {
				return err
			}
		case ir.OpRet:
			if err := c.lowerRet(idx); err != nil {
				return err
			}
		default:
			if err := c.lowerInstr(idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// lowerCondBr lowers a conditional branch (spec §4.6). Both arms start
// generation from the identical register/stack-planner snapshot taken
// right after the condition test, so their exploration is independent;
// each arm reconciles its own branch layer back to the pre-branch location
// of every value it touched before the layer is discarded, so nothing
// needs merging across arms afterward.
func (c *Context) lowerCondBr(idx ir.Index) *Error {
	data := c.fn.DataOf(idx)
	loc := c.fn.LocOf(idx)

	cond := c.resolveOperand(idx, 0, data.Op0)
	condOperands := []operandResolution{cond}

	condReg, condFresh, err := c.ensureReg(cond.mv, loc)
	if err != nil {
		return err
	}
	c.code.emit(Instr{Op: opCmpImm, Rn: condReg, Imm: 0})
	if condFresh {
		c.regs.Free(condReg)
	}

	branchToElse := c.code.emit(Instr{Op: opBCond, Cond: eq, RelocTarget: -1})

	regsSnap := c.regs.snapshot()
	stackSnap := c.stack.snapshot()

	thenDeaths, elseDeaths := c.liveness.CondBrDeaths(idx)

	c.branches.Push()
	c.applyDeaths(thenDeaths)
	if err := c.lowerBody(c.fn.BlockBody(data.Op1.Index())); err != nil {
		return err
	}
	if err := c.reconcileArm(loc); err != nil {
		return err
	}
	c.branches.Pop()

	hasElse := data.Op2.IsValid()
	if hasElse {
		jumpOverElse := c.code.emit(Instr{Op: opB, RelocTarget: -1})
		c.patchTarget(branchToElse, c.code.len())

		c.regs.restore(regsSnap)
		c.stack.restore(stackSnap)

		c.branches.Push()
		c.applyDeaths(elseDeaths)
		if err := c.lowerBody(c.fn.BlockBody(data.Op2.Index())); err != nil {
			return err
		}
		if err := c.reconcileArm(loc); err != nil {
			return err
		}
		c.branches.Pop()

		c.patchTarget(jumpOverElse, c.code.len())
	} else {
		c.patchTarget(branchToElse, c.code.len())
	}

	c.Finish(idx, noneMV(), condOperands)
	return nil
}

// applyDeaths frees the register (if any) currently backing each already-
// defined value in deaths, applying cond_br's pre-computed then-deaths/
// else-deaths before the corresponding arm's body lowers (spec §4.6): a
// value that dies specifically on entry to one arm must release its
// register there, since the arm's own instructions never reference it and
// so would never otherwise trigger the free.
func (c *Context) applyDeaths(deaths []ir.Index) {
	for _, dead := range deaths {
		mv, ok := c.branches.Resolve(dead)
		if !ok || mv.Kind != MVRegister {
			continue
		}
		c.regs.Free(mv.Reg)
	}
}

// patchTarget fills in instr j's RelocTarget once its destination is known.
func (c *Context) patchTarget(j, target int) {
	i := c.code.at(j)
	i.RelocTarget = target
	c.code.patch(j, i)
}

// reconcileArm reconciles the current (not yet popped) branch layer back to
// the pre-branch location of every value it overrode (spec §4.6): a value
// newly defined inside the arm and absent from every enclosing layer needs
// no reconciliation, since nothing outside the arm can reference it.
func (c *Context) reconcileArm(loc ir.Loc) *Error {
	layerIdx := c.branches.topIndex()
	arm := c.branches.Top()

	for inst, armMV := range arm.values {
		preMV, ok := c.branches.resolveBelow(layerIdx, inst)
		if !ok || !preMV.isMutable() || armMV == preMV {
			continue
		}

		if preMV.Kind == MVRegister {
			if owner, held := c.regs.OwnerOf(preMV.Reg); held && owner != inst {
				if err := c.SpillInstruction(owner, preMV.Reg); err != nil {
					return err
				}
				c.regs.Free(preMV.Reg)
			}
		}

		size := int(c.types.AbiSize(c.fn.TypeOfIndex(inst)))
		if err := c.setRegOrMem(preMV, armMV, size, loc); err != nil {
			return err
		}
		if armMV.Kind == MVRegister {
			c.regs.Free(armMV.Reg)
		}
		if preMV.Kind == MVRegister {
			if e, ok := c.regs.entries[preMV.Reg]; ok {
				e.allocated = true
				e.owner = inst
			}
		}
		arm.values[inst] = preMV
	}
	return nil
}

// lowerBlock lowers a forward-jump target: every `br` reaching it is
// back-patched to land just past its body (spec §4.6).
func (c *Context) lowerBlock(idx ir.Index) *Error {
	rec := &blockRecord{}
	c.blocks[idx] = rec
	defer delete(c.blocks, idx)

	if err := c.lowerBody(c.fn.BlockBody(idx)); err != nil {
		return err
	}

	exitAt := c.code.len()
	for _, j := range rec.pendingJumps {
		c.patchTarget(j, exitAt)
	}
	return nil
}

// lowerLoop lowers a backward-jump target: its own entry point is recorded
// immediately so a `br` back to it needs no back-patching (spec §4.6).
func (c *Context) lowerLoop(idx ir.Index) *Error {
	rec := &blockRecord{isLoop: true, loopStart: c.code.len()}
	c.blocks[idx] = rec
	defer delete(c.blocks, idx)

	if err := c.lowerBody(c.fn.BlockBody(idx)); err != nil {
		return err
	}

	exitAt := c.code.len()
	for _, j := range rec.pendingJumps {
		c.patchTarget(j, exitAt)
	}
	return nil
}

// lowerBr lowers an unconditional branch to an enclosing block or loop.
func (c *Context) lowerBr(idx ir.Index) *Error {
	data := c.fn.DataOf(idx)
	loc := c.fn.LocOf(idx)
	target := data.Op0.Index()

	rec, ok := c.blocks[target]
	if !ok {
		return fail(loc, "BUG: br targets a block/loop not currently in scope")
	}

	if rec.isLoop {
		c.code.emit(Instr{Op: opB, RelocTarget: rec.loopStart})
		return nil
	}
	j := c.code.emit(Instr{Op: opB, RelocTarget: -1})
	rec.pendingJumps = append(rec.pendingJumps, j)
	return nil
}
