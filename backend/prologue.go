package backend

import (
	"math/bits"

	"github.com/ssagen/arm64codegen/ir"
)

// emitProloguePlaceholders emits the fixed five-instruction function-entry
// sequence of spec §4.8, with nop placeholders at the two positions that
// depend on totals only known after the body is generated.
func (c *Context) emitProloguePlaceholders() {
	c.code.emit(Instr{Op: opStp, Rd: X29, Rn: X30, Rm: SP, Imm: 16})
	c.prologueSaveRegsInstr = c.code.emit(Instr{Op: opNop})
	c.code.emit(Instr{Op: opMovReg, Rd: X29, Rn: SP})
	c.prologueSubSpInstr = c.code.emit(Instr{Op: opNop})
	c.code.emit(Instr{Op: opDbgPrologueEnd})
}

// homeParameters copies every register-passed argument to a fresh stack
// slot on entry (spec scenario S1: "Body generates a copy of x0 to a fresh
// stack slot on entry (parameter home)"), since x0-x7 are caller-saved and
// would otherwise be clobbered by the first call this function makes.
// Stack-passed arguments are likewise copied into a local slot so every
// `arg` instruction resolves uniformly through the branch stack.
func (c *Context) homeParameters() *Error {
	if c.naked {
		return nil
	}
	body := c.fn.BlockBody(c.fn.MainBody())
	for _, idx := range body {
		if c.fn.TagOf(idx) != ir.OpArg {
			break // arg instructions are the leading prefix of the body.
		}
		data := c.fn.DataOf(idx)
		paramIdx := int(data.Imm)
		if paramIdx >= len(c.abi.Args) {
			return fail(c.fn.LocOf(idx), "BUG: arg instruction references out-of-range parameter %d", paramIdx)
		}
		argLoc := c.abi.Args[paramIdx]
		typ := c.fn.TypeOfIndex(idx)
		if !c.types.HasRuntimeBits(typ) {
			c.branches.Top().set(idx, noneMV())
			continue
		}
		size := c.types.AbiSize(typ)
		align := c.types.AbiAlignment(typ)
		off := c.stack.AllocMem(idx, size, align)

		switch argLoc.Kind {
		case ABIArgKindReg:
			if argLoc.Reg == noReg {
				return notYetImplemented(c.fn.LocOf(idx), "multi-register (>8 byte) argument home")
			}
			if err := c.genSetStack(off, registerMV(argLoc.Reg), int(size), c.fn.LocOf(idx)); err != nil {
				return err
			}
		case ABIArgKindStack:
			// Incoming stack args sit above the saved FP/LR pair, at a
			// positive offset from FP equal to 16 (the saved pair) plus
			// the arg's classified stack offset.
			scratch := scratchRegs[0]
			c.code.emit(Instr{Op: opLdr, Rd: scratch, Rn: X29, Imm: uint64(16 + argLoc.Offset), Size: int(size)})
			if err := c.genSetStack(off, registerMV(scratch), int(size), c.fn.LocOf(idx)); err != nil {
				return err
			}
		}
		c.branches.Top().set(idx, stackOffsetMV(off))
	}
	return nil
}

// setupEpilogue emits the function-exit sequence once, after the body (spec
// §4.8): the last recorded exitlude jump is turned into a nop when it would
// land on the immediately-following instruction, and every other recorded
// exitlude jump is patched to land here.
func (c *Context) setupEpilogue() *Error {
	c.code.emit(Instr{Op: opDbgEpilogueBegin})
	epilogueAt := c.code.len() - 1

	if len(c.exitludeJumps) > 0 {
		last := c.exitludeJumps[len(c.exitludeJumps)-1]
		if last == epilogueAt-1 {
			// The trailing branch would jump to the very next instruction;
			// turn it into a no-op instead of patching a useless branch.
			c.code.patch(last, Instr{Op: opNop})
			c.exitludeJumps = c.exitludeJumps[:len(c.exitludeJumps)-1]
		}
		for _, j := range c.exitludeJumps {
			i := c.code.at(j)
			i.RelocTarget = epilogueAt
			c.code.patch(j, i)
		}
	}

	stackSize, saveMask, err := c.computeFrameSize()
	if err != nil {
		return err
	}
	c.code.emit(Instr{Op: opAddSubSp, Imm: uint64(stackSize)})
	if saveMask != 0 {
		c.code.emit(Instr{Op: opPopRegs, Bitmask: saveMask})
	}
	c.code.emit(Instr{Op: opLdp, Rd: X29, Rn: X30, Rm: SP, Imm: 16})
	c.code.emit(Instr{Op: opRet, Rn: X30})
	c.code.emit(Instr{Op: opDbgLine})
	return nil
}

// computeFrameSize derives the clobbered-register save mask and the local
// stack-size operand for the prologue's `sub sp, sp, #stack_size`,
// enforcing the 12-bit immediate limit (spec §4.8, §8 boundary behavior).
func (c *Context) computeFrameSize() (stackSize int64, saveMask uint32, err *Error) {
	for i, r := range allocatablePool {
		if c.regs.EverAllocated(r) {
			saveMask |= 1 << uint(i)
		}
	}
	savedRegsStackSpace := int64(16 + 8*bits.OnesCount32(saveMask))
	savedRegsStackSpace = alignUp64(savedRegsStackSpace, minStackAlign)

	align := int64(c.stack.StackAlign())
	total := alignUp64(int64(c.stack.MaxEndStack())+savedRegsStackSpace, align)
	stackSize = total - savedRegsStackSpace

	const imm12Max = 1<<12 - 1
	if stackSize > imm12Max {
		return 0, 0, fail(ir.Loc{}, "stack too large: %d bytes exceeds the 12-bit sub-sp immediate limit", stackSize)
	}
	return stackSize, saveMask, nil
}

// backpatchPrologue fills in the save-register-mask and frame-size
// placeholders left as nops at function entry, using the totals collected
// from the register allocator and stack-frame planner during body
// generation (spec §4.8).
func (c *Context) backpatchPrologue() *Error {
	stackSize, saveMask, err := c.computeFrameSize()
	if err != nil {
		return err
	}
	if saveMask != 0 {
		c.code.patch(c.prologueSaveRegsInstr, Instr{Op: opPushRegs, Bitmask: saveMask})
	}
	c.code.patch(c.prologueSubSpInstr, Instr{Op: opAddSubSp, Imm: uint64(-stackSize)})
	return nil
}
