package backend

import (
	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/linker"
)

// This file implements call/return lowering and the ABI resolver emission
// (spec §4.7): argument materialization into x0..x7, callee-address
// resolution dispatched on the active linker flavor, and copying a caller-
// saved return value into a callee-preserved register so it survives any
// call the rest of the function makes.

// lowerCall lowers a direct call: every argument materializes into its
// AAPCS64 register (spec limits this backend to register-passed integer
// arguments, per §9 "not yet implemented: calls with stack-passed or
// >8 integer arguments"), frozen for the duration of materialization so an
// earlier argument's source register is never evicted to make room for a
// later one.
func (c *Context) lowerCall(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	args := c.fn.ExtraArgs(data.ExtraIndex)
	if len(args) > len(argRegs) {
		return notYetImplemented(loc, "call with more than 8 integer arguments")
	}

	resolved := make([]operandResolution, len(args))
	for i, ref := range args {
		resolved[i] = c.resolveOperand(idx, i, ref)
	}

	var toFreeze []Reg
	for _, op := range resolved {
		if op.mv.Kind == MVRegister {
			toFreeze = append(toFreeze, op.mv.Reg)
		}
	}
	c.regs.Freeze(toFreeze...)
	for i, op := range resolved {
		if err := c.genSetReg(argRegs[i], op.mv, 8, loc); err != nil {
			c.regs.Unfreeze(toFreeze...)
			return err
		}
	}
	c.regs.Unfreeze(toFreeze...)

	if err := c.emitCall(data.Sym, loc); err != nil {
		return err
	}

	for _, op := range resolved {
		if op.dies && op.mv.Kind == MVRegister {
			c.regs.Free(op.mv.Reg)
		}
	}

	retType := c.fn.TypeOfIndex(idx)
	if !c.types.HasRuntimeBits(retType) {
		c.branches.Top().set(idx, noneMV())
		return nil
	}

	// x0 is caller-saved and would be clobbered by the next call this
	// function makes; copy it into a callee-preserved register immediately
	// so the result survives (spec §4.7 "Call/Return").
	dst, err := c.regs.Alloc(idx, loc)
	if err != nil {
		return err
	}
	c.code.emit(Instr{Op: opMovReg, Rd: dst, Rn: X0, Size: int(c.types.AbiSize(retType))})
	c.branches.Top().set(idx, registerMV(dst))
	return nil
}

// emitCall resolves sym's address per the active linker flavor and emits
// the call itself (spec §4.7): Mach-O routes external calls through the
// call_extern pseudo-op the linker resolves at atom-fixup time; every other
// flavor loads the address through a GOT indirection into x16 (IP0, the
// intra-procedure-call scratch register AAPCS64 reserves for exactly this)
// and issues an explicit blr.
func (c *Context) emitCall(sym string, loc ir.Loc) *Error {
	switch c.link.Flavor() {
	case linker.FlavorMachO:
		ref := c.link.RegisterExternFunction(c.atomIndex, sym)
		c.code.emit(Instr{Op: opCallExtern, Sym: ref, AtomIndex: c.atomIndex})
		return nil
	case linker.FlavorELF, linker.FlavorCOFF, linker.FlavorPlan9:
		ref := c.link.ResolveAddress(sym)
		c.code.emit(Instr{Op: opLoadMemoryGot, Rd: X16, Sym: ref})
		c.code.emit(Instr{Op: opBlr, Rn: X16})
		return nil
	default:
		return fail(loc, "BUG: unhandled linker flavor")
	}
}

// lowerRet lowers a return: a carried value moves into the ABI's return
// register, then control reaches the epilogue either directly (a naked
// function has none) or via an exitlude jump recorded for setupEpilogue to
// back-patch once the epilogue's address is known (spec §4.8).
func (c *Context) lowerRet(idx ir.Index) *Error {
	data := c.fn.DataOf(idx)
	loc := c.fn.LocOf(idx)

	if data.Op0.IsValid() {
		if c.naked {
			return fail(loc, "BUG: naked function's ret carries a value")
		}
		val := c.resolveOperand(idx, 0, data.Op0)
		if len(c.abi.Rets) == 0 {
			return fail(loc, "BUG: ret carries a value but the function's ABI has no return slot")
		}
		r := c.abi.Rets[0]
		if r.Reg == noReg {
			return notYetImplemented(loc, "multi-register / indirect return value")
		}
		if err := c.genSetReg(r.Reg, val.mv, int(c.types.AbiSize(r.Type)), loc); err != nil {
			return err
		}
		if val.dies && val.mv.Kind == MVRegister {
			c.regs.Free(val.mv.Reg)
		}
	}

	if c.naked {
		c.code.emit(Instr{Op: opRet, Rn: X30})
		return nil
	}
	j := c.code.emit(Instr{Op: opB, RelocTarget: -1})
	c.exitludeJumps = append(c.exitludeJumps, j)
	return nil
}
