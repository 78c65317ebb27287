package backend

import (
	"fmt"

	"github.com/ssagen/arm64codegen/ir"
)

// This file implements the value-movers matrix (spec §4.4): the
// instructions that materialize one MV shape into another. Every mover
// ultimately bottoms out in genSetReg or genSetStack; load/store handle the
// memory-addressed shapes, and genInlineMemcpy handles large aggregate
// copies.

// genSetReg materializes src into register dst at the given ABI size in
// bytes.
func (c *Context) genSetReg(dst Reg, src MV, sizeBytes int, loc ir.Loc) *Error {
	switch src.Kind {
	case MVImmediate:
		return c.genMovImmediate(dst, src.Imm)
	case MVRegister:
		if src.Reg != dst {
			c.code.emit(Instr{Op: opMovReg, Rd: dst, Rn: src.Reg, Size: sizeBytes})
		}
		return nil
	case MVStackOffset:
		return c.load(dst, src, sizeBytes)
	case MVPtrStackOffset:
		return c.genAddrOfStack(dst, uint32(src.Imm))
	case MVMemory:
		c.code.emit(Instr{Op: opMovz, Rd: dst, Imm: src.Imm & 0xffff})
		if src.Imm > 0xffff {
			return fail(loc, "materializing absolute memory address %#x wider than 16 bits: multi-movk path not yet wired for this mover", src.Imm)
		}
		return nil
	case MVEmbeddedInCode, MVPtrEmbeddedInCode:
		return fail(loc, "not yet implemented: materializing embedded-in-code machine values into a register")
	case MVGotLoad:
		c.code.emit(Instr{Op: opLoadMemoryGot, Rd: dst, Sym: src.Sym})
		return nil
	case MVDirectLoad:
		c.code.emit(Instr{Op: opLoadMemoryDirect, Rd: dst, Sym: src.Sym})
		return nil
	case MVCompareFlagsSigned, MVCompareFlagsUnsigned:
		// cset produces 1 when the tested condition is true; since we want
		// "set register to 1 iff the *recorded* comparison op holds", and
		// cset's own condition selects "true", we must negate once more to
		// cancel cset's built-in sense inversion (spec §4.4).
		signed := src.Kind == MVCompareFlagsSigned
		cond := toCondFlag(src.Cmp, signed).invert()
		c.code.emit(Instr{Op: opCset, Rd: dst, Cond: cond})
		return nil
	case MVUndef:
		// Leaving the register's prior contents is a valid materialization
		// of an explicitly-undefined value; no instruction is emitted.
		return nil
	case MVNone, MVDead, MVUnreach:
		panic("BUG: genSetReg called on a value with no representable storage")
	default:
		panic("BUG: unhandled MV kind in genSetReg")
	}
}

// genMovImmediate emits movz plus up to three shifted movk inserts for any
// value not representable in 16 bits (spec §4.4).
func (c *Context) genMovImmediate(dst Reg, v uint64) *Error {
	c.code.emit(Instr{Op: opMovz, Rd: dst, Imm: v & 0xffff, Shift: 0})
	first := true
	for shift := 16; shift < 64; shift += 16 {
		chunk := (v >> shift) & 0xffff
		if chunk == 0 {
			continue
		}
		if first {
			first = false
		}
		c.code.emit(Instr{Op: opMovk, Rd: dst, Imm: chunk, Shift: uint8(shift)})
	}
	return nil
}

// genSetStack materializes src into the stack slot at offset off.
func (c *Context) genSetStack(off uint32, src MV, sizeBytes int, loc ir.Loc) *Error {
	if src.Kind == MVRegister {
		return c.store(stackOffsetMV(off), src.Reg, sizeBytes)
	}
	// Route non-register sources through a scratch register first.
	scratch := scratchRegs[0]
	if err := c.genSetReg(scratch, src, sizeBytes, loc); err != nil {
		return err
	}
	return c.store(stackOffsetMV(off), scratch, sizeBytes)
}

// load emits the instruction(s) reading src (a memory-shaped MV) into dst.
// Size selects ldrb/ldrh/ldr per spec §4.5's genLdrRegister rule. Sizes 3,
// 5, 6, and 7 return a not-yet-implemented error, and so does every other
// size (via genInlineMemcpyToReg): load does not call genInlineMemcpy.
func (c *Context) load(dst Reg, src MV, sizeBytes int) *Error {
	switch sizeBytes {
	case 1:
		c.code.emit(Instr{Op: opLdrb, Rd: dst, Rn: baseRegOf(src), Imm: offsetOf(src), Size: 1})
	case 2:
		c.code.emit(Instr{Op: opLdrh, Rd: dst, Rn: baseRegOf(src), Imm: offsetOf(src), Size: 2})
	case 4, 8:
		c.code.emit(Instr{Op: opLdr, Rd: dst, Rn: baseRegOf(src), Imm: offsetOf(src), Size: sizeBytes})
	case 3, 5, 6, 7:
		return fail(ir.Loc{}, "not yet implemented: load of ABI size %d", sizeBytes)
	default:
		return c.genInlineMemcpyToReg(dst, src, sizeBytes)
	}
	return nil
}

// store emits the instruction(s) writing src into the memory-shaped MV dst.
func (c *Context) store(dst MV, src Reg, sizeBytes int) *Error {
	switch sizeBytes {
	case 1:
		c.code.emit(Instr{Op: opStrb, Rn: baseRegOf(dst), Rd: src, Imm: offsetOf(dst), Size: 1})
	case 2:
		c.code.emit(Instr{Op: opStrh, Rn: baseRegOf(dst), Rd: src, Imm: offsetOf(dst), Size: 2})
	case 4, 8:
		c.code.emit(Instr{Op: opStr, Rn: baseRegOf(dst), Rd: src, Imm: offsetOf(dst), Size: sizeBytes})
	case 3, 5, 6, 7:
		return fail(ir.Loc{}, "not yet implemented: store of ABI size %d", sizeBytes)
	default:
		return fail(ir.Loc{}, "BUG: store of size %d must go through genInlineMemcpy, not a scalar str", sizeBytes)
	}
	return nil
}

// baseRegOf/offsetOf extract the addressing-mode fields from a
// memory-shaped MV: stack offsets address downward from the frame pointer,
// while a register-shaped MV is itself the runtime pointer value (e.g. the
// address materialized for a `load`/`store` IR operand).
func baseRegOf(v MV) Reg {
	switch v.Kind {
	case MVRegister:
		return v.Reg
	case MVStackOffset, MVPtrStackOffset:
		return X29
	default:
		panic(fmt.Sprintf("BUG: unaddressable MV kind %d passed to baseRegOf", v.Kind))
	}
}

func offsetOf(v MV) uint64 {
	switch v.Kind {
	case MVRegister:
		return 0
	default:
		return v.Imm
	}
}

// genAddrOfStack materializes the address of a stack slot (spec's
// ptr_stack_offset shape) by subtracting its offset from the frame pointer.
func (c *Context) genAddrOfStack(dst Reg, off uint32) *Error {
	c.code.emit(Instr{Op: opSubImm, Rd: dst, Rn: X29, Imm: uint64(off)})
	return nil
}

// genInlineMemcpy emits a byte-copy loop for large (>8-byte) stack-to-stack
// or memory-to-stack moves, using five scratch registers obtained
// atomically: src, dst, len, count, tmp (spec §4.4).
func (c *Context) genInlineMemcpy(dst, src MV, size uint32, loc ir.Loc) *Error {
	regs, err := c.regs.AllocMany([]ir.Index{ir.NoIndex, ir.NoIndex, ir.NoIndex, ir.NoIndex, ir.NoIndex}, loc)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range regs {
			c.regs.Free(r)
		}
	}()
	srcReg, dstReg, lenReg, countReg, tmpReg := regs[0], regs[1], regs[2], regs[3], regs[4]

	if err := c.genSetReg(srcReg, ptrOf(src), 8, loc); err != nil {
		return err
	}
	if err := c.genSetReg(dstReg, ptrOf(dst), 8, loc); err != nil {
		return err
	}
	c.code.emit(Instr{Op: opMovz, Rd: lenReg, Imm: uint64(size)})
	c.code.emit(Instr{Op: opMovz, Rd: countReg, Imm: 0})

	loopStart := c.code.len()
	c.code.emit(Instr{Op: opCmpReg, Rn: countReg, Rm: lenReg})
	exitBranch := c.code.emit(Instr{Op: opBCond, Cond: ge, RelocTarget: -1})
	c.code.emit(Instr{Op: opLdrb, Rd: tmpReg, Rn: srcReg, Rm: countReg})
	c.code.emit(Instr{Op: opStrb, Rd: tmpReg, Rn: dstReg, Rm: countReg})
	c.code.emit(Instr{Op: opAddImm, Rd: countReg, Rn: countReg, Imm: 1})
	c.code.emit(Instr{Op: opB, RelocTarget: loopStart})
	exitAt := c.code.len()
	i := c.code.at(exitBranch)
	i.RelocTarget = exitAt
	c.code.patch(exitBranch, i)
	return nil
}

func (c *Context) genInlineMemcpyToReg(dst Reg, src MV, size int) *Error {
	return fail(ir.Loc{}, "not yet implemented: loading ABI size %d directly into a register (route through a stack temporary and genInlineMemcpy instead)", size)
}

// ptrOf turns a memory-shaped MV into the MV describing its address, for
// feeding into genSetReg when materializing the memcpy's src/dst pointer
// registers.
func ptrOf(v MV) MV {
	switch v.Kind {
	case MVStackOffset:
		return ptrStackOffsetMV(uint32(v.Imm))
	default:
		return v
	}
}

// setRegOrMem is the top-level mover entry point: materializes src into
// whichever shape dst already names (a register or a stack slot).
func (c *Context) setRegOrMem(dst, src MV, sizeBytes int, loc ir.Loc) *Error {
	switch dst.Kind {
	case MVRegister:
		return c.genSetReg(dst.Reg, src, sizeBytes, loc)
	case MVStackOffset:
		return c.genSetStack(uint32(dst.Imm), src, sizeBytes, loc)
	default:
		return fail(loc, "BUG: setRegOrMem destination must be a register or stack slot, got %s", dst)
	}
}
