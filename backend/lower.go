package backend

import (
	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/layout"
)

// This file implements the per-IR-op lowerers (spec §4.5): one function per
// opcode family, each resolving its operands through the branch stack,
// picking a destination storage (reusing a dying operand's register where
// possible), emitting the instruction(s), and recording the result.

// resolveOperand resolves operand `slot` of inst (a Ref naming either
// another instruction or a constant-table entry) to its current MV, and
// reports whether it dies at inst. Constant refs never die: they have no
// allocator-owned storage to reclaim.
func (c *Context) resolveOperand(inst ir.Index, slot int, ref ir.Ref) operandResolution {
	if ref.IsConst() {
		cv, _ := c.fn.ValueOf(ref)
		return operandResolution{ref: ref, mv: immediateMV(cv.Bits)}
	}
	mv, ok := c.branches.Resolve(ref.Index())
	if !ok {
		panic("BUG: operand resolved before its defining instruction ran")
	}
	return operandResolution{ref: ref, mv: mv, dies: c.liveness.OperandDies(inst, slot), slot: slot}
}

// ensureReg materializes mv into a register, returning the register and
// whether it was freshly allocated for this purpose (and so must be freed
// by the caller once the emitted instruction has consumed it).
func (c *Context) ensureReg(mv MV, loc ir.Loc) (Reg, bool, *Error) {
	if mv.Kind == MVRegister {
		return mv.Reg, false, nil
	}
	r, err := c.regs.Alloc(ir.NoIndex, loc)
	if err != nil {
		return noReg, false, err
	}
	if err := c.genSetReg(r, mv, 8, loc); err != nil {
		return noReg, false, err
	}
	return r, true, nil
}

// allocDest picks inst's result register: reuse a dying register operand's
// storage when spec §4.3's pre-check applies, otherwise allocate fresh.
// Reused entries have their `dies` flag cleared in place so Finish does not
// also free them.
func (c *Context) allocDest(inst ir.Index, operands []operandResolution, loc ir.Loc) (Reg, *Error) {
	for i := range operands {
		if mv, ok := c.reuseOperand(inst, operands[i]); ok {
			operands[i].dies = false
			if mv.Kind == MVRegister {
				return mv.Reg, nil
			}
		}
	}
	return c.regs.Alloc(inst, loc)
}

// passthroughResult transfers a dying operand's storage directly to inst
// (used by bitcast and widening int_cast, whose result occupies the exact
// same bits as the operand) and clears the operand's death flag so Finish
// does not also free it.
func (c *Context) passthroughResult(inst ir.Index, op *operandResolution) MV {
	if mv, ok := c.reuseOperand(inst, *op); ok {
		op.dies = false
		return mv
	}
	return op.mv
}

func (c *Context) lowerInstr(idx ir.Index) *Error {
	if c.liveness.IsUnused(idx) {
		c.branches.Top().set(idx, deadMV())
		return nil
	}

	tag := c.fn.TagOf(idx)
	data := c.fn.DataOf(idx)
	loc := c.fn.LocOf(idx)

	switch tag {
	case ir.OpConstant:
		c.branches.Top().set(idx, immediateMV(data.Imm))
		return nil
	case ir.OpAdd, ir.OpSub:
		return c.lowerAddSub(idx, tag, data, loc)
	case ir.OpMul:
		return c.lowerBinReg(idx, tag, opMul, data, loc)
	case ir.OpAnd, ir.OpBoolAnd:
		return c.lowerBinReg(idx, tag, opAnd, data, loc)
	case ir.OpOr, ir.OpBoolOr:
		return c.lowerBinReg(idx, tag, opOrr, data, loc)
	case ir.OpXor:
		return c.lowerBinReg(idx, tag, opEor, data, loc)
	case ir.OpNot:
		return c.lowerNot(idx, data, loc)
	case ir.OpCmp:
		return c.lowerCmp(idx, data, loc)
	case ir.OpPtrAdd, ir.OpPtrSub:
		return c.lowerPtrAddSub(idx, tag, data, loc)
	case ir.OpLoad:
		return c.lowerLoad(idx, data, loc)
	case ir.OpStore:
		return c.lowerStore(idx, data, loc)
	case ir.OpAlloc:
		return c.lowerAlloc(idx, loc)
	case ir.OpBitcast:
		return c.lowerBitcast(idx, data, loc)
	case ir.OpIntCast:
		return c.lowerIntCast(idx, data, loc)
	case ir.OpIsErr:
		return c.lowerIsErr(idx, data, loc)
	case ir.OpCall:
		return c.lowerCall(idx, data, loc)
	case ir.OpUnreach:
		c.branches.Top().set(idx, unreachMV())
		return nil
	case ir.OpArg:
		return fail(loc, "BUG: arg instruction encountered outside the function-entry prefix")
	case ir.OpRetLoad, ir.OpSwitch, ir.OpFloatBinOp, ir.OpVectorBinOp, ir.OpAtomicRmw,
		ir.OpTagName, ir.OpErrorName, ir.OpAggregateInit, ir.OpUnionInit:
		return notYetImplemented(loc, tag.String())
	default:
		return notYetImplemented(loc, tag.String())
	}
}

// supportedScalarKind reports whether t is a pointer-sized-or-smaller
// integer, bool, or pointer value: the only operand shapes the integer ALU
// lowerers below emit code for. Float, vector, and >64-bit-integer operands
// must report not-yet-implemented instead of silently emitting an
// integer-only instruction form over bits it doesn't understand (spec §1
// Non-goals).
func supportedScalarKind(t layout.Type) bool {
	switch t.Kind {
	case layout.KindInt, layout.KindBool, layout.KindPointer:
		return t.AbiSize <= 8
	default:
		return false
	}
}

// lowerAddSub lowers add/sub, preferring the immediate encoding when the
// right-hand operand fits in 12 bits (spec §4.5): add's commutativity lets
// a left-hand immediate swap into the right-hand slot first; sub cannot.
func (c *Context) lowerAddSub(idx ir.Index, tag ir.Tag, data ir.Data, loc ir.Loc) *Error {
	if typ := c.fn.TypeOfIndex(idx); !supportedScalarKind(typ) {
		return notYetImplemented(loc, tag.String()+" on non-integer or oversized operand")
	}

	lhs := c.resolveOperand(idx, 0, data.Op0)
	rhs := c.resolveOperand(idx, 1, data.Op1)
	if tag == ir.OpAdd && lhs.mv.isImmediate() && !rhs.mv.isImmediate() {
		lhs, rhs = rhs, lhs
	}
	operands := []operandResolution{lhs, rhs}

	dst, err := c.allocDest(idx, operands, loc)
	if err != nil {
		return err
	}
	lhsReg, lhsFresh, err := c.ensureReg(lhs.mv, loc)
	if err != nil {
		return err
	}

	const imm12Max = 1<<12 - 1
	if rhs.mv.isImmediate() && rhs.mv.Imm <= imm12Max {
		op := opAddImm
		if tag == ir.OpSub {
			op = opSubImm
		}
		c.code.emit(Instr{Op: op, Rd: dst, Rn: lhsReg, Imm: rhs.mv.Imm})
	} else {
		rhsReg, rhsFresh, err := c.ensureReg(rhs.mv, loc)
		if err != nil {
			return err
		}
		op := opAddReg
		if tag == ir.OpSub {
			op = opSubReg
		}
		c.code.emit(Instr{Op: op, Rd: dst, Rn: lhsReg, Rm: rhsReg})
		if rhsFresh {
			c.regs.Free(rhsReg)
		}
	}
	if lhsFresh {
		c.regs.Free(lhsReg)
	}

	c.Finish(idx, registerMV(dst), operands)
	return nil
}

// lowerBinReg lowers an op with no immediate encoding (mul/and/or/xor/
// bool_and/bool_or): spec §4.5 "always register form".
func (c *Context) lowerBinReg(idx ir.Index, tag ir.Tag, op Op, data ir.Data, loc ir.Loc) *Error {
	if typ := c.fn.TypeOfIndex(idx); !supportedScalarKind(typ) {
		return notYetImplemented(loc, tag.String()+" on non-integer or oversized operand")
	}

	lhs := c.resolveOperand(idx, 0, data.Op0)
	rhs := c.resolveOperand(idx, 1, data.Op1)
	operands := []operandResolution{lhs, rhs}

	dst, err := c.allocDest(idx, operands, loc)
	if err != nil {
		return err
	}
	lhsReg, lhsFresh, err := c.ensureReg(lhs.mv, loc)
	if err != nil {
		return err
	}
	rhsReg, rhsFresh, err := c.ensureReg(rhs.mv, loc)
	if err != nil {
		return err
	}

	c.code.emit(Instr{Op: op, Rd: dst, Rn: lhsReg, Rm: rhsReg})

	if lhsFresh {
		c.regs.Free(lhsReg)
	}
	if rhsFresh {
		c.regs.Free(rhsReg)
	}

	c.Finish(idx, registerMV(dst), operands)
	return nil
}

// lowerNot lowers boolean/integer negation and flag inversion (spec §4.5
// "Boolean NOT"): a compare-flags operand inverts in place with no code
// emitted, a bool operand masks with eor #1, and an int operand uses mvn.
func (c *Context) lowerNot(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	src := c.resolveOperand(idx, 0, data.Op0)
	operands := []operandResolution{src}

	if src.mv.isCompareFlags() {
		c.Finish(idx, src.mv.invertCompareFlags(), operands)
		return nil
	}

	typ := c.fn.TypeOfIndex(idx)
	dst, err := c.allocDest(idx, operands, loc)
	if err != nil {
		return err
	}
	srcReg, srcFresh, err := c.ensureReg(src.mv, loc)
	if err != nil {
		return err
	}

	if typ.Kind == layout.KindBool {
		c.code.emit(Instr{Op: opEorImm, Rd: dst, Rn: srcReg, Imm: 1})
	} else {
		c.code.emit(Instr{Op: opMvn, Rd: dst, Rn: srcReg})
	}
	if srcFresh {
		c.regs.Free(srcReg)
	}

	c.Finish(idx, registerMV(dst), operands)
	return nil
}

// lowerCmp lowers a comparison to a cmp instruction plus a compare-flags
// MV (spec §4.5): the result lives purely in the condition flags until a
// consumer materializes it (genSetReg's MVCompareFlags* case), so no
// destination register is ever allocated here.
func (c *Context) lowerCmp(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	operandType := c.fn.TypeOf(data.Op0)
	if !supportedScalarKind(operandType) {
		return notYetImplemented(loc, "cmp on non-integer or oversized operand")
	}
	signed := operandType.Kind == layout.KindInt && operandType.Signed

	lhs := c.resolveOperand(idx, 0, data.Op0)
	rhs := c.resolveOperand(idx, 1, data.Op1)
	operands := []operandResolution{lhs, rhs}

	lhsReg, lhsFresh, err := c.ensureReg(lhs.mv, loc)
	if err != nil {
		return err
	}

	const imm12Max = 1<<12 - 1
	if rhs.mv.isImmediate() && rhs.mv.Imm <= imm12Max {
		c.code.emit(Instr{Op: opCmpImm, Rn: lhsReg, Imm: rhs.mv.Imm})
	} else {
		rhsReg, rhsFresh, err := c.ensureReg(rhs.mv, loc)
		if err != nil {
			return err
		}
		c.code.emit(Instr{Op: opCmpReg, Rn: lhsReg, Rm: rhsReg})
		if rhsFresh {
			c.regs.Free(rhsReg)
		}
	}
	if lhsFresh {
		c.regs.Free(lhsReg)
	}

	c.Finish(idx, compareFlagsMV(data.Cmp, signed), operands)
	return nil
}

// lowerPtrAddSub lowers pointer arithmetic. Only a unit (1-byte) element
// stride is implemented, since it degenerates to plain integer add/sub;
// any larger stride would need a multiply-by-constant this backend does
// not yet emit for address computation (spec §9 deferred work).
func (c *Context) lowerPtrAddSub(idx ir.Index, tag ir.Tag, data ir.Data, loc ir.Loc) *Error {
	ptrType := c.fn.TypeOf(data.Op0)
	elem := c.types.ElemType(ptrType)
	if c.types.AbiSize(elem) != 1 {
		return notYetImplemented(loc, tag.String()+" with element size > 1")
	}
	intTag := ir.OpAdd
	if tag == ir.OpPtrSub {
		intTag = ir.OpSub
	}
	return c.lowerAddSub(idx, intTag, data, loc)
}

// lowerLoad lowers a dereference of a pointer-shaped operand.
func (c *Context) lowerLoad(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	ptr := c.resolveOperand(idx, 0, data.Op0)
	operands := []operandResolution{ptr}

	size := int(c.types.AbiSize(c.fn.TypeOfIndex(idx)))

	ptrReg, ptrFresh, err := c.ensureReg(ptr.mv, loc)
	if err != nil {
		return err
	}
	dst, err := c.allocDest(idx, operands, loc)
	if err != nil {
		return err
	}
	if err := c.load(dst, registerMV(ptrReg), size); err != nil {
		return err
	}
	if ptrFresh {
		c.regs.Free(ptrReg)
	}

	c.Finish(idx, registerMV(dst), operands)
	return nil
}

// lowerStore lowers a write through a pointer-shaped operand. Produces no
// result value; operand deaths still free registers normally through
// Finish.
func (c *Context) lowerStore(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	ptr := c.resolveOperand(idx, 0, data.Op0)
	val := c.resolveOperand(idx, 1, data.Op1)
	operands := []operandResolution{ptr, val}

	size := int(c.types.AbiSize(c.fn.TypeOf(data.Op1)))

	ptrReg, ptrFresh, err := c.ensureReg(ptr.mv, loc)
	if err != nil {
		return err
	}
	valReg, valFresh, err := c.ensureReg(val.mv, loc)
	if err != nil {
		return err
	}
	if err := c.store(registerMV(ptrReg), valReg, size); err != nil {
		return err
	}
	if ptrFresh {
		c.regs.Free(ptrReg)
	}
	if valFresh {
		c.regs.Free(valReg)
	}

	c.Finish(idx, noneMV(), operands)
	return nil
}

// lowerAlloc reserves a stack slot sized for the pointee type and records
// its address; alloc has no operands of its own.
func (c *Context) lowerAlloc(idx ir.Index, loc ir.Loc) *Error {
	elem := c.types.ElemType(c.fn.TypeOfIndex(idx))
	// reg_ok is always false here: alloc's result is the address of the
	// slot, not the slot's contents, so it can never live in a register.
	mv, err := c.allocRegOrMem(idx, elem, false, loc)
	if err != nil {
		return err
	}
	c.branches.Top().set(idx, ptrStackOffsetMV(uint32(mv.Imm)))
	return nil
}

// lowerBitcast reinterprets an operand's bit pattern under a new type with
// no code emitted: the storage transfers directly if the operand dies here.
func (c *Context) lowerBitcast(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	src := c.resolveOperand(idx, 0, data.Op0)
	result := c.passthroughResult(idx, &src)
	c.Finish(idx, result, []operandResolution{src})
	return nil
}

// lowerIntCast lowers an integer width conversion. A cast that changes
// signedness is refused (spec §9 Open Question): this backend carries every
// integer already widened to a 64-bit register by its producing op, so a
// narrowing cast is lowered as an and-mask and a same-or-wider cast as a
// passthrough, and neither form accounts for a change of sign
// interpretation.
func (c *Context) lowerIntCast(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	srcType := c.fn.TypeOf(data.Op0)
	dstType := c.fn.TypeOfIndex(idx)

	if srcType.Signed != dstType.Signed {
		return notYetImplemented(loc, "int_cast that changes signedness")
	}

	src := c.resolveOperand(idx, 0, data.Op0)
	operands := []operandResolution{src}

	if dstType.AbiSize >= srcType.AbiSize {
		result := c.passthroughResult(idx, &src)
		c.Finish(idx, result, operands)
		return nil
	}

	dst, err := c.allocDest(idx, operands, loc)
	if err != nil {
		return err
	}
	srcReg, srcFresh, err := c.ensureReg(src.mv, loc)
	if err != nil {
		return err
	}
	maskReg, err := c.regs.Alloc(ir.NoIndex, loc)
	if err != nil {
		return err
	}
	mask := uint64(1)<<(dstType.AbiSize*8) - 1
	if err := c.genMovImmediate(maskReg, mask); err != nil {
		return err
	}
	c.code.emit(Instr{Op: opAnd, Rd: dst, Rn: srcReg, Rm: maskReg})
	c.regs.Free(maskReg)
	if srcFresh {
		c.regs.Free(srcReg)
	}

	c.Finish(idx, registerMV(dst), operands)
	return nil
}

// lowerIsErr tests an error-union's tag for non-zero (spec scenario S6):
// this backend stores an error-union's tag as a plain integer word in the
// same location as the value, so is_err degenerates to a `!= 0` compare.
func (c *Context) lowerIsErr(idx ir.Index, data ir.Data, loc ir.Loc) *Error {
	src := c.resolveOperand(idx, 0, data.Op0)
	operands := []operandResolution{src}

	srcReg, srcFresh, err := c.ensureReg(src.mv, loc)
	if err != nil {
		return err
	}
	c.code.emit(Instr{Op: opCmpImm, Rn: srcReg, Imm: 0})
	if srcFresh {
		c.regs.Free(srcReg)
	}

	c.Finish(idx, compareFlagsMV(ir.CmpNe, false), operands)
	return nil
}
