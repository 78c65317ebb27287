package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/layout"
	"github.com/ssagen/arm64codegen/linker"
)

// countOp reports how many instructions in code carry op.
func countOp(code []Instr, op Op) int {
	n := 0
	for _, i := range code {
		if i.Op == op {
			n++
		}
	}
	return n
}

// TestGenerateNakedAddAndReturn exercises the simplest naked function: two
// constants, an add, and a void return. Covers lowerAddSub's immediate path
// and the naked short-circuit of the prologue/epilogue entirely.
func TestGenerateNakedAddAndReturn(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked

	idx0, idx1, idx2, idx3 := ir.Index(0), ir.Index(1), ir.Index(2), ir.Index(3)
	fn.add(idx0, ir.OpConstant, ir.Data{Imm: 5}, typeInt64)
	fn.add(idx1, ir.OpConstant, ir.Data{Imm: 3}, typeInt64)
	fn.add(idx2, ir.OpAdd, ir.Data{Op0: ir.InstRef(idx0), Op1: ir.InstRef(idx1)}, typeInt64)
	fn.add(idx3, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.mainBody = []ir.Index{idx0, idx1, idx2, idx3}

	liveness := newTestLiveness()
	liveness.setDies(idx2, 0)
	liveness.setDies(idx2, 1)

	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)
	require.Equal(t, 1, countOp(code, opAddImm))
	require.Equal(t, 1, countOp(code, opRet))
	require.Zero(t, countOp(code, opStp), "a naked function must never emit the prologue frame-save sequence")
}

// TestGenerateIdentityReturnsParameter exercises the full non-naked path:
// prologue placeholders, parameter homing, a value read back out of its
// stack home into x0, the epilogue, and prologue back-patching.
func TestGenerateIdentityReturnsParameter(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvDefault
	fn.params = []ir.Type{typeInt64}
	fn.ret = typeInt64

	idx0, idx1 := ir.Index(0), ir.Index(1)
	fn.add(idx0, ir.OpArg, ir.Data{Imm: 0}, typeInt64)
	fn.add(idx1, ir.OpRet, ir.Data{Op0: ir.InstRef(idx0)}, typeInt64)
	fn.mainBody = []ir.Index{idx0, idx1}

	liveness := newTestLiveness()
	liveness.setDies(idx1, 0)

	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)

	require.Equal(t, opStp, code[0].Op, "prologue must open with the fp/lr save pair")
	require.Equal(t, opAddSubSp, code[len(code)-4].Op)
	require.Equal(t, opLdp, code[len(code)-3].Op)
	require.Equal(t, opRet, code[len(code)-2].Op)
	require.Equal(t, opDbgLine, code[len(code)-1].Op)

	foundHome, foundReload := false, false
	for _, i := range code {
		if i.Op == opStr && i.Rd == X0 {
			foundHome = true
		}
		if i.Op == opLdr && i.Rd == X0 {
			foundReload = true
		}
	}
	require.True(t, foundHome, "the incoming x0 argument must be homed to its stack slot")
	require.True(t, foundReload, "ret must reload the value from its stack home back into x0")
}

// TestGenerateCondBrBothArmsReturn exercises lowerCondBr's branch/patch
// shape and reconcileArm's no-op path when neither arm relocates a value
// the other side cares about.
func TestGenerateCondBrBothArmsReturn(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked

	cond, br := ir.Index(0), ir.Index(1)
	thenConst, thenRet := ir.Index(2), ir.Index(3)
	elseConst, elseRet := ir.Index(4), ir.Index(5)
	thenBlock, elseBlock := ir.Index(100), ir.Index(200)

	fn.add(cond, ir.OpConstant, ir.Data{Imm: 1}, typeBool)
	fn.add(br, ir.OpCondBr, ir.Data{Op0: ir.InstRef(cond), Op1: ir.InstRef(thenBlock), Op2: ir.InstRef(elseBlock)}, typeVoid)
	fn.mainBody = []ir.Index{cond, br}

	fn.add(thenConst, ir.OpConstant, ir.Data{Imm: 10}, typeInt64)
	fn.add(thenRet, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.blockBody[thenBlock] = []ir.Index{thenConst, thenRet}

	fn.add(elseConst, ir.OpConstant, ir.Data{Imm: 20}, typeInt64)
	fn.add(elseRet, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.blockBody[elseBlock] = []ir.Index{elseConst, elseRet}

	liveness := newTestLiveness()
	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)
	require.Equal(t, 1, countOp(code, opBCond))
	require.Equal(t, 1, countOp(code, opB), "the then-arm must jump over the else-arm")
	require.Equal(t, 2, countOp(code, opRet), "both arms return independently")

	for _, i := range code {
		if i.Op == opBCond {
			require.GreaterOrEqual(t, i.RelocTarget, 0, "branchToElse must be patched once the else arm's start is known")
		}
	}
}

// TestAllocRegOrMemPrefersRegisterWhenOK exercises spec §4.2's
// alloc_reg_or_mem directly: reg_ok true and a pointer-sized type must
// yield a register MV, reg_ok false must yield a stack MV even for the
// same type, and a type that doesn't fit a register must fall back to
// stack regardless of reg_ok.
func TestAllocRegOrMemPrefersRegisterWhenOK(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked
	link := &testLinker{flavor: linker.FlavorELF}
	c := NewContext(fn, newTestLiveness(), testTypes{}, link, false, 0)

	mv, err := c.allocRegOrMem(ir.Index(0), typeInt64, true, ir.Loc{})
	require.Nil(t, err)
	require.Equal(t, MVRegister, mv.Kind)
	c.regs.Free(mv.Reg)

	mv, err = c.allocRegOrMem(ir.Index(1), typeInt64, false, ir.Loc{})
	require.Nil(t, err)
	require.Equal(t, MVStackOffset, mv.Kind)

	oversized := layout.Type{Kind: layout.KindInt, AbiSize: 16, AbiAlign: 8, Signed: true, HasRuntimeBits: true}
	mv, err = c.allocRegOrMem(ir.Index(2), oversized, true, ir.Loc{})
	require.Nil(t, err)
	require.Equal(t, MVStackOffset, mv.Kind, "a >64-bit-wide type must fall back to stack even when reg_ok is true")
}

// TestApplyDeathsFreesRegisterBeforeArmLowers exercises cond_br's
// then-deaths/else-deaths wiring (spec §4.6): a value already resolved to a
// register and listed as dying into an arm must have that register freed
// before the arm's body lowers, so the arm's own allocations can reuse it
// without spilling something else.
func TestApplyDeathsFreesRegisterBeforeArmLowers(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked
	link := &testLinker{flavor: linker.FlavorELF}
	c := NewContext(fn, newTestLiveness(), testTypes{}, link, false, 0)

	r, err := c.regs.Alloc(ir.Index(0), ir.Loc{})
	require.Nil(t, err)
	c.branches.Push()
	c.branches.Top().set(ir.Index(0), registerMV(r))
	require.True(t, c.regs.IsAllocated(r))

	c.applyDeaths([]ir.Index{ir.Index(0)})
	require.True(t, c.regs.IsFree(r), "a value listed in the arm's deaths must have its register freed before the arm lowers")
}

// TestGenerateCondBrAppliesThenDeaths exercises lowerCondBr end to end with
// CondBrDeaths configured: the wiring must not alter the branch/return
// shape of the simple both-arms-return case.
func TestGenerateCondBrAppliesThenDeaths(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked

	cond, br := ir.Index(0), ir.Index(1)
	thenConst, thenRet := ir.Index(2), ir.Index(3)
	elseConst, elseRet := ir.Index(4), ir.Index(5)
	thenBlock, elseBlock := ir.Index(100), ir.Index(200)

	fn.add(cond, ir.OpConstant, ir.Data{Imm: 1}, typeBool)
	fn.add(br, ir.OpCondBr, ir.Data{Op0: ir.InstRef(cond), Op1: ir.InstRef(thenBlock), Op2: ir.InstRef(elseBlock)}, typeVoid)
	fn.mainBody = []ir.Index{cond, br}

	fn.add(thenConst, ir.OpConstant, ir.Data{Imm: 10}, typeInt64)
	fn.add(thenRet, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.blockBody[thenBlock] = []ir.Index{thenConst, thenRet}

	fn.add(elseConst, ir.OpConstant, ir.Data{Imm: 20}, typeInt64)
	fn.add(elseRet, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.blockBody[elseBlock] = []ir.Index{elseConst, elseRet}

	liveness := newTestLiveness()
	liveness.setCondBrDeaths(br, []ir.Index{cond}, []ir.Index{cond})
	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)
	require.Equal(t, 1, countOp(code, opBCond))
	require.Equal(t, 2, countOp(code, opRet))
}

// TestGenerateUnreachOnlyBodyEmitsNoStatementDbgLine exercises spec §8's
// boundary case verbatim: "A function whose only body is unreach emits
// prologue, dbg_prologue_end, dbg_epilogue_begin, and the rbrace dbg_line —
// nothing else." In particular, unreach must not also get the per-statement
// dbg_line lowerBody emits ahead of every other instruction.
func TestGenerateUnreachOnlyBodyEmitsNoStatementDbgLine(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvDefault
	fn.ret = typeVoid

	idx0 := ir.Index(0)
	fn.add(idx0, ir.OpUnreach, ir.Data{}, typeVoid)
	fn.mainBody = []ir.Index{idx0}

	liveness := newTestLiveness()
	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)
	require.Equal(t, opStp, code[0].Op, "prologue must still open with the fp/lr save pair")
	require.Equal(t, 1, countOp(code, opDbgPrologueEnd))
	require.Equal(t, 1, countOp(code, opDbgEpilogueBegin))
	require.Equal(t, 1, countOp(code, opDbgLine), "only the rbrace dbg_line may appear; unreach must not get its own")
}

// TestGenerateCallExternELF exercises lowerCall's GOT-indirection path for
// a non-Mach-O linker flavor.
func TestGenerateCallExternELF(t *testing.T) {
	fn := newTestFunction()
	fn.callConv = ir.CallConvNaked

	argConst, call, ret := ir.Index(0), ir.Index(1), ir.Index(2)
	fn.add(argConst, ir.OpConstant, ir.Data{Imm: 42}, typeInt64)
	fn.add(call, ir.OpCall, ir.Data{Sym: "some_extern_fn", ExtraIndex: 0}, typeInt64)
	fn.add(ret, ir.OpRet, ir.Data{Op0: ir.NoRef}, typeVoid)
	fn.mainBody = []ir.Index{argConst, call, ret}
	fn.extraArgs[0] = []ir.Ref{ir.InstRef(argConst)}

	liveness := newTestLiveness()
	link := &testLinker{flavor: linker.FlavorELF}
	var code []Instr
	var dbg DebugOutput

	err := Generate(fn, liveness, testTypes{}, link, false, 0, &code, &dbg)
	require.Nil(t, err)
	require.Equal(t, 1, countOp(code, opLoadMemoryGot))
	require.Equal(t, 1, countOp(code, opBlr))
	require.Equal(t, []string{"some_extern_fn"}, link.resolved)
}
