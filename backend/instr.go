package backend

import "github.com/ssagen/arm64codegen/linker"

// Op names one MIR tag: either a real AArch64 instruction form or a
// pseudo-op (spec §6 "Target instruction stream (MIR)").
type Op uint16

const (
	opInvalid Op = iota

	// Real forms.
	opMovz
	opMovk
	opAddImm
	opAddReg
	opSubImm
	opSubReg
	opMul
	opAnd
	opOrr
	opEor
	opEorImm
	opMvn
	opCmpImm
	opCmpReg
	opCset
	opLdrb
	opLdrh
	opLdr
	opStrb
	opStrh
	opStr
	opB
	opBCond
	opCbz
	opCbnz
	opBlr
	opRet
	opStp
	opLdp
	opMovReg
	opAddSubSp

	// Pseudo-ops (spec §6).
	opPushRegs
	opPopRegs
	opDbgLine
	opDbgPrologueEnd
	opDbgEpilogueBegin
	opLoadMemoryGot
	opLoadMemoryDirect
	opLoadMemoryPtrGot
	opLoadMemoryPtrDirect
	opCallExtern
	opNop
)

// Instr is one packed tagged record appended to the MIR stream. Not every
// field is meaningful for every Op; this mirrors the teacher's single
// `instruction` struct with a big union-by-convention of payload fields
// (backend/isa/arm64/instr.go), rather than one Go type per opcode, because
// the instruction list must support in-place back-patching at a stable
// index (Design Notes: "Emit placeholder, patch later").
type Instr struct {
	Op Op

	Rd, Rn, Rm Reg
	Imm        uint64
	Shift      uint8
	Size       int // operand width in bytes: 1, 2, 4, or 8
	Cond       condFlag

	// RelocTarget is the MIR index this branch targets; -1 until patched.
	RelocTarget int

	Sym linker.SymRef

	// Bitmask is the callee-preserved-register save/restore mask for
	// push_regs/pop_regs.
	Bitmask uint32

	// Line/Col back dbg_line.
	Line, Col uint32

	// AtomIndex is the current function's atom, carried by call_extern.
	AtomIndex int32
}

// codeStream is the append-only, index-stable MIR instruction list codegen
// appends to and back-patches in place. Never reorder: back-patch sites are
// recorded as indices into this slice (Design Notes "Emit placeholder,
// patch later").
type codeStream struct {
	instrs []Instr
}

func (c *codeStream) emit(i Instr) int {
	c.instrs = append(c.instrs, i)
	return len(c.instrs) - 1
}

func (c *codeStream) patch(idx int, i Instr) {
	c.instrs[idx] = i
}

func (c *codeStream) at(idx int) Instr {
	return c.instrs[idx]
}

func (c *codeStream) len() int {
	return len(c.instrs)
}
