// Package backend lowers one function body's IR into an AArch64 MIR
// instruction stream, prologue/epilogue, stack-frame layout, and debug-line
// records, in a single pass (spec §1). Context is the single owning state
// passed by mutable reference to every helper (Design Notes §9: "no
// back-pointers to parent objects"), which is how the mutually-recursive
// needs of the register allocator (which must spill by writing to the
// branch stack) and the branch stack (whose reconciliation moves must
// allocate registers) are broken without a dependency cycle between
// packages.
package backend

import (
	"github.com/ssagen/arm64codegen/ir"
	"github.com/ssagen/arm64codegen/layout"
	"github.com/ssagen/arm64codegen/linker"
)

// DebugOutput accumulates the debug side-channels produced alongside the
// MIR stream (spec §4.9, §6 "Outputs"): dbg_line placement is already
// recorded directly in the instruction stream as pseudo-ops, so this only
// need carry the per-function type-reference interning table deferred to
// DWARF output.
type DebugOutput struct {
	// InternedTypes maps a type's identity (by pointer-free structural key)
	// to the index future DWARF emission will resolve through a relocation
	// list. For debug backends other than DWARF this hook is unused.
	InternedTypes []ir.Type
	typeIndex     map[string]int
}

func newDebugOutput() *DebugOutput {
	return &DebugOutput{typeIndex: make(map[string]int)}
}

// internType records t once and returns its stable index (spec §4.9
// "Types used for variable debug info are interned per function").
func (d *DebugOutput) internType(key string, t ir.Type) int {
	if idx, ok := d.typeIndex[key]; ok {
		return idx
	}
	idx := len(d.InternedTypes)
	d.InternedTypes = append(d.InternedTypes, t)
	d.typeIndex[key] = idx
	return idx
}

// Context is the per-function codegen state. It is not reused across
// functions (spec §5: "each function instance is wholly private").
type Context struct {
	fn       ir.Function
	liveness ir.Liveness
	types    layout.Queries
	link     linker.Linker

	regs     *RegisterAllocator
	stack    *StackFramePlanner
	branches *BranchStack
	code     codeStream

	abi         *ABI
	naked       bool
	atomIndex   int32

	blocks map[ir.Index]*blockRecord

	dbg *DebugOutput

	// Prologue back-patch sites (spec §4.8), recorded while the sequence
	// is still a placeholder nop.
	prologueSaveRegsInstr int
	prologueSubSpInstr    int
	// exitlude jumps recorded at every early `ret`; patched once the
	// epilogue's position is known.
	exitludeJumps []int
}

// NewContext constructs the per-function state. apple selects the Apple
// AAPCS64 variant; atomIndex is this function's linker atom, threaded
// through call_extern pseudo-instructions.
func NewContext(fn ir.Function, liveness ir.Liveness, types layout.Queries, link linker.Linker, apple bool, atomIndex int32) *Context {
	c := &Context{
		fn:        fn,
		liveness:  liveness,
		types:     types,
		link:      link,
		stack:     NewStackFramePlanner(),
		branches:  NewBranchStack(),
		blocks:    make(map[ir.Index]*blockRecord),
		dbg:       newDebugOutput(),
		naked:     fn.CallConv() == ir.CallConvNaked,
		atomIndex: atomIndex,
	}
	c.regs = NewRegisterAllocator(c)
	if !c.naked {
		c.abi = NewABI(fn.Params(), fn.ReturnType(), apple, types)
	}
	return c
}

// allocRegOrMem is spec §4.2's Stack-Frame Planner operation
// `alloc_reg_or_mem(owner, reg_ok)`: when regOK and typ is an integer,
// bool, or pointer no wider than a pointer-sized register (see
// supportedScalarKind), it preferentially hands out a register MV
// (spilling another occupant if every register is already in use);
// otherwise — or when the caller has no use for a register here, e.g. a
// value whose address must be taken — it falls back to a freshly allocated
// stack slot.
func (c *Context) allocRegOrMem(owner ir.Index, typ layout.Type, regOK bool, loc ir.Loc) (MV, *Error) {
	if regOK && supportedScalarKind(typ) {
		r, err := c.regs.Alloc(owner, loc)
		if err != nil {
			return MV{}, err
		}
		return registerMV(r), nil
	}
	off := c.stack.AllocMem(owner, c.types.AbiSize(typ), c.types.AbiAlignment(typ))
	return stackOffsetMV(off), nil
}

// SpillInstruction implements Spiller: moves owner's value out of reg into
// a freshly allocated stack slot and updates the branch table so future
// resolves find it there (spec §4.1 "Spill policy").
func (c *Context) SpillInstruction(owner ir.Index, reg Reg) *Error {
	if owner == ir.NoIndex {
		return nil
	}
	typ := c.fn.TypeOfIndex(owner)
	size := c.types.AbiSize(typ)
	align := c.types.AbiAlignment(typ)
	loc := c.fn.LocOf(owner)
	off := c.stack.AllocMem(owner, size, align)
	if err := c.genSetStack(off, registerMV(reg), int(size), loc); err != nil {
		return err
	}
	c.branches.Top().set(owner, stackOffsetMV(off))
	return nil
}

// Generate is the sole public entry point (spec §6): it lowers fn's body
// into codeOut and populates debugOut, or returns a structured compile
// error.
func Generate(
	fn ir.Function,
	liveness ir.Liveness,
	types layout.Queries,
	link linker.Linker,
	apple bool,
	atomIndex int32,
	codeOut *[]Instr,
	debugOut *DebugOutput,
) *Error {
	c := NewContext(fn, liveness, types, link, apple, atomIndex)

	if !c.naked {
		c.emitProloguePlaceholders()
	}
	if err := c.homeParameters(); err != nil {
		return err
	}

	body := fn.MainBody()
	if err := c.lowerBody(c.fn.BlockBody(body)); err != nil {
		return err
	}

	if !c.naked {
		if err := c.setupEpilogue(); err != nil {
			return err
		}
		if err := c.backpatchPrologue(); err != nil {
			return err
		}
	}

	*codeOut = append(*codeOut, c.code.instrs...)
	*debugOut = *c.dbg
	return nil
}
