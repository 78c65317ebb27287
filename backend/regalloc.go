package backend

import (
	"fmt"
	"os"

	"github.com/ssagen/arm64codegen/codegenapi"
	"github.com/ssagen/arm64codegen/ir"
)

// Spiller is the capability the allocator requests from the owning Context
// when it must free a register under pressure: moving the victim's value
// to a fresh stack slot and updating the branch table so future resolves
// find it there. Per Design Notes §9, spilling is "a capability the
// allocator requests from the context, not a method the register table
// owns" — this breaks what would otherwise be a cyclic dependency between
// the allocator and the branch stack.
type Spiller interface {
	SpillInstruction(owner ir.Index, reg Reg) *Error
}

type regEntry struct {
	allocated   bool
	owner       ir.Index // NoIndex for anonymous/scratch allocations
	freezeDepth int
}

// RegisterAllocator owns the fixed pool of callee-preserved general-purpose
// registers (spec §4.1). It never decides WHAT to spill to beyond invoking
// Spiller; the prologue/epilogue back-patcher reads back which registers
// were ever allocated via EverAllocated to compute the clobbered-register
// save mask.
type RegisterAllocator struct {
	entries       map[Reg]*regEntry
	everAllocated map[Reg]bool
	spiller       Spiller
}

// NewRegisterAllocator constructs an allocator over the fixed
// callee-preserved pool, bound to spiller for spill requests.
func NewRegisterAllocator(spiller Spiller) *RegisterAllocator {
	ra := &RegisterAllocator{
		entries:       make(map[Reg]*regEntry, len(allocatablePool)),
		everAllocated: make(map[Reg]bool, len(allocatablePool)),
		spiller:       spiller,
	}
	for _, r := range allocatablePool {
		ra.entries[r] = &regEntry{}
	}
	return ra
}

// TryAlloc is the non-spilling variant: it returns ok=false on pressure
// instead of invoking the spiller.
func (ra *RegisterAllocator) TryAlloc(owner ir.Index) (Reg, bool) {
	for _, r := range allocatablePool {
		e := ra.entries[r]
		if !e.allocated && e.freezeDepth == 0 {
			e.allocated = true
			e.owner = owner
			ra.everAllocated[r] = true
			if codegenapi.RegAllocLoggingEnabled {
				fmt.Fprintf(os.Stderr, "regalloc: try_alloc %s -> owner %d\n", r, owner)
			}
			return r, true
		}
	}
	return noReg, false
}

// Alloc returns a free register, spilling a victim if the pool is under
// pressure. It fails only when every pooled register is frozen.
func (ra *RegisterAllocator) Alloc(owner ir.Index, loc ir.Loc) (Reg, *Error) {
	if r, ok := ra.TryAlloc(owner); ok {
		return r, nil
	}
	victim, ok := ra.selectSpillVictim()
	if !ok {
		return noReg, outOfRegisters(loc)
	}
	ve := ra.entries[victim]
	victimOwner := ve.owner
	if err := ra.spiller.SpillInstruction(victimOwner, victim); err != nil {
		return noReg, err
	}
	ra.Free(victim)
	r, ok := ra.TryAlloc(owner)
	if !ok {
		panic("BUG: register free after spill but TryAlloc still failed")
	}
	return r, nil
}

// selectSpillVictim implements the deterministic spill policy of spec
// §4.1: "scan the allocatable pool in fixed order; pick the first register
// whose owner is neither frozen nor held by the current call site" — "held
// by the current call site" is modeled as frozen, since call-argument
// registers are frozen for the duration of argument materialization (see
// call.go).
func (ra *RegisterAllocator) selectSpillVictim() (Reg, bool) {
	for _, r := range allocatablePool {
		e := ra.entries[r]
		if e.allocated && e.freezeDepth == 0 {
			return r, true
		}
	}
	return noReg, false
}

// AllocMany allocates k distinct registers atomically: either all k are
// returned, or none are (an error is returned and no partial allocation is
// left outstanding). Implemented as k calls to Alloc; each register granted
// stays frozen until the loop ends, so a later Alloc in the same call cannot
// pick it as a spill victim. On failure the registers already granted in
// this call are freed before returning.
func (ra *RegisterAllocator) AllocMany(owners []ir.Index, loc ir.Loc) ([]Reg, *Error) {
	got := make([]Reg, 0, len(owners))
	for _, owner := range owners {
		r, err := ra.Alloc(owner, loc)
		if err != nil {
			ra.Unfreeze(got...)
			for _, g := range got {
				ra.Free(g)
			}
			return nil, err
		}
		ra.Freeze(r)
		got = append(got, r)
	}
	ra.Unfreeze(got...)
	return got, nil
}

// Free marks reg unallocated.
func (ra *RegisterAllocator) Free(reg Reg) {
	e, ok := ra.entries[reg]
	if !ok {
		return // not a pooled register (e.g. a scratch/arg register); no bookkeeping needed.
	}
	e.allocated = false
	e.owner = ir.NoIndex
}

// Freeze temporarily excludes regs from allocation and spill-victim
// selection. Nested freezes are permitted; every freeze must be paired with
// Unfreeze.
func (ra *RegisterAllocator) Freeze(regs ...Reg) {
	for _, r := range regs {
		if e, ok := ra.entries[r]; ok {
			e.freezeDepth++
		}
	}
}

// Unfreeze reverses one Freeze call for each of regs.
func (ra *RegisterAllocator) Unfreeze(regs ...Reg) {
	for _, r := range regs {
		e, ok := ra.entries[r]
		if !ok {
			continue
		}
		if e.freezeDepth == 0 {
			panic("BUG: unfreeze without matching freeze")
		}
		e.freezeDepth--
	}
}

// FrozenRegsExist implements the invariant checked at every instruction
// boundary (spec §3 invariant 3): "No freeze outlasts the operation that
// requested it."
func (ra *RegisterAllocator) FrozenRegsExist() bool {
	for _, e := range ra.entries {
		if e.freezeDepth > 0 {
			return true
		}
	}
	return false
}

func (ra *RegisterAllocator) IsFree(reg Reg) bool {
	e, ok := ra.entries[reg]
	return ok && !e.allocated
}

func (ra *RegisterAllocator) IsAllocated(reg Reg) bool {
	e, ok := ra.entries[reg]
	return ok && e.allocated
}

// OwnerOf returns the IR instruction that owns reg, if allocated.
func (ra *RegisterAllocator) OwnerOf(reg Reg) (ir.Index, bool) {
	e, ok := ra.entries[reg]
	if !ok || !e.allocated {
		return ir.NoIndex, false
	}
	return e.owner, true
}

// EverAllocated reports whether reg was ever handed out during this
// function's codegen; the prologue/epilogue back-patcher uses this to
// compute the save/restore register mask (spec §4.8).
func (ra *RegisterAllocator) EverAllocated(reg Reg) bool {
	return ra.everAllocated[reg]
}

// allocatorSnapshot captures the allocator's full state for restoration
// after speculatively generating one arm of a conditional (spec §4.6
// "snapshot the allocator state").
type allocatorSnapshot struct {
	entries map[Reg]regEntry
}

func (ra *RegisterAllocator) snapshot() allocatorSnapshot {
	s := allocatorSnapshot{entries: make(map[Reg]regEntry, len(ra.entries))}
	for r, e := range ra.entries {
		s.entries[r] = *e
	}
	return s
}

func (ra *RegisterAllocator) restore(s allocatorSnapshot) {
	for r, e := range s.entries {
		ne := e
		ra.entries[r] = &ne
	}
}
